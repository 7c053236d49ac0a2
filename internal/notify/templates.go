package notify

import (
	"text/template"

	"b2downloader/internal/models"
	"b2downloader/pkg/utils"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

var funcs = template.FuncMap{
	"time":  utils.FormatTime,
	"bytes": utils.FormatBytes,
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

var templates = map[models.Outcome]messageTemplate{
	models.OutcomeSuccess: {
		subject: mustTemplate("success-subject", `B2 backup download succeeded: {{.Succeeded}} file(s) from {{.Bucket}}`),
		body: mustTemplate("success-body", `B2 backup download completed at {{time .Timestamp}}.

Bucket:     {{.Bucket}}
Downloaded: {{.Succeeded}} of {{.Total}} file(s), {{bytes .Bytes}}
{{- if .Failed}}
Failed:     {{.Failed}} file(s), see the run log for details
{{- end}}
Duration:   {{.Duration}}
Run ID:     {{.RunID}}
`),
	},
	models.OutcomeFailure: {
		subject: mustTemplate("failure-subject", `B2 backup download FAILED{{if .Bucket}} for {{.Bucket}}{{end}}`),
		body: mustTemplate("failure-body", `B2 backup download failed at {{time .Timestamp}}.

Error: {{.Error}}
{{- if .Total}}
Attempted: {{.Total}} file(s), {{.Succeeded}} downloaded, {{.Failed}} failed
{{- end}}
Run ID: {{.RunID}}
`),
	},
	models.OutcomeEmpty: {
		subject: mustTemplate("empty-subject", `B2 backup download: no files found in {{.Bucket}}`),
		body: mustTemplate("empty-body", `B2 backup download finished at {{time .Timestamp}}.

No files were found in bucket {{.Bucket}}; nothing was downloaded.
Run ID: {{.RunID}}
`),
	},
}
