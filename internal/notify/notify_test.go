package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"b2downloader/config"
	"b2downloader/internal/models"
)

type fakeSender struct {
	msgs []*mail.Msg
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg *mail.Msg) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("send without deadline")
	}
	f.msgs = append(f.msgs, msg)
	return f.err
}

var mailSettings = config.Mail{
	Server:    "smtp.example.com",
	Port:      587,
	Sender:    "backup@example.com",
	Password:  "hunter2",
	Recipient: "ops@example.com",
	Timeout:   5 * time.Second,
}

var finished = time.Date(2025, 3, 1, 2, 30, 0, 0, time.UTC)

func subjectOf(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	subject := msg.GetGenHeader(mail.HeaderSubject)
	require.Len(t, subject, 1)
	return subject[0]
}

func bodyOf(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestNotify_Templates(t *testing.T) {
	tests := []struct {
		name        string
		report      Report
		wantSubject string
		wantBody    []string
	}{
		{
			name: "success",
			report: Report{
				Outcome: models.OutcomeSuccess, Bucket: "nightly-backups", RunID: "run-1",
				Timestamp: finished, Total: 2, Succeeded: 2, Bytes: 2048,
			},
			wantSubject: "B2 backup download succeeded: 2 file(s) from nightly-backups",
			wantBody:    []string{"2025-03-01T02:30:00Z", "Downloaded: 2 of 2 file(s), 2.0 KB", "run-1"},
		},
		{
			name: "partial success",
			report: Report{
				Outcome: models.OutcomeSuccess, Bucket: "nightly-backups", RunID: "run-2",
				Timestamp: finished, Total: 2, Succeeded: 1, Failed: 1, Bytes: 10,
			},
			wantSubject: "B2 backup download succeeded: 1 file(s) from nightly-backups",
			wantBody:    []string{"Downloaded: 1 of 2 file(s)", "Failed:     1 file(s)"},
		},
		{
			name: "failure",
			report: Report{
				Outcome: models.OutcomeFailure, Bucket: "nightly-backups", RunID: "run-3",
				Timestamp: finished, Error: "authorization failed: InvalidAccessKeyId",
			},
			wantSubject: "B2 backup download FAILED for nightly-backups",
			wantBody:    []string{"2025-03-01T02:30:00Z", "Error: authorization failed: InvalidAccessKeyId"},
		},
		{
			name: "empty",
			report: Report{
				Outcome: models.OutcomeEmpty, Bucket: "nightly-backups", RunID: "run-4", Timestamp: finished,
			},
			wantSubject: "B2 backup download: no files found in nightly-backups",
			wantBody:    []string{"No files were found in bucket nightly-backups"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			n := NewWithSender(mailSettings, sender, nil)

			sent, err := n.Notify(context.Background(), tt.report)
			require.NoError(t, err)
			assert.True(t, sent)
			require.Len(t, sender.msgs, 1)

			msg := sender.msgs[0]
			assert.Equal(t, tt.wantSubject, subjectOf(t, msg))
			body := bodyOf(t, msg)
			for _, want := range tt.wantBody {
				assert.Contains(t, body, want)
			}
			assert.Contains(t, body, "ops@example.com")
		})
	}
}

func TestNotify_NotConfigured(t *testing.T) {
	n := New(&config.Config{}, nil)
	assert.False(t, n.Enabled())

	sent, err := n.Notify(context.Background(), Report{Outcome: models.OutcomeSuccess})
	assert.NoError(t, err)
	assert.False(t, sent)
}

func TestNotify_PartialConfigIsDisabled(t *testing.T) {
	cfg := &config.Config{Mail: config.Mail{Server: "smtp.example.com", Port: 587}}
	n := New(cfg, nil)
	assert.False(t, n.Enabled())
}

func TestNotify_InvalidPortIsDisabled(t *testing.T) {
	settings := mailSettings
	settings.Port = 70000
	n := New(&config.Config{Mail: settings}, nil)
	assert.False(t, n.Enabled())

	sent, err := n.Notify(context.Background(), Report{Outcome: models.OutcomeSuccess})
	assert.NoError(t, err)
	assert.False(t, sent)
}

func TestNotify_ConfiguredBuildsSMTPSender(t *testing.T) {
	n := New(&config.Config{Mail: mailSettings}, nil)
	require.True(t, n.Enabled())
	_, ok := n.sender.(*SMTPSender)
	assert.True(t, ok)
}

func TestNotify_TransportFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("dial tcp 10.0.0.1:587: connect: connection refused")}
	n := NewWithSender(mailSettings, sender, nil)

	sent, err := n.Notify(context.Background(), Report{Outcome: models.OutcomeEmpty, Bucket: "b", Timestamp: finished})
	assert.False(t, sent)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotify)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNotify_InvalidAddress(t *testing.T) {
	settings := mailSettings
	settings.Recipient = "not an address"
	sender := &fakeSender{}
	n := NewWithSender(settings, sender, nil)

	sent, err := n.Notify(context.Background(), Report{Outcome: models.OutcomeEmpty, Bucket: "b", Timestamp: finished})
	assert.False(t, sent)
	assert.ErrorIs(t, err, models.ErrNotify)
	assert.Empty(t, sender.msgs)
}

func TestRender_UnknownOutcome(t *testing.T) {
	_, _, err := render(Report{Outcome: "PARTIAL"})
	assert.Error(t, err)
}

func TestReportFromSummary(t *testing.T) {
	s := models.NewRunSummary("run-9", "nightly-backups", finished.Add(-time.Minute))
	s.Record(models.Downloaded{Name: "a.txt", Bytes: 5})
	s.Record(models.NewFailed("b.txt", errors.New("timeout")))
	s.Finalize(finished)

	r := ReportFromSummary(s)
	assert.Equal(t, models.OutcomeSuccess, r.Outcome)
	assert.Equal(t, "run-9", r.RunID)
	assert.Equal(t, "nightly-backups", r.Bucket)
	assert.Equal(t, finished, r.Timestamp)
	assert.Equal(t, 2, r.Total)
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, int64(5), r.Bytes)
	assert.Equal(t, time.Minute, r.Duration)
}
