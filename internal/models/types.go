package models

import "time"

type RemoteObject struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	VersionID    string    `json:"version_id"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// IsDirMarker reports whether the object is a zero-length folder placeholder.
func (o RemoteObject) IsDirMarker() bool {
	return len(o.Name) > 0 && o.Name[len(o.Name)-1] == '/'
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}

// CheckResult is the outcome of a connectivity check.
type CheckResult struct {
	BucketName      string    `json:"bucket_name"`
	Endpoint        string    `json:"endpoint,omitempty"`
	Region          string    `json:"region,omitempty"`
	DownloadDir     string    `json:"download_dir"`
	Authorized      bool      `json:"authorized"`
	BucketReachable bool      `json:"bucket_reachable"`
	MailConfigured  bool      `json:"mail_configured"`
	CheckedAt       time.Time `json:"checked_at"`
	Error           string    `json:"error,omitempty"`
}

func (c CheckResult) OK() bool {
	return c.Authorized && c.BucketReachable
}
