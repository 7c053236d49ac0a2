package models

import "errors"

// Run-level error categories. Stage failures wrap one of these so callers can
// classify them with errors.Is.
var (
	// ErrConfiguration indicates a required setting is missing or invalid.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuth indicates the storage backend rejected the credentials or was unreachable.
	ErrAuth = errors.New("authorization failed")

	// ErrBucketNotFound indicates the named bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrConnection indicates the object listing could not be established or was interrupted.
	ErrConnection = errors.New("listing failed")

	// ErrPrepare indicates the download root could not be created.
	ErrPrepare = errors.New("download directory unavailable")

	// ErrPathTraversal indicates an object name would resolve outside the download root.
	ErrPathTraversal = errors.New("path escapes download root")

	// ErrTransfer indicates a single object could not be downloaded.
	ErrTransfer = errors.New("transfer failed")

	// ErrNotify indicates the mail transport failed.
	ErrNotify = errors.New("notification failed")
)
