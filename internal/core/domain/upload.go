package domain

import "time"

type UploadState string

const (
	StateUploadPending    UploadState = "pending"
	StateUploadValidating UploadState = "validating"
	StateUploading        UploadState = "uploading"
	StateUploadCompleted  UploadState = "completed"
	StateUploadError      UploadState = "error"
)

// IsTerminal reports whether the state can only be left by an explicit
// user retry, never by the engine itself.
func (s UploadState) IsTerminal() bool {
	return s == StateUploadCompleted || s == StateUploadError
}

type SplitMode string

const (
	SplitModeAuto   SplitMode = "auto"
	SplitModeManual SplitMode = "manual"
)

// UploadItem is one user-selected file under session management. Identity is
// the client-generated LocalID; TempResourceID keys the optimistic row in the
// externally owned resource list and is never reused after the item resolves.
type UploadItem struct {
	LocalID        string      `json:"local_id"`
	TempResourceID string      `json:"temp_resource_id"`
	Name           string      `json:"name"`
	ByteSize       int64       `json:"byte_size"`
	MimeType       string      `json:"mime_type"`
	State          UploadState `json:"state"`
	Progress       int         `json:"progress"`
	ErrorDetail    string      `json:"error_detail,omitempty"`
	ErrorKind      string      `json:"error_kind,omitempty"`
	ErrorRetryable bool        `json:"error_retryable,omitempty"`
	PageCount      int         `json:"page_count,omitempty"`

	Splittable       bool      `json:"splittable"`
	SplitMode        SplitMode `json:"split_mode"`
	ManualPageRanges string    `json:"manual_page_ranges,omitempty"`

	ValidationComplete bool   `json:"validation_complete"`
	ValidationWarning  string `json:"validation_warning,omitempty"`

	Code string `json:"code,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// BatchSummary is the aggregate outcome of one upload invocation.
// Successful + Failed always equals Total.
type BatchSummary struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Verdict is the FileValidator outcome for one file. Warning is advisory
// (MIME mismatch, degraded inspection) and never blocks acceptance.
type Verdict struct {
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason,omitempty"`
	Warning   string `json:"warning,omitempty"`
	PageCount int    `json:"page_count,omitempty"`
}
