package domain

import "time"

// Resource is a persisted business document record.
type Resource struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Filename    string    `json:"filename"`
	Namespace   string    `json:"namespace,omitempty"`
	Type        string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	Code        string    `json:"code,omitempty"`
	MimeType    string    `json:"mime_type"`
	ByteSize    int64     `json:"byte_size"`
	StoragePath string    `json:"storage_path"`
	// ParentID links a child produced by the split pipeline to its pre-resource.
	ParentID  string    `json:"parent_id,omitempty"`
	PageFrom  int       `json:"page_from,omitempty"`
	PageTo    int       `json:"page_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PreResourceStatus string

const (
	PreResourcePending  PreResourceStatus = "pending"
	PreResourceResolved PreResourceStatus = "resolved"
	PreResourceFailed   PreResourceStatus = "failed"
)

// PreResource is the provisional backend record for a multi-invoice
// submission, created on split acceptance and resolved by the worker once
// child resources exist.
type PreResource struct {
	ID           string            `json:"id"`
	ProjectID    string            `json:"project_id"`
	OriginalName string            `json:"original_name"`
	MimeType     string            `json:"mime_type"`
	ByteSize     int64             `json:"byte_size"`
	StoragePath  string            `json:"storage_path"`
	SplitMode    SplitMode         `json:"split_mode"`
	PageRanges   string            `json:"page_ranges,omitempty"`
	Status       PreResourceStatus `json:"status"`
	Error        string            `json:"error,omitempty"`
	ChildCount   int               `json:"child_count"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ReservedCode is a uniqueness token minted by the backend ahead of upload.
// Codes are monotonic and never recycled; an unconsumed code owned by a
// failed item is discarded, not returned to a pool.
type ReservedCode struct {
	Code     string `json:"code"`
	Consumed bool   `json:"consumed"`
}

// PageSpan is an inclusive 1-based page interval of a split plan.
type PageSpan struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type ResourceRowStatus string

const (
	RowUploading ResourceRowStatus = "uploading"
	RowReady     ResourceRowStatus = "ready"
	RowPending   ResourceRowStatus = "pending"
)

// ResourceRow is one entry of the externally-owned resource list. TempID is
// the correlation id every optimistic write carries; Resource is zero until
// the row is replaced by a server-confirmed record.
type ResourceRow struct {
	TempID   string            `json:"temp_id"`
	Name     string            `json:"name"`
	Status   ResourceRowStatus `json:"status"`
	Resource Resource          `json:"resource,omitempty"`
}

type PlaceholderStatus string

const (
	PlaceholderPending  PlaceholderStatus = "pending"
	PlaceholderResolved PlaceholderStatus = "resolved"
	PlaceholderFailed   PlaceholderStatus = "failed"
)

// PlaceholderResource is the UI-side provisional row shown for a split
// submission before the backend finishes splitting.
type PlaceholderResource struct {
	ID           string            `json:"id"`
	OriginalName string            `json:"original_name"`
	Status       PlaceholderStatus `json:"status"`
}
