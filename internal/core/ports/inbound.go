package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// SelectedFile is a handle to one user-selected file. Open is called lazily
// per upload attempt. ReaderAt is optional; when absent, page inspection is
// skipped and PageCount stays zero.
type SelectedFile struct {
	Name     string
	Size     int64
	MimeType string
	Open     func() (io.ReadCloser, error)
	ReaderAt io.ReaderAt
}

// RejectedFile records a file refused at selection time.
type RejectedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Kind   string `json:"kind"`
}

// SelectionResult is the outcome of adding a batch of files to a session.
// Warning aggregates capacity overflow into a single message rather than one
// per rejected file.
type SelectionResult struct {
	Accepted []domain.UploadItem `json:"accepted"`
	Rejected []RejectedFile      `json:"rejected"`
	Warning  string              `json:"warning,omitempty"`
}

// UploadOrchestrator is the inbound contract for the upload subsystem.
type UploadOrchestrator interface {
	Select(files []SelectedFile) SelectionResult
	Remove(localID string) error
	SetSplitOptions(localID string, splittable bool, mode domain.SplitMode, pageRanges string) error
	Retry(localID string) error
	Items() []domain.UploadItem
	Run(ctx context.Context) (domain.BatchSummary, error)
}

// SplitProcessor is the inbound contract for asynchronous split processing.
type SplitProcessor interface {
	ProcessByID(ctx context.Context, preResourceID string) error
}
