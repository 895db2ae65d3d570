package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// FileValidator screens a selected file before it enters the session.
type FileValidator interface {
	Validate(file SelectedFile) domain.Verdict
}

// CodeReservoir reserves a batch of globally-unique resource codes ahead of
// an upload invocation.
type CodeReservoir interface {
	Reserve(ctx context.Context, count int) ([]string, error)
}

// ProgressFunc receives byte-level transfer progress.
type ProgressFunc func(sent, total int64)

// PlainUploadRequest is the multipart payload of the plain resource path.
type PlainUploadRequest struct {
	FileName    string
	ProjectID   string
	Title       string
	Namespace   string
	Type        string
	Description string
	Code        string
	MimeType    string
	ByteSize    int64
	Body        io.Reader
}

// SplitUploadRequest is the multipart payload of the split submission path.
// PageRanges is forwarded verbatim; the transport never validates it.
type SplitUploadRequest struct {
	FileName   string
	ProjectID  string
	SplitMode  domain.SplitMode
	PageRanges string
	Code       string
	MimeType   string
	ByteSize   int64
	Body       io.Reader
}

// UploadTransport performs the two logical upload paths against the backend.
type UploadTransport interface {
	UploadResource(ctx context.Context, req PlainUploadRequest, progress ProgressFunc) (*domain.Resource, error)
	SubmitSplit(ctx context.Context, req SplitUploadRequest, progress ProgressFunc) (*domain.PreResource, error)
}

// PreResourceFinder reads provisional split records from the backend store.
type PreResourceFinder interface {
	FindPreResource(ctx context.Context, id string) (*domain.PreResource, error)
}

// ResourceList is the externally-owned ordered list the bridge mutates.
// Implementations must keep insertion order for rows never replaced.
type ResourceList interface {
	Insert(row domain.ResourceRow)
	Replace(tempID string, res domain.Resource) bool
	Remove(tempID string) bool
}

// UploadEventSink receives lifecycle callbacks for the surrounding UI.
type UploadEventSink interface {
	OnResourceUploaded(res domain.Resource)
	OnResourceUploadFailed(tempID string)
	OnMultiInvoiceUploadStarted(name string)
	OnPreResourceCreated(pre domain.PreResource)
}

// ResourceRepository persists resource records.
type ResourceRepository interface {
	Create(ctx context.Context, res *domain.Resource) error
	GetByID(ctx context.Context, id string) (*domain.Resource, error)
	ListByParent(ctx context.Context, parentID string) ([]domain.Resource, error)
}

// PreResourceRepository persists provisional split records.
type PreResourceRepository interface {
	Create(ctx context.Context, pre *domain.PreResource) error
	GetByID(ctx context.Context, id string) (*domain.PreResource, error)
	MarkResolved(ctx context.Context, id string, childCount int) error
	MarkFailed(ctx context.Context, id string, errMessage string) error
}

// CodeMinter mints monotonically increasing resource codes server-side.
type CodeMinter interface {
	Mint(ctx context.Context, count int) ([]string, error)
}

// ObjectStorage stores uploaded payloads.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	OpenAt(ctx context.Context, key string) (io.ReaderAt, int64, func() error, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes split pipeline events.
type MessageQueue interface {
	PublishSplitRequested(ctx context.Context, preResourceID string) error
	SubscribeSplitRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// SplitPlanner decides the child-document page spans of a pre-resource.
type SplitPlanner interface {
	Plan(ctx context.Context, pre *domain.PreResource, r io.ReaderAt, size int64) ([]domain.PageSpan, error)
}
