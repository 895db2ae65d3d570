package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// PlaceholderSet is the session-scoped registry of provisional split rows.
// The adapter creates entries; the reconciler resolves or fails them.
type PlaceholderSet struct {
	mu    sync.Mutex
	order []string
	byID  map[string]domain.PlaceholderResource
}

func NewPlaceholderSet() *PlaceholderSet {
	return &PlaceholderSet{byID: make(map[string]domain.PlaceholderResource)}
}

func (p *PlaceholderSet) Put(ph domain.PlaceholderResource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byID[ph.ID]; !ok {
		p.order = append(p.order, ph.ID)
	}
	p.byID[ph.ID] = ph
}

func (p *PlaceholderSet) Get(id string) (domain.PlaceholderResource, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ph, ok := p.byID[id]
	return ph, ok
}

// SetStatus updates a placeholder in place. Unknown ids are ignored.
func (p *PlaceholderSet) SetStatus(id string, status domain.PlaceholderStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ph, ok := p.byID[id]; ok {
		ph.Status = status
		p.byID[id] = ph
	}
}

// Pending lists placeholders still waiting on the split pipeline.
func (p *PlaceholderSet) Pending() []domain.PlaceholderResource {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.PlaceholderResource
	for _, id := range p.order {
		if ph := p.byID[id]; ph.Status == domain.PlaceholderPending {
			out = append(out, ph)
		}
	}
	return out
}

func (p *PlaceholderSet) List() []domain.PlaceholderResource {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.PlaceholderResource, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.byID[id])
	}
	return out
}

// SplitPipelineAdapter submits multi-invoice documents to the split upload
// path and keeps the user informed through a placeholder while the backend
// splits asynchronously. Submissions are never retried automatically.
type SplitPipelineAdapter struct {
	transport    ports.UploadTransport
	finder       ports.PreResourceFinder
	sink         ports.UploadEventSink
	placeholders *PlaceholderSet
	projectID    string
	fetchDelay   time.Duration
}

func NewSplitPipelineAdapter(
	transport ports.UploadTransport,
	finder ports.PreResourceFinder,
	sink ports.UploadEventSink,
	placeholders *PlaceholderSet,
	projectID string,
	fetchDelay time.Duration,
) *SplitPipelineAdapter {
	if fetchDelay < 0 {
		fetchDelay = 0
	}
	return &SplitPipelineAdapter{
		transport:    transport,
		finder:       finder,
		sink:         sink,
		placeholders: placeholders,
		projectID:    projectID,
		fetchDelay:   fetchDelay,
	}
}

// SubmitForSplitting uploads the file on the split path. HTTP-level
// acceptance counts as success; splitting itself finishes later. A pending
// placeholder is surfaced immediately, then a single deferred fetch tries to
// replace it with the authoritative record. If that fetch finds nothing the
// placeholder stays as-is for the poller to resolve.
func (a *SplitPipelineAdapter) SubmitForSplitting(
	ctx context.Context,
	item domain.UploadItem,
	file ports.SelectedFile,
	code string,
	progress ports.ProgressFunc,
) (*domain.PreResource, error) {
	body, err := file.Open()
	if err != nil {
		return nil, domain.WrapError(domain.ErrBadRequest, "open file for split upload", err)
	}
	defer body.Close()

	mode := item.SplitMode
	if mode == "" {
		mode = domain.SplitModeAuto
	}
	req := ports.SplitUploadRequest{
		FileName:  collisionProofName(item.Name),
		ProjectID: a.projectID,
		SplitMode: mode,
		Code:      code,
		MimeType:  item.MimeType,
		ByteSize:  item.ByteSize,
		Body:      body,
	}
	if mode == domain.SplitModeManual {
		// Forwarded verbatim; the backend splitter owns the grammar.
		req.PageRanges = item.ManualPageRanges
	}

	pre, err := a.transport.SubmitSplit(ctx, req, progress)
	if err != nil {
		return nil, err
	}

	a.placeholders.Put(domain.PlaceholderResource{
		ID:           pre.ID,
		OriginalName: item.Name,
		Status:       domain.PlaceholderPending,
	})
	a.sink.OnMultiInvoiceUploadStarted(item.Name)
	a.sink.OnPreResourceCreated(*pre)

	go a.refreshOnce(pre.ID)
	return pre, nil
}

// refreshOnce is the one-shot deferred fetch of the authoritative record.
func (a *SplitPipelineAdapter) refreshOnce(preResourceID string) {
	time.Sleep(a.fetchDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pre, err := a.finder.FindPreResource(ctx, preResourceID)
	if err != nil || pre == nil {
		return
	}
	a.placeholders.SetStatus(pre.ID, placeholderStatusFor(pre.Status))
}

func placeholderStatusFor(status domain.PreResourceStatus) domain.PlaceholderStatus {
	switch status {
	case domain.PreResourceResolved:
		return domain.PlaceholderResolved
	case domain.PreResourceFailed:
		return domain.PlaceholderFailed
	default:
		return domain.PlaceholderPending
	}
}
