package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

type BatchEngineConfig struct {
	// MaxConcurrent is the window size: uploads in flight at once.
	MaxConcurrent int
	// WindowDelay paces window starts to smooth load on the storage backend.
	WindowDelay time.Duration
	// ProjectID scopes every upload of this session.
	ProjectID string
	Namespace string
	Type      string
}

func (c BatchEngineConfig) normalize() BatchEngineConfig {
	out := c
	if out.MaxConcurrent <= 0 {
		out.MaxConcurrent = 4
	}
	if out.WindowDelay < 0 {
		out.WindowDelay = 0
	}
	return out
}

// BatchUploadEngine drives one upload invocation: reserve codes up front,
// then upload in ordered windows of MaxConcurrent, waiting for every upload
// in a window to settle before the next window starts.
type BatchUploadEngine struct {
	session   *UploadSession
	codes     ports.CodeReservoir
	transport ports.UploadTransport
	bridge    *OptimisticResourceBridge
	splitter  *SplitPipelineAdapter
	sink      ports.UploadEventSink
	limiter   *rate.Limiter
	cfg       BatchEngineConfig
	logger    *slog.Logger
}

func NewBatchUploadEngine(
	session *UploadSession,
	codes ports.CodeReservoir,
	transport ports.UploadTransport,
	bridge *OptimisticResourceBridge,
	splitter *SplitPipelineAdapter,
	sink ports.UploadEventSink,
	cfg BatchEngineConfig,
	logger *slog.Logger,
) *BatchUploadEngine {
	cfg = cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.WindowDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.WindowDelay), 1)
	}
	return &BatchUploadEngine{
		session:   session,
		codes:     codes,
		transport: transport,
		bridge:    bridge,
		splitter:  splitter,
		sink:      sink,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one upload invocation over the session's pending items.
// Item failures are isolated; only reservation failure or a batch-level
// fault aborts the invocation, leaving every item pending for a user retry.
func (e *BatchUploadEngine) Run(ctx context.Context) (domain.BatchSummary, error) {
	queued, err := e.session.beginUpload()
	if err != nil {
		return domain.BatchSummary{}, err
	}
	// The busy guard is cleared on every exit path, including panics from
	// the transport layer.
	defer e.session.endUpload()

	if len(queued) == 0 {
		return domain.BatchSummary{}, nil
	}

	codes, err := e.codes.Reserve(ctx, len(queued))
	if err != nil {
		return domain.BatchSummary{}, domain.WrapError(domain.ErrAllocation, "reserve codes", err)
	}
	if len(codes) != len(queued) {
		return domain.BatchSummary{}, domain.WrapError(domain.ErrAllocation, "reserve codes",
			fmt.Errorf("requested %d codes, got %d", len(queued), len(codes)))
	}
	for i := range queued {
		queued[i].item.Code = codes[i]
		e.session.setCode(queued[i].item.LocalID, codes[i])
	}

	// Plain-path rows surface synchronously, in selection order, before any
	// transfer starts. Scheduling inside the windows must never reorder them.
	for i := range queued {
		if queued[i].item.Splittable {
			continue
		}
		e.bridge.OnOptimisticInsert(domain.ResourceRow{
			TempID: queued[i].item.TempResourceID,
			Name:   queued[i].item.Name,
			Status: domain.RowUploading,
		})
	}

	var successful, failed int64
	for start := 0; start < len(queued); start += e.cfg.MaxConcurrent {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				// Remaining items never started; they stay pending and their
				// provisional rows come back out.
				for _, q := range queued[start:] {
					if !q.item.Splittable {
						e.bridge.OnRollback(q.item.TempResourceID)
					}
				}
				break
			}
		}

		end := start + e.cfg.MaxConcurrent
		if end > len(queued) {
			end = len(queued)
		}

		var wg sync.WaitGroup
		for _, q := range queued[start:end] {
			wg.Add(1)
			go func(q queuedFile) {
				defer wg.Done()
				if e.uploadOne(ctx, q) {
					atomic.AddInt64(&successful, 1)
				} else {
					atomic.AddInt64(&failed, 1)
				}
			}(q)
		}
		// All-settle join: a failing sibling never cancels the window.
		wg.Wait()
	}

	summary := domain.BatchSummary{
		Successful: int(successful),
		Failed:     int(failed),
		Total:      len(queued),
	}
	e.logger.Info("upload_batch_finished",
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
	)
	return summary, nil
}

// uploadOne runs a single item to a terminal state and reports success.
// Panics from the network layer are contained at the item boundary.
func (e *BatchUploadEngine) uploadOne(ctx context.Context, q queuedFile) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err := domain.WrapError(domain.ErrServer, "upload item", fmt.Errorf("panic: %v", r))
			e.failItem(q, err)
			ok = false
		}
	}()

	e.session.setState(q.item.LocalID, domain.StateUploading)

	var err error
	if q.item.Splittable {
		err = e.uploadSplit(ctx, q)
	} else {
		err = e.uploadPlain(ctx, q)
	}
	if err != nil {
		e.logger.Warn("upload_item_failed",
			"local_id", q.item.LocalID,
			"name", q.item.Name,
			"kind", domain.ErrorKind(err),
			"error", err,
		)
		return false
	}
	return true
}

// uploadPlain is the 1-to-1 path: the optimistic row was inserted by Run
// before the window started, so this only transfers, then replaces or rolls
// back by the row's correlation id.
func (e *BatchUploadEngine) uploadPlain(ctx context.Context, q queuedFile) error {
	body, err := q.file.Open()
	if err != nil {
		err = domain.WrapError(domain.ErrBadRequest, "open file", err)
		e.failItem(q, err)
		return err
	}
	defer body.Close()

	req := ports.PlainUploadRequest{
		FileName:  collisionProofName(q.item.Name),
		ProjectID: e.cfg.ProjectID,
		Title:     q.item.Name,
		Namespace: e.cfg.Namespace,
		Type:      e.cfg.Type,
		Code:      q.item.Code,
		MimeType:  q.item.MimeType,
		ByteSize:  q.item.ByteSize,
		Body:      body,
	}

	res, err := e.transport.UploadResource(ctx, req, e.progressFunc(q.item.LocalID))
	if err != nil {
		e.failItem(q, err)
		return err
	}

	e.session.markCompleted(q.item.LocalID)
	e.bridge.OnReplace(q.item.TempResourceID, *res)
	if !e.session.Closed() {
		e.sink.OnResourceUploaded(*res)
	}
	return nil
}

// uploadSplit is the 1-to-many path: no optimistic plain-resource row, the
// placeholder mechanism carries the feedback instead.
func (e *BatchUploadEngine) uploadSplit(ctx context.Context, q queuedFile) error {
	_, err := e.splitter.SubmitForSplitting(ctx, q.item, q.file, q.item.Code, e.progressFunc(q.item.LocalID))
	if err != nil {
		e.session.markError(q.item.LocalID, err)
		return err
	}
	// Acceptance into the split pipeline is the terminal success signal;
	// the pre-resource record carries the split's own status from here on.
	e.session.markCompleted(q.item.LocalID)
	return nil
}

func (e *BatchUploadEngine) failItem(q queuedFile, err error) {
	e.session.markError(q.item.LocalID, err)
	e.bridge.OnRollback(q.item.TempResourceID)
	if !e.session.Closed() {
		e.sink.OnResourceUploadFailed(q.item.TempResourceID)
	}
}

func (e *BatchUploadEngine) progressFunc(localID string) ports.ProgressFunc {
	return func(sent, total int64) {
		if total <= 0 {
			return
		}
		e.session.setProgress(localID, int(sent*100/total))
	}
}

// collisionProofName appends a uniqueness token so two files with the same
// user-visible name never collide in storage.
func collisionProofName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(filepath.Base(name), ext)
	token := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s_%s%s", base, token, ext)
}
