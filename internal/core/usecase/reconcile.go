package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
	"github.com/kirillkom/docstream/internal/infrastructure/resilience"
)

// PlaceholderReconciler is the polling fallback of the split pipeline: a
// separate, swappable component that discovers resolved or failed
// pre-resources and applies the outcome through the same placeholder
// primitives the adapter uses. It never resubmits anything.
type PlaceholderReconciler struct {
	placeholders *PlaceholderSet
	finder       ports.PreResourceFinder
	executor     *resilience.Executor
	interval     time.Duration
	logger       *slog.Logger
}

func NewPlaceholderReconciler(
	placeholders *PlaceholderSet,
	finder ports.PreResourceFinder,
	executor *resilience.Executor,
	interval time.Duration,
	logger *slog.Logger,
) *PlaceholderReconciler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaceholderReconciler{
		placeholders: placeholders,
		finder:       finder,
		executor:     executor,
		interval:     interval,
		logger:       logger,
	}
}

// Run polls until ctx is cancelled.
func (r *PlaceholderReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.PollOnce(ctx)
		}
	}
}

// PollOnce checks every pending placeholder against the backend store.
func (r *PlaceholderReconciler) PollOnce(ctx context.Context) {
	for _, ph := range r.placeholders.Pending() {
		pre, err := r.fetch(ctx, ph.ID)
		if err != nil {
			if !domain.IsKind(err, domain.ErrResourceNotFound) {
				r.logger.Warn("placeholder_poll_failed", "pre_resource_id", ph.ID, "error", err)
			}
			continue
		}
		if status := placeholderStatusFor(pre.Status); status != domain.PlaceholderPending {
			r.placeholders.SetStatus(ph.ID, status)
			r.logger.Info("placeholder_reconciled", "pre_resource_id", ph.ID, "status", string(status))
		}
	}
}

func (r *PlaceholderReconciler) fetch(ctx context.Context, id string) (*domain.PreResource, error) {
	if r.executor == nil {
		return r.finder.FindPreResource(ctx, id)
	}

	var pre *domain.PreResource
	err := r.executor.Execute(ctx, "pre_resource.find", func(callCtx context.Context) error {
		found, err := r.finder.FindPreResource(callCtx, id)
		if err != nil {
			return err
		}
		pre = found
		return nil
	}, classifyFetchError)
	if err != nil {
		return nil, err
	}
	return pre, nil
}

func classifyFetchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	// A record the worker has not written yet is expected, not a fault.
	if domain.IsKind(err, domain.ErrResourceNotFound) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if domain.Retryable(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
