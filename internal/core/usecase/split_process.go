package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// ProcessSplitUseCase is the worker side of the split pipeline: it turns a
// pending pre-resource into child resources, one per planned page span, and
// marks the pre-resource resolved or failed.
type ProcessSplitUseCase struct {
	preRepo ports.PreResourceRepository
	repo    ports.ResourceRepository
	storage ports.ObjectStorage
	planner ports.SplitPlanner
	minter  ports.CodeMinter
}

func NewProcessSplitUseCase(
	preRepo ports.PreResourceRepository,
	repo ports.ResourceRepository,
	storage ports.ObjectStorage,
	planner ports.SplitPlanner,
	minter ports.CodeMinter,
) *ProcessSplitUseCase {
	return &ProcessSplitUseCase{
		preRepo: preRepo,
		repo:    repo,
		storage: storage,
		planner: planner,
		minter:  minter,
	}
}

func (uc *ProcessSplitUseCase) ProcessByID(ctx context.Context, preResourceID string) error {
	pre, err := uc.preRepo.GetByID(ctx, preResourceID)
	if err != nil {
		return fmt.Errorf("fetch pre-resource: %w", err)
	}
	// Redelivered messages for an already-settled record are a no-op.
	if pre.Status != domain.PreResourcePending {
		return nil
	}

	children, err := uc.split(ctx, pre)
	if err != nil {
		if failErr := uc.preRepo.MarkFailed(ctx, pre.ID, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.preRepo.MarkResolved(ctx, pre.ID, len(children)); err != nil {
		return fmt.Errorf("mark resolved: %w", err)
	}
	return nil
}

func (uc *ProcessSplitUseCase) split(ctx context.Context, pre *domain.PreResource) ([]domain.Resource, error) {
	reader, size, closeFn, err := uc.storage.OpenAt(ctx, pre.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	defer func() {
		_ = closeFn()
	}()

	spans, err := uc.planner.Plan(ctx, pre, reader, size)
	if err != nil {
		return nil, fmt.Errorf("plan split: %w", err)
	}
	if len(spans) == 0 {
		return nil, domain.WrapError(domain.ErrBadRequest, "plan split",
			fmt.Errorf("no page spans for %s", pre.OriginalName))
	}

	codes, err := uc.minter.Mint(ctx, len(spans))
	if err != nil {
		return nil, fmt.Errorf("mint child codes: %w", err)
	}

	now := time.Now().UTC()
	children := make([]domain.Resource, 0, len(spans))
	for i, span := range spans {
		child := domain.Resource{
			ID:          uuid.NewString(),
			ProjectID:   pre.ProjectID,
			Title:       fmt.Sprintf("%s (part %d)", pre.OriginalName, i+1),
			Filename:    pre.OriginalName,
			Code:        codes[i],
			MimeType:    pre.MimeType,
			ByteSize:    pre.ByteSize,
			StoragePath: pre.StoragePath,
			ParentID:    pre.ID,
			PageFrom:    span.From,
			PageTo:      span.To,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := uc.repo.Create(ctx, &child); err != nil {
			return nil, fmt.Errorf("create child resource %d/%d: %w", i+1, len(spans), err)
		}
		children = append(children, child)
	}
	return children, nil
}
