package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// StoreResourceUseCase persists plain-resource uploads: payload to object
// storage, metadata to the repository.
type StoreResourceUseCase struct {
	repo    ports.ResourceRepository
	storage ports.ObjectStorage
}

func NewStoreResourceUseCase(repo ports.ResourceRepository, storage ports.ObjectStorage) *StoreResourceUseCase {
	return &StoreResourceUseCase{repo: repo, storage: storage}
}

func (uc *StoreResourceUseCase) Store(ctx context.Context, req ports.PlainUploadRequest) (*domain.Resource, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return nil, domain.WrapError(domain.ErrBadRequest, "store resource", errors.New("filename is required"))
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, domain.WrapError(domain.ErrBadRequest, "store resource", errors.New("project id is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(req.FileName))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, req.Body); err != nil {
		return nil, fmt.Errorf("save payload: %w", err)
	}

	title := req.Title
	if title == "" {
		title = req.FileName
	}
	res := &domain.Resource{
		ID:          id,
		ProjectID:   req.ProjectID,
		Title:       title,
		Filename:    req.FileName,
		Namespace:   req.Namespace,
		Type:        req.Type,
		Description: req.Description,
		Code:        req.Code,
		MimeType:    req.MimeType,
		ByteSize:    req.ByteSize,
		StoragePath: storageKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, res); err != nil {
		// Keep storage and metadata consistent on a failed insert.
		_ = uc.storage.Delete(ctx, storageKey)
		return nil, fmt.Errorf("create resource metadata: %w", err)
	}
	return res, nil
}

// AcceptSplitUseCase accepts a multi-invoice submission: persists the
// payload, records a pending pre-resource and queues it for the split
// worker. Acceptance here is HTTP-level success; splitting happens later.
type AcceptSplitUseCase struct {
	preRepo ports.PreResourceRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewAcceptSplitUseCase(
	preRepo ports.PreResourceRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *AcceptSplitUseCase {
	return &AcceptSplitUseCase{preRepo: preRepo, storage: storage, queue: queue}
}

func (uc *AcceptSplitUseCase) Accept(ctx context.Context, req ports.SplitUploadRequest) (*domain.PreResource, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return nil, domain.WrapError(domain.ErrBadRequest, "accept split", errors.New("filename is required"))
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, domain.WrapError(domain.ErrBadRequest, "accept split", errors.New("project id is required"))
	}
	mode := req.SplitMode
	if mode == "" {
		mode = domain.SplitModeAuto
	}
	if mode != domain.SplitModeAuto && mode != domain.SplitModeManual {
		return nil, domain.WrapError(domain.ErrBadRequest, "accept split",
			fmt.Errorf("unknown split mode %q", mode))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(req.FileName))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, req.Body); err != nil {
		return nil, fmt.Errorf("save payload: %w", err)
	}

	pre := &domain.PreResource{
		ID:           id,
		ProjectID:    req.ProjectID,
		OriginalName: req.FileName,
		MimeType:     req.MimeType,
		ByteSize:     req.ByteSize,
		StoragePath:  storageKey,
		SplitMode:    mode,
		PageRanges:   req.PageRanges,
		Status:       domain.PreResourcePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.preRepo.Create(ctx, pre); err != nil {
		_ = uc.storage.Delete(ctx, storageKey)
		return nil, fmt.Errorf("create pre-resource: %w", err)
	}

	if err := uc.queue.PublishSplitRequested(ctx, pre.ID); err != nil {
		return nil, fmt.Errorf("publish split request: %w", err)
	}
	return pre, nil
}

// ReserveCodesUseCase mints a batch of globally-unique resource codes.
// Codes are monotonic and never recycled; reserving twice always yields
// disjoint sets.
type ReserveCodesUseCase struct {
	minter   ports.CodeMinter
	maxBatch int
}

func NewReserveCodesUseCase(minter ports.CodeMinter, maxBatch int) *ReserveCodesUseCase {
	if maxBatch <= 0 {
		maxBatch = 25
	}
	return &ReserveCodesUseCase{minter: minter, maxBatch: maxBatch}
}

func (uc *ReserveCodesUseCase) Reserve(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		return nil, domain.WrapError(domain.ErrBadRequest, "reserve codes", errors.New("count must be positive"))
	}
	if count > uc.maxBatch {
		return nil, domain.WrapError(domain.ErrBadRequest, "reserve codes",
			fmt.Errorf("count %d exceeds batch limit %d", count, uc.maxBatch))
	}
	codes, err := uc.minter.Mint(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("mint codes: %w", err)
	}
	return codes, nil
}

// FindPreResourceUseCase reads provisional split records.
type FindPreResourceUseCase struct {
	preRepo ports.PreResourceRepository
}

func NewFindPreResourceUseCase(preRepo ports.PreResourceRepository) *FindPreResourceUseCase {
	return &FindPreResourceUseCase{preRepo: preRepo}
}

func (uc *FindPreResourceUseCase) FindPreResource(ctx context.Context, id string) (*domain.PreResource, error) {
	return uc.preRepo.GetByID(ctx, id)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
