package usecase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

type SessionConfig struct {
	// MaxBatchSize caps the number of concurrently queued items.
	MaxBatchSize int
	// MaxSelectionSize is the absolute per-file byte cap enforced at
	// selection time, before the validator's document-size ceiling.
	MaxSelectionSize int64
}

func (c SessionConfig) normalize() SessionConfig {
	out := c
	if out.MaxBatchSize <= 0 {
		out.MaxBatchSize = 25
	}
	if out.MaxSelectionSize <= 0 {
		out.MaxSelectionSize = 2 << 30
	}
	return out
}

// queuedFile pairs an UploadItem with the file handle it was created from.
type queuedFile struct {
	item domain.UploadItem
	file ports.SelectedFile
}

// UploadSession owns the per-session UploadItem table. It is the single
// source of truth the UI renders from; items are mutated only by the engine
// (state, progress) and by user actions permitted while an item is pending.
type UploadSession struct {
	validator ports.FileValidator
	cfg       SessionConfig

	mu        sync.Mutex
	order     []string
	items     map[string]*queuedFile
	uploading bool
	closed    bool
}

func NewUploadSession(validator ports.FileValidator, cfg SessionConfig) *UploadSession {
	return &UploadSession{
		validator: validator,
		cfg:       cfg.normalize(),
		items:     make(map[string]*queuedFile),
	}
}

// Select screens a batch of user-selected files and queues the accepted
// ones. Files beyond the session capacity are rejected with a "capacity"
// kind and reported through one aggregate warning, not one per file.
func (s *UploadSession) Select(files []ports.SelectedFile) ports.SelectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ports.SelectionResult{Warning: "session is closed"}
	}

	remaining := s.cfg.MaxBatchSize - len(s.items)
	if remaining < 0 {
		remaining = 0
	}

	// Validation comes before capacity accounting: a rejected file must not
	// burn a slot a valid file further down the selection could have used.
	var result ports.SelectionResult
	overflow := 0
	for _, file := range files {
		if file.Size > s.cfg.MaxSelectionSize {
			result.Rejected = append(result.Rejected, ports.RejectedFile{
				Name:   file.Name,
				Reason: fmt.Sprintf("size exceeds absolute limit of %dGB", s.cfg.MaxSelectionSize>>30),
				Kind:   "validation",
			})
			continue
		}

		verdict := s.validator.Validate(file)
		if !verdict.Accepted {
			result.Rejected = append(result.Rejected, ports.RejectedFile{
				Name:   file.Name,
				Reason: verdict.Reason,
				Kind:   "validation",
			})
			continue
		}

		if len(result.Accepted) >= remaining {
			overflow++
			result.Rejected = append(result.Rejected, ports.RejectedFile{
				Name:   file.Name,
				Reason: "batch capacity reached",
				Kind:   "capacity",
			})
			continue
		}

		item := domain.UploadItem{
			LocalID:            uuid.NewString(),
			TempResourceID:     "tmp-" + uuid.NewString(),
			Name:               file.Name,
			ByteSize:           file.Size,
			MimeType:           file.MimeType,
			State:              domain.StateUploadPending,
			PageCount:          verdict.PageCount,
			SplitMode:          domain.SplitModeAuto,
			ValidationComplete: true,
			ValidationWarning:  verdict.Warning,
			CreatedAt:          time.Now().UTC(),
		}
		s.items[item.LocalID] = &queuedFile{item: item, file: file}
		s.order = append(s.order, item.LocalID)
		result.Accepted = append(result.Accepted, item)
	}

	if overflow > 0 {
		result.Warning = fmt.Sprintf(
			"%d files rejected: at most %d items can be queued at once", overflow, s.cfg.MaxBatchSize,
		)
	}
	return result
}

// Remove drops a queued item. Permitted only while the item is pending and
// no upload invocation is running.
func (s *UploadSession) Remove(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.mutableSlot(localID)
	if err != nil {
		return err
	}
	delete(s.items, localID)
	for i, id := range s.order {
		if id == slot.item.LocalID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetSplitOptions toggles the multi-invoice flag and split hints of a
// pending item. ManualPageRanges is stored verbatim, never parsed here.
func (s *UploadSession) SetSplitOptions(localID string, splittable bool, mode domain.SplitMode, pageRanges string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.mutableSlot(localID)
	if err != nil {
		return err
	}
	if mode == "" {
		mode = domain.SplitModeAuto
	}
	slot.item.Splittable = splittable
	slot.item.SplitMode = mode
	slot.item.ManualPageRanges = pageRanges
	return nil
}

// Retry re-enters pending after a terminal error. The old TempResourceID is
// retired; temp ids are never reused once an item has resolved.
func (s *UploadSession) Retry(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.items[localID]
	if !ok {
		return domain.WrapError(domain.ErrResourceNotFound, "retry item", errors.New(localID))
	}
	if slot.item.State != domain.StateUploadError {
		return domain.WrapError(domain.ErrBadRequest, "retry item",
			fmt.Errorf("state %s is not retryable", slot.item.State))
	}
	slot.item.State = domain.StateUploadPending
	slot.item.TempResourceID = "tmp-" + uuid.NewString()
	slot.item.Progress = 0
	slot.item.ErrorDetail = ""
	slot.item.ErrorKind = ""
	slot.item.ErrorRetryable = false
	slot.item.Code = ""
	return nil
}

// Items returns a snapshot of all queued items in selection order.
func (s *UploadSession) Items() []domain.UploadItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.UploadItem, 0, len(s.order))
	for _, id := range s.order {
		if slot, ok := s.items[id]; ok {
			out = append(out, slot.item)
		}
	}
	return out
}

func (s *UploadSession) Item(localID string) (domain.UploadItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.items[localID]
	if !ok {
		return domain.UploadItem{}, false
	}
	return slot.item, true
}

// Close tears the session down. In-flight windows are abandoned gracefully:
// the engine keeps running transfers to completion but surfaces no further
// sink callbacks.
func (s *UploadSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *UploadSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// beginUpload flips the busy guard and snapshots the items eligible for this
// invocation. Exactly one invocation may run at a time.
func (s *UploadSession) beginUpload() ([]queuedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.WrapError(domain.ErrBadRequest, "begin upload", errors.New("session is closed"))
	}
	if s.uploading {
		return nil, domain.ErrBusy
	}

	var queued []queuedFile
	for _, id := range s.order {
		slot, ok := s.items[id]
		if !ok {
			continue
		}
		if slot.item.State == domain.StateUploadPending && slot.item.ValidationComplete {
			queued = append(queued, *slot)
		}
	}
	s.uploading = true
	return queued, nil
}

func (s *UploadSession) endUpload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
}

func (s *UploadSession) setState(localID string, state domain.UploadState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.items[localID]; ok {
		slot.item.State = state
	}
}

func (s *UploadSession) setCode(localID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.items[localID]; ok {
		slot.item.Code = code
	}
}

// setProgress keeps progress monotonically non-decreasing while uploading.
func (s *UploadSession) setProgress(localID string, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.items[localID]
	if !ok || slot.item.State != domain.StateUploading {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent > slot.item.Progress {
		slot.item.Progress = percent
	}
}

func (s *UploadSession) markCompleted(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.items[localID]; ok {
		slot.item.State = domain.StateUploadCompleted
		slot.item.Progress = 100
	}
}

func (s *UploadSession) markError(localID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.items[localID]; ok {
		slot.item.State = domain.StateUploadError
		slot.item.ErrorDetail = err.Error()
		slot.item.ErrorKind = domain.ErrorKind(err)
		slot.item.ErrorRetryable = domain.Retryable(err)
	}
}

// mutableSlot guards user mutations: pending item, no invocation running.
func (s *UploadSession) mutableSlot(localID string) (*queuedFile, error) {
	if s.uploading {
		return nil, domain.ErrBusy
	}
	slot, ok := s.items[localID]
	if !ok {
		return nil, domain.WrapError(domain.ErrResourceNotFound, "find item", errors.New(localID))
	}
	if slot.item.State != domain.StateUploadPending {
		return nil, domain.WrapError(domain.ErrBadRequest, "mutate item",
			fmt.Errorf("item is %s, not pending", slot.item.State))
	}
	return slot, nil
}
