package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

func fileFromBytes(name, mimeType string, data []byte) ports.SelectedFile {
	return ports.SelectedFile{
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
		ReaderAt: bytes.NewReader(data),
	}
}

type acceptAllValidator struct{}

func (acceptAllValidator) Validate(ports.SelectedFile) domain.Verdict {
	return domain.Verdict{Accepted: true, PageCount: 1}
}

type fakeReservoir struct {
	mu     sync.Mutex
	next   int
	err    error
	short  bool
	minted [][]string
}

func (f *fakeReservoir) Reserve(_ context.Context, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.short && count > 1 {
		count--
	}
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		f.next++
		codes = append(codes, fmt.Sprintf("RC-%06d", f.next))
	}
	f.minted = append(f.minted, codes)
	return codes, nil
}

// fakeTransport implements both UploadTransport and PreResourceFinder.
type fakeTransport struct {
	mu sync.Mutex

	uploadErr   error
	uploadPanic bool
	failNames   map[string]error

	splitErr error

	pres map[string]*domain.PreResource

	uploaded []ports.PlainUploadRequest
	splits   []ports.SplitUploadRequest
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failNames: make(map[string]error),
		pres:      make(map[string]*domain.PreResource),
	}
}

func (f *fakeTransport) UploadResource(_ context.Context, req ports.PlainUploadRequest, progress ports.ProgressFunc) (*domain.Resource, error) {
	if f.uploadPanic {
		panic("transport blew up")
	}

	f.mu.Lock()
	err := f.uploadErr
	if byName, ok := f.failNames[req.Title]; ok {
		err = byName
	}
	f.uploaded = append(f.uploaded, req)
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(req.ByteSize/2, req.ByteSize)
		progress(req.ByteSize, req.ByteSize)
	}
	return &domain.Resource{
		ID:       "res-" + req.Title,
		Title:    req.Title,
		Filename: req.FileName,
		Code:     req.Code,
		ByteSize: req.ByteSize,
	}, nil
}

func (f *fakeTransport) SubmitSplit(_ context.Context, req ports.SplitUploadRequest, progress ports.ProgressFunc) (*domain.PreResource, error) {
	f.mu.Lock()
	f.splits = append(f.splits, req)
	err := f.splitErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(req.ByteSize, req.ByteSize)
	}
	pre := &domain.PreResource{
		ID:           "pre-" + req.FileName,
		OriginalName: req.FileName,
		SplitMode:    req.SplitMode,
		PageRanges:   req.PageRanges,
		Status:       domain.PreResourcePending,
	}
	f.mu.Lock()
	f.pres[pre.ID] = pre
	f.mu.Unlock()
	return pre, nil
}

func (f *fakeTransport) FindPreResource(_ context.Context, id string) (*domain.PreResource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pre, ok := f.pres[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrResourceNotFound, "find pre-resource", fmt.Errorf("%s", id))
	}
	copied := *pre
	return &copied, nil
}

func (f *fakeTransport) setPreStatus(id string, status domain.PreResourceStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pre, ok := f.pres[id]; ok {
		pre.Status = status
	}
}

// fakeList records bridge mutations in order.
type fakeList struct {
	mu   sync.Mutex
	rows []domain.ResourceRow
	ops  []string
}

func (f *fakeList) Insert(row domain.ResourceRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	f.ops = append(f.ops, "insert:"+row.TempID)
}

func (f *fakeList) Replace(tempID string, res domain.Resource) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].TempID == tempID {
			f.rows[i].Resource = res
			f.rows[i].Status = domain.RowReady
			f.ops = append(f.ops, "replace:"+tempID)
			return true
		}
	}
	return false
}

func (f *fakeList) Remove(tempID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].TempID == tempID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			f.ops = append(f.ops, "remove:"+tempID)
			return true
		}
	}
	return false
}

func (f *fakeList) snapshot() []domain.ResourceRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ResourceRow, len(f.rows))
	copy(out, f.rows)
	return out
}

// fakeSink counts lifecycle callbacks.
type fakeSink struct {
	mu           sync.Mutex
	uploaded     []domain.Resource
	failed       []string
	multiStarted []string
	preCreated   []domain.PreResource
}

func (f *fakeSink) OnResourceUploaded(res domain.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, res)
}

func (f *fakeSink) OnResourceUploadFailed(tempID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, tempID)
}

func (f *fakeSink) OnMultiInvoiceUploadStarted(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.multiStarted = append(f.multiStarted, name)
}

func (f *fakeSink) OnPreResourceCreated(pre domain.PreResource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preCreated = append(f.preCreated, pre)
}

// memoryStorage is an in-memory ports.ObjectStorage.
type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Save(_ context.Context, key string, data io.Reader) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = payload
	return nil
}

func (m *memoryStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrResourceNotFound, "open object", fmt.Errorf("%s", key))
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (m *memoryStorage) OpenAt(_ context.Context, key string) (io.ReaderAt, int64, func() error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.objects[key]
	if !ok {
		return nil, 0, nil, domain.WrapError(domain.ErrResourceNotFound, "open object", fmt.Errorf("%s", key))
	}
	return bytes.NewReader(payload), int64(len(payload)), func() error { return nil }, nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// fakeQueue records published pre-resource ids.
type fakeQueue struct {
	mu         sync.Mutex
	published  []string
	publishErr error
}

func (f *fakeQueue) PublishSplitRequested(_ context.Context, preResourceID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, preResourceID)
	return nil
}

func (f *fakeQueue) SubscribeSplitRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

// memoryPreRepo is an in-memory ports.PreResourceRepository.
type memoryPreRepo struct {
	mu   sync.Mutex
	pres map[string]*domain.PreResource
}

func newMemoryPreRepo() *memoryPreRepo {
	return &memoryPreRepo{pres: make(map[string]*domain.PreResource)}
}

func (m *memoryPreRepo) Create(_ context.Context, pre *domain.PreResource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *pre
	m.pres[pre.ID] = &copied
	return nil
}

func (m *memoryPreRepo) GetByID(_ context.Context, id string) (*domain.PreResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pre, ok := m.pres[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrResourceNotFound, "get pre-resource", fmt.Errorf("%s", id))
	}
	copied := *pre
	return &copied, nil
}

func (m *memoryPreRepo) MarkResolved(_ context.Context, id string, childCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pre, ok := m.pres[id]
	if !ok {
		return domain.WrapError(domain.ErrResourceNotFound, "mark resolved", fmt.Errorf("%s", id))
	}
	pre.Status = domain.PreResourceResolved
	pre.ChildCount = childCount
	return nil
}

func (m *memoryPreRepo) MarkFailed(_ context.Context, id string, errMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pre, ok := m.pres[id]
	if !ok {
		return domain.WrapError(domain.ErrResourceNotFound, "mark failed", fmt.Errorf("%s", id))
	}
	pre.Status = domain.PreResourceFailed
	pre.Error = errMessage
	return nil
}

// memoryRepo is an in-memory ports.ResourceRepository.
type memoryRepo struct {
	mu        sync.Mutex
	resources []domain.Resource
	createErr error
}

func (m *memoryRepo) Create(_ context.Context, res *domain.Resource) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, *res)
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*domain.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range m.resources {
		if res.ID == id {
			copied := res
			return &copied, nil
		}
	}
	return nil, domain.WrapError(domain.ErrResourceNotFound, "get resource", fmt.Errorf("%s", id))
}

func (m *memoryRepo) ListByParent(_ context.Context, parentID string) ([]domain.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Resource
	for _, res := range m.resources {
		if res.ParentID == parentID {
			out = append(out, res)
		}
	}
	return out, nil
}

// fakeMinter mints sequential codes.
type fakeMinter struct {
	mu   sync.Mutex
	next int
	err  error
}

func (f *fakeMinter) Mint(_ context.Context, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		f.next++
		codes = append(codes, fmt.Sprintf("RC-%06d", f.next))
	}
	return codes, nil
}

// fakePlanner returns a fixed plan.
type fakePlanner struct {
	spans []domain.PageSpan
	err   error
}

func (f *fakePlanner) Plan(context.Context, *domain.PreResource, io.ReaderAt, int64) ([]domain.PageSpan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.spans, nil
}
