package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

type engineFixture struct {
	session      *UploadSession
	transport    *fakeTransport
	reservoir    *fakeReservoir
	list         *fakeList
	bridge       *OptimisticResourceBridge
	sink         *fakeSink
	placeholders *PlaceholderSet
	engine       *BatchUploadEngine
}

func newEngineFixture(t *testing.T, cfg BatchEngineConfig) *engineFixture {
	t.Helper()

	session := newTestSession(25)
	transport := newFakeTransport()
	reservoir := &fakeReservoir{}
	list := &fakeList{}
	bridge := NewOptimisticResourceBridge(list)
	sink := &fakeSink{}
	placeholders := NewPlaceholderSet()

	if cfg.ProjectID == "" {
		cfg.ProjectID = "proj-1"
	}
	splitter := NewSplitPipelineAdapter(transport, transport, sink, placeholders, cfg.ProjectID, 0)
	engine := NewBatchUploadEngine(session, reservoir, transport, bridge, splitter, sink, cfg, nil)

	return &engineFixture{
		session:      session,
		transport:    transport,
		reservoir:    reservoir,
		list:         list,
		bridge:       bridge,
		sink:         sink,
		placeholders: placeholders,
		engine:       engine,
	}
}

func (f *engineFixture) selectFiles(t *testing.T, names ...string) []domain.UploadItem {
	t.Helper()
	files := make([]ports.SelectedFile, 0, len(names))
	for _, name := range names {
		files = append(files, fileFromBytes(name, "application/pdf", []byte("payload")))
	}
	result := f.session.Select(files)
	if len(result.Accepted) != len(names) {
		t.Fatalf("expected %d accepted, got %d", len(names), len(result.Accepted))
	}
	return result.Accepted
}

func TestRunWithEmptySessionIsANoOp(t *testing.T) {
	f := newEngineFixture(t, BatchEngineConfig{})

	summary, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if len(f.reservoir.minted) != 0 {
		t.Fatal("expected no code reservation for an empty batch")
	}
}

func TestRunUploadsAllItemsAndAssignsCodesInOrder(t *testing.T) {
	f := newEngineFixture(t, BatchEngineConfig{MaxConcurrent: 1})
	f.selectFiles(t, "a.pdf", "b.pdf", "c.pdf")

	summary, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Successful != 3 || summary.Failed != 0 || summary.Total != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	items := f.session.Items()
	for i, item := range items {
		if item.State != domain.StateUploadCompleted {
			t.Fatalf("item %s: expected completed, got %s", item.Name, item.State)
		}
		if item.Progress != 100 {
			t.Fatalf("item %s: expected progress 100, got %d", item.Name, item.Progress)
		}
		if item.Code == "" {
			t.Fatalf("item %s: expected a reserved code", item.Name)
		}
		if i > 0 && items[i-1].Code >= item.Code {
			t.Fatalf("expected codes assigned in selection order, got %q then %q", items[i-1].Code, item.Code)
		}
	}

	// With a window of one, transfers run strictly in selection order.
	if len(f.transport.uploaded) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(f.transport.uploaded))
	}
	for i, want := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		if f.transport.uploaded[i].Title != want {
			t.Fatalf("upload %d: expected %s, got %s", i, want, f.transport.uploaded[i].Title)
		}
	}

	rows := f.list.snapshot()
	if len(rows) != 3 {
		t.Fatalf("expected 3 confirmed rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Status != domain.RowReady {
			t.Fatalf("expected ready row, got %+v", row)
		}
	}
	if len(f.sink.uploaded) != 3 {
		t.Fatalf("expected 3 uploaded callbacks, got %d", len(f.sink.uploaded))
	}
}

func TestRunIsolatesItemFailures(t *testing.T) {
	f := newEngineFixture(t, BatchEngineConfig{MaxConcurrent: 2})
	f.selectFiles(t, "ok.pdf", "bad.pdf", "also-ok.pdf")
	f.transport.failNames["bad.pdf"] = domain.WrapError(domain.ErrServer, "upload", errors.New("http 500"))

	summary, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Successful != 2 || summary.Failed != 1 || summary.Total != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Successful+summary.Failed != summary.Total {
		t.Fatalf("summary does not add up: %+v", summary)
	}

	var failed domain.UploadItem
	for _, item := range f.session.Items() {
		if item.Name == "bad.pdf" {
			failed = item
			continue
		}
		if item.State != domain.StateUploadCompleted {
			t.Fatalf("sibling %s should complete, got %s", item.Name, item.State)
		}
	}
	if failed.State != domain.StateUploadError {
		t.Fatalf("expected error state, got %s", failed.State)
	}
	if failed.ErrorKind != "server" || !failed.ErrorRetryable {
		t.Fatalf("expected retryable server error, got kind=%q retryable=%v", failed.ErrorKind, failed.ErrorRetryable)
	}

	// The failed item's optimistic row is rolled back; only confirmed rows stay.
	rows := f.list.snapshot()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after rollback, got %d", len(rows))
	}
	for _, row := range rows {
		if row.TempID == failed.TempResourceID {
			t.Fatal("failed item's row must be evicted")
		}
	}
	if len(f.sink.failed) != 1 || f.sink.failed[0] != failed.TempResourceID {
		t.Fatalf("expected one failure callback for %s, got %v", failed.TempResourceID, f.sink.failed)
	}
}

func TestRunAbortsWhenReservationFails(t *testing.T) {
	f := newEngineFixture(t, BatchEngineConfig{})
	f.selectFiles(t, "a.pdf", "b.pdf")
	f.reservoir.err = domain.WrapError(domain.ErrServer, "reserve", errors.New("http 503"))

	_, err := f.engine.Run(context.Background())
	if !domain.IsKind(err, domain.ErrAllocation) {
		t.Fatalf("expected allocation error, got %v", err)
	}

	// No item was attempted; everything stays pending for a retry.
	for _, item := range f.session.Items() {
		if item.State != domain.StateUploadPending {
			t.Fatalf("expected pending item, got %s", item.State)
		}
	}
	if len(f.transport.uploaded) != 0 {
		t.Fatal("expected no transfers after reservation failure")
	}
}

func TestRunAbortsOnShortCodeAllocation(t *testing.T) {
	f := newEngineFixture(t, BatchEngineConfig{})
	f.selectFiles(t, "a.pdf", "b.pdf")
	f.reservoir.short = true

	_, err := f.engine.Run(context.Background())
	if !domain.IsKind(err, domain.ErrAllocation) {
		t.Fatalf("expected allocation error on short mint, got %v", err)
	}
}

func TestRunRefusesConcurrentInvocation(t *testing.T) {
	f := newEngineFixture(t, BatchEngineConfig{})
	f.selectFiles(t, "a.pdf")

	if _, err := f.session.beginUpload(); err != nil {
		t.Fatalf("begin upload: %v", err)
	}
	defer f.session.endUpload()

	_, err := f.engine.Run(context.Background())
	if !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestRunContainsTransportPanics(t *testing.T) {
	f := newEngineFixture(t, BatchEngineConfig{})
	f.selectFiles(t, "a.pdf")
	f.transport.uploadPanic = true

	summary, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatalf("a panicking item must not abort the run: %v", err)
	}
	if summary.Failed != 1 || summary.Successful != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	item := f.session.Items()[0]
	if item.State != domain.StateUploadError || item.ErrorKind != "server" {
		t.Fatalf("expected server error record, got %+v", item)
	}
	if len(f.list.snapshot()) != 0 {
		t.Fatal("expected optimistic row rolled back after panic")
	}
}

// uploadTimeline records list and transport events in wall-clock order.
type uploadTimeline struct {
	mu     sync.Mutex
	events []string
}

func (l *uploadTimeline) record(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *uploadTimeline) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

type timelineList struct {
	fakeList
	timeline *uploadTimeline
}

func (l *timelineList) Insert(row domain.ResourceRow) {
	l.timeline.record("insert:" + row.Name)
	l.fakeList.Insert(row)
}

type timelineTransport struct {
	*fakeTransport
	timeline *uploadTimeline
}

func (t *timelineTransport) UploadResource(ctx context.Context, req ports.PlainUploadRequest, progress ports.ProgressFunc) (*domain.Resource, error) {
	res, err := t.fakeTransport.UploadResource(ctx, req, progress)
	t.timeline.record("response:" + req.Title)
	return res, err
}

func TestRunSurfacesOptimisticRowsInOrderBeforeAnyResponse(t *testing.T) {
	// Repeated runs shake out goroutine scheduling: the rows must appear in
	// selection order and all of them before the first transfer returns,
	// regardless of how the window goroutines interleave.
	for i := 0; i < 50; i++ {
		timeline := &uploadTimeline{}
		session := newTestSession(25)
		transport := &timelineTransport{fakeTransport: newFakeTransport(), timeline: timeline}
		list := &timelineList{timeline: timeline}
		bridge := NewOptimisticResourceBridge(list)
		sink := &fakeSink{}
		splitter := NewSplitPipelineAdapter(transport, transport, sink, NewPlaceholderSet(), "proj-1", 0)
		engine := NewBatchUploadEngine(session, &fakeReservoir{}, transport, bridge, splitter, sink,
			BatchEngineConfig{MaxConcurrent: 3, ProjectID: "proj-1"}, nil)

		result := session.Select([]ports.SelectedFile{
			fileFromBytes("a.pdf", "application/pdf", []byte("payload")),
			fileFromBytes("b.pdf", "application/pdf", []byte("payload")),
			fileFromBytes("c.pdf", "application/pdf", []byte("payload")),
		})
		if len(result.Accepted) != 3 {
			t.Fatalf("expected 3 accepted, got %d", len(result.Accepted))
		}

		if _, err := engine.Run(context.Background()); err != nil {
			t.Fatalf("run: %v", err)
		}

		events := timeline.snapshot()
		if len(events) < 3 {
			t.Fatalf("expected at least 3 events, got %v", events)
		}
		for j, want := range []string{"insert:a.pdf", "insert:b.pdf", "insert:c.pdf"} {
			if events[j] != want {
				t.Fatalf("event %d: expected %s, got %s (run %d, events %v)", j, want, events[j], i, events)
			}
		}
		for _, event := range events[3:] {
			if strings.HasPrefix(event, "insert:") {
				t.Fatalf("row inserted after a transfer returned (run %d, events %v)", i, events)
			}
		}
	}
}

func TestRunRoutesSplittableItemsThroughSplitPipeline(t *testing.T) {
	f := newEngineFixture(t, BatchEngineConfig{})
	items := f.selectFiles(t, "multi.pdf", "plain.pdf")
	if err := f.session.SetSplitOptions(items[0].LocalID, true, domain.SplitModeManual, "1-2,3"); err != nil {
		t.Fatalf("set split options: %v", err)
	}

	summary, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Successful != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if len(f.transport.splits) != 1 {
		t.Fatalf("expected 1 split submission, got %d", len(f.transport.splits))
	}
	if f.transport.splits[0].PageRanges != "1-2,3" {
		t.Fatalf("expected verbatim page ranges, got %q", f.transport.splits[0].PageRanges)
	}
	if len(f.transport.uploaded) != 1 {
		t.Fatalf("expected 1 plain upload, got %d", len(f.transport.uploaded))
	}

	// Split submissions surface a placeholder, not an optimistic plain row.
	if len(f.list.snapshot()) != 1 {
		t.Fatalf("expected only the plain row, got %d", len(f.list.snapshot()))
	}
	phs := f.placeholders.List()
	if len(phs) != 1 || phs[0].OriginalName != "multi.pdf" {
		t.Fatalf("expected one placeholder for multi.pdf, got %+v", phs)
	}

	for _, item := range f.session.Items() {
		if item.State != domain.StateUploadCompleted {
			t.Fatalf("item %s: expected completed, got %s", item.Name, item.State)
		}
	}
	if len(f.sink.multiStarted) != 1 || len(f.sink.preCreated) != 1 {
		t.Fatalf("expected split lifecycle callbacks, got started=%v pre=%d", f.sink.multiStarted, len(f.sink.preCreated))
	}
}

func TestRunSplitFailureLeavesNoPlaceholder(t *testing.T) {
	f := newEngineFixture(t, BatchEngineConfig{})
	items := f.selectFiles(t, "multi.pdf")
	if err := f.session.SetSplitOptions(items[0].LocalID, true, domain.SplitModeAuto, ""); err != nil {
		t.Fatalf("set split options: %v", err)
	}
	f.transport.splitErr = domain.WrapError(domain.ErrPayloadTooLarge, "submit split", errors.New("http 413"))

	summary, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	item := f.session.Items()[0]
	if item.State != domain.StateUploadError || item.ErrorKind != "payload_too_large" {
		t.Fatalf("expected payload_too_large error, got %+v", item)
	}
	if item.ErrorRetryable {
		t.Fatal("a 413 is not retryable")
	}
	if len(f.placeholders.List()) != 0 {
		t.Fatal("expected no placeholder after rejected submission")
	}
}

func TestRunPacesWindowsWithConfiguredDelay(t *testing.T) {
	f := newEngineFixture(t, BatchEngineConfig{MaxConcurrent: 1, WindowDelay: 30 * time.Millisecond})
	f.selectFiles(t, "a.pdf", "b.pdf", "c.pdf")

	start := time.Now()
	summary, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Successful != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	// Three windows, the limiter admits the first immediately.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("expected at least two inter-window delays, elapsed %v", elapsed)
	}
}
