package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kirillkom/docstream/internal/adapters/resourcetable"
	"github.com/kirillkom/docstream/internal/config"
	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
	"github.com/kirillkom/docstream/internal/core/usecase"
	"github.com/kirillkom/docstream/internal/infrastructure/allocator/httpcode"
	"github.com/kirillkom/docstream/internal/infrastructure/resilience"
	"github.com/kirillkom/docstream/internal/infrastructure/transport/httpupload"
	"github.com/kirillkom/docstream/internal/observability/logging"
)

// uploader is the command-line front of the upload pipeline: it validates
// and queues the given files, runs one batch invocation against the backend
// and, for split submissions, polls until every placeholder settles.
func main() {
	cfg := config.Load()

	backendURL := flag.String("backend", cfg.BackendBaseURL, "backend base URL")
	projectID := flag.String("project", cfg.ProjectID, "project id the uploads belong to")
	split := flag.Bool("split", false, "submit PDFs as multi-invoice documents")
	splitMode := flag.String("split-mode", string(domain.SplitModeAuto), "split mode: auto or manual")
	pageRanges := flag.String("pages", "", "manual page ranges, e.g. \"1-2,3\"")
	wait := flag.Duration("wait", 2*time.Minute, "how long to wait for split placeholders to settle")
	flag.Parse()

	logger := logging.Setup("docstream-uploader", cfg.LogLevel)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: uploader [flags] file...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *projectID == "" {
		log.Fatal("a project id is required (-project or PROJECT_ID)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := selectFiles(flag.Args())
	if err != nil {
		log.Fatalf("read selection: %v", err)
	}

	validator := usecase.NewFileValidator(int64(cfg.MaxFileSizeMB) << 20)
	session := usecase.NewUploadSession(validator, usecase.SessionConfig{
		MaxBatchSize:     cfg.MaxBatchSize,
		MaxSelectionSize: int64(cfg.MaxSelectionGB) << 30,
	})

	selection := session.Select(files)
	for _, rejected := range selection.Rejected {
		logger.Warn("file_rejected", "name", rejected.Name, "kind", rejected.Kind, "reason", rejected.Reason)
	}
	if selection.Warning != "" {
		logger.Warn("selection_warning", "warning", selection.Warning)
	}
	if len(selection.Accepted) == 0 {
		log.Fatal("no files accepted for upload")
	}

	if *split {
		for _, item := range selection.Accepted {
			if item.MimeType != "application/pdf" {
				continue
			}
			err := session.SetSplitOptions(item.LocalID, true, domain.SplitMode(*splitMode), *pageRanges)
			if err != nil {
				logger.Warn("split_options_rejected", "name", item.Name, "error", err)
			}
		}
	}

	transport := httpupload.New(*backendURL, 5*time.Minute)
	reservoir := httpcode.New(*backendURL, 30*time.Second)
	table := resourcetable.New()
	bridge := usecase.NewOptimisticResourceBridge(table)
	placeholders := usecase.NewPlaceholderSet()
	sink := &logSink{logger: logger}

	splitter := usecase.NewSplitPipelineAdapter(
		transport, transport, sink, placeholders,
		*projectID, time.Duration(cfg.PlaceholderFetchDelayMs)*time.Millisecond,
	)
	engine := usecase.NewBatchUploadEngine(session, reservoir, transport, bridge, splitter, sink,
		usecase.BatchEngineConfig{
			MaxConcurrent: cfg.MaxConcurrentUploads,
			WindowDelay:   time.Duration(cfg.InterBatchDelayMs) * time.Millisecond,
			ProjectID:     *projectID,
			Namespace:     cfg.Namespace,
			Type:          cfg.ResourceType,
		}, logger)
	orchestrator := usecase.NewOrchestrator(session, engine)

	summary, err := orchestrator.Run(ctx)
	if err != nil {
		log.Fatalf("upload invocation failed: %v", err)
	}
	logger.Info("batch_summary",
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
	)

	if len(placeholders.Pending()) > 0 {
		reconciler := usecase.NewPlaceholderReconciler(
			placeholders, transport,
			resilience.NewExecutor(resilience.Config{}),
			time.Duration(cfg.PollIntervalMs)*time.Millisecond,
			logger,
		)
		waitForPlaceholders(ctx, reconciler, placeholders, *wait, logger)
	}

	for _, row := range table.Rows() {
		logger.Info("resource_row", "name", row.Name, "status", string(row.Status), "code", row.Resource.Code)
	}
	for _, ph := range placeholders.List() {
		logger.Info("placeholder", "name", ph.OriginalName, "status", string(ph.Status))
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func selectFiles(paths []string) ([]ports.SelectedFile, error) {
	files := make([]ports.SelectedFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		// One handle for page inspection, fresh handles per upload attempt.
		inspect, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		path := path
		files = append(files, ports.SelectedFile{
			Name:     filepath.Base(path),
			Size:     info.Size(),
			MimeType: mimeTypeFor(path),
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
			ReaderAt: inspect,
		})
	}
	return files, nil
}

func mimeTypeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func waitForPlaceholders(
	ctx context.Context,
	reconciler *usecase.PlaceholderReconciler,
	placeholders *usecase.PlaceholderSet,
	wait time.Duration,
	logger *slog.Logger,
) {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		reconciler.PollOnce(ctx)
		if len(placeholders.Pending()) == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
	logger.Warn("placeholders_still_pending", "count", len(placeholders.Pending()))
}

// logSink surfaces upload lifecycle events on the process logger; a UI
// embedding the pipeline would swap in its own sink.
type logSink struct {
	logger *slog.Logger
}

func (s *logSink) OnResourceUploaded(res domain.Resource) {
	s.logger.Info("resource_uploaded", "id", res.ID, "title", res.Title, "code", res.Code)
}

func (s *logSink) OnResourceUploadFailed(tempID string) {
	s.logger.Warn("resource_upload_failed", "temp_id", tempID)
}

func (s *logSink) OnMultiInvoiceUploadStarted(name string) {
	s.logger.Info("multi_invoice_upload_started", "name", name)
}

func (s *logSink) OnPreResourceCreated(pre domain.PreResource) {
	s.logger.Info("pre_resource_created", "id", pre.ID, "name", pre.OriginalName)
}
