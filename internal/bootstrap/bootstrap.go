package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/docstream/internal/config"
	"github.com/kirillkom/docstream/internal/core/ports"
	"github.com/kirillkom/docstream/internal/core/usecase"
	"github.com/kirillkom/docstream/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docstream/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docstream/internal/infrastructure/splitter/pdfsplit"
	"github.com/kirillkom/docstream/internal/infrastructure/storage/localfs"
)

// App wires the backend dependency graph shared by the api and worker
// binaries: postgres repositories, local object storage, the NATS split
// queue and the use cases on top of them.
type App struct {
	Config config.Config

	Queue ports.MessageQueue

	ReserveUC *usecase.ReserveCodesUseCase
	StoreUC   *usecase.StoreResourceUseCase
	SplitUC   *usecase.AcceptSplitUseCase
	FindUC    *usecase.FindPreResourceUseCase
	ProcessUC *usecase.ProcessSplitUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	repo := postgres.NewResourceRepository(db)
	preRepo := postgres.NewPreResourceRepository(db)
	minter := postgres.NewCodeMinter(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	planner := pdfsplit.NewPlanner()

	return &App{
		Config: cfg,
		Queue:  queue,

		ReserveUC: usecase.NewReserveCodesUseCase(minter, cfg.MaxBatchSize),
		StoreUC:   usecase.NewStoreResourceUseCase(repo, storage),
		SplitUC:   usecase.NewAcceptSplitUseCase(preRepo, storage, queue),
		FindUC:    usecase.NewFindPreResourceUseCase(preRepo),
		ProcessUC: usecase.NewProcessSplitUseCase(preRepo, repo, storage, planner, minter),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
