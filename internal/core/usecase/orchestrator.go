package usecase

import (
	"context"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// Orchestrator binds a session and its batch engine into the inbound
// upload contract.
type Orchestrator struct {
	*UploadSession
	engine *BatchUploadEngine
}

var _ ports.UploadOrchestrator = (*Orchestrator)(nil)

func NewOrchestrator(session *UploadSession, engine *BatchUploadEngine) *Orchestrator {
	return &Orchestrator{UploadSession: session, engine: engine}
}

func (o *Orchestrator) Run(ctx context.Context) (domain.BatchSummary, error) {
	return o.engine.Run(ctx)
}
