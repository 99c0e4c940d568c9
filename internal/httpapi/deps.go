package httpapi

import (
	"context"
	"database/sql"
	"sync/atomic"

	"careerwatch/internal/config"
	"careerwatch/internal/domain"
	"careerwatch/internal/events"
	"careerwatch/internal/poll"
	"careerwatch/internal/secrets"
)

// Poller is the read side of poll.Poller.
type Poller interface {
	Status() poll.Status
	Last() (poll.Result, bool)
}

type SnapshotLoader interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
}

type SecretSetter interface {
	Set(k secrets.Kind, cfg config.Config, secret string) error
}

type Deps struct {
	// optional; /history answers 404 without it
	DB *sql.DB

	Hub    *events.Hub
	Poller Poller
	Store  SnapshotLoader

	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string

	// Trigger queues an immediate cycle on the scheduler loop.
	Trigger chan<- struct{}

	Secrets SecretSetter
}
