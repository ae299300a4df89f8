package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcriess/lightspeed-roster/config"
	"github.com/tcriess/lightspeed-roster/types"
)

// ErrNotFound is returned for absent rosters, run records and default roles.
var ErrNotFound = errors.New("not found")

// Persister stores rosters by channel id, run records and default roles by participant id.
type Persister interface {
	GetRoster(ctx context.Context, channelID string) (*types.RosterSnapshot, error)
	StoreRoster(ctx context.Context, channelID string, roster *types.RosterSnapshot) error
	DeleteRoster(ctx context.Context, channelID string) error
	GetRosters(ctx context.Context) (map[string]*types.RosterSnapshot, error)
	GetRunRecord(ctx context.Context, participantID string) (*types.RunRecord, error)
	StoreRunRecord(ctx context.Context, record *types.RunRecord) error
	GetRunRecords(ctx context.Context) ([]*types.RunRecord, error)
	GetDefaultRole(ctx context.Context, participantID string) (types.Role, error)
	StoreDefaultRole(ctx context.Context, participantID string, role types.Role) error
	Close() error
}

// NewPersister creates the persister selected by cfg.PersistenceConfig.Type.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "", "buntdb":
		return NewBuntPersister(cfg)
	case "sqlite":
		return NewSQLitePersister(cfg)
	case "postgres":
		return NewPostgresPersister(cfg)
	case "gorm-sqlite", "gorm-postgres":
		return NewGormPersister(cfg)
	}
	return nil, fmt.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
}
