package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tcriess/lightspeed-roster/config"
	"github.com/tcriess/lightspeed-roster/globals"
	"github.com/tcriess/lightspeed-roster/types"
	"github.com/tidwall/buntdb"
)

const (
	rosterPrefix  = "roster:"
	runPrefix     = "run:"
	defaultPrefix = "default:"
)

type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	db, err := setupBuntDB(cfg)
	if err != nil {
		return nil, err
	}
	return &BuntDBPersist{db}, nil
}

func setupBuntDB(cfg *config.Config) (*buntdb.DB, error) {
	fileName := cfg.PersistenceConfig.DSN
	if fileName == "" {
		fileName = ":memory:"
	}
	db, err := buntdb.Open(fileName)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("runs", runPrefix+"*", buntdb.IndexJSON("total"))
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *BuntDBPersist) get(key string, v interface{}) error {
	return p.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return fmt.Errorf("%s: %w", key, ErrNotFound)
			}
			return err
		}
		return json.Unmarshal([]byte(raw), v)
	})
}

func (p *BuntDBPersist) set(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(raw), nil)
		return err
	})
}

func (p *BuntDBPersist) GetRoster(ctx context.Context, channelID string) (*types.RosterSnapshot, error) {
	roster := types.RosterSnapshot{}
	if err := p.get(rosterPrefix+channelID, &roster); err != nil {
		return nil, err
	}
	return &roster, nil
}

func (p *BuntDBPersist) StoreRoster(ctx context.Context, channelID string, roster *types.RosterSnapshot) error {
	return p.set(rosterPrefix+channelID, roster)
}

func (p *BuntDBPersist) DeleteRoster(ctx context.Context, channelID string) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(rosterPrefix + channelID)
		if errors.Is(err, buntdb.ErrNotFound) {
			return fmt.Errorf("roster %s: %w", channelID, ErrNotFound)
		}
		return err
	})
}

func (p *BuntDBPersist) GetRosters(ctx context.Context) (map[string]*types.RosterSnapshot, error) {
	rosters := make(map[string]*types.RosterSnapshot)
	err := p.db.View(func(tx *buntdb.Tx) error {
		var iterErr error
		err := tx.AscendKeys(rosterPrefix+"*", func(key, value string) bool {
			roster := types.RosterSnapshot{}
			if iterErr = json.Unmarshal([]byte(value), &roster); iterErr != nil {
				globals.AppLogger.Error("could not unmarshal roster", "key", key, "error", iterErr)
				return false
			}
			rosters[strings.TrimPrefix(key, rosterPrefix)] = &roster
			return true
		})
		if err != nil {
			return err
		}
		return iterErr
	})
	if err != nil {
		return nil, err
	}
	return rosters, nil
}

func (p *BuntDBPersist) GetRunRecord(ctx context.Context, participantID string) (*types.RunRecord, error) {
	record := types.RunRecord{}
	if err := p.get(runPrefix+participantID, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (p *BuntDBPersist) StoreRunRecord(ctx context.Context, record *types.RunRecord) error {
	if record.ParticipantId == "" {
		return fmt.Errorf("no participant id")
	}
	return p.set(runPrefix+record.ParticipantId, record)
}

// GetRunRecords returns all run records, most runs first.
func (p *BuntDBPersist) GetRunRecords(ctx context.Context) ([]*types.RunRecord, error) {
	records := make([]*types.RunRecord, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		var iterErr error
		err := tx.Descend("runs", func(key, value string) bool {
			record := types.RunRecord{}
			if iterErr = json.Unmarshal([]byte(value), &record); iterErr != nil {
				return false
			}
			records = append(records, &record)
			return true
		})
		if err != nil {
			return err
		}
		return iterErr
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (p *BuntDBPersist) GetDefaultRole(ctx context.Context, participantID string) (types.Role, error) {
	var role types.Role
	if err := p.get(defaultPrefix+participantID, &role); err != nil {
		return role, err
	}
	return role, nil
}

func (p *BuntDBPersist) StoreDefaultRole(ctx context.Context, participantID string, role types.Role) error {
	return p.set(defaultPrefix+participantID, role)
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}
