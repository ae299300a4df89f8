package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tcriess/lightspeed-roster/types"
)

// SQLPersist stores rosters as JSON documents in a plain database/sql database. The statements are shared by the
// sqlite3 and the postgres drivers, only the schema differs.
type SQLPersist struct {
	db *sql.DB
	sync.RWMutex
}

func execAll(db *sql.DB, queries ...string) error {
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (p *SQLPersist) GetRoster(ctx context.Context, channelID string) (*types.RosterSnapshot, error) {
	p.RLock()
	defer p.RUnlock()
	var data []byte
	query := `SELECT data FROM rosters WHERE channel_id=$1;`
	err := p.db.QueryRowContext(ctx, query, channelID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("roster %s: %w", channelID, ErrNotFound)
		}
		return nil, err
	}
	roster := types.RosterSnapshot{}
	if err = json.Unmarshal(data, &roster); err != nil {
		return nil, err
	}
	return &roster, nil
}

func (p *SQLPersist) StoreRoster(ctx context.Context, channelID string, roster *types.RosterSnapshot) error {
	p.Lock()
	defer p.Unlock()
	data, err := json.Marshal(roster)
	if err != nil {
		return err
	}
	query := `INSERT INTO rosters (channel_id,data) VALUES ($1,$2) ON CONFLICT (channel_id) DO UPDATE SET data=EXCLUDED.data;`
	_, err = p.db.ExecContext(ctx, query, channelID, string(data))
	return err
}

func (p *SQLPersist) DeleteRoster(ctx context.Context, channelID string) error {
	p.Lock()
	defer p.Unlock()
	res, err := p.db.ExecContext(ctx, `DELETE FROM rosters WHERE channel_id=$1;`, channelID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("roster %s: %w", channelID, ErrNotFound)
	}
	return nil
}

func (p *SQLPersist) GetRosters(ctx context.Context) (map[string]*types.RosterSnapshot, error) {
	p.RLock()
	defer p.RUnlock()
	rosters := make(map[string]*types.RosterSnapshot)
	rows, err := p.db.QueryContext(ctx, `SELECT channel_id,data FROM rosters;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var channelID string
		var data []byte
		if err = rows.Scan(&channelID, &data); err != nil {
			return nil, err
		}
		roster := types.RosterSnapshot{}
		if err = json.Unmarshal(data, &roster); err != nil {
			return nil, err
		}
		rosters[channelID] = &roster
	}
	return rosters, rows.Err()
}

const runColumns = `participant_id,total,dps_runs,healer_runs,tank_runs,last_title,last_date`

func scanRunRecord(row interface{ Scan(...interface{}) error }) (*types.RunRecord, error) {
	record := types.RunRecord{}
	var lastDate string
	err := row.Scan(&record.ParticipantId, &record.Total, &record.DPSRuns, &record.HealerRuns, &record.TankRuns, &record.LastTitle, &lastDate)
	if err != nil {
		return nil, err
	}
	if lastDate != "" {
		record.LastDate, err = types.ParseSchedule(lastDate)
		if err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func (p *SQLPersist) GetRunRecord(ctx context.Context, participantID string) (*types.RunRecord, error) {
	p.RLock()
	defer p.RUnlock()
	query := `SELECT ` + runColumns + ` FROM runs WHERE participant_id=$1;`
	record, err := scanRunRecord(p.db.QueryRowContext(ctx, query, participantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run record %s: %w", participantID, ErrNotFound)
	}
	return record, err
}

func (p *SQLPersist) StoreRunRecord(ctx context.Context, record *types.RunRecord) error {
	p.Lock()
	defer p.Unlock()
	query := `INSERT INTO runs (` + runColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (participant_id) DO UPDATE SET total=EXCLUDED.total,dps_runs=EXCLUDED.dps_runs,healer_runs=EXCLUDED.healer_runs,tank_runs=EXCLUDED.tank_runs,last_title=EXCLUDED.last_title,last_date=EXCLUDED.last_date;`
	_, err := p.db.ExecContext(ctx, query, record.ParticipantId, record.Total, record.DPSRuns, record.HealerRuns, record.TankRuns, record.LastTitle, record.LastDate.String())
	return err
}

// GetRunRecords returns all run records, most runs first.
func (p *SQLPersist) GetRunRecords(ctx context.Context) ([]*types.RunRecord, error) {
	p.RLock()
	defer p.RUnlock()
	records := make([]*types.RunRecord, 0)
	rows, err := p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY total DESC, participant_id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		record, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (p *SQLPersist) GetDefaultRole(ctx context.Context, participantID string) (types.Role, error) {
	p.RLock()
	defer p.RUnlock()
	var role types.Role
	var name string
	err := p.db.QueryRowContext(ctx, `SELECT role FROM default_roles WHERE participant_id=$1;`, participantID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return role, fmt.Errorf("default role %s: %w", participantID, ErrNotFound)
		}
		return role, err
	}
	err = role.UnmarshalText([]byte(name))
	return role, err
}

func (p *SQLPersist) StoreDefaultRole(ctx context.Context, participantID string, role types.Role) error {
	p.Lock()
	defer p.Unlock()
	query := `INSERT INTO default_roles (participant_id,role) VALUES ($1,$2) ON CONFLICT (participant_id) DO UPDATE SET role=EXCLUDED.role;`
	_, err := p.db.ExecContext(ctx, query, participantID, role.String())
	return err
}

func (p *SQLPersist) Close() error {
	return p.db.Close()
}
