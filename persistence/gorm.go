package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tcriess/lightspeed-roster/config"
	"github.com/tcriess/lightspeed-roster/types"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// rosterModel is the table layout of a roster, every bucket is its own JSON column.
type rosterModel struct {
	ChannelID     string `gorm:"primaryKey"`
	Title         string
	ScheduledAt   string
	Leader        string
	DPS           types.Bucket
	Healers       types.Bucket
	Tanks         types.Bucket
	BackupDPS     types.Bucket
	BackupHealers types.Bucket
	BackupTanks   types.Bucket
	Limits        datatypes.JSON
	AccessTier    int
	Memo          string
	UpdatedAt     time.Time
}

func (rosterModel) TableName() string {
	return "rosters"
}

type runModel struct {
	ParticipantID string `gorm:"primaryKey"`
	Total         int    `gorm:"index"`
	DPSRuns       int
	HealerRuns    int
	TankRuns      int
	LastTitle     string
	LastDate      string
}

func (runModel) TableName() string {
	return "runs"
}

type defaultRoleModel struct {
	ParticipantID string `gorm:"primaryKey"`
	Role          string
}

func (defaultRoleModel) TableName() string {
	return "default_roles"
}

func newRosterModel(channelID string, s *types.RosterSnapshot) (*rosterModel, error) {
	limits, err := json.Marshal(s.Limits)
	if err != nil {
		return nil, err
	}
	return &rosterModel{
		ChannelID:     channelID,
		Title:         s.Title,
		ScheduledAt:   s.ScheduledAt.String(),
		Leader:        s.Leader,
		DPS:           s.DPS,
		Healers:       s.Healers,
		Tanks:         s.Tanks,
		BackupDPS:     s.BackupDPS,
		BackupHealers: s.BackupHealers,
		BackupTanks:   s.BackupTanks,
		Limits:        datatypes.JSON(limits),
		AccessTier:    s.AccessTier,
		Memo:          s.Memo,
	}, nil
}

func (m *rosterModel) snapshot() (*types.RosterSnapshot, error) {
	s := types.RosterSnapshot{
		Title:         m.Title,
		Leader:        m.Leader,
		DPS:           m.DPS,
		Healers:       m.Healers,
		Tanks:         m.Tanks,
		BackupDPS:     m.BackupDPS,
		BackupHealers: m.BackupHealers,
		BackupTanks:   m.BackupTanks,
		AccessTier:    m.AccessTier,
		Memo:          m.Memo,
	}
	var err error
	s.ScheduledAt, err = types.ParseSchedule(m.ScheduledAt)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(m.Limits, &s.Limits); err != nil {
		return nil, err
	}
	return &s, nil
}

func newRunModel(r *types.RunRecord) *runModel {
	return &runModel{
		ParticipantID: r.ParticipantId,
		Total:         r.Total,
		DPSRuns:       r.DPSRuns,
		HealerRuns:    r.HealerRuns,
		TankRuns:      r.TankRuns,
		LastTitle:     r.LastTitle,
		LastDate:      r.LastDate.String(),
	}
}

func (m *runModel) record() (*types.RunRecord, error) {
	date, err := types.ParseSchedule(m.LastDate)
	if err != nil {
		return nil, err
	}
	return &types.RunRecord{
		ParticipantId: m.ParticipantID,
		Total:         m.Total,
		DPSRuns:       m.DPSRuns,
		HealerRuns:    m.HealerRuns,
		TankRuns:      m.TankRuns,
		LastTitle:     m.LastTitle,
		LastDate:      date,
	}, nil
}

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	p := GormPersist{db: db}
	return &p, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, fmt.Errorf("no gorm dsn configured")
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "gorm-postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "gorm-sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = db.Migrator().AutoMigrate(&rosterModel{}, &runModel{}, &defaultRoleModel{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return err
}

func (p *GormPersist) GetRoster(ctx context.Context, channelID string) (*types.RosterSnapshot, error) {
	m := rosterModel{}
	err := p.db.WithContext(ctx).Where("channel_id = ?", channelID).First(&m).Error
	if err != nil {
		return nil, notFound(err, "roster", channelID)
	}
	return m.snapshot()
}

func (p *GormPersist) StoreRoster(ctx context.Context, channelID string, roster *types.RosterSnapshot) error {
	m, err := newRosterModel(channelID, roster)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
}

func (p *GormPersist) DeleteRoster(ctx context.Context, channelID string) error {
	res := p.db.WithContext(ctx).Where("channel_id = ?", channelID).Delete(&rosterModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("roster %s: %w", channelID, ErrNotFound)
	}
	return nil
}

func (p *GormPersist) GetRosters(ctx context.Context) (map[string]*types.RosterSnapshot, error) {
	models := make([]*rosterModel, 0)
	if err := p.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	rosters := make(map[string]*types.RosterSnapshot, len(models))
	for _, m := range models {
		s, err := m.snapshot()
		if err != nil {
			return nil, err
		}
		rosters[m.ChannelID] = s
	}
	return rosters, nil
}

func (p *GormPersist) GetRunRecord(ctx context.Context, participantID string) (*types.RunRecord, error) {
	m := runModel{}
	err := p.db.WithContext(ctx).Where("participant_id = ?", participantID).First(&m).Error
	if err != nil {
		return nil, notFound(err, "run record", participantID)
	}
	return m.record()
}

func (p *GormPersist) StoreRunRecord(ctx context.Context, record *types.RunRecord) error {
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(newRunModel(record)).Error
}

// GetRunRecords returns all run records, most runs first.
func (p *GormPersist) GetRunRecords(ctx context.Context) ([]*types.RunRecord, error) {
	models := make([]*runModel, 0)
	if err := p.db.WithContext(ctx).Order("total DESC").Order("participant_id").Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]*types.RunRecord, 0, len(models))
	for _, m := range models {
		r, err := m.record()
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (p *GormPersist) GetDefaultRole(ctx context.Context, participantID string) (types.Role, error) {
	var role types.Role
	m := defaultRoleModel{}
	err := p.db.WithContext(ctx).Where("participant_id = ?", participantID).First(&m).Error
	if err != nil {
		return role, notFound(err, "default role", participantID)
	}
	err = role.UnmarshalText([]byte(m.Role))
	return role, err
}

func (p *GormPersist) StoreDefaultRole(ctx context.Context, participantID string, role types.Role) error {
	m := defaultRoleModel{ParticipantID: participantID, Role: role.String()}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

func (p *GormPersist) Close() error {
	db, err := p.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
