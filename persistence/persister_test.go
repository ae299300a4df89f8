package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-roster/config"
	"github.com/tcriess/lightspeed-roster/types"
)

func testPersisters(t *testing.T) map[string]Persister {
	t.Helper()
	dir := t.TempDir()
	cfgs := map[string]config.PersistenceConfig{
		"buntdb":      {Type: "buntdb", DSN: ":memory:"},
		"sqlite":      {Type: "sqlite", DSN: filepath.Join(dir, "sql.db")},
		"gorm-sqlite": {Type: "gorm-sqlite", DSN: filepath.Join(dir, "gorm.db")},
	}
	if dsn := os.Getenv("LSROSTER_TEST_POSTGRES_DSN"); dsn != "" {
		cfgs["postgres"] = config.PersistenceConfig{Type: "postgres", DSN: dsn}
		cfgs["gorm-postgres"] = config.PersistenceConfig{Type: "gorm-postgres", DSN: dsn}
	}
	res := make(map[string]Persister)
	for name, pc := range cfgs {
		p, err := NewPersister(&config.Config{PersistenceConfig: pc})
		require.NoError(t, err, name)
		t.Cleanup(func() { p.Close() })
		res[name] = p
	}
	return res
}

func testSnapshot() *types.RosterSnapshot {
	return &types.RosterSnapshot{
		Title:       "vAS",
		ScheduledAt: types.Schedule{Unix: 1700000000},
		Leader:      "lead",
		// deliberately not in alphabetical order
		DPS:           types.Bucket{{Participant: "zed", Note: "necro"}, {Participant: "amy"}, {Participant: "mo", Note: "dk"}},
		Healers:       types.Bucket{{Participant: "hal"}},
		Tanks:         types.Bucket{},
		BackupDPS:     types.Bucket{{Participant: "yan"}, {Participant: "bob"}},
		BackupHealers: types.Bucket{},
		BackupTanks:   types.Bucket{{Participant: "tim", Note: "late"}},
		Limits:        types.Limits{DPS: 3, Healers: 2, Tanks: 2},
		AccessTier:    2,
		Memo:          "bring food",
	}
}

func TestPersisterRosters(t *testing.T) {
	ctx := context.Background()
	for name, p := range testPersisters(t) {
		t.Run(name, func(t *testing.T) {
			_, err := p.GetRoster(ctx, "raid-1")
			assert.ErrorIs(t, err, ErrNotFound)

			s := testSnapshot()
			require.NoError(t, p.StoreRoster(ctx, "raid-1", s))
			got, err := p.GetRoster(ctx, "raid-1")
			require.NoError(t, err)
			assert.Equal(t, s, got)

			asap := testSnapshot()
			asap.ScheduledAt = types.ASAP()
			asap.Memo = ""
			require.NoError(t, p.StoreRoster(ctx, "raid-2", asap))
			s.Leader = "other"
			require.NoError(t, p.StoreRoster(ctx, "raid-1", s))

			all, err := p.GetRosters(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]*types.RosterSnapshot{"raid-1": s, "raid-2": asap}, all)

			require.NoError(t, p.DeleteRoster(ctx, "raid-1"))
			assert.ErrorIs(t, p.DeleteRoster(ctx, "raid-1"), ErrNotFound)
			_, err = p.GetRoster(ctx, "raid-1")
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, p.DeleteRoster(ctx, "raid-2"))
		})
	}
}

func TestPersisterRunRecords(t *testing.T) {
	ctx := context.Background()
	for name, p := range testPersisters(t) {
		t.Run(name, func(t *testing.T) {
			_, err := p.GetRunRecord(ctx, "amy")
			assert.ErrorIs(t, err, ErrNotFound)

			amy := &types.RunRecord{ParticipantId: "amy"}
			amy.Add(types.RoleDPS, "vAS", types.Schedule{Unix: 1700000000})
			bob := &types.RunRecord{ParticipantId: "bob"}
			bob.Add(types.RoleTank, "vSS", types.ASAP())
			bob.Add(types.RoleHealer, "vSS", types.ASAP())
			require.NoError(t, p.StoreRunRecord(ctx, amy))
			require.NoError(t, p.StoreRunRecord(ctx, bob))

			got, err := p.GetRunRecord(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, bob, got)

			all, err := p.GetRunRecords(ctx)
			require.NoError(t, err)
			assert.Equal(t, []*types.RunRecord{bob, amy}, all)
		})
	}
}

func TestPersisterDefaultRoles(t *testing.T) {
	ctx := context.Background()
	for name, p := range testPersisters(t) {
		t.Run(name, func(t *testing.T) {
			_, err := p.GetDefaultRole(ctx, "amy")
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, p.StoreDefaultRole(ctx, "amy", types.RoleHealer))
			require.NoError(t, p.StoreDefaultRole(ctx, "amy", types.RoleTank))
			role, err := p.GetDefaultRole(ctx, "amy")
			require.NoError(t, err)
			assert.Equal(t, types.RoleTank, role)
		})
	}
}

func TestNewPersisterUnknownType(t *testing.T) {
	_, err := NewPersister(&config.Config{PersistenceConfig: config.PersistenceConfig{Type: "redis"}})
	assert.Error(t, err)
}
