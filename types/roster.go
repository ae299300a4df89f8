package types

import (
	"fmt"
	"strings"
)

// Limits are the primary capacities per role.
type Limits struct {
	DPS     int `json:"dps" mapstructure:"dps"`
	Healers int `json:"healers" mapstructure:"healers"`
	Tanks   int `json:"tanks" mapstructure:"tanks"`
}

func (l Limits) For(role Role) int {
	switch role {
	case RoleHealer:
		return l.Healers
	case RoleTank:
		return l.Tanks
	default:
		return l.DPS
	}
}

func (l Limits) String() string {
	return fmt.Sprintf("%d,%d,%d", l.DPS, l.Healers, l.Tanks)
}

// RosterSnapshot is the complete, order preserving data of one roster. This is what gets persisted.
type RosterSnapshot struct {
	Title         string   `json:"title"`
	ScheduledAt   Schedule `json:"scheduled_at"`
	Leader        string   `json:"leader"`
	DPS           Bucket   `json:"dps"`
	Healers       Bucket   `json:"healers"`
	Tanks         Bucket   `json:"tanks"`
	BackupDPS     Bucket   `json:"backup_dps"`
	BackupHealers Bucket   `json:"backup_healers"`
	BackupTanks   Bucket   `json:"backup_tanks"`
	Limits        Limits   `json:"limits"`
	AccessTier    int      `json:"access_tier"`
	Memo          string   `json:"memo"`
}

// Primary returns the primary bucket of a role.
func (s *RosterSnapshot) Primary(role Role) Bucket {
	switch role {
	case RoleHealer:
		return s.Healers
	case RoleTank:
		return s.Tanks
	default:
		return s.DPS
	}
}

// Backup returns the backup bucket of a role.
func (s *RosterSnapshot) Backup(role Role) Bucket {
	switch role {
	case RoleHealer:
		return s.BackupHealers
	case RoleTank:
		return s.BackupTanks
	default:
		return s.BackupDPS
	}
}

// NormalizeMemo maps the "no memo" inputs to the empty memo.
func NormalizeMemo(memo string) string {
	memo = strings.TrimSpace(memo)
	switch strings.ToLower(memo) {
	case "none", "delete":
		return ""
	}
	return memo
}
