// Package service is the entry point for everything that changes or reads rosters. It checks the callers'
// permissions, routes every change through the roster's hub and keeps the run counts.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/tcriess/lightspeed-roster/commands"
	"github.com/tcriess/lightspeed-roster/config"
	"github.com/tcriess/lightspeed-roster/filter"
	"github.com/tcriess/lightspeed-roster/globals"
	"github.com/tcriess/lightspeed-roster/hub"
	"github.com/tcriess/lightspeed-roster/naming"
	"github.com/tcriess/lightspeed-roster/persistence"
	"github.com/tcriess/lightspeed-roster/roster"
	"github.com/tcriess/lightspeed-roster/runs"
	"github.com/tcriess/lightspeed-roster/types"
)

var (
	ErrRosterExists   = errors.New("channel already has a roster")
	ErrForbidden      = errors.New("not allowed to sign up for this roster")
	ErrInvalidChannel = errors.New("invalid channel id")
)

var channelPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,99}$`)

// Caller is whoever requests a sign-up, Tiers are the indexes of the access tiers they hold.
type Caller struct {
	ID    string
	Tiers []int
}

// Listing is one roster in the overview.
type Listing struct {
	ChannelID string                `json:"channel_id"`
	Name      string                `json:"name"`
	Weight    int                   `json:"weight"`
	Roster    *types.RosterSnapshot `json:"roster"`
}

type Service struct {
	cfg       *config.Config
	persister persistence.Persister
	registry  *hub.Registry
	loc       *time.Location
}

func NewService(cfg *config.Config, persister persistence.Persister) (*Service, error) {
	loc, err := naming.LoadLocation(cfg.RosterConfig.Timezone)
	if err != nil {
		return nil, err
	}
	if cfg.RosterConfig.AccessRule != "" {
		if _, err = filter.Compile(cfg.RosterConfig.AccessRule); err != nil {
			return nil, err
		}
	}
	registry, err := hub.NewRegistry(persister, cfg.PersistenceConfig.FlockPath)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:       cfg,
		persister: persister,
		registry:  registry,
		loc:       loc,
	}, nil
}

// Shutdown stops all hubs. The persister is left open.
func (s *Service) Shutdown() {
	s.registry.Close()
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// ChannelName is the channel name for a roster in the configured zone.
func (s *Service) ChannelName(r *types.RosterSnapshot) string {
	return naming.ChannelName(r.ScheduledAt, r.Title, s.loc)
}

func validateChannel(channelID string) error {
	if !channelPattern.MatchString(channelID) {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, channelID)
	}
	return nil
}

func notFound(channelID string) error {
	return fmt.Errorf("roster %s: %w", channelID, persistence.ErrNotFound)
}

func (s *Service) validateTier(tier int) error {
	if tier < 0 || tier >= len(s.cfg.RosterConfig.Tiers) {
		return fmt.Errorf("%w: %d, must be between 0 and %d", roster.ErrInvalidTier, tier, len(s.cfg.RosterConfig.Tiers)-1)
	}
	return nil
}

// update runs fn on the existing roster of channelID.
func (s *Service) update(ctx context.Context, channelID string, fn func(r *roster.Roster) error) error {
	if err := validateChannel(channelID); err != nil {
		return err
	}
	return s.registry.Do(ctx, channelID, func(ctx context.Context, tx *hub.Tx) error {
		if tx.Roster == nil {
			return notFound(channelID)
		}
		return fn(tx.Roster)
	})
}

// Open creates the roster for a channel. Without limits the configured defaults are used.
func (s *Service) Open(ctx context.Context, channelID, title, leader string, scheduledAt types.Schedule, limits *types.Limits, tier int) (*types.RosterSnapshot, error) {
	if err := validateChannel(channelID); err != nil {
		return nil, err
	}
	if err := s.validateTier(tier); err != nil {
		return nil, err
	}
	l := s.cfg.RosterConfig.Defaults
	if limits != nil {
		l = *limits
	}
	var res types.RosterSnapshot
	err := s.registry.Do(ctx, channelID, func(ctx context.Context, tx *hub.Tx) error {
		if tx.Roster != nil {
			return fmt.Errorf("%w: %s", ErrRosterExists, channelID)
		}
		r, err := roster.New(title, leader, scheduledAt, l, tier)
		if err != nil {
			return err
		}
		tx.Create(r)
		res = r.ToSnapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	globals.AppLogger.Info("opened roster", "channel", channelID, "title", title, "leader", leader)
	return &res, nil
}

func (s *Service) Get(ctx context.Context, channelID string) (*types.RosterSnapshot, error) {
	if err := validateChannel(channelID); err != nil {
		return nil, err
	}
	return s.persister.GetRoster(ctx, channelID)
}

// List returns all rosters in channel order: ASAP rosters first, then by date.
func (s *Service) List(ctx context.Context) ([]Listing, error) {
	rosters, err := s.persister.GetRosters(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]Listing, 0, len(rosters))
	for channelID, r := range rosters {
		res = append(res, Listing{
			ChannelID: channelID,
			Name:      s.ChannelName(r),
			Weight:    naming.SortWeight(r.ScheduledAt, s.loc),
			Roster:    r,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Weight != res[j].Weight {
			return res[i].Weight < res[j].Weight
		}
		return res[i].ChannelID < res[j].ChannelID
	})
	return res, nil
}

// SignUp signs the caller up (or moves them), subject to the access rule.
func (s *Service) SignUp(ctx context.Context, channelID string, caller Caller, req roster.Request) (roster.Placement, error) {
	placement := roster.PlacedBackup
	req.Participant = caller.ID
	err := s.update(ctx, channelID, func(r *roster.Roster) error {
		env := filter.Env{
			Participant: filter.Participant{Id: caller.ID, Tiers: caller.Tiers},
			Roster: filter.Roster{
				Title:      r.Title(),
				Leader:     r.Leader(),
				AccessTier: r.AccessTier(),
				Limit:      r.Limits().For(req.Role),
				Count:      len(r.Primary(req.Role)),
			},
			Role:   req.Role.String(),
			Backup: req.Backup,
		}
		allowed, err := filter.Allowed(s.cfg.RosterConfig.AccessRule, env)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%w: %s", ErrForbidden, caller.ID)
		}
		placement, err = r.Submit(req)
		return err
	})
	if err != nil {
		return placement, err
	}
	globals.AppLogger.Info("signed up", "channel", channelID, "participant", caller.ID, "role", req.Role, "placement", placement)
	return placement, nil
}

// SignUpCommand parses "!su [role] [note]" or "!bu [role] [note]" and signs the caller up.
func (s *Service) SignUpCommand(ctx context.Context, channelID string, caller Caller, content string) (roster.Placement, error) {
	cmd, err := commands.ParseSignUp(content)
	if err != nil {
		return roster.PlacedBackup, err
	}
	req, err := cmd.Request(ctx, s.persister, caller.ID)
	if err != nil {
		return roster.PlacedBackup, err
	}
	return s.SignUp(ctx, channelID, caller, req)
}

func (s *Service) Withdraw(ctx context.Context, channelID, participant string) (roster.Slot, error) {
	var slot roster.Slot
	err := s.update(ctx, channelID, func(r *roster.Roster) error {
		var err error
		slot, err = r.Withdraw(participant)
		return err
	})
	return slot, err
}

func (s *Service) AdminAssign(ctx context.Context, channelID, participant string, role types.Role) (roster.Placement, error) {
	placement := roster.PlacedBackup
	err := s.update(ctx, channelID, func(r *roster.Roster) error {
		var err error
		placement, err = r.AdminAssign(participant, role)
		return err
	})
	return placement, err
}

func (s *Service) AdminRemove(ctx context.Context, channelID, participant string) (roster.Slot, error) {
	var slot roster.Slot
	err := s.update(ctx, channelID, func(r *roster.Roster) error {
		var removed bool
		slot, removed = r.AdminRemove(participant)
		if !removed {
			return fmt.Errorf("%w: %s", roster.ErrParticipantNotFound, participant)
		}
		return nil
	})
	return slot, err
}

// PurgeParticipant removes a participant from every roster, f.e. after they left the server. It returns the
// channels they were removed from.
func (s *Service) PurgeParticipant(ctx context.Context, participant string) ([]string, error) {
	rosters, err := s.persister.GetRosters(ctx)
	if err != nil {
		return nil, err
	}
	channels := make([]string, 0)
	for channelID := range rosters {
		removed := false
		err := s.registry.Do(ctx, channelID, func(ctx context.Context, tx *hub.Tx) error {
			if tx.Roster != nil {
				_, removed = tx.Roster.AdminRemove(participant)
			}
			return nil
		})
		if err != nil {
			return channels, err
		}
		if removed {
			channels = append(channels, channelID)
		}
	}
	sort.Strings(channels)
	globals.AppLogger.Info("purged participant", "participant", participant, "channels", channels)
	return channels, nil
}

func (s *Service) Fill(ctx context.Context, channelID string) ([]roster.Move, error) {
	var moves []roster.Move
	err := s.update(ctx, channelID, func(r *roster.Roster) error {
		moves = r.Fill()
		return nil
	})
	return moves, err
}

// FillAll fills every roster, the result only lists rosters where somebody was promoted.
func (s *Service) FillAll(ctx context.Context) (map[string][]roster.Move, error) {
	rosters, err := s.persister.GetRosters(ctx)
	if err != nil {
		return nil, err
	}
	res := make(map[string][]roster.Move)
	for channelID := range rosters {
		moves, err := s.Fill(ctx, channelID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue // closed in the meantime
			}
			return res, err
		}
		if len(moves) > 0 {
			res[channelID] = moves
		}
	}
	return res, nil
}

// SetLimits changes the capacities, the returned moves are the demoted participants.
func (s *Service) SetLimits(ctx context.Context, channelID string, limits types.Limits) ([]roster.Move, error) {
	var moves []roster.Move
	err := s.update(ctx, channelID, func(r *roster.Roster) error {
		var err error
		moves, err = r.SetLimits(limits)
		return err
	})
	return moves, err
}

func (s *Service) SetLeader(ctx context.Context, channelID, leader string) error {
	return s.update(ctx, channelID, func(r *roster.Roster) error {
		r.SetLeader(leader)
		return nil
	})
}

func (s *Service) SetTitle(ctx context.Context, channelID, title string) error {
	return s.update(ctx, channelID, func(r *roster.Roster) error {
		r.SetTitle(title)
		return nil
	})
}

func (s *Service) Reschedule(ctx context.Context, channelID string, scheduledAt types.Schedule) error {
	return s.update(ctx, channelID, func(r *roster.Roster) error {
		r.Reschedule(scheduledAt)
		return nil
	})
}

func (s *Service) SetAccessTier(ctx context.Context, channelID string, tier int) error {
	if err := s.validateTier(tier); err != nil {
		return err
	}
	return s.update(ctx, channelID, func(r *roster.Roster) error {
		return r.SetAccessTier(tier)
	})
}

func (s *Service) SetMemo(ctx context.Context, channelID, memo string) error {
	return s.update(ctx, channelID, func(r *roster.Roster) error {
		r.SetMemo(memo)
		return nil
	})
}

// Patch lists the fields of a roster to change, nil fields are kept.
type Patch struct {
	Title       *string
	Leader      *string
	ScheduledAt *types.Schedule
	AccessTier  *int
	Memo        *string
}

// Update applies all fields of p in one step. Nothing is changed if any field is invalid.
func (s *Service) Update(ctx context.Context, channelID string, p Patch) (*types.RosterSnapshot, error) {
	if p.AccessTier != nil {
		if err := s.validateTier(*p.AccessTier); err != nil {
			return nil, err
		}
	}
	var res *types.RosterSnapshot
	err := s.update(ctx, channelID, func(r *roster.Roster) error {
		if p.AccessTier != nil {
			if err := r.SetAccessTier(*p.AccessTier); err != nil {
				return err
			}
		}
		if p.Title != nil {
			r.SetTitle(*p.Title)
		}
		if p.Leader != nil {
			r.SetLeader(*p.Leader)
		}
		if p.ScheduledAt != nil {
			r.Reschedule(*p.ScheduledAt)
		}
		if p.Memo != nil {
			r.SetMemo(*p.Memo)
		}
		snapshot := r.ToSnapshot()
		res = &snapshot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RecordRuns counts a run for everybody on the primary lists without closing the roster. With reschedule the
// date is changed first and counted as the run's date. If counting fails the date stays unchanged.
func (s *Service) RecordRuns(ctx context.Context, channelID string, reschedule *types.Schedule) (int, error) {
	counted := 0
	err := s.update(ctx, channelID, func(r *roster.Roster) error {
		if reschedule != nil {
			r.Reschedule(*reschedule)
		}
		snapshot := r.ToSnapshot()
		var err error
		counted, err = runs.RecordAttendance(ctx, s.persister, &snapshot)
		return err
	})
	return counted, err
}

// Close deletes a roster, counting the runs first if recordRuns is set. If counting fails the roster stays.
// Run records are written before the roster is deleted and are not rolled back: when the delete itself fails
// the counts stay incremented and closing again counts the runs a second time.
func (s *Service) Close(ctx context.Context, channelID string, recordRuns bool) (int, error) {
	if err := validateChannel(channelID); err != nil {
		return 0, err
	}
	counted := 0
	err := s.registry.Do(ctx, channelID, func(ctx context.Context, tx *hub.Tx) error {
		if tx.Roster == nil {
			return notFound(channelID)
		}
		if recordRuns {
			snapshot := tx.Roster.ToSnapshot()
			var err error
			if counted, err = runs.RecordAttendance(ctx, s.persister, &snapshot); err != nil {
				return err
			}
		}
		tx.Delete()
		return nil
	})
	if err != nil {
		return counted, err
	}
	globals.AppLogger.Info("closed roster", "channel", channelID, "counted", counted)
	return counted, nil
}

// IncreaseRuns adds one run to a participant's total, creating the record if needed.
func (s *Service) IncreaseRuns(ctx context.Context, participant string) (*types.RunRecord, error) {
	if participant == "" {
		return nil, roster.ErrInvalidParticipant
	}
	return runs.Increase(ctx, s.persister, participant)
}

func (s *Service) SetDefaultRole(ctx context.Context, participant string, role types.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %d", types.ErrInvalidRole, int(role))
	}
	return s.persister.StoreDefaultRole(ctx, participant, role)
}

func (s *Service) DefaultRole(ctx context.Context, participant string) (types.Role, error) {
	return s.persister.GetDefaultRole(ctx, participant)
}

func (s *Service) RunRecord(ctx context.Context, participant string) (*types.RunRecord, error) {
	return s.persister.GetRunRecord(ctx, participant)
}

func (s *Service) RunRecords(ctx context.Context) ([]*types.RunRecord, error) {
	return s.persister.GetRunRecords(ctx)
}

// IsAdmin reports whether id is the configured admin user.
func (s *Service) IsAdmin(id string) bool {
	return id != "" && id == s.cfg.AdminUser
}

// Tiers returns the configured tier names.
func (s *Service) Tiers() []string {
	return s.cfg.RosterConfig.Tiers
}
