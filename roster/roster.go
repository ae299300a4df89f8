// Package roster implements the slot allocation of a single roster: who is in a primary slot, who waits on
// the backup list, and how people move between the two when they sign up, switch roles, withdraw or when
// the capacities change.
//
// A Roster is a plain value without any locking, callers serialise access (see package hub).
package roster

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/tcriess/lightspeed-roster/types"
)

// Placement tells where a sign up ended up.
type Placement int

const (
	PlacedPrimary Placement = iota
	PlacedBackup
)

func (p Placement) String() string {
	if p == PlacedBackup {
		return "backup"
	}
	return "primary"
}

// Slot describes the bucket a participant occupies.
type Slot struct {
	Role   types.Role `json:"role"`
	Backup bool       `json:"backup"`
	Note   string     `json:"note"`
}

// Request is a (re-)sign up. HasNote distinguishes "no note given" from an explicitly empty note.
type Request struct {
	Participant string     `json:"participant"`
	Role        types.Role `json:"role"`
	Note        string     `json:"note"`
	HasNote     bool       `json:"has_note"`
	Backup      bool       `json:"backup"`
}

// Move is a promotion out of or a demotion into a backup list.
type Move struct {
	Role        types.Role `json:"role"`
	Participant string     `json:"participant"`
	Note        string     `json:"note"`
}

type Roster struct {
	title       string
	scheduledAt types.Schedule
	leader      string
	accessTier  int
	memo        string
	limits      types.Limits
	primary     map[types.Role]*bucket
	backup      map[types.Role]*bucket
}

func newRoster() *Roster {
	r := &Roster{
		primary: make(map[types.Role]*bucket, len(types.Roles)),
		backup:  make(map[types.Role]*bucket, len(types.Roles)),
	}
	for _, role := range types.Roles {
		r.primary[role] = newBucket()
		r.backup[role] = newBucket()
	}
	return r
}

// New creates an empty roster.
func New(title, leader string, scheduledAt types.Schedule, limits types.Limits, accessTier int) (*Roster, error) {
	if err := validateLimits(limits); err != nil {
		return nil, err
	}
	if accessTier < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTier, accessTier)
	}
	r := newRoster()
	r.title = title
	r.leader = leader
	r.scheduledAt = scheduledAt
	r.limits = limits
	r.accessTier = accessTier
	return r, nil
}

func validateLimits(limits types.Limits) error {
	for _, role := range types.Roles {
		if limits.For(role) < 0 {
			return fmt.Errorf("%w: %s limit %d", ErrInvalidLimit, role, limits.For(role))
		}
	}
	return nil
}

func validateRequest(participant string, role types.Role) error {
	if participant == "" {
		return ErrInvalidParticipant
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %d", types.ErrInvalidRole, int(role))
	}
	return nil
}

func (r *Roster) Title() string               { return r.title }
func (r *Roster) Leader() string              { return r.leader }
func (r *Roster) ScheduledAt() types.Schedule { return r.scheduledAt }
func (r *Roster) AccessTier() int             { return r.accessTier }
func (r *Roster) Memo() string                { return r.memo }
func (r *Roster) Limits() types.Limits        { return r.limits }
func (r *Roster) Primary(role types.Role) types.Bucket {
	if b, ok := r.primary[role]; ok {
		return b.snapshot()
	}
	return types.Bucket{}
}
func (r *Roster) Backup(role types.Role) types.Bucket {
	if b, ok := r.backup[role]; ok {
		return b.snapshot()
	}
	return types.Bucket{}
}

// Locate finds the bucket a participant is in.
func (r *Roster) Locate(participant string) (Slot, bool) {
	for _, role := range types.Roles {
		if note, ok := r.primary[role].notes[participant]; ok {
			return Slot{Role: role, Note: note}, true
		}
		if note, ok := r.backup[role].notes[participant]; ok {
			return Slot{Role: role, Backup: true, Note: note}, true
		}
	}
	return Slot{}, false
}

func (r *Roster) join(participant string, role types.Role, note string, backupOnly bool) Placement {
	if !backupOnly && r.primary[role].len() < r.limits.For(role) {
		r.primary[role].add(participant, note)
		return PlacedPrimary
	}
	r.backup[role].add(participant, note)
	return PlacedBackup
}

// leave removes the participant from the slot's role, primary first, then backup.
func (r *Roster) leave(participant string, role types.Role) {
	if _, ok := r.primary[role].remove(participant); ok {
		return
	}
	r.backup[role].remove(participant)
}

// SignUp puts a new participant in a primary slot if one is free, on the backup list otherwise.
func (r *Roster) SignUp(participant string, role types.Role, note string) (Placement, error) {
	if err := validateRequest(participant, role); err != nil {
		return PlacedBackup, err
	}
	if _, ok := r.Locate(participant); ok {
		return PlacedBackup, fmt.Errorf("%w: %s", ErrAlreadySignedUp, participant)
	}
	return r.join(participant, role, note, false), nil
}

// SignUpBackup always puts a new participant on the backup list.
func (r *Roster) SignUpBackup(participant string, role types.Role, note string) (Placement, error) {
	if err := validateRequest(participant, role); err != nil {
		return PlacedBackup, err
	}
	if _, ok := r.Locate(participant); ok {
		return PlacedBackup, fmt.Errorf("%w: %s", ErrAlreadySignedUp, participant)
	}
	return r.join(participant, role, note, true), nil
}

// Submit signs a participant up, moving them if they are already on the roster. Without an explicit note a
// participant keeping their role keeps their old note; any role change or explicit note replaces it.
func (r *Roster) Submit(req Request) (Placement, error) {
	if err := validateRequest(req.Participant, req.Role); err != nil {
		return PlacedBackup, err
	}
	note := req.Note
	if prev, ok := r.Locate(req.Participant); ok {
		r.leave(req.Participant, prev.Role)
		if !req.HasNote && prev.Role == req.Role {
			note = prev.Note
		}
	}
	return r.join(req.Participant, req.Role, note, req.Backup), nil
}

// Withdraw removes a participant from whatever bucket they are in. Nobody gets promoted, see Fill.
func (r *Roster) Withdraw(participant string) (Slot, error) {
	slot, ok := r.Locate(participant)
	if !ok {
		return Slot{}, fmt.Errorf("%w: %s", ErrParticipantNotFound, participant)
	}
	r.leave(participant, slot.Role)
	return slot, nil
}

// AdminAssign force places a participant into role, wherever they were before. The note is cleared.
func (r *Roster) AdminAssign(participant string, role types.Role) (Placement, error) {
	if err := validateRequest(participant, role); err != nil {
		return PlacedBackup, err
	}
	if slot, ok := r.Locate(participant); ok {
		r.leave(participant, slot.Role)
	}
	return r.join(participant, role, "", false), nil
}

// AdminRemove removes a participant. removed is false if they were not on the roster.
func (r *Roster) AdminRemove(participant string) (slot Slot, removed bool) {
	slot, ok := r.Locate(participant)
	if !ok {
		return Slot{}, false
	}
	r.leave(participant, slot.Role)
	return slot, true
}

// Fill promotes backups, oldest sign up first, until every primary list is full or its backup list is
// empty. Roles never borrow from each other.
func (r *Roster) Fill() []Move {
	promoted := make([]Move, 0)
	for _, role := range types.Roles {
		for r.primary[role].len() < r.limits.For(role) {
			id, note, ok := r.backup[role].popFront()
			if !ok {
				break
			}
			r.primary[role].add(id, note)
			promoted = append(promoted, Move{Role: role, Participant: id, Note: note})
		}
	}
	return promoted
}

// SetLimits replaces the capacities. Occupants above a lowered limit are moved, latest sign up first, to the
// head of the backup list so that a later Fill brings them back in their original order.
func (r *Roster) SetLimits(limits types.Limits) ([]Move, error) {
	if err := validateLimits(limits); err != nil {
		return nil, err
	}
	r.limits = limits
	return r.demoteOverflow(), nil
}

func (r *Roster) demoteOverflow() []Move {
	demoted := make([]Move, 0)
	for _, role := range types.Roles {
		for r.primary[role].len() > r.limits.For(role) {
			id, note, _ := r.primary[role].popBack()
			r.backup[role].addFront(id, note)
			demoted = append(demoted, Move{Role: role, Participant: id, Note: note})
		}
	}
	return demoted
}

func (r *Roster) SetLeader(leader string) {
	r.leader = leader
}

func (r *Roster) SetTitle(title string) {
	r.title = title
}

func (r *Roster) Reschedule(scheduledAt types.Schedule) {
	r.scheduledAt = scheduledAt
}

// SetAccessTier changes the tier required to sign up. People already on the roster stay.
func (r *Roster) SetAccessTier(tier int) error {
	if tier < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	r.accessTier = tier
	return nil
}

func (r *Roster) SetMemo(memo string) {
	r.memo = types.NormalizeMemo(memo)
}

// ToSnapshot copies the roster into its plain data form.
func (r *Roster) ToSnapshot() types.RosterSnapshot {
	return types.RosterSnapshot{
		Title:         r.title,
		ScheduledAt:   r.scheduledAt,
		Leader:        r.leader,
		DPS:           r.primary[types.RoleDPS].snapshot(),
		Healers:       r.primary[types.RoleHealer].snapshot(),
		Tanks:         r.primary[types.RoleTank].snapshot(),
		BackupDPS:     r.backup[types.RoleDPS].snapshot(),
		BackupHealers: r.backup[types.RoleHealer].snapshot(),
		BackupTanks:   r.backup[types.RoleTank].snapshot(),
		Limits:        r.limits,
		AccessTier:    r.accessTier,
		Memo:          r.memo,
	}
}

// FromSnapshot rebuilds a roster. Snapshots listing a participant twice are rejected. Primary lists longer
// than their limit are cut down the same way SetLimits does it.
func FromSnapshot(s types.RosterSnapshot) (*Roster, error) {
	if err := validateLimits(s.Limits); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptSnapshot, err)
	}
	if s.AccessTier < 0 {
		return nil, fmt.Errorf("%w: access tier %d", ErrCorruptSnapshot, s.AccessTier)
	}
	r := newRoster()
	r.title = s.Title
	r.scheduledAt = s.ScheduledAt
	r.leader = s.Leader
	r.limits = s.Limits
	r.accessTier = s.AccessTier
	r.memo = s.Memo
	seen := make(map[string]struct{})
	for _, role := range types.Roles {
		for _, entries := range []types.Bucket{s.Primary(role), s.Backup(role)} {
			for _, entry := range entries {
				if _, ok := seen[entry.Participant]; ok || entry.Participant == "" {
					return nil, fmt.Errorf("%w: participant %q", ErrCorruptSnapshot, entry.Participant)
				}
				seen[entry.Participant] = struct{}{}
			}
		}
		r.primary[role] = bucketFromSnapshot(s.Primary(role))
		r.backup[role] = bucketFromSnapshot(s.Backup(role))
	}
	r.demoteOverflow()
	return r, nil
}

// Fingerprint hashes the complete roster state, two rosters with equal fingerprints are considered unchanged.
func (r *Roster) Fingerprint() (uint64, error) {
	return hashstructure.Hash(r.ToSnapshot(), hashstructure.FormatV2, nil)
}
