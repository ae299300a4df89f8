package roster

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-roster/types"
)

func newTestRoster(t *testing.T, dps, healers, tanks int) *Roster {
	t.Helper()
	r, err := New("vAS", "lead", types.ASAP(), types.Limits{DPS: dps, Healers: healers, Tanks: tanks}, 0)
	require.NoError(t, err)
	return r
}

// checkInvariants verifies that nobody is listed twice and no primary list exceeds its limit
func checkInvariants(t *testing.T, r *Roster) {
	t.Helper()
	seen := make(map[string]string)
	for _, role := range types.Roles {
		assert.LessOrEqual(t, r.primary[role].len(), r.limits.For(role), "primary %s over limit", role)
		for name, b := range map[string]*bucket{"primary": r.primary[role], "backup": r.backup[role]} {
			assert.Equal(t, len(b.order), len(b.notes))
			for _, id := range b.order {
				where := fmt.Sprintf("%s %s", name, role)
				if prev, ok := seen[id]; ok {
					t.Errorf("participant %s in %s and %s", id, prev, where)
				}
				seen[id] = where
			}
		}
	}
}

func TestSignUpScenario(t *testing.T) {
	r := newTestRoster(t, 2, 2, 2)

	p, err := r.SignUp("P1", types.RoleDPS, "")
	require.NoError(t, err)
	assert.Equal(t, PlacedPrimary, p)
	p, err = r.SignUp("P2", types.RoleDPS, "")
	require.NoError(t, err)
	assert.Equal(t, PlacedPrimary, p)
	p, err = r.SignUp("P3", types.RoleDPS, "")
	require.NoError(t, err)
	assert.Equal(t, PlacedBackup, p)

	slot, err := r.Withdraw("P1")
	require.NoError(t, err)
	assert.Equal(t, Slot{Role: types.RoleDPS}, slot)
	// withdrawing never promotes on its own
	assert.Equal(t, []string{"P2"}, r.Primary(types.RoleDPS).Participants())

	moves := r.Fill()
	assert.Equal(t, []Move{{Role: types.RoleDPS, Participant: "P3"}}, moves)
	assert.Equal(t, []string{"P2", "P3"}, r.Primary(types.RoleDPS).Participants())
	assert.Empty(t, r.Backup(types.RoleDPS))
	checkInvariants(t, r)
}

func TestSignUpTwiceIsRejected(t *testing.T) {
	r := newTestRoster(t, 1, 1, 1)
	_, err := r.SignUp("P", types.RoleTank, "")
	require.NoError(t, err)
	_, err = r.SignUp("P", types.RoleDPS, "")
	assert.ErrorIs(t, err, ErrAlreadySignedUp)
	_, err = r.SignUpBackup("P", types.RoleDPS, "")
	assert.ErrorIs(t, err, ErrAlreadySignedUp)
	assert.Empty(t, r.Primary(types.RoleDPS))
	assert.Empty(t, r.Backup(types.RoleDPS))
}

func TestSignUpValidation(t *testing.T) {
	r := newTestRoster(t, 1, 1, 1)
	_, err := r.SignUp("", types.RoleDPS, "")
	assert.ErrorIs(t, err, ErrInvalidParticipant)
	_, err = r.SignUp("P", types.Role(7), "")
	assert.ErrorIs(t, err, types.ErrInvalidRole)
	_, err = r.Submit(Request{Participant: "P", Role: types.Role(-1)})
	assert.ErrorIs(t, err, types.ErrInvalidRole)
	_, err = r.AdminAssign("", types.RoleTank)
	assert.ErrorIs(t, err, ErrInvalidParticipant)
}

func TestSignUpBackupIgnoresFreeSlots(t *testing.T) {
	r := newTestRoster(t, 8, 2, 2)
	p, err := r.SignUpBackup("P", types.RoleHealer, "templar")
	require.NoError(t, err)
	assert.Equal(t, PlacedBackup, p)
	assert.Equal(t, types.Bucket{{Participant: "P", Note: "templar"}}, r.Backup(types.RoleHealer))
	assert.Empty(t, r.Primary(types.RoleHealer))
}

func TestZeroLimitGoesToBackup(t *testing.T) {
	r := newTestRoster(t, 0, 1, 1)
	for i := 0; i < 3; i++ {
		p, err := r.SignUp(fmt.Sprintf("P%d", i), types.RoleDPS, "")
		require.NoError(t, err)
		assert.Equal(t, PlacedBackup, p)
	}
	assert.Empty(t, r.Primary(types.RoleDPS))
	assert.Empty(t, r.Fill())
	assert.Len(t, r.Backup(types.RoleDPS), 3)
}

func TestSubmitKeepsNoteForSameRole(t *testing.T) {
	r := newTestRoster(t, 2, 2, 2)
	_, err := r.Submit(Request{Participant: "P", Role: types.RoleDPS, Note: "necro", HasNote: true})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		p, err := r.Submit(Request{Participant: "P", Role: types.RoleDPS})
		require.NoError(t, err)
		assert.Equal(t, PlacedPrimary, p)
		slot, ok := r.Locate("P")
		require.True(t, ok)
		assert.Equal(t, Slot{Role: types.RoleDPS, Note: "necro"}, slot)
	}

	// an explicit note always wins, even an empty one
	_, err = r.Submit(Request{Participant: "P", Role: types.RoleDPS, Note: "", HasNote: true})
	require.NoError(t, err)
	slot, _ := r.Locate("P")
	assert.Equal(t, "", slot.Note)
}

func TestSubmitRoleSwitchDropsNote(t *testing.T) {
	r := newTestRoster(t, 2, 2, 2)
	p, err := r.Submit(Request{Participant: "P", Role: types.RoleHealer, Note: "warden", HasNote: true})
	require.NoError(t, err)
	assert.Equal(t, PlacedPrimary, p)

	p, err = r.Submit(Request{Participant: "P", Role: types.RoleTank})
	require.NoError(t, err)
	assert.Equal(t, PlacedPrimary, p)
	assert.Empty(t, r.Primary(types.RoleHealer))
	assert.Empty(t, r.Backup(types.RoleHealer))
	assert.Equal(t, types.Bucket{{Participant: "P", Note: ""}}, r.Primary(types.RoleTank))
	checkInvariants(t, r)
}

func TestSubmitBackupToPrimary(t *testing.T) {
	r := newTestRoster(t, 1, 1, 1)
	_, err := r.Submit(Request{Participant: "A", Role: types.RoleDPS, Note: "dk", HasNote: true, Backup: true})
	require.NoError(t, err)
	p, err := r.Submit(Request{Participant: "A", Role: types.RoleDPS})
	require.NoError(t, err)
	assert.Equal(t, PlacedPrimary, p)
	assert.Equal(t, types.Bucket{{Participant: "A", Note: "dk"}}, r.Primary(types.RoleDPS))
	assert.Empty(t, r.Backup(types.RoleDPS))
}

func TestResubmitFreesOwnSlot(t *testing.T) {
	// a primary dps switching to backup dps frees their slot but nobody is promoted
	r := newTestRoster(t, 1, 1, 1)
	_, err := r.SignUp("A", types.RoleDPS, "")
	require.NoError(t, err)
	_, err = r.SignUp("B", types.RoleDPS, "")
	require.NoError(t, err)
	p, err := r.Submit(Request{Participant: "A", Role: types.RoleDPS, Backup: true})
	require.NoError(t, err)
	assert.Equal(t, PlacedBackup, p)
	assert.Empty(t, r.Primary(types.RoleDPS))
	assert.Equal(t, []string{"B", "A"}, r.Backup(types.RoleDPS).Participants())
}

func TestWithdrawUnknown(t *testing.T) {
	r := newTestRoster(t, 1, 1, 1)
	before := r.ToSnapshot()
	_, err := r.Withdraw("nobody")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
	assert.Equal(t, before, r.ToSnapshot())
}

func TestWithdrawFromBackup(t *testing.T) {
	r := newTestRoster(t, 0, 1, 1)
	_, err := r.SignUp("P", types.RoleDPS, "x")
	require.NoError(t, err)
	slot, err := r.Withdraw("P")
	require.NoError(t, err)
	assert.Equal(t, Slot{Role: types.RoleDPS, Backup: true, Note: "x"}, slot)
	_, ok := r.Locate("P")
	assert.False(t, ok)
}

func TestAdminAssignAndRemove(t *testing.T) {
	r := newTestRoster(t, 1, 1, 1)
	_, err := r.SignUp("A", types.RoleHealer, "note")
	require.NoError(t, err)
	_, err = r.SignUp("B", types.RoleTank, "")
	require.NoError(t, err)

	p, err := r.AdminAssign("A", types.RoleTank)
	require.NoError(t, err)
	assert.Equal(t, PlacedBackup, p)
	assert.Empty(t, r.Primary(types.RoleHealer))
	assert.Equal(t, types.Bucket{{Participant: "A"}}, r.Backup(types.RoleTank))

	p, err = r.AdminAssign("C", types.RoleHealer)
	require.NoError(t, err)
	assert.Equal(t, PlacedPrimary, p)

	slot, removed := r.AdminRemove("B")
	assert.True(t, removed)
	assert.Equal(t, Slot{Role: types.RoleTank}, slot)
	_, removed = r.AdminRemove("B")
	assert.False(t, removed)
	checkInvariants(t, r)
}

func TestFillIsFIFOAndIdempotent(t *testing.T) {
	r := newTestRoster(t, 1, 2, 1)
	_, err := r.SignUp("X", types.RoleDPS, "")
	require.NoError(t, err)
	for _, id := range []string{"A", "B", "C"} {
		_, err := r.SignUp(id, types.RoleDPS, id+"-note")
		require.NoError(t, err)
	}
	_, err = r.Withdraw("X")
	require.NoError(t, err)

	moves := r.Fill()
	assert.Equal(t, []Move{{Role: types.RoleDPS, Participant: "A", Note: "A-note"}}, moves)
	assert.Equal(t, []string{"B", "C"}, r.Backup(types.RoleDPS).Participants())

	before := r.ToSnapshot()
	assert.Empty(t, r.Fill())
	assert.Equal(t, before, r.ToSnapshot())
}

func TestFillNeverCrossesRoles(t *testing.T) {
	r := newTestRoster(t, 0, 2, 0)
	_, err := r.SignUp("A", types.RoleDPS, "")
	require.NoError(t, err)
	_, err = r.SignUp("B", types.RoleTank, "")
	require.NoError(t, err)
	assert.Empty(t, r.Fill())
	assert.Empty(t, r.Primary(types.RoleHealer))
}

func TestSetLimitsShrinkAndGrow(t *testing.T) {
	r := newTestRoster(t, 3, 1, 1)
	for _, id := range []string{"A", "B", "C", "D"} {
		_, err := r.SignUp(id, types.RoleDPS, "")
		require.NoError(t, err)
	}
	moves, err := r.SetLimits(types.Limits{DPS: 1, Healers: 1, Tanks: 1})
	require.NoError(t, err)
	assert.Equal(t, []Move{{Role: types.RoleDPS, Participant: "C"}, {Role: types.RoleDPS, Participant: "B"}}, moves)
	assert.Equal(t, []string{"A"}, r.Primary(types.RoleDPS).Participants())
	assert.Equal(t, []string{"B", "C", "D"}, r.Backup(types.RoleDPS).Participants())
	checkInvariants(t, r)

	_, err = r.SetLimits(types.Limits{DPS: 3, Healers: 1, Tanks: 1})
	require.NoError(t, err)
	r.Fill()
	assert.Equal(t, []string{"A", "B", "C"}, r.Primary(types.RoleDPS).Participants())
	assert.Equal(t, []string{"D"}, r.Backup(types.RoleDPS).Participants())
}

func TestSetLimitsRejectsNegative(t *testing.T) {
	r := newTestRoster(t, 3, 1, 1)
	_, err := r.SetLimits(types.Limits{DPS: 1, Healers: -1, Tanks: 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
	assert.Equal(t, types.Limits{DPS: 3, Healers: 1, Tanks: 1}, r.Limits())

	_, err = New("t", "l", types.ASAP(), types.Limits{DPS: -1}, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestFieldReplacements(t *testing.T) {
	r := newTestRoster(t, 1, 1, 1)
	_, err := r.SignUp("A", types.RoleDPS, "")
	require.NoError(t, err)
	r.SetLeader("other")
	r.SetTitle("vSS")
	r.Reschedule(types.Schedule{Unix: 1700000000})
	r.SetMemo("bring food")
	require.NoError(t, r.SetAccessTier(3))
	assert.ErrorIs(t, r.SetAccessTier(-1), ErrInvalidTier)

	assert.Equal(t, "other", r.Leader())
	assert.Equal(t, "vSS", r.Title())
	assert.Equal(t, types.Schedule{Unix: 1700000000}, r.ScheduledAt())
	assert.Equal(t, "bring food", r.Memo())
	assert.Equal(t, 3, r.AccessTier())
	assert.Equal(t, []string{"A"}, r.Primary(types.RoleDPS).Participants())

	r.SetMemo("None")
	assert.Equal(t, "", r.Memo())
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := newTestRoster(t, 2, 1, 1)
	for i, id := range []string{"Z", "A", "M", "B"} {
		_, err := r.SignUp(id, types.RoleDPS, fmt.Sprintf("n%d", i))
		require.NoError(t, err)
	}
	_, err := r.SignUpBackup("H", types.RoleHealer, "")
	require.NoError(t, err)
	_, err = r.Withdraw("Z")
	require.NoError(t, err)
	r.SetMemo("memo")

	restored, err := FromSnapshot(r.ToSnapshot())
	require.NoError(t, err)
	assert.Equal(t, r, restored)
	// withdrawing never promotes, M and B keep waiting in order
	assert.Equal(t, []string{"A"}, restored.Primary(types.RoleDPS).Participants())
	assert.Equal(t, []string{"M", "B"}, restored.Backup(types.RoleDPS).Participants())

	f1, err := r.Fingerprint()
	require.NoError(t, err)
	f2, err := restored.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
}

func TestFromSnapshotRejectsDuplicates(t *testing.T) {
	s := types.RosterSnapshot{
		DPS:         types.Bucket{{Participant: "A"}},
		BackupTanks: types.Bucket{{Participant: "A"}},
		Limits:      types.Limits{DPS: 1, Healers: 1, Tanks: 1},
	}
	_, err := FromSnapshot(s)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestFromSnapshotDemotesOverflow(t *testing.T) {
	s := types.RosterSnapshot{
		DPS:       types.Bucket{{Participant: "A"}, {Participant: "B", Note: "b"}, {Participant: "C"}},
		BackupDPS: types.Bucket{{Participant: "D"}},
		Tanks:     types.Bucket{{Participant: "T"}},
		Limits:    types.Limits{DPS: 1, Healers: 1, Tanks: 1},
	}
	r, err := FromSnapshot(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, r.Primary(types.RoleDPS).Participants())
	assert.Equal(t, []string{"B", "C", "D"}, r.Backup(types.RoleDPS).Participants())
	assert.Equal(t, "b", r.Backup(types.RoleDPS)[0].Note)
	assert.Equal(t, []string{"T"}, r.Primary(types.RoleTank).Participants())

	r.SetMemo("still full")
	assert.Len(t, r.ToSnapshot().DPS, 1)
	placement, err := r.SignUp("E", types.RoleDPS, "")
	require.NoError(t, err)
	assert.Equal(t, PlacedBackup, placement)
}

func TestFingerprintDetectsOrder(t *testing.T) {
	a := newTestRoster(t, 2, 0, 0)
	b := newTestRoster(t, 2, 0, 0)
	_, _ = a.SignUp("1", types.RoleDPS, "")
	_, _ = a.SignUp("2", types.RoleDPS, "")
	_, _ = b.SignUp("2", types.RoleDPS, "")
	_, _ = b.SignUp("1", types.RoleDPS, "")
	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb)
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	r := newTestRoster(t, 3, 2, 1)
	people := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i := 0; i < 2000; i++ {
		id := people[rnd.Intn(len(people))]
		role := types.Roles[rnd.Intn(len(types.Roles))]
		switch rnd.Intn(7) {
		case 0:
			_, _ = r.SignUp(id, role, "")
		case 1:
			_, err := r.Submit(Request{Participant: id, Role: role, Backup: rnd.Intn(2) == 0})
			require.NoError(t, err)
		case 2:
			_, _ = r.Withdraw(id)
		case 3:
			_, err := r.AdminAssign(id, role)
			require.NoError(t, err)
		case 4:
			r.Fill()
		case 5:
			_, err := r.SetLimits(types.Limits{DPS: rnd.Intn(4), Healers: rnd.Intn(3), Tanks: rnd.Intn(2)})
			require.NoError(t, err)
		case 6:
			r.AdminRemove(id)
		}
		checkInvariants(t, r)
	}
}
