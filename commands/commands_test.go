package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-roster/persistence"
	"github.com/tcriess/lightspeed-roster/roster"
	"github.com/tcriess/lightspeed-roster/types"
)

func TestParseSignUp(t *testing.T) {
	cases := []struct {
		in   string
		want SignUp
	}{
		{"!su", SignUp{}},
		{"!su dps", SignUp{Role: types.RoleDPS, HasRole: true}},
		{"!SU Heals templar maybe late", SignUp{Role: types.RoleHealer, HasRole: true, Note: "templar maybe late", HasNote: true}},
		{"!bu tank", SignUp{Backup: true, Role: types.RoleTank, HasRole: true}},
		{"!bu necro", SignUp{Backup: true, Note: "necro", HasNote: true}},
		{"!su necro dk", SignUp{Note: "necro dk", HasNote: true}},
		{"!su heal", SignUp{Role: types.RoleHealer, HasRole: true}},
	}
	for _, c := range cases {
		got, err := ParseSignUp(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
	_, err := ParseSignUp("!withdraw")
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

type defaults map[string]types.Role

func (d defaults) GetDefaultRole(_ context.Context, id string) (types.Role, error) {
	role, ok := d[id]
	if !ok {
		return 0, persistence.ErrNotFound
	}
	return role, nil
}

func TestSignUpRequest(t *testing.T) {
	ctx := context.Background()
	store := defaults{"amy": types.RoleTank}

	s, _ := ParseSignUp("!su late")
	req, err := s.Request(ctx, store, "amy")
	require.NoError(t, err)
	assert.Equal(t, roster.Request{Participant: "amy", Role: types.RoleTank, Note: "late", HasNote: true}, req)

	_, err = s.Request(ctx, store, "bob")
	assert.ErrorIs(t, err, ErrNoDefaultRole)

	s, _ = ParseSignUp("!bu dps")
	req, err = s.Request(ctx, store, "bob")
	require.NoError(t, err)
	assert.Equal(t, roster.Request{Participant: "bob", Role: types.RoleDPS, Backup: true}, req)
}

func TestParseLimits(t *testing.T) {
	l, err := ParseLimits("8, 2,2")
	require.NoError(t, err)
	assert.Equal(t, types.Limits{DPS: 8, Healers: 2, Tanks: 2}, l)
	for _, bad := range []string{"8,2", "a,b,c", "8,-1,2", "", "1,2,3,4"} {
		_, err = ParseLimits(bad)
		assert.ErrorIs(t, err, ErrInvalidLimits, bad)
	}
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" 3", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, tier)
	for _, bad := range []string{"5", "-1", "x"} {
		_, err = ParseTier(bad, 5)
		assert.ErrorIs(t, err, roster.ErrInvalidTier, bad)
	}
}

func TestParseLeaderTitle(t *testing.T) {
	leader, title, err := ParseLeaderTitle("amy, vAS HM")
	require.NoError(t, err)
	assert.Equal(t, "amy", leader)
	assert.Equal(t, "vAS HM", title)
	_, _, err = ParseLeaderTitle("amy")
	assert.Error(t, err)
}
