// Package commands parses the arguments of the sign-up and roster management commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tcriess/lightspeed-roster/persistence"
	"github.com/tcriess/lightspeed-roster/roster"
	"github.com/tcriess/lightspeed-roster/types"
)

const (
	SignUpCommand = "!su"
	BackupCommand = "!bu"
)

var (
	ErrNoDefaultRole  = errors.New("no role given and no default role set")
	ErrInvalidLimits  = errors.New("limits must be three non-negative numbers: dps,healers,tanks")
	ErrInvalidCommand = errors.New("not a sign-up command")
)

// SignUp is a parsed "!su [role] [note]" or "!bu [role] [note]".
type SignUp struct {
	Backup  bool
	Role    types.Role
	HasRole bool
	Note    string
	// HasNote distinguishes "no note given" from an empty note.
	HasNote bool
}

// ParseSignUp splits a sign-up command. The first word after the command is taken as the role if it names one,
// everything else is the note.
func ParseSignUp(content string) (SignUp, error) {
	res := SignUp{}
	parts := strings.SplitN(strings.TrimSpace(content), " ", 3)
	switch strings.ToLower(parts[0]) {
	case SignUpCommand:
	case BackupCommand:
		res.Backup = true
	default:
		return res, fmt.Errorf("%w: %q", ErrInvalidCommand, parts[0])
	}
	rest := parts[1:]
	if len(rest) > 0 {
		if role, err := types.ParseRole(rest[0]); err == nil {
			res.Role = role
			res.HasRole = true
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		res.Note = strings.Join(rest, " ")
		res.HasNote = true
	}
	return res, nil
}

// DefaultRoles looks up the role a participant signs up with when they do not name one.
type DefaultRoles interface {
	GetDefaultRole(ctx context.Context, participantID string) (types.Role, error)
}

// Request turns a parsed sign-up into an allocator request for participant, falling back to their default role.
func (s SignUp) Request(ctx context.Context, defaults DefaultRoles, participant string) (roster.Request, error) {
	req := roster.Request{
		Participant: participant,
		Role:        s.Role,
		Note:        s.Note,
		HasNote:     s.HasNote,
		Backup:      s.Backup,
	}
	if s.HasRole {
		return req, nil
	}
	role, err := defaults.GetDefaultRole(ctx, participant)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return req, ErrNoDefaultRole
		}
		return req, err
	}
	req.Role = role
	return req, nil
}

// ParseLimits parses "dps,healers,tanks".
func ParseLimits(s string) (types.Limits, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return types.Limits{}, fmt.Errorf("%w: %q", ErrInvalidLimits, s)
	}
	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return types.Limits{}, fmt.Errorf("%w: %q", ErrInvalidLimits, s)
		}
		nums[i] = n
	}
	return types.Limits{DPS: nums[0], Healers: nums[1], Tanks: nums[2]}, nil
}

// ParseTier parses an access tier, valid tiers are 0 to count-1.
func ParseTier(s string, count int) (int, error) {
	tier, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || tier < 0 || tier >= count {
		return 0, fmt.Errorf("%w: %q, must be between 0 and %d", roster.ErrInvalidTier, s, count-1)
	}
	return tier, nil
}

// ParseLeaderTitle parses "leader,title".
func ParseLeaderTitle(s string) (leader, title string, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("expected leader,title: %q", s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
