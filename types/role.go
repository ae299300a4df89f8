package types

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRole = errors.New("invalid role")

// Role is one of the three role categories a roster is split into.
type Role int

const (
	RoleDPS Role = iota
	RoleHealer
	RoleTank
)

// Roles lists all roles in their canonical order.
var Roles = []Role{RoleDPS, RoleHealer, RoleTank}

var roleNames = map[Role]string{
	RoleDPS:    "dps",
	RoleHealer: "healer",
	RoleTank:   "tank",
}

// accepted spellings, including the ones people actually type in chat
var roleAliases = map[string]Role{
	"dps":    RoleDPS,
	"healer": RoleHealer,
	"heal":   RoleHealer,
	"heals":  RoleHealer,
	"tank":   RoleTank,
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole maps a (case-insensitive) role name or alias to a Role.
func ParseRole(s string) (Role, error) {
	if role, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return role, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	role, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = role
	return nil
}
