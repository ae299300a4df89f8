package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/tcriess/lightspeed-roster/config"
	"github.com/tcriess/lightspeed-roster/globals"
)

const defaultGroupsClaim = "groups"

// Identity is an authenticated caller.
type Identity struct {
	ID    string
	Tiers []int
}

// TiersFromGroups maps group names to the indexes of the equally named tiers.
func TiersFromGroups(groups []string, tierNames []string) []int {
	held := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		held[g] = struct{}{}
	}
	tiers := make([]int, 0)
	for i, name := range tierNames {
		if _, ok := held[name]; ok {
			tiers = append(tiers, i)
		}
	}
	return tiers
}

// Authenticate verifies a given OIDC ID-Token using the configured OIDC provider.
// It returns the caller's identity if verification was successful (or nil if no provider was configured).
// TODO: Currently, the id is set to the "email" property of the claim, this could be made configurable. But: ensure that this is unique across the user base!
func Authenticate(ctx context.Context, idToken, oidcProvider string, cfg *config.Config) (*Identity, error) {
	if idToken == "" || len(cfg.OIDCConfigs) == 0 {
		return nil, nil
	}
	var oidcConf *config.OIDCConfig
	for i := range cfg.OIDCConfigs {
		if cfg.OIDCConfigs[i].Name == oidcProvider {
			oidcConf = &cfg.OIDCConfigs[i]
			break
		}
	}
	if oidcConf == nil {
		globals.AppLogger.Debug("no oidc config found for provider", "provider", oidcProvider)
		return nil, nil
	}
	provider, err := oidc.NewProvider(ctx, oidcConf.ProviderUrl)
	if err != nil {
		return nil, err
	}
	conf := oidc.Config{}
	if oidcConf.ClientId == "" {
		conf.SkipClientIDCheck = true
	} else {
		conf.ClientID = oidcConf.ClientId
	}
	verifier := provider.Verifier(&conf)
	verifiedIdToken, err := verifier.Verify(ctx, idToken)
	if err != nil {
		globals.AppLogger.Debug("could not verify id token", "provider", oidcProvider, "error", err)
		return nil, err
	}

	claims := make(map[string]json.RawMessage)
	err = verifiedIdToken.Claims(&claims)
	if err != nil {
		return nil, err
	}
	return identityFromClaims(claims, oidcConf.GroupsClaim, cfg.RosterConfig.Tiers)
}

func identityFromClaims(claims map[string]json.RawMessage, groupsClaim string, tierNames []string) (*Identity, error) {
	if groupsClaim == "" {
		groupsClaim = defaultGroupsClaim
	}
	email := ""
	if raw, ok := claims["email"]; ok {
		if err := json.Unmarshal(raw, &email); err != nil {
			return nil, fmt.Errorf("invalid email claim: %w", err)
		}
	}
	if email == "" {
		return nil, fmt.Errorf("id token has no email claim")
	}
	groups := make([]string, 0)
	if raw, ok := claims[groupsClaim]; ok {
		if err := json.Unmarshal(raw, &groups); err != nil {
			return nil, fmt.Errorf("invalid %s claim: %w", groupsClaim, err)
		}
	}
	return &Identity{ID: email, Tiers: TiersFromGroups(groups, tierNames)}, nil
}
