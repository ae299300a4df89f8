package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tcriess/lightspeed-roster/globals"
	"github.com/tcriess/lightspeed-roster/types"
)

const (
	defaultAdminUser  = "admin"
	defaultAccessRule = "Roster.AccessTier in Participant.Tiers"
	defaultTimezone   = "UTC"
	envPrefix         = "LSROSTER"
)

// Config is the global configuration object which is filled via the configuration file, the environment and
// command-line flags.
type Config struct {
	OIDCConfigs       []OIDCConfig      `mapstructure:"oidc"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	RosterConfig      RosterConfig      `mapstructure:"roster"`
	LogLevel          string            `mapstructure:"log_level"`
	AdminUser         string            `mapstructure:"admin_user"`
	Listen            string            `mapstructure:"listen"`
}

// An OIDCConfig  object configures an OpenID Connect provider that is used to authenticate participants. Callers
// provide an ID token and the name of the provider, the authentication is then performed via verification of the
// token.
type OIDCConfig struct {
	Name        string `mapstructure:"name"`
	ClientId    string `mapstructure:"client_id"`
	ProviderUrl string `mapstructure:"provider_url"` // f.e. "https://accounts.google.com", this is used to construct the discovery url and subsequently discover the openid endpoints
	// GroupsClaim names the claim listing the caller's groups, groups named like a roster tier grant that tier.
	GroupsClaim string `mapstructure:"groups_claim"`
}

// PersistenceConfig selects the storage backend. Type is one of "buntdb", "sqlite", "postgres", "gorm-sqlite"
// or "gorm-postgres"; DSN is the file name for buntdb (":memory:" for an in-memory store).
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`

	// FlockPath, if set, is a directory for per-roster lock files shared by all processes working on the same store.
	FlockPath string `mapstructure:"flock_path"`
}

// RosterConfig holds the defaults for new rosters.
type RosterConfig struct {
	Defaults types.Limits `mapstructure:"defaults"`
	// Tiers are the names of the access tiers, a roster's access tier is an index into this list.
	Tiers        []string `mapstructure:"tiers"`
	Timezone     string   `mapstructure:"timezone"`
	AccessRule   string   `mapstructure:"access_rule"`
	FillCronSpec string   `mapstructure:"fill_cron_spec"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.StringP("admin-user", "a", "", "id of the admin user")
	flagSet.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flagSet.String("listen", "", "listen address of the http api")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("admin_user", defaultAdminUser)
	v.SetDefault("log_level", "info")
	v.SetDefault("listen", ":8000")
	v.SetDefault("persistence.type", "buntdb")
	v.SetDefault("persistence.dsn", ":memory:")
	v.SetDefault("roster.defaults.dps", 8)
	v.SetDefault("roster.defaults.healers", 2)
	v.SetDefault("roster.defaults.tanks", 2)
	v.SetDefault("roster.tiers", []string{"Tier 0", "Tier 1", "Tier 2", "Tier 3", "Tier 4"})
	v.SetDefault("roster.timezone", defaultTimezone)
	v.SetDefault("roster.access_rule", defaultAccessRule)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	cfg := Config{}
	setDefaults(v)
	if flagSet != nil {
		flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
		err := v.BindPFlags(flagSet)
		if err != nil {
			globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		v.SetConfigType("toml")
		err = v.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			return nil, err
		}
	}
	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}
	globals.SetLogLevel(cfg.LogLevel)

	globals.AppLogger.Debug("config", "cfg", cfg)
	return &cfg, nil
}
