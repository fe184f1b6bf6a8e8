// Package config provides the command-line and YAML-overlay configuration
// surface for the agentgateway binary, grounded on skipper's config.Config:
// a flat struct populated by the standard flag package, with a
// -config-file flag that overlays a YAML document on top of flag defaults
// before flags are re-applied.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sirupsen/logrus"

	"github.com/agentgateway/agentgateway/logging"
	"github.com/agentgateway/agentgateway/model"
)

const (
	defaultAdminAddress        = ":9911"
	defaultRequestTimeout      = 30 * time.Second
	defaultBackendTimeout      = 10 * time.Second
	defaultAuthzDialTimeout    = 2 * time.Second
	defaultApplicationLogLevel = "info"

	configFileUsage           = "if set, overlays this YAML file's keys onto the flag defaults before flags are re-applied"
	adminAddressUsage         = "address for an admin/health endpoint; parsed and stored only, this binary starts no admin endpoint"
	snapshotFileUsage         = "path to a YAML-encoded model.Snapshot to publish at startup, for local/dev use"
	authzTargetUsage          = "default ext authz gRPC dial target, used by routes whose ExtAuthzPolicy.Target is empty"
	authzDialTimeoutUsage     = "dial timeout for ext authz gRPC clients; parsed and stored only, ext authz dialing does not apply it"
	requestTimeoutUsage       = "default per-request deadline applied when a route sets no request_timeout"
	backendTimeoutUsage       = "default per-backend-attempt deadline applied when a route sets no backend_request_timeout"
	applicationLogLevelUsage  = "log level: debug, info, warn, error"
	applicationLogJSONUsage   = "emit application log lines as JSON instead of logrus's text formatter"
	mirrorRatePerSecondUsage  = "maximum mirror-dispatch goroutines started per second, across all routes"
	mirrorBurstUsage          = "burst allowance for the mirror dispatch rate limiter"
	authzContextExtUsage      = "comma-separated key=value pairs merged into every ExtAuthzPolicy.ContextExtensions request, route-level keys win on conflict"
	snapshotInlineUsage       = "inline YAML-encoded model.Snapshot, for one-off local runs without a -snapshot-file; -snapshot-file wins if both are set"
)

// Config is the fully resolved configuration for one agentgateway process.
// Every field except ConfigFile and the derived ApplicationLogLevel has a
// flag and, via yaml tags, a config-file key of the same shape.
type Config struct {
	ConfigFile string `yaml:"-"`

	AdminAddress string `yaml:"admin-address"`
	SnapshotFile string `yaml:"snapshot-file"`

	AuthzTarget      string        `yaml:"authz-target"`
	AuthzDialTimeout time.Duration `yaml:"authz-dial-timeout"`

	DefaultRequestTimeout time.Duration `yaml:"default-request-timeout"`
	DefaultBackendTimeout time.Duration `yaml:"default-backend-timeout"`

	MirrorRatePerSecond float64 `yaml:"mirror-rate-per-second"`
	MirrorBurst         int     `yaml:"mirror-burst"`

	ApplicationLogLevelString string `yaml:"application-log-level"`
	ApplicationLogJSON        bool   `yaml:"application-log-json"`

	ApplicationLogLevel logrus.Level `yaml:"-"`

	// DefaultAuthzContextExtensions holds raw "key=value" entries, reused
	// from the teacher's comma-separated flag.Value pattern since the value
	// is, on the wire, just a delimited list.
	DefaultAuthzContextExtensions *listFlag `yaml:"default-authz-context-extensions"`

	// SnapshotInline is populated when -snapshot-inline carries a YAML
	// model.Snapshot directly on the command line or config file, reusing
	// the teacher's generic yaml-overlay flag.Value for a single struct.
	SnapshotInline *model.Snapshot `yaml:"snapshot-inline"`
}

// NewConfig returns a Config with every flag registered against the
// standard flag.CommandLine, populated with defaults.
func NewConfig() *Config {
	cfg := new(Config)
	cfg.DefaultAuthzContextExtensions = commaListFlag()

	flag.StringVar(&cfg.ConfigFile, "config-file", "", configFileUsage)

	flag.StringVar(&cfg.AdminAddress, "admin-address", defaultAdminAddress, adminAddressUsage)
	flag.StringVar(&cfg.SnapshotFile, "snapshot-file", "", snapshotFileUsage)

	flag.StringVar(&cfg.AuthzTarget, "authz-target", "", authzTargetUsage)
	flag.DurationVar(&cfg.AuthzDialTimeout, "authz-dial-timeout", defaultAuthzDialTimeout, authzDialTimeoutUsage)

	flag.DurationVar(&cfg.DefaultRequestTimeout, "default-request-timeout", defaultRequestTimeout, requestTimeoutUsage)
	flag.DurationVar(&cfg.DefaultBackendTimeout, "default-backend-timeout", defaultBackendTimeout, backendTimeoutUsage)

	flag.Float64Var(&cfg.MirrorRatePerSecond, "mirror-rate-per-second", 200, mirrorRatePerSecondUsage)
	flag.IntVar(&cfg.MirrorBurst, "mirror-burst", 50, mirrorBurstUsage)

	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", defaultApplicationLogLevel, applicationLogLevelUsage)
	flag.BoolVar(&cfg.ApplicationLogJSON, "application-log-json", false, applicationLogJSONUsage)

	flag.Var(cfg.DefaultAuthzContextExtensions, "default-authz-context-extensions", authzContextExtUsage)
	flag.Var(newYamlFlag(&cfg.SnapshotInline), "snapshot-inline", snapshotInlineUsage)

	return cfg
}

// AuthzContextExtensions parses DefaultAuthzContextExtensions' "key=value"
// entries into a map, skipping malformed entries rather than failing
// startup over a typo in an optional flag.
func (c *Config) AuthzContextExtensions() map[string]string {
	if c.DefaultAuthzContextExtensions == nil || c.DefaultAuthzContextExtensions.value == "" {
		return nil
	}
	out := make(map[string]string, len(c.DefaultAuthzContextExtensions.values))
	for _, kv := range c.DefaultAuthzContextExtensions.values {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

// Parse parses os.Args, then, if -config-file was given, overlays the YAML
// document onto cfg and re-applies flags so the command line still wins
// over the file.
func (c *Config) Parse() error {
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %v", flag.Args())
	}

	if c.ConfigFile != "" {
		raw, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, c); err != nil {
			return fmt.Errorf("unmarshalling config file: %w", err)
		}
		flag.Parse()
	}

	return c.applyLogLevel()
}

// applyLogLevel resolves ApplicationLogLevelString into ApplicationLogLevel,
// split out of Parse so tests can exercise it without touching flag.CommandLine.
func (c *Config) applyLogLevel() error {
	level, err := logging.ParseLevel(c.ApplicationLogLevelString)
	if err != nil {
		return fmt.Errorf("invalid application-log-level %q: %w", c.ApplicationLogLevelString, err)
	}
	c.ApplicationLogLevel = level
	return nil
}
