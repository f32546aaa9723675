// Package config loads the externally supplied preferences the coach
// consumes: bridge endpoint, think times, archive backend and status API
// address. The core treats these as read-only inputs; nothing here is
// persisted back.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBridgeHost = "127.0.0.1"
	DefaultBridgePort = 8765

	// Bridge defaults: 2 s of search for analysis, 3 s for an engine move.
	DefaultAnalyseMovetimeMS    = 2000
	DefaultEngineMoveMovetimeMS = 3000
)

type Preferences struct {
	Bridge  BridgePrefs  `yaml:"bridge"`
	Think   ThinkPrefs   `yaml:"think"`
	Archive ArchivePrefs `yaml:"archive"`
	Status  StatusPrefs  `yaml:"status"`
}

// BridgePrefs locates the engine bridge endpoint.
type BridgePrefs struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ThinkPrefs are the engine search budgets in milliseconds. These are the
// only fields the preferences watcher reloads at runtime.
type ThinkPrefs struct {
	AnalyseMS    int `yaml:"analyse_ms"`
	EngineMoveMS int `yaml:"engine_move_ms"`
}

// ArchivePrefs selects where finished games are archived.
type ArchivePrefs struct {
	Backend     string `yaml:"backend"` // memory | redis | postgres
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
}

// StatusPrefs configures the read-only status endpoint. An empty address
// disables it.
type StatusPrefs struct {
	Addr string `yaml:"addr"`
}

func Default() Preferences {
	return Preferences{
		Bridge: BridgePrefs{Host: DefaultBridgeHost, Port: DefaultBridgePort},
		Think: ThinkPrefs{
			AnalyseMS:    DefaultAnalyseMovetimeMS,
			EngineMoveMS: DefaultEngineMoveMovetimeMS,
		},
		Archive: ArchivePrefs{Backend: "memory"},
	}
}

// Load builds preferences from defaults, then the YAML file at path (when
// not empty), then environment overrides. A file that exists but does not
// parse is an error; env values that do not parse fall back silently.
func Load(path string) (*Preferences, error) {
	prefs := Default()

	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read preferences file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &prefs); err != nil {
			return nil, fmt.Errorf("parse preferences file %s: %w", path, err)
		}
	}

	applyEnv(&prefs)

	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func applyEnv(p *Preferences) {
	if v := strings.TrimSpace(os.Getenv("BRIDGE_HOST")); v != "" {
		p.Bridge.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("BRIDGE_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Bridge.Port = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ANALYSE_MOVETIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Think.AnalyseMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_MOVETIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Think.EngineMoveMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARCHIVE_BACKEND")); v != "" {
		p.Archive.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		p.Archive.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		p.Archive.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("STATUS_ADDR")); v != "" {
		p.Status.Addr = v
	}
}

func (p *Preferences) Validate() error {
	if strings.TrimSpace(p.Bridge.Host) == "" {
		return fmt.Errorf("bridge host must not be empty")
	}
	if p.Bridge.Port <= 0 || p.Bridge.Port > 65535 {
		return fmt.Errorf("bridge port %d out of range", p.Bridge.Port)
	}
	if p.Think.AnalyseMS <= 0 || p.Think.EngineMoveMS <= 0 {
		return fmt.Errorf("think times must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(p.Archive.Backend)) {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(p.Archive.RedisURL) == "" {
			return fmt.Errorf("archive backend redis requires redis_url")
		}
	case "postgres":
		if strings.TrimSpace(p.Archive.DatabaseURL) == "" {
			return fmt.Errorf("archive backend postgres requires database_url")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", p.Archive.Backend)
	}
	return nil
}

// BridgeURL renders the websocket endpoint for the configured host and port.
func (p *Preferences) BridgeURL() string {
	return fmt.Sprintf("ws://%s:%d", p.Bridge.Host, p.Bridge.Port)
}
