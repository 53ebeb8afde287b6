package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix is the prefix for every environment override, e.g. AKIDZUKI_LOG_LEVEL.
const envPrefix = "AKIDZUKI"

// I/O strategy names accepted by IOStrategy.
const (
	IOStrategyAuto     = "auto"
	IOStrategyPoll     = "poll"
	IOStrategyThreaded = "threaded"
)

// Settings holds every tunable of the tool. Values are resolved in three
// layers: built-in defaults, the YAML settings file, then AKIDZUKI_*
// environment variables.
type Settings struct {
	DataPath     string `envconfig:"DATA_PATH" yaml:"data_path"`
	DatabasePath string `envconfig:"DATABASE_PATH" yaml:"database_path"`
	LogPath      string `envconfig:"LOG_PATH" yaml:"log_file"`
	LogLevel     string `envconfig:"LOG_LEVEL" yaml:"log_level"`

	// SSH transport
	SSHTimeout        time.Duration `envconfig:"SSH_TIMEOUT" yaml:"ssh_timeout"`
	TestTimeout       time.Duration `envconfig:"TEST_TIMEOUT" yaml:"test_timeout"`
	KeepaliveInterval time.Duration `envconfig:"KEEPALIVE_INTERVAL" yaml:"keepalive_interval"`
	KnownHostsPath    string        `envconfig:"KNOWN_HOSTS" yaml:"known_hosts"`
	StrictHostKeys    bool          `envconfig:"STRICT_HOST_KEYS" yaml:"strict_host_keys"`
	UseAgent          bool          `envconfig:"USE_AGENT" yaml:"use_agent"`

	// Interactive session
	PollInterval        time.Duration `envconfig:"POLL_INTERVAL" yaml:"poll_interval"`
	IOStrategy          string        `envconfig:"IO_STRATEGY" yaml:"io_strategy"`
	DetachedIdleTimeout time.Duration `envconfig:"DETACHED_IDLE_TIMEOUT" yaml:"detached_idle_timeout"`
	RecordingDir        string        `envconfig:"RECORDING_DIR" yaml:"recording_dir"`
	RecordInput         bool          `envconfig:"RECORD_INPUT" yaml:"record_input"`

	// Menu
	SortBy      string `envconfig:"SORT_BY" yaml:"sort_by"`
	RecentLimit int    `envconfig:"RECENT_LIMIT" yaml:"recent_limit"`
	ShowColors  bool   `envconfig:"SHOW_COLORS" yaml:"show_colors"`
}

var Cfg Settings

// Defaults returns the built-in settings. Paths are rooted in the user's
// config directory, falling back to a dot directory in the working
// directory when no home is available.
func Defaults() Settings {
	data := ".akidzuki"
	if dir, err := os.UserConfigDir(); err == nil {
		data = filepath.Join(dir, "akidzuki")
	}
	knownHosts := ""
	if home, err := os.UserHomeDir(); err == nil {
		knownHosts = filepath.Join(home, ".ssh", "known_hosts")
	}
	return Settings{
		DataPath:            data,
		LogLevel:            "INFO",
		SSHTimeout:          10 * time.Second,
		TestTimeout:         5 * time.Second,
		KeepaliveInterval:   30 * time.Second,
		KnownHostsPath:      knownHosts,
		UseAgent:            true,
		PollInterval:        100 * time.Millisecond,
		IOStrategy:          IOStrategyAuto,
		DetachedIdleTimeout: 30 * time.Minute,
		SortBy:              "name",
		RecentLimit:         5,
		ShowColors:          true,
	}
}

// SettingsFile returns the YAML settings path: AKIDZUKI_SETTINGS when set,
// otherwise settings.yaml inside the data directory.
func SettingsFile(dataPath string) string {
	if p := os.Getenv(envPrefix + "_SETTINGS"); p != "" {
		return p
	}
	return filepath.Join(dataPath, "settings.yaml")
}

// Load resolves Cfg from defaults, the settings file and the environment.
func Load() error {
	s, err := load()
	if err != nil {
		return err
	}
	Cfg = s
	return nil
}

func load() (Settings, error) {
	s := Defaults()

	// DATA_PATH decides where the settings file lives, so it is read first.
	if p := os.Getenv(envPrefix + "_DATA_PATH"); p != "" {
		s.DataPath = p
	}
	path := SettingsFile(s.DataPath)
	if err := mergeFile(&s, path); err != nil {
		return Settings{}, err
	}
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return Settings{}, fmt.Errorf("load config from environment: %w", err)
	}
	s.fillDerived()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func mergeFile(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read settings file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return nil
}

func (s *Settings) fillDerived() {
	if s.DatabasePath == "" {
		s.DatabasePath = filepath.Join(s.DataPath, "akidzuki.db")
	}
	if s.LogPath == "" {
		s.LogPath = filepath.Join(s.DataPath, "akidzuki.log")
	}
}

// Validate rejects settings the session layer cannot honour.
func (s *Settings) Validate() error {
	switch s.IOStrategy {
	case IOStrategyAuto, IOStrategyPoll, IOStrategyThreaded:
	default:
		return fmt.Errorf("invalid io_strategy %q (want auto, poll or threaded)", s.IOStrategy)
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", s.PollInterval)
	}
	if s.SSHTimeout <= 0 {
		return fmt.Errorf("ssh_timeout must be positive, got %s", s.SSHTimeout)
	}
	if s.KeepaliveInterval < 0 {
		return fmt.Errorf("keepalive_interval must not be negative, got %s", s.KeepaliveInterval)
	}
	switch strings.ToUpper(s.LogLevel) {
	case "", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("invalid log_level %q (want DEBUG, INFO, WARN or ERROR)", s.LogLevel)
	}
	switch s.SortBy {
	case "name", "host", "last_used", "group":
	default:
		return fmt.Errorf("invalid sort_by %q", s.SortBy)
	}
	return nil
}

// Save writes s to the YAML settings file, creating the data directory.
func Save(s Settings) error {
	path := SettingsFile(s.DataPath)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}
