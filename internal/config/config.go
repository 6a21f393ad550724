// Package config loads koe settings from YAML, KOE_* environment variables
// and built-in defaults, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AppName names the config file, directories and env prefix.
const AppName = "koe"

// Engines lists the supported speech engines.
var Engines = []string{"espeak", "say", "piper", "none"}

// Config is the full koe configuration.
type Config struct {
	// Target language prefix for live synthesis voices.
	Language string `yaml:"language" mapstructure:"language" env:"LANGUAGE"`

	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache" envPrefix:"CACHE_"`
	Assets   AssetsConfig   `yaml:"assets" mapstructure:"assets" envPrefix:"ASSETS_"`
	Speech   SpeechConfig   `yaml:"speech" mapstructure:"speech" envPrefix:"SPEECH_"`
	Playback PlaybackConfig `yaml:"playback" mapstructure:"playback" envPrefix:"PLAYBACK_"`
	Preload  PreloadConfig  `yaml:"preload" mapstructure:"preload" envPrefix:"PRELOAD_"`
	Log      LogConfig      `yaml:"log" mapstructure:"log" envPrefix:"LOG_"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics" envPrefix:"METRICS_"`

	// File is the config file that was read, if any.
	File string `yaml:"-" mapstructure:"-"`
}

// CacheConfig holds audio store settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled" env:"ENABLED"`

	// Directory for clip files (defaults to the user cache dir)
	Dir string `yaml:"dir" mapstructure:"dir" env:"DIR"`

	// Disk cap in MB; 0 keeps every clip
	MaxSizeMB int `yaml:"max_size_mb" mapstructure:"max_size_mb" env:"MAX_SIZE_MB"`

	// In-memory tier in MB; 0 disables it
	MemoryMB int `yaml:"memory_mb" mapstructure:"memory_mb" env:"MEMORY_MB"`

	// zstd level for large clips; 0 stores them uncompressed
	Compression int `yaml:"compression" mapstructure:"compression" env:"COMPRESSION"`
}

// AssetsConfig locates the static kana clips.
type AssetsConfig struct {
	// Directory or http(s) base URL
	Base string `yaml:"base" mapstructure:"base" env:"BASE"`

	// Path of one clip relative to Base; %s is the romaji token
	Pattern string `yaml:"pattern" mapstructure:"pattern" env:"PATTERN"`

	// Remote fetch pacing; 0 is unlimited
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" env:"REQUESTS_PER_SECOND"`

	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

// SpeechConfig selects and tunes the live synthesis engine.
type SpeechConfig struct {
	Engine string  `yaml:"engine" mapstructure:"engine" env:"ENGINE"`
	Binary string  `yaml:"binary" mapstructure:"binary" env:"BINARY"`
	Rate   float64 `yaml:"rate" mapstructure:"rate" env:"RATE"`
	Pitch  float64 `yaml:"pitch" mapstructure:"pitch" env:"PITCH"`

	Piper PiperConfig `yaml:"piper" mapstructure:"piper" envPrefix:"PIPER_"`
}

// PiperConfig holds Piper-specific configuration.
type PiperConfig struct {
	Binary   string `yaml:"binary" mapstructure:"binary" env:"BINARY"`
	ModelDir string `yaml:"model_dir" mapstructure:"model_dir" env:"MODEL_DIR"`
}

// PlaybackConfig holds audio output settings.
type PlaybackConfig struct {
	Volume float64 `yaml:"volume" mapstructure:"volume" env:"VOLUME"`
}

// PreloadConfig tunes batch preloading.
type PreloadConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers" env:"WORKERS"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" env:"LEVEL"`

	// Log file; empty logs to stderr
	File string `yaml:"file" mapstructure:"file" env:"FILE"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Listen address for /metrics; empty disables it
	Addr string `yaml:"addr" mapstructure:"addr" env:"ADDR"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Language: "ja",
		Cache: CacheConfig{
			Enabled:     true,
			MaxSizeMB:   0,
			MemoryMB:    16,
			Compression: 3,
		},
		Assets: AssetsConfig{
			Pattern:        "kana/%s.wav",
			TimeoutSeconds: 10,
		},
		Speech: SpeechConfig{
			Engine: "espeak",
			Rate:   0.9,
			Pitch:  1.0,
			Piper:  PiperConfig{Binary: "piper"},
		},
		Playback: PlaybackConfig{Volume: 1.0},
		Preload:  PreloadConfig{Workers: 4},
		Log:      LogConfig{Level: "info"},
	}
}

func scope() *gap.Scope {
	return gap.NewScope(gap.User, AppName)
}

// ConfigDirs returns the directories searched for koe.yml, most specific
// first.
func ConfigDirs() ([]string, error) {
	dirs, err := scope().ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("find configuration directory: %w", err)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if c := os.Getenv("KOE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

// DefaultFile is where `koe config` creates the config file.
func DefaultFile() (string, error) {
	dirs, err := ConfigDirs()
	if err != nil {
		return "", err
	}
	return filepath.Join(dirs[0], AppName+".yml"), nil
}

// Load reads the config. An explicit path wins over the default
// directories; a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		dirs, err := ConfigDirs()
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			v.AddConfigPath(d)
		}
		v.SetConfigName(AppName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Debug("no config file found, using defaults")
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", v.ConfigFileUsed(), err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err == nil {
			cfg.File = used
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "KOE_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths expands ~ and fills in per-user default directories.
func (c *Config) resolvePaths() error {
	var err error
	expand := func(p *string) {
		if err != nil || *p == "" {
			return
		}
		*p, err = homedir.Expand(*p)
	}

	expand(&c.Cache.Dir)
	expand(&c.Speech.Binary)
	expand(&c.Speech.Piper.Binary)
	expand(&c.Speech.Piper.ModelDir)
	expand(&c.Log.File)
	if !IsURL(c.Assets.Base) {
		expand(&c.Assets.Base)
	}
	if err != nil {
		return fmt.Errorf("expand path: %w", err)
	}

	if c.Cache.Dir == "" {
		dir, err := scope().CacheDir()
		if err != nil {
			return fmt.Errorf("find cache directory: %w", err)
		}
		c.Cache.Dir = filepath.Join(dir, "clips")
	}
	if c.Assets.Base == "" {
		dirs, err := scope().DataDirs()
		if err == nil && len(dirs) > 0 {
			c.Assets.Base = dirs[0]
		}
	}
	return nil
}

// IsURL reports whether s is an http(s) or file URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "file":
		return true
	}
	return false
}

// Validate checks that c contains a coherent set of values. It returns a
// joined error listing every problem.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Language) == "" {
		errs = append(errs, errors.New("language must not be empty"))
	}
	if c.Cache.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("cache max_size_mb must be >= 0, got %d", c.Cache.MaxSizeMB))
	}
	if c.Cache.MemoryMB < 0 {
		errs = append(errs, fmt.Errorf("cache memory_mb must be >= 0, got %d", c.Cache.MemoryMB))
	}
	if c.Cache.Compression < 0 || c.Cache.Compression > 22 {
		errs = append(errs, fmt.Errorf("cache compression must be between 0 and 22, got %d", c.Cache.Compression))
	}
	if !strings.Contains(c.Assets.Pattern, "%s") {
		errs = append(errs, fmt.Errorf("assets pattern %q must contain %%s", c.Assets.Pattern))
	}
	if c.Assets.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("assets requests_per_second must be >= 0, got %.2f", c.Assets.RequestsPerSecond))
	}
	if c.Assets.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("assets timeout_seconds must be >= 0, got %d", c.Assets.TimeoutSeconds))
	}
	if !validEngine(c.Speech.Engine) {
		errs = append(errs, fmt.Errorf("speech engine %q is not one of %s", c.Speech.Engine, strings.Join(Engines, ", ")))
	}
	if c.Speech.Rate <= 0 || c.Speech.Rate > 4 {
		errs = append(errs, fmt.Errorf("speech rate must be in (0, 4], got %.2f", c.Speech.Rate))
	}
	if c.Speech.Pitch <= 0 || c.Speech.Pitch > 2 {
		errs = append(errs, fmt.Errorf("speech pitch must be in (0, 2], got %.2f", c.Speech.Pitch))
	}
	if c.Speech.Engine == "piper" && c.Speech.Piper.ModelDir == "" {
		errs = append(errs, errors.New("speech piper model_dir is required for the piper engine"))
	}
	if c.Playback.Volume < 0 || c.Playback.Volume > 1 {
		errs = append(errs, fmt.Errorf("playback volume must be between 0.0 and 1.0, got %.2f", c.Playback.Volume))
	}
	if c.Preload.Workers < 1 || c.Preload.Workers > 64 {
		errs = append(errs, fmt.Errorf("preload workers must be between 1 and 64, got %d", c.Preload.Workers))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}

	return errors.Join(errs...)
}

func validEngine(name string) bool {
	for _, e := range Engines {
		if e == name {
			return true
		}
	}
	return false
}

const header = `# koe configuration.
# Every key can also be set with a KOE_ environment variable, for example
# KOE_SPEECH_ENGINE=piper or KOE_CACHE_MAX_SIZE_MB=200.
`

// Marshal renders c as YAML.
func Marshal(c *Config) ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

// EnsureFile writes the default config to path unless a file exists there.
func EnsureFile(path string) error {
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("unable to create directory: %w", err)
	}
	body, err := Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(header), body...), 0o600); err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	return nil
}
