package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Name of the visualizer style
	// Default: "bars"
	Style string

	// Visualizer frames per second
	FrameRate int

	// FFT window length used by the signal sampler
	FFTSize int

	// Quiet window before a terminal resize re-initialises the renderer
	ResizeQuiet time.Duration

	// Output format template for the now command
	// Default: "{{.Name}}"
	OutputFormat string

	// Fixed display width for the now command, 0 disables padding
	OutputWidth int

	// Scroll now output that exceeds OutputWidth
	MarqueeEnabled   bool
	MarqueeSpeed     int // Characters per second
	MarqueeSeparator string

	// Directory for the library database and logs
	DataDir string

	// Library database path, empty means <DataDir>/library.db
	LibraryDB string

	Player PlayerConfig
	Audio  AudioConfig

	store *Store
}

// PlayerConfig holds playback session configuration
type PlayerConfig struct {
	SkipOnLoadFailure bool
	MaxLoadRetries    int
	LoadTimeout       time.Duration
}

// AudioConfig holds output device configuration
type AudioConfig struct {
	SampleRate int
	BufferSize time.Duration
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	return LoadDir(getConfigDir())
}

// LoadDir reads configuration from config.yaml in dir and the environment
func LoadDir(dir string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("style", "bars")
	v.SetDefault("frame_rate", 30)
	v.SetDefault("fft_size", 2048)
	v.SetDefault("resize_quiet_ms", 400)
	v.SetDefault("output_format", "{{.Name}}")
	v.SetDefault("output_width", 0)
	v.SetDefault("marquee_enabled", false)
	v.SetDefault("marquee_speed", 2)
	v.SetDefault("marquee_separator", " • ")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("library_db", "")
	v.SetDefault("player.skip_on_load_failure", true)
	v.SetDefault("player.max_load_retries", 3)
	v.SetDefault("player.load_timeout", "30s")
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.buffer_ms", 100)

	// Read config file (optional - don't fail if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("MURMUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Style:        v.GetString("style"),
		FrameRate:    v.GetInt("frame_rate"),
		FFTSize:      v.GetInt("fft_size"),
		ResizeQuiet:  time.Duration(v.GetInt("resize_quiet_ms")) * time.Millisecond,
		OutputFormat: v.GetString("output_format"),
		DataDir:      v.GetString("data_dir"),
		LibraryDB:    v.GetString("library_db"),
		Player: PlayerConfig{
			SkipOnLoadFailure: v.GetBool("player.skip_on_load_failure"),
			MaxLoadRetries:    v.GetInt("player.max_load_retries"),
			LoadTimeout:       v.GetDuration("player.load_timeout"),
		},
		Audio: AudioConfig{
			SampleRate: v.GetInt("audio.sample_rate"),
			BufferSize: time.Duration(v.GetInt("audio.buffer_ms")) * time.Millisecond,
		},
		OutputWidth:      v.GetInt("output_width"),
		MarqueeEnabled:   v.GetBool("marquee_enabled"),
		MarqueeSpeed:     v.GetInt("marquee_speed"),
		MarqueeSeparator: v.GetString("marquee_separator"),
		store:            newStore(v, filepath.Join(dir, "config.yaml")),
	}

	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}

	return cfg, nil
}

// Store returns the write-through key/value view of the configuration
func (c *Config) Store() *Store {
	return c.store
}

// LibraryPath returns the library database path
func (c *Config) LibraryPath() string {
	if c.LibraryDB != "" {
		return c.LibraryDB
	}
	return filepath.Join(c.DataDir, "library.db")
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "murmur")

	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "murmur")
}
