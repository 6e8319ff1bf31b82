// ABOUTME: Runtime configuration loaded from ETABLA_* environment variables
// ABOUTME: Command-line flags registered on top override the environment
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration.
type Config struct {
	// Assets
	AssetBase   string // directory or http(s) URL that catalog paths resolve against
	CacheDir    string // on-disk cache for remote assets, empty disables
	CatalogPath string // YAML catalog override, empty uses the built-in catalog

	// Audio output
	Backend    string // oto, malgo, or null
	SampleRate int
	Channels   int
	BitDepth   int // malgo only
	Volume     int

	// Timing
	Latency      time.Duration
	StartDelay   time.Duration
	Debounce     time.Duration
	TickInterval time.Duration
	LiveFineTune bool

	// Initial request
	Pattern  string
	Tempo    float64
	Key      string
	FineTune float64

	// Remote control
	RemoteAddr string // empty disables the remote control server
	Name       string
	MDNS       bool

	// MIDI beat output port name, empty disables
	MIDIOut string

	// Logging and UI
	LogFile string
	NoTUI   bool
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		AssetBase:   envStr("ETABLA_ASSETS", "."),
		CacheDir:    envStr("ETABLA_CACHE_DIR", ""),
		CatalogPath: envStr("ETABLA_CATALOG", ""),

		Backend:    envStr("ETABLA_BACKEND", "oto"),
		SampleRate: envInt("ETABLA_SAMPLE_RATE", 44100),
		Channels:   envInt("ETABLA_CHANNELS", 2),
		BitDepth:   envInt("ETABLA_BIT_DEPTH", 16),
		Volume:     envInt("ETABLA_VOLUME", 100),

		Latency:      envMillis("ETABLA_LATENCY_MS", 150),
		StartDelay:   envMillis("ETABLA_START_DELAY_MS", 150),
		Debounce:     envMillis("ETABLA_DEBOUNCE_MS", 200),
		TickInterval: envMillis("ETABLA_TICK_MS", 16),
		LiveFineTune: envBool("ETABLA_LIVE_FINE_TUNE", false),

		Pattern:  envStr("ETABLA_PATTERN", "Teentaal"),
		Tempo:    envFloat("ETABLA_TEMPO", 150),
		Key:      envStr("ETABLA_KEY", "G#"),
		FineTune: envFloat("ETABLA_FINE_TUNE", 0),

		RemoteAddr: envStr("ETABLA_REMOTE_ADDR", ":8928"),
		Name:       envStr("ETABLA_NAME", ""),
		MDNS:       envBool("ETABLA_MDNS", true),

		MIDIOut: envStr("ETABLA_MIDI_OUT", ""),

		LogFile: envStr("ETABLA_LOG_FILE", "etabla.log"),
		NoTUI:   envBool("ETABLA_NO_TUI", false),
	}
}

// RegisterFlags binds flags to the fields of c, using the current values
// as defaults so that flags override the environment.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.AssetBase, "assets", c.AssetBase, "Directory or http(s) URL holding the recordings")
	fs.StringVar(&c.CacheDir, "cache-dir", c.CacheDir, "Cache directory for downloaded recordings")
	fs.StringVar(&c.CatalogPath, "catalog", c.CatalogPath, "Catalog YAML file (default: built-in)")

	fs.StringVar(&c.Backend, "backend", c.Backend, "Audio output backend: oto, malgo, or null")
	fs.IntVar(&c.SampleRate, "sample-rate", c.SampleRate, "Output sample rate in Hz")
	fs.IntVar(&c.Channels, "channels", c.Channels, "Output channel count")
	fs.IntVar(&c.BitDepth, "bit-depth", c.BitDepth, "Output bit depth (malgo: 16 or 24)")
	fs.IntVar(&c.Volume, "volume", c.Volume, "Output volume 0-100")

	fs.DurationVar(&c.Latency, "latency", c.Latency, "Output latency subtracted from the beat clock")
	fs.DurationVar(&c.StartDelay, "start-delay", c.StartDelay, "Delay between connecting audio and beat 1")
	fs.DurationVar(&c.Debounce, "debounce", c.Debounce, "Settle time for parameter changes while playing")
	fs.DurationVar(&c.TickInterval, "tick", c.TickInterval, "Beat display refresh interval")
	fs.BoolVar(&c.LiveFineTune, "live-fine-tune", c.LiveFineTune, "Apply fine-tune to the running stream without restarting")

	fs.StringVar(&c.Pattern, "pattern", c.Pattern, "Initial pattern")
	fs.Float64Var(&c.Tempo, "tempo", c.Tempo, "Initial tempo in BPM (40-300)")
	fs.StringVar(&c.Key, "key", c.Key, "Initial key (C, C#, D, ...)")
	fs.Float64Var(&c.FineTune, "fine-tune", c.FineTune, "Initial fine-tune in cents (-100 to 100)")

	fs.StringVar(&c.RemoteAddr, "remote", c.RemoteAddr, "Remote control listen address (empty disables)")
	fs.StringVar(&c.Name, "name", c.Name, "Player friendly name (default: hostname-etabla)")
	fs.BoolVar(&c.MDNS, "mdns", c.MDNS, "Advertise the remote control service via mDNS")

	fs.StringVar(&c.MIDIOut, "midi-out", c.MIDIOut, "MIDI output port for beat notes (empty disables)")

	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Log file path")
	fs.BoolVar(&c.NoTUI, "no-tui", c.NoTUI, "Disable TUI, use streaming logs instead")
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case "oto", "malgo", "null":
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("invalid sample rate %d", c.SampleRate))
	}
	if c.Channels != 1 && c.Channels != 2 {
		errs = append(errs, fmt.Errorf("unsupported channel count %d", c.Channels))
	}
	if c.Backend == "malgo" && c.BitDepth != 16 && c.BitDepth != 24 {
		errs = append(errs, fmt.Errorf("unsupported bit depth %d", c.BitDepth))
	}
	if c.Volume < 0 || c.Volume > 100 {
		errs = append(errs, fmt.Errorf("volume %d out of range 0-100", c.Volume))
	}
	if c.Latency < 0 || c.StartDelay < 0 || c.Debounce < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.AssetBase == "" {
		errs = append(errs, errors.New("asset base is required"))
	}

	if c.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		c.Name = fmt.Sprintf("%s-etabla", hostname)
	}

	return errors.Join(errs...)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func envMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
