package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/petrzlen/audiorelay/pkg/audioio"
	"github.com/petrzlen/audiorelay/pkg/relay"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config holds the process parameters shared by all relay commands.
// Everything is fixed at startup, there is no runtime reconfiguration.
type Config struct {
	// Relay file
	RelayPath string

	// Device and buffer sizing
	BufferDuration time.Duration // drives the device ring size
	BufferSamples  int           // sample buffer capacity
	SampleRate     int
	DeviceBackend  string
	InputDevice    string
	OutputDevice   string

	// Playback drain bounds, zero values mean unbounded
	MaxStalledAttempts int
	StallTimeout       time.Duration
	RetryInterval      time.Duration

	LogLevel string

	// Network streaming
	ListenAddr string
	FollowPoll time.Duration
	Zeroconf   bool
	ServerURL  string
}

// Load reads an optional .env file and then the environment, with defaults
// matching the classic two-process setup (a file named "buffer", 30ms, 40000 samples).
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("cannot load .env file, using environment only")
	}
	return FromEnv()
}

// FromEnv is Load without touching .env.
func FromEnv() Config {
	return Config{
		RelayPath: envStr("RELAY_PATH", "buffer"),

		BufferDuration: time.Duration(envInt("RELAY_BUFFER_MS", 30)) * time.Millisecond,
		BufferSamples:  envInt("RELAY_BUFFER_SAMPLES", 40000),
		SampleRate:     envInt("RELAY_SAMPLE_RATE", 44100),
		DeviceBackend:  strings.ToLower(envStr("RELAY_DEVICE_BACKEND", audioio.BackendMalgo)),
		InputDevice:    envStr("RELAY_INPUT_DEVICE", "default"),
		OutputDevice:   envStr("RELAY_OUTPUT_DEVICE", "default"),

		MaxStalledAttempts: envInt("RELAY_MAX_STALLED_ATTEMPTS", 0),
		StallTimeout:       envDuration("RELAY_STALL_TIMEOUT", 5*time.Second),
		RetryInterval:      envDuration("RELAY_RETRY_INTERVAL", time.Millisecond),

		LogLevel: envStr("RELAY_LOG_LEVEL", "info"),

		ListenAddr: envStr("RELAY_LISTEN_ADDR", ":8081"),
		FollowPoll: envDuration("RELAY_FOLLOW_POLL", 100*time.Millisecond),
		Zeroconf:   envBool("RELAY_ZEROCONF", true),
		ServerURL:  envStr("RELAY_SERVER_URL", "ws://localhost:8081/ws"),
	}
}

// Validate rejects configurations the relay cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RelayPath) == "" {
		return errors.New("RELAY_PATH must not be empty")
	}
	if c.BufferSamples <= 0 {
		return errors.Errorf("RELAY_BUFFER_SAMPLES must be positive, got %d", c.BufferSamples)
	}
	if c.BufferDuration <= 0 {
		return errors.Errorf("RELAY_BUFFER_MS must be positive, got %s", c.BufferDuration)
	}
	if c.SampleRate <= 0 {
		return errors.Errorf("RELAY_SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.MaxStalledAttempts < 0 {
		return errors.Errorf("RELAY_MAX_STALLED_ATTEMPTS must not be negative, got %d", c.MaxStalledAttempts)
	}
	switch c.DeviceBackend {
	case audioio.BackendMalgo, audioio.BackendPortaudio:
	default:
		return errors.Errorf("unknown RELAY_DEVICE_BACKEND %q", c.DeviceBackend)
	}
	return nil
}

func (c Config) RetryPolicy() relay.RetryPolicy {
	return relay.RetryPolicy{
		MaxStalledAttempts: c.MaxStalledAttempts,
		StallTimeout:       c.StallTimeout,
		RetryInterval:      c.RetryInterval,
	}
}

func (c Config) InputOptions() audioio.Options {
	return c.deviceOptions(c.InputDevice)
}

func (c Config) OutputOptions() audioio.Options {
	return c.deviceOptions(c.OutputDevice)
}

func (c Config) deviceOptions(name string) audioio.Options {
	return audioio.Options{
		SampleRate:     c.SampleRate,
		Channels:       1,
		BufferDuration: c.BufferDuration,
		DeviceName:     name,
	}
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
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-integer env value")
	}
	return fallback
}

// envDuration accepts Go durations ("250ms") or bare integers as milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	log.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid duration env value")
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
