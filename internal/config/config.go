// Package config parses command-line flags and environment overrides.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"memoryhttpd/internal/logs"
	"memoryhttpd/internal/ttl"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MEMORYHTTPD_"

var ErrMissingAddress = errors.New("address to bind on is required")

// Config contains every process-level setting.
type Config struct {
	Addr      string
	AdminAddr string

	// DefaultExpiration applies to PUTs without X-Expire-Ms. Zero means never.
	DefaultExpiration time.Duration

	LogLevel        logs.Level
	NoLoggingColors bool
	LogBuffer       int

	QueueSize       int
	RegisterTimeout time.Duration
	StrictExpiry    bool
}

// Load parses args (without the program name). An unset flag falls back to
// its MEMORYHTTPD_* environment variable, looked up through getenv.
// Usage and parse errors are written to output.
func Load(args []string, getenv func(string) string, output io.Writer) (Config, error) {
	fs := flag.NewFlagSet("memoryhttpd", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: memoryhttpd [flags] ADDRESS")
		fmt.Fprintln(fs.Output(), "\nADDRESS needs to also contain the hostname, use 0.0.0.0 to listen on all addresses (e.g. \"0.0.0.0:3000\").")
		fmt.Fprintln(fs.Output(), "\nflags:")
		fs.PrintDefaults()
	}

	var (
		addr       = fs.String("addr", "", "address to bind on (alternative to the positional ADDRESS)")
		adminAddr  = fs.String("admin-addr", "", "address for /metrics, /health and /admin/keys (empty disables)")
		defaultExp = fs.Uint64("default-expiration", 0, "default expiration of values, in milliseconds (zero means never)")
		noColors   = fs.Bool("no-logging-colors", false, "disable colors in logging")
		logBuffer  = fs.Int("log-buffer", 1000, "number of recent log entries kept in memory")
		queueSize  = fs.Int("queue-size", ttl.DefaultQueueSize, "capacity of the expiration registration queue")
		regTimeout = fs.Duration("register-timeout", 0, "max wait for a free expiration queue slot (zero waits for the client)")
		strict     = fs.Bool("strict-expiry", false, "skip expirations of keys rewritten after the TTL was set")
		level      string
	)
	fs.StringVar(&level, "log-level", string(logs.INFO), "minimal logging level (DEBUG, INFO, WARN, ERROR)")
	fs.StringVar(&level, "l", string(logs.INFO), "shorthand for -log-level")

	// Flags may appear on either side of the positional ADDRESS.
	var positional []string
	for rest := args; ; {
		if err := fs.Parse(rest); err != nil {
			return Config{}, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		rest = fs.Args()[1:]
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["l"] {
		set["log-level"] = true
	}

	// Environment only fills in flags the command line left alone.
	for name, env := range map[string]string{
		"addr":               "ADDR",
		"admin-addr":         "ADMIN_ADDR",
		"default-expiration": "DEFAULT_EXPIRATION",
		"no-logging-colors":  "NO_LOGGING_COLORS",
		"log-buffer":         "LOG_BUFFER",
		"queue-size":         "QUEUE_SIZE",
		"register-timeout":   "REGISTER_TIMEOUT",
		"strict-expiry":      "STRICT_EXPIRY",
		"log-level":          "LOG_LEVEL",
	} {
		if set[name] {
			continue
		}
		v := getenv(EnvPrefix + env)
		if v == "" {
			continue
		}
		if err := fs.Set(name, v); err != nil {
			return Config{}, fmt.Errorf("invalid %s%s: %w", EnvPrefix, env, err)
		}
	}

	switch len(positional) {
	case 0:
	case 1:
		*addr = positional[0]
	default:
		return Config{}, fmt.Errorf("unexpected arguments: %q", positional[1:])
	}
	if *addr == "" {
		return Config{}, ErrMissingAddress
	}

	lvl, err := logs.ParseLevel(level)
	if err != nil {
		return Config{}, err
	}
	if *queueSize <= 0 {
		return Config{}, fmt.Errorf("queue size must be positive, got %d", *queueSize)
	}
	if *logBuffer <= 0 {
		return Config{}, fmt.Errorf("log buffer must be positive, got %d", *logBuffer)
	}
	if *regTimeout < 0 {
		return Config{}, fmt.Errorf("register timeout must not be negative, got %s", *regTimeout)
	}
	exp, err := ttl.FromMillis(*defaultExp)
	if err != nil {
		return Config{}, fmt.Errorf("invalid default expiration: %w", err)
	}

	return Config{
		Addr:              *addr,
		AdminAddr:         *adminAddr,
		DefaultExpiration: exp,
		LogLevel:          lvl,
		NoLoggingColors:   *noColors,
		LogBuffer:         *logBuffer,
		QueueSize:         *queueSize,
		RegisterTimeout:   *regTimeout,
		StrictExpiry:      *strict,
	}, nil
}
