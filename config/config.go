package config

import (
	"flag"
	"os"
)

// Config holds all application configuration.
type Config struct {
	Port         int
	ReadTimeout  int
	WriteTimeout int
	Env          string

	// BlockingWatchdogMillis arms the reactor's blocking-iteration
	// watchdog (core/loop.WithBlockingWatchdog); 0 disables it.
	BlockingWatchdogMillis int
	// WorkerPoolSize sizes the work-stealing pool wired in as the
	// reactor's default Executor; 0 means runtime.NumCPU().
	WorkerPoolSize int
}

// New loads configuration from flags (and potentially env vars).
func New() *Config {
	cfg := &Config{}

	flag.IntVar(&cfg.Port, "port", 8080, "HTTP server port")
	flag.IntVar(&cfg.ReadTimeout, "read-timeout", 10, "HTTP read timeout (seconds)")
	flag.IntVar(&cfg.WriteTimeout, "write-timeout", 30, "HTTP write timeout (seconds)")
	flag.StringVar(&cfg.Env, "env", "development", "Environment (development/production)")
	flag.IntVar(&cfg.BlockingWatchdogMillis, "blocking-watchdog-ms", 250, "warn when a reactor iteration blocks longer than this many milliseconds (0 disables)")
	flag.IntVar(&cfg.WorkerPoolSize, "worker-pool-size", 0, "work-stealing executor size (0 = runtime.NumCPU())")

	flag.Parse()

	// Example: Override with ENV if present
	if port := os.Getenv("PORT"); port != "" {
		// logic to parse port string to int...
	}

	return cfg
}
