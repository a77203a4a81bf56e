// Package config holds the runtime settings of the ledger daemon. Every
// setting has a default that can be overridden with a LEDGER_* environment
// variable, and the command line flags take the environment values as their
// defaults.
package config

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/vocdoni/election-ledger/storage"
)

const (
	DefaultDBType          = "pebble"
	DefaultLogLevel        = "info"
	DefaultLogOutput       = "stdout"
	DefaultBatchSize       = 64
	DefaultBatchTimeWindow = 30 * time.Second
	DefaultTickInterval    = 5 * time.Second
)

// Config is the configuration of an election ledger node.
type Config struct {
	DataDir   string
	DBType    string
	LogLevel  string
	LogOutput string
	// AuthorityKeys is a comma separated list of id=hexkey pairs with the
	// signing keys of the authorities run by this node.
	AuthorityKeys string
	// ProverWorkers bounds the number of range proofs generated at once.
	ProverWorkers int
	// BatchSize is the number of pending votes that triggers a block.
	BatchSize int
	// BatchTimeWindow is the longest a pending vote waits for a block.
	BatchTimeWindow time.Duration
	TickInterval    time.Duration
	ReservationTTL  time.Duration
	RangeProof      RangeProofArtifacts
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return &Config{
		DataDir:         filepath.Join(home, ".election-ledger"),
		DBType:          DefaultDBType,
		LogLevel:        DefaultLogLevel,
		LogOutput:       DefaultLogOutput,
		ProverWorkers:   runtime.NumCPU(),
		BatchSize:       DefaultBatchSize,
		BatchTimeWindow: DefaultBatchTimeWindow,
		TickInterval:    DefaultTickInterval,
		ReservationTTL:  storage.DefaultReservationTTL,
	}
}

// Load returns the default configuration overridden by the environment.
func Load() (*Config, error) {
	cfg := Default()
	cfg.DataDir = cmp.Or(os.Getenv("LEDGER_DATADIR"), cfg.DataDir)
	cfg.DBType = cmp.Or(os.Getenv("LEDGER_DB_TYPE"), cfg.DBType)
	cfg.LogLevel = cmp.Or(os.Getenv("LEDGER_LOG_LEVEL"), cfg.LogLevel)
	cfg.LogOutput = cmp.Or(os.Getenv("LEDGER_LOG_OUTPUT"), cfg.LogOutput)
	cfg.AuthorityKeys = os.Getenv("LEDGER_AUTHORITY_KEYS")
	cfg.RangeProof = rangeProofArtifactsFromEnv()

	var err error
	if cfg.ProverWorkers, err = envInt("LEDGER_PROVER_WORKERS", cfg.ProverWorkers); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = envInt("LEDGER_BATCH_SIZE", cfg.BatchSize); err != nil {
		return nil, err
	}
	if cfg.BatchTimeWindow, err = envDuration("LEDGER_BATCH_TIME_WINDOW", cfg.BatchTimeWindow); err != nil {
		return nil, err
	}
	if cfg.TickInterval, err = envDuration("LEDGER_TICK_INTERVAL", cfg.TickInterval); err != nil {
		return nil, err
	}
	if cfg.ReservationTTL, err = envDuration("LEDGER_RESERVATION_TTL", cfg.ReservationTTL); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the ranges of the numeric settings and the artifact hashes.
func (c *Config) Validate() error {
	switch {
	case c.ProverWorkers <= 0:
		return fmt.Errorf("prover workers must be positive, got %d", c.ProverWorkers)
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.BatchTimeWindow <= 0:
		return fmt.Errorf("batch time window must be positive, got %s", c.BatchTimeWindow)
	case c.TickInterval <= 0:
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	case c.ReservationTTL <= 0:
		return fmt.Errorf("reservation ttl must be positive, got %s", c.ReservationTTL)
	}
	return c.RangeProof.validate()
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
