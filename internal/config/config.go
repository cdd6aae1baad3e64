package config

import (
	"fmt"
	"os"
	"strconv"
)

// Default configuration values
const (
	DefaultRedisAddr = "localhost:6379"
	DefaultSTUN1     = "stun:stun1.l.google.com:19302"
	DefaultSTUN2     = "stun:stun2.l.google.com:19302"

	// Grid dimensions of the video call arena.
	DefaultRows = 7
	DefaultCols = 16

	// Outbound video policy, applied once per peer session.
	DefaultMaxBitrate        = 250_000
	DefaultScaleResolutionBy = 2

	DefaultCandidatePoolSize = 10
)

// Config holds application configuration
type Config struct {
	// RedisAddr is the address of the shared document store.
	RedisAddr string

	// MemoryStore selects the in-process store instead of Redis
	// (single-machine demos and tests).
	MemoryStore bool

	// ICE configuration for WebRTC
	STUNServers       []string
	CandidatePoolSize int

	// Grid shape
	Rows int
	Cols int

	// Outbound video constraints
	MaxBitrate        int
	ScaleResolutionBy int
}

// Options for loading config with CLI flag overrides
type Options struct {
	RedisAddr   string
	MemoryStore bool
	STUNServer  string
	Rows        int
	Cols        int
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	// Load store address: CLI flag > env > default
	redisAddr := opts.RedisAddr
	if redisAddr == "" {
		redisAddr = os.Getenv("REDIS_ADDR")
	}
	if redisAddr == "" {
		redisAddr = DefaultRedisAddr
	}

	// Load STUN server: CLI flag > env > defaults
	stunServers := []string{DefaultSTUN1, DefaultSTUN2}
	if s := os.Getenv("STUN_SERVER"); s != "" {
		stunServers = []string{s}
	}
	if opts.STUNServer != "" {
		stunServers = []string{opts.STUNServer}
	}

	rows, err := loadDimension("GRID_ROWS", opts.Rows, DefaultRows)
	if err != nil {
		return nil, err
	}
	cols, err := loadDimension("GRID_COLS", opts.Cols, DefaultCols)
	if err != nil {
		return nil, err
	}

	return &Config{
		RedisAddr:         redisAddr,
		MemoryStore:       opts.MemoryStore,
		STUNServers:       stunServers,
		CandidatePoolSize: DefaultCandidatePoolSize,
		Rows:              rows,
		Cols:              cols,
		MaxBitrate:        DefaultMaxBitrate,
		ScaleResolutionBy: DefaultScaleResolutionBy,
	}, nil
}

func loadDimension(env string, flag, def int) (int, error) {
	v := flag
	if v == 0 {
		if s := os.Getenv(env); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %q", env, s)
			}
			v = n
		}
	}
	if v == 0 {
		v = def
	}
	if v < 1 {
		return 0, fmt.Errorf("grid dimension must be positive, got %d", v)
	}
	return v, nil
}

// GetSTUNServers returns the configured STUN server URLs.
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}
