package keys

import "time"

// Config tunes code issuance and pool replenishment.
type Config struct {
	CodeWidth         int
	LowWaterMark      int64
	BatchSize         int64
	ReplenishInterval time.Duration
	LockWait          time.Duration
	LockLease         time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CodeWidth:         7,
		LowWaterMark:      10_000,
		BatchSize:         50_000,
		ReplenishInterval: 30 * time.Second,
		LockWait:          10 * time.Second,
		LockLease:         30 * time.Second,
	}
}
