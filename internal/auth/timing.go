package auth

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	pkgauth "github.com/BradenHooton/attendly/pkg/auth"
)

// TimingConfig holds configuration for failed-login timing equalisation
type TimingConfig struct {
	BaseDelayMs   int // Minimum time a failed login takes
	RandomDelayMs int // Random jitter added on top
	BcryptCost    int // Cost of the dummy hash used for unknown usernames
}

// TimingDelay keeps "unknown user" and "wrong password" failures indistinguishable by time
type TimingDelay struct {
	config TimingConfig

	dummyOnce sync.Once
	dummyHash string
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

// WaitFrom sleeps until at least base+jitter has passed since start
func (td *TimingDelay) WaitFrom(start time.Time) {
	target := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		if jitter, err := cryptoRandIntn(td.config.RandomDelayMs); err == nil {
			target += time.Duration(jitter) * time.Millisecond
		}
	}

	if elapsed := time.Since(start); elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// CompareDummy runs one bcrypt comparison against a throwaway hash so a lookup
// miss costs the same as a password mismatch. The result is always discarded.
func (td *TimingDelay) CompareDummy(password string) {
	td.dummyOnce.Do(func() {
		cost := td.config.BcryptCost
		if pkgauth.ValidCost(cost) != nil {
			cost = pkgauth.BcryptCost
		}
		td.dummyHash, _ = pkgauth.HashPasswordWithCost("dummy-password-for-timing", cost)
	})
	if td.dummyHash == "" {
		return
	}
	_ = pkgauth.ComparePassword(td.dummyHash, password)
}
