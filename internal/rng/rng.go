// Package rng provides the single randomness source for all game outcomes.
//
// Every draw in the casino (a card from the shoe, a symbol into the slot
// grid, the roulette wheel) routes through Service.GenerateInt. There is no
// alternate entropy path. The entropy reader is swappable so tests can run
// the engines against a deterministic source.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// Service provides cryptographically strong random number generation.
type Service struct {
	entropy io.Reader
	mu      sync.Mutex

	lastHealthCheck  time.Time
	samplesGenerated int64
}

// New creates a new RNG service backed by crypto/rand.
func New() *Service {
	return NewWithEntropy(rand.Reader)
}

// NewWithEntropy creates an RNG service reading from the given entropy
// source. Tests use this to make draws deterministic.
func NewWithEntropy(entropy io.Reader) *Service {
	return &Service{
		entropy:         entropy,
		lastHealthCheck: time.Now(),
	}
}

// GenerateBytes returns n random bytes from the entropy source.
func (s *Service) GenerateBytes(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, n)
	if _, err := io.ReadFull(s.entropy, buf); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	s.samplesGenerated++
	return buf, nil
}

// GenerateInt returns a uniform random integer in [0, max).
// Uses rejection sampling to eliminate modulo bias.
func (s *Service) GenerateInt(max int64) (int64, error) {
	if max <= 0 {
		return 0, fmt.Errorf("max must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject values at or above the threshold so the remainder maps
	// uniformly onto [0, max).
	threshold := uint64(1<<63-1) - (uint64(1<<63-1) % uint64(max))

	for {
		buf := make([]byte, 8)
		if _, err := io.ReadFull(s.entropy, buf); err != nil {
			return 0, fmt.Errorf("failed to generate random int: %w", err)
		}

		n := binary.BigEndian.Uint64(buf) >> 1 // 63 bits, positive range

		if n < threshold {
			s.samplesGenerated++
			return int64(n % uint64(max)), nil
		}
		// Reject and retry
	}
}

// GenerateIntRange returns a uniform random integer in [min, max].
func (s *Service) GenerateIntRange(min, max int64) (int64, error) {
	if min > max {
		return 0, fmt.Errorf("min cannot be greater than max")
	}

	rangeSize := max - min + 1
	n, err := s.GenerateInt(rangeSize)
	if err != nil {
		return 0, err
	}

	return min + n, nil
}

// Shuffle performs a Fisher-Yates shuffle over n elements, calling swap for
// each exchange. The card shoe is shuffled through this.
func (s *Service) Shuffle(n int, swap func(i, j int)) error {
	for i := n - 1; i > 0; i-- {
		j, err := s.GenerateInt(int64(i + 1))
		if err != nil {
			return err
		}
		swap(i, int(j))
	}
	return nil
}

// HealthCheck verifies the RNG is producing plausibly uniform output by
// running a chi-square test over fresh samples.
func (s *Service) HealthCheck() (*HealthResult, error) {
	s.mu.Lock()
	s.lastHealthCheck = time.Now()
	s.mu.Unlock()

	const sampleSize = 1000
	samples := make([]int64, sampleSize)

	for i := 0; i < sampleSize; i++ {
		n, err := s.GenerateInt(100)
		if err != nil {
			return &HealthResult{
				Healthy:   false,
				Timestamp: time.Now(),
				Error:     err.Error(),
			}, err
		}
		samples[i] = n
	}

	chiSquare, passed := chiSquareTest(samples, 100)

	return &HealthResult{
		Healthy:          passed,
		Timestamp:        time.Now(),
		SamplesGenerated: s.samplesGenerated,
		ChiSquare:        chiSquare,
		ChiSquarePassed:  passed,
	}, nil
}

// chiSquareTest performs a basic chi-square test for uniformity.
func chiSquareTest(samples []int64, bins int) (float64, bool) {
	counts := make([]int, bins)
	for _, sample := range samples {
		counts[int(sample)%bins]++
	}

	expected := float64(len(samples)) / float64(bins)

	var chiSquare float64
	for _, count := range counts {
		diff := float64(count) - expected
		chiSquare += (diff * diff) / expected
	}

	// Critical value for 99 degrees of freedom at 99% confidence.
	criticalValue := 134.6
	if bins != 100 {
		criticalValue = float64(bins-1) + 2.576*math.Sqrt(2.0*float64(bins-1))
	}

	return chiSquare, chiSquare < criticalValue
}

// HealthResult contains RNG health check results.
type HealthResult struct {
	Healthy          bool      `json:"healthy"`
	Timestamp        time.Time `json:"timestamp"`
	SamplesGenerated int64     `json:"samples_generated"`
	ChiSquare        float64   `json:"chi_square"`
	ChiSquarePassed  bool      `json:"chi_square_passed"`
	Error            string    `json:"error,omitempty"`
}
