package core

import (
	"fmt"
	"sync"
)

// RoundLimiter enforces a maximum number of model rounds per turn.
type RoundLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewRoundLimiter creates a new limiter allowing max rounds.
// If max == 0, unlimited rounds are allowed.
func NewRoundLimiter(max int) *RoundLimiter {
	return &RoundLimiter{max: max}
}

// Acquire reserves the next round. It returns ErrTurnBudgetExceeded (wrapped)
// without consuming the round once the limit is reached.
func (rl *RoundLimiter) Acquire() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.max > 0 && rl.count >= rl.max {
		return fmt.Errorf("%w: %d rounds", ErrTurnBudgetExceeded, rl.max)
	}
	rl.count++

	return nil
}

// Count returns the number of rounds acquired so far.
func (rl *RoundLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.count
}

// Remaining returns how many rounds are left before hitting the limit.
func (rl *RoundLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.max == 0 {
		return -1 // unlimited
	}

	return rl.max - rl.count
}
