// Package retry implements the bounded retry policy used against the routing
// upstream as an explicit state machine, so the policy can be exercised in
// tests without real network calls or real sleeps.
package retry

import "time"

// Outcome classifies a single fetch attempt.
type Outcome int

const (
	// OutcomeSuccess terminates the loop with a measurement.
	OutcomeSuccess Outcome = iota
	// OutcomeNoResult is a 200 with an empty route list. The upstream
	// answered and found no path, so retrying is futile; terminal.
	OutcomeNoResult
	// OutcomeRateLimited is an HTTP 429. Rate limits are window-bound and
	// rarely clear quickly, so it drives the long backoff.
	OutcomeRateLimited
	// OutcomeTransient covers any other non-200, network/timeout failures
	// and malformed payloads. Drives the short backoff.
	OutcomeTransient
)

// State is a position in the retry loop.
type State int

const (
	StateAttempting State = iota
	StateBackoffRateLimit
	StateBackoffTransient
	StateSucceeded
	StateExhausted
	StateNoResult
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateBackoffRateLimit:
		return "backoff_rate_limit"
	case StateBackoffTransient:
		return "backoff_transient"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	case StateNoResult:
		return "no_result"
	}
	return "unknown"
}

// Terminal reports whether the loop stops in this state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateExhausted || s == StateNoResult
}

// Policy is a bounded retry policy with two backoff classes. Sleep is
// injectable for tests; nil means time.Sleep.
type Policy struct {
	MaxAttempts    int
	RateLimitDelay time.Duration
	TransientDelay time.Duration
	Sleep          func(time.Duration)
}

// Default returns the production policy: 3 attempts, 60s after a rate limit,
// 5s after a transient failure.
func Default() Policy {
	return Policy{
		MaxAttempts:    3,
		RateLimitDelay: 60 * time.Second,
		TransientDelay: 5 * time.Second,
	}
}

// Next maps the outcome of attempt number n (1-based) to the following state.
// Rate-limit waits consume an attempt like any other failure, and no backoff
// state is entered once the attempt budget is spent.
func (p Policy) Next(outcome Outcome, attempt int) State {
	switch outcome {
	case OutcomeSuccess:
		return StateSucceeded
	case OutcomeNoResult:
		return StateNoResult
	}
	if attempt >= p.MaxAttempts {
		return StateExhausted
	}
	if outcome == OutcomeRateLimited {
		return StateBackoffRateLimit
	}
	return StateBackoffTransient
}

// Delay returns the sleep for a backoff state, zero for any other state.
func (p Policy) Delay(s State) time.Duration {
	switch s {
	case StateBackoffRateLimit:
		return p.RateLimitDelay
	case StateBackoffTransient:
		return p.TransientDelay
	}
	return 0
}

// Run drives attempt through the policy until a terminal state and returns it.
// attempt receives the 1-based attempt number.
func (p Policy) Run(attempt func(n int) Outcome) State {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	for n := 1; ; n++ {
		state := p.Next(attempt(n), n)
		if state.Terminal() {
			return state
		}
		sleep(p.Delay(state))
	}
}
