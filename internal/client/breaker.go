package client

import (
	"sync"
	"time"
)

type state int

const (
	closed state = iota
	open
	halfOpen
)

// Breaker is a consecutive-failure circuit breaker. After failThreshold
// failures in a row it rejects calls for openFor, then lets a single probe
// through; the probe's outcome closes or re-opens it.
type Breaker struct {
	mu               sync.Mutex
	st               state
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
	now              func() time.Time
}

func NewBreaker(threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &Breaker{failThreshold: threshold, openFor: openFor, now: time.Now}
}

// Acquire reports whether a call may proceed, moving an expired open
// breaker to half-open.
func (b *Breaker) Acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case open:
		if b.now().After(b.nextTryAt) && !b.probeInFlight {
			b.st = halfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case halfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = closed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == halfOpen {
		b.trip()
		return
	}
	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.st = open
	b.nextTryAt = b.now().Add(b.openFor)
	b.probeInFlight = false
}
