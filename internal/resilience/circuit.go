// Package resilience provides retry and circuit-breaking helpers for calls
// to third-party sites.
package resilience

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is a breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrOpen is returned by Allow while a breaker is open.
var ErrOpen = eris.New("resilience: circuit open")

// Breaker opens after Threshold consecutive failures and lets a single
// probe through once Cooldown has passed.
type Breaker struct {
	Threshold int
	Cooldown  time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker creates a closed breaker. Non-positive values fall back to 5
// failures and 1 minute.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{Threshold: threshold, Cooldown: cooldown, now: time.Now}
}

// Allow returns ErrOpen while the breaker is open and the cooldown has not
// elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open {
		if b.now().Sub(b.openedAt) < b.Cooldown {
			return ErrOpen
		}
		b.state = HalfOpen
	}
	return nil
}

// Record feeds the outcome of an allowed call back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.state = Closed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == HalfOpen || b.failures >= b.Threshold {
		b.state = Open
		b.openedAt = b.now()
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.Cooldown {
		return HalfOpen
	}
	return b.state
}

// HostBreakers hands out one Breaker per URL host.
type HostBreakers struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewHostBreakers creates an empty registry.
func NewHostBreakers(threshold int, cooldown time.Duration) *HostBreakers {
	return &HostBreakers{threshold: threshold, cooldown: cooldown, breakers: make(map[string]*Breaker)}
}

// For returns the breaker for rawURL's host, creating it on first use.
func (h *HostBreakers) For(rawURL string) *Breaker {
	host := HostOf(rawURL)
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.breakers[host]
	if !ok {
		b = NewBreaker(h.threshold, h.cooldown)
		h.breakers[host] = b
	}
	return b
}

// States snapshots every known host's state.
func (h *HostBreakers) States() map[string]State {
	h.mu.Lock()
	hosts := make(map[string]*Breaker, len(h.breakers))
	for k, v := range h.breakers {
		hosts[k] = v
	}
	h.mu.Unlock()

	out := make(map[string]State, len(hosts))
	for k, b := range hosts {
		out[k] = b.State()
	}
	return out
}

// HostOf returns the lower-cased host of rawURL without a "www." prefix,
// or rawURL itself when it does not parse.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
