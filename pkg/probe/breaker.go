package probe

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// errBreakerOpen marks probes rejected because the source's circuit is open.
var errBreakerOpen = errors.New("source circuit open")

// breakerSet holds one circuit breaker per source. A source that fails
// five consecutive probes is shut off for a cooldown; probes during the
// cooldown return skipped findings instead of hammering a dead system.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerSet() *breakerSet {
	return &breakerSet{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (b *breakerSet) forSource(source string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[source]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    source,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	b.breakers[source] = cb
	return cb
}

func (b *breakerSet) execute(source string, fn func() (*Result, error)) (*Result, error) {
	result, err := b.forSource(source).Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errBreakerOpen
		}
		return nil, err
	}
	return result.(*Result), nil
}
