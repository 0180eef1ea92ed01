package relay

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker runs a relay call unless the endpoint's circuit is open.
type Breaker interface {
	Execute(fn func() error) error
}

type endpointBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewBreaker(endpoint string, cooldown time.Duration, maxFailures uint32) Breaker {
	settings := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}
	return &endpointBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *endpointBreaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		return fmt.Errorf("breaker (%s): %w", b.cb.Name(), err)
	}
	return nil
}
