package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// storeTripAfter is the number of consecutive failing passes that opens the
// circuit; storeCooldown is how long passes are skipped before a probe pass
// is admitted.
const (
	storeTripAfter = 3
	storeCooldown  = 5 * time.Minute
)

// ErrPassSkipped reports that the guard refused to start a pass because the
// store circuit is open.
var ErrPassSkipped = errors.New("dispatch store circuit open, pass skipped")

// StoreGuard gates the worker's scheduled passes on dispatch store health.
// A pass against an unreachable store is not one failing query: preparation,
// the claim transaction and every per-dispatch status update wait out their
// own connect timeouts before the pass gives up. After storeTripAfter
// consecutive failing passes the guard skips further passes for
// storeCooldown, then admits a single probe pass.
//
// Unlike the messenger breakers, tripping counts consecutive failures rather
// than a failure ratio: passes arrive on a cron cadence, too few per
// interval for a ratio window to fill.
type StoreGuard struct {
	breaker *gobreaker.CircuitBreaker
}

// NewStoreGuard creates the guard for one worker process. The send and
// cleanup jobs share it: they hit the same store.
func NewStoreGuard() *StoreGuard {
	return newStoreGuard(storeCooldown)
}

func newStoreGuard(cooldown time.Duration) *StoreGuard {
	settings := gobreaker.Settings{
		Name:        "dispatch-store",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= storeTripAfter
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &StoreGuard{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Run executes one pass through the guard. While the circuit is open the
// pass function is not called and Run returns ErrPassSkipped; otherwise Run
// returns whatever the pass returned.
func (g *StoreGuard) Run(pass func() error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, pass()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrPassSkipped
	}
	return err
}

// State returns the current state of the store circuit.
func (g *StoreGuard) State() gobreaker.State {
	return g.breaker.State()
}
