package tunnel

import (
	"context"
	"errors"
	"net"
	"sync"
)

// ErrReadinessLost is returned by Readiness.Await when the producing listener
// exited without ever publishing a bound address (e.g. bind failed). The
// consumer must see a hard error here, never a silent hang.
var ErrReadinessLost = errors.New("listener finished without reporting a bound address")

// Readiness is a single-producer, single-consumer one-shot carrying the
// listener's actual bound address. Publishing is fire-and-forget: the
// producer never blocks, even if nobody awaits the value.
type Readiness struct {
	once sync.Once
	ch   chan net.Addr
}

// NewReadiness creates an unfulfilled readiness notification.
func NewReadiness() *Readiness {
	return &Readiness{ch: make(chan net.Addr, 1)}
}

// publish fulfills the notification with the bound address. Later calls,
// including a subsequent abandon, are no-ops.
func (r *Readiness) publish(addr net.Addr) {
	r.once.Do(func() {
		r.ch <- addr
		close(r.ch)
	})
}

// abandon closes the notification unfulfilled. A consumer blocked in Await
// receives ErrReadinessLost.
func (r *Readiness) abandon() {
	r.once.Do(func() {
		close(r.ch)
	})
}

// Await blocks until the bound address is published, the notification is
// abandoned, or ctx is canceled.
func (r *Readiness) Await(ctx context.Context) (net.Addr, error) {
	select {
	case addr, ok := <-r.ch:
		if !ok {
			return nil, ErrReadinessLost
		}
		return addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
