package lock

import (
	"context"
	"time"

	"github.com/staminads/staminads/internal/settings"
)

// Lease provides crash-tolerant mutual exclusion for the migration run,
// recorded as an ordinary settings row rather than through a dedicated lock
// service. Two instances racing at the instant a lease goes stale can both
// believe they hold it; that narrow window is accepted in exchange for
// carrying no extra coordination dependency. It prevents routine
// double-execution across rolling deploys, not adversarial timing.
type Lease struct {
	store      *settings.Store
	holder     string
	staleAfter time.Duration
	held       bool
}

// Status describes the lock row after a TryAcquire.
type Status struct {
	Acquired bool
	Holder   string        // holder after the call
	Previous string        // prior holder when a stale lease was reclaimed
	Age      time.Duration // age of the pre-existing row, if there was one
}

func New(store *settings.Store, holder string, staleAfter time.Duration) *Lease {
	return &Lease{store: store, holder: holder, staleAfter: staleAfter}
}

// TryAcquire claims the lease when the lock row is absent or older than the
// staleness threshold. When a fresh holder exists it reports that holder and
// writes nothing.
func (l *Lease) TryAcquire(ctx context.Context) (Status, error) {
	if l.held {
		return Status{Acquired: true, Holder: l.holder}, nil
	}
	rec, ok, err := l.store.Get(ctx, settings.LockKey)
	if err != nil {
		return Status{}, err
	}
	st := Status{Holder: l.holder}
	if ok {
		st.Age = time.Since(rec.UpdatedAt)
		if st.Age <= l.staleAfter {
			return Status{Holder: rec.Value, Age: st.Age}, nil
		}
		// Previous holder died mid-run; take the lease over.
		st.Previous = rec.Value
	}
	if err := l.store.Put(ctx, settings.LockKey, l.holder); err != nil {
		return Status{}, err
	}
	l.held = true
	st.Acquired = true
	return st, nil
}

// Release deletes the lock row. It is a no-op when the lease was never
// acquired, so callers may defer it unconditionally.
func (l *Lease) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	return l.store.Delete(ctx, settings.LockKey)
}

func (l *Lease) Holder() string { return l.holder }
