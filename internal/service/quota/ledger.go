package quota

import (
	"context"
	"log"
	"time"

	"github.com/nuanyu/companion/backend/internal/service/plan"
	"github.com/nuanyu/companion/backend/internal/storage"
)

// Unbounded marks the remaining count for unlimited plans.
const Unbounded = -1

// Reservation is the token returned by CheckAndReserve and consumed by
// Commit or Release.
type Reservation struct {
	UserID    string
	Day       string
	Remaining int
	Unlimited bool
	released  bool
}

// Ledger enforces the per-user daily message cap on top of the storage
// layer's atomic capped increment. Unlimited plans never touch the counter.
type Ledger struct {
	store *storage.QuotaStore
	now   func() time.Time
}

// NewLedger 创建配额账本。
func NewLedger(store *storage.QuotaStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// WithClock overrides the clock, for tests crossing day boundaries.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) today() string {
	return l.now().UTC().Format("2006-01-02")
}

// CheckAndReserve atomically reserves one send slot for today. The returned
// reservation reports the remaining budget after the reservation; ok is
// false when the daily limit is already spent.
func (l *Ledger) CheckAndReserve(ctx context.Context, userID string, p plan.Plan) (*Reservation, bool, error) {
	if p.Unlimited {
		return &Reservation{UserID: userID, Unlimited: true, Remaining: Unbounded}, true, nil
	}

	day := l.today()
	ok, err := l.store.ReserveSlot(ctx, userID, day, p.DailyLimit)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	count, err := l.store.Count(ctx, userID, day)
	if err != nil {
		// The reservation itself succeeded; remaining is informational.
		log.Printf("[quota] failed to read count for user=%s: %v", userID, err)
		count = p.DailyLimit
	}
	remaining := p.DailyLimit - count
	if remaining < 0 {
		remaining = 0
	}

	return &Reservation{UserID: userID, Day: day, Remaining: remaining}, true, nil
}

// Commit finalizes a reservation after the message round-trip succeeded.
// The reservation already occupies its slot, so there is nothing further to
// write; committing only closes the release window.
func (l *Ledger) Commit(_ context.Context, res *Reservation) {
	if res == nil || res.Unlimited {
		return
	}
	res.released = true
}

// Release undoes a reservation when a later pipeline step fails, so an
// aborted send is never charged. Safe to call at most once per reservation.
func (l *Ledger) Release(ctx context.Context, res *Reservation) {
	if res == nil || res.Unlimited || res.released {
		return
	}
	res.released = true
	if err := l.store.ReleaseSlot(ctx, res.UserID, res.Day); err != nil {
		log.Printf("[quota] failed to release reservation for user=%s: %v", res.UserID, err)
	}
}
