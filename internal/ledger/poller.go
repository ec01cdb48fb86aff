package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"donationledger/internal/domain"
)

// Refresher runs one refresh cycle for a user. *Service implements it.
type Refresher interface {
	History(ctx context.Context, userID string) ([]domain.TransactionView, error)
}

// Snapshot is the outcome of one applied refresh cycle.
type Snapshot struct {
	UserID       string
	Transactions []domain.TransactionView
	RefreshedAt  time.Time
}

// Observer receives the results the controller applies. Applied with zero
// transactions means the user has no history; Failed means the cycle could
// not read it.
type Observer interface {
	Applied(Snapshot)
	Failed(userID string, err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnApplied func(Snapshot)
	OnFailed  func(userID string, err error)
}

func (o ObserverFuncs) Applied(s Snapshot) {
	if o.OnApplied != nil {
		o.OnApplied(s)
	}
}

func (o ObserverFuncs) Failed(userID string, err error) {
	if o.OnFailed != nil {
		o.OnFailed(userID, err)
	}
}

// PollConfig binds a controller to a user and the gap between cycles.
type PollConfig struct {
	UserID   string
	Interval time.Duration
}

// Controller re-runs the refresh cycle on a fixed interval for its current
// user. Each Start yields an independent subscription.
type Controller struct {
	refresher Refresher
	interval  time.Duration
	observer  Observer
	logger    zerolog.Logger
	now       func() time.Time

	// applyMu is held from the staleness check until the observer returns,
	// so Stop and SetUser wait out an apply that is already under way.
	applyMu    sync.Mutex
	mu         sync.Mutex
	userID     string
	generation uint64
	subs       map[*Subscription]struct{}
}

func NewController(refresher Refresher, cfg PollConfig, observer Observer, logger zerolog.Logger) *Controller {
	if observer == nil {
		observer = ObserverFuncs{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Controller{
		refresher: refresher,
		interval:  interval,
		observer:  observer,
		logger:    logger,
		now:       time.Now,
		userID:    cfg.UserID,
		subs:      make(map[*Subscription]struct{}),
	}
}

// Subscription is the handle for one running poll loop.
type Subscription struct {
	stopped bool
	latest  *Snapshot
	// cancel aborts the cycle in flight, if any.
	cancel  context.CancelFunc
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

// Done is closed once the loop has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Start launches a poll loop. The first cycle runs immediately. The loop
// ends when ctx is cancelled or the subscription is stopped.
func (c *Controller) Start(ctx context.Context) *Subscription {
	sub := &Subscription{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go c.loop(ctx, sub)
	return sub
}

// Stop ends the subscription. Once Stop returns no further result is applied
// for it; a cycle still in flight has its ctx cancelled and its result is
// dropped. Observers must not call Stop or SetUser from inside a callback.
func (c *Controller) Stop(sub *Subscription) {
	if sub == nil {
		return
	}
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub.stopped {
		return
	}
	sub.stopped = true
	if sub.cancel != nil {
		sub.cancel()
	}
	delete(c.subs, sub)
	close(sub.quit)
}

// SetUser retargets every subscription. Cycles started for the previous
// user are cancelled and discarded, and each loop refreshes right away.
func (c *Controller) SetUser(userID string) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if userID == c.userID {
		return
	}
	c.userID = userID
	c.generation++
	for sub := range c.subs {
		if sub.cancel != nil {
			sub.cancel()
		}
		sub.latest = nil
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// UserID returns the current target.
func (c *Controller) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Latest returns the last snapshot applied for sub under the current user.
func (c *Controller) Latest(sub *Subscription) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub.latest == nil {
		return Snapshot{}, false
	}
	return *sub.latest, true
}

func (c *Controller) loop(ctx context.Context, sub *Subscription) {
	defer close(sub.done)
	defer c.Stop(sub)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.quit:
			return
		case <-sub.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}

		c.cycle(ctx, sub)
		timer.Reset(c.interval)
	}
}

// cycle runs one refresh and applies it only if the subscription is live and
// the user has not changed since the cycle began. Stop and SetUser cancel the
// ctx the refresh runs under, so later stages of an abandoned cycle are skipped.
func (c *Controller) cycle(ctx context.Context, sub *Subscription) {
	c.mu.Lock()
	if sub.stopped {
		c.mu.Unlock()
		return
	}
	userID, generation := c.userID, c.generation
	if userID == "" {
		c.mu.Unlock()
		return
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	sub.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	views, err := c.refresher.History(cycleCtx, userID)

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	sub.cancel = nil
	stale := sub.stopped || generation != c.generation
	if !stale && err == nil {
		sub.latest = &Snapshot{UserID: userID, Transactions: views, RefreshedAt: c.now()}
	}
	var snap Snapshot
	if sub.latest != nil {
		snap = *sub.latest
	}
	c.mu.Unlock()

	switch {
	case stale:
		c.logger.Debug().Str("user_id", userID).Msg("poller: discarding stale refresh")
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("poller: refresh failed")
		c.observer.Failed(userID, err)
	default:
		c.logger.Debug().Str("user_id", userID).Int("transactions", len(views)).Msg("poller: refresh applied")
		c.observer.Applied(snap)
	}
}
