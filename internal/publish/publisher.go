package publish

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/camerad/internal/monitoring"
	"github.com/banshee-data/camerad/internal/timeutil"
)

const (
	// subscriberBuffer is each subscriber's channel depth. A consumer that
	// falls further behind than this loses pairs rather than stalling the
	// acquisition path.
	subscriberBuffer = 10

	statsInterval = 5 * time.Second
)

// Publisher fans pairs out to subscribers. Sends never block: a subscriber
// whose channel is full misses the pair, and the miss is counted against it.
type Publisher struct {
	clock timeutil.Clock
	logf  func(format string, v ...interface{})

	mu      sync.Mutex
	clients map[string]*subscriber
	closed  bool

	published atomic.Uint64
	dropped   atomic.Uint64
	skipped   atomic.Uint64

	statsMu       sync.Mutex
	lastStatsTime time.Time
	lastPublished uint64
}

type subscriber struct {
	name string
	ch   chan Pair
}

// PublisherOption adjusts publisher construction.
type PublisherOption func(*Publisher)

// WithPublisherClock substitutes the clock used for the periodic rate log.
func WithPublisherClock(c timeutil.Clock) PublisherOption {
	return func(p *Publisher) { p.clock = c }
}

// WithPublisherLogger routes publisher logs through f.
func WithPublisherLogger(f func(format string, v ...interface{})) PublisherOption {
	return func(p *Publisher) { p.logf = f }
}

// NewPublisher creates a publisher with no subscribers.
func NewPublisher(opts ...PublisherOption) *Publisher {
	p := &Publisher{
		clock:   timeutil.RealClock{},
		logf:    monitoring.Logf,
		clients: make(map[string]*subscriber),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers a consumer under a human-readable name and returns its
// subscription id and channel. The channel is closed by Unsubscribe or
// Close. Subscribing to a closed publisher yields an already-closed channel.
func (p *Publisher) Subscribe(name string) (string, <-chan Pair) {
	id := uuid.NewString()
	ch := make(chan Pair, subscriberBuffer)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return id, ch
	}
	p.clients[id] = &subscriber{name: name, ch: ch}
	p.logf("[publish] subscriber %q connected as %s (total: %d)", name, id, len(p.clients))
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// ignored.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.clients[id]
	if !ok {
		return
	}
	close(sub.ch)
	delete(p.clients, id)
	p.logf("[publish] subscriber %q disconnected (remaining: %d)", sub.name, len(p.clients))
}

// SubscriberCount returns the number of connected subscribers.
func (p *Publisher) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// HasSubscribers reports whether anyone is listening. The frame bridge
// checks this before paying for conversion.
func (p *Publisher) HasSubscribers() bool {
	return p.SubscriberCount() > 0
}

// Publish fans the pair out to every subscriber without blocking. With no
// subscribers the pair is counted as skipped and discarded.
func (p *Publisher) Publish(pair Pair) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if len(p.clients) == 0 {
		p.mu.Unlock()
		p.skipped.Add(1)
		return
	}
	for _, sub := range p.clients {
		select {
		case sub.ch <- pair:
		default:
			p.dropped.Add(1)
		}
	}
	p.mu.Unlock()

	p.logPeriodicStats(p.published.Add(1))
}

// logPeriodicStats logs the publish rate once per interval.
func (p *Publisher) logPeriodicStats(published uint64) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	now := p.clock.Now()
	if p.lastStatsTime.IsZero() {
		p.lastStatsTime = now
		p.lastPublished = published
		return
	}

	elapsed := now.Sub(p.lastStatsTime)
	if elapsed < statsInterval {
		return
	}
	rate := float64(published-p.lastPublished) / elapsed.Seconds()
	p.logf("[publish] stats: rate=%.1f/s published=%d dropped=%d skipped=%d subscribers=%d",
		rate, published, p.dropped.Load(), p.skipped.Load(), p.SubscriberCount())
	p.lastStatsTime = now
	p.lastPublished = published
}

// Stats is a snapshot of publisher counters.
type Stats struct {
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	Skipped     uint64 `json:"skipped"`
	Subscribers int    `json:"subscribers"`
}

// Stats returns current counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published:   p.published.Load(),
		Dropped:     p.dropped.Load(),
		Skipped:     p.skipped.Load(),
		Subscribers: p.SubscriberCount(),
	}
}

// Close disconnects all subscribers and closes their channels. Publishing
// after Close is a no-op.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, sub := range p.clients {
		close(sub.ch)
		delete(p.clients, id)
	}
	p.logf("[publish] closed")
}
