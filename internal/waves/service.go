// Package waves is the write entry point of the system: it commits waves
// to the ledger and fans each successful append out to subscribers.
package waves

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/waveportal/waveledger/internal/ledger"
)

// Event is the notification delivered to subscribers for every
// successful append.
type Event struct {
	Index     int    `json:"index"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// HandlerFunc handles one appended wave. A non-nil error (or a panic) is
// logged and reported but never propagated: it cannot roll back the
// append or block delivery to other subscribers.
type HandlerFunc func(Event) error

// MetricsRecorder is an optional callback for recording fan-out outcomes.
type MetricsRecorder func(observerFailed bool)

type subscriber struct {
	id   uint64
	name string
	fn   HandlerFunc
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	id        uint64
	svc       *Service
	unsubOnce sync.Once
}

// Unsubscribe removes the subscriber. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.unsubOnce.Do(func() {
		s.svc.subMu.Lock()
		defer s.svc.subMu.Unlock()
		delete(s.svc.subs, s.id)
	})
}

// Service owns the ledger and the subscriber registry.
//
// Append holds a single lock across commit and fan-out, so notifications
// are delivered synchronously in append order and a subscriber never
// observes an index the ledger count does not yet report.
type Service struct {
	ledger    ledger.Ledger
	logger    *zap.Logger
	onMetrics MetricsRecorder

	appendMu sync.Mutex // total order over append + notify

	subMu  sync.Mutex // protects subs and nextID
	subs   map[uint64]*subscriber
	nextID uint64
}

// NewService creates a Service around the given ledger.
func NewService(l ledger.Ledger, logger *zap.Logger) *Service {
	return &Service{
		ledger: l,
		logger: logger,
		subs:   make(map[uint64]*subscriber),
	}
}

// SetMetricsRecorder configures the metrics callback.
func (s *Service) SetMetricsRecorder(fn MetricsRecorder) {
	s.onMetrics = fn
}

// Subscribe registers fn to receive every append that occurs from now
// on. Appends that completed before registration are not replayed.
// name identifies the subscriber in logs.
func (s *Service) Subscribe(name string, fn HandlerFunc) *Subscription {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	sub := &subscriber{id: s.nextID, name: name, fn: fn}
	s.nextID++
	s.subs[sub.id] = sub
	return &Subscription{id: sub.id, svc: s}
}

// SubscriberCount returns the number of currently registered subscribers.
func (s *Service) SubscriberCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

// Append commits a wave and notifies all current subscribers. The wave
// is fully committed before the first notification fires; an append
// either completes entirely or has no observable effect.
func (s *Service) Append(ctx context.Context, sender, message string) (*ledger.Wave, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	w, err := s.ledger.Append(ctx, sender, message)
	if err != nil {
		return nil, fmt.Errorf("append wave: %w", err)
	}

	s.notify(Event{
		Index:     w.Index,
		Sender:    w.Sender,
		Message:   w.Message,
		Timestamp: w.Timestamp,
	})
	return w, nil
}

// Get returns the wave at the given index.
func (s *Service) Get(ctx context.Context, index int) (*ledger.Wave, error) {
	return s.ledger.Get(ctx, index)
}

// All returns a snapshot of the full history in append order.
func (s *Service) All(ctx context.Context) ([]ledger.Wave, error) {
	return s.ledger.All(ctx)
}

// Count returns the total number of appended waves.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.ledger.Count(ctx)
}

// notify delivers ev to every registered subscriber, in registration
// order, isolating each subscriber's failures from the others.
func (s *Service) notify(ev Event) {
	for _, sub := range s.snapshotSubs() {
		s.deliver(sub, ev)
	}
}

// snapshotSubs returns the current subscribers ordered by registration.
func (s *Service) snapshotSubs() []*subscriber {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	out := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *Service) deliver(sub *subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.observerFailure(sub, ev, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := sub.fn(ev); err != nil {
		s.observerFailure(sub, ev, err)
		return
	}
	if s.onMetrics != nil {
		s.onMetrics(false)
	}
}

func (s *Service) observerFailure(sub *subscriber, ev Event, err error) {
	s.logger.Warn("observer failed to handle wave",
		zap.String("observer", sub.name),
		zap.Int("index", ev.Index),
		zap.Error(err),
	)
	if s.onMetrics != nil {
		s.onMetrics(true)
	}
}
