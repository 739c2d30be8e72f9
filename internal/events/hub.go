// Package events fans table domain events out to subscribers, in process
// through a Hub and across processes through a Redis relay.
package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/cache"
	"github.com/jason-s-yu/tabletop/internal/table"
	"github.com/sirupsen/logrus"
)

// Publisher delivers a domain event.
type Publisher interface {
	Publish(ctx context.Context, ev table.Event) error
}

// Subscription receives the events of one table.
type Subscription struct {
	C       <-chan table.Event
	c       chan table.Event
	tableID uuid.UUID
}

// Hub keeps subscriptions per table. A subscriber that falls behind misses
// events rather than blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		logger: logger,
	}
}

var _ Publisher = (*Hub)(nil)

func (h *Hub) Subscribe(tableID uuid.UUID) *Subscription {
	c := make(chan table.Event, 32)
	sub := &Subscription{C: c, c: c, tableID: tableID}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[tableID] == nil {
		h.subs[tableID] = make(map[*Subscription]struct{})
	}
	h.subs[tableID][sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subs[sub.tableID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, sub.tableID)
	}
	close(sub.c)
}

// Subscribers counts the open subscriptions of a table.
func (h *Hub) Subscribers(tableID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[tableID])
}

func (h *Hub) Publish(_ context.Context, ev table.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[ev.TableID] {
		select {
		case sub.c <- ev:
		default:
			h.logger.WithFields(logrus.Fields{
				"table": ev.TableID,
				"event": ev.Type,
			}).Warn("subscriber is behind, dropping event")
		}
	}
	return nil
}

// Relay publishes events on a Redis bus so every process's hub sees them.
type Relay struct {
	bus    *cache.Bus
	hub    *Hub
	logger *logrus.Logger
}

func NewRelay(bus *cache.Bus, hub *Hub, logger *logrus.Logger) *Relay {
	return &Relay{bus: bus, hub: hub, logger: logger}
}

var _ Publisher = (*Relay)(nil)

func (r *Relay) Publish(ctx context.Context, ev table.Event) error {
	return r.bus.Publish(ctx, ev.TableID.String(), ev)
}

// Run forwards bus messages to the local hub until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	return r.bus.Subscribe(ctx, func(topic string, data []byte) {
		var ev table.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			r.logger.WithField("topic", topic).WithError(err).Warn("invalid event on bus")
			return
		}
		_ = r.hub.Publish(ctx, ev)
	})
}
