package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/babelchat-server/internal/metrics"
)

// Subscriber is a room member as seen by the bus.
type Subscriber interface {
	// ID identifies the member; it must be stable for the member's lifetime.
	ID() string
	// Deliver enqueues an event without blocking. It returns false when the
	// event was dropped.
	Deliver(Event) bool
}

// Bus is a named-room publish/subscribe fan-out. For every member, events
// published to one room arrive in publish order.
type Bus interface {
	// Run drives the bus until ctx is cancelled.
	Run(ctx context.Context) error
	// Join adds sub to room. Once Join returns, sub receives every event
	// published afterwards.
	Join(ctx context.Context, room string, sub Subscriber) error
	// Leave removes sub from room. Once Leave returns, sub receives nothing more.
	Leave(ctx context.Context, room string, sub Subscriber) error
	// Publish hands the event to the bus without waiting for delivery.
	Publish(ctx context.Context, room string, event Event) error
	// Members reports the number of subscribers this process holds for room.
	Members(ctx context.Context, room string) (int, error)
}

// Hub is the in-process bus. One goroutine owns every room; all requests are
// serialized through a single channel, which gives per-room FIFO delivery.
type Hub struct {
	commands chan command
	done     chan struct{}
	rooms    map[string]*Room
	log      *zerolog.Logger
	metrics  *metrics.Metrics
}

var _ Bus = (*Hub)(nil)

// NewHub creates an in-process hub. Call Run before using it.
func NewHub(logger *zerolog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		commands: make(chan command, 256),
		done:     make(chan struct{}),
		rooms:    make(map[string]*Room),
		log:      logger,
		metrics:  m,
	}
}

// Run processes commands until ctx is cancelled. It must be called once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case cmd := <-h.commands:
			h.handle(cmd)
		case <-ctx.Done():
			h.log.Debug().Int("rooms", len(h.rooms)).Msg("hub stopped")
			return nil
		}
	}
}

// Join implements Bus.
func (h *Hub) Join(ctx context.Context, room string, sub Subscriber) error {
	if room == "" {
		return ErrEmptyRoom
	}
	if sub == nil {
		return ErrNilSubscriber
	}
	_, err := h.request(ctx, command{kind: commandJoin, room: room, sub: sub, reply: make(chan int, 1)})
	return err
}

// Leave implements Bus. Leaving a room the subscriber is not in is a no-op.
func (h *Hub) Leave(ctx context.Context, room string, sub Subscriber) error {
	if room == "" {
		return ErrEmptyRoom
	}
	if sub == nil {
		return ErrNilSubscriber
	}
	_, err := h.request(ctx, command{kind: commandLeave, room: room, sub: sub, reply: make(chan int, 1)})
	return err
}

// Publish implements Bus.
func (h *Hub) Publish(ctx context.Context, room string, event Event) error {
	if room == "" {
		return ErrEmptyRoom
	}
	if err := event.Validate(); err != nil {
		return err
	}
	event.Room = room
	_, err := h.request(ctx, command{kind: commandPublish, room: room, event: event})
	return err
}

// Members implements Bus.
func (h *Hub) Members(ctx context.Context, room string) (int, error) {
	return h.request(ctx, command{kind: commandMembers, room: room, reply: make(chan int, 1)})
}

func (h *Hub) request(ctx context.Context, cmd command) (int, error) {
	select {
	case h.commands <- cmd:
	case <-h.done:
		return 0, ErrHubClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	if cmd.reply == nil {
		return 0, nil
	}

	select {
	case n := <-cmd.reply:
		return n, nil
	case <-h.done:
		return 0, ErrHubClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *Hub) handle(cmd command) {
	switch cmd.kind {
	case commandJoin:
		room, ok := h.rooms[cmd.room]
		if !ok {
			room = NewRoom(cmd.room)
			h.rooms[cmd.room] = room
			h.metrics.SetRooms(len(h.rooms))
			h.log.Debug().Str("room", cmd.room).Msg("room created")
		}
		room.Add(cmd.sub)
		cmd.reply <- room.Len()
	case commandLeave:
		room, ok := h.rooms[cmd.room]
		if !ok {
			cmd.reply <- 0
			return
		}
		room.Remove(cmd.sub)
		if room.Empty() {
			delete(h.rooms, cmd.room)
			h.metrics.SetRooms(len(h.rooms))
			h.log.Debug().Str("room", cmd.room).Msg("room removed")
		}
		cmd.reply <- room.Len()
	case commandPublish:
		room, ok := h.rooms[cmd.room]
		if !ok {
			return
		}
		if dropped := room.Broadcast(cmd.event); dropped > 0 {
			h.metrics.Dropped(dropped)
			h.log.Warn().Str("room", cmd.room).Int("dropped", dropped).Msg("slow members dropped event")
		}
	case commandMembers:
		n := 0
		if room, ok := h.rooms[cmd.room]; ok {
			n = room.Len()
		}
		cmd.reply <- n
	}
}
