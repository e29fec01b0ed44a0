// Package redisbus distributes room events across relay processes through
// Redis pub/sub. Local members are held by an embedded core.Hub; Redis is the
// only publish path, so every process observes one channel order per room.
// Each process receives every room's traffic and the hub discards rooms
// without local members.
package redisbus

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babelchat-server/internal/core"
)

// Bus implements core.Bus on top of Redis pub/sub.
type Bus struct {
	rdb    *goredis.Client
	local  *core.Hub
	prefix string
	log    *zerolog.Logger
	ps     *goredis.PubSub
}

var _ core.Bus = (*Bus)(nil)

// New creates a Redis-backed bus. It pattern-subscribes to every room channel
// under prefix and returns only after Redis confirms the subscription, so any
// event published once Join returns reaches the local hub. local must not be
// run by the caller; Run drives it.
func New(ctx context.Context, rdb *goredis.Client, local *core.Hub, prefix string, logger *zerolog.Logger) (*Bus, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	b := &Bus{
		rdb:    rdb,
		local:  local,
		prefix: prefix,
		log:    logger,
	}
	b.ps = rdb.PSubscribe(ctx, b.roomPattern())
	if _, err := b.ps.Receive(ctx); err != nil {
		_ = b.ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.roomPattern(), err)
	}
	return b, nil
}

// Run consumes Redis messages and drives the local hub until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	hubErr := make(chan error, 1)
	go func() {
		hubErr <- b.local.Run(ctx)
	}()

	msgs := b.ps.Channel()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return <-hubErr
			}
			b.dispatch(ctx, msg)
		case <-ctx.Done():
			if err := b.ps.Close(); err != nil {
				b.log.Warn().Err(err).Msg("close redis subscription")
			}
			return <-hubErr
		}
	}
}

// Join implements core.Bus. Membership is local; the room pattern
// subscription already covers every room.
func (b *Bus) Join(ctx context.Context, room string, sub core.Subscriber) error {
	return b.local.Join(ctx, room, sub)
}

// Leave implements core.Bus.
func (b *Bus) Leave(ctx context.Context, room string, sub core.Subscriber) error {
	return b.local.Leave(ctx, room, sub)
}

// Publish implements core.Bus. The event reaches local members only after it
// comes back from Redis.
func (b *Bus) Publish(ctx context.Context, room string, event core.Event) error {
	if room == "" {
		return core.ErrEmptyRoom
	}
	event.Room = room
	data, err := core.EncodeEvent(event)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.roomChannel(room), data).Err(); err != nil {
		return fmt.Errorf("publish room %s: %w", room, err)
	}
	return nil
}

// Members implements core.Bus.
func (b *Bus) Members(ctx context.Context, room string) (int, error) {
	return b.local.Members(ctx, room)
}

func (b *Bus) dispatch(ctx context.Context, msg *goredis.Message) {
	room, ok := b.roomFromChannel(msg.Channel)
	if !ok {
		return
	}
	ev, err := core.DecodeEvent([]byte(msg.Payload))
	if err != nil {
		b.log.Warn().Err(err).Str("room", room).Msg("drop undecodable room event")
		return
	}
	if err := b.local.Publish(ctx, room, ev); err != nil {
		b.log.Warn().Err(err).Str("room", room).Msg("local fan-out failed")
	}
}

func (b *Bus) roomChannel(room string) string {
	return b.prefix + "room:" + room
}

func (b *Bus) roomPattern() string {
	return b.prefix + "room:*"
}

func (b *Bus) roomFromChannel(channel string) (string, bool) {
	room, ok := strings.CutPrefix(channel, b.prefix+"room:")
	if !ok || room == "" {
		return "", false
	}
	return room, true
}
