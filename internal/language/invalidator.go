package language

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const invalidationChannel = "language:invalidate"

// Invalidatable is a cache that can forget one user's language.
type Invalidatable interface {
	Invalidate(userID int64)
}

// Invalidator propagates language changes between processes over Redis.
type Invalidator struct {
	rdb     *goredis.Client
	channel string
	cache   Invalidatable
	log     *zerolog.Logger
}

// NewInvalidator creates an invalidator on "<prefix>language:invalidate".
func NewInvalidator(rdb *goredis.Client, prefix string, cache Invalidatable, logger *zerolog.Logger) *Invalidator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Invalidator{
		rdb:     rdb,
		channel: prefix + invalidationChannel,
		cache:   cache,
		log:     logger,
	}
}

// Start listens for invalidations until ctx is cancelled.
func (i *Invalidator) Start(ctx context.Context) {
	pubsub := i.rdb.Subscribe(ctx, i.channel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			i.handle(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (i *Invalidator) handle(payload string) {
	userID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		i.log.Warn().Str("payload", payload).Msg("ignoring malformed language invalidation")
		return
	}
	if i.cache != nil {
		i.cache.Invalidate(userID)
	}
	i.log.Debug().Int64("user_id", userID).Msg("language cache invalidated")
}

// Publish announces that userID changed their language.
func (i *Invalidator) Publish(ctx context.Context, userID int64) error {
	if err := i.rdb.Publish(ctx, i.channel, strconv.FormatInt(userID, 10)).Err(); err != nil {
		return fmt.Errorf("publish language invalidation: %w", err)
	}
	return nil
}
