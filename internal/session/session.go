// Package session runs one client connection: it joins a room, relays the
// client's messages to the room and forwards room events back to the client
// in the client's own language.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/babelchat-server/internal/core"
	"github.com/vovakirdan/babelchat-server/internal/language"
	"github.com/vovakirdan/babelchat-server/internal/metrics"
	"github.com/vovakirdan/babelchat-server/internal/proto"
	"github.com/vovakirdan/babelchat-server/internal/translate"
	"github.com/vovakirdan/babelchat-server/internal/utils"
)

// FallbackPrefix marks a message that could not be translated.
const FallbackPrefix = "Error translating: "

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 10 * time.Second
	leaveTimeout        = 5 * time.Second
)

var (
	// ErrUnauthorized is returned by Connect for an unauthenticated identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedInput is returned by Receive for a frame without a message.
	ErrMalformedInput = errors.New("malformed input")
	// ErrNotJoined is returned when the session is not in the Joined state.
	ErrNotJoined = errors.New("session not joined")
	// ErrRateLimited is returned by Receive when the client sends too fast.
	ErrRateLimited = errors.New("rate limited")
)

// State is the lifecycle position of a session.
type State int32

const (
	StatePending State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Identity is the caller as established at connection time.
type Identity struct {
	UserID        int64
	Username      string
	Authenticated bool
}

// Conn is the client side of the session.
type Conn interface {
	// Read blocks for the next raw client frame.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one frame encoded as JSON.
	Write(ctx context.Context, v any) error
}

// Upgrader accepts the underlying client connection. It runs only after the
// session is already a room member.
type Upgrader func(ctx context.Context) (Conn, error)

// Translator is the translation gateway as seen by a session.
type Translator interface {
	Translate(ctx context.Context, text, target, source string) (translate.Result, error)
}

// Deps are the shared collaborators of every session.
type Deps struct {
	Bus        core.Bus
	Resolver   language.Resolver
	Translator Translator
	Metrics    *metrics.Metrics
	Logger     *zerolog.Logger
}

// Options tune a single session.
type Options struct {
	SendBuffer           int
	WriteTimeout         time.Duration
	MaxMessagesPerMinute int // 0 disables the limit
}

// Session is the actor for one client connection. Inbound frames and room
// events are processed one at a time by Run.
type Session struct {
	id       string
	room     string
	identity Identity

	bus        core.Bus
	resolver   language.Resolver
	translator Translator
	metrics    *metrics.Metrics
	log        zerolog.Logger

	conn         Conn
	mailbox      chan core.Event
	limiter      *rate.Limiter
	writeTimeout time.Duration

	state     atomic.Int32
	joined    atomic.Bool
	closeOnce sync.Once
}

var _ core.Subscriber = (*Session)(nil)

// New creates a pending session for room.
func New(room string, identity Identity, deps Deps, opts Options) *Session {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	s := &Session{
		id:           utils.NewID(),
		room:         room,
		identity:     identity,
		bus:          deps.Bus,
		resolver:     deps.Resolver,
		translator:   deps.Translator,
		metrics:      deps.Metrics,
		mailbox:      make(chan core.Event, opts.SendBuffer),
		writeTimeout: opts.WriteTimeout,
	}
	s.log = logger.With().
		Str("session_id", s.id).
		Str("room", room).
		Str("user", identity.Username).
		Logger()
	if n := opts.MaxMessagesPerMinute; n > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
	return s
}

// ID implements core.Subscriber.
func (s *Session) ID() string { return s.id }

// Room returns the room this session belongs to.
func (s *Session) Room() string { return s.room }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Deliver implements core.Subscriber. A full mailbox drops the event.
func (s *Session) Deliver(ev core.Event) bool {
	select {
	case s.mailbox <- ev:
		return true
	default:
		return false
	}
}

// Connect joins the room and then accepts the client connection. An
// unauthenticated identity is closed without ever joining.
func (s *Session) Connect(ctx context.Context, upgrade Upgrader) error {
	if s.State() != StatePending {
		return fmt.Errorf("connect in state %s", s.State())
	}
	if !s.identity.Authenticated {
		s.state.Store(int32(StateClosed))
		s.log.Info().Msg("rejected unauthenticated connection")
		return ErrUnauthorized
	}

	if err := s.bus.Join(ctx, s.room, s); err != nil {
		s.Disconnect()
		return fmt.Errorf("join room: %w", err)
	}
	s.joined.Store(true)

	conn, err := upgrade(ctx)
	if err != nil {
		s.Disconnect()
		return fmt.Errorf("accept connection: %w", err)
	}
	s.conn = conn

	if !s.state.CompareAndSwap(int32(StatePending), int32(StateJoined)) {
		return ErrNotJoined
	}
	s.metrics.SessionOpened()
	s.log.Info().Msg("session joined")
	return nil
}

// Run relays frames and events until the client goes away or ctx is
// cancelled. It always disconnects before returning.
func (s *Session) Run(ctx context.Context) error {
	defer s.Disconnect()
	if s.State() != StateJoined {
		return ErrNotJoined
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			data, err := s.conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case data := <-frames:
			err := s.Receive(ctx, data)
			switch {
			case err == nil:
			case errors.Is(err, ErrMalformedInput), errors.Is(err, ErrRateLimited):
				s.log.Debug().Err(err).Msg("frame dropped")
			default:
				return err
			}
		case ev := <-s.mailbox:
			if err := s.handleEvent(ctx, ev); err != nil {
				return err
			}
		case err := <-readErr:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Receive handles one raw client frame. Malformed and rate-limited frames are
// dropped without a reply and leave the session joined.
func (s *Session) Receive(ctx context.Context, frame []byte) error {
	if s.State() != StateJoined {
		return ErrNotJoined
	}

	text, err := proto.DecodeInbound(frame)
	if err != nil {
		s.metrics.FrameRejected("malformed")
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.FrameRejected("rate_limited")
		return ErrRateLimited
	}

	source := s.resolver.Resolve(ctx, s.identity.UserID)
	ev := core.NewChatEvent(s.room, s.identity.Username, text, source)
	if err := s.bus.Publish(ctx, s.room, ev); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	s.metrics.Published()
	return nil
}

func (s *Session) handleEvent(ctx context.Context, ev core.Event) error {
	switch ev.Kind {
	case core.EventChatMessage:
		return s.forwardChat(ctx, ev.Chat)
	default:
		s.log.Debug().Stringer("kind", ev.Kind).Msg("ignoring event")
		return nil
	}
}

func (s *Session) forwardChat(ctx context.Context, msg core.ChatMessage) error {
	target := s.resolver.Resolve(ctx, s.identity.UserID)

	text := msg.Text
	if translate.Normalize(target) == translate.Normalize(msg.SourceLanguage) {
		s.metrics.Translation(metrics.TranslationSkipped)
	} else {
		res, err := s.translator.Translate(ctx, msg.Text, target, msg.SourceLanguage)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			s.metrics.Translation(metrics.TranslationFailed)
			s.log.Warn().Err(err).Str("target", target).Str("source", msg.SourceLanguage).Msg("translation failed, forwarding original")
			text = Fallback(msg.Text)
		default:
			s.metrics.Translation(metrics.TranslationOK)
			text = res.Text
		}
	}

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	if err := s.conn.Write(wctx, proto.Outbound{Message: text, Username: msg.Username}); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Disconnect leaves the room and closes the session. It is safe to call
// more than once and from any state.
func (s *Session) Disconnect() {
	s.closeOnce.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		if s.joined.Load() {
			ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
			defer cancel()
			if err := s.bus.Leave(ctx, s.room, s); err != nil && !errors.Is(err, core.ErrHubClosed) {
				s.log.Warn().Err(err).Msg("leave room")
			}
		}
		if prev == StateJoined {
			s.metrics.SessionClosed()
			s.log.Info().Msg("session closed")
		}
	})
}

// Fallback marks text as untranslated while keeping it verbatim.
func Fallback(text string) string {
	return FallbackPrefix + text
}
