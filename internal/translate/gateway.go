// Package translate is the boundary to the external machine-translation service.
// Callers get either a complete Result or an error; backend faults never escape
// as anything other than *Error.
package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/babelchat-server/internal/metrics"
)

// AutoDetect asks the backend to detect the source language.
const AutoDetect = "auto"

// undetermined is reported when neither the backend nor local detection knows the source.
const undetermined = "und"

// Result is a completed translation.
type Result struct {
	Text           string
	DetectedSource string
}

// Backend performs the remote translation call. source is AutoDetect when unknown.
type Backend interface {
	Translate(ctx context.Context, text, target, source string) (Result, error)
}

// Options tune the gateway's protection around the backend.
type Options struct {
	Timeout         time.Duration
	MaxConcurrent   int
	RatePerSecond   float64 // <= 0 disables rate limiting
	Burst           int
	BreakerFailures uint32 // consecutive failures before the circuit opens; 0 uses 5
	BreakerCooldown time.Duration
}

// Gateway validates requests and runs backend calls on bounded workers.
type Gateway struct {
	backend Backend
	timeout time.Duration
	workers *semaphore.Weighted
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *zerolog.Logger
	metrics *metrics.Metrics
}

type outcome struct {
	result Result
	err    error
}

// NewGateway wraps backend with validation, worker bounding, rate limiting and a circuit breaker.
func NewGateway(backend Backend, opts Options, logger *zerolog.Logger, m *metrics.Metrics) *Gateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}

	g := &Gateway{
		backend: backend,
		timeout: opts.Timeout,
		workers: semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		log:     logger,
		metrics: m,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	failures := opts.BreakerFailures
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "translator",
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A caller walking away is not a backend fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return g
}

// Translate translates text into target. A valid source skips detection.
// When ctx is cancelled the call is abandoned and its result discarded.
func (g *Gateway) Translate(ctx context.Context, text, target, source string) (Result, error) {
	target = Normalize(target)
	if !IsSupported(target) {
		return Result{}, fmt.Errorf("%w: target %q", ErrInvalidLanguage, target)
	}
	source = Normalize(source)
	if !IsSupported(source) {
		source = AutoDetect
	}

	if err := g.workers.Acquire(ctx, 1); err != nil {
		return Result{}, failed("no translation worker available", err)
	}

	done := make(chan outcome, 1)
	go func() {
		defer g.workers.Release(1)
		res, err := g.call(ctx, text, target, source)
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, failed("abandoned by caller", ctx.Err())
	}
}

func (g *Gateway) call(ctx context.Context, text, target, source string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return Result{}, failed("rate limit wait", err)
		}
	}

	start := time.Now()
	v, err := g.breaker.Execute(func() (interface{}, error) {
		return g.backend.Translate(ctx, text, target, source)
	})
	g.metrics.ObserveTranslation(time.Since(start))
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{}, failed("translator unavailable", err)
		}
		return Result{}, failed(err.Error(), err)
	}

	res, ok := v.(Result)
	if !ok {
		return Result{}, failed("unexpected backend result", nil)
	}
	if res.Text == "" && text != "" {
		return Result{}, failed("empty translation", nil)
	}

	switch {
	case source != AutoDetect:
		res.DetectedSource = source
	case res.DetectedSource == "":
		res.DetectedSource = detect(text)
	default:
		res.DetectedSource = Normalize(res.DetectedSource)
	}
	return res, nil
}

// detect guesses the language locally when the backend did not report one.
func detect(text string) string {
	info := whatlanggo.Detect(text)
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return undetermined
}
