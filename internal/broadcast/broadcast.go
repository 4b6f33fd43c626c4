// internal/broadcast/broadcast.go
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/types"
)

// Side distinguishes entry buys from exit sells.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Request describes one transaction to build, sign and submit.
type Request struct {
	TokenMint       string
	PoolID          string
	Venue           types.VenueType
	Side            Side
	AmountSol       float64 // buy: SOL to spend
	TokenQuantity   float64 // sell: tokens to sell
	SlippagePercent float64
}

// Result is a confirmed submission outcome.
type Result struct {
	Signature      string
	FilledQuantity float64 // tokens bought or sold
	SolDelta       float64 // SOL spent (buy) or received (sell)
	Price          float64
	Route          string
}

// ErrSubmitTimeout marks an ambiguous outcome: the transaction may or may not
// have landed. Callers resolve it by balance inspection, never by resubmit.
var ErrSubmitTimeout = errors.New("submission timed out with unknown outcome")

// Submitter is one execution route into the market.
type Submitter interface {
	Name() string
	Submit(ctx context.Context, req Request) (*Result, error)
	// Balance returns the wallet's current holding of the given token.
	Balance(ctx context.Context, tokenMint string) (float64, error)
}

// Router drives submissions through a primary route with a fallback, retrying
// transient failures with exponential backoff. Ambiguous timeouts are passed
// up unretried; retrying a sell that may have landed double-executes.
type Router struct {
	primary       Submitter
	fallback      Submitter // may be nil
	submitTimeout time.Duration
	maxRetries    uint64
	observer      func(route, outcome string)
	logger        *zap.Logger
}

// NewRouter creates a router. fallback may be nil when only one route exists.
func NewRouter(primary, fallback Submitter, submitTimeout time.Duration, logger *zap.Logger) *Router {
	return &Router{
		primary:       primary,
		fallback:      fallback,
		submitTimeout: submitTimeout,
		maxRetries:    3,
		logger:        logger.Named("broadcast"),
	}
}

// SetObserver installs a per-attempt outcome callback (route name plus one of
// "ok", "timeout", "failed"). Used to feed metrics without coupling the
// router to a collector.
func (r *Router) SetObserver(observer func(route, outcome string)) {
	r.observer = observer
}

func (r *Router) observe(route string, err error) {
	if r.observer == nil {
		return
	}
	switch {
	case err == nil:
		r.observer(route, "ok")
	case errors.Is(err, ErrSubmitTimeout):
		r.observer(route, "timeout")
	default:
		r.observer(route, "failed")
	}
}

// Submit runs the request through the primary route and, on failure, the
// fallback. Each route attempt is retried with backoff except for ambiguous
// timeouts.
func (r *Router) Submit(ctx context.Context, req Request) (*Result, error) {
	result, primaryErr := r.submitRoute(ctx, r.primary, req)
	if primaryErr == nil {
		return result, nil
	}
	if errors.Is(primaryErr, ErrSubmitTimeout) {
		return nil, primaryErr
	}

	if r.fallback == nil {
		return nil, primaryErr
	}

	r.logger.Warn("Primary route failed, trying fallback",
		zap.String("primary", r.primary.Name()),
		zap.String("fallback", r.fallback.Name()),
		zap.String("token", req.TokenMint),
		zap.Error(primaryErr))

	result, fallbackErr := r.submitRoute(ctx, r.fallback, req)
	if fallbackErr != nil {
		return nil, fmt.Errorf("all routes failed: primary: %v, fallback: %w", primaryErr, fallbackErr)
	}
	return result, nil
}

func (r *Router) submitRoute(ctx context.Context, route Submitter, req Request) (*Result, error) {
	var result *Result

	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.submitTimeout)
		defer cancel()

		res, err := route.Submit(attemptCtx, req)
		if err != nil {
			if errors.Is(err, ErrSubmitTimeout) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return backoff.Permanent(ErrSubmitTimeout)
			}
			return err
		}
		result = res
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		r.observe(route.Name(), err)
		return nil, err
	}

	r.observe(route.Name(), nil)
	result.Route = route.Name()
	return result, nil
}

// Balance queries the primary route's balance view, falling back on error.
func (r *Router) Balance(ctx context.Context, tokenMint string) (float64, error) {
	balance, err := r.primary.Balance(ctx, tokenMint)
	if err == nil {
		return balance, nil
	}
	if r.fallback == nil {
		return 0, err
	}
	return r.fallback.Balance(ctx, tokenMint)
}
