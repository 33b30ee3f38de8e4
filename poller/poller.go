// Package poller tracks one in-flight STK push from the client side until the
// provider reports a final result or the attempt budget runs out.
//
// The poller is only a UX signal. The webhook is what records a donation, so
// a client that gives up (timeout, closed tab, cancelled context) does not lose
// the payment: it still lands in donation history once the callback arrives.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"inua-fund-server/mpesa"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultMaxAttempts = 15
)

// ErrTimeout means the attempt budget ran out while the payment was still
// pending. The payment may still complete on the payer's phone.
var ErrTimeout = errors.New("the payment request has timed out; check your donation history before trying again")

// TerminalError is a final, non-success answer from the status endpoint.
type TerminalError struct {
	Code    string
	Message string
}

func (e *TerminalError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
}

type State int

const (
	StateInitiated State = iota
	StatePolling
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further queries will be made from s.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// StatusQuerier is anything that can ask for the state of a push payment:
// mpesa.Client directly, or an HTTP client for the server's status endpoint.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error)
}

// Config tunes a Poller. Zero values fall back to DefaultInterval and
// DefaultMaxAttempts.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
	// OnTick, if set, is called after every query with the attempt number and
	// the state that query produced.
	OnTick func(attempt int, state State)
}

// Poller is the state of one in-flight payment. Create one per
// CheckoutRequestID; pollers share nothing.
type Poller struct {
	querier           StatusQuerier
	checkoutRequestID string
	interval          time.Duration
	maxAttempts       int
	onTick            func(int, State)
	log               *logrus.Entry

	mu       sync.Mutex
	state    State
	attempts int
	err      error
}

// New returns a poller in StateInitiated for one CheckoutRequestID.
func New(querier StatusQuerier, checkoutRequestID string, cfg Config, log *logrus.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Poller{
		querier:           querier,
		checkoutRequestID: checkoutRequestID,
		interval:          cfg.Interval,
		maxAttempts:       cfg.MaxAttempts,
		onTick:            cfg.OnTick,
		log:               log.WithField("checkout_request_id", checkoutRequestID),
		state:             StateInitiated,
	}
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Err is nil until the poller reaches a non-success terminal state.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Run queries every interval until a terminal state and returns Err. The next
// query is scheduled only after the previous one has answered, so requests
// never overlap. Cancelling ctx stops the poller and releases its timer.
func (p *Poller) Run(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.cancel(ctx.Err())
			return p.Err()
		case <-timer.C:
			if p.Step(ctx).Terminal() {
				return p.Err()
			}
			timer.Reset(p.interval)
		}
	}
}

// Step performs one tick: count the attempt, query, transition.
func (p *Poller) Step(ctx context.Context) State {
	p.mu.Lock()
	if p.state.Terminal() {
		state := p.state
		p.mu.Unlock()
		return state
	}
	p.state = StatePolling
	p.attempts++
	attempt := p.attempts
	p.mu.Unlock()

	resp, err := p.querier.QueryStatus(ctx, p.checkoutRequestID)

	p.mu.Lock()
	switch {
	case err != nil && ctx.Err() != nil:
		p.finishLocked(StateCancelled, ctx.Err())
	case err != nil && mpesa.IsStillProcessing(err):
		p.log.WithField("attempt", attempt).Debug("Payment still being processed")
	case err != nil:
		p.finishLocked(StateFailed, terminalFromError(err))
	case resp == nil || resp.ResultCode == "":
		// nothing to act on yet
	case resp.ResultCode == mpesa.ResultSuccess:
		p.finishLocked(StateSucceeded, nil)
	default:
		msg := resp.ResultDesc
		if msg == "" {
			msg = "Payment processing failed"
		}
		p.finishLocked(StateFailed, &TerminalError{Code: string(resp.ResultCode), Message: msg})
	}

	if !p.state.Terminal() && p.attempts >= p.maxAttempts {
		p.finishLocked(StateTimedOut, ErrTimeout)
	}
	state := p.state
	p.mu.Unlock()

	if p.onTick != nil {
		p.onTick(attempt, state)
	}
	return state
}

func (p *Poller) cancel(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Terminal() {
		p.finishLocked(StateCancelled, err)
	}
}

func (p *Poller) finishLocked(state State, err error) {
	p.state = state
	p.err = err

	entry := p.log.WithFields(logrus.Fields{"state": state.String(), "attempts": p.attempts})
	if err != nil {
		entry.WithError(err).Info("Stopped polling payment status")
		return
	}
	entry.Info("Payment confirmed")
}

// terminalFromError turns a query failure into the message shown to the
// donor. Provider payloads missing the expected fields still end polling.
func terminalFromError(err error) *TerminalError {
	var apiErr *mpesa.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage != "" {
		return &TerminalError{Code: apiErr.ErrorCode, Message: apiErr.ErrorMessage}
	}
	var authErr *mpesa.AuthError
	if errors.As(err, &authErr) {
		return &TerminalError{Message: authErr.Error()}
	}
	return &TerminalError{Message: "Payment processing failed"}
}
