// Package verification confirms a payment intent by polling the backend under a fixed countdown.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/sebuszqo/PlanCheckout/internal/payment/api"
	"github.com/sebuszqo/PlanCheckout/internal/payment/domain"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
)

var (
	ErrCancelled      = errors.New("verification cancelled")
	ErrAlreadyStarted = errors.New("verification session already started")
)

type Verifier interface {
	Verify(ctx context.Context, txRef string) (*api.VerifyResponse, error)
}

type Option func(*Session)

// WithUpdateHandler registers fn to receive a copy of the state after every change.
// fn runs on the goroutine that made the change and must not block.
func WithUpdateHandler(fn func(State)) Option {
	return func(s *Session) {
		s.onUpdate = fn
	}
}

// Session is one verification attempt for one intent. It is owned by whoever created it;
// only Run and Cancel change its state.
type Session struct {
	intent   domain.PaymentIntent
	verifier Verifier
	cfg      Config
	fallback *DemoFallback
	onUpdate func(State)

	mu      sync.Mutex
	state   State
	started bool
	stop    context.CancelFunc
	result  *Result
	err     error
}

func NewSession(intent domain.PaymentIntent, verifier Verifier, cfg Config, opts ...Option) (*Session, error) {
	if intent.TxRef == "" {
		return nil, errors.New("verification needs a transaction reference")
	}
	if verifier == nil {
		return nil, errors.New("verification needs a verifier")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		intent:   intent,
		verifier: verifier,
		cfg:      cfg,
		state: State{
			TxRef:     intent.TxRef,
			Status:    StatusChecking,
			Remaining: cfg.Budget,
			History:   []Status{StatusChecking},
		},
	}
	if cfg.DemoFallback {
		s.fallback = NewDemoFallback(intent.Amount, cfg.ErrorThreshold, cfg.FallbackMinRemaining)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Cancel marks the session failed and stops both cadences. Responses that arrive
// afterwards are discarded. Safe to call from any goroutine, any number of times.
func (s *Session) Cancel() {
	s.mu.Lock()
	changed := s.failLocked(ReasonCancelled, ErrCancelled)
	stop := s.stop
	snap := s.state.clone()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if changed {
		log.Printf("[Verification] tx_ref=%s cancelled", s.intent.TxRef)
		s.notify(snap)
	}
}

type pollResult struct {
	attempt int
	resp    *api.VerifyResponse
	err     error
}

// Run drives the session until it reaches success or failed. It returns the confirmed
// result, or a TimeoutError, GatewayError or ErrCancelled.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	s.started = true
	if s.state.Status.Terminal() {
		err := s.err
		s.mu.Unlock()
		return nil, err
	}
	ctx, stop := context.WithCancel(ctx)
	s.stop = stop
	s.mu.Unlock()
	defer stop()

	sched := newScheduler(s.cfg.TickInterval, s.cfg.InitialDelay)
	defer sched.stop()

	log.Printf("[Verification] tx_ref=%s started: budget=%v poll=%v initial_delay=%v max_attempts=%d demo_fallback=%t",
		s.intent.TxRef, s.cfg.Budget, s.cfg.PollInterval, s.cfg.InitialDelay, s.cfg.MaxAttempts, s.fallback != nil)

	results := make(chan pollResult)
	for {
		var done bool
		select {
		case <-ctx.Done():
			s.mu.Lock()
			changed := s.failLocked(ReasonCancelled, ErrCancelled)
			snap := s.state.clone()
			s.mu.Unlock()
			if changed {
				s.notify(snap)
			}
			done = true
		case <-sched.ticks():
			done = s.handleTick()
		case <-sched.polls():
			var attempt int
			attempt, done = s.beginAttempt()
			if !done {
				go s.poll(ctx, attempt, results)
			}
		case r := <-results:
			done = s.handleResult(r)
			if !done {
				sched.schedulePoll(s.cfg.PollInterval)
			}
		}
		if done {
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

func (s *Session) poll(ctx context.Context, attempt int, results chan<- pollResult) {
	resp, err := s.verifier.Verify(ctx, s.intent.TxRef)
	select {
	case results <- pollResult{attempt: attempt, resp: resp, err: err}:
	case <-ctx.Done():
	}
}

func (s *Session) handleTick() bool {
	s.mu.Lock()
	if s.state.Status.Terminal() {
		s.mu.Unlock()
		return true
	}
	s.state.Remaining -= s.cfg.TickInterval
	if s.state.Remaining <= 0 {
		s.state.Remaining = 0
		s.failLocked(ReasonCountdown, payErrors.NewTimeoutError(s.intent.TxRef, s.cfg.Budget, ReasonCountdown))
		log.Printf("[Verification] tx_ref=%s countdown expired after %d attempts", s.intent.TxRef, s.state.Attempts)
	}
	done := s.state.Status.Terminal()
	snap := s.state.clone()
	s.mu.Unlock()

	s.notify(snap)
	return done
}

// beginAttempt reserves the next attempt number, or fails the session when the bound is reached.
func (s *Session) beginAttempt() (int, bool) {
	s.mu.Lock()
	if s.state.Status.Terminal() {
		s.mu.Unlock()
		return 0, true
	}
	if s.state.Attempts >= s.cfg.MaxAttempts {
		s.failLocked(ReasonMaxAttempts, payErrors.NewTimeoutError(s.intent.TxRef, s.cfg.Budget, ReasonMaxAttempts))
		snap := s.state.clone()
		s.mu.Unlock()
		log.Printf("[Verification] tx_ref=%s gave up after %d attempts", s.intent.TxRef, snap.Attempts)
		s.notify(snap)
		return 0, true
	}
	s.state.Attempts++
	attempt := s.state.Attempts
	snap := s.state.clone()
	s.mu.Unlock()

	s.notify(snap)
	return attempt, false
}

func (s *Session) handleResult(r pollResult) bool {
	s.mu.Lock()
	if s.state.Status.Terminal() {
		s.mu.Unlock()
		log.Printf("[Verification] tx_ref=%s discarding late response for attempt %d", s.intent.TxRef, r.attempt)
		return true
	}

	v, data := s.classify(r)
	switch v {
	case verdictSuccess:
		s.state.ConsecutiveErrors = 0
		s.succeedLocked(*data, OriginBackend)
		log.Printf("[Verification] tx_ref=%s confirmed on attempt %d, receipt %s", s.intent.TxRef, r.attempt, data.ReceiptNumber)
	case verdictFailed:
		s.state.ConsecutiveErrors = 0
		s.state.PaymentData = data
		msg := ReasonBackendFailed
		if data != nil && data.ResultDesc != "" {
			msg = data.ResultDesc
		}
		s.failLocked(ReasonBackendFailed, payErrors.NewGatewayError("verify", msg, 0))
		log.Printf("[Verification] tx_ref=%s reported failed: %s", s.intent.TxRef, msg)
	case verdictPending:
		s.state.ConsecutiveErrors = 0
		if data != nil {
			s.state.PaymentData = data
		}
		s.markPendingLocked()
	case verdictError:
		s.state.ConsecutiveErrors++
		s.markPendingLocked()
		log.Printf("[Verification] tx_ref=%s attempt %d error (%d in a row): %v", s.intent.TxRef, r.attempt, s.state.ConsecutiveErrors, describe(r))
		if synthetic, ok := s.fallback.Consider(s.state.ConsecutiveErrors, s.state.Remaining); ok {
			s.succeedLocked(synthetic, OriginDemo)
		}
	}

	done := s.state.Status.Terminal()
	snap := s.state.clone()
	s.mu.Unlock()

	s.notify(snap)
	return done
}

type verdict int

const (
	verdictPending verdict = iota
	verdictSuccess
	verdictFailed
	verdictError
)

// classify maps one verify response onto a transition. A top-level "error" is treated
// like a network failure; anything ambiguous on an otherwise successful call is pending.
func (s *Session) classify(r pollResult) (verdict, *PaymentData) {
	if r.err != nil || r.resp == nil || r.resp.Status == api.StatusError {
		return verdictError, nil
	}
	if r.resp.Data == nil {
		return verdictPending, nil
	}

	data := &PaymentData{
		Amount:        s.intent.Amount,
		ReceiptNumber: r.resp.Data.MpesaReceiptNumber,
		ResultDesc:    r.resp.Data.ResultDesc,
	}
	if r.resp.Data.Amount != nil {
		data.Amount = *r.resp.Data.Amount
	}

	switch r.resp.Data.Status {
	case api.PaymentStatusSuccess:
		if r.resp.Status != api.StatusSuccess {
			return verdictPending, data
		}
		if data.Amount != s.intent.Amount {
			log.Printf("[Verification] tx_ref=%s confirmed amount %.2f differs from intent amount %.2f", s.intent.TxRef, data.Amount, s.intent.Amount)
		}
		return verdictSuccess, data
	case api.PaymentStatusFailed:
		return verdictFailed, data
	default:
		return verdictPending, data
	}
}

func (s *Session) markPendingLocked() {
	s.state.Status = StatusPending
	s.state.History = append(s.state.History, StatusPending)
}

func (s *Session) succeedLocked(data PaymentData, origin Origin) {
	s.state.Status = StatusSuccess
	s.state.History = append(s.state.History, StatusSuccess)
	s.state.PaymentData = &data
	s.state.Origin = origin
	s.result = &Result{Intent: s.intent, Data: data, Origin: origin}
}

// failLocked moves the session to failed unless it is already terminal.
func (s *Session) failLocked(reason string, err error) bool {
	if s.state.Status.Terminal() {
		return false
	}
	s.state.Status = StatusFailed
	s.state.Reason = reason
	s.state.History = append(s.state.History, StatusFailed)
	s.err = err
	return true
}

func (s *Session) notify(snap State) {
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
}

func describe(r pollResult) string {
	switch {
	case r.err != nil:
		return r.err.Error()
	case r.resp == nil:
		return "empty response"
	case r.resp.Message != "":
		return fmt.Sprintf("backend error: %s", r.resp.Message)
	default:
		return "backend reported error"
	}
}
