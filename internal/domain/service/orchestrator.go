package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/domain/poll"
	"dwelo-bridge/internal/ports"

	"github.com/jonboulle/clockwork"
)

var (
	ErrSendFailed    = errors.New("command send failed")
	ErrUnknownDevice = errors.New("unknown device")
)

// Outcome is how a background confirmation ended.
type Outcome int

const (
	OutcomeConfirmed Outcome = iota
	OutcomeAborted
	OutcomeTimedOut
	OutcomeFetchFailed
	OutcomePredicateFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeAborted:
		return "aborted"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeFetchFailed:
		return "fetch failed"
	case OutcomePredicateFailed:
		return "predicate failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type OrchestratorOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    clockwork.Clock
	Logger   *slog.Logger
	// OnConfirmed receives the device state that satisfied the stop condition.
	OnConfirmed func(model.Device)
	// OnSettled is told how every session ended, after its slot is freed.
	OnSettled func(deviceID string, outcome Outcome)
}

type session struct {
	deviceID string
	ctx      context.Context
	cancel   context.CancelFunc
}

// Orchestrator sends commands and confirms them in the background. It keeps
// at most one confirmation session per device; a new command cancels the
// previous session for that device.
type Orchestrator struct {
	sender ports.CommandSender
	fetch  func(context.Context) (*model.Snapshot, error)
	opts   OrchestratorOptions
	logger *slog.Logger

	base     context.Context
	stopAll  context.CancelFunc
	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup
}

func NewOrchestrator(sender ports.CommandSender, fetch func(context.Context) (*model.Snapshot, error), opts OrchestratorOptions) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	base, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		sender:   sender,
		fetch:    fetch,
		opts:     opts,
		logger:   opts.Logger.With("component", "orchestrator"),
		base:     base,
		stopAll:  stop,
		sessions: make(map[string]*session),
	}
}

// SendAndConfirm returns once the vendor accepted cmd. Confirmation against
// stop runs afterwards without blocking the caller.
func (o *Orchestrator) SendAndConfirm(ctx context.Context, deviceID string, cmd model.Command, stop model.StopCondition) error {
	o.supersede(deviceID)

	if err := o.sender.SendCommand(ctx, deviceID, cmd); err != nil {
		o.logger.Error("command send failed", "device", deviceID, "command", cmd.String(), "error", err)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	s, ok := o.register(deviceID)
	if !ok {
		return nil
	}
	go o.confirm(s, cmd, stop)
	return nil
}

// Active reports whether a confirmation session is running for deviceID.
func (o *Orchestrator) Active(deviceID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.sessions[deviceID]
	return ok
}

// Close aborts every session and waits for them to settle.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.stopAll()
	o.wg.Wait()
}

func (o *Orchestrator) supersede(deviceID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[deviceID]; ok {
		s.cancel()
		delete(o.sessions, deviceID)
	}
}

// register installs a new session. Another command for the same device may
// have registered while this one was being sent, so the slot is checked again.
func (o *Orchestrator) register(deviceID string) (*session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, false
	}
	if prev, ok := o.sessions[deviceID]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(o.base)
	s := &session{deviceID: deviceID, ctx: ctx, cancel: cancel}
	o.sessions[deviceID] = s
	o.wg.Add(1)
	return s, true
}

// release frees the slot only if it still holds s.
func (o *Orchestrator) release(s *session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.sessions[s.deviceID]; ok && cur == s {
		delete(o.sessions, s.deviceID)
	}
	s.cancel()
}

func (o *Orchestrator) confirm(s *session, cmd model.Command, stop model.StopCondition) {
	defer o.wg.Done()
	logger := o.logger.With("device", s.deviceID, "command", cmd.String())

	fetchDevice := func(ctx context.Context) (model.Device, error) {
		snap, err := o.fetch(ctx)
		if err != nil {
			return model.Device{}, err
		}
		d, ok := snap.Device(s.deviceID)
		if !ok {
			return model.Device{}, fmt.Errorf("%w: %s missing from status", ErrUnknownDevice, s.deviceID)
		}
		return d, nil
	}

	device, err := poll.Until(s.ctx, poll.Options{
		Interval: o.opts.Interval,
		Timeout:  o.opts.Timeout,
		Clock:    o.opts.Clock,
		Logger:   logger,
		Name:     "confirm",
	}, fetchDevice, stop)

	outcome := classify(err)
	switch outcome {
	case OutcomeConfirmed:
		logger.Debug("command confirmed")
		if o.opts.OnConfirmed != nil {
			o.opts.OnConfirmed(device)
		}
	case OutcomeAborted:
		logger.Debug("confirmation superseded")
	case OutcomeTimedOut:
		o.resend(s, cmd, logger)
	case OutcomeFetchFailed:
		logger.Error("confirmation fetch failed", "error", err)
	case OutcomePredicateFailed:
		logger.Error("confirmation stop condition failed", "error", err)
	}

	o.release(s)
	if o.opts.OnSettled != nil {
		o.opts.OnSettled(s.deviceID, outcome)
	}
}

// resend repeats cmd once. A failure is logged and not retried.
func (o *Orchestrator) resend(s *session, cmd model.Command, logger *slog.Logger) {
	if s.ctx.Err() != nil {
		return
	}
	logger.Warn("command not confirmed in time, resending once", "timeout", o.opts.Timeout)
	if err := o.sender.SendCommand(s.ctx, s.deviceID, cmd); err != nil {
		logger.Warn("resend failed", "error", err)
	}
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeConfirmed
	case errors.Is(err, poll.ErrAborted):
		return OutcomeAborted
	case errors.Is(err, poll.ErrTimeout):
		return OutcomeTimedOut
	case errors.Is(err, poll.ErrPredicate):
		return OutcomePredicateFailed
	default:
		return OutcomeFetchFailed
	}
}
