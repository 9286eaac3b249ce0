// Package payment drives one gateway payment attempt through an explicit
// state machine. The gateway widget is an external surface the user can
// abandon at any point, so every path out of it must land the controller
// back in a state where a new attempt can start.
package payment

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// State of the payment session.
type State int

const (
	StateIdle State = iota
	StateInitiating
	StateAwaitingGateway
	StateVerifying
	StateSettled
	StateFailed
	StateDismissed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitiating:
		return "initiating"
	case StateAwaitingGateway:
		return "awaiting_gateway"
	case StateVerifying:
		return "verifying"
	case StateSettled:
		return "settled"
	case StateFailed:
		return "failed"
	case StateDismissed:
		return "dismissed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// terminal states release the attempt guard.
func (s State) terminal() bool {
	switch s {
	case StateSettled, StateFailed, StateDismissed, StateTimedOut:
		return true
	}
	return false
}

var (
	// ErrAlreadyProcessing is returned by Begin while an attempt is in
	// flight. It is the only duplicate-submission defense the flow needs.
	ErrAlreadyProcessing = errors.New("a payment attempt is already in progress")
	// ErrInvalidTransition rejects a state change the machine does not allow.
	ErrInvalidTransition = errors.New("invalid payment state transition")
	// ErrTimedOut is returned by Await when the gateway stays silent past
	// the attempt deadline.
	ErrTimedOut = errors.New("payment attempt timed out")
)

var transitions = map[State][]State{
	StateIdle:            {StateInitiating},
	StateInitiating:      {StateAwaitingGateway, StateFailed},
	StateAwaitingGateway: {StateVerifying, StateFailed, StateDismissed, StateTimedOut},
	StateVerifying:       {StateSettled, StateFailed},
}

// Event is something the gateway widget reported.
type Event interface {
	paymentEvent()
}

// EventSuccess means the user completed payment in the widget. The triple
// is forwarded verbatim to server-side verification.
type EventSuccess struct {
	OrderID   string
	PaymentID string
	Signature string
}

// EventFailed means the gateway reported a failed payment.
type EventFailed struct {
	Reason string
}

// EventDismissed means the user closed the widget without paying.
type EventDismissed struct{}

func (EventSuccess) paymentEvent()   {}
func (EventFailed) paymentEvent()    {}
func (EventDismissed) paymentEvent() {}

// CheckoutOptions configure the widget for one payment attempt.
type CheckoutOptions struct {
	OrderHandle string
	Amount      int64
	Currency    string
	Description string
	// Prefill for the widget's contact form.
	Name  string
	Email string
	Phone string
}

// Widget is the gateway checkout surface. Open presents it and returns a
// channel that delivers exactly one Event for the attempt.
type Widget interface {
	Open(ctx context.Context, opts CheckoutOptions) (<-chan Event, error)
}

const defaultAttemptTimeout = 5 * time.Minute

// Controller serializes payment attempts. The zero value is not usable,
// call NewController.
type Controller struct {
	mu      sync.Mutex
	state   State
	outcome State

	timeout time.Duration
}

func NewController() *Controller {
	return &Controller{timeout: defaultAttemptTimeout}
}

// NewControllerWithTimeout overrides the attempt deadline, mainly for tests.
func NewControllerWithTimeout(timeout time.Duration) *Controller {
	return &Controller{timeout: timeout}
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Outcome returns the terminal state of the most recently finished attempt,
// or StateIdle when none has finished yet.
func (c *Controller) Outcome() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Begin acquires the attempt guard. Any state other than Idle means an
// attempt is in flight.
func (c *Controller) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrAlreadyProcessing
	}
	c.state = StateInitiating
	return nil
}

// GatewayOpened marks the widget as presented.
func (c *Controller) GatewayOpened() error {
	return c.transition(StateAwaitingGateway)
}

// Verifying marks the success triple as received and verification started.
func (c *Controller) Verifying() error {
	return c.transition(StateVerifying)
}

// Settle finishes the attempt as settled and releases the guard.
func (c *Controller) Settle() error {
	return c.transition(StateSettled)
}

// Fail finishes the attempt as failed and releases the guard.
func (c *Controller) Fail() error {
	return c.transition(StateFailed)
}

// Dismiss finishes the attempt as abandoned and releases the guard.
func (c *Controller) Dismiss() error {
	return c.transition(StateDismissed)
}

func (c *Controller) transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(to)
}

func (c *Controller) transitionLocked(to State) error {
	for _, allowed := range transitions[c.state] {
		if allowed == to {
			if to.terminal() {
				c.outcome = to
				c.state = StateIdle
			} else {
				c.state = to
			}
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", c.state, to)
}

// Await blocks in AwaitingGateway until the widget reports, the attempt
// deadline passes, or ctx is done. It applies the matching transition and
// returns the event. A timeout returns ErrTimedOut with the guard already
// released.
func (c *Controller) Await(ctx context.Context, events <-chan Event) (Event, error) {
	if c.State() != StateAwaitingGateway {
		return nil, errors.Wrap(ErrInvalidTransition, "await outside awaiting_gateway")
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case ev, ok := <-events:
		if !ok {
			if err := c.Dismiss(); err != nil {
				return nil, err
			}
			return EventDismissed{}, nil
		}
		return ev, c.apply(ev)
	case <-timer.C:
		if err := c.transition(StateTimedOut); err != nil {
			return nil, err
		}
		return nil, ErrTimedOut
	case <-ctx.Done():
		if err := c.transition(StateTimedOut); err != nil {
			return nil, err
		}
		return nil, ctx.Err()
	}
}

func (c *Controller) apply(ev Event) error {
	switch ev.(type) {
	case EventSuccess:
		return c.Verifying()
	case EventFailed:
		return c.Fail()
	case EventDismissed:
		return c.Dismiss()
	default:
		return errors.Wrap(ErrInvalidTransition, "unknown widget event")
	}
}
