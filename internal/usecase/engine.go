package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medibridge-assistant/internal/domain"
)

// Responder maps one normalized message to the next bot utterance. The engine
// never sends history; a responder only ever sees the latest message.
type Responder interface {
	Reply(ctx context.Context, sessionID, message string) (string, error)
}

// FailureObserver is notified each time a responder failure is absorbed.
type FailureObserver func(err *Error)

// State is the widget-level conversation state derived from the engine.
type State string

const (
	StateClosed         State = "closed"
	StateOpenEmpty      State = "open_empty"
	StateAwaitingChoice State = "awaiting_choice"
	StatePending        State = "pending"
	StateErrored        State = "errored"
)

// Engine keeps the append-only history of one widget session and produces bot
// turns for user choices.
//
// Submissions are not serialized: each call appends its user turn right away
// and its bot turn when its own reply arrives, so concurrent calls may
// interleave. WithInFlightGuard turns a second concurrent submission into an
// ErrSubmissionInFlight error instead.
type Engine struct {
	responder Responder
	guard     bool
	observer  FailureObserver
	logger    zerolog.Logger
	sessionID string

	mu      sync.Mutex
	open    bool
	history []domain.Turn
	pending int
	errored bool
}

type EngineOption func(*Engine)

// WithInFlightGuard rejects submissions while another one is awaiting its reply.
func WithInFlightGuard() EngineOption {
	return func(e *Engine) {
		e.guard = true
	}
}

func WithFailureObserver(fn FailureObserver) EngineOption {
	return func(e *Engine) {
		e.observer = fn
	}
}

func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) EngineOption {
	return func(e *Engine) {
		if id = strings.TrimSpace(id); id != "" {
			e.sessionID = id
		}
	}
}

func NewEngine(r Responder, opts ...EngineOption) (*Engine, error) {
	if r == nil {
		return nil, errors.New("usecase: responder must not be nil")
	}
	e := &Engine{
		responder: r,
		logger:    zerolog.Nop(),
		sessionID: newUUID(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("session_id", e.sessionID).Logger()
	return e, nil
}

func (e *Engine) SessionID() string {
	return e.sessionID
}

// Open shows the widget and greets the user if nothing has been said yet.
func (e *Engine) Open() {
	e.mu.Lock()
	e.open = true
	e.mu.Unlock()
	e.Initialize()
}

// Close hides the widget. History survives until the engine is discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false
}

func (e *Engine) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// Initialize appends the greeting when the widget is open and the history is
// empty. It reports whether a turn was appended.
func (e *Engine) Initialize() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open || len(e.history) > 0 {
		return false
	}
	e.history = append(e.history, domain.Turn{
		Sender:  domain.SenderBot,
		Text:    domain.Greeting,
		Options: domain.TopLevelOptions(),
	})
	return true
}

// SubmitChoice records label as a user turn, asks the responder for the next
// utterance and records it as a bot turn. Responder failures never surface:
// they produce the apology turn with a single Retry option. The returned turn
// is the bot turn that was appended.
func (e *Engine) SubmitChoice(ctx context.Context, label string) (domain.Turn, error) {
	if strings.TrimSpace(label) == "" {
		return domain.Turn{}, ErrEmptyLabel
	}

	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return domain.Turn{}, ErrClosed
	}
	if e.guard && e.pending > 0 {
		e.mu.Unlock()
		return domain.Turn{}, ErrSubmissionInFlight
	}
	e.history = append(e.history, domain.Turn{Sender: domain.SenderUser, Text: label})
	e.pending++
	e.mu.Unlock()

	message := normalizeLabel(label)
	reply, err := e.responder.Reply(ctx, e.sessionID, message)

	var bot domain.Turn
	if err != nil {
		e.absorb(newError(ErrorResponderUnavailable, "reply_failed", err), message)
		bot = domain.Turn{Sender: domain.SenderBot, Text: domain.Apology, Options: domain.RetryOptions()}
	} else {
		bot = domain.Turn{Sender: domain.SenderBot, Text: reply, Options: InferOptions(reply)}
	}

	e.mu.Lock()
	e.history = append(e.history, bot)
	e.pending--
	e.errored = err != nil
	e.mu.Unlock()

	return bot.Clone(), nil
}

func (e *Engine) absorb(err *Error, message string) {
	e.logger.Error().Err(err).Str("message", message).Msg("responder unavailable")
	if e.observer != nil {
		e.observer(err)
	}
}

// History returns a copy of every turn so far, oldest first.
func (e *Engine) History() []domain.Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Turn, len(e.history))
	for i, t := range e.history {
		out[i] = t.Clone()
	}
	return out
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case !e.open:
		return StateClosed
	case len(e.history) == 0:
		return StateOpenEmpty
	case e.pending > 0:
		return StatePending
	case e.errored:
		return StateErrored
	default:
		return StateAwaitingChoice
	}
}

var newUUID = func() string {
	return uuid.NewString()
}
