package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"medibridge-assistant/internal/observability"
	"medibridge-assistant/internal/script"
)

const (
	defaultMaxMessage = 500
	fallbackNodeID    = "fallback"
)

// ScriptLoader supplies the dialogue script a ReplyService answers from.
type ScriptLoader interface {
	LoadScript(ctx context.Context) (*script.Script, error)
}

// ExchangeRecorder persists answered messages. It is optional.
type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, sessionID, message, reply, nodeID string, matched bool) error
}

// StaticScript is a ScriptLoader over an already parsed script.
type StaticScript struct {
	Script *script.Script
}

func (s StaticScript) LoadScript(_ context.Context) (*script.Script, error) {
	if s.Script == nil {
		return nil, errors.New("usecase: static script is nil")
	}
	return s.Script, nil
}

// ReplyService is the responder side of the chat contract: it maps a single
// message to the script's reply without looking at any history.
type ReplyService struct {
	loader     ScriptLoader
	exchanges  ExchangeRecorder
	maxMessage int
	logger     zerolog.Logger

	cacheMu sync.RWMutex
	script  *script.Script
}

type ReplyOption func(*ReplyService)

func WithExchangeRecorder(r ExchangeRecorder) ReplyOption {
	return func(s *ReplyService) {
		s.exchanges = r
	}
}

func WithMaxMessageLength(n int) ReplyOption {
	return func(s *ReplyService) {
		if n > 0 {
			s.maxMessage = n
		}
	}
}

func WithReplyLogger(l zerolog.Logger) ReplyOption {
	return func(s *ReplyService) {
		s.logger = l
	}
}

func NewReplyService(loader ScriptLoader, opts ...ReplyOption) (*ReplyService, error) {
	if loader == nil {
		return nil, errors.New("usecase: script loader must not be nil")
	}
	s := &ReplyService{
		loader:     loader,
		maxMessage: defaultMaxMessage,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Reply satisfies Responder, so a ReplyService can back an Engine in-process.
func (s *ReplyService) Reply(ctx context.Context, sessionID, message string) (string, error) {
	msg := script.Normalize(message)
	if msg == "" {
		return "", newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(msg) > s.maxMessage {
		return "", newError(ErrorInvalidInput, "message_too_long", nil)
	}

	sc, err := s.ensureScript(ctx)
	if err != nil {
		return "", newError(ErrorInternal, "script_load_error", err)
	}

	reply := sc.Fallback
	nodeID := fallbackNodeID
	node, matched := sc.Lookup(msg)
	if matched {
		reply = node.Text
		nodeID = node.ID
	}
	observability.RepliesTotal.WithLabelValues(nodeID).Inc()

	if s.exchanges != nil {
		sessionID = strings.TrimSpace(sessionID)
		if sessionID == "" {
			sessionID = newUUID()
		}
		if err := s.exchanges.RecordExchange(ctx, sessionID, msg, reply, nodeID, matched); err != nil {
			observability.ExchangeLogFailuresTotal.Inc()
			s.logger.Warn().Err(err).Str("session_id", sessionID).Str("node", nodeID).Msg("exchange log write failed")
		}
	}

	return reply, nil
}

// ensureScript loads the script once per process. Failed loads are not
// cached so a transient error does not pin the service.
func (s *ReplyService) ensureScript(ctx context.Context) (*script.Script, error) {
	s.cacheMu.RLock()
	if s.script != nil {
		sc := s.script
		s.cacheMu.RUnlock()
		return sc, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.script != nil {
		return s.script, nil
	}
	sc, err := s.loader.LoadScript(ctx)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, errors.New("usecase: loader returned no script")
	}
	s.script = sc
	return sc, nil
}
