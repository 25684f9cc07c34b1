package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"medibridge-assistant/internal/observability"
	"medibridge-assistant/internal/script"
)

type countingLoader struct {
	script *script.Script
	err    error
	calls  int
}

func (c *countingLoader) LoadScript(_ context.Context) (*script.Script, error) {
	c.calls++
	return c.script, c.err
}

// transientLoader fails on its first call only.
type transientLoader struct {
	*countingLoader
	failOnce bool
}

func (t *transientLoader) LoadScript(ctx context.Context) (*script.Script, error) {
	if t.failOnce {
		t.failOnce = false
		return nil, errors.New("temporary ssm failure")
	}
	return t.countingLoader.LoadScript(ctx)
}

type recordedExchange struct {
	sessionID, message, reply, nodeID string
	matched                           bool
}

type mockRecorder struct {
	records []recordedExchange
	err     error
}

func (m *mockRecorder) RecordExchange(_ context.Context, sessionID, message, reply, nodeID string, matched bool) error {
	m.records = append(m.records, recordedExchange{sessionID, message, reply, nodeID, matched})
	return m.err
}

func mustNewReplyService(t *testing.T, loader ScriptLoader, opts ...ReplyOption) *ReplyService {
	t.Helper()
	s, err := NewReplyService(loader, opts...)
	require.NoError(t, err)
	return s
}

func requireCode(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var ue *Error
	require.ErrorAs(t, err, &ue)
	require.Equal(t, code, ue.Code)
	require.Equal(t, reason, ue.Reason)
}

func TestNewReplyService_ValidatesDependency(t *testing.T) {
	_, err := NewReplyService(nil)
	require.Error(t, err)
}

func TestReply_MatchesScriptNode(t *testing.T) {
	sc := script.Default()
	s := mustNewReplyService(t, StaticScript{Script: sc})

	reply, err := s.Reply(context.Background(), "", "  Donations ")
	require.NoError(t, err)
	node, _ := sc.Node("donations")
	require.Equal(t, node.Text, reply)
}

func TestReply_UnknownMessageGetsFallback(t *testing.T) {
	sc := script.Default()
	s := mustNewReplyService(t, StaticScript{Script: sc})

	before := testutil.ToFloat64(observability.RepliesTotal.WithLabelValues(fallbackNodeID))
	reply, err := s.Reply(context.Background(), "", "can I bring my dog?")
	require.NoError(t, err)
	require.Equal(t, sc.Fallback, reply)
	require.Equal(t, before+1, testutil.ToFloat64(observability.RepliesTotal.WithLabelValues(fallbackNodeID)))
}

func TestReply_InputValidation(t *testing.T) {
	s := mustNewReplyService(t, StaticScript{Script: script.Default()}, WithMaxMessageLength(10))

	_, err := s.Reply(context.Background(), "", "   ")
	requireCode(t, err, ErrorInvalidInput, "empty_message")

	_, err = s.Reply(context.Background(), "", strings.Repeat("a", 11))
	requireCode(t, err, ErrorInvalidInput, "message_too_long")
}

func TestReply_ScriptLoadError(t *testing.T) {
	s := mustNewReplyService(t, &countingLoader{err: errors.New("ssm down")})
	_, err := s.Reply(context.Background(), "", "yes")
	requireCode(t, err, ErrorInternal, "script_load_error")
	require.ErrorContains(t, err, "ssm down")
}

func TestReply_NilScriptIsAnError(t *testing.T) {
	s := mustNewReplyService(t, &countingLoader{})
	_, err := s.Reply(context.Background(), "", "yes")
	requireCode(t, err, ErrorInternal, "script_load_error")

	_, err = mustNewReplyService(t, StaticScript{}).Reply(context.Background(), "", "yes")
	requireCode(t, err, ErrorInternal, "script_load_error")
}

func TestReply_CachesScript(t *testing.T) {
	loader := &countingLoader{script: script.Default()}
	s := mustNewReplyService(t, loader)
	for i := 0; i < 3; i++ {
		_, err := s.Reply(context.Background(), "", "money")
		require.NoError(t, err)
	}
	require.Equal(t, 1, loader.calls)
}

func TestReply_RetriesAfterTransientLoadFailure(t *testing.T) {
	loader := &transientLoader{countingLoader: &countingLoader{script: script.Default()}, failOnce: true}
	s := mustNewReplyService(t, loader)

	_, err := s.Reply(context.Background(), "", "money")
	require.Error(t, err)

	_, err = s.Reply(context.Background(), "", "money")
	require.NoError(t, err)
	require.Equal(t, 1, loader.calls)
}

func TestReply_RecordsExchange(t *testing.T) {
	rec := &mockRecorder{}
	sc := script.Default()
	s := mustNewReplyService(t, StaticScript{Script: sc}, WithExchangeRecorder(rec))

	reply, err := s.Reply(context.Background(), "sess-1", "Blood")
	require.NoError(t, err)
	_, err = s.Reply(context.Background(), "sess-1", "parking?")
	require.NoError(t, err)

	require.Len(t, rec.records, 2)
	require.Equal(t, recordedExchange{"sess-1", "blood", reply, "blood", true}, rec.records[0])
	require.Equal(t, recordedExchange{"sess-1", "parking?", sc.Fallback, fallbackNodeID, false}, rec.records[1])
}

func TestReply_GeneratesSessionIDWhenMissing(t *testing.T) {
	orig := newUUID
	newUUID = func() string { return "generated-id" }
	t.Cleanup(func() { newUUID = orig })

	rec := &mockRecorder{}
	s := mustNewReplyService(t, StaticScript{Script: script.Default()}, WithExchangeRecorder(rec))
	_, err := s.Reply(context.Background(), " ", "yes")
	require.NoError(t, err)
	require.Equal(t, "generated-id", rec.records[0].sessionID)
}

func TestReply_ExchangeLogFailureDoesNotFailReply(t *testing.T) {
	rec := &mockRecorder{err: errors.New("dynamodb throttled")}
	s := mustNewReplyService(t, StaticScript{Script: script.Default()}, WithExchangeRecorder(rec))

	before := testutil.ToFloat64(observability.ExchangeLogFailuresTotal)
	reply, err := s.Reply(context.Background(), "sess-1", "no")
	require.NoError(t, err)
	require.NotEmpty(t, reply)
	require.Equal(t, before+1, testutil.ToFloat64(observability.ExchangeLogFailuresTotal))
}

// A ReplyService can stand in for the remote responder end to end.
func TestEngineWithInProcessReplyService(t *testing.T) {
	s := mustNewReplyService(t, StaticScript{Script: script.Default()})
	e := mustOpenEngine(t, s)

	bot, err := e.SubmitChoice(context.Background(), "Donations")
	require.NoError(t, err)
	require.Equal(t, []string{"Blood", "Organs", "Goods", "Money"}, bot.Options)

	bot, err = e.SubmitChoice(context.Background(), "Goods")
	require.NoError(t, err)
	require.Equal(t, []string{"Yes", "No"}, bot.Options)

	bot, err = e.SubmitChoice(context.Background(), "No")
	require.NoError(t, err)
	require.Empty(t, bot.Options)

	require.Equal(t, 7, e.Len())
}
