package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"medibridge-assistant/handler"
	"medibridge-assistant/internal/domain"
	"medibridge-assistant/internal/script"
	"medibridge-assistant/internal/usecase"
)

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-file", filepath.Join(t.TempDir(), "assistant.log")))
	require.NoError(t, root.Execute())
	return out.String()
}

func newResponderServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc, err := usecase.NewReplyService(usecase.StaticScript{Script: script.Default()})
	require.NoError(t, err)
	h, err := handler.NewHandler(svc)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestAsk_AgainstResponder(t *testing.T) {
	srv := newResponderServer(t)

	out := runRoot(t, "ask", "--base-url", srv.URL, "Donations", "Blood", "No")

	require.Contains(t, out, "assistant: "+domain.Greeting)
	require.Contains(t, out, "you: Donations")
	require.Contains(t, out, "[Blood] [Organs] [Goods] [Money]")
	require.Contains(t, out, "[Yes] [No]")
	require.Contains(t, out, "Have a great day!")
}

func TestAsk_JSONOffline(t *testing.T) {
	out := runRoot(t, "ask", "--offline", "--json", "Volunteer")

	var got struct {
		SessionID string        `json:"sessionId"`
		Turns     []domain.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotEmpty(t, got.SessionID)
	require.Len(t, got.Turns, 3)
	require.Equal(t, domain.SenderUser, got.Turns[1].Sender)
	require.Equal(t, "Volunteer", got.Turns[1].Text)
	require.Equal(t, domain.YesNoOptions(), got.Turns[2].Options)
}

func TestAsk_UnreachableResponderFallsBack(t *testing.T) {
	srv := newResponderServer(t)
	url := srv.URL
	srv.Close()

	out := runRoot(t, "ask", "--base-url", url, "Hospitals")
	require.Contains(t, out, "assistant: "+domain.Apology)
	require.Contains(t, out, "[Retry]")
}

func TestAsk_OfflineCustomScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`version: 1
fallback: "Pick Donations or Volunteer."
nodes:
  - id: menu
    triggers: [menu]
    text: "Any questions?"
    options: [Yes, No]
  - id: end
    triggers: [yes, no]
    text: "Bye."
`), 0o644))

	out := runRoot(t, "ask", "--offline", "--script", path, "menu", "whatever")
	require.Contains(t, out, "assistant: Any questions?\n  [Yes] [No]")
	require.Contains(t, out, "assistant: Pick Donations or Volunteer.\n  [Donations] [Volunteer] [Hospitals] [Other]")
}

func TestEnvOr(t *testing.T) {
	t.Setenv(baseURLEnv, "http://example.test")
	require.Equal(t, "http://example.test", envOr(baseURLEnv, "x"))
	require.Equal(t, "x", envOr("MEDIBRIDGE_UNSET_FOR_TEST", "x"))
}
