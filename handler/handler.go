package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medibridge-assistant/internal/observability"
	"medibridge-assistant/internal/usecase"
)

const (
	ReplyPath         = "/api/chat/reply"
	correlationHeader = "X-Correlation-Id"
	sessionHeader     = "X-Session-Id"
	maxBodyBytes      = 64 << 10
)

// Replier answers a single chat message.
type Replier interface {
	Reply(ctx context.Context, sessionID, message string) (string, error)
}

type Handler struct {
	replier Replier
	logger  zerolog.Logger
}

type replyRequest struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type Option func(*Handler)

func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

func NewHandler(r Replier, opts ...Option) (*Handler, error) {
	if r == nil {
		return nil, errors.New("handler: replier must not be nil")
	}
	h := &Handler{replier: r, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle serves API Gateway proxy events. Errors are always rendered into the
// response; the returned error is nil.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With().Str("correlation_id", correlationID).Logger()

	route := "unknown"
	resp := func() events.APIGatewayProxyResponse {
		if req.HTTPMethod == http.MethodOptions {
			route = "preflight"
			return emptyResponse(http.StatusNoContent)
		}
		if strings.TrimSuffix(req.Path, "/") != ReplyPath {
			return errorJSON(http.StatusNotFound, "NOT_FOUND", "")
		}
		route = "reply"
		if req.HTTPMethod != http.MethodPost {
			return errorJSON(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "")
		}
		return h.reply(ctx, logger, req)
	}()

	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID
	resp.Headers["Access-Control-Allow-Origin"] = "*"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type, X-Session-Id, X-Correlation-Id"
	resp.Headers["Access-Control-Allow-Methods"] = "POST, OPTIONS"

	observability.RequestsTotal.WithLabelValues(route, observability.StatusClass(resp.StatusCode)).Inc()
	return resp, nil
}

func (h *Handler) reply(ctx context.Context, logger zerolog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_body")
		}
		body = string(decoded)
	}

	var in replyRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_json")
	}

	sessionID := headerValue(req.Headers, sessionHeader)
	out, err := h.replier.Reply(ctx, sessionID, in.Message)
	if err != nil {
		status, code, reason := mapError(err)
		ev := logger.Warn()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Err(err).Str("session_id", sessionID).Int("status", status).Msg("reply failed")
		return errorJSON(status, code, reason)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:       out,
	}
}

func mapError(err error) (int, string, string) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError, string(usecase.ErrorInternal), ""
	}
	switch ue.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, string(ue.Code), ue.Reason
	case usecase.ErrorResponderUnavailable:
		return http.StatusBadGateway, string(ue.Code), ue.Reason
	default:
		return http.StatusInternalServerError, string(usecase.ErrorInternal), ue.Reason
	}
}

func emptyResponse(status int) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: map[string]string{}}
}

func errorJSON(status int, code, reason string) events.APIGatewayProxyResponse {
	b, _ := json.Marshal(errorResponse{Error: code, Reason: reason})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}

// headerValue looks a header up case-insensitively; API Gateway does not
// normalize header names.
func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// ServeHTTP adapts the handler to net/http for local runs.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeResponse(w, errorJSON(http.StatusRequestEntityTooLarge, string(usecase.ErrorInvalidInput), "body_too_large"))
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	resp, _ := h.Handle(r.Context(), events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Body:       string(body),
	})
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = io.WriteString(w, resp.Body)
	}
}
