// Package handler exposes the inbox over HTTP, either as an API Gateway
// Lambda handler or as a chi router.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"oneinbox/internal/domain"
	"oneinbox/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// InboxUseCase is the application surface served by both transports.
type InboxUseCase interface {
	Send(ctx context.Context, in usecase.SendInput) ([]domain.Message, error)
	Generate(ctx context.Context, platformHint string) ([]domain.Message, error)
	Messages(ctx context.Context) []domain.Message
	Clear(ctx context.Context)
}

type Handler struct {
	uc  InboxUseCase
	log *slog.Logger
}

func NewHandler(uc InboxUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, log: slog.Default()}, nil
}

// result is a transport-neutral response.
type result struct {
	status int
	body   any
}

// Handle serves an API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := headerValue(req.Headers, correlationHeader)
	if corrID == "" {
		corrID = newUUID()
	}

	var res result
	path := strings.TrimRight(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodGet && path == "/healthz":
		res = h.health()
	case req.HTTPMethod == http.MethodGet && path == "/api/messages":
		res = h.messages(ctx)
	case req.HTTPMethod == http.MethodGet && path == "/api/generate":
		res = h.generate(ctx, req.QueryStringParameters["platform"], corrID)
	case req.HTTPMethod == http.MethodPost && path == "/api/send":
		res = h.send(ctx, []byte(req.Body), corrID)
	case req.HTTPMethod == http.MethodPost && path == "/api/clear":
		res = h.clear(ctx)
	default:
		res = result{status: http.StatusNotFound, body: errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "route_not_found"}}
	}

	payload, err := json.Marshal(res.body)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: res.status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(payload),
	}, nil
}

func (h *Handler) health() result {
	return result{status: http.StatusOK, body: okResponse{OK: true}}
}

func (h *Handler) messages(ctx context.Context) result {
	msgs := h.uc.Messages(ctx)
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return result{status: http.StatusOK, body: messagesResponse{Messages: msgs}}
}

func (h *Handler) generate(ctx context.Context, platform, corrID string) result {
	msgs, err := h.uc.Generate(ctx, platform)
	if err != nil {
		return h.failure(err, corrID)
	}
	return result{status: http.StatusOK, body: generatedResponse{Generated: msgs}}
}

func (h *Handler) send(ctx context.Context, body []byte, corrID string) result {
	var req sendRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return result{status: http.StatusBadRequest, body: errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_json"}}
		}
	}
	msgs, err := h.uc.Send(ctx, req.input())
	if err != nil {
		return h.failure(err, corrID)
	}
	return result{status: http.StatusOK, body: messagesResponse{Messages: msgs}}
}

func (h *Handler) clear(ctx context.Context) result {
	h.uc.Clear(ctx)
	return result{status: http.StatusOK, body: okResponse{OK: true}}
}

func (h *Handler) failure(err error, corrID string) result {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		h.log.Error("handler: unexpected error", "err", err, "correlation_id", corrID)
		return result{status: http.StatusInternalServerError, body: errorResponse{Error: string(usecase.ErrorInternal)}}
	}
	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("handler: request failed", "err", err, "correlation_id", corrID)
	}
	return result{status: status, body: errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var newUUID = func() string {
	return uuid.NewString()
}
