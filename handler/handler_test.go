package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"oneinbox/internal/domain"
	"oneinbox/internal/usecase"
)

type stubUseCase struct {
	msgs    []domain.Message
	err     error
	in      usecase.SendInput
	hint    string
	cleared bool
}

func (s *stubUseCase) Send(_ context.Context, in usecase.SendInput) ([]domain.Message, error) {
	s.in = in
	return s.msgs, s.err
}

func (s *stubUseCase) Generate(_ context.Context, hint string) ([]domain.Message, error) {
	s.hint = hint
	return s.msgs, s.err
}

func (s *stubUseCase) Messages(context.Context) []domain.Message {
	return s.msgs
}

func (s *stubUseCase) Clear(context.Context) {
	s.cleared = true
}

var testPair = []domain.Message{
	{ID: "in-1", Seq: 1, ThreadID: "whatsapp:ana", Platform: domain.WhatsApp, Role: domain.RoleUser, User: "Ana", Text: "Hola", Timestamp: "2024-05-01T12:00:00Z"},
	{ID: "out-1", Seq: 2, ThreadID: "whatsapp:ana", ReplyTo: "in-1", Platform: domain.WhatsApp, Role: domain.RoleSystem, User: "Atención", Text: "¡Hola! ¿En qué puedo ayudarte?", Timestamp: "2024-05-01T12:00:00Z"},
}

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_Send(t *testing.T) {
	uc := &stubUseCase{msgs: testPair}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/send", `{"platform":"whatsapp","user_name":"Ana","message":"Hola"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.SendInput{Platform: "whatsapp", User: "Ana", Text: "Hola"}, uc.in)

	out := parseBody[messagesResponse](t, resp.Body)
	require.Equal(t, testPair, out.Messages)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_SendAliases(t *testing.T) {
	cases := map[string]usecase.SendInput{
		`{"app":"instagram","user":"Bruno","text":"hola"}`:                     {Platform: "instagram", User: "Bruno", Text: "hola"},
		`{"channel":"facebook","sender":"Carla","content":"hola"}`:             {Platform: "facebook", User: "Carla", Text: "hola"},
		`{"platform":" ","app":"facebook","user_name":"","user":"Dani"}`:       {Platform: "facebook", User: "Dani"},
		`{"message":"primero","text":"segundo","content":"tercero","user":""}`: {Text: "primero"},
	}
	for body, want := range cases {
		uc := &stubUseCase{msgs: testPair}
		h, err := NewHandler(uc)
		require.NoError(t, err)

		resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/send", body))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		require.Equal(t, want, uc.in, body)
	}
}

func TestHandle_SendEmptyBody(t *testing.T) {
	uc := &stubUseCase{msgs: testPair}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/send", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.SendInput{}, uc.in)
}

func TestHandle_InvalidBody(t *testing.T) {
	h, err := NewHandler(&stubUseCase{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/send", `not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.Equal(t, "invalid_json", out.Reason)
}

func TestHandle_Generate(t *testing.T) {
	uc := &stubUseCase{msgs: testPair}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	event := makeEvent(http.MethodGet, "/api/generate", "")
	event.QueryStringParameters = map[string]string{"platform": "instagram"}
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "instagram", uc.hint)
	require.Equal(t, testPair, parseBody[generatedResponse](t, resp.Body).Generated)
}

func TestHandle_MessagesAndClear(t *testing.T) {
	uc := &stubUseCase{}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/api/messages", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"messages":[]}`, resp.Body)

	resp, err = h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/clear/", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, resp.Body)
	require.True(t, uc.cleared)
}

func TestHandle_UnknownRoute(t *testing.T) {
	h, err := NewHandler(&stubUseCase{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodDelete, "/api/messages", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "text_too_long"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "unavailable", err: &usecase.Error{Code: usecase.ErrorUnavailable, Reason: "simulator_disabled"}, status: http.StatusServiceUnavailable, code: string(usecase.ErrorUnavailable)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "boom"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := NewHandler(&stubUseCase{err: tc.err})
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/send", `{"message":"hola"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h, err := NewHandler(&stubUseCase{msgs: testPair})
	require.NoError(t, err)

	event := makeEvent(http.MethodPost, "/api/send", `{"message":"hola"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
