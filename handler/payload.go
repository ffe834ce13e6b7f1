package handler

import (
	"strings"

	"oneinbox/internal/domain"
	"oneinbox/internal/usecase"
)

// sendRequest accepts the field names used by the different channel
// integrations; the first non-blank alias wins.
type sendRequest struct {
	Platform string `json:"platform"`
	App      string `json:"app"`
	Channel  string `json:"channel"`

	UserName string `json:"user_name"`
	User     string `json:"user"`
	Sender   string `json:"sender"`

	Message string `json:"message"`
	Text    string `json:"text"`
	Content string `json:"content"`
}

func (r sendRequest) input() usecase.SendInput {
	return usecase.SendInput{
		Platform: firstNonBlank(r.Platform, r.App, r.Channel),
		User:     firstNonBlank(r.UserName, r.User, r.Sender),
		Text:     firstNonBlank(r.Message, r.Text, r.Content),
	}
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type messagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

type generatedResponse struct {
	Generated []domain.Message `json:"generated"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
