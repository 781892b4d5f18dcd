package outbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/pkg/httputils"
	"tush00nka/bbbab_chatsync/internal/service"
)

// Sender доставляет одну запись на сервер
type Sender interface {
	Send(ctx context.Context, q *model.QueuedMessage) (*model.Message, error)
}

// RemoteError ответ шлюза с ошибкой; Kind определяет политику повторов
type RemoteError struct {
	Status  int
	Kind    service.Kind
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gateway responded %d (%s): %s", e.Status, e.Kind, e.Message)
}

// Unwrap позволяет service.KindOf видеть вид ошибки
func (e *RemoteError) Unwrap() error {
	return &service.Error{Kind: e.Kind, Message: e.Message}
}

type sendRequest struct {
	Action    string  `json:"action"`
	ChatID    uint    `json:"chat_id"`
	Content   *string `json:"content,omitempty"`
	MediaURL  *string `json:"media_url,omitempty"`
	MediaType *string `json:"media_type,omitempty"`
	ReplyTo   *uint   `json:"reply_to,omitempty"`
	ClientID  string  `json:"client_id"`
}

// HTTPSender отправляет действие send в шлюз
type HTTPSender struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPSender(gatewayURL, token string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		url:    strings.TrimRight(gatewayURL, "/") + "/api/v1/chat",
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSender) Send(ctx context.Context, q *model.QueuedMessage) (*model.Message, error) {
	body, err := json.Marshal(sendRequest{
		Action:    "send",
		ChatID:    q.ChatID,
		Content:   q.Content,
		MediaURL:  q.MediaURL,
		MediaType: q.MediaType,
		ReplyTo:   q.ReplyToID,
		ClientID:  q.TempID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		// сетевые ошибки временные
		return nil, service.Wrap(err, "gateway unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, service.Wrap(err, "failed to read gateway response")
	}

	if resp.StatusCode != http.StatusOK {
		var payload httputils.ErrorResponse
		_ = json.Unmarshal(data, &payload)
		return nil, &RemoteError{
			Status:  resp.StatusCode,
			Kind:    service.KindFromStatus(resp.StatusCode),
			Message: payload.Message,
		}
	}

	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, service.Wrap(err, "failed to decode gateway response")
	}
	return &msg, nil
}
