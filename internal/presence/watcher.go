package presence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const defaultReconnectDelay = 2 * time.Second

// HandshakeError сервер отклонил подключение к сокету; повтор с теми же данными не поможет
type HandshakeError struct {
	Status int
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("typing socket rejected: %d %s", e.Status, http.StatusText(e.Status))
}

// Watcher держит сокет /api/v1/typing одного чата и складывает события в Observer.
// Сигналы набора самого пользователя уходят в тот же сокет.
type Watcher struct {
	url            string
	header         http.Header
	observer       *Observer
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	typing         chan bool
	onChange       func(names []string)
}

// NewWatcher строит адрес сокета из адреса шлюза; onChange вызывается при каждом изменении набора имен
func NewWatcher(gatewayURL, token string, chatID uint, observer *Observer, onChange func(names []string)) (*Watcher, error) {
	u, err := url.Parse(strings.TrimRight(gatewayURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("gateway url: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/api/v1/typing"
	u.RawQuery = url.Values{"chat_id": {strconv.FormatUint(uint64(chatID), 10)}}.Encode()

	if onChange == nil {
		onChange = func([]string) {}
	}
	observer.SetChat(chatID)

	return &Watcher{
		url:            u.String(),
		header:         http.Header{"Authorization": {"Bearer " + token}},
		observer:       observer,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
		typing:         make(chan bool, 1),
		onChange:       onChange,
	}, nil
}

func (w *Watcher) SetReconnectDelay(d time.Duration) {
	if d > 0 {
		w.reconnectDelay = d
	}
}

// SetTyping ставит сигнал набора в очередь на отправку; неотправленный сигнал заменяется новым
func (w *Watcher) SetTyping(isTyping bool) {
	for {
		select {
		case w.typing <- isTyping:
			return
		default:
		}
		select {
		case <-w.typing:
		default:
		}
	}
}

// Run подключается и переподключается до отмены ctx или отказа сервера
func (w *Watcher) Run(ctx context.Context) error {
	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var rejected *HandshakeError
		if errors.As(err, &rejected) {
			return err
		}

		// события не переигрываются, поэтому после обрыва набор начинается с нуля
		if w.observer.Reset() {
			w.onChange(w.observer.Names())
		}
		log.Warn().Err(err).Str("url", w.url).Dur("retry_in", w.reconnectDelay).Msg("Typing socket lost")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.reconnectDelay):
		}
	}
}

func (w *Watcher) session(ctx context.Context) error {
	conn, resp, err := w.dialer.DialContext(ctx, w.url, w.header)
	if err != nil {
		if resp != nil && resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return &HandshakeError{Status: resp.StatusCode}
		}
		return err
	}

	readErr := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		readErr <- w.read(conn)
	}()
	defer func() {
		conn.Close()
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-readErr:
			return err
		case isTyping := <-w.typing:
			if err := conn.WriteJSON(ws.InEvent{Type: ws.EventTypeTyping, IsTyping: isTyping}); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) read(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev ws.OutEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Debug().Err(err).Msg("Skipping malformed socket frame")
			continue
		}
		if ev.Type != ws.EventTypeTyping || ev.IsTyping == nil {
			continue
		}

		changed := w.observer.Apply(model.TypingEvent{
			ChatID:      ev.ChatID,
			UserID:      ev.UserID,
			DisplayName: ev.DisplayName,
			IsTyping:    *ev.IsTyping,
		})
		if changed {
			w.onChange(w.observer.Names())
		}
	}
}
