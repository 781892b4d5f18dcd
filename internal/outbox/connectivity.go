package outbox

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// Connectivity сообщает, есть ли сеть, и присылает переходы состояния
type Connectivity interface {
	Online() bool
	Changes() <-chan bool
}

// state общая часть: текущее значение и канал переходов с буфером на одно событие
type state struct {
	online  atomic.Bool
	changes chan bool
}

func (s *state) init(online bool) {
	s.changes = make(chan bool, 1)
	s.online.Store(online)
}

func (s *state) Online() bool {
	return s.online.Load()
}

func (s *state) Changes() <-chan bool {
	return s.changes
}

func (s *state) set(online bool) bool {
	if s.online.Swap(online) == online {
		return false
	}
	// читателю важно только последнее состояние
	for {
		select {
		case s.changes <- online:
			return true
		default:
		}
		select {
		case <-s.changes:
		default:
		}
	}
}

// Switch ручное переключение: флаг --offline и тесты
type Switch struct {
	state
}

func NewSwitch(online bool) *Switch {
	s := &Switch{}
	s.init(online)
	return s
}

func (s *Switch) Set(online bool) {
	s.set(online)
}

// Monitor опрашивает /healthz шлюза
type Monitor struct {
	state
	url      string
	interval time.Duration
	client   *http.Client
}

func NewMonitor(gatewayURL string, interval time.Duration, client *http.Client) *Monitor {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	m := &Monitor{
		url:      strings.TrimRight(gatewayURL, "/") + "/healthz",
		interval: interval,
		client:   client,
	}
	m.init(false)
	return m
}

// Run проверяет связь сразу и затем с интервалом, пока ctx не отменен
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if m.set(m.probe(ctx)) {
			log.Info().Bool("online", m.Online()).Msg("Connectivity changed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
