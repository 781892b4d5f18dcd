// Package outbox is the client-side durable send queue. Messages written while
// offline survive restarts and are delivered in creation order once the
// gateway is reachable again.
package outbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/service"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

const (
	DefaultBatchSize   = 10
	DefaultMaxAttempts = 3
	DefaultSchedule    = "@every 30s"
	DefaultSendTimeout = 15 * time.Second
)

const (
	stateIdle int32 = iota
	stateRunning
)

// Draft сообщение, которое пользователь хочет отправить
type Draft struct {
	ChatID    uint
	Content   *string
	MediaURL  *string
	MediaType *string
	ReplyToID *uint
}

// Report итог одного прохода по очереди
type Report struct {
	Sent    int
	Failed  int
	Retried int
	Held    int
}

func (r Report) Handled() int {
	return r.Sent + r.Failed + r.Retried + r.Held
}

type Option func(*Outbox)

func WithBatchSize(n int) Option {
	return func(o *Outbox) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(o *Outbox) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithSchedule(expr string) Option {
	return func(o *Outbox) {
		if expr != "" {
			o.schedule = expr
		}
	}
}

func WithSendTimeout(d time.Duration) Option {
	return func(o *Outbox) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(o *Outbox) { o.now = now }
}

// WithDelivered вызывается после подтверждения сервером
func WithDelivered(fn func(tempID string, msg *model.Message)) Option {
	return func(o *Outbox) { o.delivered = fn }
}

type Outbox struct {
	store  *Store
	sender Sender
	conn   Connectivity
	userID uint

	batchSize   int
	maxAttempts int
	schedule    string
	sendTimeout time.Duration
	now         func() time.Time
	delivered   func(string, *model.Message)

	state   atomic.Int32
	looping atomic.Bool
	trigger chan struct{}

	mu          sync.Mutex
	lastCreated time.Time

	logger zerolog.Logger
}

// New создает очередь пользователя и возвращает в pending записи, зависшие в sending
func New(ctx context.Context, store *Store, sender Sender, conn Connectivity, userID uint, opts ...Option) (*Outbox, error) {
	o := &Outbox{
		store:       store,
		sender:      sender,
		conn:        conn,
		userID:      userID,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		schedule:    DefaultSchedule,
		sendTimeout: DefaultSendTimeout,
		now:         time.Now,
		trigger:     make(chan struct{}, 1),
		logger:      log.With().Str("component", "outbox").Uint("user_id", userID).Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if _, err := o.Recover(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// Enqueue сохраняет черновик и, если сеть есть, запускает доставку в фоне.
// Сетевых вызовов здесь нет.
func (o *Outbox) Enqueue(ctx context.Context, d Draft) (string, error) {
	if o.userID == 0 {
		return "", service.ErrUnauthorized
	}
	if err := validateDraft(d); err != nil {
		return "", err
	}

	q := &model.QueuedMessage{
		TempID:    uuid.NewString(),
		UserID:    o.userID,
		ChatID:    d.ChatID,
		Content:   d.Content,
		MediaURL:  d.MediaURL,
		MediaType: d.MediaType,
		ReplyToID: d.ReplyToID,
		Status:    model.QueueStatusPending,
		CreatedAt: o.stamp(),
	}
	if err := o.store.Put(q); err != nil {
		return "", service.Wrap(err, "failed to persist queued message")
	}

	o.logger.Debug().Str("temp_id", q.TempID).Uint("chat_id", q.ChatID).Msg("Message queued")

	if o.conn.Online() {
		o.kick()
	}
	return q.TempID, nil
}

func validateDraft(d Draft) error {
	if d.ChatID == 0 {
		return service.Errorf(service.KindValidation, "chat_id is required")
	}
	content := ""
	if d.Content != nil {
		content = strings.TrimSpace(*d.Content)
	}
	hasMedia := d.MediaURL != nil && *d.MediaURL != ""
	if content == "" && !hasMedia {
		return service.Errorf(service.KindValidation, "message must have content or media")
	}
	if utf8.RuneCountInString(content) > service.MaxContentLength {
		return service.Errorf(service.KindValidation, "content is longer than %d characters", service.MaxContentLength)
	}
	return nil
}

// stamp выдает строго возрастающее время создания, чтобы порядок ключей совпадал с порядком вызовов
func (o *Outbox) stamp() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()

	t := o.now().UTC()
	if !t.After(o.lastCreated) {
		t = o.lastCreated.Add(time.Nanosecond)
	}
	o.lastCreated = t
	return t
}

// ProcessQueue выполняет один проход. false означает, что проход не начался:
// нет сети или уже идет другой.
func (o *Outbox) ProcessQueue(ctx context.Context) (Report, bool) {
	var report Report
	if !o.conn.Online() {
		return report, false
	}
	if !o.state.CompareAndSwap(stateIdle, stateRunning) {
		return report, false
	}
	defer o.state.Store(stateIdle)

	items, err := o.store.Oldest(o.userID, model.QueueStatusPending, o.batchSize)
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to load queue")
		return report, true
	}

	// после временной ошибки чат придерживается до следующего прохода
	held := make(map[uint]bool)
	for i := range items {
		if ctx.Err() != nil || !o.conn.Online() {
			break
		}

		q := &items[i]
		if held[q.ChatID] {
			report.Held++
			continue
		}

		switch o.deliver(ctx, q) {
		case model.QueueStatusSent:
			report.Sent++
		case model.QueueStatusFailed:
			report.Failed++
		default:
			report.Retried++
			held[q.ChatID] = true
		}
	}

	if report.Handled() > 0 {
		o.logger.Info().
			Int("sent", report.Sent).
			Int("failed", report.Failed).
			Int("retried", report.Retried).
			Int("held", report.Held).
			Msg("Outbox pass finished")
	}
	return report, true
}

// deliver отправляет одну запись и возвращает ее итоговый статус
func (o *Outbox) deliver(ctx context.Context, q *model.QueuedMessage) string {
	logger := o.logger.With().Str("temp_id", q.TempID).Uint("chat_id", q.ChatID).Logger()

	q.Status = model.QueueStatusSending
	if err := o.store.Put(q); err != nil {
		logger.Error().Err(err).Msg("Failed to mark message as sending")
		return model.QueueStatusPending
	}

	sendCtx, cancel := context.WithTimeout(ctx, o.sendTimeout)
	msg, err := o.sender.Send(sendCtx, q)
	cancel()

	if err == nil {
		if err := o.store.Delete(q.TempID); err != nil {
			// сервер отбросит повтор по client_id
			logger.Error().Err(err).Msg("Failed to remove delivered message")
		}
		q.Status = model.QueueStatusSent
		if o.delivered != nil {
			o.delivered(q.TempID, msg)
		}
		return model.QueueStatusSent
	}

	q.RetryCount++
	q.ErrorMessage = err.Error()
	kind := service.KindOf(err)
	if !kind.Retryable() || q.RetryCount >= o.maxAttempts {
		q.Status = model.QueueStatusFailed
		logger.Warn().Err(err).Str("kind", string(kind)).Int("attempts", q.RetryCount).Msg("Message delivery failed")
	} else {
		q.Status = model.QueueStatusPending
		logger.Debug().Err(err).Int("attempts", q.RetryCount).Msg("Message delivery will be retried")
	}

	if err := o.store.Put(q); err != nil {
		logger.Error().Err(err).Msg("Failed to persist delivery result")
	}
	return q.Status
}

// Trigger просит выполнить проход; повторные вызовы схлопываются
func (o *Outbox) Trigger() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

// kick будит Run, а без него запускает проход в фоне
func (o *Outbox) kick() {
	if o.looping.Load() {
		o.Trigger()
		return
	}
	go o.ProcessQueue(context.Background())
}

// Run обрабатывает очередь по сигналам: появление сети, новые записи, ручной повтор и расписание
func (o *Outbox) Run(ctx context.Context) error {
	if !o.looping.CompareAndSwap(false, true) {
		return errors.New("outbox: Run already active")
	}
	defer o.looping.Store(false)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(o.schedule, o.Trigger); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	o.Trigger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case online := <-o.conn.Changes():
			if !online {
				continue
			}
			o.logger.Info().Msg("Back online, flushing outbox")
		case <-o.trigger:
		}

		report, ran := o.ProcessQueue(ctx)
		// полная пачка без временных ошибок: вероятно, в очереди есть еще
		if ran && report.Retried == 0 && report.Sent+report.Failed >= o.batchSize {
			o.Trigger()
		}
	}
}

// Retry возвращает неудавшуюся запись в очередь со сброшенным счетчиком
func (o *Outbox) Retry(ctx context.Context, tempID string) error {
	q, err := o.own(tempID)
	if err != nil {
		return err
	}
	if q.Status != model.QueueStatusFailed {
		return service.Errorf(service.KindValidation, "message %s is %s, only failed messages can be retried", tempID, q.Status)
	}

	q.Status = model.QueueStatusPending
	q.RetryCount = 0
	q.ErrorMessage = ""
	if err := o.store.Put(q); err != nil {
		return service.Wrap(err, "failed to requeue message")
	}

	if o.conn.Online() {
		o.kick()
	}
	return nil
}

// Discard удаляет запись, которая сейчас не отправляется
func (o *Outbox) Discard(ctx context.Context, tempID string) error {
	q, err := o.own(tempID)
	if err != nil {
		return err
	}
	if q.Status == model.QueueStatusSending {
		return service.Errorf(service.KindValidation, "message %s is being sent", tempID)
	}
	if err := o.store.Delete(tempID); err != nil {
		return service.Wrap(err, "failed to discard message")
	}
	return nil
}

// List записи пользователя в порядке постановки, со статусами
func (o *Outbox) List(ctx context.Context) ([]model.QueuedMessage, error) {
	items, err := o.store.All(o.userID)
	if err != nil {
		return nil, service.Wrap(err, "failed to list outbox")
	}
	return items, nil
}

// Recover возвращает в pending записи, прерванные падением клиента
func (o *Outbox) Recover(ctx context.Context) (int, error) {
	items, err := o.store.All(o.userID)
	if err != nil {
		return 0, service.Wrap(err, "failed to scan outbox")
	}

	recovered := 0
	for i := range items {
		q := &items[i]
		if q.Status != model.QueueStatusSending {
			continue
		}
		q.Status = model.QueueStatusPending
		if err := o.store.Put(q); err != nil {
			return recovered, service.Wrap(err, "failed to recover queued message")
		}
		recovered++
	}

	if recovered > 0 {
		o.logger.Info().Int("count", recovered).Msg("Recovered interrupted sends")
	}
	return recovered, nil
}

func (o *Outbox) own(tempID string) (*model.QueuedMessage, error) {
	q, err := o.store.Get(tempID)
	if errors.Is(err, ErrNotFound) {
		return nil, service.Errorf(service.KindNotFound, "queued message %s not found", tempID)
	}
	if err != nil {
		return nil, service.Wrap(err, "failed to load queued message")
	}
	if q.UserID != o.userID {
		return nil, service.Errorf(service.KindNotFound, "queued message %s not found", tempID)
	}
	return q, nil
}
