package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"tush00nka/bbbab_chatsync/internal/config"
	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/outbox"
	"tush00nka/bbbab_chatsync/internal/pkg/auth"
	"tush00nka/bbbab_chatsync/internal/pkg/logging"
	"tush00nka/bbbab_chatsync/internal/presence"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.ClientConfig
	store   *outbox.Store
	userID  uint
	offline bool

	sendChat      uint
	sendText      string
	sendMediaURL  string
	sendMediaType string
	sendReplyTo   uint

	watchChat uint

	rootCmd = &cobra.Command{
		Use:   "chatsync",
		Short: "Клиент исходящей очереди сообщений",
		Long: `Клиент исходящей очереди сообщений.

Очередь хранится в OUTBOX_STORE_PATH и открывается одним процессом.
Пока работает "chatsync daemon", команды send, flush, list, retry и discard
завершаются ошибкой блокировки: остановите демон или дождитесь, пока он сам доставит очередь.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadClient()
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel, "development")

			userID, err = auth.UserFromTokenUnverified(cfg.Token)
			if err != nil {
				return fmt.Errorf("OUTBOX_TOKEN: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return store.Close()
		},
	}

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "Поставить сообщение в очередь и попробовать отправить",
		RunE:  runSend,
	}

	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Отправить накопленные сообщения",
		RunE:  runFlush,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Показать очередь",
		RunE:  runList,
	}

	retryCmd = &cobra.Command{
		Use:   "retry [temp_id]",
		Short: "Вернуть неудавшееся сообщение в очередь",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			box, conn, err := newOutbox(cmd.Context())
			if err != nil {
				return err
			}
			if err := box.Retry(cmd.Context(), args[0]); err != nil {
				return err
			}
			return flush(cmd.Context(), box, conn)
		},
	}

	discardCmd = &cobra.Command{
		Use:   "discard [temp_id]",
		Short: "Удалить сообщение из очереди",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			box, _, err := newOutbox(cmd.Context())
			if err != nil {
				return err
			}
			return box.Discard(cmd.Context(), args[0])
		},
	}

	daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Следить за сетью и отправлять очередь по мере возможности",
		Long: `Следит за сетью и отправляет очередь по мере возможности.

Демон держит очередь открытой все время работы, поэтому остальные команды очереди
в это время недоступны.`,
		RunE: runDaemon,
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Показывать, кто печатает в чате",
		Long: `Подключается к сокету набора текста чата и печатает, кто сейчас печатает.
Каждая строка stdin отправляет сигнал набора; после паузы уходит сигнал остановки.
Очередь не открывается, поэтому команда работает рядом с демоном.`,
		RunE: runWatch,
	}
)

// typingIdle пауза ввода, после которой набор считается законченным
const typingIdle = 3 * time.Second

func init() {
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "не обращаться к сети")

	sendCmd.Flags().UintVar(&sendChat, "chat", 0, "ID чата")
	sendCmd.Flags().StringVar(&sendText, "text", "", "текст сообщения")
	sendCmd.Flags().StringVar(&sendMediaURL, "media-url", "", "URL загруженного файла")
	sendCmd.Flags().StringVar(&sendMediaType, "media-type", "", "image, video, audio или file")
	sendCmd.Flags().UintVar(&sendReplyTo, "reply-to", 0, "ID сообщения, на которое отвечаем")
	_ = sendCmd.MarkFlagRequired("chat")

	watchCmd.Flags().UintVar(&watchChat, "chat", 0, "ID чата")
	_ = watchCmd.MarkFlagRequired("chat")

	rootCmd.AddCommand(sendCmd, flushCmd, listCmd, retryCmd, discardCmd, daemonCmd, watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore открывает очередь только для команд, которым она нужна
func openStore() error {
	if store != nil {
		return nil
	}
	var err error
	store, err = outbox.OpenStore(cfg.StorePath, nil)
	if errors.Is(err, outbox.ErrStoreLocked) {
		return fmt.Errorf("%w (is `chatsync daemon` running?)", err)
	}
	return err
}

// newOutbox создает очередь с ручным переключателем сети; он включается только перед отправкой
func newOutbox(ctx context.Context) (*outbox.Outbox, *outbox.Switch, error) {
	if err := openStore(); err != nil {
		return nil, nil, err
	}
	conn := outbox.NewSwitch(false)
	box, err := outbox.New(ctx, store, outbox.NewHTTPSender(cfg.GatewayURL, cfg.Token, cfg.SendTimeout), conn, userID,
		outbox.WithBatchSize(cfg.BatchSize),
		outbox.WithMaxAttempts(cfg.MaxAttempts),
		outbox.WithSchedule(cfg.Schedule),
		outbox.WithSendTimeout(cfg.SendTimeout),
		outbox.WithDelivered(func(tempID string, msg *model.Message) {
			fmt.Printf("delivered %s as message %d\n", tempID, msg.ID)
		}),
	)
	return box, conn, err
}

func flush(ctx context.Context, box *outbox.Outbox, conn *outbox.Switch) error {
	if offline {
		return nil
	}
	conn.Set(true)
	report, _ := box.ProcessQueue(ctx)
	fmt.Printf("sent %d, failed %d, will retry %d, held %d\n", report.Sent, report.Failed, report.Retried, report.Held)
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func runSend(cmd *cobra.Command, args []string) error {
	box, conn, err := newOutbox(cmd.Context())
	if err != nil {
		return err
	}

	draft := outbox.Draft{
		ChatID:    sendChat,
		Content:   optional(sendText),
		MediaURL:  optional(sendMediaURL),
		MediaType: optional(sendMediaType),
	}
	if sendReplyTo != 0 {
		draft.ReplyToID = &sendReplyTo
	}

	tempID, err := box.Enqueue(cmd.Context(), draft)
	if err != nil {
		return err
	}
	fmt.Println("queued", tempID)

	return flush(cmd.Context(), box, conn)
}

func runFlush(cmd *cobra.Command, args []string) error {
	box, conn, err := newOutbox(cmd.Context())
	if err != nil {
		return err
	}
	return flush(cmd.Context(), box, conn)
}

func runList(cmd *cobra.Command, args []string) error {
	box, _, err := newOutbox(cmd.Context())
	if err != nil {
		return err
	}
	items, err := box.List(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEMP ID\tCHAT\tSTATUS\tATTEMPTS\tERROR")
	for _, q := range items {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", q.TempID, q.ChatID, q.Status, q.RetryCount, q.ErrorMessage)
	}
	return w.Flush()
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := openStore(); err != nil {
		return err
	}
	monitor := outbox.NewMonitor(cfg.GatewayURL, cfg.ProbeInterval, nil)
	box, err := outbox.New(ctx, store, outbox.NewHTTPSender(cfg.GatewayURL, cfg.Token, cfg.SendTimeout), monitor, userID,
		outbox.WithBatchSize(cfg.BatchSize),
		outbox.WithMaxAttempts(cfg.MaxAttempts),
		outbox.WithSchedule(cfg.Schedule),
		outbox.WithSendTimeout(cfg.SendTimeout),
	)
	if err != nil {
		return err
	}

	go monitor.Run(ctx)
	log.Info().Str("gateway", cfg.GatewayURL).Msg("Outbox daemon started")
	return box.Run(ctx)
}

func describeTyping(names []string) string {
	switch len(names) {
	case 0:
		return "nobody is typing"
	case 1:
		return names[0] + " is typing"
	default:
		return strings.Join(names, ", ") + " are typing"
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	watcher, err := presence.NewWatcher(cfg.GatewayURL, cfg.Token, watchChat, presence.NewObserver(userID),
		func(names []string) { fmt.Println(describeTyping(names)) })
	if err != nil {
		return err
	}

	go func() {
		var idle *time.Timer
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			watcher.SetTyping(true)
			if idle == nil {
				idle = time.AfterFunc(typingIdle, func() { watcher.SetTyping(false) })
			} else {
				idle.Reset(typingIdle)
			}
		}
	}()

	log.Info().Uint("chat_id", watchChat).Msg("Watching typing indicators")
	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
