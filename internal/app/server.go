package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tush00nka/bbbab_chatsync/docs"
	"tush00nka/bbbab_chatsync/internal/handler"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Handlers обработчики сервера; Media может отсутствовать
type Handlers struct {
	Gateway *handler.GatewayHandler
	Chat    *handler.ChatHandler
	Media   *handler.MediaHandler
	Typing  *handler.TypingHandler
	Health  *handler.HealthHandler
}

type Server struct {
	router         *mux.Router
	allowedOrigins []string
}

func NewServer(h Handlers, identity handler.Authenticator, limiter handler.RateLimiter, allowedOrigins []string) *Server {
	router := mux.NewRouter()

	router.Use(
		hlog.NewHandler(log.Logger),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", duration).
				Msg("Request")
		}),
	)

	// Открытые маршруты
	if h.Health != nil {
		h.Health.RegisterRoutes(router)
	}
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Настройка Swagger
	router.HandleFunc("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(docs.SwaggerJSON)
	})
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // Важно: относительный путь
	))

	// Маршруты с авторизацией и лимитом
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(handler.Authenticate(identity), handler.RateLimit(limiter))

	if h.Gateway != nil {
		h.Gateway.RegisterRoutes(api)
	}
	if h.Chat != nil {
		h.Chat.RegisterRoutes(api)
	}
	if h.Media != nil {
		h.Media.RegisterRoutes(api)
	}
	if h.Typing != nil {
		h.Typing.RegisterRoutes(api)
	}

	return &Server{router: router, allowedOrigins: allowedOrigins}
}

// Handler роутер с CORS и восстановлением после паники
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.allowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Bearer", "X-Requested-With"}),
		handlers.ExposedHeaders([]string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"}),
	)

	return handlers.RecoveryHandler(
		handlers.PrintRecoveryStack(true),
		handlers.RecoveryLogger(recoveryLogger{}),
	)(cors(s.router))
}

func (s *Server) Run(ctx context.Context, port string) error {
	// WriteTimeout не задан: сокеты набора живут долго
	srv := &http.Server{
		Handler:     s.Handler(),
		Addr:        ":" + port,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Msg("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...any) {
	log.Error().Interface("panic", v).Msg("Recovered from panic")
}
