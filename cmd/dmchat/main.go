package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dmchat/internal/app/commands"
	chatapp "dmchat/internal/app/handlers/chat"
	"dmchat/internal/app/middleware"
	"dmchat/internal/app/queries"
	"dmchat/internal/app/services/attachments"
	"dmchat/internal/app/services/auth"
	"dmchat/internal/app/services/users"
	"dmchat/internal/infra/config"
	"dmchat/internal/infra/fanout"
	ginserver "dmchat/internal/infra/http/gin"
	"dmchat/internal/infra/obs"
	"dmchat/internal/infra/security"
	"dmchat/internal/infra/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV"), "info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("dmchat stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("dmchat stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close(logger)

	objects, err := openObjectStorage(cfg, logger)
	if err != nil {
		return err
	}

	hub := fanout.NewHub(cfg.WSSendBuffer, logger.With("component", "fanout"))
	kafkaBus, err := openBroker(cfg, hub, logger)
	if err != nil {
		return err
	}
	defer kafkaBus.close(logger)

	tokens := security.JWTManager{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL, Issuer: "dmchat"}
	gate := &auth.Service{Verifier: tokens, Logger: logger}
	files := &attachments.Service{
		Storage:        objects.storage,
		Messages:       store.messages,
		Logger:         logger.With("component", "attachments"),
		DestroyTimeout: cfg.AttachmentDestroyTimeout,
	}

	var publisher chatapp.Publisher = hub
	if kafkaBus.relay != nil {
		publisher = kafkaBus.relay
	}
	chatLogger := logger.With("component", "chat")
	module := chatapp.Module{
		Directory: &chatapp.Directory{
			Conversations: store.conversations,
			Profiles:      store.users,
			IDs:           security.ConversationIDGenerator{},
			Logger:        chatLogger,
		},
		Store: &chatapp.MessageStore{
			Conversations: store.conversations,
			Messages:      store.messages,
			Profiles:      store.users,
		},
		Attachments: files,
		Notifier:    &chatapp.Notifier{Publisher: publisher, Logger: chatLogger},
		Logger:      chatLogger,
	}
	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	module.Register(cmdBus, queryBus)

	validator := middleware.NewStructValidator()
	commandBus := middleware.ChainCommands(cmdBus, middleware.Logging(logger), middleware.Validation(validator))
	queryBusWithMiddleware := middleware.ChainQueries(queryBus, middleware.QueryLogging(logger), middleware.QueryValidation(validator))

	purge := &users.BackgroundPurge{Purger: files, Logger: logger.With("component", "purge")}
	var events users.AccountEvents = purge
	if kafkaBus.accountEvents != nil {
		events = kafkaBus.accountEvents
	}
	userSvc := &users.Service{
		Users:     store.users,
		Passwords: security.BcryptHasher{},
		Tokens:    tokens,
		Events:    events,
		Logger:    logger.With("component", "users"),
	}

	socket := &ws.Server{
		Auth:        gate,
		Hub:         hub,
		Logger:      logger.With("component", "ws"),
		IdleTimeout: cfg.WSIdleTimeout,
	}
	if kafkaBus.relay != nil {
		socket.Publisher = kafkaBus.relay
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: func(ctx context.Context) error {
			return errors.Join(store.ping(ctx), objects.ping(ctx))
		},
	}, ginserver.Handlers{
		Chat: ginserver.ChatHandler{
			Commands:       commandBus,
			Queries:        queryBusWithMiddleware,
			MaxUploadBytes: cfg.MaxUploadBytes,
			Logger:         chatLogger,
		},
		Users:          ginserver.UserHandler{Service: userSvc, Logger: logger},
		Socket:         socket,
		AuthMiddleware: ginserver.AuthMiddleware{Gate: gate, Logger: logger}.Required,
	})

	kafkaBus.start(ctx, files, store.inbox, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "s3", cfg.S3Enabled(), "kafka", cfg.KafkaEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	hub.Close()
	if err := socket.Wait(shutdownCtx); err != nil {
		logger.Warn("socket connections still open at shutdown", "error", err)
	}
	kafkaBus.wait()
	waitOrTimeout(shutdownCtx, purge.Wait, logger)
	return nil
}

func waitOrTimeout(ctx context.Context, wait func(), logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("background purges still running at shutdown")
	}
}
