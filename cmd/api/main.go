package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/internal/config"
	"github.com/zhouzirui/nova-companion/internal/handler"
	"github.com/zhouzirui/nova-companion/internal/model/persona"
	"github.com/zhouzirui/nova-companion/internal/service/ai"
	"github.com/zhouzirui/nova-companion/internal/service/chat"
	"github.com/zhouzirui/nova-companion/internal/service/speech"
	"github.com/zhouzirui/nova-companion/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	log, closer, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		logrus.Fatalf("failed to initialize logger: %v", err)
	}
	defer closer.Close()

	if envErr != nil {
		log.WithError(envErr).Info("no .env file loaded, using system environment only")
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	active, ok := persona.Resolve(personaStore, cfg.AI.PersonaID)
	if !ok {
		log.Fatal("no persona available")
	}

	var chatModel model.BaseChatModel
	if cfg.AI.Enabled() {
		arkModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.WithError(err).Warn("failed to initialize Ark chat model, replies will use fallback templates")
		} else {
			chatModel = arkModel
			log.WithField("model", cfg.AI.Model).Info("Ark chat model initialized")
		}
	} else {
		log.Info("Ark credentials not configured, replies will use fallback templates")
	}

	aiService, err := ai.NewService(ctx, chatModel, ai.Options{
		Persona:      active,
		HistoryLimit: cfg.AI.HistoryLimit,
		Logger:       log,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize reply service")
	}

	dialogue := ai.NewDialogue(aiService, chat.NewService(), cfg.AI.HistoryLimit, log)

	var primary speech.Transcriber
	if cfg.Speech.Enabled {
		asr, err := speech.NewVolcengineTranscriber(speech.VolcengineConfig{
			AppID:       cfg.Speech.AppID,
			AccessToken: cfg.Speech.AccessToken,
			ResourceID:  cfg.Speech.ResourceID,
			Endpoint:    cfg.Speech.Endpoint,
			Language:    cfg.Speech.Language,
			Timeout:     cfg.Speech.Timeout,
		}, log)
		if err != nil {
			log.WithError(err).Warn("failed to initialize speech recognition, voice messages will be described instead")
		} else {
			primary = asr
			log.Info("speech recognition initialized")
		}
	} else {
		log.Info("speech credentials not configured, voice messages will be described instead")
	}

	router := handler.NewRouter(handler.Deps{
		Personas:    personaStore,
		Replier:     dialogue,
		Transcriber: speech.NewService(primary, log),
		Origins:     cfg.Server.FrontendOrigins,
		Logger:      log,
	})

	startServer(ctx, log, cfg.Server, router)
}

func startServer(ctx context.Context, log logrus.FieldLogger, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.WithField("addr", serverCfg.Addr).Info("companion API listening")
	if err := runServer(ctx, srv); err != nil {
		log.WithError(err).Fatal("server error")
	}
	log.Info("companion API stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
