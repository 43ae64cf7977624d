package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chadiek/shorecall/internal/audio"
	"github.com/chadiek/shorecall/internal/call"
	"github.com/chadiek/shorecall/internal/config"
	"github.com/chadiek/shorecall/internal/dialogue"
	"github.com/chadiek/shorecall/internal/events"
	"github.com/chadiek/shorecall/internal/httpserver"
	"github.com/chadiek/shorecall/internal/llm"
	"github.com/chadiek/shorecall/internal/outcome"
	"github.com/chadiek/shorecall/internal/session"
	"github.com/chadiek/shorecall/internal/storage"
	"github.com/chadiek/shorecall/internal/telephony"
	"github.com/chadiek/shorecall/internal/tts"
)

// External calls stay short so the phone line never waits on a hung request.
const (
	classifierTimeout = 4 * time.Second
	generatorTimeout  = 4 * time.Second
	ttsTimeout        = 5 * time.Second
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	chat := llm.NewChatClient(cfg.ChatBaseURL, cfg.ChatAPIKey, cfg.ChatModelID)
	var completer dialogue.Completer
	if cfg.FallbackKey != "" && cfg.FallbackURL != "" {
		completer = llm.NewCompletionClient(cfg.FallbackURL, cfg.FallbackKey, cfg.FallbackModel)
	}

	synth := tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	cache := audio.NewCache(synth, ttsTimeout, logger)

	sessions := session.NewStore()
	bus := events.NewBus()
	classifier := outcome.NewClassifier(chat, classifierTimeout, logger)
	generator := dialogue.NewGenerator(chat, completer, generatorTimeout, logger)

	var records call.RecordStore
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		store, err := storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseTable)
		if err != nil {
			logger.WithField("error", err).Fatal("failed to init record store")
		}
		records = store
	}

	coordinator := call.NewCoordinator(sessions, classifier, generator, cache, bus, records, logger)

	var dialer httpserver.Dialer
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		dialer = telephony.New(telephony.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
			BaseURL:    cfg.BaseURL,
		}, logger)
	}

	e := httpserver.New(httpserver.Deps{
		Coordinator:     coordinator,
		Audio:           cache,
		Bus:             bus,
		Dialer:          dialer,
		TwilioAuthToken: cfg.TwilioAuthToken,
		Log:             logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddress).Info("server listening")
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.WithField("error", err).Fatal("server error")
		}
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithField("error", err).Warn("graceful shutdown failed")
		_ = server.Close()
	}
}
