package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"lectureflow/internal/app"
	"lectureflow/internal/config"
	"lectureflow/internal/media"
	"lectureflow/internal/server"
	"lectureflow/internal/util"
	"lectureflow/pkg/ai"
	"lectureflow/pkg/storage"
	"lectureflow/pkg/store"
	"lectureflow/pkg/trigger"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	dispatcher, err := trigger.NewRedisDispatcher(trigger.RedisDispatcherConfig{
		Addr:            cfg.RedisAddr,
		Password:        cfg.RedisPassword,
		RecordingStream: cfg.RecordingStream,
		JobStream:       cfg.JobStream,
		Group:           cfg.TriggerGroup,
		Concurrency:     cfg.TriggerConcurrency,
	})
	if err != nil {
		log.Fatalf("failed to init trigger dispatcher: %v", err)
	}

	ffmpeg := media.NewFFmpeg(cfg.FFmpegPath)

	appCore, err := app.New(app.Config{
		Store:          dataStore,
		Objects:        objects,
		Dispatcher:     dispatcher,
		Transcriber:    ai.NewOpenAITranscriber(cfg.AIBaseURL, cfg.AIAPIKey, cfg.TranscribeModel),
		Generator:      ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.GenerateModel),
		Converter:      ffmpeg,
		Segmenter:      ffmpeg,
		SegmentSeconds: cfg.SegmentSeconds,
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	dispatcher.Start(context.Background(), appCore.Handlers())

	httpServer, err := server.New(server.Config{
		App:         appCore,
		TokenSecret: cfg.AuthTokenSecret,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logger.Info("pipeline service listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
