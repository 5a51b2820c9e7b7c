package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/voiceapi/internal/artifact"
	"github.com/example/voiceapi/internal/config"
	"github.com/example/voiceapi/internal/profile"
	"github.com/example/voiceapi/internal/transcribe"
	"github.com/example/voiceapi/internal/tts"
	"github.com/example/voiceapi/internal/vc"
	"github.com/example/voiceapi/internal/voice"
	"github.com/redis/go-redis/v9"
)

// models holds the configured backends. A nil field is a disabled backend.
type models struct {
	tts         tts.Model
	vc          vc.Model
	transcriber transcribe.Model
}

func buildModels(cfg config.Config) (models, error) {
	var (
		m   models
		err error
	)
	if m.tts, err = tts.NewFromConfig(cfg.TTS, os.Stderr); err != nil {
		return models{}, err
	}
	if m.vc, err = vc.NewFromConfig(cfg.VC, os.Stderr); err != nil {
		return models{}, err
	}
	if m.transcriber, err = transcribe.NewFromConfig(cfg.Transcribe); err != nil {
		return models{}, err
	}
	return m, nil
}

// openProfileStore opens the configured store. The returned close function is
// never nil.
func openProfileStore(ctx context.Context, cfg config.Config) (profile.Store, func() error, error) {
	switch cfg.Profiles.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Profiles.RedisAddr})
		store := profile.NewRedisStore(client, profile.WithPrefix(cfg.Profiles.RedisPrefix))
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Profiles.RedisAddr, err)
		}
		if err := store.Seed(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("seed redis profiles: %w", err)
		}
		return store, client.Close, nil
	default:
		store, err := profile.OpenFile(cfg.Paths.ProfilesFile)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
}

// app is a voice service with the stores it owns.
type app struct {
	svc       *voice.Service
	artifacts *artifact.Dir
	closers   []func() error
}

func buildApp(ctx context.Context, cfg config.Config, observe voice.InferenceObserver) (*app, error) {
	m, err := buildModels(cfg)
	if err != nil {
		return nil, err
	}
	artifacts, err := artifact.Open(cfg.Paths.TempDir)
	if err != nil {
		return nil, err
	}
	profiles, closeProfiles, err := openProfileStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := voice.New(voice.Options{
		TTS:         m.tts,
		VC:          m.vc,
		Transcriber: m.transcriber,
		Profiles:    profiles,
		Artifacts:   artifacts,
		Logger:      slog.Default(),
		Observe:     observe,
		Workers:     cfg.Server.Workers,
	})
	if err != nil {
		_ = closeProfiles()
		return nil, err
	}

	return &app{svc: svc, artifacts: artifacts, closers: []func() error{closeProfiles}}, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
