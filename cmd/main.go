package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MimeLyc/reelforge/internal/config"
	"github.com/MimeLyc/reelforge/internal/httpapi"
	"github.com/MimeLyc/reelforge/internal/imagegen"
	"github.com/MimeLyc/reelforge/internal/janitor"
	"github.com/MimeLyc/reelforge/internal/llm"
	"github.com/MimeLyc/reelforge/internal/media"
	"github.com/MimeLyc/reelforge/internal/niche"
	"github.com/MimeLyc/reelforge/internal/persistence"
	"github.com/MimeLyc/reelforge/internal/pipeline"
	"github.com/MimeLyc/reelforge/internal/storage"
	"github.com/MimeLyc/reelforge/internal/story"
	"github.com/MimeLyc/reelforge/internal/tts"
	"github.com/MimeLyc/reelforge/pkg/log"
	"github.com/robfig/cron/v3"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type worker interface {
	Start()
	Stop()
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

type scheduleFunc func(ctx context.Context) error

func (f scheduleFunc) Schedule(ctx context.Context) error { return f(ctx) }

func main() {
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	if saved, err := config.LoadRuntimeSettingsFile(cfg.Server.SettingsFile); err == nil {
		config.WithRuntimeSettings(saved)(cfg)
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn("Ignoring runtime settings file %s: %v", cfg.Server.SettingsFile, err)
	}

	closeLog, err := initLogging(cfg.Log)
	if err != nil {
		log.Fatal("Failed to init logging: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal("%v", err)
	}
}

func initLogging(cfg config.LogConfig) (func(), error) {
	level := log.ParseLevel(cfg.Level)
	if cfg.File == "" {
		log.InitLogger(level)
		return func() {}, nil
	}
	fl, err := log.NewFileLogger(cfg.File, level)
	if err != nil {
		return nil, err
	}
	log.SetLogger(fl.Logger)
	return func() { _ = fl.Close() }, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	registry, err := niche.NewDefaultRegistry(cfg.Story.DefaultNiche, cfg.Story.NicheProfilesFile)
	if err != nil {
		return fmt.Errorf("load niche profiles: %w", err)
	}

	composer := media.NewComposer(media.NewExecRunner(), cfg.Render.FFmpegPath, cfg.Render.FFprobePath, cfg.Storage.AssetsDir)
	if !media.ToolsAvailable(cfg.Render.FFmpegPath, cfg.Render.FFprobePath) {
		log.Warn("ffmpeg/ffprobe not found; jobs will fail at the encoder stages")
	}

	generator, closeGen, err := newStoryGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGen()
	synth, err := newSynthesizer(cfg, composer)
	if err != nil {
		return err
	}
	images, err := newImageGenerator(cfg, composer)
	if err != nil {
		return err
	}
	local, err := storage.NewLocal(cfg.Storage.OutputDir, cfg.Storage.BaseURL)
	if err != nil {
		return fmt.Errorf("prepare output dir: %w", err)
	}

	store, err := persistence.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	opts := []pipeline.Option{
		pipeline.WithMaxDuration(float64(cfg.Story.MaxDurationSeconds)),
		pipeline.WithBounds(story.Bounds{
			MinWords:  cfg.Story.MinWords,
			MaxWords:  cfg.Story.MaxWords,
			MinScenes: 3,
			MaxScenes: cfg.Story.MaxScenes,
		}),
		pipeline.WithRenderDefaults(renderDefaults(cfg.Render)),
		pipeline.WithDefaultVoice(cfg.TTS.VoiceID),
	}
	if store != nil {
		opts = append(opts, pipeline.WithStore(store))
	}
	orch, err := pipeline.New(pipeline.Dependencies{
		Registry:    registry,
		Generator:   generator,
		Synthesizer: synth,
		Images:      images,
		Composer:    composer,
		Storage:     local,
	}, opts...)
	if err != nil {
		return err
	}

	cronEngine := cron.New()
	var janitorOpts []janitor.Option
	if store != nil {
		janitorOpts = append(janitorOpts, janitor.WithHistory(store))
	}
	sweeper := janitor.New(
		filepath.Join(cfg.Storage.AssetsDir, "jobs"),
		time.Duration(cfg.Janitor.RetentionHours)*time.Hour,
		orch,
		cronEngine,
		janitorOpts...,
	)

	settingsStore, err := config.NewRuntimeSettingsStore(cfg.Server.SettingsFile, cfg.RuntimeSettings())
	if err != nil {
		return fmt.Errorf("runtime settings: %w", err)
	}
	apply := func(next config.RuntimeSettings) error {
		if err := registry.SetDefault(next.DefaultNiche); err != nil {
			return err
		}
		config.WithRuntimeSettings(next)(cfg)
		orch.SetRenderDefaults(renderDefaults(cfg.Render))
		return sweeper.Reschedule(next.JanitorCron)
	}

	server := httpapi.NewServer(orch, registry,
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(apply),
		httpapi.WithOutputDir(local.OutputDir),
		httpapi.WithVersion(cfg.Server.Version),
		httpapi.WithToolCheck(func() bool {
			return media.ToolsAvailable(cfg.Render.FFmpegPath, cfg.Render.FFprobePath)
		}),
		httpapi.WithCleanupSchedule(sweeper.NextRun),
	)

	schedule := scheduleFunc(func(ctx context.Context) error {
		return sweeper.Schedule(ctx, cfg.Janitor.CronExpr)
	})
	return runWithComponents(ctx, cfg, schedule, cronEngine, orch, server)
}

func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, engine cronEngine, w worker, srv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	engine.Start()
	defer engine.Stop()

	w.Start()
	defer w.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func renderDefaults(r config.RenderConfig) media.RenderOptions {
	return media.RenderOptions{
		Width:             r.Width,
		Height:            r.Height,
		FPS:               r.FPS,
		CRF:               r.CRF,
		Preset:            r.Preset,
		IncludeCaptions:   r.IncludeCaptions,
		IncludeMusic:      r.IncludeMusic,
		DarkGrade:         r.DarkGrade,
		Vignette:          r.Vignette,
		GlitchTransitions: r.GlitchTransitions,
		MusicVolume:       r.MusicVolume,
		NarrationVolume:   r.NarrationVolume,
	}
}

func newStoryGenerator(ctx context.Context, cfg *config.Config) (story.Generator, func(), error) {
	maxSeconds := float64(cfg.Story.MaxDurationSeconds)
	switch cfg.Story.Provider {
	case "openai":
		client, err := llm.NewClient(&llm.Config{
			APIKey:      cfg.LLM.APIKey,
			APIURL:      cfg.LLM.APIURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			SiteURL:     cfg.LLM.SiteURL,
			AppName:     cfg.LLM.AppName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create LLM client: %w", err)
		}
		return llm.NewChatStoryGenerator(client, maxSeconds), func() {}, nil
	case "gemini":
		gen, err := llm.NewGeminiStoryGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.LLM.Temperature, maxSeconds)
		if err != nil {
			return nil, nil, err
		}
		return gen, func() { _ = gen.Close() }, nil
	default:
		return story.NewTemplateGenerator(maxSeconds), func() {}, nil
	}
}

func newSynthesizer(cfg *config.Config, composer *media.Composer) (tts.Synthesizer, error) {
	switch cfg.TTS.Provider {
	case "openai":
		return tts.NewOpenAISynthesizer(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.TTSModel, providerTimeout(cfg))
	default:
		return tts.NewMockSynthesizer(composer.FFmpeg()), nil
	}
}

func newImageGenerator(cfg *config.Config, composer *media.Composer) (imagegen.Generator, error) {
	switch cfg.Image.Provider {
	case "openai":
		return imagegen.NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ImageModel, cfg.OpenAI.ImageQuality, providerTimeout(cfg))
	case "pollinations":
		return imagegen.NewPollinationsGenerator(cfg.Image.PollinationsURL, providerTimeout(cfg)), nil
	default:
		return imagegen.NewMockGenerator(composer.FFmpeg()), nil
	}
}

func providerTimeout(cfg *config.Config) time.Duration {
	if cfg.LLM.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(cfg.LLM.Timeout) * time.Second
}
