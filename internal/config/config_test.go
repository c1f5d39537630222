package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", "")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "template", cfg.Story.Provider)
	assert.Equal(t, "horror", cfg.Story.DefaultNiche)
	assert.Equal(t, 6, cfg.Story.MaxScenes)
	assert.Equal(t, 70, cfg.Story.MaxDurationSeconds)
	assert.Equal(t, 140, cfg.Story.MinWords)
	assert.Equal(t, 185, cfg.Story.MaxWords)
	assert.Equal(t, 1080, cfg.Render.Width)
	assert.Equal(t, 1920, cfg.Render.Height)
	assert.Equal(t, 30, cfg.Render.FPS)
	assert.True(t, cfg.Render.GlitchTransitions)
	assert.InDelta(t, 0.18, cfg.Render.MusicVolume, 1e-9)
	assert.Equal(t, "mock", cfg.TTS.Provider)
	assert.Equal(t, "mock", cfg.Image.Provider)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "0 * * * *", cfg.Janitor.CronExpr)
}

func TestNewFromEnv_RenderToggles(t *testing.T) {
	t.Setenv("RENDER_GLITCH_TRANSITIONS", "false")
	t.Setenv("RENDER_INCLUDE_MUSIC", "0")
	t.Setenv("RENDER_FPS", "24")
	t.Setenv("JANITOR_CRON", "")

	cfg, err := NewFromEnv(WithStorageDirs("/tmp/out", "/tmp/assets"))
	require.NoError(t, err)

	assert.False(t, cfg.Render.GlitchTransitions)
	assert.False(t, cfg.Render.IncludeMusic)
	assert.Equal(t, 24, cfg.Render.FPS)
	assert.Equal(t, "", cfg.Janitor.CronExpr)
	assert.Equal(t, "/tmp/out", cfg.Storage.OutputDir)
	assert.Equal(t, "/tmp/assets", cfg.Storage.AssetsDir)
}

func TestNewFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "openai story without key", env: map[string]string{"STORY_PROVIDER": "openai", "LLM_API_KEY": ""}},
		{name: "gemini story without key", env: map[string]string{"STORY_PROVIDER": "gemini", "GEMINI_API_KEY": ""}},
		{name: "unknown story provider", env: map[string]string{"STORY_PROVIDER": "markov"}},
		{name: "openai tts without key", env: map[string]string{"TTS_PROVIDER": "openai", "OPENAI_API_KEY": ""}},
		{name: "unknown image provider", env: map[string]string{"IMAGE_PROVIDER": "crayons"}},
		{name: "too many scenes", env: map[string]string{"MAX_SCENES": "9"}},
		{name: "too short max duration", env: map[string]string{"MAX_VIDEO_DURATION_SECONDS": "30"}},
		{name: "inverted word band", env: map[string]string{"MIN_STORY_WORD_COUNT": "200", "MAX_STORY_WORD_COUNT": "100"}},
		{name: "loud music", env: map[string]string{"RENDER_MUSIC_VOLUME": "3"}},
		{name: "bad cron", env: map[string]string{"JANITOR_CRON": "every hour"}},
		{name: "postgres without url", env: map[string]string{"JOB_STORE": "postgres", "JOB_DATABASE_URL": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewFromEnv()
			require.Error(t, err)
		})
	}
}
