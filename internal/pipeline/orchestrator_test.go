package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MimeLyc/reelforge/internal/imagegen"
	"github.com/MimeLyc/reelforge/internal/jobs"
	"github.com/MimeLyc/reelforge/internal/media"
	"github.com/MimeLyc/reelforge/internal/media/mediatest"
	"github.com/MimeLyc/reelforge/internal/niche"
	"github.com/MimeLyc/reelforge/internal/storage"
	"github.com/MimeLyc/reelforge/internal/story"
	"github.com/MimeLyc/reelforge/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	orch   *Orchestrator
	runner *mediatest.Runner
	output string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	root := t.TempDir()
	runner := mediatest.NewRunner()
	composer := media.NewComposer(runner, "ffmpeg", "ffprobe", filepath.Join(root, "work"))

	registry, err := niche.NewDefaultRegistry("horror", "")
	require.NoError(t, err)
	local, err := storage.NewLocal(filepath.Join(root, "output"), "http://localhost:8080")
	require.NoError(t, err)

	orch, err := New(Dependencies{
		Registry:    registry,
		Generator:   story.NewTemplateGenerator(70),
		Synthesizer: tts.NewMockSynthesizer(composer.FFmpeg()),
		Images:      imagegen.NewMockGenerator(composer.FFmpeg()),
		Composer:    composer,
		Storage:     local,
	}, opts...)
	require.NoError(t, err)
	orch.Start()
	t.Cleanup(orch.Stop)
	return &fixture{orch: orch, runner: runner, output: local.OutputDir}
}

func (f *fixture) wait(t *testing.T, id string) *jobs.Job {
	t.Helper()
	var got *jobs.Job
	require.Eventually(t, func() bool {
		j, ok := f.orch.GetJob(id)
		got = j
		return ok && j.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func unsafeScript() *story.Script {
	return &story.Script{
		Title: "The Caretaker",
		Scenes: []story.ScriptScene{
			{Description: "A desk by a window", Narration: "The old caretaker wrote letters every night."},
			{Description: "A sealed envelope", Narration: "The last letter talked about suicide."},
			{Description: "A closed door", Narration: "Nobody opened the door again."},
		},
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Dependencies{})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrConfig))
}

func TestCreateJob_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{name: "empty", req: Request{}, want: "either prompt or story is required"},
		{name: "unknown niche", req: Request{Prompt: "a lighthouse", NicheID: "cooking"}, want: "unknown niche"},
		{name: "unknown type", req: Request{Type: "podcast", Prompt: "x"}, want: "unsupported job type"},
		{name: "banned prompt", req: Request{Prompt: "a story about suicide"}, want: "self-harm"},
		{name: "untitled script", req: Request{Story: &story.Script{Scenes: []story.ScriptScene{{Narration: "one"}}}}, want: "invalid story"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := f.orch.CreateJob(ctx, tt.req)
			require.Error(t, err)
			assert.Nil(t, job)
			assert.True(t, IsErrorType(err, ErrValidation))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.Empty(t, f.orch.ListJobs())
}

func TestCreateJob_LegacyTypeMapsToHorror(t *testing.T) {
	f := newFixture(t)
	job, err := f.orch.CreateJob(context.Background(), Request{Type: "horror_video", Prompt: "an abandoned lighthouse"})
	require.NoError(t, err)
	assert.Equal(t, "horror", job.Niche)
	assert.Equal(t, JobTypeHorrorVideo, job.Type)
}

func TestPipeline_PromptToVideo(t *testing.T) {
	f := newFixture(t)
	job, err := f.orch.CreateJob(context.Background(), Request{Prompt: "an abandoned lighthouse", NicheID: "horror"})
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, job.Status)

	done := f.wait(t, job.ID)
	require.Equal(t, jobs.StatusCompleted, done.Status, done.Error)
	assert.Equal(t, 100, done.Progress)

	var res Result
	require.NoError(t, json.Unmarshal(done.Result, &res))
	assert.True(t, strings.HasPrefix(res.VideoURL, "http://localhost:8080/output/"), res.VideoURL)
	assert.True(t, strings.HasSuffix(res.VideoPath, ".mp4"))
	assert.FileExists(t, res.VideoPath)
	assert.FileExists(t, res.SubtitlePath)
	assert.Equal(t, f.output, filepath.Dir(res.VideoPath))

	require.NotNil(t, res.Story)
	assert.Equal(t, 4, res.Metadata.NumberOfScenes)
	assert.Len(t, res.Assets.SceneImages, 4)
	assert.Equal(t, 1080, res.Metadata.Width)
	assert.Equal(t, 1920, res.Metadata.Height)
	assert.Equal(t, "horror", res.Metadata.Niche)
	assert.NotEmpty(t, res.Description)
	assert.GreaterOrEqual(t, len(res.Hashtags), 3)
	assert.LessOrEqual(t, res.Metadata.DurationSeconds, 70.0)
	assert.LessOrEqual(t, len(res.Hashtags), 10)

	narration := f.runner.Duration(res.Assets.NarrationAudio)
	total := 0.0
	for _, scene := range res.Story.Scenes {
		total += scene.Duration
	}
	assert.InDelta(t, narration, total, 0.011)
	assert.InDelta(t, narration, res.Metadata.DurationSeconds, 0.5)

	srt, err := os.ReadFile(res.SubtitlePath)
	require.NoError(t, err)
	assert.Contains(t, string(srt), "00:00:00,000 --> ")
}

func TestPipeline_ProgressStagesAreMonotonic(t *testing.T) {
	f := newFixture(t)
	job, err := f.orch.CreateJob(context.Background(), Request{Prompt: "a cellar door"})
	require.NoError(t, err)
	f.wait(t, job.ID)

	var stages []string
	last := -1
	for _, ev := range f.orch.Events(0) {
		if ev.JobID != job.ID {
			continue
		}
		assert.GreaterOrEqual(t, ev.Progress, last)
		last = ev.Progress
		stages = append(stages, ev.Stage)
	}
	for _, want := range []string{StageInit, StageStoryReady, StageTTSReady, StageDurationsReady, StageVisualsReady, StageCaptionsReady, StageRenderComplete} {
		assert.Contains(t, stages, want)
	}
	assert.Equal(t, 100, last)
}

func TestPipeline_UnsafeScriptFails(t *testing.T) {
	f := newFixture(t)
	job, err := f.orch.CreateJob(context.Background(), Request{Story: unsafeScript()})
	require.NoError(t, err)

	done := f.wait(t, job.ID)
	assert.Equal(t, jobs.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "[Safety]")
	assert.Contains(t, done.Error, "self-harm")
	assert.Empty(t, done.Result)
	assert.Empty(t, f.runner.Calls(), "nothing is rendered for a rejected story")
}

func TestPipeline_ShortScriptFailsBounds(t *testing.T) {
	f := newFixture(t)
	job, err := f.orch.CreateJob(context.Background(), Request{Story: shortScript()})
	require.NoError(t, err)

	done := f.wait(t, job.ID)
	assert.Equal(t, jobs.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "[StoryBounds]")
}

func TestPipeline_JobsRunInSubmissionOrder(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for _, prompt := range []string{"a cellar", "a well", "a mirror"} {
		job, err := f.orch.CreateJob(context.Background(), Request{Prompt: prompt})
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	for _, id := range ids {
		f.wait(t, id)
	}

	var started []string
	for _, ev := range f.orch.Events(0) {
		if ev.Status == jobs.StatusRunning && ev.Stage == StageInit {
			started = append(started, ev.JobID)
		}
	}
	assert.Equal(t, ids, started)
	assert.Equal(t, 3, f.orch.QueueStats().Completed)
}

func TestPipeline_EncoderFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.FailOn = "+faststart"

	job, err := f.orch.CreateJob(context.Background(), Request{Prompt: "a broken radio"})
	require.NoError(t, err)

	done := f.wait(t, job.ID)
	assert.Equal(t, jobs.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "[Encoder]")
	assert.Contains(t, done.Error, "stage: "+StageRenderComplete)
	assert.Empty(t, done.Result)

	entries, err := os.ReadDir(f.output)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_RenderOverrides(t *testing.T) {
	f := newFixture(t)
	off := false
	job, err := f.orch.CreateJob(context.Background(), Request{
		Prompt:  "a quiet motel",
		Options: &media.RenderOverrides{IncludeCaptions: &off, GlitchTransitions: &off},
	})
	require.NoError(t, err)
	done := f.wait(t, job.ID)
	require.Equal(t, jobs.StatusCompleted, done.Status, done.Error)

	assert.Empty(t, f.runner.CallsContaining("subtitles="))
	assert.Empty(t, f.runner.CallsContaining("rgbtestsrc"))
}

func TestRenderDefaults_AppliedToLaterJobs(t *testing.T) {
	f := newFixture(t)
	opts := f.orch.RenderDefaults()
	opts.Vignette = false
	f.orch.SetRenderDefaults(opts)

	job, err := f.orch.CreateJob(context.Background(), Request{Prompt: "a flooded church"})
	require.NoError(t, err)
	done := f.wait(t, job.ID)
	require.Equal(t, jobs.StatusCompleted, done.Status, done.Error)
	assert.Empty(t, f.runner.CallsContaining("vignette"))
}

type failingGenerator struct{ calls int }

func (g *failingGenerator) Generate(context.Context, story.Request) (*story.Story, error) {
	g.calls++
	return nil, assert.AnError
}

func TestPipeline_GenerationRetriedOnce(t *testing.T) {
	f := newFixture(t)
	gen := &failingGenerator{}
	f.orch.deps.Generator = gen

	job, err := f.orch.CreateJob(context.Background(), Request{Prompt: "a train at midnight"})
	require.NoError(t, err)
	done := f.wait(t, job.ID)

	assert.Equal(t, jobs.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "[Provider]")
	assert.Equal(t, 2, gen.calls)
}

func shortScript() *story.Script {
	return &story.Script{Title: "Short", Scenes: []story.ScriptScene{
		{Narration: "The door opened."}, {Narration: "Nobody was there."}, {Narration: "It closed again."},
	}}
}

// scriptedGenerator hands out drafts in order. A nil draft, or running out
// of drafts, falls through to the template generator.
type scriptedGenerator struct {
	mu     sync.Mutex
	calls  int
	drafts []*story.Script
}

func (g *scriptedGenerator) Generate(ctx context.Context, req story.Request) (*story.Story, error) {
	g.mu.Lock()
	g.calls++
	var draft *story.Script
	if g.calls <= len(g.drafts) {
		draft = g.drafts[g.calls-1]
	}
	g.mu.Unlock()

	if draft == nil {
		return story.NewTemplateGenerator(70).Generate(ctx, req)
	}
	return story.FromScript(*draft, 70)
}

func (g *scriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestPipeline_RejectedStoryRegeneratedOnce(t *testing.T) {
	tests := []struct {
		name   string
		drafts []*story.Script
		status jobs.Status
		errs   []string
	}{
		{
			name:   "unsafe then clean",
			drafts: []*story.Script{unsafeScript(), nil},
			status: jobs.StatusCompleted,
		},
		{
			name:   "short then clean",
			drafts: []*story.Script{shortScript(), nil},
			status: jobs.StatusCompleted,
		},
		{
			name:   "unsafe twice",
			drafts: []*story.Script{unsafeScript(), unsafeScript(), nil},
			status: jobs.StatusFailed,
			errs:   []string{"[Safety]", "self-harm"},
		},
		{
			name:   "short twice",
			drafts: []*story.Script{shortScript(), shortScript(), nil},
			status: jobs.StatusFailed,
			errs:   []string{"[StoryBounds]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			gen := &scriptedGenerator{drafts: tt.drafts}
			f.orch.deps.Generator = gen

			job, err := f.orch.CreateJob(context.Background(), Request{Prompt: "a lighthouse keeper", NicheID: "horror"})
			require.NoError(t, err)
			done := f.wait(t, job.ID)

			require.Equal(t, tt.status, done.Status, done.Error)
			assert.Equal(t, 2, gen.Calls())
			for _, want := range tt.errs {
				assert.Contains(t, done.Error, want)
			}
			if tt.status == jobs.StatusFailed {
				assert.Empty(t, done.Result)
				assert.Empty(t, f.runner.Calls())
			}
		})
	}
}

func TestPipeline_ScriptSkipsGenerator(t *testing.T) {
	for name, script := range map[string]*story.Script{"unsafe": unsafeScript(), "short": shortScript()} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			gen := &scriptedGenerator{}
			f.orch.deps.Generator = gen

			job, err := f.orch.CreateJob(context.Background(), Request{Story: script})
			require.NoError(t, err)
			done := f.wait(t, job.ID)

			assert.Equal(t, jobs.StatusFailed, done.Status)
			assert.Zero(t, gen.Calls(), "caller scripts are checked once and never regenerated")
		})
	}
}

func TestBoundsFor_WidensToProfileBand(t *testing.T) {
	o := &Orchestrator{bounds: story.Bounds{MinWords: 150, MaxWords: 170, MinScenes: 3, MaxScenes: 6}}
	p := niche.Profile{}
	p.StoryStyle.TargetWordCount.Min = 140
	p.StoryStyle.TargetWordCount.Max = 185

	b := o.boundsFor(p)
	assert.Equal(t, 140, b.MinWords)
	assert.Equal(t, 185, b.MaxWords)
	assert.Equal(t, 6, b.MaxScenes)
}

// archive is a jobs.Store without backend filtering.
type archive struct {
	mu   sync.Mutex
	jobs map[string]*jobs.Job
}

func (a *archive) LoadJobs(context.Context) ([]*jobs.Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ret := make([]*jobs.Job, 0, len(a.jobs))
	for _, j := range a.jobs {
		cp := *j
		ret = append(ret, &cp)
	}
	return ret, nil
}

func (a *archive) UpsertJob(_ context.Context, job *jobs.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *job
	a.jobs[job.ID] = &cp
	return nil
}

func (a *archive) DeleteJob(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.jobs, id)
	return nil
}

func (a *archive) Close() error { return nil }

func TestHistory_FiltersArchivedJobs(t *testing.T) {
	none := newFixture(t)
	empty, err := none.orch.History(context.Background(), jobs.HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	store := &archive{jobs: make(map[string]*jobs.Job)}
	f := newFixture(t, WithStore(store))
	ctx := context.Background()

	bad, err := f.orch.CreateJob(ctx, Request{Story: unsafeScript()})
	require.NoError(t, err)
	good, err := f.orch.CreateJob(ctx, Request{Prompt: "an abandoned lighthouse"})
	require.NoError(t, err)
	f.wait(t, bad.ID)
	f.wait(t, good.ID)

	require.Eventually(t, func() bool {
		all, err := f.orch.History(ctx, jobs.HistoryQuery{})
		return err == nil && len(all) == 2 && all[0].Status.Terminal() && all[1].Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	failed, err := f.orch.History(ctx, jobs.HistoryQuery{Status: jobs.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, bad.ID, failed[0].ID)

	latest, err := f.orch.History(ctx, jobs.HistoryQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, good.ID, latest[0].ID)
}
