package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/reelforge/internal/imagegen"
	"github.com/MimeLyc/reelforge/internal/jobs"
	"github.com/MimeLyc/reelforge/internal/media"
	"github.com/MimeLyc/reelforge/internal/niche"
	"github.com/MimeLyc/reelforge/internal/safety"
	"github.com/MimeLyc/reelforge/internal/storage"
	"github.com/MimeLyc/reelforge/internal/story"
	"github.com/MimeLyc/reelforge/internal/subtitle"
	"github.com/MimeLyc/reelforge/internal/timing"
	"github.com/MimeLyc/reelforge/internal/tts"
	"github.com/MimeLyc/reelforge/pkg/log"
)

// Stage names reported with progress.
const (
	StageInit            = "INIT"
	StageStoryReady      = "STORY_READY"
	StageTTSReady        = "TTS_READY"
	StageDurationsReady  = "DURATIONS_READY"
	StageVisuals         = "VISUALS"
	StageVisualsReady    = "VISUALS_READY"
	StageCaptionsReady   = "CAPTIONS_READY"
	StageRenderComplete  = "RENDER_COMPLETE"
	StagePublish         = "PUBLISH"
	progressStoryReady   = 20
	progressTTSReady     = 35
	progressDurations    = 45
	progressVisualsReady = 55
	progressCaptions     = 65
	progressRendered     = 95
)

// Dependencies are the collaborators one orchestrator drives.
type Dependencies struct {
	Registry    *niche.Registry
	Generator   story.Generator
	Filter      *safety.Filter
	Synthesizer tts.Synthesizer
	Images      imagegen.Generator
	Composer    *media.Composer
	Storage     storage.Persister
	Captions    subtitle.Writer
}

func (d Dependencies) validate() error {
	switch {
	case d.Registry == nil:
		return fmt.Errorf("niche registry is required")
	case d.Synthesizer == nil:
		return fmt.Errorf("narration synthesizer is required")
	case d.Images == nil:
		return fmt.Errorf("image generator is required")
	case d.Composer == nil:
		return fmt.Errorf("render composer is required")
	case d.Storage == nil:
		return fmt.Errorf("output storage is required")
	}
	return nil
}

type Option func(*Orchestrator)

// WithMaxDuration caps the estimated story duration in seconds.
func WithMaxDuration(seconds float64) Option {
	return func(o *Orchestrator) {
		if seconds > 0 {
			o.maxSeconds = seconds
		}
	}
}

// WithBounds sets the configured story limits. Profile word bands widen
// them.
func WithBounds(b story.Bounds) Option {
	return func(o *Orchestrator) {
		o.bounds = b
	}
}

// WithRenderDefaults sets the encoder settings jobs start from.
func WithRenderDefaults(opts media.RenderOptions) Option {
	return func(o *Orchestrator) {
		o.render = opts
	}
}

// WithDefaultVoice is used for profiles that name no voice.
func WithDefaultVoice(voiceID string) Option {
	return func(o *Orchestrator) {
		o.defaultVoice = voiceID
	}
}

// WithStore archives job records.
func WithStore(store jobs.Store) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// Orchestrator owns the job queue and runs each job through the stages.
type Orchestrator struct {
	deps       Dependencies
	queue      *jobs.Queue
	store      jobs.Store
	maxSeconds float64
	bounds     story.Bounds

	defaultVoice string

	mu     sync.RWMutex
	render media.RenderOptions
}

func New(deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, NewErrorWithCause(ErrConfig, "invalid pipeline dependencies", err)
	}
	if deps.Filter == nil {
		deps.Filter = safety.NewFilter()
	}
	if deps.Captions == nil {
		deps.Captions = subtitle.NewWriter()
	}
	o := &Orchestrator{
		deps:       deps,
		maxSeconds: 70,
		bounds:     story.Bounds{MinWords: 140, MaxWords: 185, MinScenes: 3, MaxScenes: 6},
		render: media.RenderOptions{
			Width: 1080, Height: 1920, FPS: 30, CRF: 20, Preset: "medium",
			IncludeCaptions: true, IncludeMusic: true, DarkGrade: true, Vignette: true, GlitchTransitions: true,
			MusicVolume: 0.18, NarrationVolume: 1,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	var qopts []jobs.QueueOption
	if o.store != nil {
		qopts = append(qopts, jobs.WithStore(o.store))
	}
	o.queue = jobs.NewQueue(qopts...)
	return o, nil
}

func (o *Orchestrator) Start() {
	o.queue.Start(o.execute)
	log.Info("Pipeline worker started")
}

func (o *Orchestrator) Stop() {
	o.queue.Stop()
	log.Info("Pipeline worker stopped")
}

// CreateJob validates req and queues it. Invalid requests never reach
// the queue.
func (o *Orchestrator) CreateJob(ctx context.Context, req Request) (*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req = req.normalize()
	profile, err := o.validate(req)
	if err != nil {
		return nil, err
	}
	req.NicheID = profile.ID

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, NewErrorWithCause(ErrValidation, "request cannot be encoded", err)
	}
	return o.queue.Enqueue(jobs.EnqueueRequest{Type: req.Type, Niche: profile.ID, Payload: payload}), nil
}

func (o *Orchestrator) validate(req Request) (niche.Profile, error) {
	if !supportedType(req.Type) {
		return niche.Profile{}, NewError(ErrValidation, fmt.Sprintf("unsupported job type %q", req.Type))
	}
	if req.Prompt == "" && req.Story == nil {
		return niche.Profile{}, NewError(ErrValidation, "either prompt or story is required")
	}
	profile, err := o.deps.Registry.Resolve(req.NicheID)
	if err != nil {
		return niche.Profile{}, NewErrorWithCause(ErrValidation, "unknown niche", err).WithContext("niche", req.NicheID)
	}
	if req.Story != nil {
		if _, err := story.FromScript(*req.Story, o.maxSeconds); err != nil {
			return niche.Profile{}, NewErrorWithCause(ErrValidation, "invalid story", err)
		}
	} else if o.deps.Generator == nil {
		return niche.Profile{}, NewError(ErrValidation, "no story generator configured, submit a story")
	}
	if req.Prompt != "" {
		if _, flags := o.deps.Filter.CheckText(req.Prompt); len(flags) > 0 {
			return niche.Profile{}, NewError(ErrValidation, "prompt rejected by content filter").
				WithContext("flags", strings.Join(flags, ","))
		}
	}
	return profile, nil
}

func (o *Orchestrator) GetJob(id string) (*jobs.Job, bool) {
	return o.queue.Get(id)
}

func (o *Orchestrator) ListJobs() []*jobs.Job {
	return o.queue.List()
}

func (o *Orchestrator) QueueStats() jobs.Stats {
	return o.queue.Stats()
}

// RunningJobs returns the IDs of jobs in progress.
func (o *Orchestrator) RunningJobs() []string {
	return o.queue.Running()
}

// Events returns job events newer than after.
func (o *Orchestrator) Events(after uint64) []jobs.Event {
	return o.queue.Events(after)
}

// historyQuerier is implemented by stores that filter in their backend.
type historyQuerier interface {
	QueryJobs(ctx context.Context, q jobs.HistoryQuery) ([]*jobs.Job, error)
}

// History returns archived jobs matching q, newest first. It is empty
// without a store.
func (o *Orchestrator) History(ctx context.Context, q jobs.HistoryQuery) ([]*jobs.Job, error) {
	if o.store == nil {
		return nil, nil
	}
	if querier, ok := o.store.(historyQuerier); ok {
		found, err := querier.QueryJobs(ctx, q)
		if err != nil {
			return nil, NewErrorWithCause(ErrPersistence, "query job history", err)
		}
		return found, nil
	}
	loaded, err := o.store.LoadJobs(ctx)
	if err != nil {
		return nil, NewErrorWithCause(ErrPersistence, "load job history", err)
	}
	return q.Apply(loaded), nil
}

// JobDir is the per-job scratch directory.
func (o *Orchestrator) JobDir(jobID string) string {
	return o.deps.Composer.JobDir(jobID)
}

func (o *Orchestrator) RenderDefaults() media.RenderOptions {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.render
}

// SetRenderDefaults replaces the defaults for jobs that start afterwards.
func (o *Orchestrator) SetRenderDefaults(opts media.RenderOptions) {
	o.mu.Lock()
	o.render = opts
	o.mu.Unlock()
}

func (o *Orchestrator) execute(ctx context.Context, job *jobs.Job, report jobs.Reporter) (any, error) {
	var result *Result
	err := SafeExecute(func() error {
		var err error
		result, err = o.process(ctx, job, report)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) process(ctx context.Context, job *jobs.Job, report jobs.Reporter) (*Result, error) {
	var req Request
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return nil, NewErrorWithCause(ErrValidation, "decode job request", err).AtStage(StageInit)
	}
	profile, err := o.deps.Registry.Resolve(req.NicheID)
	if err != nil {
		return nil, NewErrorWithCause(ErrValidation, "resolve niche", err).AtStage(StageInit)
	}
	log.Info("Job %s stage %s niche=%s", job.ID, StageInit, profile.ID)
	jobDir := o.JobDir(job.ID)

	s, err := o.prepareStory(ctx, job.ID, req, profile)
	if err != nil {
		return nil, err
	}
	report.Progress(progressStoryReady, StageStoryReady)

	voice := profile.Voice.VoiceID
	if voice == "" {
		voice = o.defaultVoice
	}
	narrationPath, err := o.deps.Synthesizer.Synthesize(ctx, tts.Request{
		JobID:   job.ID,
		Text:    s.Narration(),
		VoiceID: voice,
		Speed:   profile.Voice.Speed,
		Model:   profile.Voice.Model,
		Dir:     jobDir,
	})
	if err != nil {
		return nil, WrapError(err, ErrProvider, "narration synthesis failed").AtStage(StageTTSReady)
	}
	narrationDuration, err := o.deps.Composer.Prober().ProbeDuration(ctx, narrationPath)
	if err != nil {
		return nil, WrapError(err, ErrEncoder, "measure narration").AtStage(StageTTSReady)
	}
	log.Info("Job %s narration %.2fs (estimate was %.2fs)", job.ID, narrationDuration, s.TotalDuration)
	report.Progress(progressTTSReady, StageTTSReady)

	timing.ApplyDurations(s, narrationDuration)
	report.Progress(progressDurations, StageDurationsReady)

	if err := o.attachVisuals(ctx, job.ID, s, profile, jobDir, report); err != nil {
		return nil, err
	}
	report.Progress(progressVisualsReady, StageVisualsReady)

	captionsPath, err := o.writeCaptions(job.ID, s, profile, jobDir)
	if err != nil {
		return nil, err
	}
	report.Progress(progressCaptions, StageCaptionsReady)

	opts := o.renderOptions(profile, req.Options)
	clips := make([]media.SceneClip, len(s.Scenes))
	for i, scene := range s.Scenes {
		clips[i] = media.SceneClip{ImagePath: scene.AssetPath, Duration: scene.Duration, Caption: scene.Narration}
	}
	rendered, err := o.deps.Composer.Render(ctx, media.RenderRequest{
		JobID:             job.ID,
		Scenes:            clips,
		NarrationPath:     narrationPath,
		NarrationDuration: narrationDuration,
		SubtitlePath:      captionsPath,
		OutputPath:        filepath.Join(jobDir, storage.JobFileName("video", job.ID, 0, "mp4")),
		Options:           opts,
	})
	if err != nil {
		return nil, WrapError(err, ErrEncoder, "render failed").AtStage(StageRenderComplete)
	}
	report.Progress(progressRendered, StageRenderComplete)

	return o.publish(job, s, profile, rendered, narrationPath, captionsPath)
}

// prepareStory builds or accepts the story and runs the content checks.
// Generated stories get one regeneration from the original prompt when a
// check or the provider fails; scripts are checked once.
func (o *Orchestrator) prepareStory(ctx context.Context, jobID string, req Request, profile niche.Profile) (*story.Story, error) {
	if req.Story != nil {
		draft, err := story.FromScript(*req.Story, o.maxSeconds)
		if err != nil {
			return nil, NewErrorWithCause(ErrValidation, "invalid story", err).AtStage(StageStoryReady)
		}
		return o.checkStory(jobID, draft, profile)
	}

	genReq := story.Request{
		Prompt:      req.Prompt,
		Profile:     profile,
		SceneCount:  o.sceneCount(profile),
		TargetWords: story.TargetWords(float64(profile.StoryStyle.DefaultLengthSeconds), profileBand(profile)),
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		draft, err := o.deps.Generator.Generate(ctx, genReq)
		if err != nil {
			lastErr = WrapError(err, ErrProvider, "story generation failed").AtStage(StageStoryReady)
		} else {
			checked, err := o.checkStory(jobID, draft, profile)
			if err == nil {
				return checked, nil
			}
			lastErr = err
		}
		if attempt == 1 {
			log.Warn("Job %s regenerating story: %v", jobID, lastErr)
		}
	}
	return nil, lastErr
}

func (o *Orchestrator) checkStory(jobID string, draft *story.Story, profile niche.Profile) (*story.Story, error) {
	res := o.deps.Filter.Check(draft)
	if !res.Safe {
		return nil, NewError(ErrSafety, "story failed content checks").
			AtStage(StageStoryReady).
			WithContext("labels", strings.Join(res.Flags, ","))
	}
	if err := story.Validate(res.Story, o.boundsFor(profile)); err != nil {
		return nil, NewErrorWithCause(ErrStoryBounds, "story outside bounds", err).AtStage(StageStoryReady)
	}
	if detected := story.DetectLanguage(res.Story); detected != profile.LanguageTag() && detected.String() != "und" {
		log.Warn("Job %s narration language %s differs from profile %s", jobID, detected, profile.LanguageTag())
	}
	log.Info("Job %s story %q scenes=%d words=%d", jobID, res.Story.Title, len(res.Story.Scenes), res.Story.WordCount)
	return res.Story, nil
}

func (o *Orchestrator) attachVisuals(ctx context.Context, jobID string, s *story.Story, profile niche.Profile, dir string, report jobs.Reporter) error {
	n := len(s.Scenes)
	for i := range s.Scenes {
		scene := &s.Scenes[i]
		path, err := o.deps.Images.Generate(ctx, imagegen.Request{
			JobID:      jobID,
			SceneIndex: scene.Index,
			Prompt:     scene.Prompt(),
			Title:      s.Title,
			Profile:    profile,
			Dir:        dir,
		})
		if err != nil {
			return WrapError(err, ErrProvider, fmt.Sprintf("image for scene %d failed", scene.Index)).AtStage(StageVisuals)
		}
		scene.AssetPath = path
		report.Progress(progressDurations+(progressVisualsReady-progressDurations)*(i+1)/n, StageVisuals)
	}
	return nil
}

func (o *Orchestrator) writeCaptions(jobID string, s *story.Story, profile niche.Profile, dir string) (string, error) {
	timings := make([]subtitle.SceneTiming, len(s.Scenes))
	for i, scene := range s.Scenes {
		timings[i] = subtitle.SceneTiming{Narration: scene.Narration, Duration: scene.Duration}
	}
	path := filepath.Join(dir, storage.JobFileName("captions", jobID, 0, "srt"))
	file := &subtitle.File{
		Lines:    subtitle.BuildCaptions(timings),
		Language: profile.LanguageTag().String(),
		Format:   "srt",
		Path:     path,
	}
	if err := o.deps.Captions.Write(path, file); err != nil {
		return "", NewErrorWithCause(ErrPersistence, "write captions", err).AtStage(StageCaptionsReady)
	}
	return path, nil
}

func (o *Orchestrator) publish(job *jobs.Job, s *story.Story, profile niche.Profile, rendered *media.RenderResult, narrationPath, captionsPath string) (*Result, error) {
	videoPath, err := o.deps.Storage.Persist(rendered.VideoPath)
	if err != nil {
		return nil, NewErrorWithCause(ErrPersistence, "persist video", err).AtStage(StagePublish)
	}
	subtitlePath, err := o.deps.Storage.Persist(captionsPath)
	if err != nil {
		return nil, NewErrorWithCause(ErrPersistence, "persist captions", err).AtStage(StagePublish)
	}

	images := make([]string, len(s.Scenes))
	for i, scene := range s.Scenes {
		images[i] = scene.AssetPath
	}
	return &Result{
		VideoPath:    videoPath,
		VideoURL:     o.deps.Storage.PublicURL(videoPath),
		SubtitlePath: subtitlePath,
		SubtitleURL:  o.deps.Storage.PublicURL(subtitlePath),
		Description:  BuildDescription(s, profile),
		Hashtags:     MergeHashtags(s.Hashtags, profile.Hashtags.Default),
		Metadata: Metadata{
			DurationSeconds: rendered.Duration,
			Width:           rendered.Width,
			Height:          rendered.Height,
			FPS:             rendered.FPS,
			NumberOfScenes:  len(s.Scenes),
			Niche:           profile.ID,
			Language:        profile.LanguageTag().String(),
			CreatedAt:       job.CreatedAt,
			CompletedAt:     time.Now(),
			OutputPath:      videoPath,
		},
		Story: s,
		Assets: Assets{
			NarrationAudio: narrationPath,
			SceneImages:    images,
			CaptionsFile:   subtitlePath,
		},
	}, nil
}

// renderOptions layers the profile's music settings and the job's
// overrides on top of the current defaults.
func (o *Orchestrator) renderOptions(profile niche.Profile, overrides *media.RenderOverrides) media.RenderOptions {
	opts := o.RenderDefaults()
	if !profile.Music.AddMusic {
		opts.IncludeMusic = false
	}
	if profile.Music.MusicVolume > 0 {
		opts.MusicVolume = profile.Music.MusicVolume
	}
	return opts.Merge(overrides)
}

func (o *Orchestrator) sceneCount(profile niche.Profile) int {
	n := profile.Visuals.NumScenes
	if o.bounds.MaxScenes > 0 && n > o.bounds.MaxScenes {
		n = o.bounds.MaxScenes
	}
	return n
}

// boundsFor widens the configured word limits to the profile's band.
func (o *Orchestrator) boundsFor(profile niche.Profile) story.Bounds {
	b := o.bounds
	band := profileBand(profile)
	if band.Min > 0 && (b.MinWords == 0 || band.Min < b.MinWords) {
		b.MinWords = band.Min
	}
	if band.Max > b.MaxWords {
		b.MaxWords = band.Max
	}
	return b
}

func profileBand(p niche.Profile) story.WordBand {
	return story.WordBand{Min: p.StoryStyle.TargetWordCount.Min, Max: p.StoryStyle.TargetWordCount.Max}
}
