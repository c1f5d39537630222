package media

// RenderOptions are the effective encoder settings for one render.
type RenderOptions struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	FPS               int     `json:"fps"`
	CRF               int     `json:"crf"`
	Preset            string  `json:"preset"`
	IncludeCaptions   bool    `json:"includeCaptions"`
	IncludeMusic      bool    `json:"includeMusic"`
	DarkGrade         bool    `json:"darkGrade"`
	Vignette          bool    `json:"vignette"`
	GlitchTransitions bool    `json:"glitchTransitions"`
	MusicVolume       float64 `json:"musicVolume"`
	NarrationVolume   float64 `json:"narrationVolume"`
}

// RenderOverrides are per-job changes to RenderOptions. Nil fields keep
// the default.
type RenderOverrides struct {
	IncludeCaptions   *bool    `json:"includeCaptions,omitempty"`
	IncludeMusic      *bool    `json:"includeMusic,omitempty"`
	DarkGrade         *bool    `json:"darkGrade,omitempty"`
	Vignette          *bool    `json:"vignette,omitempty"`
	GlitchTransitions *bool    `json:"glitchTransitions,omitempty"`
	MusicVolume       *float64 `json:"musicVolume,omitempty"`
	CRF               *int     `json:"crf,omitempty"`
	Preset            *string  `json:"preset,omitempty"`
}

// Merge returns o with every non-nil override applied.
func (o RenderOptions) Merge(ov *RenderOverrides) RenderOptions {
	if ov == nil {
		return o
	}
	if ov.IncludeCaptions != nil {
		o.IncludeCaptions = *ov.IncludeCaptions
	}
	if ov.IncludeMusic != nil {
		o.IncludeMusic = *ov.IncludeMusic
	}
	if ov.DarkGrade != nil {
		o.DarkGrade = *ov.DarkGrade
	}
	if ov.Vignette != nil {
		o.Vignette = *ov.Vignette
	}
	if ov.GlitchTransitions != nil {
		o.GlitchTransitions = *ov.GlitchTransitions
	}
	if ov.MusicVolume != nil && *ov.MusicVolume >= 0 && *ov.MusicVolume <= 1 {
		o.MusicVolume = *ov.MusicVolume
	}
	if ov.CRF != nil && *ov.CRF >= 0 && *ov.CRF <= 51 {
		o.CRF = *ov.CRF
	}
	if ov.Preset != nil && *ov.Preset != "" {
		o.Preset = *ov.Preset
	}
	return o
}

// SceneClip is one still image shown for Duration seconds.
type SceneClip struct {
	ImagePath string  `json:"imagePath"`
	Duration  float64 `json:"duration"`
	Caption   string  `json:"caption,omitempty"`
}

// RenderRequest is consumed once by Composer.Render.
type RenderRequest struct {
	JobID             string
	Scenes            []SceneClip
	NarrationPath     string
	NarrationDuration float64
	SubtitlePath      string
	OutputPath        string
	Options           RenderOptions
}

// RenderResult describes the encoded file as probed, not as requested.
type RenderResult struct {
	VideoPath      string  `json:"videoPath"`
	Duration       float64 `json:"duration"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FPS            float64 `json:"fps"`
	VisualDuration float64 `json:"visualDuration"`
	Segments       int     `json:"segments"`
}
