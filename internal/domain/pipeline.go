package domain

import "strings"

const (
	DefaultDuration    = 6
	DefaultAspectRatio = "16:9"
	DefaultResolution  = "720p"

	// MaxEditableDuration is the longest scene the remote edit endpoint accepts
	// as a source video.
	MaxEditableDuration = 8

	SceneCount = 3
)

// AspectRatios lists the aspect ratios accepted by the video endpoints.
var AspectRatios = []string{"16:9", "4:3", "3:2", "1:1", "2:3", "3:4", "9:16"}

// Resolutions lists the accepted output resolutions.
var Resolutions = []string{"480p", "720p"}

// PipelineInput is the request for one pipeline run. It is treated as
// immutable once Normalize has been applied.
type PipelineInput struct {
	Concept     string `json:"concept" validate:"required,max=4000"`
	Duration    int    `json:"duration" validate:"min=1,max=15"`
	AspectRatio string `json:"aspect_ratio" validate:"required,oneof=16:9 4:3 3:2 1:1 2:3 3:4 9:16"`
	Resolution  string `json:"resolution" validate:"required,oneof=480p 720p"`
}

// Normalize trims the concept and fills in defaults for omitted settings.
func (in PipelineInput) Normalize() PipelineInput {
	in.Concept = strings.TrimSpace(in.Concept)
	if in.Duration == 0 {
		in.Duration = DefaultDuration
	}
	in.AspectRatio = strings.TrimSpace(in.AspectRatio)
	if in.AspectRatio == "" {
		in.AspectRatio = DefaultAspectRatio
	}
	in.Resolution = strings.ToLower(strings.TrimSpace(in.Resolution))
	if in.Resolution == "" {
		in.Resolution = DefaultResolution
	}
	return in
}

// CanEditVideo reports whether scenes of this duration may use edit-video.
func (in PipelineInput) CanEditVideo() bool {
	return in.Duration <= MaxEditableDuration
}
