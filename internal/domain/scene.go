package domain

import (
	"fmt"
	"strings"
)

// Method is the generation strategy name the planner emits.
type Method string

const (
	MethodTextToVideo    Method = "text-to-video"
	MethodImageThenVideo Method = "image-then-video"
	MethodEditVideo      Method = "edit-video"
)

// AllowedMethods returns the methods the planner may pick for a scene.
// Scene 1 has nothing to edit; later scenes offer edit-video only when the
// configured duration is editable.
func AllowedMethods(sceneNumber int, canEdit bool) []Method {
	methods := []Method{MethodTextToVideo, MethodImageThenVideo}
	if sceneNumber > 1 && canEdit {
		methods = append(methods, MethodEditVideo)
	}
	return methods
}

// SceneDecision is the planner's structured choice for one scene.
type SceneDecision struct {
	Method      Method `json:"method"`
	VideoPrompt string `json:"video_prompt"`
	ImagePrompt string `json:"image_prompt,omitempty"`
	Reasoning   string `json:"reasoning"`
}

// Strategy is the closed set of per-method payloads. Only the types in this
// file implement it.
type Strategy interface {
	Method() Method
	sealed()
}

type TextToVideo struct {
	VideoPrompt string
}

type ImageThenVideo struct {
	ImagePrompt string
	VideoPrompt string
}

type EditVideo struct {
	VideoPrompt string
}

func (TextToVideo) Method() Method    { return MethodTextToVideo }
func (ImageThenVideo) Method() Method { return MethodImageThenVideo }
func (EditVideo) Method() Method      { return MethodEditVideo }

func (TextToVideo) sealed()    {}
func (ImageThenVideo) sealed() {}
func (EditVideo) sealed()      {}

// StillPrompt is the prompt used for the reference image, falling back to the
// video prompt when the planner left it blank.
func (s ImageThenVideo) StillPrompt() string {
	if p := strings.TrimSpace(s.ImagePrompt); p != "" {
		return p
	}
	return s.VideoPrompt
}

// Strategy converts the decision into its typed variant.
func (d SceneDecision) Strategy() (Strategy, error) {
	switch d.Method {
	case MethodTextToVideo:
		return TextToVideo{VideoPrompt: d.VideoPrompt}, nil
	case MethodImageThenVideo:
		return ImageThenVideo{ImagePrompt: d.ImagePrompt, VideoPrompt: d.VideoPrompt}, nil
	case MethodEditVideo:
		return EditVideo{VideoPrompt: d.VideoPrompt}, nil
	default:
		return nil, fmt.Errorf("%w: unknown method %q", ErrPlanning, d.Method)
	}
}

// SceneResult is the record kept for a finished scene.
type SceneResult struct {
	SceneNumber int           `json:"scene"`
	Method      Method        `json:"method"`
	Decision    SceneDecision `json:"decision"`
	VideoURL    string        `json:"video_url"`
	ImageURL    string        `json:"image_url,omitempty"`
	Duration    float64       `json:"video_duration,omitempty"`
	Width       int           `json:"video_width,omitempty"`
	Height      int           `json:"video_height,omitempty"`
}

// SceneLog is an append-only record of finished scenes. Append returns a new
// log and never touches the receiver's backing array, so a log handed to a
// planner can't change underneath it.
type SceneLog struct {
	entries []SceneResult
}

func (l SceneLog) Append(r SceneResult) SceneLog {
	next := make([]SceneResult, len(l.entries), len(l.entries)+1)
	copy(next, l.entries)
	return SceneLog{entries: append(next, r)}
}

func (l SceneLog) Len() int { return len(l.entries) }

// Entries returns a copy of the recorded scenes in order.
func (l SceneLog) Entries() []SceneResult {
	out := make([]SceneResult, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns the most recent scene, if any.
func (l SceneLog) Last() (SceneResult, bool) {
	if len(l.entries) == 0 {
		return SceneResult{}, false
	}
	return l.entries[len(l.entries)-1], true
}
