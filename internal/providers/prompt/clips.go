// Package prompt turns a master ad concept into three video clip prompts.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/xai"
)

const (
	DefaultModel       = "grok-4-1-fast-reasoning"
	DefaultTemperature = 0.8
	ClipCount          = 3
	MaxImages          = 3
)

var (
	ErrEmptyConcept   = errors.New("masterPrompt is required")
	ErrTooManyImages  = fmt.Errorf("at most %d images are supported", MaxImages)
	ErrInvalidPayload = errors.New("invalid response format from xAI")
)

// ChatClient is the chat surface of the xAI client.
type ChatClient interface {
	Chat(ctx context.Context, req xai.ChatRequest) (string, error)
}

type ClipRequest struct {
	MasterPrompt string   `json:"masterPrompt"`
	Images       []string `json:"images,omitempty"`
}

// ClipPrompts holds one prompt per clip. ImageAssignment is set only when
// images were supplied and maps each clip to a 0-based image index.
type ClipPrompts struct {
	Prompts         []string `json:"prompts"`
	ImageAssignment []int    `json:"imageAssignment,omitempty"`
}

type Options struct {
	Model       string
	Temperature float64
	Logger      *infra.Logger
}

type ClipPrompter struct {
	client      ChatClient
	model       string
	temperature float64
	logger      *infra.Logger
}

func NewClipPrompter(client ChatClient, opts Options) *ClipPrompter {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &ClipPrompter{client: client, model: model, temperature: temperature, logger: logger}
}

type clipPayload struct {
	Clip1           string `json:"clip_1"`
	Clip2           string `json:"clip_2"`
	Clip3           string `json:"clip_3"`
	ImageAssignment []int  `json:"image_assignment"`
}

// Generate asks the model for the three clip prompts.
func (p *ClipPrompter) Generate(ctx context.Context, req ClipRequest) (*ClipPrompts, error) {
	concept := strings.TrimSpace(req.MasterPrompt)
	if concept == "" {
		return nil, ErrEmptyConcept
	}
	images := nonEmpty(req.Images)
	if len(images) > MaxImages {
		return nil, ErrTooManyImages
	}

	raw, err := p.client.Chat(ctx, Request(p.model, p.temperature, concept, images))
	if err != nil {
		return nil, err
	}
	payload, err := xai.DecodeJSON[clipPayload](raw)
	if err != nil {
		p.logger.Warn().Err(err).Msg("prompt: undecodable clip payload")
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	prompts := []string{
		strings.TrimSpace(payload.Clip1),
		strings.TrimSpace(payload.Clip2),
		strings.TrimSpace(payload.Clip3),
	}
	for i, prompt := range prompts {
		if prompt == "" {
			return nil, fmt.Errorf("%w: clip_%d is missing", ErrInvalidPayload, i+1)
		}
	}

	out := &ClipPrompts{Prompts: prompts}
	if len(images) > 0 && len(payload.ImageAssignment) > 0 {
		out.ImageAssignment = reindex(payload.ImageAssignment, len(images))
	}
	p.logger.Debug().Int("images", len(images)).Msg("prompt: clip prompts generated")
	return out, nil
}

// Request builds the chat call. With images the user turn is multimodal:
// every image followed by its "[Image i of n]" label, then the concept.
func Request(model string, temperature float64, concept string, images []string) xai.ChatRequest {
	if len(images) == 0 {
		return xai.ChatRequest{
			Model:       model,
			Temperature: temperature,
			Messages: []xai.Message{
				xai.TextMessage("system", textSystemPrompt),
				xai.TextMessage("user", "Master ad concept: "+concept),
			},
		}
	}

	parts := make([]xai.ContentPart, 0, len(images)*2+1)
	for i, img := range images {
		parts = append(parts,
			xai.ImagePart(img, "high"),
			xai.TextPart(fmt.Sprintf("[Image %d of %d]", i+1, len(images))),
		)
	}
	parts = append(parts, xai.TextPart(fmt.Sprintf(
		"Master ad concept: %s\n\nI have provided %d image(s). Generate 3 clip prompts describing motion/action for image-to-video generation, and assign each clip to the most appropriate image.",
		concept, len(images),
	)))
	return xai.ChatRequest{
		Model:       model,
		Temperature: temperature,
		Messages: []xai.Message{
			xai.TextMessage("system", imageSystemPrompt),
			xai.PartsMessage("user", parts),
		},
	}
}

// reindex converts the model's 1-based image numbers to 0-based indexes,
// clamps them to the supplied images and pads or truncates to ClipCount.
func reindex(assignment []int, imageCount int) []int {
	out := make([]int, ClipCount)
	for i := range out {
		n := i + 1
		if i < len(assignment) {
			n = assignment[i]
		}
		idx := n - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= imageCount {
			idx = imageCount - 1
		}
		out[i] = idx
	}
	return out
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
