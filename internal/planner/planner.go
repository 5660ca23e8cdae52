// Package planner asks the reasoning model which generation method each scene
// of the ad should use.
package planner

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/xai"
)

const (
	DefaultTemperature = 0.7
	schemaName         = "scene_decision"
	imageDetail        = "high"
)

// ChatClient is the subset of the xAI client the planner needs.
type ChatClient interface {
	Chat(ctx context.Context, req xai.ChatRequest) (string, error)
}

type Options struct {
	// Model overrides the client's chat model when set.
	Model       string
	Temperature float64
	Logger      *infra.Logger
}

type Planner struct {
	client      ChatClient
	roles       roleBook
	model       string
	temperature float64
	logger      *infra.Logger
}

func New(client ChatClient, opts Options) (*Planner, error) {
	roles, err := loadRoles(defaultRoles)
	if err != nil {
		return nil, err
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Planner{
		client:      client,
		roles:       roles,
		model:       strings.TrimSpace(opts.Model),
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Plan decides the method and prompts for one scene. prior must hold exactly
// the scenes before sceneNumber.
func (p *Planner) Plan(ctx context.Context, sceneNumber int, input domain.PipelineInput, prior domain.SceneLog) (domain.SceneDecision, error) {
	req, err := p.Request(sceneNumber, input, prior)
	if err != nil {
		return domain.SceneDecision{}, err
	}
	raw, err := p.client.Chat(ctx, req)
	if err != nil {
		return domain.SceneDecision{}, fmt.Errorf("%w: %w", domain.ErrPlanning, err)
	}
	decision, err := parseDecision(raw, domain.AllowedMethods(sceneNumber, input.CanEditVideo()))
	if err != nil {
		p.logger.Warn().Err(err).Int("scene", sceneNumber).Str("raw", raw).Msg("planner: rejected decision")
		return domain.SceneDecision{}, err
	}
	p.logger.Debug().Int("scene", sceneNumber).Str("method", string(decision.Method)).Msg("planner: scene planned")
	return decision, nil
}

// Request builds the chat call for a scene without sending it.
func (p *Planner) Request(sceneNumber int, input domain.PipelineInput, prior domain.SceneLog) (xai.ChatRequest, error) {
	if sceneNumber < 1 || sceneNumber > domain.SceneCount {
		return xai.ChatRequest{}, fmt.Errorf("%w: scene number %d out of range", domain.ErrPlanning, sceneNumber)
	}
	if prior.Len() != sceneNumber-1 {
		return xai.ChatRequest{}, fmt.Errorf("%w: scene %d needs %d prior scenes, got %d", domain.ErrPlanning, sceneNumber, sceneNumber-1, prior.Len())
	}
	methods := domain.AllowedMethods(sceneNumber, input.CanEditVideo())
	role := p.roles.scene(sceneNumber)

	ask := fmt.Sprintf("Ad concept: %s\n%s\n\nDecide the best generation method for Scene %d of %d. %s",
		input.Concept, settingsClause(sceneNumber, input), sceneNumber, domain.SceneCount, strings.TrimSpace(role.Directive))

	var user xai.Message
	if prior.Len() == 0 {
		user = xai.TextMessage("user", ask)
	} else {
		user = xai.PartsMessage("user", append(priorParts(prior), xai.TextPart(ask)))
	}
	return xai.ChatRequest{
		Model: p.model,
		Messages: []xai.Message{
			xai.TextMessage("system", p.roles.systemPrompt(sceneNumber, methods)),
			user,
		},
		Temperature:    p.temperature,
		ResponseFormat: DecisionSchema(methods),
	}, nil
}

// DecisionSchema is the strict output schema offering exactly methods.
func DecisionSchema(methods []domain.Method) *xai.ResponseFormat {
	enum := make([]string, len(methods))
	for i, m := range methods {
		enum[i] = string(m)
	}
	return xai.JSONSchemaFormat(schemaName, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"method": map[string]any{
				"type":        "string",
				"enum":        enum,
				"description": "The generation method to use for this scene",
			},
			"video_prompt": map[string]any{
				"type":        "string",
				"description": "Rich cinematic prompt for video generation or editing",
			},
			"image_prompt": map[string]any{
				"type":        "string",
				"description": "Prompt for the reference image when method is image-then-video, empty string otherwise",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Brief explanation of why this method was chosen",
			},
		},
		"required":             []string{"method", "video_prompt", "image_prompt", "reasoning"},
		"additionalProperties": false,
	})
}

func settingsClause(sceneNumber int, input domain.PipelineInput) string {
	clause := fmt.Sprintf("Settings: duration=%ds, aspect_ratio=%s, resolution=%s. IMPORTANT: Do not mention any other duration. If you mention seconds in the prompt, it MUST be exactly %ds.",
		input.Duration, input.AspectRatio, input.Resolution, input.Duration)
	if sceneNumber > 1 && !input.CanEditVideo() {
		clause += fmt.Sprintf(` NOTE: "edit-video" is not available at %ds (edits require source videos of at most %ds).`,
			input.Duration, domain.MaxEditableDuration)
	}
	return clause
}

// priorParts shows each finished scene as its reference still, when one
// exists, followed by a note of how it was made.
func priorParts(prior domain.SceneLog) []xai.ContentPart {
	var parts []xai.ContentPart
	for _, r := range prior.Entries() {
		if r.ImageURL != "" {
			parts = append(parts, xai.ImagePart(r.ImageURL, imageDetail))
		}
		note := fmt.Sprintf("[Scene %d, method: %s]\nPrompt used: %q", r.SceneNumber, r.Method, r.Decision.VideoPrompt)
		if r.Decision.ImagePrompt != "" {
			note += fmt.Sprintf("\nReference image prompt: %q", r.Decision.ImagePrompt)
		}
		parts = append(parts, xai.TextPart(note))
	}
	return parts
}

func parseDecision(raw string, allowed []domain.Method) (domain.SceneDecision, error) {
	d, err := xai.DecodeJSON[domain.SceneDecision](raw)
	if err != nil {
		return domain.SceneDecision{}, fmt.Errorf("%w: unparseable decision: %w", domain.ErrPlanning, err)
	}
	d.Method = domain.Method(strings.TrimSpace(string(d.Method)))
	if !slices.Contains(allowed, d.Method) {
		return domain.SceneDecision{}, fmt.Errorf("%w: method %q is not offered (allowed %v)", domain.ErrPlanning, d.Method, allowed)
	}
	d.VideoPrompt = strings.TrimSpace(d.VideoPrompt)
	if d.VideoPrompt == "" {
		return domain.SceneDecision{}, fmt.Errorf("%w: empty video_prompt", domain.ErrPlanning)
	}
	d.ImagePrompt = strings.TrimSpace(d.ImagePrompt)
	if d.Method != domain.MethodImageThenVideo {
		d.ImagePrompt = ""
	}
	d.Reasoning = strings.TrimSpace(d.Reasoning)
	return d, nil
}
