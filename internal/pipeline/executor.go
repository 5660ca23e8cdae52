package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/xai"
)

const (
	DefaultStepTimeout = 120 * time.Second
	DefaultPollMargin  = 30 * time.Second
)

// Emitter receives progress events in order.
type Emitter func(domain.Event)

// GenerationAPI is the remote surface the executor drives.
type GenerationAPI interface {
	StatusSource
	GenerateImage(ctx context.Context, req xai.ImageRequest) (*xai.Image, error)
	SubmitTextToVideo(ctx context.Context, req xai.VideoRequest) (string, error)
	SubmitImageToVideo(ctx context.Context, req xai.VideoRequest) (string, error)
	SubmitVideoEdit(ctx context.Context, req xai.EditRequest) (string, error)
}

// MediaPersister turns a short-lived media URL into a durable one.
type MediaPersister interface {
	Persist(ctx context.Context, sourceURL, suggestedName string) string
}

// Timeouts bounds the remote work of a run.
type Timeouts struct {
	Step            time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
	PollMargin      time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Step:            DefaultStepTimeout,
		PollInterval:    DefaultPollInterval,
		PollMaxAttempts: DefaultPollMaxAttempts,
		PollMargin:      DefaultPollMargin,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Step <= 0 {
		t.Step = d.Step
	}
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	if t.PollMaxAttempts <= 0 {
		t.PollMaxAttempts = d.PollMaxAttempts
	}
	if t.PollMargin < 0 {
		t.PollMargin = 0
	}
	return t
}

// Poll is the ceiling on a whole poll loop. It is always longer than the
// loop's own attempt budget.
func (t Timeouts) Poll() time.Duration {
	return t.PollInterval*time.Duration(t.PollMaxAttempts) + t.PollMargin
}

// SceneOutput is what a finished scene produced. URLs are durable unless
// persistence fell back to the remote URL.
type SceneOutput struct {
	VideoURL string
	ImageURL string
	Duration float64
	Width    int
	Height   int
}

type Executor struct {
	api       GenerationAPI
	persister MediaPersister
	poller    *Poller
	timeouts  Timeouts
	logger    *infra.Logger
}

func NewExecutor(api GenerationAPI, persister MediaPersister, timeouts Timeouts, logger *infra.Logger) *Executor {
	timeouts = timeouts.withDefaults()
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Executor{
		api:       api,
		persister: persister,
		poller:    NewPoller(api, timeouts.PollInterval, timeouts.PollMaxAttempts),
		timeouts:  timeouts,
		logger:    logger,
	}
}

// Execute performs the side effects for decision and waits for the video.
func (e *Executor) Execute(ctx context.Context, sceneNumber int, decision domain.SceneDecision, input domain.PipelineInput, prior domain.SceneLog, emit Emitter) (SceneOutput, error) {
	var out SceneOutput
	strategy, err := decision.Strategy()
	if err != nil {
		return out, domain.NewStepError(sceneNumber, "dispatch", domain.ErrPlanning, err)
	}

	var requestID string
	switch s := strategy.(type) {
	case domain.TextToVideo:
		emit(event(domain.EventVideoSubmitted, sceneNumber, "Generating video from text...", nil))
		requestID, err = e.submit(ctx, sceneNumber, "text-to-video submission", func(ctx context.Context) (string, error) {
			return e.api.SubmitTextToVideo(ctx, videoRequest(s.VideoPrompt, "", input))
		})

	case domain.ImageThenVideo:
		emit(event(domain.EventImageGenerating, sceneNumber, "Generating reference image...", nil))
		img, imgErr := WithDeadline(ctx, fmt.Sprintf("Scene %d image generation", sceneNumber), e.timeouts.Step, nil,
			func(ctx context.Context) (*xai.Image, error) {
				return e.api.GenerateImage(ctx, xai.ImageRequest{Prompt: s.StillPrompt(), AspectRatio: input.AspectRatio})
			})
		if imgErr != nil {
			return out, domain.NewStepError(sceneNumber, "image generation", domain.ErrSubmission, imgErr)
		}
		out.ImageURL = e.persister.Persist(ctx, img.URL, fmt.Sprintf("scene-%d-ref.png", sceneNumber))
		emit(event(domain.EventImageComplete, sceneNumber, "Reference image ready.", &domain.EventData{ImageURL: out.ImageURL}))
		emit(event(domain.EventVideoSubmitted, sceneNumber, "Animating reference image...", nil))
		requestID, err = e.submit(ctx, sceneNumber, "image-to-video submission", func(ctx context.Context) (string, error) {
			return e.api.SubmitImageToVideo(ctx, videoRequest(s.VideoPrompt, out.ImageURL, input))
		})

	case domain.EditVideo:
		last, ok := prior.Last()
		if !ok || last.VideoURL == "" {
			return out, domain.NewStepError(sceneNumber, "edit", domain.ErrPrecondition,
				fmt.Errorf("%w: edit-video requires a previous scene", domain.ErrPrecondition))
		}
		emit(event(domain.EventVideoSubmitted, sceneNumber, "Editing previous scene...", nil))
		requestID, err = e.submit(ctx, sceneNumber, "video edit submission", func(ctx context.Context) (string, error) {
			return e.api.SubmitVideoEdit(ctx, xai.EditRequest{Prompt: s.VideoPrompt, VideoURL: last.VideoURL})
		})

	default:
		return out, domain.NewStepError(sceneNumber, "dispatch", domain.ErrPlanning,
			fmt.Errorf("no executor for method %q", strategy.Method()))
	}
	if err != nil {
		return out, err
	}

	status, err := e.poll(ctx, sceneNumber, requestID, emit)
	if err != nil {
		return out, domain.NewStepError(sceneNumber, "video polling", domain.ErrPollFailure, err)
	}

	out.VideoURL = e.persister.Persist(ctx, status.URL, fmt.Sprintf("scene-%d.mp4", sceneNumber))
	out.Duration = status.Duration
	out.Width = status.Width
	out.Height = status.Height
	return out, nil
}

func (e *Executor) submit(ctx context.Context, sceneNumber int, step string, fn func(context.Context) (string, error)) (string, error) {
	id, err := WithDeadline(ctx, fmt.Sprintf("Scene %d %s", sceneNumber, step), e.timeouts.Step, nil, fn)
	if err != nil {
		return "", domain.NewStepError(sceneNumber, step, domain.ErrSubmission, err)
	}
	e.logger.Info().Int("scene", sceneNumber).Str("request_id", id).Msg("pipeline: video job submitted")
	return id, nil
}

// poll forwards progress only while the poll is still owned by this call; a
// gate closes once WithDeadline returns so a late tick can't leak past it.
func (e *Executor) poll(ctx context.Context, sceneNumber int, requestID string, emit Emitter) (*xai.VideoStatus, error) {
	g := &gate{open: true}
	defer g.close()

	progress := func(state string) {
		g.do(func() {
			emit(event(domain.EventVideoPolling, sceneNumber, "Video status: "+state,
				&domain.EventData{State: state, RequestID: requestID}))
		})
	}
	abandon := func() {
		g.close()
		e.logger.Warn().Int("scene", sceneNumber).Str("request_id", requestID).Msg("pipeline: poll deadline hit, abandoning job")
	}
	st, err := WithDeadline(ctx, fmt.Sprintf("Scene %d video polling", sceneNumber), e.timeouts.Poll(), abandon,
		func(ctx context.Context) (*xai.VideoStatus, error) {
			return e.poller.Poll(ctx, requestID, progress)
		})
	if err == nil && st == nil {
		err = errors.New("poll returned no status")
	}
	return st, err
}

type gate struct {
	mu   sync.Mutex
	open bool
}

func (g *gate) do(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		fn()
	}
}

func (g *gate) close() {
	g.mu.Lock()
	g.open = false
	g.mu.Unlock()
}

func videoRequest(prompt, imageURL string, input domain.PipelineInput) xai.VideoRequest {
	return xai.VideoRequest{
		Prompt:      prompt,
		ImageURL:    imageURL,
		Duration:    input.Duration,
		AspectRatio: input.AspectRatio,
		Resolution:  input.Resolution,
	}
}

func event(t domain.EventType, scene int, message string, data *domain.EventData) domain.Event {
	return domain.Event{Type: t, Scene: scene, Message: message, Data: data}
}
