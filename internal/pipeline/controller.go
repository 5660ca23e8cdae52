// Package pipeline runs the three-scene ad generation: plan a scene, execute
// it, persist the media, and feed the result into the next scene's plan.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
)

const streamBuffer = 16

// ScenePlanner decides how a scene is generated.
type ScenePlanner interface {
	Plan(ctx context.Context, sceneNumber int, input domain.PipelineInput, prior domain.SceneLog) (domain.SceneDecision, error)
}

// SceneExecutor generates a planned scene.
type SceneExecutor interface {
	Execute(ctx context.Context, sceneNumber int, decision domain.SceneDecision, input domain.PipelineInput, prior domain.SceneLog, emit Emitter) (SceneOutput, error)
}

type Controller struct {
	planner  ScenePlanner
	executor SceneExecutor
	timeouts Timeouts
	logger   *infra.Logger
}

func NewController(planner ScenePlanner, executor SceneExecutor, timeouts Timeouts, logger *infra.Logger) *Controller {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Controller{planner: planner, executor: executor, timeouts: timeouts.withDefaults(), logger: logger}
}

// Stream starts a run and returns its events. The channel is closed after the
// terminal event, or without one when ctx is cancelled.
func (c *Controller) Stream(ctx context.Context, input domain.PipelineInput) <-chan domain.Event {
	ch := make(chan domain.Event, streamBuffer)
	go func() {
		defer close(ch)
		_ = c.Run(ctx, input, func(ev domain.Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		})
	}()
	return ch
}

// Run executes the pipeline synchronously, calling emit for every event. A
// failure is reported as one error event before Run returns it; after ctx is
// cancelled nothing more is emitted.
func (c *Controller) Run(ctx context.Context, input domain.PipelineInput, emit Emitter) error {
	runID := uuid.NewString()
	logger := c.logger.With().Str("run_id", runID).Logger()
	start := time.Now()

	guarded := func(ev domain.Event) {
		if ctx.Err() != nil {
			return
		}
		emit(ev)
	}

	input = input.Normalize()
	logger.Info().
		Int("duration", input.Duration).
		Str("aspect_ratio", input.AspectRatio).
		Str("resolution", input.Resolution).
		Msg("pipeline: run started")

	err := c.run(ctx, input, guarded, &logger)
	switch {
	case err == nil:
		logger.Info().Dur("elapsed", time.Since(start)).Msg("pipeline: run complete")
	case ctx.Err() != nil || errors.Is(err, domain.ErrCancelled):
		logger.Info().Err(err).Dur("elapsed", time.Since(start)).Msg("pipeline: run cancelled")
	default:
		scene := domain.SceneOf(err)
		logger.Error().Err(err).Int("scene", scene).Dur("elapsed", time.Since(start)).Msg("pipeline: run failed")
		guarded(event(domain.EventError, scene, err.Error(), nil))
	}
	return err
}

func (c *Controller) run(ctx context.Context, input domain.PipelineInput, emit Emitter, logger *infra.Logger) error {
	if err := input.Validate(); err != nil {
		return err
	}

	var history domain.SceneLog
	for n := 1; n <= domain.SceneCount; n++ {
		if err := ctx.Err(); err != nil {
			return cancelled(fmt.Sprintf("Scene %d", n), err)
		}

		emit(event(domain.EventScenePlanning, n, fmt.Sprintf("Grok is planning Scene %d...", n), nil))
		prior := history
		decision, err := WithDeadline(ctx, fmt.Sprintf("Scene %d planning", n), c.timeouts.Step, nil,
			func(ctx context.Context) (domain.SceneDecision, error) {
				return c.planner.Plan(ctx, n, input, prior)
			})
		if err != nil {
			return domain.NewStepError(n, "planning", domain.ErrPlanning, err)
		}
		logger.Info().Int("scene", n).Str("method", string(decision.Method)).Msg("pipeline: scene planned")
		emit(event(domain.EventScenePlanned, n, fmt.Sprintf("Scene %d: %s. %s", n, decision.Method, decision.Reasoning), domain.DecisionData(decision)))

		output, err := c.executor.Execute(ctx, n, decision, input, prior, emit)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return cancelled(fmt.Sprintf("Scene %d", n), err)
		}

		result := domain.SceneResult{
			SceneNumber: n,
			Method:      decision.Method,
			Decision:    decision,
			VideoURL:    output.VideoURL,
			ImageURL:    output.ImageURL,
			Duration:    output.Duration,
			Width:       output.Width,
			Height:      output.Height,
		}
		emit(event(domain.EventVideoComplete, n, fmt.Sprintf("Scene %d video ready.", n), &domain.EventData{
			VideoURL: result.VideoURL,
			ImageURL: result.ImageURL,
			Duration: result.Duration,
			Width:    result.Width,
			Height:   result.Height,
		}))
		history = history.Append(result)
		emit(event(domain.EventSceneComplete, n, fmt.Sprintf("Scene %d complete.", n), domain.ResultData(result)))
	}

	emit(event(domain.EventPipelineComplete, domain.SceneCount, fmt.Sprintf("All %d scenes complete!", domain.SceneCount), nil))
	return nil
}
