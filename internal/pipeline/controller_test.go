package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/xai"
)

func newTestController(planner *fakePlanner, api *fakeAPI, persister *fakePersister, timeouts Timeouts) *Controller {
	return NewController(planner, NewExecutor(api, persister, timeouts, nil), timeouts, nil)
}

func runInput() domain.PipelineInput {
	return domain.PipelineInput{Concept: "Eco-friendly water bottle"}
}

func TestStreamAllTextToVideo(t *testing.T) {
	api := newFakeAPI()
	planner := &fakePlanner{}
	persister := &fakePersister{}

	events := collect(newTestController(planner, api, persister, fastTimeouts()).Stream(context.Background(), runInput()))

	perScene := []domain.EventType{
		domain.EventScenePlanning,
		domain.EventScenePlanned,
		domain.EventVideoSubmitted,
		domain.EventVideoPolling,
		domain.EventVideoComplete,
		domain.EventSceneComplete,
	}
	var want []domain.EventType
	for i := 0; i < 3; i++ {
		want = append(want, perScene...)
	}
	want = append(want, domain.EventPipelineComplete)
	assert.Equal(t, want, types(events))

	for _, ev := range events {
		assert.NotEqual(t, domain.EventError, ev.Type)
	}
	last := events[len(events)-1]
	assert.Equal(t, 3, last.Scene)
	assert.Equal(t, "All 3 scenes complete!", last.Message)

	// planner sees a growing log, one entry per finished scene
	require.Len(t, planner.calls, 3)
	for i, call := range planner.calls {
		assert.Equal(t, i+1, call.scene)
		assert.Len(t, call.prior, i)
	}
	assert.Equal(t, "https://durable/scene-1.mp4", planner.calls[1].prior[0].VideoURL)

	require.Len(t, api.textReqs, 3)
	for _, req := range api.textReqs {
		assert.Equal(t, 6, req.Duration)
		assert.Equal(t, "16:9", req.AspectRatio)
		assert.Equal(t, "720p", req.Resolution)
	}
	assert.Equal(t, []string{"scene-1.mp4", "scene-2.mp4", "scene-3.mp4"}, persister.names)
}

func TestStreamSceneNumbersAreMonotonic(t *testing.T) {
	events := collect(newTestController(&fakePlanner{}, newFakeAPI(), &fakePersister{}, fastTimeouts()).
		Stream(context.Background(), runInput()))

	prev := 0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Scene, prev, "event %s", ev.Type)
		prev = ev.Scene
	}
}

func TestImageThenVideoCarriesImageURL(t *testing.T) {
	api := newFakeAPI()
	planner := &fakePlanner{decisions: map[int]domain.SceneDecision{
		2: {Method: domain.MethodImageThenVideo, VideoPrompt: "bottle spins", ImagePrompt: "bottle on a rock", Reasoning: "product shot"},
	}}
	persister := &fakePersister{}

	events := collect(newTestController(planner, api, persister, fastTimeouts()).Stream(context.Background(), runInput()))
	require.Equal(t, domain.EventPipelineComplete, events[len(events)-1].Type)

	var scene2 []domain.EventType
	for _, ev := range events {
		if ev.Scene != 2 {
			continue
		}
		scene2 = append(scene2, ev.Type)
		switch ev.Type {
		case domain.EventImageComplete, domain.EventVideoComplete, domain.EventSceneComplete:
			require.NotNil(t, ev.Data)
			assert.Equal(t, "https://durable/scene-2-ref.png", ev.Data.ImageURL)
		}
	}
	assert.Equal(t, []domain.EventType{
		domain.EventScenePlanning,
		domain.EventScenePlanned,
		domain.EventImageGenerating,
		domain.EventImageComplete,
		domain.EventVideoSubmitted,
		domain.EventVideoPolling,
		domain.EventVideoComplete,
		domain.EventSceneComplete,
	}, scene2)

	assert.Equal(t, []string{"bottle on a rock"}, api.imagePrompts)
	require.Len(t, api.imageReqs, 1)
	assert.Equal(t, "https://durable/scene-2-ref.png", api.imageReqs[0].ImageURL)
	assert.Equal(t, "bottle spins", api.imageReqs[0].Prompt)

	require.Len(t, planner.calls, 3)
	assert.Equal(t, "https://durable/scene-2-ref.png", planner.calls[2].prior[1].ImageURL)
}

func TestEditVideoUsesPreviousScene(t *testing.T) {
	api := newFakeAPI()
	planner := &fakePlanner{decisions: map[int]domain.SceneDecision{
		2: {Method: domain.MethodEditVideo, VideoPrompt: "make it night", Reasoning: "continuity"},
	}}
	events := collect(newTestController(planner, api, &fakePersister{}, fastTimeouts()).Stream(context.Background(), runInput()))

	require.Equal(t, domain.EventPipelineComplete, events[len(events)-1].Type)
	require.Len(t, api.editReqs, 1)
	assert.Equal(t, xai.EditRequest{Prompt: "make it night", VideoURL: "https://durable/scene-1.mp4"}, api.editReqs[0])
}

func TestSecondSceneSubmissionFailure(t *testing.T) {
	api := newFakeAPI()
	api.failTextOn = 2
	planner := &fakePlanner{}

	var events []domain.Event
	err := newTestController(planner, api, &fakePersister{}, fastTimeouts()).Run(context.Background(), runInput(), func(ev domain.Event) {
		events = append(events, ev)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubmission)
	assert.Equal(t, 2, domain.SceneOf(err))

	var apiErr *xai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.StatusCode)

	completed := 0
	for _, ev := range events {
		assert.NotEqual(t, 3, ev.Scene, "no scene 3 events after a scene 2 failure")
		if ev.Type == domain.EventSceneComplete {
			completed++
		}
	}
	assert.Equal(t, 1, completed)

	last := events[len(events)-1]
	assert.Equal(t, domain.EventError, last.Type)
	assert.Equal(t, 2, last.Scene)
	assert.Contains(t, last.Message, "500")
	assert.Len(t, planner.calls, 2)
}

func TestPlanningTimeoutReportsScene(t *testing.T) {
	timeouts := fastTimeouts()
	timeouts.Step = 20 * time.Millisecond
	planner := &fakePlanner{block: true}

	events := collect(newTestController(planner, newFakeAPI(), &fakePersister{}, timeouts).Stream(context.Background(), runInput()))

	assert.Equal(t, []domain.EventType{domain.EventScenePlanning, domain.EventError}, types(events))
	assert.Equal(t, 1, events[1].Scene)
	assert.Contains(t, events[1].Message, "Scene 1 planning timed out")
}

func TestPollFailureStopsRun(t *testing.T) {
	api := newFakeAPI()
	api.statuses["req-1"] = []*xai.VideoStatus{{State: "failed", Error: "moderation"}}

	var events []domain.Event
	err := newTestController(&fakePlanner{}, api, &fakePersister{}, fastTimeouts()).Run(context.Background(), runInput(), func(ev domain.Event) {
		events = append(events, ev)
	})
	assert.ErrorIs(t, err, domain.ErrPollFailure)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventError, last.Type)
	assert.Equal(t, 1, last.Scene)
	assert.Contains(t, last.Message, "moderation")
}

func TestEmptyConceptFailsOutsideScenes(t *testing.T) {
	var events []domain.Event
	err := newTestController(&fakePlanner{}, newFakeAPI(), &fakePersister{}, fastTimeouts()).
		Run(context.Background(), domain.PipelineInput{Concept: "   "}, func(ev domain.Event) {
			events = append(events, ev)
		})
	assert.ErrorIs(t, err, domain.ErrValidation)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Equal(t, 0, events[0].Scene)
}

func TestCancelDuringPollingEmitsNothingFurther(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := newFakeAPI()
	api.onPoll = func(string, int) { cancel() }
	persister := &fakePersister{}

	events := collect(newTestController(&fakePlanner{}, api, persister, fastTimeouts()).Stream(ctx, runInput()))

	assert.Equal(t, []domain.EventType{
		domain.EventScenePlanning,
		domain.EventScenePlanned,
		domain.EventVideoSubmitted,
	}, types(events))
	assert.Empty(t, persister.names)
	assert.Equal(t, []string{"text-to-video"}, api.calls)
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := newFakeAPI()
	err := newTestController(&fakePlanner{}, api, &fakePersister{}, fastTimeouts()).Run(ctx, runInput(), func(ev domain.Event) {
		t.Fatalf("unexpected event %s", ev.Type)
	})
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, api.calls)
}
