package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/xai"
)

// fakeAPI issues sequential request ids and completes every job on its
// second status check unless statuses scripts otherwise.
type fakeAPI struct {
	mu sync.Mutex

	calls        []string
	textReqs     []xai.VideoRequest
	imageReqs    []xai.VideoRequest
	editReqs     []xai.EditRequest
	imagePrompts []string

	// failTextOn fails the n-th text-to-video submission (1-based).
	failTextOn int
	textCount  int
	nextID     int

	statuses map[string][]*xai.VideoStatus
	polls    map[string]int
	onPoll   func(requestID string, n int)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{statuses: map[string][]*xai.VideoStatus{}, polls: map[string]int{}}
}

func (f *fakeAPI) id() string {
	f.nextID++
	return fmt.Sprintf("req-%d", f.nextID)
}

func (f *fakeAPI) GenerateImage(_ context.Context, req xai.ImageRequest) (*xai.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "image")
	f.imagePrompts = append(f.imagePrompts, req.Prompt)
	return &xai.Image{URL: fmt.Sprintf("https://remote/img-%d.png", len(f.imagePrompts))}, nil
}

func (f *fakeAPI) SubmitTextToVideo(_ context.Context, req xai.VideoRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "text-to-video")
	f.textCount++
	if f.failTextOn == f.textCount {
		return "", &xai.APIError{Op: "text-to-video", StatusCode: 500, Body: "internal"}
	}
	f.textReqs = append(f.textReqs, req)
	return f.id(), nil
}

func (f *fakeAPI) SubmitImageToVideo(_ context.Context, req xai.VideoRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "image-to-video")
	f.imageReqs = append(f.imageReqs, req)
	return f.id(), nil
}

func (f *fakeAPI) SubmitVideoEdit(_ context.Context, req xai.EditRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "video-edit")
	f.editReqs = append(f.editReqs, req)
	return f.id(), nil
}

func (f *fakeAPI) VideoStatus(_ context.Context, requestID string) (*xai.VideoStatus, error) {
	f.mu.Lock()
	f.polls[requestID]++
	n := f.polls[requestID]
	script, scripted := f.statuses[requestID]
	hook := f.onPoll
	f.mu.Unlock()

	if hook != nil {
		hook(requestID, n)
	}
	if scripted {
		if n <= len(script) {
			return script[n-1], nil
		}
		return script[len(script)-1], nil
	}
	if n == 1 {
		return &xai.VideoStatus{State: "processing"}, nil
	}
	return &xai.VideoStatus{State: "done", URL: "https://remote/" + requestID + ".mp4", Duration: 6, Width: 1280, Height: 720}, nil
}

type fakePersister struct {
	mu    sync.Mutex
	names []string
}

func (p *fakePersister) Persist(_ context.Context, sourceURL, name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = append(p.names, name)
	return "https://durable/" + name
}

type planCall struct {
	scene int
	prior []domain.SceneResult
}

type fakePlanner struct {
	mu        sync.Mutex
	decisions map[int]domain.SceneDecision
	calls     []planCall
	block     bool
}

func (p *fakePlanner) Plan(ctx context.Context, sceneNumber int, _ domain.PipelineInput, prior domain.SceneLog) (domain.SceneDecision, error) {
	p.mu.Lock()
	p.calls = append(p.calls, planCall{scene: sceneNumber, prior: prior.Entries()})
	block := p.block
	d := p.decisions[sceneNumber]
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return domain.SceneDecision{}, ctx.Err()
	}
	if d.Method == "" {
		d = domain.SceneDecision{Method: domain.MethodTextToVideo, VideoPrompt: fmt.Sprintf("scene %d prompt", sceneNumber), Reasoning: "simple"}
	}
	return d, nil
}

func fastTimeouts() Timeouts {
	return Timeouts{Step: time.Second, PollInterval: time.Millisecond, PollMaxAttempts: 20, PollMargin: time.Second}
}

func collect(ch <-chan domain.Event) []domain.Event {
	var out []domain.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func types(events []domain.Event) []domain.EventType {
	out := make([]domain.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}
