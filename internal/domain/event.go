package domain

// EventType enumerates the progress events a pipeline run emits.
type EventType string

const (
	EventScenePlanning    EventType = "scene_planning"
	EventScenePlanned     EventType = "scene_planned"
	EventImageGenerating  EventType = "image_generating"
	EventImageComplete    EventType = "image_complete"
	EventVideoSubmitted   EventType = "video_submitted"
	EventVideoPolling     EventType = "video_polling"
	EventVideoComplete    EventType = "video_complete"
	EventSceneComplete    EventType = "scene_complete"
	EventPipelineComplete EventType = "pipeline_complete"
	EventError            EventType = "error"
)

// Terminal reports whether no events follow this one.
func (t EventType) Terminal() bool {
	return t == EventPipelineComplete || t == EventError
}

// Event is a single frame of the progress stream. Scene is 0 for failures
// that do not belong to a scene.
type Event struct {
	Type    EventType  `json:"type"`
	Scene   int        `json:"scene"`
	Message string     `json:"message"`
	Data    *EventData `json:"data,omitempty"`
}

// EventData is the optional structured payload. Fields are populated
// according to the event type.
type EventData struct {
	Method      Method  `json:"method,omitempty"`
	Reasoning   string  `json:"reasoning,omitempty"`
	VideoPrompt string  `json:"video_prompt,omitempty"`
	ImagePrompt string  `json:"image_prompt,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	VideoURL    string  `json:"video_url,omitempty"`
	Duration    float64 `json:"video_duration,omitempty"`
	Width       int     `json:"video_width,omitempty"`
	Height      int     `json:"video_height,omitempty"`
	State       string  `json:"state,omitempty"`
	RequestID   string  `json:"request_id,omitempty"`
}

// DecisionData is the scene_planned payload.
func DecisionData(d SceneDecision) *EventData {
	data := &EventData{
		Method:      d.Method,
		Reasoning:   d.Reasoning,
		VideoPrompt: d.VideoPrompt,
	}
	if d.ImagePrompt != "" {
		data.ImagePrompt = d.ImagePrompt
	}
	return data
}

// ResultData is the scene_complete payload.
func ResultData(r SceneResult) *EventData {
	data := DecisionData(r.Decision)
	data.VideoURL = r.VideoURL
	data.ImageURL = r.ImageURL
	data.Duration = r.Duration
	data.Width = r.Width
	data.Height = r.Height
	return data
}
