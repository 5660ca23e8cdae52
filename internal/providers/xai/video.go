package xai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// VideoRequest submits a generation job. ImageURL switches the call to
// image-to-video. Zero settings are left out of the payload.
type VideoRequest struct {
	Prompt      string
	ImageURL    string
	Duration    int
	AspectRatio string
	Resolution  string
}

// EditRequest submits an edit of an existing video.
type EditRequest struct {
	Prompt   string
	VideoURL string
}

type urlRef struct {
	URL string `json:"url"`
}

type videoGenerationPayload struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Image       *urlRef `json:"image,omitempty"`
	Duration    int     `json:"duration,omitempty"`
	AspectRatio string  `json:"aspect_ratio,omitempty"`
	Resolution  string  `json:"resolution,omitempty"`
}

type videoEditPayload struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
	Video  urlRef `json:"video"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

// SubmitTextToVideo queues a text-only generation and returns its request id.
func (c *Client) SubmitTextToVideo(ctx context.Context, req VideoRequest) (string, error) {
	req.ImageURL = ""
	return c.submitGeneration(ctx, "text-to-video", req)
}

// SubmitImageToVideo queues a generation that starts from the given image.
func (c *Client) SubmitImageToVideo(ctx context.Context, req VideoRequest) (string, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return "", errors.New("xai: image url is required")
	}
	return c.submitGeneration(ctx, "image-to-video", req)
}

func (c *Client) submitGeneration(ctx context.Context, op string, req VideoRequest) (string, error) {
	payload := videoGenerationPayload{
		Prompt:      req.Prompt,
		Model:       c.videoModel,
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
	}
	if req.ImageURL != "" {
		payload.Image = &urlRef{URL: req.ImageURL}
	}
	var out submitResponse
	if err := c.do(ctx, op, http.MethodPost, "/videos/generations", payload, &out); err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", errors.New("xai: " + op + " response missing request_id")
	}
	return out.RequestID, nil
}

// SubmitVideoEdit queues an edit of req.VideoURL.
func (c *Client) SubmitVideoEdit(ctx context.Context, req EditRequest) (string, error) {
	if strings.TrimSpace(req.VideoURL) == "" {
		return "", errors.New("xai: video url is required")
	}
	payload := videoEditPayload{
		Prompt: req.Prompt,
		Model:  c.videoModel,
		Video:  urlRef{URL: req.VideoURL},
	}
	var out submitResponse
	if err := c.do(ctx, "video-edit", http.MethodPost, "/videos/edits", payload, &out); err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", errors.New("xai: video-edit response missing request_id")
	}
	return out.RequestID, nil
}

// VideoStatus is the normalized poll response. URL is set once the video is
// ready.
type VideoStatus struct {
	State    string
	URL      string
	Duration float64
	Width    int
	Height   int
	Error    string
}

type mediaRef struct {
	State    string  `json:"state"`
	Status   string  `json:"status"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

type statusPayload struct {
	mediaRef
	Result *mediaRef       `json:"result"`
	Output *mediaRef       `json:"output"`
	Video  *mediaRef       `json:"video"`
	Error  json.RawMessage `json:"error"`
}

// VideoStatus fetches the state of a queued job.
func (c *Client) VideoStatus(ctx context.Context, requestID string) (*VideoStatus, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, errors.New("xai: request id is required")
	}
	var out statusPayload
	if err := c.do(ctx, "video-status", http.MethodGet, "/videos/"+url.PathEscape(requestID), nil, &out); err != nil {
		return nil, err
	}
	return out.normalize(), nil
}

func (p statusPayload) normalize() *VideoStatus {
	refs := []*mediaRef{&p.mediaRef, p.Result, p.Output, p.Video}
	st := &VideoStatus{Error: errorText(p.Error)}
	for _, ref := range refs {
		if ref == nil {
			continue
		}
		if st.State == "" {
			st.State = firstNonEmpty(ref.State, ref.Status)
		}
		if st.URL == "" {
			st.URL = ref.URL
		}
		if st.Duration == 0 {
			st.Duration = ref.Duration
		}
		if st.Width == 0 {
			st.Width = ref.Width
		}
		if st.Height == 0 {
			st.Height = ref.Height
		}
	}
	st.State = strings.ToLower(strings.TrimSpace(st.State))
	return st
}

// errorText accepts either a plain string or an object with a message.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && (obj.Message != "" || obj.Code != "") {
		return firstNonEmpty(obj.Message, obj.Code)
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
