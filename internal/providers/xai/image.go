package xai

import (
	"context"
	"errors"
	"net/http"
)

// ImageRequest asks for still images. N defaults to 1.
type ImageRequest struct {
	Prompt         string
	N              int
	AspectRatio    string
	ResponseFormat string
}

// Image is the first generated image. URL is short-lived.
type Image struct {
	URL           string
	RevisedPrompt string
}

type imagePayload struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model"`
	N              int    `json:"n"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	n := req.N
	if n <= 0 {
		n = 1
	}
	payload := imagePayload{
		Prompt:         req.Prompt,
		Model:          c.imageModel,
		N:              n,
		AspectRatio:    req.AspectRatio,
		ResponseFormat: req.ResponseFormat,
	}
	var out imageResponse
	if err := c.do(ctx, "image", http.MethodPost, "/images/generations", payload, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return nil, errors.New("xai: no image URL returned")
	}
	return &Image{URL: out.Data[0].URL, RevisedPrompt: out.Data[0].RevisedPrompt}, nil
}
