package luma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/you-humble/videogen/internal/domain"
)

// Client talks to the dream-machine generation API: one POST to create a
// generation job, then GETs until the job reports a terminal state.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: cfg.Timeout},
	}
}

type keyframe struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type generationPayload struct {
	Prompt      string              `json:"prompt"`
	AspectRatio string              `json:"aspect_ratio"`
	Loop        bool                `json:"loop"`
	Keyframes   map[string]keyframe `json:"keyframes,omitempty"`
}

type generationResponse struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
	Video         struct {
		URL string `json:"url"`
	} `json:"video"`
}

// Submit creates a generation job and returns the backend-issued job id.
func (c *Client) Submit(ctx context.Context, p domain.GenerationParams) (string, error) {
	payload := generationPayload{
		Prompt:      p.Prompt,
		AspectRatio: p.AspectRatio,
		Loop:        p.Loop,
	}
	if p.ImageURL != "" {
		payload.Keyframes = map[string]keyframe{
			"frames0": {Type: "image", URL: p.ImageURL},
		}
	}

	var resp generationResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/generations", payload, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("luma: generation response without id")
	}
	return resp.ID, nil
}

// Status reports the current state of a generation job.
func (c *Client) Status(ctx context.Context, jobID string) (domain.ExternalJob, error) {
	var resp generationResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/generations/"+jobID, nil, http.StatusOK, &resp); err != nil {
		return domain.ExternalJob{}, err
	}

	return domain.ExternalJob{
		ID:            resp.ID,
		State:         resp.State,
		VideoURL:      resp.Video.URL,
		FailureReason: resp.FailureReason,
	}, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload any, wantStatus int, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("luma: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("luma: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("luma: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("luma: read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("luma: %s %s: status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("luma: decode response: %w", err)
	}
	return nil
}
