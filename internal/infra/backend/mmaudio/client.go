package mmaudio

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

// Client calls the audio-synthesis service, which takes a local video file and
// writes back a new video with a generated soundtrack. Synthesis runs in one
// long blocking request.
type Client struct {
	baseURL string
	httpc   *http.Client

	seed        int64
	numSteps    int
	cfgStrength float64
	durationSec float64
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Seed        int64
	NumSteps    int
	CFGStrength float64
	DurationSec float64
}

func NewClient(cfg Config) *Client {
	if cfg.NumSteps <= 0 {
		cfg.NumSteps = 25
	}
	if cfg.CFGStrength <= 0 {
		cfg.CFGStrength = 4.5
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpc:       &http.Client{Timeout: cfg.Timeout},
		seed:        cfg.Seed,
		numSteps:    cfg.NumSteps,
		cfgStrength: cfg.CFGStrength,
		durationSec: cfg.DurationSec,
	}
}

type predictPayload struct {
	Video          string  `json:"video"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Seed           int64   `json:"seed"`
	NumSteps       int     `json:"num_steps"`
	CFGStrength    float64 `json:"cfg_strength"`
	Duration       float64 `json:"duration"`
	UserID         string  `json:"user_id"`
	TaskID         string  `json:"task_id"`
}

type predictResponse struct {
	VideoPath string `json:"video_path"`
}

// Synthesize returns the local path of the audio-augmented video.
func (c *Client) Synthesize(ctx context.Context, req domain.SynthesisRequest) (string, error) {
	data, err := json.Marshal(predictPayload{
		Video:          req.VideoPath,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Seed:           c.seed,
		NumSteps:       c.numSteps,
		CFGStrength:    c.cfgStrength,
		Duration:       c.durationSec,
		UserID:         req.UserID,
		TaskID:         req.TaskID,
	})
	if err != nil {
		return "", fmt.Errorf("mmaudio: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("mmaudio: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("mmaudio: predict: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("mmaudio: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mmaudio: predict: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("mmaudio: decode response: %w", err)
	}
	if out.VideoPath == "" {
		return "", fmt.Errorf("mmaudio: predict response without video path")
	}
	return out.VideoPath, nil
}
