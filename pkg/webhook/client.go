package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"video-uploader/entities"
)

const maxResponseBody = 64 * 1024

// Payload is the processing request body. Field order is part of the wire format.
type Payload struct {
	CreatedAt string `json:"createdAt"`
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	VideoURL  string `json:"videoURL"`
}

func NewPayload(video entities.Video) Payload {
	return Payload{
		CreatedAt: video.CreatedAt.UTC().Format(time.RFC3339),
		ID:        video.ID,
		UserID:    video.UserID,
		Title:     video.Title,
		VideoURL:  video.VideoURL,
	}
}

type Result struct {
	StatusCode int
	Body       string
}

func (r Result) OK() bool {
	return r.StatusCode == http.StatusOK
}

type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Send posts payload to url. Non-200 statuses are reported in the Result,
// not as an error.
func (c *Client) Send(ctx context.Context, url string, payload Payload) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}

	return &Result{StatusCode: resp.StatusCode, Body: string(respBody)}, nil
}
