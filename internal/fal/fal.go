// Package fal calls fal.ai models through the queue API: submit a
// request, poll its status, then fetch the result.
package fal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/turntable/internal/logger"
)

// KeyEnv is the environment variable holding the API key.
const KeyEnv = "FAL_KEY"

// DefaultBaseURL is the fal.ai queue endpoint.
const DefaultBaseURL = "https://queue.fal.run"

// Default model endpoints.
const (
	DefaultBackgroundModel = "fal-ai/birefnet"
	DefaultMeshModel       = "tripo3d/tripo/v2.5/image-to-3d"
)

// ErrNoOutput is returned when a result carries no usable file.
var ErrNoOutput = errors.New("no output file in fal result")

// Client is a fal.ai queue client.
type Client struct {
	BaseURL      string
	Key          string
	PollInterval time.Duration
	HTTP         *http.Client
	Logger       *zap.Logger

	BackgroundModel string
	MeshModel       string
}

// New returns a Client reading the key from the environment.
func New(baseURL string, poll time.Duration, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Key:          os.Getenv(KeyEnv),
		PollInterval: poll,
		HTTP:         &http.Client{},
		Logger:       log,

		BackgroundModel: DefaultBackgroundModel,
		MeshModel:       DefaultMeshModel,
	}
}

type queued struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type status struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
}

// File is a fal output file reference.
type File struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

// Run submits input to model, waits for completion and decodes the
// result into out.
func (c *Client) Run(ctx context.Context, model string, input, out any) error {
	if c.Key == "" {
		return fmt.Errorf("%s environment variable not set", KeyEnv)
	}
	log := logger.OrNop(c.Logger).With(zap.String("model", model))

	var q queued
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/"+model, input, &q); err != nil {
		return fmt.Errorf("submitting to %s: %w", model, err)
	}
	log.Debug("queued", zap.String("request_id", q.RequestID))

	poll := c.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	for {
		var st status
		if err := c.do(ctx, http.MethodGet, q.StatusURL, nil, &st); err != nil {
			return fmt.Errorf("polling %s: %w", q.RequestID, err)
		}
		if st.Status == "COMPLETED" {
			break
		}
		log.Debug("waiting", zap.String("status", st.Status), zap.Int("queue_position", st.QueuePosition))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}

	if err := c.do(ctx, http.MethodGet, q.ResponseURL, nil, out); err != nil {
		return fmt.Errorf("fetching result %s: %w", q.RequestID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.Key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("received status code %d - %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// Download fetches a result file. Data URIs are decoded in place.
func (c *Client) Download(ctx context.Context, f File) ([]byte, error) {
	if f.URL == "" {
		return nil, ErrNoOutput
	}
	if strings.HasPrefix(f.URL, "data:") {
		return decodeDataURI(f.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", f.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: status %d", f.URL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// DataURI encodes data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	return []byte(payload), nil
}
