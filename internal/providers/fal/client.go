package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"neongen/internal/domain"
	"neongen/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

// Remote queue states as reported by the provider.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Options configures the fal.ai client.
type Options struct {
	APIKey         string
	QueueBaseURL   string
	SyncBaseURL    string
	RestBaseURL    string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the fal.ai queue, storage and
// synchronous inference endpoints.
type Client struct {
	apiKey       string
	queueBaseURL string
	syncBaseURL  string
	restBaseURL  string
	httpClient   *http.Client
	logger       *infra.Logger
}

// TrainingInput is the queue submission payload for the LoRA trainer.
type TrainingInput struct {
	ImageDataURL     string  `json:"image_data_url"`
	Steps            int     `json:"steps"`
	LearningRate     float64 `json:"learning_rate"`
	DefaultCaption   string  `json:"default_caption"`
	OutputLoraFormat string  `json:"output_lora_format"`
}

// LogLine is one interleaved trainer log entry.
type LogLine struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// QueueStatus is the provider's view of a submitted request.
type QueueStatus struct {
	Status        string    `json:"status"`
	QueuePosition int       `json:"queue_position"`
	Logs          []LogLine `json:"logs"`
}

// FileRef points at a provider-hosted output file.
type FileRef struct {
	URL         string `json:"url"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
}

// TrainingResult is the final payload of a completed training request.
type TrainingResult struct {
	DiffusersLoraFile FileRef `json:"diffusers_lora_file"`
	ConfigFile        FileRef `json:"config_file"`
}

// GenerateInput is the synchronous text-to-image payload.
type GenerateInput struct {
	ModelName           string              `json:"model_name,omitempty"`
	Prompt              string              `json:"prompt"`
	ImageSize           string              `json:"image_size"`
	NumImages           int                 `json:"num_images"`
	NumInferenceSteps   int                 `json:"num_inference_steps"`
	GuidanceScale       float64             `json:"guidance_scale"`
	EnableSafetyChecker bool                `json:"enable_safety_checker"`
	Loras               []domain.LoraWeight `json:"loras,omitempty"`
}

// GenerateOutput is the synchronous inference response.
type GenerateOutput struct {
	Images []struct {
		URL         string `json:"url"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		ContentType string `json:"content_type"`
	} `json:"images"`
	Seed int64 `json:"seed"`
}

type queueSubmitResponse struct {
	RequestID string `json:"request_id"`
}

type initiateUploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

type initiateUploadResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}

type errorResponse struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	queueBaseURL := strings.TrimRight(opts.QueueBaseURL, "/")
	if queueBaseURL == "" {
		queueBaseURL = "https://queue.fal.run"
	}
	syncBaseURL := strings.TrimRight(opts.SyncBaseURL, "/")
	if syncBaseURL == "" {
		syncBaseURL = "https://fal.run"
	}
	restBaseURL := strings.TrimRight(opts.RestBaseURL, "/")
	if restBaseURL == "" {
		restBaseURL = "https://rest.alpha.fal.ai"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		queueBaseURL: queueBaseURL,
		syncBaseURL:  syncBaseURL,
		restBaseURL:  restBaseURL,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Upload pushes an opaque binary object to fal storage and returns its
// retrieval URL. The provider contract is a two-step initiate-then-PUT flow.
func (c *Client) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	initiate := initiateUploadRequest{FileName: filename, ContentType: contentType}
	var initiated initiateUploadResponse
	endpoint := c.restBaseURL + "/storage/upload/initiate"
	if err := c.postJSON(ctx, endpoint, initiate, &initiated); err != nil {
		return "", fmt.Errorf("fal: initiate upload: %w", err)
	}
	if initiated.UploadURL == "" || initiated.FileURL == "" {
		return "", fmt.Errorf("fal: initiate upload: malformed response")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, initiated.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("fal: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fal: upload object: %w", transportError(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fal: upload status %d", resp.StatusCode)
	}
	c.logger.Debug().Str("file", filename).Str("url", initiated.FileURL).Msg("fal: uploaded object")
	return initiated.FileURL, nil
}

// SubmitTraining enqueues a training request and returns the provider-issued
// request id.
func (c *Client) SubmitTraining(ctx context.Context, model string, input TrainingInput) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	endpoint := c.queueBaseURL + "/" + strings.Trim(model, "/")
	var submitted queueSubmitResponse
	if err := c.postJSON(ctx, endpoint, input, &submitted); err != nil {
		return "", fmt.Errorf("fal: submit training: %w", err)
	}
	if submitted.RequestID == "" {
		return "", fmt.Errorf("fal: submit training: missing request_id in response")
	}
	c.logger.Debug().Str("model", model).Str("request_id", submitted.RequestID).Msg("fal: training submitted")
	return submitted.RequestID, nil
}

// QueueStatus fetches the current remote state of a request, optionally with
// interleaved log lines.
func (c *Client) QueueStatus(ctx context.Context, model, requestID string, withLogs bool) (*QueueStatus, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	endpoint := fmt.Sprintf("%s/%s/requests/%s/status", c.queueBaseURL, strings.Trim(model, "/"), requestID)
	if withLogs {
		endpoint += "?logs=1"
	}
	var status QueueStatus
	if err := c.getJSON(ctx, endpoint, &status); err != nil {
		return nil, fmt.Errorf("fal: queue status: %w", err)
	}
	if status.Status == "" {
		return nil, fmt.Errorf("fal: queue status: missing status field: %w", domain.ErrPoll)
	}
	return &status, nil
}

// TrainingResult fetches the final payload of a completed request. The shape
// is validated explicitly; an unexpected payload fails rather than producing
// empty artifact URLs.
func (c *Client) TrainingResult(ctx context.Context, model, requestID string) (*TrainingResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	endpoint := fmt.Sprintf("%s/%s/requests/%s", c.queueBaseURL, strings.Trim(model, "/"), requestID)
	var result TrainingResult
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("fal: training result: %w", err)
	}
	if result.DiffusersLoraFile.URL == "" {
		return nil, fmt.Errorf("fal: training result: missing diffusers_lora_file.url: %w", domain.ErrPoll)
	}
	return &result, nil
}

// Generate runs a synchronous inference call and returns the produced images.
func (c *Client) Generate(ctx context.Context, model string, input GenerateInput) (*GenerateOutput, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	endpoint := c.syncBaseURL + "/" + strings.Trim(model, "/")
	var output GenerateOutput
	if err := c.postJSON(ctx, endpoint, input, &output); err != nil {
		return nil, fmt.Errorf("fal: generate: %w", err)
	}
	return &output, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Key "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
