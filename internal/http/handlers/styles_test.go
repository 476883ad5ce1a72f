package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"neongen/internal/adapter/repo"
	"neongen/internal/domain"
	"neongen/internal/generation"
	"neongen/internal/infra"
	"neongen/internal/providers/fal"
	"neongen/internal/providers/prompt"
	"neongen/internal/training"
)

type stubUploader struct {
	url string
	err error
}

func (s *stubUploader) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

type stubQueue struct {
	requestID string
	submitErr error

	status    *fal.QueueStatus
	statusErr error

	result    *fal.TrainingResult
	resultErr error
}

func (s *stubQueue) SubmitTraining(ctx context.Context, model string, input fal.TrainingInput) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return s.requestID, nil
}

func (s *stubQueue) QueueStatus(ctx context.Context, model, requestID string, withLogs bool) (*fal.QueueStatus, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.status, nil
}

func (s *stubQueue) TrainingResult(ctx context.Context, model, requestID string) (*fal.TrainingResult, error) {
	if s.resultErr != nil {
		return nil, s.resultErr
	}
	return s.result, nil
}

type stubGenerator struct {
	output *fal.GenerateOutput
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, model string, input fal.GenerateInput) (*fal.GenerateOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

type testEnv struct {
	app    *App
	styles *repo.StyleRepositoryMemory
	queue  *stubQueue
	gen    *stubGenerator
	router http.Handler
}

func testConfig() *infra.Config {
	return &infra.Config{
		TrainMinImages:    20,
		TrainMaxImages:    100,
		MaxImageSizeBytes: 10 << 20,
		TrainingModel:     "fal-ai/flux-2-trainer",
		GenerationModel:   "fal-ai/flux-lora",
		PollInterval:      5 * time.Second,
		PollErrorBackoff:  15 * time.Second,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()
	styles := repo.NewStyleRepositoryMemory()
	queue := &stubQueue{requestID: "req-1"}
	gen := &stubGenerator{output: &fal.GenerateOutput{Seed: 42}}
	logger := zerolog.Nop()

	app := &App{
		Logger:    logger,
		Config:    cfg,
		Styles:    styles,
		Analytics: repo.NewAnalyticsRepositoryMemory(),
		Submitter: training.NewSubmitter(training.SubmitterOptions{
			Repo:     styles,
			Uploader: &stubUploader{url: "https://files.example/archive.zip"},
			Queue:    queue,
			Model:    cfg.TrainingModel,
			Logger:   logger,
		}),
		Poller:    training.NewPoller(styles, queue, cfg.TrainingModel, logger),
		Resolver:  generation.NewResolver(styles, gen, cfg.GenerationModel, logger),
		Suggester: prompt.NewStaticSuggester(),
	}

	r := chi.NewRouter()
	r.Route("/api/styles", func(r chi.Router) {
		r.Get("/", app.StylesList)
		r.Post("/train", app.StylesTrain)
		r.Get("/train/{jobID}/status", app.StylesTrainStatus)
		r.Get("/{styleID}/prompts", app.StylesPrompts)
		r.Delete("/{styleID}", app.StylesDelete)
	})
	r.Post("/api/images/generate", app.ImagesGenerate)
	r.Get("/api/stats", app.Stats)
	r.Get("/api/health", app.Health)

	return &testEnv{app: app, styles: styles, queue: queue, gen: gen, router: r}
}

func trainRequest(t *testing.T, styleName, styleType string, imageCount int) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if styleName != "" {
		_ = writer.WriteField("styleName", styleName)
	}
	if styleType != "" {
		_ = writer.WriteField("styleType", styleType)
	}
	for i := 0; i < imageCount; i++ {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="photo_%d.jpg"`, i))
		header.Set("Content-Type", "image/jpeg")
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte{0xff, 0xd8, 0xff}); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/styles/train", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (bool, json.RawMessage, string) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env.Success, env.Data, env.Error
}

func TestStylesTrainAccepted(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, trainRequest(t, "My Portraits", "person", 20))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	success, data, _ := decodeEnvelope(t, rec)
	if !success {
		t.Fatal("expected success envelope")
	}
	var payload struct {
		JobID       string `json:"jobId"`
		TriggerWord string `json:"triggerWord"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.JobID == "" {
		t.Fatal("expected a job id")
	}
	if payload.TriggerWord != "ohwx" {
		t.Fatalf("expected trigger word ohwx, got %q", payload.TriggerWord)
	}

	stored, err := env.styles.Get(context.Background(), payload.JobID)
	if err != nil {
		t.Fatalf("job record missing: %v", err)
	}
	if stored.Status != domain.TrainingStatusTraining {
		t.Fatalf("expected training status, got %q", stored.Status)
	}
	if stored.Thumbnail == "" {
		t.Fatal("expected thumbnail derived from the first image")
	}
}

func TestStylesTrainValidation(t *testing.T) {
	cases := []struct {
		name      string
		styleName string
		styleType string
		images    int
		wantError string
	}{
		{"missing name", "", "person", 20, "styleName is required"},
		{"bad type", "s", "unicorn", 20, "styleType must be one of: person, art_style, character"},
		{"too few images", "s", "person", 15, "At least 20 images are required. Received: 15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, trainRequest(t, tc.styleName, tc.styleType, tc.images))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			success, _, message := decodeEnvelope(t, rec)
			if success {
				t.Fatal("expected failure envelope")
			}
			if message != tc.wantError {
				t.Fatalf("expected error %q, got %q", tc.wantError, message)
			}
		})
	}
}

func TestStylesTrainRejectsBadFileType(t *testing.T) {
	env := newTestEnv(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("styleName", "s")
	_ = writer.WriteField("styleType", "person")
	for i := 0; i < 20; i++ {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="clip_%d.gif"`, i))
		header.Set("Content-Type", "image/gif")
		part, _ := writer.CreatePart(header)
		_, _ = part.Write([]byte("GIF89a"))
	}
	_ = writer.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/styles/train", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	_, _, message := decodeEnvelope(t, rec)
	if message != "Invalid file type: image/gif. Only JPEG, PNG, and WEBP are allowed." {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestStylesTrainStatusRetryHint(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	if err := env.styles.Create(context.Background(), &domain.TrainingJob{
		ID:              "job-1",
		StyleName:       "s",
		StyleType:       domain.StyleTypePerson,
		TriggerWord:     domain.TriggerWord,
		Status:          domain.TrainingStatusTraining,
		Progress:        40,
		RemoteRequestID: "req-1",
		Logs:            []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	env.queue.status = &fal.QueueStatus{Status: fal.StatusInProgress}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/styles/train/job-1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	_, data, _ := decodeEnvelope(t, rec)
	var healthy struct {
		Status            string `json:"status"`
		RetryAfterSeconds int    `json:"retryAfterSeconds"`
	}
	if err := json.Unmarshal(data, &healthy); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if healthy.RetryAfterSeconds != 5 {
		t.Fatalf("expected normal interval hint 5, got %d", healthy.RetryAfterSeconds)
	}

	// A transient remote failure suggests the longer backoff.
	env.queue.status = nil
	env.queue.statusErr = fmt.Errorf("status 503: %w", domain.ErrProviderUnavailable)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/styles/train/job-1/status", nil))
	_, data, _ = decodeEnvelope(t, rec)
	var degraded struct {
		ErrorMessage      string `json:"errorMessage"`
		RetryAfterSeconds int    `json:"retryAfterSeconds"`
	}
	if err := json.Unmarshal(data, &degraded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if degraded.RetryAfterSeconds != 15 {
		t.Fatalf("expected backoff hint 15, got %d", degraded.RetryAfterSeconds)
	}
	if degraded.ErrorMessage == "" {
		t.Fatal("expected transient error annotation")
	}
}

func TestStylesDelete(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	_ = env.styles.Create(context.Background(), &domain.TrainingJob{
		ID: "job-1", StyleName: "s", StyleType: domain.StyleTypePerson,
		Status: domain.TrainingStatusCompleted, CreatedAt: now, UpdatedAt: now,
	})

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/styles/job-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/styles/job-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
	_, _, message := decodeEnvelope(t, rec)
	if message != "Style not found" {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestStylesPrompts(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	_ = env.styles.Create(context.Background(), &domain.TrainingJob{
		ID: "job-1", StyleName: "neon noir", StyleType: domain.StyleTypeArtStyle,
		TriggerWord: domain.TriggerWord, Status: domain.TrainingStatusCompleted,
		LoraURL: "https://x/lora", CreatedAt: now, UpdatedAt: now,
	})

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/styles/job-1/prompts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	_, data, _ := decodeEnvelope(t, rec)
	var suggestions []prompt.Suggestion
	if err := json.Unmarshal(data, &suggestions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(suggestions) == 0 {
		t.Fatal("expected prompt suggestions")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	_, data, _ := decodeEnvelope(t, rec)
	var payload map[string]string
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" || payload["service"] != "neongen" {
		t.Fatalf("unexpected health payload %v", payload)
	}
}
