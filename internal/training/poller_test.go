package training

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"neongen/internal/adapter/repo"
	"neongen/internal/domain"
	"neongen/internal/providers/fal"
)

func seedJob(t *testing.T, styles domain.StyleRepository, mutate func(*domain.TrainingJob)) *domain.TrainingJob {
	t.Helper()
	now := time.Now()
	job := &domain.TrainingJob{
		ID:              "job-1",
		StyleName:       "s",
		StyleType:       domain.StyleTypePerson,
		TriggerWord:     domain.TriggerWord,
		Status:          domain.TrainingStatusTraining,
		Progress:        30,
		RemoteRequestID: "req-1",
		Logs:            []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if mutate != nil {
		mutate(job)
	}
	if err := styles.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func newTestPoller(styles domain.StyleRepository, queue *stubQueue) *Poller {
	return NewPoller(styles, queue, "fal-ai/flux-2-trainer", zerolog.Nop())
}

func remoteLogs(n int) []fal.LogLine {
	lines := make([]fal.LogLine, n)
	for i := range lines {
		lines[i] = fal.LogLine{Message: fmt.Sprintf("step %d", i)}
	}
	return lines
}

func TestPollUnknownJobReturnsFailedSnapshot(t *testing.T) {
	poller := newTestPoller(repo.NewStyleRepositoryMemory(), &stubQueue{})

	snap, err := poller.Poll(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Status != domain.TrainingStatusFailed {
		t.Fatalf("expected failed snapshot, got %q", snap.Status)
	}
	if snap.ErrorMessage != "Style record not found" {
		t.Fatalf("unexpected message %q", snap.ErrorMessage)
	}
}

func TestPollTerminalJobSkipsRemoteCall(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, func(j *domain.TrainingJob) {
		j.Status = domain.TrainingStatusCompleted
		j.Progress = 100
		j.LoraURL = "https://files.example/lora.safetensors"
	})
	queue := &stubQueue{statusErr: fmt.Errorf("remote must not be called")}
	poller := newTestPoller(styles, queue)

	snap, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Status != domain.TrainingStatusCompleted || snap.Progress != 100 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.LoraURL != "https://files.example/lora.safetensors" {
		t.Fatalf("expected lora url on completed snapshot, got %q", snap.LoraURL)
	}
	if snap.TriggerWord != domain.TriggerWord {
		t.Fatalf("expected trigger word on completed snapshot, got %q", snap.TriggerWord)
	}
}

func TestPollBeforeSubmissionFinishes(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, func(j *domain.TrainingJob) {
		j.Status = domain.TrainingStatusUploading
		j.Progress = 10
		j.RemoteRequestID = ""
	})
	poller := newTestPoller(styles, &stubQueue{statusErr: fmt.Errorf("remote must not be called")})

	snap, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Status != domain.TrainingStatusUploading || snap.Progress != 10 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestPollInQueueAppliesFloor(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, func(j *domain.TrainingJob) {
		j.Status = domain.TrainingStatusTraining
		j.Progress = 0
	})
	queue := &stubQueue{status: &fal.QueueStatus{Status: fal.StatusInQueue}}
	poller := newTestPoller(styles, queue)

	snap, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Status != domain.TrainingStatusPending {
		t.Fatalf("expected pending, got %q", snap.Status)
	}
	if snap.Progress != 5 {
		t.Fatalf("expected queued floor 5, got %d", snap.Progress)
	}
}

func TestPollInProgressEstimatesFromLogs(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, nil)
	queue := &stubQueue{status: &fal.QueueStatus{Status: fal.StatusInProgress, Logs: remoteLogs(15)}}
	poller := newTestPoller(styles, queue)

	snap, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Status != domain.TrainingStatusTraining {
		t.Fatalf("expected training, got %q", snap.Status)
	}
	// 10 + 2*15 accumulated lines.
	if snap.Progress != 40 {
		t.Fatalf("expected progress 40, got %d", snap.Progress)
	}
}

func TestPollProgressCappedAtNinety(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, nil)
	queue := &stubQueue{status: &fal.QueueStatus{Status: fal.StatusInProgress, Logs: remoteLogs(60)}}
	poller := newTestPoller(styles, queue)

	snap, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Progress != 90 {
		t.Fatalf("expected cap at 90, got %d", snap.Progress)
	}
}

func TestPollProgressIsMonotonic(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, func(j *domain.TrainingJob) {
		j.Progress = 70
	})
	// Remote reports fewer log lines than the estimate we already issued.
	queue := &stubQueue{status: &fal.QueueStatus{Status: fal.StatusInProgress, Logs: remoteLogs(3)}}
	poller := newTestPoller(styles, queue)

	snap, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Progress != 70 {
		t.Fatalf("progress must never decrease: got %d", snap.Progress)
	}
}

func TestPollMergesLogsWithoutDuplicates(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, nil)
	queue := &stubQueue{status: &fal.QueueStatus{Status: fal.StatusInProgress, Logs: remoteLogs(3)}}
	poller := newTestPoller(styles, queue)

	if _, err := poller.Poll(context.Background(), "job-1"); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	// The provider resends full history plus two new lines.
	queue.status = &fal.QueueStatus{Status: fal.StatusInProgress, Logs: remoteLogs(5)}
	if _, err := poller.Poll(context.Background(), "job-1"); err != nil {
		t.Fatalf("second poll: %v", err)
	}

	stored, err := styles.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Logs) != 5 {
		t.Fatalf("expected 5 distinct lines, got %d: %v", len(stored.Logs), stored.Logs)
	}
	if stored.RemoteLogCursor != 5 {
		t.Fatalf("expected cursor 5, got %d", stored.RemoteLogCursor)
	}
}

func TestPollTransientErrorDoesNotMutate(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, func(j *domain.TrainingJob) {
		j.Progress = 42
		j.Logs = []string{"Submitting training job..."}
	})
	queue := &stubQueue{statusErr: fmt.Errorf("status 503: %w", domain.ErrProviderUnavailable)}
	poller := newTestPoller(styles, queue)

	snap, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Progress != 42 || snap.Status != domain.TrainingStatusTraining {
		t.Fatalf("transient failure must return last known state, got %+v", snap)
	}
	if snap.ErrorMessage != "Training service unavailable. Please try again later." {
		t.Fatalf("unexpected annotation %q", snap.ErrorMessage)
	}

	stored, _ := styles.Get(context.Background(), "job-1")
	if stored.ErrorMessage != "" {
		t.Fatalf("record must not be mutated by a transient failure: %q", stored.ErrorMessage)
	}
	if stored.Progress != 42 {
		t.Fatalf("record progress changed: %d", stored.Progress)
	}
}

func TestPollCompletedFetchesResult(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, nil)
	queue := &stubQueue{
		status: &fal.QueueStatus{Status: fal.StatusCompleted},
		result: &fal.TrainingResult{
			DiffusersLoraFile: fal.FileRef{URL: "https://files.example/lora.safetensors"},
			ConfigFile:        fal.FileRef{URL: "https://files.example/config.json"},
		},
	}
	poller := newTestPoller(styles, queue)

	snap, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Status != domain.TrainingStatusCompleted || snap.Progress != 100 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.LoraURL != "https://files.example/lora.safetensors" {
		t.Fatalf("unexpected lora url %q", snap.LoraURL)
	}

	stored, _ := styles.Get(context.Background(), "job-1")
	if stored.ConfigURL != "https://files.example/config.json" {
		t.Fatalf("config url not persisted: %q", stored.ConfigURL)
	}
	last := stored.Logs[len(stored.Logs)-1]
	if last != "Training complete! LoRA weights ready." {
		t.Fatalf("unexpected final log line %q", last)
	}
}

func TestPollCompletedResultFetchFailureIsTransient(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, nil)
	queue := &stubQueue{
		status:    &fal.QueueStatus{Status: fal.StatusCompleted},
		resultErr: fmt.Errorf("status 503: %w", domain.ErrProviderUnavailable),
	}
	poller := newTestPoller(styles, queue)

	snap, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Status.Terminal() {
		t.Fatalf("record must stay non-terminal until the result is fetched, got %q", snap.Status)
	}
	if snap.ErrorMessage == "" {
		t.Fatal("expected a transient error annotation")
	}

	stored, _ := styles.Get(context.Background(), "job-1")
	if stored.Status.Terminal() {
		t.Fatalf("stored record must not be sealed: %q", stored.Status)
	}
}

func TestPollRemoteFailureSealsRecord(t *testing.T) {
	styles := repo.NewStyleRepositoryMemory()
	seedJob(t, styles, func(j *domain.TrainingJob) {
		j.Progress = 60
	})
	queue := &stubQueue{status: &fal.QueueStatus{Status: fal.StatusFailed}}
	poller := newTestPoller(styles, queue)

	snap, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if snap.Status != domain.TrainingStatusFailed {
		t.Fatalf("expected failed, got %q", snap.Status)
	}
	if snap.Progress != 0 {
		t.Fatalf("expected progress 0 on failure, got %d", snap.Progress)
	}
	if snap.ErrorMessage != "Training failed on the remote trainer" {
		t.Fatalf("unexpected message %q", snap.ErrorMessage)
	}

	// A later poll is served from the store.
	queue.statusErr = fmt.Errorf("remote must not be called")
	again, err := poller.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if again.Status != domain.TrainingStatusFailed {
		t.Fatalf("terminal state must be absorbing, got %q", again.Status)
	}
}
