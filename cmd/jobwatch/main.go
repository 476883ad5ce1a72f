// Command jobwatch follows a training job from the terminal. It polls the
// status endpoint at the server-suggested interval and prints new log lines
// until the job reaches a terminal state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neongen/internal/domain"
)

type statusEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		domain.TrainingSnapshot
		RetryAfterSeconds int `json:"retryAfterSeconds"`
	} `json:"data"`
	Error string `json:"error"`
}

func main() {
	baseURL := flag.String("server", "http://localhost:4000", "API base URL")
	jobID := flag.String("job", "", "training job id to watch")
	timeout := flag.Duration("timeout", 2*time.Hour, "give up after this long")
	flag.Parse()

	if *jobID == "" {
		fmt.Fprintln(os.Stderr, "jobwatch: -job is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := watch(ctx, *baseURL, *jobID); err != nil {
		fmt.Fprintf(os.Stderr, "jobwatch: %v\n", err)
		os.Exit(1)
	}
}

func watch(ctx context.Context, baseURL, jobID string) error {
	client := &http.Client{Timeout: 30 * time.Second}
	url := fmt.Sprintf("%s/api/styles/train/%s/status", baseURL, jobID)
	var lastLine string

	for {
		env, err := fetchStatus(ctx, client, url)
		if err != nil {
			return err
		}
		snap := env.Data

		// The snapshot carries a sliding window of recent log lines; print
		// only what follows the last line already shown.
		for _, line := range newLines(snap.Logs, lastLine) {
			fmt.Println(line)
			lastLine = line
		}

		fmt.Printf("[%3d%%] %s", snap.Progress, snap.Status)
		if snap.ErrorMessage != "" {
			fmt.Printf(" (%s)", snap.ErrorMessage)
		}
		fmt.Println()

		if snap.Status.Terminal() {
			if snap.Status == domain.TrainingStatusFailed {
				return fmt.Errorf("training failed: %s", snap.ErrorMessage)
			}
			fmt.Printf("lora: %s\ntrigger word: %s\n", snap.LoraURL, snap.TriggerWord)
			return nil
		}

		retry := snap.RetryAfterSeconds
		if retry <= 0 {
			retry = 5
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(retry) * time.Second):
		}
	}
}

// newLines returns the window lines that follow lastSeen. The server only
// exposes the most recent few lines, so when more than a full window arrives
// between polls lastSeen has scrolled out and the whole window is returned;
// any lines that scrolled past unseen are lost to this tool. The full history
// stays in the job record.
func newLines(window []string, lastSeen string) []string {
	if lastSeen == "" {
		return window
	}
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == lastSeen {
			return window[i+1:]
		}
	}
	return window
}

func fetchStatus(ctx context.Context, client *http.Client, url string) (*statusEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env statusEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("server error: %s", env.Error)
	}
	return &env, nil
}
