package domain

import "time"

// StyleType enumerates supported training categories. It determines the
// default caption template sent to the remote trainer.
type StyleType string

const (
	StyleTypePerson    StyleType = "person"
	StyleTypeArtStyle  StyleType = "art_style"
	StyleTypeCharacter StyleType = "character"
)

// StyleTypes lists every accepted value, in validation-message order.
var StyleTypes = []StyleType{StyleTypePerson, StyleTypeArtStyle, StyleTypeCharacter}

// Valid reports whether the value is one of the enumerated style types.
func (t StyleType) Valid() bool {
	switch t {
	case StyleTypePerson, StyleTypeArtStyle, StyleTypeCharacter:
		return true
	}
	return false
}

// TrainingStatus enumerates training job lifecycle states.
type TrainingStatus string

const (
	TrainingStatusPending   TrainingStatus = "pending"
	TrainingStatusUploading TrainingStatus = "uploading"
	TrainingStatusTraining  TrainingStatus = "training"
	TrainingStatusCompleted TrainingStatus = "completed"
	TrainingStatusFailed    TrainingStatus = "failed"
)

// Terminal reports whether the status is absorbing. No transition leaves a
// terminal status.
func (s TrainingStatus) Terminal() bool {
	return s == TrainingStatusCompleted || s == TrainingStatusFailed
}

// TriggerWord is the fixed token the trainer binds every learned concept to.
// It is shared by all jobs rather than generated per style; combining two
// trained artifacts can therefore bleed concepts into each other.
const TriggerWord = "ohwx"

// SnapshotLogLines caps how many recent log lines a status snapshot carries.
const SnapshotLogLines = 5

// TrainingJob is a LoRA training job record. Created by the submitter,
// mutated only by the submitter (during submission) and the poller.
type TrainingJob struct {
	ID              string         `json:"id"`
	StyleName       string         `json:"styleName"`
	StyleType       StyleType      `json:"styleType"`
	TriggerWord     string         `json:"triggerWord"`
	Status          TrainingStatus `json:"status"`
	Progress        int            `json:"progress"`
	RemoteRequestID string         `json:"-"`
	LoraURL         string         `json:"loraUrl,omitempty"`
	ConfigURL       string         `json:"configUrl,omitempty"`
	Thumbnail       string         `json:"thumbnail,omitempty"`
	ImageCount      int            `json:"imageCount"`
	Logs            []string       `json:"logs"`
	RemoteLogCursor int            `json:"-"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
}

// Clone returns a deep copy so repository callers never alias stored state.
func (j *TrainingJob) Clone() *TrainingJob {
	if j == nil {
		return nil
	}
	copied := *j
	copied.Logs = append([]string(nil), j.Logs...)
	return &copied
}

// RecentLogs returns the most recent n log lines.
func (j *TrainingJob) RecentLogs(n int) []string {
	if n <= 0 || len(j.Logs) == 0 {
		return []string{}
	}
	if len(j.Logs) <= n {
		return append([]string(nil), j.Logs...)
	}
	return append([]string(nil), j.Logs[len(j.Logs)-n:]...)
}

// BumpProgress raises progress to value, never lowering it.
func (j *TrainingJob) BumpProgress(value int) {
	if value > j.Progress {
		j.Progress = value
	}
}

// TrainingSnapshot is the poll-visible view of a job.
type TrainingSnapshot struct {
	Status       TrainingStatus `json:"status"`
	Progress     int            `json:"progress"`
	Logs         []string       `json:"logs"`
	LoraURL      string         `json:"loraUrl,omitempty"`
	TriggerWord  string         `json:"triggerWord,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// Snapshot renders the job's current poll view.
func (j *TrainingJob) Snapshot() TrainingSnapshot {
	snap := TrainingSnapshot{
		Status:       j.Status,
		Progress:     j.Progress,
		Logs:         j.RecentLogs(SnapshotLogLines),
		ErrorMessage: j.ErrorMessage,
	}
	if j.Status == TrainingStatusCompleted {
		snap.LoraURL = j.LoraURL
		snap.TriggerWord = j.TriggerWord
	}
	return snap
}
