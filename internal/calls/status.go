package calls

import "strings"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in_progress"
	StatusForwarding Status = "forwarding"
	StatusCompleted  Status = "completed"
	StatusBusy       Status = "busy"
	StatusNoAnswer   Status = "no_answer"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// providerStatuses maps the provider vocabulary onto Status.
// Keys are lowercased with '-' and ' ' folded to '_'.
var providerStatuses = map[string]Status{
	"queued":      StatusQueued,
	"scheduled":   StatusQueued,
	"ringing":     StatusRinging,
	"in_progress": StatusInProgress,
	"forwarding":  StatusForwarding,
	"ended":       StatusCompleted,
	"completed":   StatusCompleted,
	"busy":        StatusBusy,
	"no_answer":   StatusNoAnswer,
	"failed":      StatusFailed,
	"canceled":    StatusCanceled,
	"cancelled":   StatusCanceled,
}

// MapProviderStatus translates a provider status. Unrecognized values map to
// StatusFailed with known=false so callers can count them.
func MapProviderStatus(raw string) (s Status, known bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if s, ok := providerStatuses[key]; ok {
		return s, true
	}
	return StatusFailed, false
}

func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRinging, StatusInProgress, StatusForwarding, StatusCompleted,
		StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// IsSuccessful reports statuses counted as successful calls.
func (s Status) IsSuccessful() bool { return s == StatusCompleted }

// IsFailed reports terminal statuses counted as failed calls.
func (s Status) IsFailed() bool {
	switch s {
	case StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		return true
	}
	return false
}
