package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransport         = errors.New("transport error")
	ErrDeadline          = errors.New("deadline expired")
	ErrCollaborator      = errors.New("collaborator error")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrIngestion         = errors.New("ingestion error")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
)

// Disposition describes how the orchestrator should handle a classified error.
type Disposition int

const (
	// DispositionFatal stops the process; no per-workflow recovery applies.
	DispositionFatal Disposition = iota
	// DispositionRetryWorkflow routes the owning workflow through the
	// error/retry path, bounded by its retry counter.
	DispositionRetryWorkflow
	// DispositionDrop discards the triggering message after logging.
	DispositionDrop
	// DispositionRetryNextCycle leaves recovery to the next scheduled pass.
	DispositionRetryNextCycle
)

func (d Disposition) String() string {
	switch d {
	case DispositionFatal:
		return "fatal"
	case DispositionRetryWorkflow:
		return "retry-workflow"
	case DispositionDrop:
		return "drop"
	case DispositionRetryNextCycle:
		return "retry-next-cycle"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrCollaborator
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps a tagged error to the disposition the orchestrator applies.
// Deadline expiry and collaborator-reported failures share the per-workflow
// retry path; invalid transitions are dropped; ingestion faults wait for the
// next poll. Anything untagged is treated as a per-workflow failure rather
// than a process fault.
func Classify(err error) Disposition {
	switch {
	case err == nil:
		return DispositionDrop
	case errors.Is(err, ErrTransport):
		return DispositionFatal
	case errors.Is(err, ErrInvalidTransition):
		return DispositionDrop
	case errors.Is(err, ErrIngestion):
		return DispositionRetryNextCycle
	case errors.Is(err, ErrDeadline), errors.Is(err, ErrCollaborator):
		return DispositionRetryWorkflow
	default:
		return DispositionRetryWorkflow
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
