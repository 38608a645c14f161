package asset

import "errors"

var (
	ErrNoPath     = errors.New("model path is empty")
	ErrEmptyScene = errors.New("model has no nodes")
)

// Status is the outcome of a load, as reported to the status collaborator.
type Status string

const (
	// StatusLoaded means humanoid bones were found.
	StatusLoaded Status = "loaded"
	// StatusFallback means the model loaded without a usable humanoid.
	StatusFallback Status = "fallback"
	// StatusFailed means nothing could be loaded.
	StatusFailed Status = "failed"
)

// Report describes a finished load.
type Report struct {
	Status   Status   `json:"status"`
	Path     string   `json:"path"`
	Source   string   `json:"source,omitempty"` // vrm0, vrm1, node-names
	Bones    []string `json:"bones,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Error    string   `json:"error,omitempty"`
}
