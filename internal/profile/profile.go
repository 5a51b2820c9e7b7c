// Package profile stores named voice presets: an exaggeration and CFG weight
// pair applied to synthesis requests.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a named profile does not exist.
	ErrNotFound = errors.New("voice profile not found")
	// ErrInvalidName is returned for names that cannot be stored.
	ErrInvalidName = errors.New("invalid voice profile name")
)

// MaxNameBytes bounds profile names.
const MaxNameBytes = 64

// Params are the generation settings a profile applies.
type Params struct {
	Exaggeration float64 `json:"exaggeration"`
	CFGWeight    float64 `json:"cfg_weight"`
	Description  string  `json:"description"`
}

// Store persists profiles. Put overwrites an existing profile of the same name.
type Store interface {
	List(ctx context.Context) (map[string]Params, error)
	Get(ctx context.Context, name string) (Params, error)
	Put(ctx context.Context, name string, p Params) error
	Delete(ctx context.Context, name string) error
}

// Defaults returns the presets used when no profile file exists yet.
func Defaults() map[string]Params {
	return map[string]Params{
		"default":      {Exaggeration: 0.5, CFGWeight: 0.5, Description: "Default voice"},
		"excited":      {Exaggeration: 1.2, CFGWeight: 0.3, Description: "High energy voice"},
		"calm":         {Exaggeration: 0.3, CFGWeight: 0.6, Description: "Calm and soothing"},
		"professional": {Exaggeration: 0.4, CFGWeight: 0.5, Description: "Professional tone"},
	}
}

// ValidateName rejects empty, oversized and path-like names.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > MaxNameBytes:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameBytes)
	case strings.ContainsAny(name, "/\\"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

func copyMap(in map[string]Params) map[string]Params {
	out := make(map[string]Params, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
