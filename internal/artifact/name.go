// Package artifact parses and formats artifact names of the form
// "<framework>-<model_name>.tar.gz" (spec §3).
package artifact

import (
	"fmt"
	"strings"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/predictor"
)

const suffix = ".tar.gz"

// Name is a parsed artifact name.
type Name struct {
	Raw       string
	Framework predictor.Framework
	Model     string
}

// Parse splits "<framework>-<model_name>.tar.gz" at the first '-',
// validating the framework prefix and stripping the archive suffix.
// Non-matching names fail with apperr.ErrBadInput (spec §3 invariant:
// "non-matching entries are skipped with a warning" by callers).
func Parse(raw string) (Name, error) {
	if !strings.HasSuffix(raw, suffix) {
		return Name{}, fmt.Errorf("artifact %q missing %s suffix: %w", raw, suffix, apperr.ErrBadInput)
	}
	trimmed := strings.TrimSuffix(raw, suffix)

	idx := strings.Index(trimmed, "-")
	if idx <= 0 || idx == len(trimmed)-1 {
		return Name{}, fmt.Errorf("artifact %q missing <framework>-<model_name> separator: %w", raw, apperr.ErrBadInput)
	}

	prefix, model := trimmed[:idx], trimmed[idx+1:]
	if err := ValidateModelName(model); err != nil {
		return Name{}, err
	}

	fw, err := predictor.ParseFramework(prefix)
	if err != nil {
		return Name{}, fmt.Errorf("artifact %q: %w", raw, err)
	}

	return Name{Raw: raw, Framework: fw, Model: model}, nil
}

// ValidateModelName enforces the ModelName invariant (spec §3):
// non-empty, no slashes, no whitespace.
func ValidateModelName(name string) error {
	if name == "" {
		return fmt.Errorf("empty model name: %w", apperr.ErrBadInput)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("model name %q contains a path separator: %w", name, apperr.ErrBadInput)
	}
	if strings.IndexFunc(name, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }) != -1 {
		return fmt.Errorf("model name %q contains whitespace: %w", name, apperr.ErrBadInput)
	}
	return nil
}

// Format builds the canonical artifact name for a framework + model
// name pair, e.g. for constructing a fetch key from registry metadata.
func Format(fw predictor.Framework, model string) string {
	prefix := string(fw)
	return fmt.Sprintf("%s-%s%s", prefix, model, suffix)
}
