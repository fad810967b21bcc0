package validation

import (
	"fmt"
	"strconv"

	"github.com/julianstephens/rocky/internal/constants"
)

// VersionPolicy decides which schema version a raw document is read as.
// It receives the raw "version" value and whether the key was present, and
// returns the version to stamp on the normalized document plus any warnings.
type VersionPolicy interface {
	Reconcile(raw any, present bool) (int, []string)
}

// LenientV1 reads every document as version 1. A version that is present
// but not 1 is coerced with a warning; a missing or null one is not.
type LenientV1 struct{}

func (LenientV1) Reconcile(raw any, present bool) (int, []string) {
	if !present || raw == nil {
		return constants.DocumentVersion, nil
	}
	if n, ok := raw.(float64); ok && n == constants.DocumentVersion {
		return constants.DocumentVersion, nil
	}
	if n, ok := raw.(int); ok && n == constants.DocumentVersion {
		return constants.DocumentVersion, nil
	}
	return constants.DocumentVersion, []string{
		fmt.Sprintf("unexpected version %s; parsed as v%d", describe(raw), constants.DocumentVersion),
	}
}

// StrictVersion rejects nothing but warns on any version other than Want,
// including a missing one.
type StrictVersion struct {
	Want int
}

func (s StrictVersion) Reconcile(raw any, present bool) (int, []string) {
	if !present || raw == nil {
		return s.Want, []string{fmt.Sprintf("missing version; parsed as v%d", s.Want)}
	}
	if n, ok := raw.(float64); ok && n == float64(s.Want) {
		return s.Want, nil
	}
	return s.Want, []string{fmt.Sprintf("unexpected version %s; parsed as v%d", describe(raw), s.Want)}
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		return "object"
	default:
		return fmt.Sprintf("%v", t)
	}
}
