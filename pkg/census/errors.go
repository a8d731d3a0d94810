package census

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrCatalogUnavailable marks variable catalog fetch failures. Test with
// errors.Is; the wrapped message carries the year and dataset.
var ErrCatalogUnavailable = eris.New("census: variable catalog unavailable")

// UnknownVariableError reports a variable code the service or catalog
// does not recognize. Test with errors.As.
type UnknownVariableError struct {
	Code string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("census: unknown variable code %q", e.Code)
}

// extractUnknownVariable pulls the offending code out of an API error body.
// The API reports unknown codes as: error: unknown variable 'B99999_001E'.
func extractUnknownVariable(body string) (string, bool) {
	lower := strings.ToLower(body)
	marker := "unknown variable"
	i := strings.Index(lower, marker)
	if i < 0 {
		return "", false
	}
	rest := body[i+len(marker):]
	start := strings.IndexByte(rest, '\'')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(rest[start+1:], '\'')
	if end < 0 {
		return "", false
	}
	code := rest[start+1 : start+1+end]
	if code == "" {
		return "", false
	}
	return code, true
}
