package rdmp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrVersionConflict indicates the optimistic append retries were exhausted.
	ErrVersionConflict = errors.New("rdmp: version conflict")
	// ErrNotFound indicates the requested template or version does not exist.
	ErrNotFound = errors.New("rdmp: not found")
	// ErrDuplicateTemplate indicates a template name is already taken.
	ErrDuplicateTemplate = errors.New("rdmp: duplicate template name")

	// errVersionTaken is the repository-level signal that another writer
	// committed the same (scope, version_int) first. Append retries on it.
	errVersionTaken = errors.New("rdmp: version number taken")
)

// SchemaError reports a body that failed structural validation. Nothing is
// persisted when it is returned.
type SchemaError struct {
	Errors []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("rdmp: invalid schema: %s", strings.Join(e.Errors, "; "))
}
