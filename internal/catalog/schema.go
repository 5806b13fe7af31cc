package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const maxReportedViolations = 10

// ErrSchemaViolation indicates a document that parses but does not match the catalog schema.
var ErrSchemaViolation = errors.New("catalog: document does not match schema")

//go:embed schema.json
var documentSchema []byte

// ValidateDocument checks raw JSON against the catalog schema. Members the
// schema does not name are allowed. Violations beyond the first ten are counted, not listed.
func ValidateDocument(raw []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(documentSchema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("catalog: validate: %w", err)
	}
	if result.Valid() {
		return nil
	}
	violations := result.Errors()
	messages := make([]string, 0, maxReportedViolations)
	for index, violation := range violations {
		if index >= maxReportedViolations {
			messages = append(messages, fmt.Sprintf("and %d more", len(violations)-maxReportedViolations))
			break
		}
		messages = append(messages, violation.String())
	}
	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(messages, "; "))
}

// Validate reads the document from disk and checks it against the catalog schema.
func (s *Store) Validate() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", s.path, err)
	}
	return ValidateDocument(raw)
}
