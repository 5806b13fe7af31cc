package admin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/gamecodebase/internal/catalog"
)

var (
	// ErrInvalidRows indicates an edited table with values the select columns do not offer.
	ErrInvalidRows = errors.New("admin: invalid rows")
	// ErrInvalidSubmission indicates a submitted code without the required fields.
	ErrInvalidSubmission = errors.New("admin: invalid submission")
)

// NormalizeRows fills select-column defaults on blank cells and rejects
// values outside their option lists, plus rows without a code.
func NormalizeRows(rows []catalog.Row) ([]catalog.Row, error) {
	normalized := make([]catalog.Row, 0, len(rows))
	var problems []string
	for index, row := range rows {
		if row.Status == "" {
			row.Status = string(catalog.StatusActive)
		}
		if row.CodeType == "" {
			row.CodeType = string(catalog.TypePermanent)
		}
		if row.ReviewStatus == "" {
			row.ReviewStatus = string(catalog.ReviewApproved)
		}

		if strings.TrimSpace(row.Code) == "" {
			problems = append(problems, fmt.Sprintf("row %d: code is required", index+1))
		}
		if !catalog.CodeStatus(row.Status).Valid() {
			problems = append(problems, fmt.Sprintf("row %d: unknown status %q", index+1, row.Status))
		}
		if !catalog.CodeType(row.CodeType).Valid() {
			problems = append(problems, fmt.Sprintf("row %d: unknown code type %q", index+1, row.CodeType))
		}
		if !catalog.ReviewStatus(row.ReviewStatus).Valid() {
			problems = append(problems, fmt.Sprintf("row %d: unknown review status %q", index+1, row.ReviewStatus))
		}
		normalized = append(normalized, row)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRows, strings.Join(problems, "; "))
	}
	return normalized, nil
}
