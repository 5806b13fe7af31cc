package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TableColumns is the editable projection of a code, in display order.
var TableColumns = []string{
	"code",
	"rewardDescription",
	"status",
	"sourcePlatform",
	"codeType",
	"expireDate",
	"reviewStatus",
}

// Table is the editable grid for one game's codes.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Row holds the editable fields of one code as text.
type Row struct {
	Code              string `json:"code"`
	RewardDescription string `json:"rewardDescription"`
	Status            string `json:"status"`
	SourcePlatform    string `json:"sourcePlatform"`
	CodeType          string `json:"codeType"`
	ExpireDate        string `json:"expireDate"`
	ReviewStatus      string `json:"reviewStatus"`
}

// NewTable returns a table with the standard columns and the given rows.
func NewTable(rows []Row) Table {
	if rows == nil {
		rows = []Row{}
	}
	columns := make([]string, len(TableColumns))
	copy(columns, TableColumns)
	return Table{Columns: columns, Rows: rows}
}

// ToTable projects codes onto table rows. Missing enum values show their defaults.
func ToTable(codes []Code) Table {
	rows := make([]Row, 0, len(codes))
	for _, code := range codes {
		row := Row{
			Code:              code.Code,
			RewardDescription: code.RewardDescription,
			Status:            string(code.Status),
			SourcePlatform:    code.SourcePlatform,
			CodeType:          string(code.CodeType),
			ReviewStatus:      string(code.ReviewStatus),
		}
		if row.Status == "" {
			row.Status = string(StatusActive)
		}
		if row.CodeType == "" {
			row.CodeType = string(TypePermanent)
		}
		if row.ReviewStatus == "" {
			row.ReviewStatus = string(ReviewApproved)
		}
		if code.ExpireDate != nil {
			row.ExpireDate = *code.ExpireDate
		}
		rows = append(rows, row)
	}
	return NewTable(rows)
}

// FromTable converts rows back into codes. Row i is paired with original[i]
// by position: sourceUrl, publishDate, verificationCount and unmodelled
// members come from the original when one exists at that index.
func FromTable(table Table, original []Code, now time.Time) []Code {
	codes := make([]Code, 0, len(table.Rows))
	for index, row := range table.Rows {
		code := Code{
			Code:              row.Code,
			RewardDescription: row.RewardDescription,
			SourcePlatform:    row.SourcePlatform,
			SourceURL:         "",
			Status:            CodeStatus(row.Status),
			CodeType:          CodeType(row.CodeType),
			PublishDate:       FormatTimestamp(now),
			VerificationCount: 0,
			ReviewStatus:      ReviewStatus(row.ReviewStatus),
		}
		if row.ExpireDate != "" {
			expireDate := row.ExpireDate
			code.ExpireDate = &expireDate
		}
		if index < len(original) {
			paired := original[index]
			code.SourceURL = paired.SourceURL
			code.PublishDate = paired.PublishDate
			code.VerificationCount = paired.VerificationCount
			code.Extra = paired.Extra
			code.absent = paired.absent
		}
		codes = append(codes, code)
	}
	return codes
}

// UnmarshalJSON accepts any scalar per cell and coerces it to text.
func (r *Row) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var cells map[string]any
	if err := decoder.Decode(&cells); err != nil {
		return err
	}
	var row Row
	targets := map[string]*string{
		"code":              &row.Code,
		"rewardDescription": &row.RewardDescription,
		"status":            &row.Status,
		"sourcePlatform":    &row.SourcePlatform,
		"codeType":          &row.CodeType,
		"expireDate":        &row.ExpireDate,
		"reviewStatus":      &row.ReviewStatus,
	}
	for column, target := range targets {
		value, err := cellText(cells[column])
		if err != nil {
			return fmt.Errorf("column %s: %w", column, err)
		}
		*target = value
	}
	*r = row
	return nil
}

func cellText(value any) (string, error) {
	switch typed := value.(type) {
	case nil:
		return "", nil
	case string:
		return typed, nil
	case json.Number:
		return typed.String(), nil
	case bool:
		return strconv.FormatBool(typed), nil
	default:
		return "", fmt.Errorf("unsupported cell value %T", value)
	}
}
