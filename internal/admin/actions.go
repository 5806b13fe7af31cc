package admin

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gamecodebase/internal/audit"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/catalog"
)

// Action is one operator mutation applied to an in-memory catalog.
// Apply must validate before mutating so a failed action leaves the catalog untouched.
type Action interface {
	Name() string
	Apply(current *catalog.Catalog, now time.Time) (Outcome, error)
}

// Outcome describes an applied action for notices and the audit trail.
type Outcome struct {
	Message  string
	GameName string
	Code     string
	Detail   string
}

// AddGame appends an empty game with a unique name.
type AddGame struct {
	GameName string
}

func (AddGame) Name() string { return audit.ActionAddGame }

func (a AddGame) Apply(current *catalog.Catalog, now time.Time) (Outcome, error) {
	index, err := current.AddGame(a.GameName)
	if err != nil {
		return Outcome{}, err
	}
	name := current.Games[index].GameName
	return Outcome{Message: fmt.Sprintf("added game %s", name), GameName: name}, nil
}

// DeleteGame removes the game at GameIndex together with its codes.
type DeleteGame struct {
	GameIndex int
}

func (DeleteGame) Name() string { return audit.ActionDeleteGame }

func (a DeleteGame) Apply(current *catalog.Catalog, now time.Time) (Outcome, error) {
	removed, err := current.RemoveGame(a.GameIndex)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Message:  fmt.Sprintf("deleted game %s", removed.GameName),
		GameName: removed.GameName,
		Detail:   fmt.Sprintf("%d codes removed", len(removed.Codes)),
	}, nil
}

// SaveCodes replaces a game's codes with the edited table.
type SaveCodes struct {
	GameIndex int
	Table     catalog.Table
}

func (SaveCodes) Name() string { return audit.ActionSaveCodes }

func (a SaveCodes) Apply(current *catalog.Catalog, now time.Time) (Outcome, error) {
	game, err := current.Game(a.GameIndex)
	if err != nil {
		return Outcome{}, err
	}
	rows, err := NormalizeRows(a.Table.Rows)
	if err != nil {
		return Outcome{}, err
	}
	previous := len(game.Codes)
	game.Codes = catalog.FromTable(catalog.NewTable(rows), game.Codes, now)
	return Outcome{
		Message:  fmt.Sprintf("saved %d codes for %s", len(game.Codes), game.GameName),
		GameName: game.GameName,
		Detail:   fmt.Sprintf("%d rows before, %d after", previous, len(game.Codes)),
	}, nil
}

// ApproveCode marks a pending code approved.
type ApproveCode struct {
	GameIndex int
	CodeIndex int
}

func (ApproveCode) Name() string { return audit.ActionApprove }

func (a ApproveCode) Apply(current *catalog.Catalog, now time.Time) (Outcome, error) {
	return review(current, a.GameIndex, a.CodeIndex, catalog.Approve, "approved")
}

// RejectCode marks a pending code rejected.
type RejectCode struct {
	GameIndex int
	CodeIndex int
}

func (RejectCode) Name() string { return audit.ActionReject }

func (a RejectCode) Apply(current *catalog.Catalog, now time.Time) (Outcome, error) {
	return review(current, a.GameIndex, a.CodeIndex, catalog.Reject, "rejected")
}

func review(current *catalog.Catalog, gameIndex, codeIndex int, transition func(*catalog.Catalog, int, int) error, verb string) (Outcome, error) {
	code, err := catalog.PendingCode(current, gameIndex, codeIndex)
	if err != nil {
		return Outcome{}, err
	}
	token := code.Code
	gameName := current.Games[gameIndex].GameName
	if err := transition(current, gameIndex, codeIndex); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Message:  fmt.Sprintf("%s %s for %s", verb, token, gameName),
		GameName: gameName,
		Code:     token,
	}, nil
}

// SubmitCode appends a pending code, creating the game when it is not listed yet.
type SubmitCode struct {
	GameName       string
	Code           string
	Reward         string
	SourcePlatform string
	SourceURL      string
	ExpireDate     string
	CodeType       string
}

func (SubmitCode) Name() string { return audit.ActionSubmit }

func (a SubmitCode) Apply(current *catalog.Catalog, now time.Time) (Outcome, error) {
	gameName := strings.TrimSpace(a.GameName)
	if gameName == "" {
		return Outcome{}, catalog.ErrEmptyGameName
	}
	token := strings.TrimSpace(a.Code)
	if token == "" {
		return Outcome{}, fmt.Errorf("%w: code is required", ErrInvalidSubmission)
	}
	codeType := catalog.CodeType(strings.TrimSpace(a.CodeType))
	if codeType == "" {
		codeType = catalog.TypePermanent
	}
	if !codeType.Valid() {
		return Outcome{}, fmt.Errorf("%w: unknown code type %q", ErrInvalidSubmission, a.CodeType)
	}

	index := current.GameIndex(gameName)
	if index < 0 {
		added, err := current.AddGame(gameName)
		if err != nil {
			return Outcome{}, err
		}
		index = added
	}

	submitted := catalog.Code{
		Code:              token,
		RewardDescription: strings.TrimSpace(a.Reward),
		SourcePlatform:    strings.TrimSpace(a.SourcePlatform),
		SourceURL:         strings.TrimSpace(a.SourceURL),
		Status:            catalog.StatusActive,
		CodeType:          codeType,
		PublishDate:       catalog.FormatTimestamp(now),
		VerificationCount: 0,
		ReviewStatus:      catalog.ReviewPending,
	}
	if expireDate := strings.TrimSpace(a.ExpireDate); expireDate != "" {
		submitted.ExpireDate = &expireDate
	}
	game := &current.Games[index]
	game.Codes = append(game.Codes, submitted)
	return Outcome{
		Message:  fmt.Sprintf("submitted %s for %s, awaiting review", token, gameName),
		GameName: gameName,
		Code:     token,
	}, nil
}
