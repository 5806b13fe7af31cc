package admin

import (
	"context"

	"github.com/MarcoPoloResearchLab/gamecodebase/internal/catalog"
)

// GameSummary is one entry of the game picker.
type GameSummary struct {
	Index     int    `json:"index"`
	GameName  string `json:"game_name"`
	CodeCount int    `json:"code_count"`
}

// Overview is the sidebar: document metadata and the game list.
type Overview struct {
	Version      string        `json:"version"`
	LastUpdated  string        `json:"last_updated"`
	TotalCodes   int           `json:"total_codes"`
	GameCount    int           `json:"game_count"`
	PendingCount int           `json:"pending_count"`
	Games        []GameSummary `json:"games"`
	Notices      []Notice      `json:"notices"`
}

// GameDetail is the editor tab for one game.
type GameDetail struct {
	Index     int               `json:"index"`
	GameName  string            `json:"game_name"`
	CodeCount int               `json:"code_count"`
	Table     catalog.Table     `json:"table"`
	Stats     catalog.GameStats `json:"stats"`
	Notices   []Notice          `json:"notices"`
}

// PendingQueue is the review tab.
type PendingQueue struct {
	Items   []catalog.PendingItem `json:"items"`
	Notices []Notice              `json:"notices"`
}

// Overview loads the catalog and summarises it.
func (s *Service) Overview(ctx context.Context) Overview {
	current, notices := s.load()
	view := Overview{
		Version:      current.Version,
		LastUpdated:  current.LastUpdated,
		TotalCodes:   current.TotalCodes,
		GameCount:    len(current.Games),
		PendingCount: len(catalog.PendingItems(current)),
		Games:        make([]GameSummary, 0, len(current.Games)),
		Notices:      notices,
	}
	for index, game := range current.Games {
		view.Games = append(view.Games, GameSummary{Index: index, GameName: game.GameName, CodeCount: game.CodeCount})
	}
	return view
}

// GameDetail projects the game at index onto the editable table.
func (s *Service) GameDetail(ctx context.Context, index int) (GameDetail, error) {
	current, notices := s.load()
	game, err := current.Game(index)
	if err != nil {
		return GameDetail{Notices: notices}, err
	}
	return GameDetail{
		Index:     index,
		GameName:  game.GameName,
		CodeCount: game.CodeCount,
		Table:     catalog.ToTable(game.Codes),
		Stats:     catalog.StatsFor(*game),
		Notices:   notices,
	}, nil
}

// Pending builds the review queue from the current document.
func (s *Service) Pending(ctx context.Context) PendingQueue {
	current, notices := s.load()
	return PendingQueue{Items: catalog.PendingItems(current), Notices: notices}
}

func (s *Service) load() (*catalog.Catalog, []Notice) {
	notices := []Notice{}
	current, err := s.store.Load()
	if err != nil {
		notices = append(notices, Notice{Level: LevelWarning, Text: err.Error()})
	}
	return current, notices
}
