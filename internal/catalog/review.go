package catalog

import "fmt"

// PendingItem locates a code awaiting moderation.
type PendingItem struct {
	GameIndex int    `json:"game_index"`
	CodeIndex int    `json:"code_index"`
	GameName  string `json:"game_name"`
	Code      string `json:"code"`
	Reward    string `json:"reward"`
	Source    string `json:"source"`
}

// PendingItems scans every game and code in declaration order.
func PendingItems(catalog *Catalog) []PendingItem {
	items := []PendingItem{}
	if catalog == nil {
		return items
	}
	for gameIndex, game := range catalog.Games {
		for codeIndex, code := range game.Codes {
			if code.ReviewStatus != ReviewPending {
				continue
			}
			items = append(items, PendingItem{
				GameIndex: gameIndex,
				CodeIndex: codeIndex,
				GameName:  game.GameName,
				Code:      code.Code,
				Reward:    code.RewardDescription,
				Source:    code.SourcePlatform,
			})
		}
	}
	return items
}

// Approve moves a pending code to approved.
func Approve(catalog *Catalog, gameIndex, codeIndex int) error {
	return transition(catalog, gameIndex, codeIndex, ReviewApproved)
}

// Reject moves a pending code to rejected.
func Reject(catalog *Catalog, gameIndex, codeIndex int) error {
	return transition(catalog, gameIndex, codeIndex, ReviewRejected)
}

// PendingCode returns the code at the given position when it is still pending.
func PendingCode(catalog *Catalog, gameIndex, codeIndex int) (*Code, error) {
	if catalog == nil {
		return nil, ErrGameNotFound
	}
	game, err := catalog.Game(gameIndex)
	if err != nil {
		return nil, err
	}
	if codeIndex < 0 || codeIndex >= len(game.Codes) {
		return nil, fmt.Errorf("%w: game %d code %d", ErrCodeNotFound, gameIndex, codeIndex)
	}
	code := &game.Codes[codeIndex]
	if code.ReviewStatus != ReviewPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, code.Code, code.ReviewStatus)
	}
	return code, nil
}

// transition re-validates the target so a stale queue entry is a no-op.
func transition(catalog *Catalog, gameIndex, codeIndex int, next ReviewStatus) error {
	code, err := PendingCode(catalog, gameIndex, codeIndex)
	if err != nil {
		return err
	}
	code.ReviewStatus = next
	return nil
}
