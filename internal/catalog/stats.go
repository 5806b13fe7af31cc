package catalog

// GameStats summarises one game's codes for the editor header.
type GameStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Permanent int `json:"permanent"`
	Pending   int `json:"pending"`
}

// StatsFor counts a game's codes by status, type and review state. A code
// without a status or type counts under the defaults, active and permanent.
func StatsFor(game Game) GameStats {
	stats := GameStats{Total: len(game.Codes)}
	for _, code := range game.Codes {
		if code.Status == StatusActive || code.Status == "" {
			stats.Active++
		}
		if code.CodeType == TypePermanent || code.CodeType == "" {
			stats.Permanent++
		}
		if code.ReviewStatus == ReviewPending {
			stats.Pending++
		}
	}
	return stats
}
