package audit

// Action names recorded in the audit trail.
const (
	ActionAddGame    = "add_game"
	ActionDeleteGame = "delete_game"
	ActionSaveCodes  = "save_codes"
	ActionApprove    = "approve"
	ActionReject     = "reject"
	ActionSubmit     = "submit"
	ActionPull       = "pull"
	ActionPush       = "push"
)

// Entry is an append-only record of one applied operator action.
type Entry struct {
	EntryID          string `gorm:"column:entry_id;primaryKey;size:64;not null" json:"entry_id"`
	Action           string `gorm:"column:action;size:32;not null;index" json:"action"`
	GameName         string `gorm:"column:game_name;size:190;not null;default:''" json:"game_name"`
	Code             string `gorm:"column:code;size:190;not null;default:''" json:"code"`
	Detail           string `gorm:"column:detail;type:text;not null;default:''" json:"detail"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null;index" json:"applied_at_s"`
	Saved            bool   `gorm:"column:saved;not null;default:false" json:"saved"`
	Pushed           bool   `gorm:"column:pushed;not null;default:false" json:"pushed"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "audit_entries"
}
