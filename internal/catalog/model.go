package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultVersion is written into catalogs that do not declare a version.
const DefaultVersion = "2.0.0"

// TimestampLayout formats lastUpdated and publishDate values.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	// ErrEmptyGameName indicates an add-game request without a name.
	ErrEmptyGameName = errors.New("catalog: game name is required")
	// ErrDuplicateGame indicates an add-game request for a name already present.
	ErrDuplicateGame = errors.New("catalog: game already exists")
	// ErrGameNotFound indicates a game index outside the games sequence.
	ErrGameNotFound = errors.New("catalog: game not found")
	// ErrCodeNotFound indicates a code index outside a game's codes sequence.
	ErrCodeNotFound = errors.New("catalog: code not found")
	// ErrNotPending indicates a review action against a code that is no longer pending.
	ErrNotPending = errors.New("catalog: code is not pending review")
)

// CodeStatus enumerates the availability of a redeem code.
type CodeStatus string

const (
	StatusActive   CodeStatus = "active"
	StatusInactive CodeStatus = "inactive"
	StatusExpired  CodeStatus = "expired"
)

// Valid reports whether the status is one of the known values.
func (s CodeStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusExpired:
		return true
	}
	return false
}

// CodeType distinguishes permanent codes from limited-time ones.
type CodeType string

const (
	TypePermanent CodeType = "permanent"
	TypeLimited   CodeType = "limited"
)

// Valid reports whether the type is one of the known values.
func (t CodeType) Valid() bool {
	return t == TypePermanent || t == TypeLimited
}

// ReviewStatus is the moderation state of a code.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Valid reports whether the review status is one of the known values.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

// FormatTimestamp renders t the way catalog timestamps are persisted.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Catalog is the root persisted document.
type Catalog struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
	TotalCodes  int    `json:"totalCodes"`
	Games       []Game `json:"games"`

	// Extra holds members this package does not model; they survive a round trip.
	Extra map[string]json.RawMessage `json:"-"`

	totalCodesPresent bool
}

// Game groups the codes published for one title.
type Game struct {
	GameName  string `json:"gameName"`
	CodeCount int    `json:"codeCount"`
	Codes     []Code `json:"codes"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Code is a single redeemable token with its moderation metadata.
type Code struct {
	Code              string       `json:"code"`
	RewardDescription string       `json:"rewardDescription"`
	SourcePlatform    string       `json:"sourcePlatform"`
	SourceURL         string       `json:"sourceUrl"`
	ExpireDate        *string      `json:"expireDate"`
	Status            CodeStatus   `json:"status"`
	CodeType          CodeType     `json:"codeType"`
	PublishDate       string       `json:"publishDate"`
	VerificationCount int          `json:"verificationCount"`
	ReviewStatus      ReviewStatus `json:"reviewStatus"`

	Extra map[string]json.RawMessage `json:"-"`

	// absent lists known members the loaded record did not carry.
	absent map[string]struct{}
}

// NewCatalog returns an empty catalog stamped with now.
func NewCatalog(now time.Time) *Catalog {
	return &Catalog{
		Version:           DefaultVersion,
		LastUpdated:       FormatTimestamp(now),
		TotalCodes:        0,
		Games:             []Game{},
		totalCodesPresent: true,
	}
}

// CodeTotal sums the code counts of every game.
func (c *Catalog) CodeTotal() int {
	total := 0
	for _, game := range c.Games {
		total += len(game.Codes)
	}
	return total
}

// GameIndex returns the position of the game with the given name, or -1.
func (c *Catalog) GameIndex(name string) int {
	for index, game := range c.Games {
		if game.GameName == name {
			return index
		}
	}
	return -1
}

// Game returns a pointer to the game at index.
func (c *Catalog) Game(index int) (*Game, error) {
	if index < 0 || index >= len(c.Games) {
		return nil, fmt.Errorf("%w: index %d", ErrGameNotFound, index)
	}
	return &c.Games[index], nil
}

// AddGame appends an empty game. Names are trimmed and must be unique.
func (c *Catalog) AddGame(name string) (int, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return -1, ErrEmptyGameName
	}
	if c.GameIndex(trimmed) >= 0 {
		return -1, fmt.Errorf("%w: %s", ErrDuplicateGame, trimmed)
	}
	c.Games = append(c.Games, Game{GameName: trimmed, CodeCount: 0, Codes: []Code{}})
	return len(c.Games) - 1, nil
}

// RemoveGame deletes the game at index and returns it.
func (c *Catalog) RemoveGame(index int) (Game, error) {
	if index < 0 || index >= len(c.Games) {
		return Game{}, fmt.Errorf("%w: index %d", ErrGameNotFound, index)
	}
	removed := c.Games[index]
	c.Games = append(c.Games[:index], c.Games[index+1:]...)
	return removed, nil
}

// recompute refreshes every derived field.
func (c *Catalog) recompute(now time.Time) {
	if c.Games == nil {
		c.Games = []Game{}
	}
	for index := range c.Games {
		if c.Games[index].Codes == nil {
			c.Games[index].Codes = []Code{}
		}
		c.Games[index].CodeCount = len(c.Games[index].Codes)
	}
	c.LastUpdated = FormatTimestamp(now)
	c.TotalCodes = c.CodeTotal()
	c.totalCodesPresent = true
}

// migrate fills missing members with defaults without touching anything else.
func (c *Catalog) migrate(now time.Time) {
	if c.Games == nil {
		c.Games = []Game{}
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.LastUpdated == "" {
		c.LastUpdated = FormatTimestamp(now)
	}
	if !c.totalCodesPresent {
		c.TotalCodes = c.CodeTotal()
		c.totalCodesPresent = true
	}
	for gameIndex := range c.Games {
		codes := c.Games[gameIndex].Codes
		for codeIndex := range codes {
			if codes[codeIndex].ReviewStatus == "" {
				codes[codeIndex].ReviewStatus = ReviewApproved
			}
		}
	}
}

var (
	catalogMembers = memberSet("version", "lastUpdated", "totalCodes", "games")
	gameMembers    = memberSet("gameName", "codeCount", "codes")
	codeMemberOrder = []string{"code", "rewardDescription", "sourcePlatform", "sourceUrl", "expireDate",
		"status", "codeType", "publishDate", "verificationCount", "reviewStatus"}
	codeMembers = memberSet(codeMemberOrder...)
	enumMembers = memberSet("status", "codeType", "reviewStatus")
)

type (
	catalogDocument Catalog
	gameDocument    Game
	codeDocument    Code
)

func (c *Catalog) UnmarshalJSON(data []byte) error {
	var document catalogDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return err
	}
	present, extra, err := splitMembers(data, catalogMembers)
	if err != nil {
		return err
	}
	*c = Catalog(document)
	c.Extra = extra
	_, c.totalCodesPresent = present["totalCodes"]
	return nil
}

func (c Catalog) MarshalJSON() ([]byte, error) {
	encoded, err := encodeJSON(catalogDocument(c))
	if err != nil {
		return nil, err
	}
	return appendExtra(encoded, c.Extra)
}

func (g *Game) UnmarshalJSON(data []byte) error {
	var document gameDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return err
	}
	_, extra, err := splitMembers(data, gameMembers)
	if err != nil {
		return err
	}
	*g = Game(document)
	g.Extra = extra
	return nil
}

func (g Game) MarshalJSON() ([]byte, error) {
	encoded, err := encodeJSON(gameDocument(g))
	if err != nil {
		return nil, err
	}
	return appendExtra(encoded, g.Extra)
}

func (c *Code) UnmarshalJSON(data []byte) error {
	var document codeDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return err
	}
	present, extra, err := splitMembers(data, codeMembers)
	if err != nil {
		return err
	}
	*c = Code(document)
	c.Extra = extra
	for _, name := range codeMemberOrder {
		if _, ok := present[name]; ok {
			continue
		}
		if c.absent == nil {
			c.absent = make(map[string]struct{})
		}
		c.absent[name] = struct{}{}
	}
	return nil
}

// MarshalJSON writes the modelled members in their canonical order. Empty
// enum values are never written, and members the loaded record lacked stay
// out while they still hold their zero value.
func (c Code) MarshalJSON() ([]byte, error) {
	values := map[string]any{
		"code":              c.Code,
		"rewardDescription": c.RewardDescription,
		"sourcePlatform":    c.SourcePlatform,
		"sourceUrl":         c.SourceURL,
		"expireDate":        c.ExpireDate,
		"status":            c.Status,
		"codeType":          c.CodeType,
		"publishDate":       c.PublishDate,
		"verificationCount": c.VerificationCount,
		"reviewStatus":      c.ReviewStatus,
	}
	zero := map[string]bool{
		"code":              c.Code == "",
		"rewardDescription": c.RewardDescription == "",
		"sourcePlatform":    c.SourcePlatform == "",
		"sourceUrl":         c.SourceURL == "",
		"expireDate":        c.ExpireDate == nil,
		"status":            c.Status == "",
		"codeType":          c.CodeType == "",
		"publishDate":       c.PublishDate == "",
		"verificationCount": c.VerificationCount == 0,
		"reviewStatus":      c.ReviewStatus == "",
	}

	var buffer bytes.Buffer
	buffer.WriteByte('{')
	written := 0
	for _, name := range codeMemberOrder {
		if zero[name] {
			if _, enum := enumMembers[name]; enum {
				continue
			}
			if _, missing := c.absent[name]; missing {
				continue
			}
		}
		value, err := encodeJSON(values[name])
		if err != nil {
			return nil, err
		}
		if written > 0 {
			buffer.WriteByte(',')
		}
		key, err := encodeJSON(name)
		if err != nil {
			return nil, err
		}
		buffer.Write(key)
		buffer.WriteByte(':')
		buffer.Write(value)
		written++
	}
	buffer.WriteByte('}')
	return appendExtra(buffer.Bytes(), c.Extra)
}

func memberSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// splitMembers returns the known member names the object carries plus the
// members outside known. Names match case-insensitively, the way
// encoding/json binds them to fields, so a variant spelling of a known
// member is decoded into that member and not kept twice.
func splitMembers(data []byte, known map[string]struct{}) (map[string]struct{}, map[string]json.RawMessage, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil, nil
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, nil, err
	}
	present := make(map[string]struct{}, len(members))
	var extra map[string]json.RawMessage
	for name, value := range members {
		if canonical, ok := knownMember(known, name); ok {
			present[canonical] = struct{}{}
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[name] = value
	}
	return present, extra, nil
}

func knownMember(known map[string]struct{}, name string) (string, bool) {
	if _, ok := known[name]; ok {
		return name, true
	}
	for candidate := range known {
		if strings.EqualFold(candidate, name) {
			return candidate, true
		}
	}
	return "", false
}

// encodeJSON marshals without HTML escaping so text is written literally.
func encodeJSON(value any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buffer.Bytes(), "\n"), nil
}

// appendExtra splices the extra members, sorted by name, before the closing brace.
func appendExtra(encoded []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return encoded, nil
	}
	if len(encoded) < 2 || encoded[len(encoded)-1] != '}' {
		return nil, fmt.Errorf("catalog: cannot append members to %q", encoded)
	}

	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)

	var buffer bytes.Buffer
	buffer.Write(encoded[:len(encoded)-1])
	needsComma := len(bytes.TrimSpace(encoded[1:len(encoded)-1])) > 0
	for _, name := range names {
		if needsComma {
			buffer.WriteByte(',')
		}
		needsComma = true
		key, err := encodeJSON(name)
		if err != nil {
			return nil, err
		}
		buffer.Write(key)
		buffer.WriteByte(':')
		value := extra[name]
		if len(bytes.TrimSpace(value)) == 0 {
			value = json.RawMessage("null")
		}
		if err := json.Compact(&buffer, value); err != nil {
			return nil, err
		}
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}
