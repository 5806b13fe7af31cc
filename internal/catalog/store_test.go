package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/gamecodebase/internal/gitsync"
)

type recordingPusher struct {
	calls  int
	result gitsync.Result
}

func (p *recordingPusher) Push(ctx context.Context, message string) gitsync.Result {
	p.calls++
	return p.result
}

func fixedClock() time.Time {
	return time.Date(2026, time.March, 4, 5, 6, 7, 0, time.UTC)
}

func newTestStore(t *testing.T, pusher Pusher) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{
		Path:   filepath.Join(t.TempDir(), "GameCodeBase.json"),
		Clock:  fixedClock,
		Pusher: pusher,
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store
}

func writeDocument(t *testing.T, store *Store, document string) {
	t.Helper()
	if err := os.WriteFile(store.Path(), []byte(document), 0o644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
}

func TestNewStoreRequiresPath(t *testing.T) {
	if _, err := NewStore(StoreConfig{Path: "  "}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadMissingDocumentReturnsEmptyCatalog(t *testing.T) {
	store := newTestStore(t, nil)

	loaded, err := store.Load()
	if err == nil {
		t.Fatalf("expected load warning for missing document")
	}
	if loaded == nil {
		t.Fatalf("expected a usable catalog")
	}
	if loaded.Version != DefaultVersion || loaded.TotalCodes != 0 || len(loaded.Games) != 0 {
		t.Fatalf("unexpected fallback catalog: %#v", loaded)
	}
}

func TestLoadMalformedDocumentReturnsEmptyCatalog(t *testing.T) {
	store := newTestStore(t, nil)
	writeDocument(t, store, `{"games": [`)

	loaded, err := store.Load()
	if err == nil {
		t.Fatalf("expected parse warning")
	}
	if loaded == nil || loaded.Games == nil || len(loaded.Games) != 0 {
		t.Fatalf("expected empty games, got %#v", loaded)
	}
}

func TestLoadFillsMissingMembers(t *testing.T) {
	store := newTestStore(t, nil)
	writeDocument(t, store, `{"games":[{"gameName":"Genshin","codes":[
		{"code":"A1","rewardDescription":"gems","sourcePlatform":"web","status":"expired","codeType":"limited","verificationCount":4},
		{"code":"B2","reviewStatus":"pending"}
	]}]}`)

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.Version != DefaultVersion {
		t.Fatalf("expected default version, got %q", loaded.Version)
	}
	if loaded.LastUpdated != FormatTimestamp(fixedClock()) {
		t.Fatalf("expected lastUpdated default, got %q", loaded.LastUpdated)
	}
	if loaded.TotalCodes != 2 {
		t.Fatalf("expected computed totalCodes 2, got %d", loaded.TotalCodes)
	}

	codes := loaded.Games[0].Codes
	if codes[0].ReviewStatus != ReviewApproved {
		t.Fatalf("expected missing review status to become approved, got %q", codes[0].ReviewStatus)
	}
	if codes[0].Status != StatusExpired || codes[0].CodeType != TypeLimited || codes[0].VerificationCount != 4 {
		t.Fatalf("migration must not touch other fields: %#v", codes[0])
	}
	if codes[0].RewardDescription != "gems" || codes[0].SourcePlatform != "web" {
		t.Fatalf("migration must not touch text fields: %#v", codes[0])
	}
	if codes[1].ReviewStatus != ReviewPending {
		t.Fatalf("existing review status must be kept, got %q", codes[1].ReviewStatus)
	}
}

func TestLoadKeepsDeclaredTotalCodes(t *testing.T) {
	store := newTestStore(t, nil)
	writeDocument(t, store, `{"version":"2.0.1","lastUpdated":"x","totalCodes":9,"games":[]}`)

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.TotalCodes != 9 || loaded.Version != "2.0.1" || loaded.LastUpdated != "x" {
		t.Fatalf("present members must not be replaced on load: %#v", loaded)
	}
}

func TestSaveRecomputesDerivedCounts(t *testing.T) {
	store := newTestStore(t, nil)
	catalog := &Catalog{
		Version:    "2.0.0",
		TotalCodes: 42,
		Games: []Game{
			{GameName: "Genshin", CodeCount: 7, Codes: []Code{{Code: "A"}, {Code: "B"}}},
			{GameName: "Star Rail", CodeCount: 1, Codes: nil},
		},
	}

	result := store.Save(context.Background(), catalog, false)
	if !result.Saved || result.Err != nil {
		t.Fatalf("expected save to succeed: %#v", result)
	}
	if result.Push != nil {
		t.Fatalf("push must not run without auto push")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.TotalCodes != 2 {
		t.Fatalf("expected totalCodes 2, got %d", loaded.TotalCodes)
	}
	for _, game := range loaded.Games {
		if game.CodeCount != len(game.Codes) {
			t.Fatalf("codeCount mismatch for %s: %d vs %d", game.GameName, game.CodeCount, len(game.Codes))
		}
	}
	if loaded.LastUpdated != FormatTimestamp(fixedClock()) {
		t.Fatalf("expected lastUpdated to be recomputed, got %q", loaded.LastUpdated)
	}
}

func TestSaveEmptyCatalogRoundTrip(t *testing.T) {
	store := newTestStore(t, nil)

	if result := store.Save(context.Background(), NewCatalog(fixedClock()), false); !result.Saved {
		t.Fatalf("expected save to succeed: %v", result.Err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.TotalCodes != 0 || loaded.Games == nil || len(loaded.Games) != 0 || loaded.Version != DefaultVersion {
		t.Fatalf("unexpected round trip: %#v", loaded)
	}
	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}
	if !strings.Contains(string(raw), `"games": []`) {
		t.Fatalf("expected games written as empty array, got %s", raw)
	}
}

func TestSaveWritesUnicodeLiterallyAndIndents(t *testing.T) {
	store := newTestStore(t, nil)
	catalog := NewCatalog(fixedClock())
	catalog.Games = []Game{{GameName: "崩坏星穹铁道", Codes: []Code{{Code: "<A&B>", RewardDescription: "星琼×60"}}}}

	if result := store.Save(context.Background(), catalog, false); !result.Saved {
		t.Fatalf("expected save to succeed: %v", result.Err)
	}
	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}
	text := string(raw)
	for _, want := range []string{"崩坏星穹铁道", "星琼×60", "<A&B>", "\n  \"games\": ["} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected document to contain %q, got:\n%s", want, text)
		}
	}
	if strings.Contains(text, `\u`) {
		t.Fatalf("expected no escaped characters, got:\n%s", text)
	}
}

func TestSavePreservesUnknownMembers(t *testing.T) {
	store := newTestStore(t, nil)
	writeDocument(t, store, `{"version":"2.0.1","lastUpdated":"x","totalCodes":1,"source":"crawler",
		"games":[{"gameName":"Genshin","codeCount":1,"icon":"g.png",
			"codes":[{"code":"A","reviewStatus":"approved","region":{"name":"asia"}}]}]}`)

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if result := store.Save(context.Background(), loaded, false); !result.Saved {
		t.Fatalf("expected save to succeed: %v", result.Err)
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}
	var document map[string]any
	if err := json.Unmarshal(raw, &document); err != nil {
		t.Fatalf("saved document is not valid json: %v", err)
	}
	if document["source"] != "crawler" {
		t.Fatalf("expected catalog extra member to survive, got %v", document["source"])
	}
	game := document["games"].([]any)[0].(map[string]any)
	if game["icon"] != "g.png" {
		t.Fatalf("expected game extra member to survive, got %v", game["icon"])
	}
	code := game["codes"].([]any)[0].(map[string]any)
	region, ok := code["region"].(map[string]any)
	if !ok || region["name"] != "asia" {
		t.Fatalf("expected code extra member to survive, got %v", code["region"])
	}
}

func TestSaveAutoPushRunsAfterWrite(t *testing.T) {
	pusher := &recordingPusher{result: gitsync.Result{OK: true, Step: gitsync.StepPush}}
	store := newTestStore(t, pusher)

	result := store.Save(context.Background(), NewCatalog(fixedClock()), true)
	if !result.Saved || !result.Pushed() {
		t.Fatalf("expected saved and pushed: %#v", result)
	}
	if pusher.calls != 1 {
		t.Fatalf("expected one push, got %d", pusher.calls)
	}
}

func TestSavePushFailureIsNotASaveFailure(t *testing.T) {
	pusher := &recordingPusher{result: gitsync.Result{OK: false, Step: gitsync.StepPush, Output: "rejected", Err: errors.New("exit 1")}}
	store := newTestStore(t, pusher)

	result := store.Save(context.Background(), NewCatalog(fixedClock()), true)
	if !result.Saved || result.Err != nil {
		t.Fatalf("push failure must not fail the save: %#v", result)
	}
	if result.Push == nil || result.Push.OK || result.Pushed() {
		t.Fatalf("expected failed push to be reported: %#v", result.Push)
	}
}

func TestSaveWriteFailureSkipsPush(t *testing.T) {
	pusher := &recordingPusher{result: gitsync.Result{OK: true}}
	store, err := NewStore(StoreConfig{
		Path:   filepath.Join(t.TempDir(), "missing-dir", "GameCodeBase.json"),
		Clock:  fixedClock,
		Pusher: pusher,
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	result := store.Save(context.Background(), NewCatalog(fixedClock()), true)
	if result.Saved || result.Err == nil {
		t.Fatalf("expected write failure: %#v", result)
	}
	if pusher.calls != 0 {
		t.Fatalf("push must not run after a failed write")
	}
}

func TestSaveKeepsSparseCodesSparse(t *testing.T) {
	store := newTestStore(t, nil)
	writeDocument(t, store, `{"games":[{"gameName":"Genshin","codes":[{"code":"ABC123","reviewStatus":"pending"}]}]}`)
	if err := store.Validate(); err != nil {
		t.Fatalf("seed document must validate: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if err := Approve(loaded, 0, 0); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if result := store.Save(context.Background(), loaded, false); !result.Saved {
		t.Fatalf("expected save to succeed: %v", result.Err)
	}
	if err := store.Validate(); err != nil {
		t.Fatalf("saved document must still validate: %v", err)
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}
	var document struct {
		Games []struct {
			Codes []map[string]any `json:"codes"`
		} `json:"games"`
	}
	if err := json.Unmarshal(raw, &document); err != nil {
		t.Fatalf("saved document is not valid json: %v", err)
	}
	code := document.Games[0].Codes[0]
	if len(code) != 2 || code["code"] != "ABC123" || code["reviewStatus"] != "approved" {
		t.Fatalf("expected only code and reviewStatus members, got %v", code)
	}
}

func TestSaveNeverWritesEmptyEnums(t *testing.T) {
	store := newTestStore(t, nil)
	catalog := NewCatalog(fixedClock())
	catalog.Games = []Game{{GameName: "Genshin", Codes: []Code{{Code: "A", ReviewStatus: ReviewApproved}}}}

	if result := store.Save(context.Background(), catalog, false); !result.Saved {
		t.Fatalf("expected save to succeed: %v", result.Err)
	}
	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}
	text := string(raw)
	if strings.Contains(text, `"status"`) || strings.Contains(text, `"codeType"`) {
		t.Fatalf("expected empty enums to be left out, got:\n%s", text)
	}
	if !strings.Contains(text, `"expireDate": null`) || !strings.Contains(text, `"sourceUrl": ""`) {
		t.Fatalf("expected constructed codes to carry every other member, got:\n%s", text)
	}
	if err := store.Validate(); err != nil {
		t.Fatalf("saved document must validate: %v", err)
	}
}

func TestLoadBindsVariantSpellingsOnce(t *testing.T) {
	store := newTestStore(t, nil)
	writeDocument(t, store, `{"games":[{"gameName":"Genshin","codes":[{"code":"A","sourceURL":"http://x","reviewStatus":"approved"}]}]}`)

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	code := loaded.Games[0].Codes[0]
	if code.SourceURL != "http://x" || len(code.Extra) != 0 {
		t.Fatalf("expected variant spelling bound to sourceUrl only: %#v", code)
	}
	if result := store.Save(context.Background(), loaded, false); !result.Saved {
		t.Fatalf("expected save to succeed: %v", result.Err)
	}
	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}
	if strings.Count(string(raw), "http://x") != 1 || strings.Contains(string(raw), "sourceURL") {
		t.Fatalf("expected a single sourceUrl member, got:\n%s", raw)
	}
}
