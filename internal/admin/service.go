package admin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/gamecodebase/internal/audit"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/catalog"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/gitsync"
	"go.uber.org/zap"
)

var (
	errMissingStore = errors.New("admin: catalog store is required")
	// ErrSyncDisabled indicates a pull or push without a configured sync adapter.
	ErrSyncDisabled = errors.New("admin: sync is not configured")
	noOpLogger      = zap.NewNop()
)

// Level classifies a notice shown to the operator.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-visible message produced by an action.
type Notice struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Failure classifies why an action did not complete.
type Failure string

const (
	FailureNone       Failure = ""
	FailureValidation Failure = "validation"
	FailureNotFound   Failure = "not_found"
	FailureStale      Failure = "stale"
	FailureLoad       Failure = "load"
	FailureSave       Failure = "save"
	FailureSync       Failure = "sync"
)

// Response is what every action hands back to the caller.
type Response struct {
	OK      bool             `json:"ok"`
	Failure Failure          `json:"failure,omitempty"`
	Notices []Notice         `json:"notices"`
	Catalog *catalog.Catalog `json:"catalog,omitempty"`
}

// Store is the persistence the service drives; catalog.Store satisfies it.
type Store interface {
	Load() (*catalog.Catalog, error)
	Save(ctx context.Context, current *catalog.Catalog, autoPush bool) catalog.SaveResult
	Validate() error
}

// Syncer runs pull and push; gitsync.Adapter satisfies it.
type Syncer interface {
	Pull(ctx context.Context) gitsync.Result
	Push(ctx context.Context, message string) gitsync.Result
}

// AuditRecorder stores applied actions; audit.Service satisfies it.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// ChangeNotifier is told whenever the document changed on disk.
type ChangeNotifier interface {
	CatalogChanged(reason string)
}

// Observer receives action and sync outcomes; metrics.AdminMetrics satisfies it.
type Observer interface {
	ObserveAction(action, outcome string, elapsed time.Duration)
	ObserveSync(operation, step string, ok bool)
}

type ServiceConfig struct {
	Store    Store
	Syncer   Syncer
	Audit    AuditRecorder
	Notifier ChangeNotifier
	Observer Observer
	AutoPush bool
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service runs one load, mutate, save cycle per action.
type Service struct {
	mu       sync.Mutex
	store    Store
	syncer   Syncer
	audit    AuditRecorder
	notifier ChangeNotifier
	observer Observer
	autoPush bool
	clock    func() time.Time
	logger   *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:    cfg.Store,
		syncer:   cfg.Syncer,
		audit:    cfg.Audit,
		notifier: cfg.Notifier,
		observer: cfg.Observer,
		autoPush: cfg.AutoPush,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Dispatch loads the catalog, applies action and persists the result.
func (s *Service) Dispatch(ctx context.Context, action Action) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	response := s.dispatch(ctx, action)
	if s.observer != nil {
		s.observer.ObserveAction(action.Name(), string(response.Failure), time.Since(start))
	}
	return response
}

func (s *Service) dispatch(ctx context.Context, action Action) Response {
	var notices []Notice
	current, loadErr := s.store.Load()
	if loadErr != nil {
		if !errors.Is(loadErr, fs.ErrNotExist) {
			// An unreadable document is never overwritten.
			return Response{
				Failure: FailureLoad,
				Notices: []Notice{{Level: LevelError, Text: fmt.Sprintf("catalog could not be loaded, nothing changed: %v", loadErr)}},
				Catalog: current,
			}
		}
		notices = append(notices, Notice{Level: LevelWarning, Text: fmt.Sprintf("starting from an empty catalog: %v", loadErr)})
	}

	outcome, err := action.Apply(current, s.clock())
	if err != nil {
		failure, level := classify(err)
		s.logger.Info("action not applied",
			zap.String("action", action.Name()),
			zap.String("failure", string(failure)),
			zap.Error(err))
		notices = append(notices, Notice{Level: level, Text: err.Error()})
		return Response{Failure: failure, Notices: notices, Catalog: current}
	}

	saved := s.store.Save(ctx, current, s.autoPush)
	if saved.Push != nil {
		s.observeSync(audit.ActionPush, *saved.Push)
	}
	s.record(ctx, action.Name(), outcome, saved.Saved, saved.Pushed())
	if !saved.Saved {
		notices = append(notices, Notice{Level: LevelError, Text: fmt.Sprintf("save failed: %v", saved.Err)})
		return Response{Failure: FailureSave, Notices: notices, Catalog: current}
	}
	s.notify(action.Name())

	notices = append(notices, Notice{Level: LevelSuccess, Text: outcome.Message})
	if saved.Push != nil {
		notices = append(notices, pushNotice(*saved.Push))
	}
	return Response{OK: true, Notices: notices, Catalog: current}
}

// Pull fetches the remote document and returns the reloaded catalog.
func (s *Service) Pull(ctx context.Context) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncer == nil {
		return Response{Failure: FailureSync, Notices: []Notice{{Level: LevelError, Text: ErrSyncDisabled.Error()}}}
	}
	result := s.syncer.Pull(ctx)
	s.observeSync(audit.ActionPull, result)
	s.record(ctx, audit.ActionPull, Outcome{Detail: result.Message()}, false, false)

	reloaded, loadErr := s.store.Load()
	var notices []Notice
	if !result.OK {
		notices = append(notices, Notice{Level: LevelError, Text: "pull failed: " + result.Message()})
		return Response{Failure: FailureSync, Notices: notices, Catalog: reloaded}
	}
	s.notify(audit.ActionPull)
	notices = append(notices, Notice{Level: LevelSuccess, Text: "synced latest catalog from remote"})
	if loadErr != nil {
		notices = append(notices, Notice{Level: LevelWarning, Text: loadErr.Error()})
	}
	return Response{OK: true, Notices: notices, Catalog: reloaded}
}

// Push publishes the document as it is on disk.
func (s *Service) Push(ctx context.Context, message string) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncer == nil {
		return Response{Failure: FailureSync, Notices: []Notice{{Level: LevelError, Text: ErrSyncDisabled.Error()}}}
	}
	result := s.syncer.Push(ctx, message)
	s.observeSync(audit.ActionPush, result)
	s.record(ctx, audit.ActionPush, Outcome{Detail: result.Message()}, false, result.OK)
	if !result.OK {
		return Response{Failure: FailureSync, Notices: []Notice{{Level: LevelError, Text: "push failed: " + result.Message()}}}
	}
	return Response{OK: true, Notices: []Notice{{Level: LevelSuccess, Text: "pushed to remote"}}}
}

// Check validates the document on disk against the catalog schema without changing it.
func (s *Service) Check(ctx context.Context) Response {
	if err := s.store.Validate(); err != nil {
		failure := FailureValidation
		if !errors.Is(err, catalog.ErrSchemaViolation) {
			failure = FailureLoad
		}
		return Response{Failure: failure, Notices: []Notice{{Level: LevelError, Text: err.Error()}}}
	}
	return Response{OK: true, Notices: []Notice{{Level: LevelSuccess, Text: "catalog matches schema"}}}
}

func pushNotice(result gitsync.Result) Notice {
	if result.OK {
		return Notice{Level: LevelSuccess, Text: "pushed to remote"}
	}
	return Notice{Level: LevelWarning, Text: "saved locally, not pushed: " + result.Message()}
}

func classify(err error) (Failure, Level) {
	switch {
	case errors.Is(err, catalog.ErrNotPending):
		return FailureStale, LevelInfo
	case errors.Is(err, catalog.ErrGameNotFound), errors.Is(err, catalog.ErrCodeNotFound):
		return FailureNotFound, LevelError
	default:
		return FailureValidation, LevelError
	}
}

func (s *Service) record(ctx context.Context, action string, outcome Outcome, saved, pushed bool) {
	if s.audit == nil {
		return
	}
	_, err := s.audit.Record(ctx, audit.Entry{
		Action:   action,
		GameName: outcome.GameName,
		Code:     outcome.Code,
		Detail:   outcome.Detail,
		Saved:    saved,
		Pushed:   pushed,
	})
	if err != nil {
		s.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) observeSync(operation string, result gitsync.Result) {
	if s.observer != nil {
		s.observer.ObserveSync(operation, result.Step, result.OK)
	}
}

func (s *Service) notify(reason string) {
	if s.notifier != nil {
		s.notifier.CatalogChanged(reason)
	}
}
