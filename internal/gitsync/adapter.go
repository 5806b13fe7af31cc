package gitsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBinary = "git"
	defaultRemote = "origin"
	defaultBranch = "main"

	StepPull   = "pull"
	StepAdd    = "add"
	StepCommit = "commit"
	StepPush   = "push"
)

var (
	errMissingDocumentPath = errors.New("gitsync: document path is required")
	noOpLogger             = zap.NewNop()
)

// nothingChangedMarkers identify a commit that failed only because nothing was staged.
var nothingChangedMarkers = []string{"nothing to commit", "nothing added to commit"}

// Config describes how the adapter reaches the repository holding the catalog.
type Config struct {
	Binary       string
	WorkDir      string
	Remote       string
	Branch       string
	DocumentPath string
	Runner       Runner
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Result reports the outcome of a pull or push.
type Result struct {
	OK     bool
	Step   string
	Output string
	Err    error
}

// Message renders the diagnostic text surfaced to the operator.
func (r Result) Message() string {
	if r.OK {
		return strings.TrimSpace(r.Output)
	}
	if text := strings.TrimSpace(r.Output); text != "" {
		return text
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return "unknown failure"
}

// Adapter runs pull and push against the remote's main line.
type Adapter struct {
	binary       string
	workDir      string
	remote       string
	branch       string
	documentPath string
	runner       Runner
	clock        func() time.Time
	logger       *zap.Logger
}

// NewAdapter validates cfg and fills defaults.
func NewAdapter(cfg Config) (*Adapter, error) {
	documentPath := strings.TrimSpace(cfg.DocumentPath)
	if documentPath == "" {
		return nil, errMissingDocumentPath
	}
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = defaultBinary
	}
	remote := strings.TrimSpace(cfg.Remote)
	if remote == "" {
		remote = defaultRemote
	}
	branch := strings.TrimSpace(cfg.Branch)
	if branch == "" {
		branch = defaultBranch
	}
	runner := cfg.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Adapter{
		binary:       binary,
		workDir:      cfg.WorkDir,
		remote:       remote,
		branch:       branch,
		documentPath: documentPath,
		runner:       runner,
		clock:        clock,
		logger:       logger,
	}, nil
}

// Pull fetches and merges the remote main line.
func (a *Adapter) Pull(ctx context.Context) Result {
	output, err := a.run(ctx, StepPull, "pull", a.remote, a.branch)
	if err != nil {
		return a.failure(StepPull, output, err)
	}
	a.logger.Info("catalog pulled", zap.String("remote", a.remote), zap.String("branch", a.branch))
	return Result{OK: true, Step: StepPull, Output: output.Stdout}
}

// Push stages the document only, commits it and publishes to the remote.
// An empty message is replaced by a timestamped default.
func (a *Adapter) Push(ctx context.Context, message string) Result {
	if strings.TrimSpace(message) == "" {
		message = DefaultCommitMessage(a.clock())
	}

	if output, err := a.run(ctx, StepAdd, "add", a.documentPath); err != nil {
		return a.failure(StepAdd, output, err)
	}

	output, err := a.run(ctx, StepCommit, "commit", "-m", message)
	if err != nil {
		if !nothingChanged(output) {
			return a.failure(StepCommit, output, err)
		}
		a.logger.Debug("nothing to commit, publishing anyway")
	}

	output, err = a.run(ctx, StepPush, "push", a.remote, a.branch)
	if err != nil {
		return a.failure(StepPush, output, err)
	}
	a.logger.Info("catalog pushed",
		zap.String("remote", a.remote),
		zap.String("branch", a.branch),
		zap.String("message", message))
	return Result{OK: true, Step: StepPush, Output: output.Stdout}
}

// DefaultCommitMessage is used when push is called without a message.
func DefaultCommitMessage(now time.Time) string {
	return "Update - " + now.Format("2006-01-02 15:04")
}

func (a *Adapter) run(ctx context.Context, step string, args ...string) (CommandOutput, error) {
	output, err := a.runner.Run(ctx, a.workDir, a.binary, args...)
	if err == nil && output.ExitCode != 0 {
		err = fmt.Errorf("git %s exited with status %d", step, output.ExitCode)
	}
	return output, err
}

func (a *Adapter) failure(step string, output CommandOutput, err error) Result {
	diagnostic := strings.TrimSpace(output.Stderr)
	if diagnostic == "" {
		diagnostic = strings.TrimSpace(output.Stdout)
	}
	a.logger.Warn("git step failed",
		zap.String("step", step),
		zap.Int("exit_code", output.ExitCode),
		zap.String("diagnostic", diagnostic),
		zap.Error(err))
	return Result{OK: false, Step: step, Output: diagnostic, Err: err}
}

func nothingChanged(output CommandOutput) bool {
	text := strings.ToLower(output.Stdout + "\n" + output.Stderr)
	for _, marker := range nothingChangedMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
