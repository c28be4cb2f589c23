// Package timelog runs a whole submission: acquire a browser session,
// scrape the form, close the browser, reconcile the tasks and replay the
// form over HTTP.
package timelog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/entrhq/timelog/pkg/browser"
	"github.com/entrhq/timelog/pkg/config"
	"github.com/entrhq/timelog/pkg/logging"
	"github.com/entrhq/timelog/pkg/metadata"
	"github.com/entrhq/timelog/pkg/reconcile"
	"github.com/entrhq/timelog/pkg/session"
	"github.com/entrhq/timelog/pkg/submit"
	"github.com/entrhq/timelog/pkg/types"
)

var debugLog = logging.MustNew("timelog")

// Session is an acquired browser session with the entry form open.
type Session interface {
	Provider() metadata.Provider
	Cookies() []session.Cookie
	Snapshot() (string, error)
	Close() error
}

// Browser acquires sessions.
type Browser interface {
	Acquire(ctx context.Context) (Session, error)
}

// Submitter replays a built form.
type Submitter interface {
	Submit(ctx context.Context, env *types.SubmissionEnvelope, cookies []session.Cookie, gate config.BasicCredential) (*submit.Response, error)
}

// ManagerBrowser adapts a browser.Manager to Browser.
func ManagerBrowser(m *browser.Manager) Browser {
	return managerBrowser{m: m}
}

type managerBrowser struct {
	m *browser.Manager
}

func (b managerBrowser) Acquire(ctx context.Context) (Session, error) {
	s, err := b.m.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Service submits task batches. Calls are serialized: the session cache
// holds a single global session and every call may replace it.
type Service struct {
	mu sync.Mutex

	browser   Browser
	submitter Submitter
	cache     *session.Cache
	gate      config.BasicCredential
	reconcile reconcile.Options
	now       func() time.Time

	// snapshotDir receives the form page when extraction fails. Empty
	// disables snapshots.
	snapshotDir string
}

// NewService wires a service from its parts.
func NewService(b Browser, s Submitter, cache *session.Cache, cfg *config.Config) *Service {
	return &Service{
		browser:   b,
		submitter: s,
		cache:     cache,
		gate:      cfg.Credentials.Gate,
		reconcile: reconcile.Options{DefaultHours: cfg.Submission.DefaultHours},
		now:       time.Now,

		snapshotDir: snapshotDir(),
	}
}

func snapshotDir() string {
	dir, err := logging.GetLogDirectory()
	if err != nil {
		return ""
	}
	return dir
}

// Submit runs one batch and returns one result per task, in input order.
// The caller's slice is not modified. Matched tasks carry the endpoint's
// aggregate status; the rest carry types.TaskStatusUnmatched. When no task
// matches nothing is posted.
func (s *Service) Submit(ctx context.Context, tasks []types.TaskRequest) ([]types.TaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := append([]types.TaskRequest(nil), tasks...)

	meta, cookies, err := s.scrape(ctx)
	if err != nil {
		return nil, err
	}

	rows := reconcile.Reconcile(work, meta.AssignedTasks, meta.Activities, s.reconcile)
	debugLog.Infof("%d of %d tasks matched an assigned task", len(rows), len(work))

	status := ""
	if len(rows) > 0 {
		env := submit.NewEnvelope(meta, rows, s.now())
		resp, err := s.submitter.Submit(ctx, env, cookies, s.gate)
		if err != nil {
			return nil, fmt.Errorf("failed to submit time logs: %w", err)
		}
		status = resp.Status
	} else {
		debugLog.Warnf("no task matched; nothing submitted")
	}

	results := make([]types.TaskResult, 0, len(work))
	for _, task := range work {
		result := types.TaskResult{TaskRequest: task, Status: types.TaskStatusUnmatched}
		if task.Matched {
			result.Status = status
		}
		results = append(results, result)
	}
	return results, nil
}

// scrape acquires a session, extracts the form and closes the browser
// before returning, whatever the outcome.
func (s *Service) scrape(ctx context.Context) (*metadata.FormMetadata, []session.Cookie, error) {
	sess, err := s.browser.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire session: %w", err)
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			debugLog.Warnf("failed to close browser: %v", closeErr)
		}
	}()

	meta, err := metadata.Extract(sess.Provider())
	if err != nil {
		var extractionErr *metadata.ExtractionError
		if errors.As(err, &extractionErr) {
			s.saveSnapshot(sess)
		}
		return nil, nil, err
	}
	return meta, sess.Cookies(), nil
}

// saveSnapshot writes the page HTML next to the run's log file so the
// failed extraction can be replayed with timelog -inspect.
func (s *Service) saveSnapshot(sess Session) {
	if s.snapshotDir == "" {
		return
	}
	content, err := sess.Snapshot()
	if err != nil {
		debugLog.Warnf("failed to read form page: %v", err)
		return
	}
	path := filepath.Join(s.snapshotDir, fmt.Sprintf("%s-form.html", logging.GetRunID()))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		debugLog.Warnf("failed to save form page: %v", err)
		return
	}
	debugLog.Warnf("form page saved to %s, inspect it with: timelog -inspect %s", path, path)
}

// ClearSession drops the cached session so the next Submit logs in.
func (s *Service) ClearSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Clear(ctx)
}
