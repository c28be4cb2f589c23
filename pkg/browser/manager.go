package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/gobwas/glob"

	"github.com/entrhq/timelog/pkg/config"
	"github.com/entrhq/timelog/pkg/logging"
	"github.com/entrhq/timelog/pkg/metadata"
	"github.com/entrhq/timelog/pkg/session"
)

var debugLog = logging.MustNew("browser")

// Manager acquires authenticated sessions on the time log site.
type Manager struct {
	driver Driver
	cache  *session.Cache

	formURL          string
	openFormSelector string
	loginPattern     glob.Glob
	operator         Credential
	launch           LaunchOptions
}

// NewManager creates a manager for cfg. The login pattern is compiled
// here so a bad pattern fails at startup rather than on first use.
func NewManager(driver Driver, cache *session.Cache, cfg *config.Config) (*Manager, error) {
	pattern, err := glob.Compile(cfg.Target.LoginPattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid login pattern %q: %w", cfg.Target.LoginPattern, err)
	}

	launch := LaunchOptions{
		Headless: cfg.Browser.Headless,
		Args:     cfg.Browser.Args,
		Timeout:  cfg.Browser.Timeout,
	}
	if gate := cfg.Credentials.Gate; !gate.Empty() {
		launch.HTTPCredentials = &Credential{Username: gate.Username, Password: gate.Password}
	}

	return &Manager{
		driver:           driver,
		cache:            cache,
		formURL:          cfg.Target.URL(cfg.Target.FormPath),
		openFormSelector: cfg.Target.OpenFormSelector,
		loginPattern:     pattern,
		operator: Credential{
			Username: cfg.Credentials.Operator.Username,
			Password: cfg.Credentials.Operator.Password,
		},
		launch: launch,
	}, nil
}

// Session is an acquired page with the entry form open.
type Session struct {
	page    Page
	state   SessionState
	cookies []session.Cookie

	closeOnce sync.Once
	closeErr  error
}

// Provider returns the metadata provider over the open form.
func (s *Session) Provider() metadata.Provider {
	return NewProvider(s.page)
}

// Cookies returns the cookie set captured once the form was open.
func (s *Session) Cookies() []session.Cookie {
	return s.cookies
}

// Snapshot returns the current HTML of the form page.
func (s *Session) Snapshot() (string, error) {
	content, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return content, nil
}

// State returns what the probe found before any login.
func (s *Session) State() SessionState {
	return s.state
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.page.Close()
	})
	return s.closeErr
}

// Acquire launches a browser, restores the cached session, logs in when
// the site asks for it and opens the entry form. The caller must Close
// the returned session.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	page, err := m.driver.Open(ctx, m.launch)
	if err != nil {
		return nil, err
	}

	acquired := false
	defer func() {
		if !acquired {
			if closeErr := page.Close(); closeErr != nil {
				debugLog.Warnf("failed to close browser: %v", closeErr)
			}
		}
	}()

	if cached := m.cache.Load(ctx); len(cached) > 0 {
		if err := page.AddCookies(cached); err != nil {
			// A session that cannot be restored is just a stale one.
			debugLog.Warnf("failed to restore %d cached cookies: %v", len(cached), err)
		} else {
			debugLog.Debugf("restored %d cached cookies", len(cached))
		}
	}

	if err := m.gotoForm(ctx, page); err != nil {
		return nil, err
	}

	state := m.probe(page)
	debugLog.Infof("session probe: %s (%s)", state, page.URL())

	if state == StateStale {
		if err := m.login(ctx, page); err != nil {
			return nil, err
		}
		if err := m.gotoForm(ctx, page); err != nil {
			return nil, err
		}
	}

	if err := m.openForm(page); err != nil {
		return nil, err
	}

	cookies, err := page.Cookies()
	if err != nil {
		return nil, err
	}

	acquired = true
	return &Session{page: page, state: state, cookies: cookies}, nil
}

func (m *Manager) gotoForm(ctx context.Context, page Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := page.Goto(m.formURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", m.formURL, err)
	}
	return nil
}

// probe classifies the current page. Landing on the login page is the
// only signal that the session is no longer valid.
func (m *Manager) probe(page Page) SessionState {
	if m.onLoginPage(page.URL()) {
		return StateStale
	}
	return StateFresh
}

func (m *Manager) onLoginPage(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	return m.loginPattern.Match(path)
}

func (m *Manager) login(ctx context.Context, page Page) error {
	present, err := page.Exists(EmailSelector)
	if err != nil {
		return &AuthenticationError{Reason: "login form lookup failed", Err: err}
	}
	if !present {
		return &AuthenticationError{Reason: "login form not found"}
	}

	debugLog.Infof("logging in as %s", m.operator.Username)

	if err := page.Fill(EmailSelector, m.operator.Username); err != nil {
		return &AuthenticationError{Reason: "filling email", Err: err}
	}
	if err := page.Fill(PasswordSelector, m.operator.Password); err != nil {
		return &AuthenticationError{Reason: "filling password", Err: err}
	}

	remember, err := page.Exists(RememberSelector)
	if err != nil {
		return &AuthenticationError{Reason: "remember me lookup failed", Err: err}
	}
	if remember {
		if err := page.Click(RememberSelector); err != nil {
			return &AuthenticationError{Reason: "checking remember me", Err: err}
		}
	}

	if err := page.Click(SubmitSelector); err != nil {
		return &AuthenticationError{Reason: "submitting login form", Err: err}
	}
	if err := page.WaitForNetworkIdle(); err != nil {
		return &AuthenticationError{Reason: "waiting for login", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := page.Reload(); err != nil {
		return fmt.Errorf("failed to reload after login: %w", err)
	}

	if m.onLoginPage(page.URL()) {
		return &AuthenticationError{Reason: "credentials rejected"}
	}

	cookies, err := page.Cookies()
	if err != nil {
		return err
	}
	if err := m.cache.Save(ctx, cookies); err != nil {
		// Non-fatal: the live page is still authenticated.
		debugLog.Warnf("%v", err)
	}
	return nil
}

// openForm renders the entry form and waits for its task select.
func (m *Manager) openForm(page Page) error {
	if m.openFormSelector != "" {
		present, err := page.Exists(m.openFormSelector)
		if err != nil {
			return err
		}
		if present {
			if err := page.Click(m.openFormSelector); err != nil {
				return fmt.Errorf("failed to open entry form: %w", err)
			}
		} else {
			debugLog.Debugf("open form control %q not present", m.openFormSelector)
		}
	}

	if err := page.WaitForAttached(TaskSelect); err != nil {
		return &metadata.ExtractionError{Element: "task_id[]", Err: err}
	}
	return nil
}
