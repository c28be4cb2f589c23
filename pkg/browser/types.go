package browser

import (
	"context"
	"time"

	"github.com/entrhq/timelog/pkg/metadata"
	"github.com/entrhq/timelog/pkg/session"
)

// SessionState is the result of the post navigation probe.
type SessionState int

const (
	// StateFresh means the cached cookies were accepted.
	StateFresh SessionState = iota

	// StateStale means the site redirected to its login page.
	StateStale
)

func (s SessionState) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Selectors of the login and entry forms.
const (
	EmailSelector    = `input[name="email"]`
	PasswordSelector = `input[name="password"]`
	RememberSelector = `input[name="remember"]`
	SubmitSelector   = `button[type="submit"]`
	TaskSelect       = `select[name="task_id[]"]`
)

// Default values for browser operations
const (
	DefaultTimeout = 30 * time.Second
)

// Credential is a username/password pair.
type Credential struct {
	Username string
	Password string
}

// LaunchOptions configures a new browser.
type LaunchOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Args are extra command line flags for the browser process
	Args []string

	// Timeout bounds every page operation (0 means DefaultTimeout)
	Timeout time.Duration

	// HTTPCredentials answer the site's HTTP basic-auth challenge
	HTTPCredentials *Credential
}

// Driver launches browsers.
type Driver interface {
	// Open launches an isolated browser and returns its only page.
	Open(ctx context.Context, opts LaunchOptions) (Page, error)

	// Close releases the engine. Pages opened by it must be closed first.
	Close() error
}

// Page is the subset of page automation the acquisition flow uses.
// Selector based lookups return metadata.ErrNotFound when nothing matches.
type Page interface {
	// Goto navigates and waits for the network to go idle.
	Goto(url string) error

	// URL returns the current page URL.
	URL() string

	// Exists reports whether an element matches selector.
	Exists(selector string) (bool, error)

	Fill(selector, value string) error
	Click(selector string) error

	// WaitForNetworkIdle waits for the navigation triggered by the last
	// interaction to settle.
	WaitForNetworkIdle() error

	Reload() error

	// WaitForAttached waits until an element matching selector is in the DOM.
	WaitForAttached(selector string) error

	// Attribute returns an attribute of the first matching element.
	Attribute(selector, name string) (string, error)

	// Options returns every element matching selector as an option. An
	// empty result is not an error.
	Options(selector string) ([]metadata.RawOption, error)

	// Content returns the serialized DOM.
	Content() (string, error)

	Cookies() ([]session.Cookie, error)
	AddCookies(cookies []session.Cookie) error

	// Close shuts the page down along with its browser.
	Close() error
}
