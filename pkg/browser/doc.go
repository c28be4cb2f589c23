// Package browser acquires an authenticated page on the time log site.
//
// The package is built around two capabilities and one coordinator:
//
//  1. Driver: launches an isolated browser and returns a Page
//  2. Page: the handful of page operations the login and scrape flow needs
//  3. Manager: restores cached cookies, probes the session, logs in when it
//     is stale and opens the entry form
//
// # Session Lifecycle
//
// Every acquisition launches a fresh browser:
//
//  1. Restore: cookies from the session cache are added to the new context
//  2. Probe: the form page is loaded; a redirect to the login page means the
//     session is Stale, anything else means Fresh
//  3. Login: only when Stale; the new cookie set replaces the cached one
//  4. Open: the entry form is opened and its selects are awaited
//  5. Close: Session.Close shuts the browser down; callers close it before
//     any HTTP replay of the captured cookies
//
// A Fresh probe never touches the login form and never writes the cache.
//
// # Engines
//
// PlaywrightDriver is the production Driver. Tests substitute their own
// Driver and Page, so nothing outside playwright.go imports playwright-go.
package browser
