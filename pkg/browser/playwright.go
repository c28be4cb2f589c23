package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/timelog/pkg/metadata"
	"github.com/entrhq/timelog/pkg/session"
)

// optionsScript maps <option> elements to plain objects.
const optionsScript = `els => els.map(el => ({
	value: el.getAttribute('value') ?? el.value ?? '',
	content: el.getAttribute('data-content') ?? '',
	text: el.textContent ?? ''
}))`

// PlaywrightDriver launches Chromium through playwright-go. The driver
// process is started on the first Open and reused until Close.
type PlaywrightDriver struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	install bool
}

// NewPlaywrightDriver creates a driver. When install is set the browser
// binaries are downloaded before first use.
func NewPlaywrightDriver(install bool) *PlaywrightDriver {
	return &PlaywrightDriver{install: install}
}

func (d *PlaywrightDriver) start() (*playwright.Playwright, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pw != nil {
		return d.pw, nil
	}

	// Keep the driver quiet
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if d.install {
		if err := playwright.Install(opts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	d.pw = pw
	return pw, nil
}

// Open implements Driver.
func (d *PlaywrightDriver) Open(ctx context.Context, opts LaunchOptions) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := d.start()
	if err != nil {
		return nil, err
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.HTTPCredentials != nil {
		contextOpts.HttpCredentials = &playwright.HttpCredentials{
			Username: opts.HTTPCredentials.Username,
			Password: opts.HTTPCredentials.Password,
		}
	}
	browserContext, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := browserContext.NewPage()
	if err != nil {
		browserContext.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	p := &playwrightPage{browser: browser, context: browserContext, page: page}
	// Cancelling ctx kills the browser, which fails any pending wait.
	p.stop = context.AfterFunc(ctx, func() { _ = browser.Close() })
	return p, nil
}

// Close stops the playwright driver process.
func (d *PlaywrightDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pw == nil {
		return nil
	}
	err := d.pw.Stop()
	d.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

var (
	_ Driver = (*PlaywrightDriver)(nil)
	_ Page   = (*playwrightPage)(nil)
)

type playwrightPage struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	stop    func() bool
}

func networkIdle() *playwright.WaitUntilState {
	waitUntil := playwright.WaitUntilState("networkidle")
	return &waitUntil
}

func (p *playwrightPage) Goto(url string) error {
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{WaitUntil: networkIdle()}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Exists(selector string) (bool, error) {
	element, err := p.page.QuerySelector(selector)
	if err != nil {
		return false, fmt.Errorf("selector query failed: %w", err)
	}
	return element != nil, nil
}

func (p *playwrightPage) Fill(selector, value string) error {
	if err := p.page.Fill(selector, value); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Click(selector string) error {
	if err := p.page.Click(selector); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) WaitForNetworkIdle() error {
	state := playwright.LoadState("networkidle")
	if err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: &state}); err != nil {
		return fmt.Errorf("wait for network idle failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Reload() error {
	if _, err := p.page.Reload(playwright.PageReloadOptions{WaitUntil: networkIdle()}); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) WaitForAttached(selector string) error {
	state := playwright.WaitForSelectorState("attached")
	if _, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{State: &state}); err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Attribute(selector, name string) (string, error) {
	element, err := p.page.QuerySelector(selector)
	if err != nil {
		return "", fmt.Errorf("selector query failed: %w", err)
	}
	if element == nil {
		return "", metadata.ErrNotFound
	}
	value, err := element.GetAttribute(name)
	if err != nil {
		return "", fmt.Errorf("failed to read %s of %s: %w", name, selector, err)
	}
	return value, nil
}

func (p *playwrightPage) Options(selector string) ([]metadata.RawOption, error) {
	result, err := p.page.EvalOnSelectorAll(selector, optionsScript)
	if err != nil {
		return nil, fmt.Errorf("failed to read options of %s: %w", selector, err)
	}
	return toRawOptions(result)
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Cookies() ([]session.Cookie, error) {
	cookies, err := p.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return fromPlaywrightCookies(cookies), nil
}

func (p *playwrightPage) AddCookies(cookies []session.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	if err := p.context.AddCookies(toPlaywrightCookies(cookies)); err != nil {
		return fmt.Errorf("failed to add cookies: %w", err)
	}
	return nil
}

func (p *playwrightPage) Close() error {
	if p.stop != nil {
		p.stop()
	}
	// Close Playwright resources, continuing past failures
	_ = p.page.Close()
	_ = p.context.Close()
	if err := p.browser.Close(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// toRawOptions converts the result of optionsScript.
func toRawOptions(result interface{}) ([]metadata.RawOption, error) {
	if result == nil {
		return []metadata.RawOption{}, nil
	}
	items, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected options result %T", result)
	}

	options := make([]metadata.RawOption, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected option %d: %T", i, item)
		}
		options = append(options, metadata.RawOption{
			Value:   stringField(fields, "value"),
			Content: stringField(fields, "content"),
			Text:    stringField(fields, "text"),
		})
	}
	return options, nil
}

func stringField(fields map[string]interface{}, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

func toPlaywrightCookies(cookies []session.Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(c.Path),
			HttpOnly: playwright.Bool(c.HTTPOnly),
			Secure:   playwright.Bool(c.Secure),
		}
		// Session cookies carry -1, which must not be sent back
		if c.Expires > 0 {
			cookie.Expires = playwright.Float(c.Expires)
		}
		if c.SameSite != "" {
			sameSite := playwright.SameSiteAttribute(c.SameSite)
			cookie.SameSite = &sameSite
		}
		out = append(out, cookie)
	}
	return out
}

func fromPlaywrightCookies(cookies []playwright.Cookie) []session.Cookie {
	out := make([]session.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			cookie.SameSite = string(*c.SameSite)
		}
		out = append(out, cookie)
	}
	return out
}
