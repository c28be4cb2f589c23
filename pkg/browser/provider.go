package browser

import "github.com/entrhq/timelog/pkg/metadata"

// pageProvider reads form metadata from a live page.
type pageProvider struct {
	page Page
}

// NewProvider returns a metadata.Provider backed by page.
func NewProvider(page Page) metadata.Provider {
	return pageProvider{page: page}
}

func (p pageProvider) Token() (string, error) {
	return p.page.Attribute(metadata.TokenSelector, "value")
}

func (p pageProvider) TaskOptions() ([]metadata.RawOption, error) {
	return p.page.Options(metadata.TaskSelector)
}

func (p pageProvider) ActivityOptions() ([]metadata.RawOption, error) {
	return p.page.Options(metadata.ActivitySelector)
}

func (p pageProvider) ProfileHref() (string, error) {
	return p.page.Attribute(metadata.ProfileSelector, "href")
}
