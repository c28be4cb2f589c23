package metadata

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Document is a Provider over a static HTML snapshot of the form page,
// such as a saved page or page.Content() output.
type Document struct {
	root *html.Node
}

// ParseDocument parses an HTML page.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{root: root}, nil
}

// parseDocumentString parses an HTML page held in a string.
func parseDocumentString(s string) (*Document, error) {
	return ParseDocument(strings.NewReader(s))
}

func (d *Document) Token() (string, error) {
	n := findFirst(d.root, func(n *html.Node) bool {
		return isElement(n, "input") && attr(n, "name") == "_token"
	})
	if n == nil {
		return "", ErrNotFound
	}
	return attr(n, "value"), nil
}

func (d *Document) TaskOptions() ([]RawOption, error) {
	return d.selectOptions("task_id[]")
}

func (d *Document) ActivityOptions() ([]RawOption, error) {
	return d.selectOptions("custom_fields_data[activity_1][]")
}

func (d *Document) ProfileHref() (string, error) {
	var href string
	findFirst(d.root, func(n *html.Node) bool {
		if !hasClass(n, "profile-box") {
			return false
		}
		link := findFirst(n, func(c *html.Node) bool {
			return isElement(c, "a") && strings.Contains(attr(c, "href"), "/account/employees/")
		})
		if link == nil {
			return false
		}
		href = attr(link, "href")
		return true
	})
	if href == "" {
		return "", ErrNotFound
	}
	return href, nil
}

// selectOptions returns the options of every <select> with the given name,
// in document order. No matching select yields ErrNotFound.
func (d *Document) selectOptions(name string) ([]RawOption, error) {
	selects := findAll(d.root, func(n *html.Node) bool {
		return isElement(n, "select") && attr(n, "name") == name
	})
	if len(selects) == 0 {
		return nil, ErrNotFound
	}

	var options []RawOption
	for _, sel := range selects {
		for _, opt := range findAll(sel, func(n *html.Node) bool { return isElement(n, "option") }) {
			options = append(options, RawOption{
				Value:   optionValue(opt),
				Content: attr(opt, "data-content"),
				Text:    textContent(opt),
			})
		}
	}
	return options, nil
}

// optionValue mirrors HTMLOptionElement.value: the value attribute, or the
// text when the attribute is absent.
func optionValue(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "value" {
			return a.Val
		}
	}
	return strings.TrimSpace(textContent(n))
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// findFirst returns the first descendant of n (n included) in document
// order for which match returns true.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
