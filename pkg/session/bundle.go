// Package session persists the authenticated cookie set between runs.
//
// A Bundle is the only notion of "logged in" the system has. It is created
// by a successful login, saved through a Store, loaded at the start of each
// run and replaced the next time the target site redirects to its login
// page. There is no expiry check of its own.
package session

import (
	"strings"
	"time"
)

// Cookie is a browser cookie in a storage neutral shape.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Bundle is a captured authenticated session.
type Bundle struct {
	Cookies []Cookie  `json:"cookies"`
	SavedAt time.Time `json:"saved_at"`
}

// HeaderValue serializes cookies the way a Cookie request header expects:
// name=value pairs joined by "; ".
func HeaderValue(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
