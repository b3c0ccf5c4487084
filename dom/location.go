package dom

import (
	"fmt"
	"net/url"
)

// Location is the address a document was loaded from. Relative request
// URLs resolve against it.
type Location struct {
	Protocol string
	Host     string
	Hostname string
	Port     string
	Href     string
	Pathname string
	Search   string
	Hash     string

	u *url.URL
}

func NewLocation(origin string) (l *Location, err error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse %v: %w", origin, err)
	}
	l = &Location{
		Protocol: u.Scheme + ":",
		Host:     u.Host,
		Hostname: u.Hostname(),
		Port:     u.Port(),
		Href:     u.String(),
		Pathname: u.Path,
		u:        u,
	}
	if l.Pathname == "" {
		l.Pathname = "/"
	}
	if u.RawQuery != "" {
		l.Search = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		l.Hash = "#" + u.Fragment
	}
	if l.Port == "" {
		switch u.Scheme {
		case "http":
			l.Port = "80"
		case "https":
			l.Port = "443"
		}
	}
	return
}

// Origin is scheme://host[:port].
func (l *Location) Origin() string {
	return l.u.Scheme + "://" + l.u.Host
}

// Resolve makes ref absolute.
func (l *Location) Resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %v: %w", ref, err)
	}
	return l.u.ResolveReference(r).String(), nil
}

// SameOrigin reports whether ref, resolved against l, has l's origin.
func (l *Location) SameOrigin(ref string) bool {
	abs, err := l.Resolve(ref)
	if err != nil {
		return false
	}
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	o, err := NewLocation(u.String())
	if err != nil {
		return false
	}
	return u.Scheme == l.u.Scheme && u.Hostname() == l.Hostname && o.Port == l.Port
}

func (d *Document) Location() *Location {
	return d.location
}

func (d *Document) SetLocation(l *Location) {
	d.location = l
}
