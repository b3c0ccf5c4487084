// Package sel matches CSS selector groups against x/net/html trees.
package sel

import (
	"fmt"
	"github.com/andybalholm/cascadia"
	"github.com/psilva261/lqueryfs/logger"
	"golang.org/x/net/html"
	"strings"
	"sync"
)

// Selector is a compiled comma separated selector group.
type Selector struct {
	src string
	g   cascadia.SelectorGroup
}

var cache sync.Map

// Compile parses s. Results are cached by selector text.
func Compile(s string) (Selector, error) {
	if v, ok := cache.Load(s); ok {
		return v.(Selector), nil
	}
	if strings.TrimSpace(s) == "" {
		return Selector{}, fmt.Errorf("selector %q: empty", s)
	}
	g, err := cascadia.ParseGroup(s)
	if err != nil {
		log.Printf("compile %q: %v", s, err)
		return Selector{}, fmt.Errorf("selector %q: %w", s, err)
	}
	sel := Selector{src: s, g: g}
	cache.Store(s, sel)
	return sel, nil
}

func MustCompile(s string) Selector {
	g, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return g
}

// Select returns the descendants of root matching s in document order.
func Select(s string, root *html.Node) ([]*html.Node, error) {
	g, err := Compile(s)
	if err != nil {
		return nil, err
	}
	return g.Select(root), nil
}

// Matches reports whether n matches s.
func Matches(s string, n *html.Node) (bool, error) {
	g, err := Compile(s)
	if err != nil {
		return false, err
	}
	return g.Match(n), nil
}

// Select returns matching descendants of root, each once, in document order.
func (g Selector) Select(root *html.Node) []*html.Node {
	if root == nil || g.g == nil {
		return nil
	}
	return cascadia.QueryAll(root, g.g)
}

func (g Selector) Match(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || g.g == nil {
		return false
	}
	return g.g.Match(n)
}

func (g Selector) String() string {
	return g.src
}
