package dom

import (
	"golang.org/x/net/html"
	"strconv"
	"strings"
	"time"
)

type MutationType int

const (
	Value  MutationType = 1
	ChAttr MutationType = 2
	RmAttr MutationType = 3
	Rm     MutationType = 4
	Mv     MutationType = 5
	Insert MutationType = 6
)

func (t MutationType) String() string {
	switch t {
	case Value:
		return "Value"
	case ChAttr:
		return "Attr"
	case RmAttr:
		return "RmAttr"
	case Rm:
		return "Rm"
	case Mv:
		return "Mv"
	case Insert:
		return "Insert"
	}
	return ""
}

type Mutation struct {
	Time time.Time         `json:"time"`
	Type MutationType      `json:"type"`
	Path string            `json:"path"`
	Tag  string            `json:"tag"`
	Node map[string]string `json:"node"`
}

// addMutation can be called after changing the node tree. The feed drops
// records when nobody drains it.
func addMutation(d *Document, t MutationType, n *html.Node) {
	if d == nil {
		return
	}
	m := Mutation{
		Time: time.Now(),
		Type: t,
		Node: map[string]string{},
	}
	if n != nil {
		if n.Type == html.ElementNode {
			m.Tag = n.Data
		}
		for _, a := range n.Attr {
			m.Node[a.Key] = a.Val
		}
		if n.Data == "script" || n.Data == "style" {
			m.Node["innerHTML"] = renderInner(n)
		}
		m.Path, _ = path(n)
	}
	select {
	case d.mutations <- m:
	default:
	}
}

// path addresses n by element/text child indexes below <body>, which is /0.
func path(n *html.Node) (pth string, ok bool) {
	if n == nil {
		return
	}
	if n.Type == html.ElementNode && n.Data == "body" {
		return "/0", true
	}
	p := n.Parent
	if p == nil {
		return
	}
	i := 0
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		if c == n {
			pre, ok := path(p)
			if !ok {
				return "", false
			}
			return pre + "/" + strconv.Itoa(i), true
		}
		if c.Type == html.ElementNode || (c.Type == html.TextNode && strings.TrimSpace(c.Data) != "") {
			i++
		}
	}
	return
}

// Path returns the body-relative address of el, if el is inside <body>.
func (el *Element) Path() (string, bool) {
	return path(el.n)
}
