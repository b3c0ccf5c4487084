// Package events keeps track of the listeners registered through lQuery so
// they can be removed by identity and copied onto clones.
package events

import (
	"github.com/psilva261/lqueryfs/dom"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"strings"
)

// Entry is one tracked registration.
type Entry struct {
	Type     string
	Listener *dom.Listener
}

// Tracker maps nodes to the listeners registered on them. Nodes are keyed
// weakly, so the entry of a collected node disappears on its own. A listener
// that references its own element keeps that element reachable though, and
// its entry only goes away through Forget or ForgetTree, which lQuery calls
// when it removes or replaces elements.
type Tracker struct {
	log     *zap.Logger
	entries *dom.NodeTable[[]Entry]
}

func New(log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		log:     log.Named("events"),
		entries: dom.NewNodeTable[[]Entry](),
	}
}

// Add registers l natively and records it. Adding the same pair twice
// records it twice.
func (t *Tracker) Add(el *dom.Element, typ string, l *dom.Listener) {
	if el == nil || l == nil {
		return
	}
	typ = strings.ToLower(typ)
	el.AddEventListener(typ, l)
	es, _ := t.entries.Get(el.Node())
	es = append(es, Entry{Type: typ, Listener: l})
	t.entries.Set(el.Node(), es)
	t.log.Debug("add", zap.Stringer("el", el), zap.String("type", typ), zap.Int("tracked", len(es)))
}

// Remove unregisters l and drops the first matching entry. Unknown nodes and
// listeners are ignored; listeners registered without the tracker stay.
func (t *Tracker) Remove(el *dom.Element, typ string, l *dom.Listener) {
	if el == nil {
		return
	}
	typ = strings.ToLower(typ)
	es, ok := t.entries.Get(el.Node())
	if !ok {
		return
	}
	el.RemoveEventListener(typ, l)
	for i, e := range es {
		if e.Type == typ && e.Listener == l {
			rest := make([]Entry, 0, len(es)-1)
			rest = append(rest, es[:i]...)
			rest = append(rest, es[i+1:]...)
			t.store(el.Node(), rest)
			t.log.Debug("remove", zap.Stringer("el", el), zap.String("type", typ), zap.Int("tracked", len(rest)))
			return
		}
	}
}

// Copy adds every entry of src to dst, in order.
func (t *Tracker) Copy(src, dst *dom.Element) {
	if src == nil || dst == nil {
		return
	}
	for _, e := range t.Listeners(src) {
		t.Add(dst, e.Type, e.Listener)
	}
}

// CopyTree copies entries between two structurally identical subtrees, as
// produced by a deep clone.
func (t *Tracker) CopyTree(src, dst *dom.Element) {
	if src == nil || dst == nil {
		return
	}
	t.Copy(src, dst)
	sc, dc := src.ChildNodes(), dst.ChildNodes()
	for i := 0; i < len(sc) && i < len(dc); i++ {
		t.CopyTree(sc[i], dc[i])
	}
}

// Listeners returns a snapshot of the entries of el.
func (t *Tracker) Listeners(el *dom.Element) []Entry {
	if el == nil {
		return nil
	}
	es, ok := t.entries.Get(el.Node())
	if !ok {
		return nil
	}
	return append([]Entry(nil), es...)
}

// Forget unregisters everything tracked on el and drops its entry.
func (t *Tracker) Forget(el *dom.Element) {
	if el == nil {
		return
	}
	es, ok := t.entries.Get(el.Node())
	if !ok {
		return
	}
	for _, e := range es {
		el.RemoveEventListener(e.Type, e.Listener)
	}
	t.entries.Delete(el.Node())
	t.log.Debug("forget", zap.Stringer("el", el), zap.Int("dropped", len(es)))
}

// ForgetTree applies Forget to el and all its descendants.
func (t *Tracker) ForgetTree(el *dom.Element) {
	if el == nil {
		return
	}
	t.Forget(el)
	for _, c := range el.ChildNodes() {
		t.ForgetTree(c)
	}
}

// Len is the number of nodes with tracked listeners.
func (t *Tracker) Len() int {
	return t.entries.Len()
}

func (t *Tracker) store(n *html.Node, es []Entry) {
	if len(es) == 0 {
		t.entries.Delete(n)
		return
	}
	t.entries.Set(n, es)
}
