package lquery

import (
	"fmt"
	"github.com/psilva261/lqueryfs/dom"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"sort"
	"strings"
)

// Selection is an ordered set of elements. Setters apply to every element
// and return the selection; failures accumulate in Err.
type Selection struct {
	c   *Context
	els []*dom.Element
	err error
}

// Select queries the whole document.
func (c *Context) Select(sel string) *Selection {
	s := &Selection{c: c}
	els, err := c.doc.QuerySelectorAll(sel)
	if err != nil {
		return s.fail(err)
	}
	s.els = els
	return s
}

// Wrap makes a selection out of existing elements.
func (c *Context) Wrap(els ...*dom.Element) *Selection {
	s := &Selection{c: c}
	for _, el := range els {
		if el != nil {
			s.els = append(s.els, el)
		}
	}
	return s
}

// Err returns the errors collected so far.
func (s *Selection) Err() error {
	return s.err
}

func (s *Selection) fail(err error) *Selection {
	s.c.log.Debug("selection", zap.Error(err))
	s.err = multierr.Append(s.err, err)
	return s
}

func (s *Selection) derive(els []*dom.Element) *Selection {
	return &Selection{c: s.c, els: els}
}

func (s *Selection) Context() *Context {
	return s.c
}

func (s *Selection) Len() int {
	return len(s.els)
}

func (s *Selection) Elements() []*dom.Element {
	return append([]*dom.Element(nil), s.els...)
}

// Get returns the i-th element; negative indexes count from the end.
func (s *Selection) Get(i int) *dom.Element {
	if i < 0 {
		i += len(s.els)
	}
	if i < 0 || i >= len(s.els) {
		return nil
	}
	return s.els[i]
}

func (s *Selection) First() *Selection {
	if len(s.els) == 0 {
		return s.derive(nil)
	}
	return s.derive(s.els[:1])
}

func (s *Selection) Each(fn func(i int, el *dom.Element)) *Selection {
	for i, el := range s.els {
		fn(i, el)
	}
	return s
}

// Find selects descendants of the selected elements.
func (s *Selection) Find(sel string) *Selection {
	res := s.derive(nil)
	seen := make(map[*html.Node]bool)
	for _, el := range s.els {
		es, err := el.QuerySelectorAll(sel)
		if err != nil {
			return res.fail(err)
		}
		for _, e := range es {
			if !seen[e.Node()] {
				seen[e.Node()] = true
				res.els = append(res.els, e)
			}
		}
	}
	return res
}

// OuterHTML concatenates the outer HTML of all elements.
func (s *Selection) OuterHTML() string {
	var b strings.Builder
	for _, el := range s.els {
		b.WriteString(el.OuterHTML())
	}
	return b.String()
}

// HTML returns the inner HTML of the first element.
func (s *Selection) HTML() string {
	if len(s.els) == 0 {
		return ""
	}
	return s.els[0].InnerHTML()
}

func (s *Selection) HTMLAll() (res []string) {
	for _, el := range s.els {
		res = append(res, el.InnerHTML())
	}
	return
}

func (s *Selection) SetHTML(h string) *Selection {
	for _, el := range s.els {
		s.forgetChildren(el)
		if err := el.SetInnerHTML(h); err != nil {
			s.fail(err)
		}
	}
	return s
}

// Text returns the text content of the first element.
func (s *Selection) Text() string {
	if len(s.els) == 0 {
		return ""
	}
	return s.els[0].TextContent()
}

func (s *Selection) TextAll() (res []string) {
	for _, el := range s.els {
		res = append(res, el.TextContent())
	}
	return
}

func (s *Selection) SetText(t string) *Selection {
	for _, el := range s.els {
		s.forgetChildren(el)
		el.SetTextContent(t)
	}
	return s
}

// Val returns the form value of the first element.
func (s *Selection) Val() string {
	if len(s.els) == 0 {
		return ""
	}
	return s.els[0].Value()
}

func (s *Selection) ValAll() (res []string) {
	for _, el := range s.els {
		res = append(res, el.Value())
	}
	return
}

func (s *Selection) SetVal(v string) *Selection {
	for _, el := range s.els {
		el.SetValue(v)
	}
	return s
}

// Attr returns an attribute of the first element.
func (s *Selection) Attr(name string) (string, bool) {
	if len(s.els) == 0 {
		return "", false
	}
	return s.els[0].GetAttribute(name)
}

func (s *Selection) AttrAll(name string) (res []string) {
	for _, el := range s.els {
		v, _ := el.GetAttribute(name)
		res = append(res, v)
	}
	return
}

func (s *Selection) SetAttr(name, value string) *Selection {
	if name == "" {
		return s.fail(fmt.Errorf("set attr: empty name"))
	}
	for _, el := range s.els {
		el.SetAttribute(name, value)
	}
	return s
}

func (s *Selection) RemoveAttr(name string) *Selection {
	for _, el := range s.els {
		el.RemoveAttribute(name)
	}
	return s
}

// CSS sets one inline style property. An empty value removes it.
func (s *Selection) CSS(prop, value string) *Selection {
	for _, el := range s.els {
		el.Style().Set(prop, value)
	}
	return s
}

// CSSMap sets several inline style properties, in name order.
func (s *Selection) CSSMap(props map[string]string) *Selection {
	ks := make([]string, 0, len(props))
	for k := range props {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	for _, k := range ks {
		s.CSS(k, props[k])
	}
	return s
}

// CSSValue reads an inline style property of every element.
func (s *Selection) CSSValue(prop string) (res []string) {
	for _, el := range s.els {
		res = append(res, el.Style().Get(prop))
	}
	return
}

func (s *Selection) insertHTML(pos, h string) *Selection {
	for _, el := range s.els {
		if err := el.InsertAdjacentHTML(pos, h); err != nil {
			s.fail(fmt.Errorf("%v: %w", pos, err))
		}
	}
	return s
}

// insertElement puts nu at pos of every element. All targets but the last
// get a deep copy; the last one gets nu itself.
func (s *Selection) insertElement(pos string, nu *dom.Element) *Selection {
	if nu == nil {
		return s.fail(fmt.Errorf("%v: nil element", pos))
	}
	for i, el := range s.els {
		c := nu
		if i < len(s.els)-1 {
			c = nu.CloneNode(true)
		}
		if err := el.InsertAdjacentElement(pos, c); err != nil {
			s.fail(fmt.Errorf("%v: %w", pos, err))
		}
	}
	return s
}

func (s *Selection) Append(h string) *Selection {
	return s.insertHTML("beforeend", h)
}

func (s *Selection) AppendElement(el *dom.Element) *Selection {
	return s.insertElement("beforeend", el)
}

func (s *Selection) Prepend(h string) *Selection {
	return s.insertHTML("afterbegin", h)
}

func (s *Selection) PrependElement(el *dom.Element) *Selection {
	return s.insertElement("afterbegin", el)
}

func (s *Selection) After(h string) *Selection {
	return s.insertHTML("afterend", h)
}

func (s *Selection) AfterElement(el *dom.Element) *Selection {
	return s.insertElement("afterend", el)
}

func (s *Selection) Before(h string) *Selection {
	return s.insertHTML("beforebegin", h)
}

func (s *Selection) BeforeElement(el *dom.Element) *Selection {
	return s.insertElement("beforebegin", el)
}

func (s *Selection) forgetChildren(el *dom.Element) {
	for _, c := range el.ChildNodes() {
		s.c.tracker.ForgetTree(c)
	}
}

// Remove detaches the elements and drops the listeners tracked on them and
// their descendants.
func (s *Selection) Remove() *Selection {
	for _, el := range s.els {
		s.c.tracker.ForgetTree(el)
		el.Remove()
	}
	return s
}

// RemoveMatching removes the descendants matching sel.
func (s *Selection) RemoveMatching(sel string) *Selection {
	return s.Find(sel).Remove()
}

// Detach is Remove without forgetting listeners, for elements that are
// inserted again later.
func (s *Selection) Detach() *Selection {
	for _, el := range s.els {
		el.Remove()
	}
	return s
}

func (s *Selection) Empty() *Selection {
	for _, el := range s.els {
		s.forgetChildren(el)
		for _, c := range el.ChildNodes() {
			c.Remove()
		}
	}
	return s
}

// Wrap puts all elements into one new tag element at the position of the
// first element.
func (s *Selection) Wrap(tag string) *Selection {
	if tag == "" {
		return s.fail(fmt.Errorf("wrap: empty tag"))
	}
	return s.WrapElement(s.c.doc.CreateElement(tag))
}

// WrapElement is Wrap with an existing wrapper.
func (s *Selection) WrapElement(w *dom.Element) *Selection {
	if len(s.els) == 0 {
		return s
	}
	if w == nil {
		return s.fail(fmt.Errorf("wrap: nil element"))
	}
	for _, el := range s.els {
		if el.Contains(w) {
			return s.fail(fmt.Errorf("wrap: wrapper inside %v", el))
		}
	}
	first := s.els[0]
	if p := first.Parent(); p != nil {
		p.InsertBefore(w, first)
	}
	for _, el := range s.els {
		w.AppendChild(el)
	}
	return s
}

// Clone deep copies the elements. With events, tracked listeners are copied
// onto the corresponding cloned nodes.
func (s *Selection) Clone(withEvents bool) *Selection {
	cs := make([]*dom.Element, 0, len(s.els))
	for _, el := range s.els {
		c := el.CloneNode(true)
		if withEvents {
			s.c.tracker.CopyTree(el, c)
		}
		cs = append(cs, c)
	}
	return s.derive(cs)
}

// ReplaceWithHTML replaces every element with the parsed fragment h.
func (s *Selection) ReplaceWithHTML(h string) *Selection {
	for _, el := range s.els {
		p := el.ParentElement()
		cs, err := s.c.doc.ParseFragment(h, p)
		if err != nil {
			s.fail(err)
			continue
		}
		s.c.tracker.ForgetTree(el)
		if err := el.ReplaceWith(cs...); err != nil {
			s.fail(fmt.Errorf("replace with: %w", err))
		}
	}
	return s
}

// ReplaceWith moves the elements of o to where the first selected element
// is and removes the selection.
func (s *Selection) ReplaceWith(o *Selection) *Selection {
	if o == nil || len(s.els) == 0 {
		return s
	}
	first := s.els[0]
	p := first.Parent()
	if p == nil {
		return s.fail(fmt.Errorf("replace with: %w", dom.ErrNoParent))
	}
	for _, nu := range o.els {
		for _, el := range s.els {
			if nu.IsSameNode(el) {
				return s.fail(fmt.Errorf("replace with: %v replaces itself", el))
			}
		}
		p.InsertBefore(nu, first)
	}
	return s.Remove()
}
