package dom

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/psilva261/lqueryfs/dom/sel"
	"github.com/psilva261/lqueryfs/logger"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"strings"
)

var (
	ErrNoParent = errors.New("element has no parent")
	ErrPosition = errors.New("invalid insert position")
)

const (
	Loading     = "loading"
	Interactive = "interactive"
	Complete    = "complete"
)

// Document is an HTML tree plus the listeners registered on its nodes.
type Document struct {
	doc        *html.Node
	listeners  *NodeTable[registry]
	mutations  chan Mutation
	readyState string
	location   *Location
}

func NewDocument(doc *html.Node) (d *Document) {
	d = &Document{
		doc:        doc,
		listeners:  NewNodeTable[registry](),
		mutations:  make(chan Mutation, 10000),
		readyState: Loading,
	}
	return
}

// Parse parses a complete HTML page.
func Parse(htm string) (*Document, error) {
	doc, err := html.Parse(strings.NewReader(htm))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return NewDocument(doc), nil
}

// Element wraps the document node itself.
func (d *Document) Element() *Element {
	return d.getEl(d.doc)
}

func (d *Document) Doc() *html.Node {
	return d.doc
}

func (d *Document) DocumentElement() *Element {
	for c := d.doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.getEl(c)
		}
	}
	return nil
}

func (d *Document) Head() *Element {
	return d.getEl(grep(d.doc, "head"))
}

func (d *Document) Body() *Element {
	return d.getEl(grep(d.doc, "body"))
}

// EnsureHead returns <head>, creating it as the first child of <html> if
// the tree lacks one.
func (d *Document) EnsureHead() *Element {
	if h := d.Head(); h != nil {
		return h
	}
	root := d.DocumentElement()
	if root == nil {
		root = d.CreateElement("html")
		d.doc.AppendChild(root.n)
	}
	h := d.CreateElement("head")
	root.n.InsertBefore(h.n, root.n.FirstChild)
	addMutation(d, Insert, h.n)
	return h
}

func (d *Document) CreateElement(tag string) *Element {
	tag = strings.ToLower(tag)
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	return d.getEl(n)
}

func (d *Document) CreateTextNode(s string) *Element {
	return d.getEl(&html.Node{
		Type: html.TextNode,
		Data: s,
	})
}

func (d *Document) QuerySelector(s string) (*Element, error) {
	return d.Element().QuerySelector(s)
}

func (d *Document) QuerySelectorAll(s string) ([]*Element, error) {
	return d.Element().QuerySelectorAll(s)
}

// ParseFragment parses h in the context of ctx, or of <body> when ctx is not
// an element.
func (d *Document) ParseFragment(h string, ctx *Element) (els []*Element, err error) {
	var c *html.Node
	if ctx != nil && ctx.n.Type == html.ElementNode {
		c = ctx.n
	} else if b := grep(d.doc, "body"); b != nil {
		c = b
	} else {
		c = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	ns, err := html.ParseFragment(strings.NewReader(h), c)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	els = make([]*Element, 0, len(ns))
	for _, n := range ns {
		els = append(els, d.getEl(n))
	}
	return
}

func (d *Document) AddEventListener(t string, l *Listener) {
	d.Element().AddEventListener(t, l)
}

func (d *Document) RemoveEventListener(t string, l *Listener) {
	d.Element().RemoveEventListener(t, l)
}

func (d *Document) DispatchEvent(e *Event) bool {
	return d.Element().DispatchEvent(e)
}

func (d *Document) ReadyState() string {
	return d.readyState
}

// Close finishes loading and fires DOMContentLoaded and load.
func (d *Document) Close() (err error) {
	if d.readyState == Complete {
		return
	}
	d.readyState = Interactive
	d.DispatchEvent(NewEvent("readystatechange", EventInit{}))
	d.DispatchEvent(NewEvent("DOMContentLoaded", EventInit{}))
	d.readyState = Complete
	d.DispatchEvent(NewEvent("readystatechange", EventInit{}))
	d.DispatchEvent(NewEvent("load", EventInit{}))
	return
}

func (d *Document) Mutations() <-chan Mutation {
	return d.mutations
}

func (d *Document) OuterHTML() string {
	return render(d.doc)
}

// Wrap returns the Element for n, which must belong to d.
func (d *Document) Wrap(n *html.Node) *Element {
	return d.getEl(n)
}

// Element is a view on a node. Elements are not cached; two Elements are the
// same node iff IsSameNode reports so.
type Element struct {
	d *Document
	n *html.Node
}

func (d *Document) getEl(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return &Element{d: d, n: n}
}

func (el *Element) Node() *html.Node {
	return el.n
}

func (el *Element) OwnerDocument() *Document {
	return el.d
}

func (el *Element) IsSameNode(o *Element) bool {
	return o != nil && el.n == o.n
}

func (el *Element) TagName() string {
	if el.n.Type == html.DocumentNode {
		return "HTML"
	}
	return strings.ToUpper(el.n.Data)
}

func (el *Element) NodeName() string {
	switch el.n.Type {
	case html.CommentNode:
		return "#comment"
	case html.TextNode:
		return "#text"
	case html.DocumentNode:
		return "#document"
	}
	return strings.ToUpper(el.n.Data)
}

func (el *Element) NodeType() (i int) {
	switch el.n.Type {
	case html.ElementNode:
		i = 1
	case html.TextNode:
		i = 3
	case html.CommentNode:
		i = 8
	case html.DocumentNode:
		i = 9
	}
	return
}

func (el *Element) IsElement() bool {
	return el.n.Type == html.ElementNode
}

func (el *Element) Id() string {
	return attr(*el.n, "id")
}

func (el *Element) ClassName() string {
	return attr(*el.n, "class")
}

func (el *Element) GetAttribute(k string) (string, bool) {
	if !hasAttr(*el.n, k) {
		return "", false
	}
	return attr(*el.n, k), true
}

func (el *Element) HasAttribute(k string) bool {
	return hasAttr(*el.n, k)
}

func (el *Element) SetAttribute(k, v string) {
	setAttr(el.n, strings.ToLower(k), v)
	addMutation(el.d, ChAttr, el.n)
}

func (el *Element) RemoveAttribute(k string) {
	if rmAttr(el.n, strings.ToLower(k)) {
		addMutation(el.d, RmAttr, el.n)
	}
}

func (el *Element) InnerHTML() string {
	return renderInner(el.n)
}

func (el *Element) OuterHTML() string {
	return render(el.n)
}

func (el *Element) SetInnerHTML(h string) error {
	cs, err := el.d.ParseFragment(h, el)
	if err != nil {
		return fmt.Errorf("set inner html: %w", err)
	}
	for el.n.FirstChild != nil {
		el.n.RemoveChild(el.n.FirstChild)
	}
	for _, c := range cs {
		el.n.AppendChild(c.n)
	}
	addMutation(el.d, Value, el.n)
	return nil
}

func (el *Element) TextContent() string {
	var b strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(el.n)
	return b.String()
}

func (el *Element) SetTextContent(t string) {
	for el.n.FirstChild != nil {
		el.n.RemoveChild(el.n.FirstChild)
	}
	if t != "" {
		el.n.AppendChild(&html.Node{
			Type: html.TextNode,
			Data: t,
		})
	}
	addMutation(el.d, Value, el.n)
}

// Value follows form control semantics: <textarea> holds its value as text,
// <select> reports its selected option.
func (el *Element) Value() string {
	switch el.n.Data {
	case "textarea":
		return el.TextContent()
	case "select":
		var sel *html.Node
		for _, opt := range grepAll(el.n, "option", true) {
			if sel == nil || hasAttr(*opt, "selected") {
				sel = opt
			}
		}
		if sel == nil {
			return ""
		}
		if hasAttr(*sel, "value") {
			return attr(*sel, "value")
		}
		return el.d.getEl(sel).TextContent()
	}
	return attr(*el.n, "value")
}

func (el *Element) SetValue(v string) {
	switch el.n.Data {
	case "textarea":
		el.SetTextContent(v)
	case "select":
		for _, opt := range grepAll(el.n, "option", true) {
			ov := attr(*opt, "value")
			if !hasAttr(*opt, "value") {
				ov = el.d.getEl(opt).TextContent()
			}
			if ov == v {
				setAttr(opt, "selected", "")
			} else {
				rmAttr(opt, "selected")
			}
		}
		addMutation(el.d, ChAttr, el.n)
	default:
		el.SetAttribute("value", v)
	}
}

func (el *Element) Checked() bool {
	return hasAttr(*el.n, "checked")
}

func (el *Element) Parent() *Element {
	return el.d.getEl(el.n.Parent)
}

// ParentElement is like Parent but nil for the document node.
func (el *Element) ParentElement() *Element {
	if p := el.n.Parent; p != nil && p.Type == html.ElementNode {
		return el.d.getEl(p)
	}
	return nil
}

func (el *Element) FirstChild() *Element {
	return el.d.getEl(el.n.FirstChild)
}

func (el *Element) NextSibling() *Element {
	return el.d.getEl(el.n.NextSibling)
}

func (el *Element) PreviousSibling() *Element {
	return el.d.getEl(el.n.PrevSibling)
}

func (el *Element) ChildNodes() (cs []*Element) {
	for c := el.n.FirstChild; c != nil; c = c.NextSibling {
		cs = append(cs, el.d.getEl(c))
	}
	return
}

func (el *Element) Children() (cs []*Element) {
	for c := el.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			cs = append(cs, el.d.getEl(c))
		}
	}
	return
}

func (el *Element) Contains(o *Element) bool {
	if o == nil {
		return false
	}
	for p := o.n; p != nil; p = p.Parent {
		if p == el.n {
			return true
		}
	}
	return false
}

func (el *Element) Matches(s string) (bool, error) {
	ok, err := sel.Matches(s, el.n)
	if err != nil {
		return false, fmt.Errorf("matches: %w", err)
	}
	return ok, nil
}

func (el *Element) QuerySelector(s string) (*Element, error) {
	es, err := el.QuerySelectorAll(s)
	if err != nil || len(es) == 0 {
		return nil, err
	}
	return es[0], nil
}

func (el *Element) QuerySelectorAll(s string) (els []*Element, err error) {
	res, err := sel.Select(s, el.n)
	if err != nil {
		return nil, fmt.Errorf("query selector: %w", err)
	}
	els = make([]*Element, 0, len(res))
	for _, n := range res {
		els = append(els, el.d.getEl(n))
	}
	return
}

func (el *Element) detach() {
	if p := el.n.Parent; p != nil {
		p.RemoveChild(el.n)
		addMutation(el.d, Rm, p)
	}
}

// AppendChild moves c to the end of el's children.
func (el *Element) AppendChild(c *Element) *Element {
	return el.InsertBefore(c, nil)
}

// InsertBefore moves nu before ref, or to the end when ref is nil.
func (el *Element) InsertBefore(nu, ref *Element) *Element {
	if nu == nil {
		return nil
	}
	if nu.n == el.n || nu.Contains(el) {
		log.Errorf("insert before: hierarchy request")
		return nil
	}
	if ref != nil && ref.n == nu.n {
		return nu
	}
	nu.detach()
	if ref == nil || ref.n.Parent != el.n {
		el.n.AppendChild(nu.n)
	} else {
		el.n.InsertBefore(nu.n, ref.n)
	}
	addMutation(el.d, Insert, nu.n)
	return nu
}

func (el *Element) RemoveChild(c *Element) error {
	if c == nil || c.n.Parent != el.n {
		return fmt.Errorf("remove child: not a child")
	}
	el.n.RemoveChild(c.n)
	addMutation(el.d, Rm, el.n)
	return nil
}

// Remove detaches el from its parent.
func (el *Element) Remove() {
	el.detach()
}

// ReplaceWith puts ns where el was and detaches el.
func (el *Element) ReplaceWith(ns ...*Element) error {
	p := el.n.Parent
	if p == nil {
		return ErrNoParent
	}
	pe := el.d.getEl(p)
	for _, n := range ns {
		pe.InsertBefore(n, el)
	}
	el.detach()
	return nil
}

// InsertAdjacentHTML parses h and inserts the result at pos, one of
// beforebegin, afterbegin, beforeend, afterend.
func (el *Element) InsertAdjacentHTML(pos, h string) error {
	pos = strings.ToLower(pos)
	var ctx *Element
	switch pos {
	case "beforebegin", "afterend":
		ctx = el.ParentElement()
		if el.n.Parent == nil {
			return ErrNoParent
		}
	case "afterbegin", "beforeend":
		ctx = el
	default:
		return fmt.Errorf("%w: %v", ErrPosition, pos)
	}
	cs, err := el.d.ParseFragment(h, ctx)
	if err != nil {
		return err
	}
	return el.insertAdjacent(pos, cs)
}

// InsertAdjacentElement is InsertAdjacentHTML for an existing node.
func (el *Element) InsertAdjacentElement(pos string, c *Element) error {
	return el.insertAdjacent(strings.ToLower(pos), []*Element{c})
}

func (el *Element) insertAdjacent(pos string, cs []*Element) error {
	switch pos {
	case "beforebegin":
		p := el.Parent()
		if p == nil {
			return ErrNoParent
		}
		for _, c := range cs {
			p.InsertBefore(c, el)
		}
	case "afterbegin":
		ref := el.FirstChild()
		for _, c := range cs {
			el.InsertBefore(c, ref)
		}
	case "beforeend":
		for _, c := range cs {
			el.AppendChild(c)
		}
	case "afterend":
		p := el.Parent()
		if p == nil {
			return ErrNoParent
		}
		ref := el.NextSibling()
		for _, c := range cs {
			p.InsertBefore(c, ref)
		}
	default:
		return fmt.Errorf("%w: %v", ErrPosition, pos)
	}
	return nil
}

// CloneNode copies el, and its subtree when deep is set. Listeners are not
// copied.
func (el *Element) CloneNode(deep bool) *Element {
	return el.d.getEl(cloneNode(el.n, deep))
}

func cloneNode(n *html.Node, deep bool) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	if deep {
		for cc := n.FirstChild; cc != nil; cc = cc.NextSibling {
			c.AppendChild(cloneNode(cc, true))
		}
	}
	return c
}

func (el *Element) Style() *Style {
	return &Style{el: el}
}

// AddEventListener registers l for t. Registering the same listener twice
// registers it twice.
func (el *Element) AddEventListener(t string, l *Listener) {
	if l == nil {
		return
	}
	t = strings.ToLower(t)
	r, ok := el.d.listeners.Get(el.n)
	if !ok {
		r = make(registry)
		el.d.listeners.Set(el.n, r)
	}
	r.add(t, l)
}

// RemoveEventListener drops one registration of l for t.
func (el *Element) RemoveEventListener(t string, l *Listener) {
	r, ok := el.d.listeners.Get(el.n)
	if !ok {
		return
	}
	r.remove(strings.ToLower(t), l)
	if len(r) == 0 {
		el.d.listeners.Delete(el.n)
	}
}

// ListenerCount reports native registrations for t.
func (el *Element) ListenerCount(t string) int {
	r, ok := el.d.listeners.Get(el.n)
	if !ok {
		return 0
	}
	return len(r[strings.ToLower(t)])
}

func (el *Element) inputClick() {
	if hasAttr(*el.n, "disabled") {
		return
	}
	switch attr(*el.n, "type") {
	case "checkbox":
		if hasAttr(*el.n, "checked") {
			rmAttr(el.n, "checked")
		} else {
			setAttr(el.n, "checked", "")
		}
		addMutation(el.d, ChAttr, el.n)
	case "radio":
		setAttr(el.n, "checked", "")
		addMutation(el.d, ChAttr, el.n)
	}
}

// DispatchEvent runs the listeners of el and, for bubbling events, of its
// ancestors up to the document. It reports whether any listener ran.
func (el *Element) DispatchEvent(e *Event) bool {
	e.Type = strings.ToLower(e.Type)
	if e.Target == nil {
		e.Target = el
	}
	if e.Target.n == el.n {
		e.Phase = EvPhAtTarget
	} else {
		e.Phase = EvPhBubbling
	}
	e.CurrentTarget = el
	if r, ok := el.d.listeners.Get(el.n); ok {
		r.fire(e)
	}
	if e.Type == "click" && e.Phase == EvPhAtTarget && !e.DefaultPrevented && el.n.Data == "input" {
		el.inputClick()
	}
	if e.Bubbles && !e.propagationStopped {
		if p := el.n.Parent; p != nil {
			el.d.getEl(p).DispatchEvent(e)
		}
	}
	return e.Consumed
}

// Click dispatches a bubbling, cancelable click.
func (el *Element) Click() (consumed bool) {
	return el.DispatchEvent(NewEvent("click", EventInit{Bubbles: true, Cancelable: true}))
}

func (el *Element) Focus() bool {
	return el.DispatchEvent(NewEvent("focus", EventInit{}))
}

func (el *Element) Blur() bool {
	return el.DispatchEvent(NewEvent("blur", EventInit{}))
}

func (el *Element) String() string {
	if el == nil || el.n == nil {
		return "<nil>"
	}
	s := el.NodeName()
	if id := el.Id(); id != "" {
		s += "#" + id
	}
	return s
}

func grep(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := grep(c, tag); res != nil {
			return res
		}
	}
	return nil
}

func grepAll(n *html.Node, tag string, skipRoot bool) (all []*html.Node) {
	tag = strings.ToLower(tag)
	if n.Type == html.ElementNode && !skipRoot {
		if strings.ToLower(n.Data) == tag || tag == "*" {
			all = append(all, n)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		all = append(all, grepAll(c, tag, false)...)
	}
	return all
}

func attr(n html.Node, key string) (val string) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return
}

func hasAttr(n html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	newAttr := html.Attribute{
		Key: key,
		Val: val,
	}
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i] = newAttr
			return
		}
	}
	n.Attr = append(n.Attr, newAttr)
}

func rmAttr(n *html.Node, key string) bool {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

func render(n *html.Node) string {
	buf := bytes.NewBufferString("")
	if err := html.Render(buf, n); err != nil {
		log.Errorf("render: %v", err)
		return ""
	}
	return buf.String()
}

func renderInner(n *html.Node) string {
	buf := bytes.NewBufferString("")
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(buf, c); err != nil {
			log.Errorf("render inner: %v", err)
			return ""
		}
	}
	return buf.String()
}
