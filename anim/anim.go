// Package anim injects CSS keyframe rules into a document and applies them
// to elements through their inline animation property.
package anim

import (
	"errors"
	"fmt"
	"github.com/psilva261/lqueryfs/dom"
	"go.uber.org/zap"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ManagedAttr marks the <style> element owned by the registrar.
const ManagedAttr = "data-lquery"

var (
	ErrUnknownKind = errors.New("unknown animation")
	ErrInvalidProp = errors.New("invalid animation property")
)

type Kind int

const (
	FadeIn Kind = iota
	FadeOut
	SlideDown
	SlideUp
)

type builtIn struct {
	key  string
	name string
	rule string
}

var builtIns = map[Kind]builtIn{
	FadeIn: {
		key:  "fadeIn",
		name: "LQueryAnimationFadeIn",
		rule: "@keyframes LQueryAnimationFadeIn {from {opacity: 0;} to{opacity: 1;}}",
	},
	FadeOut: {
		key:  "fadeOut",
		name: "LQueryAnimationFadeOut",
		rule: "@keyframes LQueryAnimationFadeOut {from {opacity: 1;} to{opacity: 0;}}",
	},
	SlideDown: {
		key:  "slideDown",
		name: "LQueryAnimationSlideDown",
		rule: "@keyframes LQueryAnimationSlideDown { from {transform: translateY(-100%);} to {transform: translateY(0);}}",
	},
	SlideUp: {
		key:  "slideUp",
		name: "LQueryAnimationSlideUp",
		rule: "@keyframes LQueryAnimationSlideUp { from {transform: translateY(100%);} to {transform: translateY(0);}}",
	},
}

func ParseKind(s string) (Kind, error) {
	for k, b := range builtIns {
		if strings.EqualFold(b.key, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrUnknownKind, s)
}

func (k Kind) String() string {
	if b, ok := builtIns[k]; ok {
		return b.key
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Name is the keyframe name of k.
func (k Kind) Name() string {
	return builtIns[k].name
}

// Rule is the keyframe rule text of k.
func (k Kind) Rule() string {
	return builtIns[k].rule
}

type Prop struct {
	Name  string
	Value string
}

type Props []Prop

// PropsFromMap orders m by property name.
func PropsFromMap(m map[string]string) (ps Props) {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	for _, k := range ks {
		ps = append(ps, Prop{Name: k, Value: m[k]})
	}
	return
}

// ParseProps reads "prop: value; prop: value" into Props.
func ParseProps(s string) (Props, error) {
	ds, err := dom.ParseDeclarations(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProp, err)
	}
	ps := make(Props, 0, len(ds))
	for _, d := range ds {
		ps = append(ps, Prop{Name: d.Property, Value: d.Value})
	}
	return ps, nil
}

func (ps Props) validate() error {
	if len(ps) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidProp)
	}
	for _, p := range ps {
		ds, err := dom.ParseDeclarations(p.Name + ": " + p.Value)
		if err != nil || len(ds) != 1 || ds[0].Property != strings.ToLower(strings.TrimSpace(p.Name)) || ds[0].Value == "" {
			return fmt.Errorf("%w: %q: %q", ErrInvalidProp, p.Name, p.Value)
		}
	}
	return nil
}

func (ps Props) String() string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, p.Name+": "+p.Value)
	}
	return strings.Join(parts, "; ")
}

// Registrar owns the keyframe rules of one document.
type Registrar struct {
	mu       sync.Mutex
	doc      *dom.Document
	log      *zap.Logger
	style    *dom.Element
	injected map[Kind]bool
	seq      int
	rules    []string
}

func NewRegistrar(doc *dom.Document, log *zap.Logger) *Registrar {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registrar{
		doc:      doc,
		log:      log.Named("anim"),
		injected: make(map[Kind]bool),
	}
}

// StyleSheet returns the managed <style> element, creating it in <head> on
// first use.
func (r *Registrar) StyleSheet() *dom.Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.styleSheet()
}

func (r *Registrar) styleSheet() *dom.Element {
	if r.style != nil {
		return r.style
	}
	if el, err := r.doc.QuerySelector("style[" + ManagedAttr + "]"); err == nil && el != nil {
		r.style = el
		return el
	}
	el := r.doc.CreateElement("style")
	el.SetAttribute(ManagedAttr, "")
	r.doc.EnsureHead().AppendChild(el)
	r.style = el
	r.log.Debug("created style sheet")
	return el
}

func (r *Registrar) inject(rule string) {
	st := r.styleSheet()
	st.AppendChild(r.doc.CreateTextNode(rule + "\n"))
	r.rules = append(r.rules, rule)
}

// EnsureBuiltIn injects the rule of k unless it was injected before and
// returns its keyframe name.
func (r *Registrar) EnsureBuiltIn(k Kind) (string, error) {
	b, ok := builtIns[k]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrUnknownKind, k)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.injected[k] {
		r.inject(b.rule)
		r.injected[k] = true
		r.log.Debug("injected", zap.String("name", b.name))
	}
	return b.name, nil
}

// RunBuiltIn appends the animation of k to every element.
func (r *Registrar) RunBuiltIn(k Kind, els []*dom.Element, ms int64, easing string) error {
	name, err := r.EnsureBuiltIn(k)
	if err != nil {
		return err
	}
	apply(els, Shorthand(name, ms, easing))
	return nil
}

// RunAdHoc builds a fresh keyframe rule ending in props, injects it and
// appends it to every element. The generated name is returned.
func (r *Registrar) RunAdHoc(els []*dom.Element, props Props, ms int64, easing string) (string, error) {
	if err := props.validate(); err != nil {
		return "", err
	}
	r.mu.Lock()
	name := "LQueryAnimation" + strconv.Itoa(r.seq)
	r.seq++
	r.inject("@keyframes " + name + " { to {" + props.String() + "}}")
	r.mu.Unlock()
	r.log.Debug("injected", zap.String("name", name), zap.Stringer("props", props))
	apply(els, Shorthand(name, ms, easing))
	return name, nil
}

// Rules lists the injected rules in order.
func (r *Registrar) Rules() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rules...)
}

// Shorthand formats one entry of an animation list.
func Shorthand(name string, ms int64, easing string) string {
	if easing == "" {
		easing = "linear"
	}
	return fmt.Sprintf("%v %vms %v forwards", name, ms, easing)
}

// apply appends a to the inline animation of each element, keeping
// animations already present.
func apply(els []*dom.Element, a string) {
	for _, el := range els {
		if el == nil || !el.IsElement() {
			continue
		}
		st := el.Style()
		if cur := st.Get("animation"); cur != "" {
			st.Set("animation", cur+", "+a)
		} else {
			st.Set("animation", a)
		}
	}
}
