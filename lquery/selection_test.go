package lquery

import (
	"errors"
	"github.com/google/go-cmp/cmp"
	"github.com/psilva261/lqueryfs/anim"
	"github.com/psilva261/lqueryfs/dom"
	"testing"
	"time"
)

func TestGetters(t *testing.T) {
	c, _ := setup(t)
	s := c.Select("p.x")
	if s.Len() != 2 || s.Err() != nil {
		t.Fatalf("%v %v", s.Len(), s.Err())
	}
	if s.HTML() != "one" || s.Text() != "one" {
		t.Fatalf("%v", s.HTML())
	}
	if diff := cmp.Diff([]string{"one", "two"}, s.HTMLAll()); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}
	if s.Get(-1).TextContent() != "two" || s.Get(2) != nil {
		t.Fatalf("get")
	}
	if s.First().Len() != 1 || c.Select("nav").First().Len() != 0 {
		t.Fatalf("first")
	}
	if v := c.Select("#in").Val(); v != "v" {
		t.Fatalf("%v", v)
	}
	if v := c.Select("#ta").Val(); v != "text" {
		t.Fatalf("%v", v)
	}
	if v, ok := c.Select("#box").Attr("class"); !ok || v != "c" {
		t.Fatalf("%v", v)
	}
	if _, ok := c.Select("nav").Attr("class"); ok {
		t.Fatalf("attr of empty selection")
	}
	if h := c.Select("li").OuterHTML(); h != "<li>a</li><li>b</li>" {
		t.Fatalf("%v", h)
	}
	if n := c.Select("#box").Find("p").Len(); n != 2 {
		t.Fatalf("%v", n)
	}
}

func TestSetters(t *testing.T) {
	c, _ := setup(t)
	s := c.Select("p.x").SetText("z").SetAttr("data-k", "1")
	if diff := cmp.Diff([]string{"z", "z"}, s.TextAll()); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}
	if diff := cmp.Diff([]string{"1", "1"}, s.AttrAll("data-k")); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}
	s.RemoveAttr("data-k").SetHTML("<b>y</b>")
	if s.Get(0).HasAttribute("data-k") || s.HTML() != "<b>y</b>" {
		t.Fatalf("%v", s.OuterHTML())
	}
	c.Select("#in, #ta").SetVal("w")
	if diff := cmp.Diff([]string{"w", "w"}, c.Select("#in, #ta").ValAll()); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}
	if err := s.SetAttr("", "x").Err(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSelectError(t *testing.T) {
	c, _ := setup(t)
	s := c.Select("p[")
	if s.Err() == nil || s.Len() != 0 {
		t.Fatalf("%v %v", s.Len(), s.Err())
	}
}

func TestCSS(t *testing.T) {
	c, _ := setup(t)
	box := c.Select("#box").CSS("background-color", "blue")
	if diff := cmp.Diff([]string{"red"}, box.CSSValue("color")); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}
	box.CSSMap(map[string]string{"width": "1px", "height": "2px"})
	if v, _ := box.Attr("style"); v != "color: red; background-color: blue; height: 2px; width: 1px;" {
		t.Fatalf("%v", v)
	}
	box.CSS("color", "").CSS("backgroundColor", "")
	if v, _ := box.Attr("style"); v != "height: 2px; width: 1px;" {
		t.Fatalf("%v", v)
	}
}

func TestInsert(t *testing.T) {
	c, _ := setup(t)
	c.Select("#list").Append("<li>c</li>").Prepend("<li>z</li>")
	if diff := cmp.Diff([]string{"z", "a", "b", "c"}, c.Select("#list li").TextAll()); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}
	c.Select("#list").Before(`<p id="b4"></p>`).After(`<p id="af"></p>`)
	prev := c.Select("#list").Get(0).PreviousSibling()
	next := c.Select("#list").Get(0).NextSibling()
	if prev.Id() != "b4" || next.Id() != "af" {
		t.Fatalf("%v %v", prev, next)
	}
	if err := c.Select("#list").Append("<li>").Wrap("").Err(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInsertElement(t *testing.T) {
	c, _ := setup(t)
	span := c.Document().CreateElement("span")
	s := c.Select("p.x").AppendElement(span)
	if n := c.Select("p.x span").Len(); n != 2 {
		t.Fatalf("%v", n)
	}
	if !span.Parent().IsSameNode(s.Get(1)) {
		t.Fatalf("last target did not get the element itself")
	}
	if err := s.PrependElement(nil).Err(); err == nil {
		t.Fatalf("expected error")
	}
}

func counter(n *int) *dom.Listener {
	return dom.NewListener(func(*dom.Event) { *n++ })
}

func TestRemoveForgetsListeners(t *testing.T) {
	c, _ := setup(t)
	n := 0
	c.Select("p.x").On("click", counter(&n))
	if c.Tracker().Len() != 2 {
		t.Fatalf("%v", c.Tracker().Len())
	}
	ps := c.Select("p.x")
	c.Select("#box").Remove()
	if c.Tracker().Len() != 0 || c.Select("#box").Len() != 0 {
		t.Fatalf("%v", c.Tracker().Len())
	}
	ps.Click()
	if n != 0 {
		t.Fatalf("%v", n)
	}
}

func TestDetachKeepsListeners(t *testing.T) {
	c, _ := setup(t)
	n := 0
	ps := c.Select("p.x").On("click", counter(&n))
	c.Select("#box").Detach()
	if c.Tracker().Len() != 2 {
		t.Fatalf("%v", c.Tracker().Len())
	}
	ps.Click()
	if n != 2 {
		t.Fatalf("%v", n)
	}
}

func TestRemoveMatchingAndEmpty(t *testing.T) {
	c, _ := setup(t)
	c.Select("body").RemoveMatching("p.x")
	if c.Select("p").Len() != 0 {
		t.Fatalf("%v", c.Select("p").Len())
	}
	n := 0
	c.Select("li").On("click", counter(&n))
	c.Select("#list").Empty()
	if h := c.Select("#list").HTML(); h != "" || c.Tracker().Len() != 0 {
		t.Fatalf("%v %v", h, c.Tracker().Len())
	}
}

func TestWrap(t *testing.T) {
	c, _ := setup(t)
	c.Select("li").Wrap("section")
	if h := c.Select("#list").HTML(); h != "<section><li>a</li><li>b</li></section>" {
		t.Fatalf("%v", h)
	}
	box := c.Select("#box")
	if err := box.WrapElement(box.Get(0)).Err(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestClone(t *testing.T) {
	c, _ := setup(t)
	n := 0
	c.Select("p.x").On("click", counter(&n))
	plain := c.Select("#box").Clone(false)
	if c.Tracker().Len() != 2 {
		t.Fatalf("%v", c.Tracker().Len())
	}
	withEvents := c.Select("#box").Clone(true)
	if c.Tracker().Len() != 4 {
		t.Fatalf("%v", c.Tracker().Len())
	}
	plain.Find("p").Click()
	if n != 0 {
		t.Fatalf("%v", n)
	}
	withEvents.Find("p").Click()
	if n != 2 {
		t.Fatalf("%v", n)
	}
	if withEvents.OuterHTML() != c.Select("#box").OuterHTML() {
		t.Fatalf("%v", withEvents.OuterHTML())
	}
}

func TestReplaceWithHTML(t *testing.T) {
	c, _ := setup(t)
	c.Select("li").ReplaceWithHTML("<li>x</li>")
	if h := c.Select("#list").HTML(); h != "<li>x</li><li>x</li>" {
		t.Fatalf("%v", h)
	}
}

func TestReplaceWith(t *testing.T) {
	c, _ := setup(t)
	c.Select("p.x").ReplaceWith(c.Select("li"))
	if h := c.Select("#box").HTML(); h != "<li>a</li><li>b</li>" {
		t.Fatalf("%v", h)
	}
	if h := c.Select("#list").HTML(); h != "" {
		t.Fatalf("%v", h)
	}
	li := c.Select("li")
	if err := li.ReplaceWith(li).Err(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEvents(t *testing.T) {
	c, _ := setup(t)
	var clicks, boxes, enters, focus int
	cl := counter(&clicks)
	p := c.Select("p.x").First()
	p.OnClick(cl).OnClick(cl)
	c.Select("#box").On("custom", counter(&boxes))
	p.Click()
	if clicks != 2 {
		t.Fatalf("%v", clicks)
	}
	p.Off("click", cl).Click()
	if clicks != 3 {
		t.Fatalf("%v", clicks)
	}
	p.Off("CLICK", cl).Off("click", cl).Click()
	if clicks != 3 || c.Tracker().Len() != 1 {
		t.Fatalf("%v %v", clicks, c.Tracker().Len())
	}
	p.Trigger("custom")
	if boxes != 1 {
		t.Fatalf("no bubbling: %v", boxes)
	}
	p.Hover(counter(&enters), nil).Trigger("mouseenter").Trigger("mouseleave")
	p.OnFocus(counter(&focus)).OnBlur(counter(&focus)).Focus().Blur()
	if enters != 1 || focus != 2 {
		t.Fatalf("%v %v", enters, focus)
	}
	dbl := 0
	p.OnDblClick(counter(&dbl)).DblClick()
	if dbl != 1 {
		t.Fatalf("%v", dbl)
	}
}

func TestAnimate(t *testing.T) {
	c, m := setup(t)
	done := 0
	s := c.Select("p.x").FadeIn(anim.Millis(300), func() { done++ })
	if done != 0 {
		t.Fatalf("completion ran synchronously")
	}
	s.Animate(anim.Props{{Name: "opacity", Value: "0.5"}}, anim.Spec("1s"), "ease", nil)
	want := "LQueryAnimationFadeIn 300ms linear forwards, LQueryAnimation0 1000ms ease forwards"
	if diff := cmp.Diff([]string{want, want}, s.CSSValue("animation")); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}
	s.SlideUp(anim.Duration{}, func() { done++ })
	if diff := cmp.Diff([]time.Duration{300 * time.Millisecond, 400 * time.Millisecond}, m.delays); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}
	m.run()
	if done != 2 || s.Err() != nil {
		t.Fatalf("%v %v", done, s.Err())
	}
	if n := len(c.Registrar().Rules()); n != 3 {
		t.Fatalf("%v", n)
	}
}

func TestAnimateInvalidDuration(t *testing.T) {
	c, m := setup(t)
	s := c.Select("p.x").Animate(anim.Props{{Name: "opacity", Value: "0"}}, anim.Spec("2h"), "", func() {})
	if !errors.Is(s.Err(), anim.ErrUnsupportedUnit) {
		t.Fatalf("%v", s.Err())
	}
	s.FadeOut(anim.Millis(-1), nil)
	if !errors.Is(s.Err(), anim.ErrInvalidDuration) {
		t.Fatalf("%v", s.Err())
	}
	if len(m.delays) != 0 || len(c.Registrar().Rules()) != 0 {
		t.Fatalf("%v %v", m.delays, c.Registrar().Rules())
	}
	if v := s.CSSValue("animation"); v[0] != "" {
		t.Fatalf("%v", v)
	}
}

func TestAnimateHugeDuration(t *testing.T) {
	c, m := setup(t)
	for _, d := range []anim.Duration{anim.Spec("1e300s"), anim.Spec("1e13ms"), anim.Millis(anim.MaxMillis + 1)} {
		s := c.Select("p.x").FadeIn(d, func() {})
		if !errors.Is(s.Err(), anim.ErrInvalidDuration) {
			t.Fatalf("%v: %v", d, s.Err())
		}
	}
	if len(m.delays) != 0 {
		t.Fatalf("%v", m.delays)
	}
	if v := c.Select("p.x").CSSValue("animation"); v[0] != "" {
		t.Fatalf("%v", v)
	}
}
