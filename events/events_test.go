package events

import (
	"github.com/psilva261/lqueryfs/dom"
	"github.com/psilva261/lqueryfs/logger"
	"golang.org/x/net/html"
	"runtime"
	"testing"
	"time"
	"weak"
)

func init() {
	log.Debug = true
}

const htm = `<body><div id="a"><p id="b">x</p></div><div id="c"></div></body>`

func setup(t *testing.T) (*dom.Document, *Tracker) {
	d, err := dom.Parse(htm)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return d, New(nil)
}

func query(t *testing.T, d *dom.Document, s string) *dom.Element {
	el, err := d.QuerySelector(s)
	if err != nil || el == nil {
		t.Fatalf("%v: %v", s, err)
	}
	return el
}

func TestAddRemove(t *testing.T) {
	d, tr := setup(t)
	a := query(t, d, "#a")
	n := 0
	l := dom.NewListener(func(*dom.Event) { n++ })
	tr.Add(a, "click", l)
	if a.ListenerCount("click") != 1 || tr.Len() != 1 {
		t.Fatalf("%v %v", a.ListenerCount("click"), tr.Len())
	}
	a.Click()
	if n != 1 {
		t.Fatalf("%v", n)
	}
	tr.Remove(a, "click", l)
	if tr.Listeners(a) != nil || tr.Len() != 0 {
		t.Fatalf("entry left: %v", tr.Listeners(a))
	}
	if a.ListenerCount("click") != 0 {
		t.Fatalf("native listener left")
	}
	a.Click()
	if n != 1 {
		t.Fatalf("%v", n)
	}
}

func TestDuplicates(t *testing.T) {
	d, tr := setup(t)
	a := query(t, d, "#a")
	n := 0
	l := dom.NewListener(func(*dom.Event) { n++ })
	tr.Add(a, "click", l)
	tr.Add(a, "click", l)
	if len(tr.Listeners(a)) != 2 || a.ListenerCount("click") != 2 {
		t.Fatalf("%v", tr.Listeners(a))
	}
	tr.Remove(a, "click", l)
	es := tr.Listeners(a)
	if len(es) != 1 || es[0].Listener != l || a.ListenerCount("click") != 1 {
		t.Fatalf("%v", es)
	}
	a.Click()
	if n != 1 {
		t.Fatalf("%v", n)
	}
}

func TestRemoveUnknown(t *testing.T) {
	d, tr := setup(t)
	a := query(t, d, "#a")
	l := dom.NewListener(func(*dom.Event) {})
	tr.Remove(a, "click", l)
	tr.Remove(nil, "click", l)
	tr.Add(a, "click", l)
	tr.Remove(a, "focus", l)
	tr.Remove(a, "click", dom.NewListener(func(*dom.Event) {}))
	if len(tr.Listeners(a)) != 1 {
		t.Fatalf("%v", tr.Listeners(a))
	}
}

func TestCopy(t *testing.T) {
	d, tr := setup(t)
	a := query(t, d, "#a")
	c := query(t, d, "#c")
	l1 := dom.NewListener(func(*dom.Event) {})
	l2 := dom.NewListener(func(*dom.Event) {})
	tr.Add(a, "click", l1)
	tr.Add(a, "focus", l2)
	tr.Add(a, "click", l2)
	tr.Copy(a, c)
	src, dst := tr.Listeners(a), tr.Listeners(c)
	if len(src) != len(dst) {
		t.Fatalf("%v %v", src, dst)
	}
	for i := range src {
		if src[i] != dst[i] {
			t.Fatalf("%v: %v != %v", i, src[i], dst[i])
		}
	}
	if c.ListenerCount("click") != 2 || c.ListenerCount("focus") != 1 {
		t.Fatalf("native registrations missing")
	}
	empty := query(t, d, "#b")
	tr.Copy(empty, c)
	if len(tr.Listeners(c)) != 3 {
		t.Fail()
	}
}

func TestCopyTree(t *testing.T) {
	d, tr := setup(t)
	a := query(t, d, "#a")
	b := query(t, d, "#b")
	n := 0
	tr.Add(b, "click", dom.NewListener(func(*dom.Event) { n++ }))
	cl := a.CloneNode(true)
	tr.CopyTree(a, cl)
	cb, err := cl.QuerySelector("#b")
	if err != nil || cb == nil {
		t.Fatalf("%v", err)
	}
	cb.Click()
	if n != 1 {
		t.Fatalf("%v", n)
	}
}

func TestForgetTree(t *testing.T) {
	d, tr := setup(t)
	a := query(t, d, "#a")
	b := query(t, d, "#b")
	l := dom.NewListener(func(*dom.Event) {})
	tr.Add(a, "click", l)
	tr.Add(b, "click", l)
	tr.ForgetTree(a)
	if tr.Len() != 0 || a.ListenerCount("click") != 0 || b.ListenerCount("click") != 0 {
		t.Fatalf("%v", tr.Len())
	}
}

func TestCaseInsensitiveType(t *testing.T) {
	d, tr := setup(t)
	a := query(t, d, "#a")
	l := dom.NewListener(func(*dom.Event) {})
	tr.Add(a, "Click", l)
	tr.Remove(a, "click", l)
	if tr.Len() != 0 || a.ListenerCount("click") != 0 {
		t.Fail()
	}
}

func TestCollectedNodesAreDropped(t *testing.T) {
	d, tr := setup(t)
	func() {
		el := d.CreateElement("span")
		tr.Add(el, "click", dom.NewListener(func(*dom.Event) {}))
	}()
	deadline := time.Now().Add(5 * time.Second)
	for tr.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("entry of unreachable node survived")
		}
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
}

func TestForgetReleasesSelfReferencingListener(t *testing.T) {
	d, tr := setup(t)
	var wp weak.Pointer[html.Node]
	func() {
		el := d.CreateElement("span")
		wp = weak.Make(el.Node())
		tr.Add(el, "click", dom.NewListener(func(*dom.Event) { el.SetTextContent("clicked") }))
		// the closure pins el, only an explicit forget releases it
		tr.ForgetTree(el)
	}()
	if tr.Len() != 0 {
		t.Fatalf("%v", tr.Len())
	}
	deadline := time.Now().Add(5 * time.Second)
	for wp.Value() != nil {
		if time.Now().After(deadline) {
			t.Fatalf("forgotten node still reachable")
		}
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRemoveKeepsUntrackedListener(t *testing.T) {
	d, tr := setup(t)
	a := query(t, d, "#a")
	n := 0
	l := dom.NewListener(func(*dom.Event) { n++ })
	a.AddEventListener("click", l)
	tr.Remove(a, "click", l)
	if a.ListenerCount("click") != 1 || tr.Len() != 0 {
		t.Fatalf("%v %v", a.ListenerCount("click"), tr.Len())
	}
	a.Click()
	if n != 1 {
		t.Fatalf("%v", n)
	}
}
