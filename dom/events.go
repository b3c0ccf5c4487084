package dom

import (
	"strings"
	"time"
)

type Phase int

const (
	EvPhNone Phase = iota
	EvPhCapturing
	EvPhAtTarget
	EvPhBubbling
)

type Event struct {
	Type             string
	Consumed         bool
	DefaultPrevented bool
	Phase            Phase
	Bubbles          bool
	Cancelable       bool
	Detail           any
	TimeStamp        time.Time
	CurrentTarget    *Element
	Target           *Element

	propagationStopped bool
	immediateStopped   bool
}

type EventInit struct {
	Bubbles    bool
	Cancelable bool
	Detail     any
}

func NewEvent(t string, init EventInit) *Event {
	return &Event{
		Type:       strings.ToLower(t),
		Bubbles:    init.Bubbles,
		Cancelable: init.Cancelable,
		Detail:     init.Detail,
		TimeStamp:  time.Now(),
	}
}

func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.DefaultPrevented = true
	}
}

func (e *Event) ReturnValue() bool {
	return !e.DefaultPrevented
}

func (e *Event) StopPropagation() {
	e.propagationStopped = true
}

func (e *Event) StopImmediatePropagation() {
	e.propagationStopped = true
	e.immediateStopped = true
}

// Listener is an event callback. Two listeners are the same listener only
// if they are the same pointer.
type Listener struct {
	fn func(*Event)
}

func NewListener(fn func(*Event)) *Listener {
	return &Listener{fn: fn}
}

func (l *Listener) Handle(e *Event) {
	if l == nil || l.fn == nil {
		return
	}
	l.fn(e)
}

type registry map[string][]*Listener

func (r registry) add(t string, l *Listener) {
	r[t] = append(r[t], l)
}

// remove drops the first registration of l for t.
func (r registry) remove(t string, l *Listener) (ok bool) {
	ls := r[t]
	for i, ll := range ls {
		if ll == l {
			rest := make([]*Listener, 0, len(ls)-1)
			rest = append(rest, ls[:i]...)
			rest = append(rest, ls[i+1:]...)
			if len(rest) == 0 {
				delete(r, t)
			} else {
				r[t] = rest
			}
			return true
		}
	}
	return false
}

// fire calls the listeners registered when dispatch started.
func (r registry) fire(e *Event) {
	ls := append([]*Listener(nil), r[e.Type]...)
	for _, l := range ls {
		if e.immediateStopped {
			return
		}
		e.Consumed = true
		l.Handle(e)
	}
}
