package lquery

import (
	"github.com/psilva261/lqueryfs/dom"
)

// On registers l for typ on every element. The registration is tracked so
// that Off and Clone(true) can find it.
func (s *Selection) On(typ string, l *dom.Listener) *Selection {
	for _, el := range s.els {
		s.c.tracker.Add(el, typ, l)
	}
	return s
}

// Off removes one registration of l for typ from every element.
func (s *Selection) Off(typ string, l *dom.Listener) *Selection {
	for _, el := range s.els {
		s.c.tracker.Remove(el, typ, l)
	}
	return s
}

func (s *Selection) OnClick(l *dom.Listener) *Selection {
	return s.On("click", l)
}

// Click dispatches a click on every element.
func (s *Selection) Click() *Selection {
	for _, el := range s.els {
		el.Click()
	}
	return s
}

func (s *Selection) OnDblClick(l *dom.Listener) *Selection {
	return s.On("dblclick", l)
}

func (s *Selection) DblClick() *Selection {
	return s.Trigger("dblclick")
}

// Hover registers enter for mouseenter and leave for mouseleave; either may
// be nil.
func (s *Selection) Hover(enter, leave *dom.Listener) *Selection {
	if enter != nil {
		s.On("mouseenter", enter)
	}
	if leave != nil {
		s.On("mouseleave", leave)
	}
	return s
}

func (s *Selection) OnFocus(l *dom.Listener) *Selection {
	return s.On("focus", l)
}

func (s *Selection) Focus() *Selection {
	for _, el := range s.els {
		el.Focus()
	}
	return s
}

func (s *Selection) OnBlur(l *dom.Listener) *Selection {
	return s.On("blur", l)
}

func (s *Selection) Blur() *Selection {
	for _, el := range s.els {
		el.Blur()
	}
	return s
}

// Trigger dispatches a bubbling, cancelable event of typ on every element.
func (s *Selection) Trigger(typ string) *Selection {
	for _, el := range s.els {
		el.DispatchEvent(dom.NewEvent(typ, dom.EventInit{Bubbles: true, Cancelable: true}))
	}
	return s
}
