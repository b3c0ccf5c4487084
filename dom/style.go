package dom

import (
	"errors"
	"fmt"
	"github.com/psilva261/lqueryfs/logger"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"io"
	"strings"
)

// Declaration is one `property: value` pair of a declaration list.
type Declaration struct {
	Property string
	Value    string
}

// ParseDeclarations parses an inline declaration list such as the content
// of a style attribute. Order is preserved; a repeated property keeps its
// first position and its last value.
func ParseDeclarations(st string) (ds []Declaration, err error) {
	p := css.NewParser(parse.NewInputString(st), true)
	idx := make(map[string]int)
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil && !errors.Is(err, io.EOF) {
				return ds, fmt.Errorf("parse declarations: %w", err)
			}
			return ds, nil
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			k := strings.ToLower(string(data))
			v := joinTokens(p.Values())
			if i, ok := idx[k]; ok {
				ds[i].Value = v
				continue
			}
			idx[k] = len(ds)
			ds = append(ds, Declaration{Property: k, Value: v})
		}
	}
}

func joinTokens(ts []css.Token) string {
	var b strings.Builder
	space := false
	for _, t := range ts {
		if t.TokenType == css.WhitespaceToken {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.Write(t.Data)
	}
	return strings.TrimSpace(b.String())
}

// FormatDeclarations is the inverse of ParseDeclarations.
func FormatDeclarations(ds []Declaration) string {
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		parts = append(parts, d.Property+": "+d.Value+";")
	}
	return strings.Join(parts, " ")
}

// Style represents the inline CSSStyleDeclaration of an element.
type Style struct {
	el *Element
}

func (s *Style) decls() []Declaration {
	ds, err := ParseDeclarations(attr(*s.el.n, "style"))
	if err != nil {
		log.Printf("style of %v: %v", s.el, err)
	}
	return ds
}

func (s *Style) write(ds []Declaration) {
	if len(ds) == 0 {
		s.el.RemoveAttribute("style")
		return
	}
	s.el.SetAttribute("style", FormatDeclarations(ds))
}

// Get returns the value of a property given in kebab or camel case.
func (s *Style) Get(k string) string {
	k = Kebab(k)
	for _, d := range s.decls() {
		if d.Property == k {
			return d.Value
		}
	}
	return ""
}

func (s *Style) GetPropertyValue(k string) string {
	return s.Get(k)
}

// Set assigns a property; an empty value removes it.
func (s *Style) Set(k, v string) {
	k = Kebab(k)
	v = strings.TrimSpace(v)
	ds := s.decls()
	for i, d := range ds {
		if d.Property == k {
			if v == "" {
				ds = append(ds[:i], ds[i+1:]...)
			} else {
				ds[i].Value = v
			}
			s.write(ds)
			return
		}
	}
	if v == "" {
		return
	}
	s.write(append(ds, Declaration{Property: k, Value: v}))
}

func (s *Style) RemoveProperty(k string) {
	s.Set(k, "")
}

func (s *Style) Length() int {
	return len(s.decls())
}

func (s *Style) CSSText() string {
	return FormatDeclarations(s.decls())
}

func (s *Style) SetCSSText(t string) {
	ds, err := ParseDeclarations(t)
	if err != nil {
		log.Errorf("set css text: %v", err)
	}
	s.write(ds)
}

// Kebab turns a camel case property name into its CSS form.
func Kebab(k string) string {
	if strings.Contains(k, "-") {
		return strings.ToLower(k)
	}
	var b strings.Builder
	for i, r := range k {
		if 'A' <= r && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
