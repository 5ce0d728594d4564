package feature

import (
	"fmt"
	"strings"

	"texlsp/internal/document"
)

type Hover struct {
	Range    document.Range
	Markdown string
}

// Hover describes the name under pos: the title a label points to, the
// entry behind a citation, a command or environment definition, or the
// value of a @string.
func (e *Engine) Hover(uri string, pos document.Position) (*Hover, error) {
	c, doc, err := e.cursorAt(uri, pos)
	if err != nil || c == nil {
		return nil, err
	}
	var text string
	symbols := e.visible(uri, queryFor(c.kind)).named(c.name)
	if len(symbols) > 0 {
		text = describe(symbols[0])
	} else if c.definition != nil {
		text = describe(*c.definition)
	} else {
		switch c.kind {
		case document.CommandReference:
			if b, ok := lookupBuiltin(builtinCommands, c.name); ok {
				text = fmt.Sprintf("`\\%s`\n\n%s", b.name, b.detail)
			}
		case document.EnvironmentReference:
			if b, ok := lookupBuiltin(builtinEnvironments, c.name); ok {
				text = fmt.Sprintf("`%s`\n\n%s", b.name, b.detail)
			}
		}
	}
	if text == "" {
		return nil, nil
	}
	return &Hover{Range: doc.Range(c.span), Markdown: text}, nil
}

func describe(s document.Symbol) string {
	var b strings.Builder
	switch s.Kind {
	case document.EntrySymbol:
		fmt.Fprintf(&b, "**@%s** `%s`", s.Detail, s.Name)
		if title := s.Fields["title"]; title != "" {
			fmt.Fprintf(&b, "\n\n*%s*", title)
		}
		if author := s.Fields["author"]; author != "" {
			fmt.Fprintf(&b, "\n\n%s", author)
		}
		if year := s.Fields["year"]; year != "" {
			fmt.Fprintf(&b, " (%s)", year)
		}
	case document.CommandSymbol:
		fmt.Fprintf(&b, "`\\%s`\n\n```latex\n%s\n```", s.Name, s.Detail)
	case document.StringSymbol:
		fmt.Fprintf(&b, "`%s` = \"%s\"", s.Name, s.Detail)
	case document.TheoremSymbol:
		fmt.Fprintf(&b, "`%s`", s.Name)
		if s.Detail != "" {
			fmt.Fprintf(&b, "\n\n%s", s.Detail)
		}
	default:
		fmt.Fprintf(&b, "`%s`", s.Name)
		if s.Detail != "" {
			fmt.Fprintf(&b, "\n\n%s", s.Detail)
		}
	}
	return b.String()
}
