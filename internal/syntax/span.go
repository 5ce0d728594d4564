package syntax

import "fmt"

// Span is a half-open byte interval [Start, End) in a source text.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) IsEmpty() bool {
	return s.End <= s.Start
}

// Contains reports whether offset lies in [Start, End).
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// ContainsInclusive reports whether offset lies in [Start, End].
// Cursor positions directly behind a word are inside it for completion and navigation.
func (s Span) ContainsInclusive(offset int) bool {
	return offset >= s.Start && offset <= s.End
}

func (s Span) Cover(other Span) Span {
	out := s
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}
