package document

import (
	"sort"
	"unicode/utf8"

	"texlsp/internal/syntax"
)

// Position is a zero-based line and UTF-16 character offset, as used by editors.
type Position struct {
	Line      uint32
	Character uint32
}

type Range struct {
	Start Position
	End   Position
}

// Change is one content change sent by an editor. A nil Range replaces the
// whole text.
type Change struct {
	Range *Range
	Text  string
}

// LineIndex converts between byte offsets and editor positions.
type LineIndex struct {
	text  string
	lines []int // byte offset of every line start
}

func NewLineIndex(text string) *LineIndex {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &LineIndex{text: text, lines: lines}
}

// LineCount returns the number of lines, counting a trailing empty line.
func (li *LineIndex) LineCount() int {
	return len(li.lines)
}

// Position converts a byte offset. Offsets are clamped to the text.
func (li *LineIndex) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.text) {
		offset = len(li.text)
	}
	line := sort.Search(len(li.lines), func(i int) bool { return li.lines[i] > offset }) - 1
	start := li.lines[line]
	return Position{Line: uint32(line), Character: utf16Len(li.text[start:offset])}
}

// Offset converts a position to a byte offset. Lines past the end map to the
// end of the text and characters past the end of a line to the line end.
func (li *LineIndex) Offset(pos Position) int {
	if int(pos.Line) >= len(li.lines) {
		return len(li.text)
	}
	start := li.lines[pos.Line]
	end := len(li.text)
	if int(pos.Line)+1 < len(li.lines) {
		end = li.lines[pos.Line+1] - 1
		if end > start && li.text[end-1] == '\r' {
			end--
		}
	}
	offset := start
	var units uint32
	for offset < end {
		r, size := utf8.DecodeRuneInString(li.text[offset:end])
		n := uint32(1)
		if r >= 0x10000 {
			n = 2
		}
		if units+n > pos.Character {
			break
		}
		units += n
		offset += size
	}
	return offset
}

func (li *LineIndex) Range(span syntax.Span) Range {
	return Range{Start: li.Position(span.Start), End: li.Position(span.End)}
}

func (li *LineIndex) Span(r Range) syntax.Span {
	return syntax.Span{Start: li.Offset(r.Start), End: li.Offset(r.End)}
}

func utf16Len(s string) uint32 {
	var n uint32
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// ApplyChange splices one change into text.
func ApplyChange(text string, change Change) string {
	if change.Range == nil {
		return change.Text
	}
	li := NewLineIndex(text)
	start, end := li.Offset(change.Range.Start), li.Offset(change.Range.End)
	if end < start {
		start, end = end, start
	}
	return text[:start] + change.Text + text[end:]
}

// ApplyChanges applies changes in order; each range refers to the text
// produced by the previous change.
func ApplyChanges(text string, changes []Change) string {
	for _, c := range changes {
		text = ApplyChange(text, c)
	}
	return text
}

// Before reports whether a comes before b.
func (a Position) Before(b Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}
