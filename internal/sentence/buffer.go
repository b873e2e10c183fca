package sentence

import (
	"strings"
	"unicode/utf8"
)

// Buffer accumulates committed tokens into a single editable sentence.
// Every operation is total; none of them fail.
type Buffer struct {
	b strings.Builder
}

// Append adds token, separated from prior content by one space unless the
// buffer is empty or already ends with a space.
func (s *Buffer) Append(token string) {
	if s.b.Len() > 0 && !strings.HasSuffix(s.b.String(), " ") {
		s.b.WriteByte(' ')
	}
	s.b.WriteString(token)
}

// AppendSpace adds one literal space, even after another space.
func (s *Buffer) AppendSpace() {
	s.b.WriteByte(' ')
}

// Backspace drops the last character. No-op on an empty buffer.
func (s *Buffer) Backspace() {
	cur := s.b.String()
	if cur == "" {
		return
	}
	_, size := utf8.DecodeLastRuneInString(cur)
	s.Set(cur[:len(cur)-size])
}

func (s *Buffer) Clear() {
	s.b.Reset()
}

// Set replaces the buffer contents.
func (s *Buffer) Set(text string) {
	s.b.Reset()
	s.b.WriteString(text)
}

func (s *Buffer) String() string {
	return s.b.String()
}

func (s *Buffer) Len() int {
	return s.b.Len()
}
