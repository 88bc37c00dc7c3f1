package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/docbridge/pkg/domain"
)

// Error is a script failure located in the source. It matches domain.ErrScript
// and, when a bridge operation raised it, that operation's error too.
type Error struct {
	File    string
	Line    int
	Message string

	cause error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d: %s", domain.ErrScript, e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", domain.ErrScript, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{domain.ErrScript, e.cause}
	}
	return []error{domain.ErrScript}
}

var (
	// name:LINE: message
	runtimePattern = regexp.MustCompile(`^(.*?):(\d+):\s*(.*)$`)
	// name line:LINE(column:COL) near 'TOKEN': message
	syntaxPattern = regexp.MustCompile(`^(.*?)\s+line:(\d+)\(column:\d+\)\s+near\s+'.*?':\s*(.*)$`)
)

// newError splits a raw Lua error message into its location and text.
func newError(file, raw string, cause error) *Error {
	first, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	e := &Error{File: file, Message: strings.TrimSpace(first), cause: cause}

	for _, pattern := range []*regexp.Regexp{syntaxPattern, runtimePattern} {
		m := pattern.FindStringSubmatch(first)
		if m == nil {
			continue
		}
		line, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if m[1] != "" {
			e.File = m[1]
		}
		e.Line = line
		e.Message = strings.TrimSpace(m[3])
		break
	}
	return e
}
