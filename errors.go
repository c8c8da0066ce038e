// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package swapfont

import "fmt"

// A ParseErrorKind classifies content-stream grammar violations.
type ParseErrorKind int

const (
	UnterminatedString ParseErrorKind = iota
	UnterminatedArray
	InvalidNumber
)

func (k ParseErrorKind) String() string {
	switch k {
	case UnterminatedString:
		return "unterminated string"
	case UnterminatedArray:
		return "unterminated array"
	case InvalidNumber:
		return "invalid number"
	}
	return "parse error"
}

// A ParseError reports a malformed content stream. A stream that fails to
// tokenize is never rewritten; the original bytes pass through unchanged.
type ParseError struct {
	Kind   ParseErrorKind
	Offset int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("content stream: %v at offset %d", e.Kind, e.Offset)
}

// A ConfigError reports an invalid replacement configuration. It is raised
// before any rewriting starts.
type ConfigError struct {
	Rule   string // source font name of the offending rule, if any
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Rule == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: rule %q: %s", e.Rule, e.Reason)
}

// A FontLoadError reports a target font file that could not be read or
// parsed. The affected rule is disabled; other rules proceed.
type FontLoadError struct {
	Path string
	Err  error
}

func (e *FontLoadError) Error() string {
	return fmt.Sprintf("target font %q: %v", e.Path, e.Err)
}

func (e *FontLoadError) Unwrap() error { return e.Err }

// DiagLevel is the severity of a Diagnostic.
type DiagLevel int

const (
	DiagWarning DiagLevel = iota
	DiagError
)

func (l DiagLevel) String() string {
	if l == DiagError {
		return "error"
	}
	return "warning"
}

// A Diagnostic records why a rule was skipped or degraded. Nothing the
// engine skips is silent; every degraded glyph and inapplicable rule
// produces one of these.
type Diagnostic struct {
	Level   DiagLevel
	Message string
}

func warnf(format string, args ...interface{}) Diagnostic {
	return Diagnostic{Level: DiagWarning, Message: fmt.Sprintf(format, args...)}
}

func errorf(format string, args ...interface{}) Diagnostic {
	return Diagnostic{Level: DiagError, Message: fmt.Sprintf(format, args...)}
}

// A RuleResult reports the outcome of one ReplacementRule against one
// content stream.
type RuleResult struct {
	Rule        string // source font name
	Applied     bool
	Diagnostics []Diagnostic
}

// A FontResource names a font program the caller must register in the
// resource dictionary of the rewritten stream. The program bytes are the
// target font file contents, unmodified.
type FontResource struct {
	Name    string
	Program []byte
}

// A StreamResult is the outcome of rewriting one content stream.
type StreamResult struct {
	ID        string
	Content   []byte
	Rules     []RuleResult
	Resources []FontResource
}
