// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package swapfont

import (
	"fmt"
	"math"

	"github.com/sassoftware/pdf-swapfont/logger"
)

// A runElem is one element of a text-showing operation: either a run of
// character codes or a numeric positioning offset (TJ form, glyph space,
// positive moves left).
type runElem struct {
	text   []byte
	offset float64
}

// A runPlan is a strategy's decision for one text-showing operation: the
// horizontal scale that must be active when it executes and the tokens
// that replace it.
type runPlan struct {
	scale    float64
	toks     []Token
	explicit bool
}

// A strategy decides how a replacement run is re-expressed so it occupies
// the original run's width. Implementations are pure: all state arrives
// with the run.
type strategy interface {
	planRun(run []runElem, show textShow, rule *ReplacementRule, src *FontDescriptor) (*runPlan, []Diagnostic)
}

func strategyFor(rule *ReplacementRule) strategy {
	// Strategy is validated to scale_to_fit; the switch is the seam for
	// future variants.
	switch rule.Strategy {
	default:
		return &scaleToFit{opts: rule.StrategyOptions}
	}
}

// scaleToFit makes the replacement run occupy the original width via the
// horizontal scale operator, clamped to the configured bounds. When
// clamping leaves a visible aggregate error, or when the source operation
// already carries explicit offsets, it falls back to per-glyph positioning
// computed from the original advances.
type scaleToFit struct {
	opts StrategyOptions
}

func (s *scaleToFit) planRun(run []runElem, show textShow, rule *ReplacementRule, src *FontDescriptor) (*runPlan, []Diagnostic) {
	glyphs := 0
	for _, el := range run {
		glyphs += len(el.text)
	}
	if glyphs == 0 {
		// Zero-length run: nothing to fit, nothing to emit.
		if len(run) == 0 {
			return &runPlan{scale: show.state.scale}, nil
		}
		return nil, nil // offsets only; keep the original operation
	}

	orig := originalRunWidth(run, src, show.state)
	repl, diags := replacementRunWidth(run, rule, show.state)

	if repl == 0 || show.state.fontSize == 0 {
		// Degenerate run: leave the scale alone, substitute codes only.
		toks, d := s.substitution(run, show, rule)
		return &runPlan{scale: show.state.scale, toks: toks}, append(diags, d...)
	}

	ideal := 100 * orig / repl
	scale := math.Min(math.Max(ideal, s.opts.MinScale), s.opts.MaxScale)
	scale = roundTo(scale, 3)

	errText := math.Abs(repl*scale/100 - orig)
	tol := s.opts.PositionTolerance / 1000 * show.state.fontSize

	if show.op == "TJ" || errText > tol {
		toks, d := s.explicitPositioning(run, show, rule, src, scale)
		logger.Debug(fmt.Sprintf("scale_to_fit: explicit positioning (ideal=%.3f emitted=%.3f err=%.5f)", ideal, scale, errText))
		return &runPlan{scale: scale, toks: toks, explicit: true}, append(diags, d...)
	}

	toks, d := s.substitution(run, show, rule)
	logger.Debug(fmt.Sprintf("scale_to_fit: Tz %.3f (orig=%.4f repl=%.4f)", scale, orig, repl))
	return &runPlan{scale: scale, toks: toks}, append(diags, d...)
}

// substitution keeps the operation's shape and translates the character
// codes through the rule's encoding map.
func (s *scaleToFit) substitution(run []runElem, show textShow, rule *ReplacementRule) ([]Token, []Diagnostic) {
	var diags []Diagnostic
	var toks []Token
	if show.op == "\"" {
		toks = append(toks, numTok(show.state.wordSpace), numTok(show.state.charSpace))
	}
	if show.op == "TJ" {
		var elems []Token
		for _, el := range run {
			if el.text == nil {
				elems = append(elems, numTok(el.offset))
				continue
			}
			b, d := mapRunBytes(el.text, rule)
			diags = append(diags, d...)
			elems = append(elems, strTok(b))
		}
		return append(toks, arrTok(elems), opTok("TJ")), diags
	}
	var all []byte
	for _, el := range run {
		b, d := mapRunBytes(el.text, rule)
		diags = append(diags, d...)
		all = append(all, b...)
	}
	return append(toks, strTok(all), opTok(show.op)), diags
}

// explicitPositioning decomposes the run into minimal glyph runs
// interleaved with offsets computed from the original per-glyph advances,
// so every glyph lands at its source coordinate regardless of the
// replacement metrics. This is what preserves kerning under a clamped
// scale.
func (s *scaleToFit) explicitPositioning(run []runElem, show textShow, rule *ReplacementRule, src *FontDescriptor, scale float64) ([]Token, []Diagnostic) {
	st := show.state
	sigma := scale / 100
	theta := st.scale / 100
	fs := st.fontSize
	// the rewritten Tf carries the scaled size; emitted offsets are in
	// thousandths of that em
	tfs := fs * rule.FontSizeScalePercent / 100

	var diags []Diagnostic
	var elems []Token
	var pending []byte
	flush := func(adj float64) {
		if len(pending) > 0 {
			elems = append(elems, strTok(pending))
			pending = nil
		}
		if adj != 0 {
			elems = append(elems, numTok(adj))
		}
	}

	for _, el := range run {
		if el.text == nil {
			// Source offset: rescale so the move distance survives the
			// new horizontal scale and font size.
			flush(roundTo(el.offset*(fs*theta)/(tfs*sigma), 2))
			continue
		}
		for _, c := range el.text {
			origAdv := (src.Width(c)/1000*fs + st.charSpace) * theta
			if c == ' ' {
				origAdv += st.wordSpace * theta
			}
			r := rule.encoding.mapCode(c)
			b, ok := encodeTargetChar(r, c)
			if !ok {
				diags = append(diags, warnf("target character %q (from code 0x%02X) needs a multi-byte encoding; source code kept", r, c))
			}
			w, _ := rule.metrics.CharWidth(r)
			replAdv := (w/1000*tfs + st.charSpace) * sigma
			if b == ' ' {
				replAdv += st.wordSpace * sigma
			}
			adj := roundTo((replAdv-origAdv)*1000/(tfs*sigma), 2)
			pending = append(pending, b)
			if adj != 0 {
				flush(adj)
			}
		}
	}
	flush(0)

	var toks []Token
	switch show.op {
	case "'":
		toks = append(toks, opTok("T*"))
	case "\"":
		// The quoted form set word and character spacing before showing;
		// re-state them explicitly since the array form carries neither.
		toks = append(toks,
			numTok(st.wordSpace), opTok("Tw"),
			numTok(st.charSpace), opTok("Tc"),
			opTok("T*"))
	}
	return append(toks, arrTok(elems), opTok("TJ")), diags
}

// mapRunBytes translates character codes through the rule's encoding map.
func mapRunBytes(text []byte, rule *ReplacementRule) ([]byte, []Diagnostic) {
	var diags []Diagnostic
	out := make([]byte, 0, len(text))
	for _, c := range text {
		r := rule.encoding.mapCode(c)
		b, ok := encodeTargetChar(r, c)
		if !ok {
			diags = append(diags, warnf("target character %q (from code 0x%02X) needs a multi-byte encoding; source code kept", r, c))
		}
		out = append(out, b)
	}
	return out, diags
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func numTok(v float64) Token  { return Token{Kind: TokNumber, Num: v} }
func strTok(b []byte) Token   { return Token{Kind: TokString, Str: b} }
func nameTok(n string) Token  { return Token{Kind: TokName, Name: n} }
func opTok(n string) Token    { return Token{Kind: TokOperator, Name: n} }
func arrTok(e []Token) Token  { return Token{Kind: TokArray, Elems: e} }
