// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Package swapfont rewrites PDF content streams so that text shown with a
// legacy font (typically a bitmapped Type 3 font) is shown with a
// replacement outline font instead, without disturbing the page layout.
//
// # Overview
//
// The engine works on one decoded content stream at a time. It tokenizes
// the stream, replays the tokens once to annotate every text-showing
// operation with the graphics state active when it executes, and then
// rewrites the operations whose font matches a ReplacementRule. The
// replacement font's glyphs rarely share the source font's advance
// widths, so each rewritten run carries a horizontal-scale (Tz) value
// chosen to make it occupy the original width; when the required scale
// falls outside the rule's bounds, the run is decomposed into explicitly
// positioned glyph runs computed from the original advances.
//
// Everything outside the rewritten spans is re-emitted byte for byte.
// The engine never owns the document: it consumes content-stream bytes
// plus resolved FontDescriptors and returns rewritten bytes, per-rule
// diagnostics, and the font resources the caller must register.
//
// A stream that fails to tokenize is passed through unchanged; layout
// correctness is never traded for a partial rewrite.
package swapfont

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/sassoftware/pdf-swapfont/logger"
)

// scaleEpsilon is the tolerance for deciding whether an emitted Tz value
// actually differs from the scale the stream is already carrying.
const scaleEpsilon = 1e-6

type edit struct {
	lo, hi int
	data   []byte
}

// RewriteStream rewrites one content stream under the given rules. The
// fonts map resolves font resource names to their source-side
// descriptors. Rules must have been prepared by a Processor (target
// metrics loaded, encoding compiled); unprepared rules are reported and
// skipped.
//
// The returned error is non-nil only for grammar violations, in which
// case the result still carries the original bytes so the caller can pass
// the stream through.
func RewriteStream(content []byte, fonts map[string]*FontDescriptor, rules []*ReplacementRule) (*StreamResult, error) {
	res := &StreamResult{Content: content, Rules: make([]RuleResult, len(rules))}
	resIdx := make(map[string]int, len(rules))
	for i, r := range rules {
		res.Rules[i] = RuleResult{Rule: r.SourceFontName}
		resIdx[r.SourceFontName] = i
	}
	report := func(rule string, d ...Diagnostic) {
		i, ok := resIdx[rule]
		if !ok {
			return
		}
		res.Rules[i].Diagnostics = append(res.Rules[i].Diagnostics, d...)
		for _, diag := range d {
			if diag.Level == DiagWarning {
				logger.Warn(diag.Message, "rule", rule)
			} else {
				logger.Error(diag.Message, "rule", rule)
			}
		}
	}

	active := make(map[string]*ReplacementRule, len(rules))
	for _, r := range rules {
		if !r.prepared() {
			report(r.SourceFontName, errorf("target font %q not loaded; rule skipped", r.TargetFontFile))
			continue
		}
		if _, ok := fonts[r.SourceFontName]; !ok {
			report(r.SourceFontName, warnf("source font %q not present in stream resources; rule not applicable", r.SourceFontName))
			continue
		}
		active[r.SourceFontName] = r
	}

	toks, err := tokenize(content)
	if err != nil {
		for i := range res.Rules {
			res.Rules[i].Diagnostics = append(res.Rules[i].Diagnostics, errorf("stream not rewritten: %v", err))
		}
		return res, err
	}
	if len(active) == 0 {
		return res, nil
	}

	ann := annotate(toks)
	edits, applied := planEdits(toks, ann, active, fonts, report)
	if len(edits) == 0 {
		return res, nil
	}

	res.Content = applyEdits(content, edits)
	for _, r := range rules {
		if applied[r.SourceFontName] {
			res.Rules[resIdx[r.SourceFontName]].Applied = true
			res.Resources = append(res.Resources, FontResource{Name: r.TargetFontName, Program: r.metrics.Program()})
		}
	}
	logger.Debug(fmt.Sprintf("rewrite: %d edits, %d rules applied, %d -> %d bytes",
		len(edits), len(res.Resources), len(content), len(res.Content)), true)
	return res, nil
}

// event interleaves the three annotation kinds back into token order so
// the rewriting pass is a single forward walk.
type event struct {
	opIndex int
	show    *textShow
	font    *fontSel
	scale   *scaleEvent
	save    *scaleEvent
}

func planEdits(toks []Token, ann annotation, active map[string]*ReplacementRule,
	fonts map[string]*FontDescriptor, report func(string, ...Diagnostic)) ([]edit, map[string]bool) {

	var events []event
	for i := range ann.shows {
		events = append(events, event{opIndex: ann.shows[i].opIndex, show: &ann.shows[i]})
	}
	for i := range ann.fonts {
		events = append(events, event{opIndex: ann.fonts[i].opIndex, font: &ann.fonts[i]})
	}
	for i := range ann.scales {
		events = append(events, event{opIndex: ann.scales[i].opIndex, scale: &ann.scales[i]})
	}
	for i := range ann.saves {
		events = append(events, event{opIndex: ann.saves[i].opIndex, save: &ann.saves[i]})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].opIndex < events[j].opIndex })

	var edits []edit
	applied := make(map[string]bool)
	curScale := 100.0 // scale the emitted stream carries at this point

	for _, ev := range events {
		switch {
		case ev.scale != nil:
			// The original Tz or Q token stays in the stream and
			// resynchronizes the emitted state.
			curScale = ev.scale.scale

		case ev.save != nil:
			// The emitted q must save the scale the original saved, or the
			// matching Q restores a rewritten value into untouched text.
			if diff(curScale, ev.save.scale) {
				edits = append(edits, insertBefore(toks[ev.save.opIndex].Lo, ev.save.scale))
				curScale = ev.save.scale
			}

		case ev.font != nil:
			rule, ok := active[ev.font.name]
			if !ok {
				continue
			}
			nt := toks[ev.font.nameIndex]
			edits = append(edits, edit{nt.Lo, nt.Hi, serializeToken(nameTok(rule.TargetFontName))})
			if rule.FontSizeScalePercent != 100 {
				sizeTok := toks[ev.font.sizeIndex]
				scaled := roundTo(ev.font.size*rule.FontSizeScalePercent/100, 3)
				edits = append(edits, edit{sizeTok.Lo, sizeTok.Hi, []byte(formatNumber(scaled))})
			}
			applied[ev.font.name] = true

		case ev.show != nil:
			show := ev.show
			rule, ok := active[show.state.fontName]
			if !ok {
				// Untouched operation: restore the scale the original
				// stream expects here, if a rewrite changed it.
				if diff(curScale, show.state.scale) {
					edits = append(edits, insertBefore(show.lo, show.state.scale))
					curScale = show.state.scale
				}
				continue
			}
			src := fonts[show.state.fontName]
			run, ok := buildRun(*show, toks)
			if !ok {
				report(rule.SourceFontName, warnf("malformed %s operands at offset %d left untouched", show.op, show.lo))
				if diff(curScale, show.state.scale) {
					edits = append(edits, insertBefore(show.lo, show.state.scale))
					curScale = show.state.scale
				}
				continue
			}
			plan, diags := strategyFor(rule).planRun(run, *show, rule, src)
			report(rule.SourceFontName, diags...)
			if plan == nil {
				if diff(curScale, show.state.scale) {
					edits = append(edits, insertBefore(show.lo, show.state.scale))
					curScale = show.state.scale
				}
				continue
			}

			var out bytes.Buffer
			if diff(curScale, plan.scale) {
				out.WriteString(formatNumber(plan.scale))
				out.WriteString(" Tz")
				if len(plan.toks) > 0 {
					out.WriteByte(' ')
				}
				curScale = plan.scale
			}
			for i, t := range plan.toks {
				if i > 0 {
					out.WriteByte(' ')
				}
				out.Write(serializeToken(t))
			}
			edits = append(edits, edit{show.lo, show.hi, out.Bytes()})
			applied[show.state.fontName] = true
		}
	}
	return edits, applied
}

func diff(a, b float64) bool {
	d := a - b
	return d > scaleEpsilon || d < -scaleEpsilon
}

func insertBefore(pos int, scale float64) edit {
	return edit{pos, pos, []byte(formatNumber(scale) + " Tz ")}
}

// buildRun decodes a text-showing operation's operands into run elements.
func buildRun(show textShow, toks []Token) ([]runElem, bool) {
	str := func(t Token) ([]runElem, bool) {
		if t.Kind != TokString {
			return nil, false
		}
		return []runElem{{text: nonNilBytes(t.Str)}}, true
	}
	switch show.op {
	case "Tj", "'":
		return str(toks[show.argIndex])
	case "\"":
		return str(toks[show.argIndex+2])
	case "TJ":
		arr := toks[show.argIndex]
		run := make([]runElem, 0, len(arr.Elems))
		for _, el := range arr.Elems {
			switch el.Kind {
			case TokString:
				run = append(run, runElem{text: nonNilBytes(el.Str)})
			case TokNumber:
				run = append(run, runElem{offset: el.Num})
			default:
				return nil, false
			}
		}
		return run, true
	}
	return nil, false
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// applyEdits splices the edits into the original bytes. Untouched regions
// are copied verbatim; edits never overlap.
func applyEdits(content []byte, edits []edit) []byte {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].lo < edits[j].lo })
	var out bytes.Buffer
	prev := 0
	for _, e := range edits {
		out.Write(content[prev:e.lo])
		out.Write(e.data)
		prev = e.hi
	}
	out.Write(content[prev:])
	return out.Bytes()
}

// serializeToken renders a synthesized token as well-formed content-stream
// bytes. Verbatim tokens never pass through here; their original bytes are
// preserved by applyEdits.
func serializeToken(t Token) []byte {
	var buf bytes.Buffer
	writeToken(&buf, t)
	return buf.Bytes()
}

func writeToken(buf *bytes.Buffer, t Token) {
	switch t.Kind {
	case TokNumber:
		buf.WriteString(formatNumber(t.Num))
	case TokString:
		writeLiteralString(buf, t.Str)
	case TokName:
		buf.WriteByte('/')
		for i := 0; i < len(t.Name); i++ {
			b := t.Name[i]
			if isRegular(b) && b != '#' && b > 0x20 && b < 0x7F {
				buf.WriteByte(b)
			} else {
				fmt.Fprintf(buf, "#%02X", b)
			}
		}
	case TokArray:
		buf.WriteByte('[')
		for i, el := range t.Elems {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeToken(buf, el)
		}
		buf.WriteByte(']')
	case TokBool:
		if t.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case TokNull:
		buf.WriteString("null")
	case TokOperator:
		buf.WriteString(t.Name)
	}
}

func writeLiteralString(buf *bytes.Buffer, s []byte) {
	buf.WriteByte('(')
	for _, b := range s {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if b < 0x20 || b > 0x7E {
				fmt.Fprintf(buf, `\%03o`, b)
			} else {
				buf.WriteByte(b)
			}
		}
	}
	buf.WriteByte(')')
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
