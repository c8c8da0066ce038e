// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package swapfont

import (
	"fmt"
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/math/fixed"

	"github.com/sassoftware/pdf-swapfont/logger"
)

// A FontDescriptor is the source-side view of a font resource: the glyph
// width table keyed by character code, as resolved from the document's
// resource dictionary by the caller. For Type 3 fonts the caller supplies
// WidthScale from the FontMatrix so widths normalize to the usual
// 1000-units-per-em glyph space.
type FontDescriptor struct {
	FirstChar    int
	Widths       []float64
	DefaultWidth float64 // MissingWidth fallback
	WidthScale   float64 // FontMatrix[0] × 1000; 0 means 1
}

// Width returns the glyph-space advance width for a character code.
// Codes outside [FirstChar, FirstChar+len(Widths)) fall back to
// DefaultWidth.
func (f *FontDescriptor) Width(code byte) float64 {
	idx := int(code) - f.FirstChar
	w := f.DefaultWidth
	if idx >= 0 && idx < len(f.Widths) {
		w = f.Widths[idx]
	}
	if f.WidthScale != 0 {
		w *= f.WidthScale
	}
	return w
}

// TargetFontMetrics holds the advance widths of a replacement outline
// font, normalized to 1000 units per em so they compare directly against
// FontDescriptor widths. Loaded once per rule, read-only afterwards, and
// safe to share across concurrent workers.
type TargetFontMetrics struct {
	font     *truetype.Font
	upem     float64
	fallback float64 // advance of glyph 0 (.notdef)
	program  []byte

	mu     sync.RWMutex
	widths map[rune]float64
}

// LoadTargetFont reads and parses a TrueType font file. Failures are
// reported as *FontLoadError so the caller can disable just the rules that
// reference this file.
func LoadTargetFont(path string) (*TargetFontMetrics, error) {
	program, err := os.ReadFile(path)
	if err != nil {
		return nil, &FontLoadError{Path: path, Err: err}
	}
	m, err := ParseTargetFont(program)
	if err != nil {
		return nil, &FontLoadError{Path: path, Err: err}
	}
	logger.Debug(fmt.Sprintf("loaded target font %s (%d bytes, %g units/em)", path, len(program), m.upem), true)
	return m, nil
}

// ParseTargetFont parses an in-memory TrueType font program.
func ParseTargetFont(program []byte) (*TargetFontMetrics, error) {
	f, err := truetype.Parse(program)
	if err != nil {
		return nil, err
	}
	m := &TargetFontMetrics{
		font:    f,
		upem:    float64(f.FUnitsPerEm()),
		program: program,
		widths:  make(map[rune]float64),
	}
	m.fallback = m.rawAdvance(truetype.Index(0))
	return m, nil
}

// newStaticTargetMetrics builds metrics from an explicit width table.
// Used by tests and by callers that already hold width data.
func newStaticTargetMetrics(widths map[rune]float64, fallback float64) *TargetFontMetrics {
	w := make(map[rune]float64, len(widths))
	for r, v := range widths {
		w[r] = v
	}
	return &TargetFontMetrics{widths: w, fallback: fallback}
}

// rawAdvance returns a glyph's advance in 1000-units-per-em space.
// Passing FUnitsPerEm as the scale makes HMetric report font units.
func (m *TargetFontMetrics) rawAdvance(idx truetype.Index) float64 {
	hm := m.font.HMetric(fixed.Int26_6(m.font.FUnitsPerEm()), idx)
	return float64(hm.AdvanceWidth) * 1000 / m.upem
}

// CharWidth returns the advance width for a target character, normalized
// to 1000 units per em. ok is false when the font has no glyph for the
// character; the .notdef advance is returned so the caller can degrade
// instead of aborting.
func (m *TargetFontMetrics) CharWidth(r rune) (w float64, ok bool) {
	m.mu.RLock()
	w, hit := m.widths[r]
	m.mu.RUnlock()
	if hit {
		return w, true
	}
	if m.font == nil {
		return m.fallback, false
	}
	idx := m.font.Index(r)
	if idx == 0 {
		return m.fallback, false
	}
	w = m.rawAdvance(idx)
	m.mu.Lock()
	m.widths[r] = w
	m.mu.Unlock()
	return w, true
}

// Program returns the raw font file bytes, unmodified, for resource
// registration by the caller.
func (m *TargetFontMetrics) Program() []byte { return m.program }

// originalRunWidth computes the text-space width of a run of character
// codes under the source font: Σ(glyph width/1000 × size + Tc [+ Tw for
// spaces]), numeric TJ offsets subtracted, all scaled by the active
// horizontal scale.
func originalRunWidth(run []runElem, f *FontDescriptor, st textState) float64 {
	w := 0.0
	for _, el := range run {
		if el.text == nil {
			w -= el.offset / 1000 * st.fontSize
			continue
		}
		for _, c := range el.text {
			w += f.Width(c)/1000*st.fontSize + st.charSpace
			if c == ' ' {
				w += st.wordSpace
			}
		}
	}
	return w * st.scale / 100
}

// replacementRunWidth computes the text-space width the mapped run would
// occupy under the target font at 100% horizontal scale, at the font size
// the rewritten Tf will carry (FontSizeScalePercent applied). Characters
// the target font lacks contribute the .notdef advance and are reported as
// warning diagnostics by the caller.
func replacementRunWidth(run []runElem, rule *ReplacementRule, st textState) (float64, []Diagnostic) {
	var diags []Diagnostic
	tfs := st.fontSize * rule.FontSizeScalePercent / 100
	w := 0.0
	for _, el := range run {
		if el.text == nil {
			continue // source offsets are re-derived, not carried
		}
		for _, c := range el.text {
			r := rule.encoding.mapCode(c)
			cw, ok := rule.metrics.CharWidth(r)
			if !ok {
				diags = append(diags, warnf("glyph %q (mapped from code 0x%02X) missing in target font; using fallback width %.1f", r, c, cw))
			}
			w += cw/1000*tfs + st.charSpace
			b, _ := encodeTargetChar(r, c)
			if b == ' ' {
				w += st.wordSpace
			}
		}
	}
	return w, diags
}
