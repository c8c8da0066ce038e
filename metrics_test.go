// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package swapfont

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFontDescriptor_Width(t *testing.T) {
	f := &FontDescriptor{FirstChar: 0x41, Widths: []float64{500, 550}, DefaultWidth: 300}
	assert.Equal(t, 500.0, f.Width('A'))
	assert.Equal(t, 550.0, f.Width('B'))
	assert.Equal(t, 300.0, f.Width('C'), "out of range falls back to DefaultWidth")
	assert.Equal(t, 300.0, f.Width(0x20))
}

func TestFontDescriptor_WidthScale(t *testing.T) {
	// Type 3 widths in FontMatrix units, normalized through WidthScale
	f := &FontDescriptor{FirstChar: 1, Widths: []float64{500}, WidthScale: 2}
	assert.Equal(t, 1000.0, f.Width(1))

	f.WidthScale = 0 // unset means identity
	assert.Equal(t, 500.0, f.Width(1))
}

func TestLoadTargetFont_MissingFile(t *testing.T) {
	m, err := LoadTargetFont("testdata/does-not-exist.ttf")
	require.Error(t, err)
	assert.Nil(t, m)
	var fle *FontLoadError
	require.ErrorAs(t, err, &fle)
	assert.Equal(t, "testdata/does-not-exist.ttf", fle.Path)
}

func TestParseTargetFont_Garbage(t *testing.T) {
	m, err := ParseTargetFont([]byte("not a font program"))
	require.Error(t, err)
	assert.Nil(t, m)
}

func TestStaticMetrics_CharWidth(t *testing.T) {
	m := newStaticTargetMetrics(map[rune]float64{'A': 600, 'V': 500}, 250)

	w, ok := m.CharWidth('A')
	assert.True(t, ok)
	assert.Equal(t, 600.0, w)

	w, ok = m.CharWidth('Z')
	assert.False(t, ok, "missing glyph degrades to fallback")
	assert.Equal(t, 250.0, w)
}

func TestOriginalRunWidth(t *testing.T) {
	f := &FontDescriptor{FirstChar: 0x41, Widths: []float64{500, 550}}
	st := newTextState()
	st.fontSize = 12

	run := []runElem{{text: []byte("AB")}}
	assert.InDelta(t, 12.6, originalRunWidth(run, f, st), 1e-9)

	// horizontal scale multiplies
	st.scale = 50
	assert.InDelta(t, 6.3, originalRunWidth(run, f, st), 1e-9)
	st.scale = 100

	// TJ offsets move the pen: positive moves left, shrinking the run
	run = []runElem{{text: []byte("A")}, {offset: 100}, {text: []byte("B")}}
	assert.InDelta(t, 12.6-1.2, originalRunWidth(run, f, st), 1e-9)
}

func TestOriginalRunWidth_Spacing(t *testing.T) {
	f := &FontDescriptor{FirstChar: 0x41, Widths: []float64{500}, DefaultWidth: 250}
	st := newTextState()
	st.fontSize = 10
	st.charSpace = 1
	st.wordSpace = 2

	// "A A": two glyph advances + Tc each + Tw for the space
	run := []runElem{{text: []byte("A A")}}
	want := (500.0/1000*10 + 1) + (250.0/1000*10 + 1 + 2) + (500.0/1000*10 + 1)
	assert.InDelta(t, want, originalRunWidth(run, f, st), 1e-9)
}

func TestReplacementRunWidth(t *testing.T) {
	rule := NewReplacementRule("F1", "x.ttf", "F1R")
	rule.metrics = newStaticTargetMetrics(map[rune]float64{'A': 600, 'V': 500}, 400)
	st := newTextState()
	st.fontSize = 12
	st.scale = 50 // replacement width is always computed at 100%

	w, diags := replacementRunWidth([]runElem{{text: []byte("AV")}}, rule, st)
	assert.InDelta(t, 13.2, w, 1e-9)
	assert.Empty(t, diags)
}

func TestReplacementRunWidth_FontSizeScale(t *testing.T) {
	// width is computed at the size the rewritten Tf will carry
	rule := NewReplacementRule("F1", "x.ttf", "F1R")
	rule.FontSizeScalePercent = 50
	rule.metrics = newStaticTargetMetrics(map[rune]float64{'A': 600}, 0)
	st := newTextState()
	st.fontSize = 12

	w, _ := replacementRunWidth([]runElem{{text: []byte("A")}}, rule, st)
	assert.InDelta(t, 3.6, w, 1e-9)
}

func TestReplacementRunWidth_MissingGlyph(t *testing.T) {
	rule := NewReplacementRule("F1", "x.ttf", "F1R")
	rule.metrics = newStaticTargetMetrics(map[rune]float64{'A': 600}, 400)
	st := newTextState()
	st.fontSize = 10

	w, diags := replacementRunWidth([]runElem{{text: []byte("AZ")}}, rule, st)
	assert.InDelta(t, 6+4, w, 1e-9)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagWarning, diags[0].Level)
	assert.Contains(t, diags[0].Message, "missing in target font")
}

func TestReplacementRunWidth_SkipsSourceOffsets(t *testing.T) {
	rule := NewReplacementRule("F1", "x.ttf", "F1R")
	rule.metrics = newStaticTargetMetrics(map[rune]float64{'A': 600}, 400)
	st := newTextState()
	st.fontSize = 10

	w, _ := replacementRunWidth([]runElem{{text: []byte("A")}, {offset: -500}}, rule, st)
	assert.InDelta(t, 6, w, 1e-9)
}
