// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package swapfont

import (
	"fmt"

	"github.com/sassoftware/pdf-swapfont/logger"
)

type matrix [3][3]float64

var ident = matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func (x matrix) mul(y matrix) matrix {
	var z matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				z[i][j] += x[i][k] * y[k][j]
			}
		}
	}
	return z
}

// textState is the subset of the graphics state that text showing depends
// on. It is a plain value threaded through the annotation fold; snapshots
// of it travel with every text-showing annotation so the rewriting pass
// never has to re-derive state.
type textState struct {
	fontName  string
	fontSize  float64
	scale     float64 // Tz, percent
	charSpace float64 // Tc
	wordSpace float64 // Tw
	leading   float64 // TL
	tm        matrix
	tlm       matrix
	ctm       matrix
}

func newTextState() textState {
	return textState{scale: 100, tm: ident, tlm: ident, ctm: ident}
}

// A textShow annotates one text-showing operation: which tokens it spans
// and the state active when it executes.
type textShow struct {
	op       string // Tj, ', ", TJ
	opIndex  int    // token index of the operator
	argIndex int    // token index of the first operand
	lo, hi   int    // byte span from first operand through operator
	state    textState
}

// A fontSel annotates a Tf operation so the rewriter can substitute the
// resource name and size operands in place.
type fontSel struct {
	opIndex   int
	nameIndex int
	sizeIndex int
	name      string
	size      float64
}

// A scaleEvent marks a token after which the emitted stream's horizontal
// scale is forced to a known value: an explicit Tz, or a Q restoring
// saved state.
type scaleEvent struct {
	opIndex int
	scale   float64
}

type annotation struct {
	shows  []textShow
	fonts  []fontSel
	scales []scaleEvent
	saves  []scaleEvent // q tokens and the scale they save
}

// annotate replays the token sequence once, carrying textState forward and
// recording an annotation for every text-showing and font-selection
// operator. The pass is read-only over tokens; the rewriting pass works
// from its output without backtracking.
func annotate(toks []Token) annotation {
	var ann annotation
	st := newTextState()
	var stack []textState
	argStart := -1

	for i, tok := range toks {
		if tok.Kind != TokOperator {
			if argStart < 0 {
				argStart = i
			}
			continue
		}
		var args []Token
		if argStart >= 0 {
			args = toks[argStart:i:i]
		}
		lo := tok.Lo
		if len(args) > 0 {
			lo = args[0].Lo
		}

		switch tok.Name {
		case "q":
			stack = append(stack, st)
			ann.saves = append(ann.saves, scaleEvent{i, st.scale})
		case "Q":
			if n := len(stack); n > 0 {
				st = stack[n-1]
				stack = stack[:n-1]
			}
			ann.scales = append(ann.scales, scaleEvent{i, st.scale})
		case "cm":
			if len(args) == 6 {
				var m matrix
				for k := 0; k < 6; k++ {
					m[k/2][k%2] = args[k].Num
				}
				m[2][2] = 1
				st.ctm = m.mul(st.ctm)
			}
		case "BT":
			st.tm = ident
			st.tlm = ident
		case "ET":
		case "Tf":
			if len(args) == 2 {
				st.fontName = args[0].Name
				st.fontSize = args[1].Num
				ann.fonts = append(ann.fonts, fontSel{
					opIndex:   i,
					nameIndex: argStart,
					sizeIndex: argStart + 1,
					name:      st.fontName,
					size:      st.fontSize,
				})
			}
		case "Tz":
			if len(args) == 1 {
				st.scale = args[0].Num
				ann.scales = append(ann.scales, scaleEvent{i, st.scale})
			}
		case "Tc":
			if len(args) == 1 {
				st.charSpace = args[0].Num
			}
		case "Tw":
			if len(args) == 1 {
				st.wordSpace = args[0].Num
			}
		case "TL":
			if len(args) == 1 {
				st.leading = args[0].Num
			}
		case "Tm":
			if len(args) == 6 {
				var m matrix
				for k := 0; k < 6; k++ {
					m[k/2][k%2] = args[k].Num
				}
				m[2][2] = 1
				st.tm = m
				st.tlm = m
			}
		case "TD":
			if len(args) == 2 {
				st.leading = -args[1].Num
			}
			fallthrough
		case "Td":
			if len(args) == 2 {
				x := matrix{{1, 0, 0}, {0, 1, 0}, {args[0].Num, args[1].Num, 1}}
				st.tlm = x.mul(st.tlm)
				st.tm = st.tlm
			}
		case "T*":
			st.nextLine()
		case "Tj":
			if len(args) == 1 {
				ann.shows = append(ann.shows, textShow{"Tj", i, argStart, lo, tok.Hi, st})
			}
		case "'":
			if len(args) == 1 {
				st.nextLine()
				ann.shows = append(ann.shows, textShow{"'", i, argStart, lo, tok.Hi, st})
			}
		case "\"":
			if len(args) == 3 {
				st.wordSpace = args[0].Num
				st.charSpace = args[1].Num
				st.nextLine()
				ann.shows = append(ann.shows, textShow{"\"", i, argStart, lo, tok.Hi, st})
			}
		case "TJ":
			if len(args) == 1 && args[0].Kind == TokArray {
				ann.shows = append(ann.shows, textShow{"TJ", i, argStart, lo, tok.Hi, st})
			}
		}
		argStart = -1
	}

	logger.Debug(fmt.Sprintf("annotate: %d text ops, %d font selections", len(ann.shows), len(ann.fonts)))
	return ann
}

func (st *textState) nextLine() {
	x := matrix{{1, 0, 0}, {0, 1, 0}, {0, -st.leading, 1}}
	st.tlm = x.mul(st.tlm)
	st.tm = st.tlm
}
