// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package swapfont

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_Basic(t *testing.T) {
	src := []byte("BT /F1 12 Tf (Hi) Tj ET")
	toks, err := tokenize(src)
	require.NoError(t, err)
	require.Len(t, toks, 7)

	assert.Equal(t, TokOperator, toks[0].Kind)
	assert.Equal(t, "BT", toks[0].Name)
	assert.Equal(t, TokName, toks[1].Kind)
	assert.Equal(t, "F1", toks[1].Name)
	assert.Equal(t, TokNumber, toks[2].Kind)
	assert.Equal(t, 12.0, toks[2].Num)
	assert.Equal(t, TokString, toks[4].Kind)
	assert.Equal(t, []byte("Hi"), toks[4].Str)

	// every token's span must reproduce its original bytes
	for _, tok := range toks {
		assert.NotEmpty(t, string(src[tok.Lo:tok.Hi]))
	}
	assert.Equal(t, "(Hi)", string(src[toks[4].Lo:toks[4].Hi]))
	assert.Equal(t, "Tj", string(src[toks[5].Lo:toks[5].Hi]))
}

func TestTokenize_LiteralStringEscapes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"escaped parens", `(a\(b\)c)`, "a(b)c"},
		{"escaped backslash", `(a\\b)`, `a\b`},
		{"balanced nested parens", `(a(b)c)`, "a(b)c"},
		{"named escapes", `(x\n\r\t\b\fy)`, "x\n\r\t\b\fy"},
		{"octal", `(\101BC)`, "ABC"},
		{"short octal stops at non-digit", `(\10x)`, "\010x"},
		{"line continuation", "(a\\\nb)", "ab"},
		{"unknown escape drops backslash", `(\q)`, "q"},
		{"empty", `()`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := tokenize([]byte(tt.src))
			require.NoError(t, err)
			require.Len(t, toks, 1)
			assert.Equal(t, TokString, toks[0].Kind)
			assert.Equal(t, tt.want, string(toks[0].Str))
		})
	}
}

func TestTokenize_HexString(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []byte
	}{
		{"even digits", "<48656C6C6F>", []byte("Hello")},
		{"odd digit padded with zero", "<486>", []byte{0x48, 0x60}},
		{"embedded whitespace", "<48 65>", []byte("He")},
		{"empty", "<>", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := tokenize([]byte(tt.src))
			require.NoError(t, err)
			require.Len(t, toks, 1)
			assert.Equal(t, TokString, toks[0].Kind)
			assert.Equal(t, tt.want, toks[0].Str)
		})
	}
}

func TestTokenize_Name(t *testing.T) {
	toks, err := tokenize([]byte("/F1 /A#20B /Fo-o"))
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, "F1", toks[0].Name)
	assert.Equal(t, "A B", toks[1].Name)
	assert.Equal(t, "Fo-o", toks[2].Name)
}

func TestTokenize_Array(t *testing.T) {
	toks, err := tokenize([]byte("[(A) -120 (B)] TJ"))
	require.NoError(t, err)
	require.Len(t, toks, 2)
	arr := toks[0]
	require.Equal(t, TokArray, arr.Kind)
	require.Len(t, arr.Elems, 3)
	assert.Equal(t, TokString, arr.Elems[0].Kind)
	assert.Equal(t, -120.0, arr.Elems[1].Num)
	assert.Equal(t, []byte("B"), arr.Elems[2].Str)
	assert.Equal(t, "TJ", toks[1].Name)
}

func TestTokenize_Dict(t *testing.T) {
	toks, err := tokenize([]byte("<< /Type /Font /Size 3 >> gs"))
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, TokDict, toks[0].Kind)
	assert.Len(t, toks[0].Elems, 4)
}

func TestTokenize_CommentAndKeywords(t *testing.T) {
	toks, err := tokenize([]byte("% setup\ntrue false null 1 0 0 1 0 0 cm"))
	require.NoError(t, err)
	require.Len(t, toks, 10)
	assert.Equal(t, TokBool, toks[0].Kind)
	assert.True(t, toks[0].Bool)
	assert.Equal(t, TokBool, toks[1].Kind)
	assert.False(t, toks[1].Bool)
	assert.Equal(t, TokNull, toks[2].Kind)
	assert.Equal(t, "cm", toks[9].Name)
}

func TestTokenize_InlineImage(t *testing.T) {
	src := []byte("q BI /W 1 /H 1 ID \x00\x01 EI Q")
	toks, err := tokenize(src)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, TokInlineImage, toks[1].Kind)
	assert.Equal(t, "Q", toks[2].Name)
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ParseErrorKind
	}{
		{"unterminated literal string", "(abc", UnterminatedString},
		{"stray close paren", ") Tj", UnterminatedString},
		{"unterminated hex string", "<48", UnterminatedString},
		{"bad hex digit", "<4G>", UnterminatedString},
		{"unterminated array", "[1 2", UnterminatedArray},
		{"stray close bracket", "] TJ", UnterminatedArray},
		{"unterminated dict", "<< /A 1", UnterminatedArray},
		{"malformed number", "1.2.3 Td", InvalidNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := tokenize([]byte(tt.src))
			require.Error(t, err)
			assert.Nil(t, toks)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
		})
	}
}
