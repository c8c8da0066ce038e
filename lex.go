// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package swapfont

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/sassoftware/pdf-swapfont/logger"
)

// A TokenKind identifies the kind of data underlying a Token.
type TokenKind int

// The content-stream token kinds.
const (
	TokNumber TokenKind = iota
	TokString
	TokName
	TokArray
	TokDict
	TokBool
	TokNull
	TokOperator
	TokInlineImage
)

// A Token is a single operand or operator in a content stream.
// Lo and Hi delimit the token's original bytes, so that untouched tokens
// can be re-emitted verbatim. Tokens synthesized by the rewriter carry a
// zero span. Tokens are immutable; rewriting replaces them.
type Token struct {
	Kind  TokenKind
	Lo    int
	Hi    int
	Num   float64 // TokNumber
	Str   []byte  // TokString, decoded bytes
	Name  string  // TokName (without slash) or TokOperator keyword
	Bool  bool    // TokBool
	Elems []Token // TokArray, TokDict
}

var lexWS [4]uint64 // the six ISO 32000-1 §7.2.2 whitespace bytes

func init() {
	for _, b := range []byte{0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20} {
		lexWS[b>>6] |= 1 << (b & 63)
	}
}

func isSpace(b byte) bool {
	return (lexWS[b>>6] & (1 << (b & 63))) != 0
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(b byte) bool {
	return !isSpace(b) && !isDelim(b)
}

type lexer struct {
	src []byte
	pos int
}

// tokenize converts raw content-stream bytes into the flat token sequence
// the two rewriting passes consume. It is stateless between invocations;
// independent streams never share a lexer.
func tokenize(src []byte) ([]Token, error) {
	lx := &lexer{src: src}
	var toks []Token
	for {
		tok, ok, err := lx.next()
		if err != nil {
			logger.Error(err.Error())
			return nil, err
		}
		if !ok {
			break
		}
		toks = append(toks, tok)
	}
	logger.Debug(fmt.Sprintf("tokenize: %d tokens from %d bytes", len(toks), len(src)))
	return toks, nil
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		b := lx.src[lx.pos]
		if isSpace(b) {
			lx.pos++
			continue
		}
		if b == '%' { // comment to end of line
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' && lx.src[lx.pos] != '\r' {
				lx.pos++
			}
			continue
		}
		break
	}
}

func (lx *lexer) next() (Token, bool, error) {
	lx.skipSpace()
	if lx.pos >= len(lx.src) {
		return Token{}, false, nil
	}
	lo := lx.pos
	b := lx.src[lx.pos]
	switch {
	case b == '(':
		tok, err := lx.readLiteralString()
		return tok, err == nil, err
	case b == '<':
		if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '<' {
			tok, err := lx.readDict()
			return tok, err == nil, err
		}
		tok, err := lx.readHexString()
		return tok, err == nil, err
	case b == '[':
		tok, err := lx.readArray()
		return tok, err == nil, err
	case b == '/':
		return lx.readName(), true, nil
	case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
		tok, err := lx.readNumber()
		return tok, err == nil, err
	case b == ')':
		return Token{}, false, &ParseError{UnterminatedString, lo}
	case b == ']' || b == '>' || b == '{' || b == '}':
		return Token{}, false, &ParseError{UnterminatedArray, lo}
	}
	return lx.readKeyword()
}

func (lx *lexer) readLiteralString() (Token, error) {
	lo := lx.pos
	lx.pos++ // consume (
	var out bytes.Buffer
	depth := 1
	for lx.pos < len(lx.src) {
		b := lx.src[lx.pos]
		switch b {
		case '(':
			depth++
			out.WriteByte(b)
			lx.pos++
		case ')':
			depth--
			lx.pos++
			if depth == 0 {
				return Token{Kind: TokString, Lo: lo, Hi: lx.pos, Str: out.Bytes()}, nil
			}
			out.WriteByte(b)
		case '\\':
			lx.pos++
			if lx.pos >= len(lx.src) {
				return Token{}, &ParseError{UnterminatedString, lo}
			}
			e := lx.src[lx.pos]
			switch e {
			case 'n':
				out.WriteByte('\n')
				lx.pos++
			case 'r':
				out.WriteByte('\r')
				lx.pos++
			case 't':
				out.WriteByte('\t')
				lx.pos++
			case 'b':
				out.WriteByte('\b')
				lx.pos++
			case 'f':
				out.WriteByte('\f')
				lx.pos++
			case '\n': // line continuation
				lx.pos++
			case '\r':
				lx.pos++
				if lx.pos < len(lx.src) && lx.src[lx.pos] == '\n' {
					lx.pos++
				}
			default:
				if e >= '0' && e <= '7' {
					v := 0
					for n := 0; n < 3 && lx.pos < len(lx.src); n++ {
						d := lx.src[lx.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v<<3 | int(d-'0')
						lx.pos++
					}
					out.WriteByte(byte(v))
				} else {
					// a backslash before any other byte is dropped
					out.WriteByte(e)
					lx.pos++
				}
			}
		default:
			out.WriteByte(b)
			lx.pos++
		}
	}
	return Token{}, &ParseError{UnterminatedString, lo}
}

func (lx *lexer) readHexString() (Token, error) {
	lo := lx.pos
	lx.pos++ // consume <
	var out bytes.Buffer
	var hi byte
	half := false
	for lx.pos < len(lx.src) {
		b := lx.src[lx.pos]
		if b == '>' {
			lx.pos++
			if half { // odd digit count: final digit is followed by 0
				out.WriteByte(hi << 4)
			}
			return Token{Kind: TokString, Lo: lo, Hi: lx.pos, Str: out.Bytes()}, nil
		}
		if isSpace(b) {
			lx.pos++
			continue
		}
		v := unhex(b)
		if v < 0 {
			return Token{}, &ParseError{UnterminatedString, lo}
		}
		if half {
			out.WriteByte(hi<<4 | byte(v))
			half = false
		} else {
			hi = byte(v)
			half = true
		}
		lx.pos++
	}
	return Token{}, &ParseError{UnterminatedString, lo}
}

func unhex(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	}
	return -1
}

func (lx *lexer) readArray() (Token, error) {
	lo := lx.pos
	lx.pos++ // consume [
	var elems []Token
	for {
		lx.skipSpace()
		if lx.pos >= len(lx.src) {
			return Token{}, &ParseError{UnterminatedArray, lo}
		}
		if lx.src[lx.pos] == ']' {
			lx.pos++
			return Token{Kind: TokArray, Lo: lo, Hi: lx.pos, Elems: elems}, nil
		}
		tok, ok, err := lx.next()
		if err != nil {
			return Token{}, err
		}
		if !ok {
			return Token{}, &ParseError{UnterminatedArray, lo}
		}
		elems = append(elems, tok)
	}
}

func (lx *lexer) readDict() (Token, error) {
	lo := lx.pos
	lx.pos += 2 // consume <<
	var elems []Token
	for {
		lx.skipSpace()
		if lx.pos+1 < len(lx.src) && lx.src[lx.pos] == '>' && lx.src[lx.pos+1] == '>' {
			lx.pos += 2
			return Token{Kind: TokDict, Lo: lo, Hi: lx.pos, Elems: elems}, nil
		}
		if lx.pos >= len(lx.src) {
			return Token{}, &ParseError{UnterminatedArray, lo}
		}
		tok, ok, err := lx.next()
		if err != nil {
			return Token{}, err
		}
		if !ok {
			return Token{}, &ParseError{UnterminatedArray, lo}
		}
		elems = append(elems, tok)
	}
}

func (lx *lexer) readName() Token {
	lo := lx.pos
	lx.pos++ // consume /
	var out bytes.Buffer
	for lx.pos < len(lx.src) && isRegular(lx.src[lx.pos]) {
		b := lx.src[lx.pos]
		if b == '#' && lx.pos+2 < len(lx.src) {
			h, l := unhex(lx.src[lx.pos+1]), unhex(lx.src[lx.pos+2])
			if h >= 0 && l >= 0 {
				out.WriteByte(byte(h<<4 | l))
				lx.pos += 3
				continue
			}
		}
		out.WriteByte(b)
		lx.pos++
	}
	return Token{Kind: TokName, Lo: lo, Hi: lx.pos, Name: out.String()}
}

func (lx *lexer) readNumber() (Token, error) {
	lo := lx.pos
	for lx.pos < len(lx.src) && isRegular(lx.src[lx.pos]) {
		lx.pos++
	}
	text := string(lx.src[lo:lx.pos])
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{}, &ParseError{InvalidNumber, lo}
	}
	return Token{Kind: TokNumber, Lo: lo, Hi: lx.pos, Num: v}, nil
}

func (lx *lexer) readKeyword() (Token, bool, error) {
	lo := lx.pos
	for lx.pos < len(lx.src) && isRegular(lx.src[lx.pos]) {
		lx.pos++
	}
	kw := string(lx.src[lo:lx.pos])
	switch kw {
	case "true":
		return Token{Kind: TokBool, Lo: lo, Hi: lx.pos, Bool: true}, true, nil
	case "false":
		return Token{Kind: TokBool, Lo: lo, Hi: lx.pos}, true, nil
	case "null":
		return Token{Kind: TokNull, Lo: lo, Hi: lx.pos}, true, nil
	case "BI":
		return lx.readInlineImage(lo)
	}
	return Token{Kind: TokOperator, Lo: lo, Hi: lx.pos, Name: kw}, true, nil
}

// readInlineImage consumes a BI … ID … EI block as one opaque token. The
// image payload is raw binary, so the lexer must not tokenize it.
func (lx *lexer) readInlineImage(lo int) (Token, bool, error) {
	id := bytes.Index(lx.src[lx.pos:], []byte("ID"))
	if id < 0 {
		return Token{}, false, &ParseError{UnterminatedArray, lo}
	}
	scan := lx.pos + id + 2
	for {
		ei := bytes.Index(lx.src[scan:], []byte("EI"))
		if ei < 0 {
			return Token{}, false, &ParseError{UnterminatedArray, lo}
		}
		end := scan + ei
		// EI must stand alone between whitespace to count as the terminator
		if isSpace(lx.src[end-1]) && (end+2 >= len(lx.src) || isSpace(lx.src[end+2]) || isDelim(lx.src[end+2])) {
			lx.pos = end + 2
			return Token{Kind: TokInlineImage, Lo: lo, Hi: lx.pos}, true, nil
		}
		scan = end + 2
	}
}
