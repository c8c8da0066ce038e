// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package swapfont

import (
	"strconv"
	"strings"
)

// An encodingMap translates source character codes to target characters.
// Type 3 encodings are author-defined and not self-describing, so an
// explicit map is the only principled translation; codes absent from the
// map keep their literal interpretation.
type encodingMap map[byte]rune

// compileEncodingMap parses the configured source-code → target-character
// table. Keys are hexadecimal byte values, with or without an 0x prefix
// ("0x41" or "41"); values are single characters.
func compileEncodingMap(raw map[string]string) (encodingMap, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	m := make(encodingMap, len(raw))
	for k, v := range raw {
		code, err := parseCodeKey(k)
		if err != nil {
			return nil, err
		}
		runes := []rune(v)
		if len(runes) != 1 {
			return nil, &ConfigError{Reason: "encoding_map value " + strconv.Quote(v) + " must be a single character"}
		}
		m[code] = runes[0]
	}
	return m, nil
}

func parseCodeKey(k string) (byte, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(k, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, &ConfigError{Reason: "encoding_map key " + strconv.Quote(k) + " is not a hexadecimal byte"}
	}
	return byte(v), nil
}

// mapCode resolves one source code to its target character. Unmapped
// codes fall back to identity: the code's literal value is taken as the
// target character unchanged.
func (m encodingMap) mapCode(c byte) rune {
	if m != nil {
		if r, ok := m[c]; ok {
			return r
		}
	}
	return rune(c)
}

// encodeTargetChar converts a target character back to a single stream
// byte. Characters above 0xFF cannot be expressed in a one-byte encoding;
// the source code is kept so the glyph is not dropped, and ok is false so
// the caller can report it.
func encodeTargetChar(r rune, src byte) (b byte, ok bool) {
	if r <= 0xFF {
		return byte(r), true
	}
	return src, false
}
