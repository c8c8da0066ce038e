// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package tracer

import (
	"fmt"
	"sync"
)

// Level tags a trace entry with the severity it was logged at.
type Level string

const (
	Debug Level = "DEBUG"
	Warn  Level = "WARN"
	Error Level = "ERROR"
)

var (
	mu            sync.Mutex
	traceMessages []string
)

// Log adds a message to the trace log. Safe for concurrent workers.
func Log(level Level, msg string) {
	mu.Lock()
	traceMessages = append(traceMessages, fmt.Sprintf("[%s] %s", level, msg))
	mu.Unlock()
}

// Flush prints the accumulated trace log and resets it.
func Flush() {
	mu.Lock()
	msgs := traceMessages
	traceMessages = nil
	mu.Unlock()
	for _, msg := range msgs {
		fmt.Println(msg)
	}
}
