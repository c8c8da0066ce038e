// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package swapfont

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sassoftware/pdf-swapfont/logger"
)

type ParsingMode string

const (
	Strict     ParsingMode = "strict"
	BestEffort ParsingMode = "best-effort"
)

// StrategyKind selects how a replacement run is fitted to the original
// width. Only scale-to-fit exists today; the field is open for future
// strategies.
type StrategyKind string

const ScaleToFit StrategyKind = "scale_to_fit"

// StrategyOptions bound the horizontal scale the engine may emit and the
// width error it tolerates before falling back to explicit per-glyph
// positioning.
type StrategyOptions struct {
	MinScale float64 `validate:"gt=0"`                   // percent
	MaxScale float64 `validate:"gt=0,gtefield=MinScale"` // percent
	// PositionTolerance is in glyph-space units (thousandths of an em).
	// A clamped run whose aggregate width error exceeds it is rewritten
	// with explicit per-glyph positioning.
	PositionTolerance float64 `validate:"gte=0"`
}

// DefaultStrategyOptions returns the liberal defaults: fit the text even
// if it looks a little squashed or stretched.
func DefaultStrategyOptions() StrategyOptions {
	return StrategyOptions{MinScale: 50, MaxScale: 200, PositionTolerance: 1}
}

// A ReplacementRule maps one source font resource to a replacement
// outline font. Rules are immutable once the processor has prepared them.
type ReplacementRule struct {
	SourceFontName string `validate:"required"`
	TargetFontFile string `validate:"required"`
	TargetFontName string `validate:"required"`

	Strategy        StrategyKind `validate:"oneof=scale_to_fit"`
	StrategyOptions StrategyOptions

	// EncodingMap translates source character codes (hexadecimal string
	// keys, "41" or "0x41") to target characters. Codes not listed map
	// to themselves.
	EncodingMap map[string]string

	// FontSizeScalePercent multiplies the size operand of rewritten Tf
	// operations. 100 leaves sizes untouched.
	FontSizeScalePercent float64 `validate:"gt=0"`

	metrics  *TargetFontMetrics
	encoding encodingMap
}

// NewReplacementRule builds a rule with default strategy options.
func NewReplacementRule(source, fontFile, target string) *ReplacementRule {
	return &ReplacementRule{
		SourceFontName:       source,
		TargetFontFile:       fontFile,
		TargetFontName:       target,
		Strategy:             ScaleToFit,
		StrategyOptions:      DefaultStrategyOptions(),
		FontSizeScalePercent: 100,
	}
}

// prepared reports whether the rule's target metrics loaded successfully.
// Unprepared rules never rewrite anything.
func (r *ReplacementRule) prepared() bool { return r.metrics != nil }

// Config controls a Processor. Rules describe the font replacements; the
// remaining fields bound concurrency.
type Config struct {
	MaxConcurrentBatches int                `validate:"min=1,max=10"`
	MaxStreamWorkers     int                `validate:"min=1,max=10"`
	WorkerTimeout        time.Duration      `validate:"required"`
	ParsingMode          ParsingMode        `validate:"oneof=strict best-effort"`
	Rules                []*ReplacementRule `validate:"dive"`
	Logger               logger.LogFunc
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxConcurrentBatches: 5,
		MaxStreamWorkers:     1,
		WorkerTimeout:        5 * time.Second,
		ParsingMode:          BestEffort,
	}
}

// Validate checks field bounds and the cross-rule invariants: target
// resource names must be distinct and must not collide with any rule's
// source name. Violations are ConfigErrors, rejected before rewriting.
func (cfg *Config) Validate() error {
	logger.Debug("validating config")
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	sources := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if sources[r.SourceFontName] {
			return &ConfigError{Rule: r.SourceFontName, Reason: "duplicate source font name"}
		}
		sources[r.SourceFontName] = true
	}
	targets := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if targets[r.TargetFontName] {
			return &ConfigError{Rule: r.SourceFontName, Reason: "duplicate target font name " + r.TargetFontName}
		}
		targets[r.TargetFontName] = true
		if sources[r.TargetFontName] {
			return &ConfigError{Rule: r.SourceFontName, Reason: "target font name " + r.TargetFontName + " collides with a source font name"}
		}
	}
	return nil
}
