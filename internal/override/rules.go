// Package override applies declarative, auditable corrections at read
// time without mutating canonical data.
package override

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tweet-price-lab/internal/domain"
)

// Action identifies the correction a rule applies.
type Action string

const (
	ActionCapHigh           Action = "cap_high"
	ActionCapLow            Action = "cap_low"
	ActionExcludeCandle     Action = "exclude_candle"
	ActionExcludePost       Action = "exclude_post"
	ActionRestrictDateRange Action = "restrict_date_range"
)

// IsValid checks if the action is a supported value.
func (a Action) IsValid() bool {
	switch a {
	case ActionCapHigh, ActionCapLow, ActionExcludeCandle, ActionExcludePost, ActionRestrictDateRange:
		return true
	}
	return false
}

// DateRange bounds a restrict_date_range rule, inclusive on both ends.
type DateRange struct {
	Start int64 `yaml:"start"`
	End   int64 `yaml:"end"`
}

// Rule is one declarative correction. Every rule must carry a non-empty
// reason; the reason is the audit trail.
type Rule struct {
	ID        string           `yaml:"id"`
	AssetID   string           `yaml:"asset_id"`
	Timeframe domain.Timeframe `yaml:"timeframe"`
	Timestamp *int64           `yaml:"timestamp"`
	DateRange *DateRange       `yaml:"date_range"`
	Action    Action           `yaml:"action"`
	Value     float64          `yaml:"value"`
	Reason    string           `yaml:"reason"`
}

// Errors raised at rule load time. A malformed rule file is a
// configuration error and fails fast; rules are never silently skipped.
var (
	ErrEmptyReason   = errors.New("override rule has empty reason")
	ErrInvalidAction = errors.New("override rule has invalid action")
	ErrMissingTarget = errors.New("override rule has neither timestamp nor date_range")
)

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Load reads and validates a rule file. File order is preserved; it is
// the precedence order for cap rules.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read override file: %w", err)
	}
	return Parse(data)
}

// Parse validates a rule document.
func Parse(data []byte) ([]Rule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse override file: %w", err)
	}

	for i, r := range file.Rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.ID, err)
		}
	}

	return file.Rules, nil
}

func validateRule(r Rule) error {
	if r.Reason == "" {
		return ErrEmptyReason
	}
	if !r.Action.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, r.Action)
	}
	if r.AssetID == "" {
		return errors.New("override rule has empty asset_id")
	}

	switch r.Action {
	case ActionRestrictDateRange:
		if r.DateRange == nil {
			return ErrMissingTarget
		}
	case ActionExcludePost:
		if r.Timestamp == nil {
			return ErrMissingTarget
		}
	default:
		if r.Timestamp == nil {
			return ErrMissingTarget
		}
		if !r.Timeframe.IsValid() {
			return fmt.Errorf("override rule has invalid timeframe %q", r.Timeframe)
		}
	}

	return nil
}
