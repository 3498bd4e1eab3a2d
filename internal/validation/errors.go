package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidKey is the class of all key validation failures.
	ErrInvalidKey = errors.New("invalid setting key")
	// ErrInvalidValue is the class of all value validation failures.
	ErrInvalidValue = errors.New("invalid setting value")
)

// Key validation rule identifiers.
const (
	RuleKeyEmpty    = "empty"
	RuleKeyTooLong  = "too_long"
	RuleKeyCharset  = "charset"
	RuleKeyDots     = "dots"
	RuleKeyReserved = "reserved"
)

// Value validation rule identifiers.
const (
	RuleValueTooLarge        = "too_large"
	RuleValueCircular        = "circular"
	RuleValueNotSerializable = "not_serializable"
	RuleValuePattern         = "pattern_rule"
)

// KeyError reports which rule a key violated. It unwraps to ErrInvalidKey.
type KeyError struct {
	Key    string
	Rule   string
	Detail string
}

func (e *KeyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid setting key %q: %s", e.Key, e.Rule)
	}

	return fmt.Sprintf("invalid setting key %q: %s (%s)", e.Key, e.Rule, e.Detail)
}

// Unwrap makes errors.Is(err, ErrInvalidKey) hold for every KeyError.
func (e *KeyError) Unwrap() error { return ErrInvalidKey }

// ValueError reports which rule a value violated. It unwraps to
// ErrInvalidValue.
type ValueError struct {
	Rule   string
	Detail string
}

func (e *ValueError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid setting value: %s", e.Rule)
	}

	return fmt.Sprintf("invalid setting value: %s (%s)", e.Rule, e.Detail)
}

// Unwrap makes errors.Is(err, ErrInvalidValue) hold for every ValueError.
func (e *ValueError) Unwrap() error { return ErrInvalidValue }

// Aggregate collects every validation failure of a batch, keyed by the
// offending entry key. A batch either passes as a whole or fails with an
// Aggregate naming every bad entry.
type Aggregate struct {
	Failures map[string][]error
}

// NewAggregate returns an empty aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{Failures: make(map[string][]error)}
}

// Add records one or more failures for key.
func (a *Aggregate) Add(key string, errs ...error) {
	a.Failures[key] = append(a.Failures[key], errs...)
}

// Empty reports whether no failures were recorded.
func (a *Aggregate) Empty() bool {
	return len(a.Failures) == 0
}

// Unwrap exposes every recorded failure, so errors.Is sees ErrInvalidKey and
// ErrInvalidValue through the aggregate.
func (a *Aggregate) Unwrap() []error {
	var errs []error
	for _, failures := range a.Failures {
		errs = append(errs, failures...)
	}

	return errs
}

func (a *Aggregate) Error() string {
	keys := make([]string, 0, len(a.Failures))
	for k := range a.Failures {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return fmt.Sprintf("validation failed for %d entries: %s", len(keys), strings.Join(keys, ", "))
}
