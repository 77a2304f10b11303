package jimmer

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ConfigurationError reports a misuse of the save command by the caller,
// like an update without an id. It is never retried nor translated.
type ConfigurationError struct {
	Path Path
	Msg  string
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("jimmer: configuration error at path %q: %s", e.Path, e.Msg)
}

// NewConfigurationError returns a new ConfigurationError for the entity at path.
func NewConfigurationError(path Path, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// IsConfigurationError returns true if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigurationError
	return errors.As(err, &e)
}

// ExecutionError wraps a driver failure that was not turned into a
// SaveError. Inconclusive is set when the failure was recognized as a
// constraint violation but no offending row could be found.
type ExecutionError struct {
	Path         Path
	SQL          string
	Err          error
	Inconclusive bool
}

// Error returns the error string.
func (e *ExecutionError) Error() string {
	if e.Inconclusive {
		return fmt.Sprintf("jimmer: unknown constraint violation at path %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("jimmer: execution failed at path %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError returns true if the error is an ExecutionError.
func IsExecutionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecutionError
	return errors.As(err, &e)
}

// IsUnknownConstraint returns true if the error is a constraint violation
// whose investigation found no offending row.
func IsUnknownConstraint(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e) && e.Inconclusive
}

// SaveErrorKind is the closed set of diagnosed save failures.
type SaveErrorKind int

// Save error kinds.
const (
	// NotUnique reports an id or business key that already exists.
	NotUnique SaveErrorKind = iota + 1
	// IllegalTargetID reports association target ids missing in the
	// referenced table.
	IllegalTargetID
)

// String implements the fmt.Stringer interface.
func (k SaveErrorKind) String() string {
	switch k {
	case NotUnique:
		return "NOT_UNIQUE"
	case IllegalTargetID:
		return "ILLEGAL_TARGET_ID"
	default:
		return "UNKNOWN"
	}
}

// SaveError is a diagnosed constraint violation, attributed to the path
// of the offending entity.
type SaveError struct {
	Kind SaveErrorKind
	Path Path
	// Type is the entity type name of the offending entity.
	Type string
	// Props holds the matched property group of a NotUnique error: the id
	// property alone, or the business-key properties in declaration order.
	Props []string
	// ID is set when Props is the id property.
	ID bool
	// Values maps each of Props to the offending value.
	Values map[string]any
	// Prop is the association of an IllegalTargetID error.
	Prop string
	// TargetIDs are the missing target ids, in first-seen order.
	TargetIDs []any
	// Err is the driver failure the error was diagnosed from.
	Err error
}

// Error returns the error string.
func (e *SaveError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "save error caused by the path %q: ", e.Path.String())
	switch e.Kind {
	case NotUnique:
		sb.WriteString("cannot save the entity, ")
		switch {
		case e.ID:
			fmt.Fprintf(&sb, "the value of the id property %q is %q", e.qualified(e.Props[0]), format(e.Values[e.Props[0]]))
		case len(e.Props) == 1:
			fmt.Fprintf(&sb, "the value of the key property %q is %q", "["+e.qualified(e.Props[0])+"]", format(e.Values[e.Props[0]]))
		default:
			names := make([]string, len(e.Props))
			values := make([]string, len(e.Props))
			for i, p := range e.Props {
				names[i] = e.qualified(p)
				values[i] = format(e.Values[p])
			}
			fmt.Fprintf(&sb, "the value of the key properties %q are %q",
				"["+strings.Join(names, ", ")+"]", "("+strings.Join(values, ", ")+")")
		}
		sb.WriteString(" which already exists")
	case IllegalTargetID:
		sb.WriteString("cannot save the entity, ")
		if len(e.TargetIDs) == 1 {
			fmt.Fprintf(&sb, "the associated id of the reference property %q is %q but there is no corresponding associated object in the database",
				e.qualified(e.Prop), format(e.TargetIDs[0]))
		} else {
			ids := make([]string, len(e.TargetIDs))
			for i, id := range e.TargetIDs {
				ids[i] = format(id)
			}
			fmt.Fprintf(&sb, "the associated ids of the reference property %q are %q but there are no corresponding associated objects in the database",
				e.qualified(e.Prop), "["+strings.Join(ids, ", ")+"]")
		}
	default:
		fmt.Fprintf(&sb, "%v", e.Err)
	}
	return sb.String()
}

func (e *SaveError) qualified(prop string) string {
	return e.Type + "." + prop
}

// Unwrap returns the underlying error.
func (e *SaveError) Unwrap() error {
	return e.Err
}

// IsMatched reports whether the matched property group of a NotUnique
// error is exactly props, in any order.
func (e *SaveError) IsMatched(props ...string) bool {
	if e.Kind != NotUnique || len(props) != len(e.Props) {
		return false
	}
	for _, p := range props {
		if !slices.Contains(e.Props, p) {
			return false
		}
	}
	return true
}

// Value returns the offending value of prop in a NotUnique error.
func (e *SaveError) Value(prop string) (any, bool) {
	v, ok := e.Values[prop]
	return v, ok
}

// IsSaveError returns true if the error is a SaveError.
func IsSaveError(err error) bool {
	if err == nil {
		return false
	}
	var e *SaveError
	return errors.As(err, &e)
}

// IsNotUnique returns true if the error is a NotUnique SaveError.
func IsNotUnique(err error) bool {
	var e *SaveError
	return errors.As(err, &e) && e.Kind == NotUnique
}

// IsIllegalTargetID returns true if the error is an IllegalTargetID SaveError.
func IsIllegalTargetID(err error) bool {
	var e *SaveError
	return errors.As(err, &e) && e.Kind == IllegalTargetID
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("jimmer: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected while running
// independent save commands.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "jimmer: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("jimmer: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

func format(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
