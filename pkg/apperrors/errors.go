package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrIntegrity  = errors.New("structural integrity violation")
)

// Validation rule codes carried by ValidationError.
const (
	RuleBlankName          = "blank_name"
	RuleDuplicateName      = "duplicate_name"
	RuleDuplicateColumnSet = "duplicate_column_set"
	RuleInvalidSeqNo       = "invalid_seq_no"
	RuleColumnCount        = "column_count"
	RulePrimaryKeyExists   = "pk_exists"
	RuleUniqueEqualsPK     = "unique_equals_pk"
	RuleInvalidExpression  = "invalid_expression"
	RuleCrossTableColumn   = "cross_table_column"
	RuleAlreadyMember      = "already_member"
	RuleInvalidKind        = "invalid_kind"
	RuleInvalidPosition    = "invalid_position"
)

// NotFoundError reports a missing (or soft-deleted) entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound returns a NotFoundError for the given entity kind and id.
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError reports a violated invariant. Rule is a stable machine-readable code.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation returns a ValidationError with a formatted message.
func NewValidation(rule, format string, args ...any) error {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// IntegrityError reports a reference in a snapshot tree that resolves to nothing.
type IntegrityError struct {
	Kind   string // kind of the node holding the reference
	NodeID string
	Field  string
	Ref    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s %s: %s references unknown id %q", e.Kind, e.NodeID, e.Field, e.Ref)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// ValidationRule returns the rule code of a ValidationError anywhere in err's chain.
func ValidationRule(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Rule, true
	}
	return "", false
}
