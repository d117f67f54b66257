package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for rulekeeper operations.
var (
	// ErrNotFound indicates the referenced entity does not exist.
	// Distinguished from a lock conflict by an explicit existence check.
	ErrNotFound = errors.New("not found")

	// ErrInvalidExpression is the umbrella for structural validation
	// failures; specific causes below wrap it via fmt.Errorf.
	ErrInvalidExpression = errors.New("invalid expression")

	// ErrExpressionTooDeep indicates the tree exceeds MaxExpressionDepth.
	ErrExpressionTooDeep = errors.New("expression exceeds maximum depth")

	// ErrExpressionTooLarge indicates the tree exceeds MaxExpressionNodes.
	ErrExpressionTooLarge = errors.New("expression exceeds maximum node count")

	// ErrBareLiteral indicates the outer expression value is a primitive
	// instead of an object or array.
	ErrBareLiteral = errors.New("expression must be an object or array")

	// ErrEmptyExpression indicates an empty outer object or array.
	ErrEmptyExpression = errors.New("expression is empty")

	// ErrAmbiguousOperator indicates an operation node with more than one key.
	ErrAmbiguousOperator = errors.New("operation node must have exactly one key")

	// ErrUnknownOperator indicates an operator outside the whitelist.
	ErrUnknownOperator = errors.New("operator not allowed")

	// ErrNotApproved indicates a publish attempt on a parsed rule whose
	// review status is not "approved".
	ErrNotApproved = errors.New("parsed rule is not approved")

	// ErrAlreadyConsumed indicates the parsed rule was already published.
	ErrAlreadyConsumed = errors.New("parsed rule already consumed")

	// ErrSubjectMismatch indicates a rollback across different subjects.
	ErrSubjectMismatch = errors.New("versions belong to different subjects")

	// ErrRollbackNotEarlier indicates a rollback target that does not
	// predate the current version.
	ErrRollbackNotEarlier = errors.New("rollback target must be effective before current version")
)

// OptimisticLockError reports a conditional write that matched zero rows
// because the entity's lock version moved underneath the caller. Callers
// must refetch and retry; the store never retries internally.
type OptimisticLockError struct {
	Entity   string
	ID       string
	Expected int64
	Actual   int64
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("%s %s: optimistic lock conflict: expected version %d, found %d",
		e.Entity, e.ID, e.Expected, e.Actual)
}

// IsConflict reports whether err is an optimistic lock conflict.
func IsConflict(err error) bool {
	var lockErr *OptimisticLockError
	return errors.As(err, &lockErr)
}
