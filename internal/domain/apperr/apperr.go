package apperr

import "errors"

// Kind classifies a failure for callers that need to decide how to surface it.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindUnauthorized
	KindValidation
	KindCompliance
	KindConflict
	KindArithmetic
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindCompliance:
		return "compliance"
	case KindConflict:
		return "conflict"
	case KindArithmetic:
		return "arithmetic"
	default:
		return "internal"
	}
}

// Error is a sentinel with a kind. Compare with errors.Is; wrap with fmt.Errorf("%w: ...")
// to attach the offending value.
type Error struct {
	kind Kind
	msg  string
}

func New(kind Kind, msg string) *Error { return &Error{kind: kind, msg: msg} }

func (e *Error) Error() string { return e.msg }
func (e *Error) Kind() Kind    { return e.kind }

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}
