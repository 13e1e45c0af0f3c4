package engine

import "fmt"

// ErrorKind discriminates the terminal failures of a session.
type ErrorKind string

const (
	KindAmbiguousQuestion ErrorKind = "ambiguous_question"
	KindNoSQLGenerated    ErrorKind = "no_sql_generated"
	KindSQLValidation     ErrorKind = "sql_validation"
	KindSQLExecution      ErrorKind = "sql_execution"
	KindIterationLimit    ErrorKind = "iteration_limit_exceeded"
	KindCancelled         ErrorKind = "cancelled"
	KindBackend           ErrorKind = "backend"
)

// Error is the single typed failure a caller receives. Every terminal failure
// carries a kind and a human-readable detail.
type Error struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
	Err    error     `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func wrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}
