// Package transaction composes business rules as ordered statements.
//
// A statement pairs a predicate with a body and an optional compensation.
// Select picks the first statement whose predicate matches a request, and
// Prepare wraps it in an executor behind a middleware chain.
package transaction

import (
	"context"
	"fmt"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/request"
)

// Predicate decides whether a statement applies to a request.
type Predicate func(req request.Request) bool

// Body is the main code of a statement.
type Body[R any] func(ctx context.Context, req request.Request) (R, error)

// Compensation runs when the body fails. It receives the body error.
type Compensation[R any] func(ctx context.Context, req request.Request, err error) (R, error)

// Statement is a named, predicated unit of business logic.
//
// Compensate is called with the error returned by Execute. Statements without
// compensation return that same error unchanged.
type Statement[R any] interface {
	Name() string
	ShouldExecute(req request.Request) bool
	Execute(ctx context.Context, req request.Request) (R, error)
	Compensate(ctx context.Context, req request.Request, err error) (R, error)
}

// Tuple is the plain-data form of a statement.
type Tuple[R any] struct {
	Name         string
	Predicate    Predicate
	Body         Body[R]
	Compensation Compensation[R]
}

type tupleStatement[R any] struct {
	tuple Tuple[R]
}

func (s tupleStatement[R]) Name() string { return s.tuple.Name }

func (s tupleStatement[R]) ShouldExecute(req request.Request) bool {
	return s.tuple.Predicate(req)
}

func (s tupleStatement[R]) Execute(ctx context.Context, req request.Request) (R, error) {
	return s.tuple.Body(ctx, req)
}

func (s tupleStatement[R]) Compensate(ctx context.Context, req request.Request, err error) (R, error) {
	if s.tuple.Compensation == nil {
		var zero R
		return zero, err
	}
	return s.tuple.Compensation(ctx, req, err)
}

// NoCompensation can be embedded by statement types that do not compensate.
type NoCompensation[R any] struct{}

func (NoCompensation[R]) Compensate(_ context.Context, _ request.Request, err error) (R, error) {
	var zero R
	return zero, err
}

type entryKind int

const (
	entryEmpty entryKind = iota
	entryTuple
	entryObject
	entryInvalid
)

// Entry is a statement in one of its accepted forms. The zero Entry is
// empty and is skipped by Select.
type Entry[R any] struct {
	kind    entryKind
	tuple   Tuple[R]
	object  Statement[R]
	invalid any
}

// FromTuple builds an entry from its parts. comp may be nil.
func FromTuple[R any](name string, pred Predicate, body Body[R], comp Compensation[R]) Entry[R] {
	return Entry[R]{kind: entryTuple, tuple: Tuple[R]{Name: name, Predicate: pred, Body: body, Compensation: comp}}
}

// FromObject wraps a statement implementation. A nil statement yields an
// empty entry.
func FromObject[R any](stmt Statement[R]) Entry[R] {
	if stmt == nil {
		return Entry[R]{}
	}
	return Entry[R]{kind: entryObject, object: stmt}
}

// FromAny accepts a Statement, a Tuple, an Entry or nil. Any other value
// produces an entry that fails normalization.
func FromAny[R any](v any) Entry[R] {
	switch s := v.(type) {
	case nil:
		return Entry[R]{}
	case Entry[R]:
		return s
	case Statement[R]:
		return FromObject(s)
	case Tuple[R]:
		return Entry[R]{kind: entryTuple, tuple: s}
	case *Tuple[R]:
		if s == nil {
			return Entry[R]{}
		}
		return Entry[R]{kind: entryTuple, tuple: *s}
	default:
		return Entry[R]{kind: entryInvalid, invalid: v}
	}
}

// Empty reports whether the entry holds nothing.
func (e Entry[R]) Empty() bool {
	return e.kind == entryEmpty
}

// Statement normalizes the entry.
func (e Entry[R]) Statement() (Statement[R], error) {
	switch e.kind {
	case entryObject:
		return e.object, nil
	case entryTuple:
		if e.tuple.Name == "" || e.tuple.Predicate == nil || e.tuple.Body == nil {
			return nil, invalidStatement(
				fmt.Sprintf("Invalid transaction statement %q: name, predicate and body are required.", e.tuple.Name),
				map[string]any{"statement": e.tuple.Name},
			)
		}
		return tupleStatement[R]{tuple: e.tuple}, nil
	case entryInvalid:
		return nil, invalidStatement(
			fmt.Sprintf("Invalid transaction statement of type %T.", e.invalid),
			map[string]any{"type": fmt.Sprintf("%T", e.invalid)},
		)
	default:
		return nil, invalidStatement("Invalid transaction statement: empty entry.", nil)
	}
}

func invalidStatement(msg string, meta map[string]any) error {
	return processors.NewError(processors.ErrInvalidTransactionStatement, msg, nil, meta)
}

// IsInvalidStatement reports whether err is an invalid statement error.
func IsInvalidStatement(err error) bool {
	return processors.HasCode(err, processors.ErrCodeInvalidTransactionStatement)
}

// IsNotSelected reports whether err signals that no statement matched.
func IsNotSelected(err error) bool {
	return processors.HasCode(err, processors.ErrCodeTransactionStatementNotSelected)
}
