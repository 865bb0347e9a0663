package transaction

import (
	"context"

	apperrors "github.com/goliatone/go-errors"
	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/request"
)

// Select normalizes every entry, then returns the first statement whose
// predicate matches req. Empty entries are skipped. Callers are expected to
// end the list with a catch-all statement; no match is an error.
func Select[R any](entries []Entry[R], req request.Request) (Statement[R], error) {
	statements := make([]Statement[R], 0, len(entries))
	for i, entry := range entries {
		if entry.Empty() {
			continue
		}
		stmt, err := entry.Statement()
		if err != nil {
			var ge *apperrors.Error
			if apperrors.As(err, &ge) {
				return nil, ge.WithMetadata(map[string]any{"index": i})
			}
			return nil, err
		}
		statements = append(statements, stmt)
	}

	for _, stmt := range statements {
		if stmt.ShouldExecute(req) {
			return stmt, nil
		}
	}

	return nil, processors.NewError(
		processors.ErrTransactionStatementNotSelected,
		"Unable to select a transaction.",
		nil,
		map[string]any{"candidates": len(statements), "request_id": req.ID()},
	)
}

// Selector holds an ordered statement list.
type Selector[R any] struct {
	entries []Entry[R]
}

func NewSelector[R any](entries ...Entry[R]) *Selector[R] {
	return &Selector[R]{entries: append([]Entry[R](nil), entries...)}
}

func (s *Selector[R]) Select(req request.Request) (Statement[R], error) {
	return Select(s.entries, req)
}

// Run selects a statement for req, prepares it behind mws and invokes it.
func (s *Selector[R]) Run(ctx context.Context, req request.Request, mws ...Middleware[R]) (R, error) {
	stmt, err := s.Select(req)
	if err != nil {
		var zero R
		return zero, err
	}
	return Prepare(stmt, mws...)(ctx, req)
}
