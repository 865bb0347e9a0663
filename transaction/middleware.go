package transaction

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/request"
)

// Next invokes the rest of a chain.
type Next[R any] func(ctx context.Context, req request.Request) (R, error)

// Middleware wraps the rest of a chain. It may short-circuit by not calling
// next, or post-process the result of next. next is nil for the last
// middleware of a chain. Calling next more than once is not supported.
type Middleware[R any] func(ctx context.Context, req request.Request, next Next[R]) (R, error)

// Chain composes mws right to left: the returned function invokes mws[0]
// with a next that invokes mws[1], and so on. The last middleware receives
// a nil next. Nil middlewares are dropped.
func Chain[R any](mws ...Middleware[R]) Next[R] {
	mws = slices.DeleteFunc(slices.Clone(mws), func(m Middleware[R]) bool { return m == nil })
	if len(mws) == 0 {
		return func(context.Context, request.Request) (R, error) {
			var zero R
			return zero, processors.NewError(processors.ErrInvalidChain, "middleware chain is empty", nil, nil)
		}
	}

	var next Next[R]
	for i := len(mws) - 1; i >= 0; i-- {
		current, downstream := mws[i], next
		next = func(ctx context.Context, req request.Request) (R, error) {
			return current(ctx, req, downstream)
		}
	}
	return next
}

// Prepare puts the executor of stmt at the end of mws and chains them.
func Prepare[R any](stmt Statement[R], mws ...Middleware[R]) Next[R] {
	chain := append(slices.Clone(mws), Executor(stmt))
	return Chain(chain...)
}

// Executor is the terminal middleware running stmt. Errors returned by the
// body go to Compensate; a statement without compensation hands the same
// error back. A panicking body is treated the same way, except that without
// compensation the original panic is resumed.
func Executor[R any](stmt Statement[R]) Middleware[R] {
	return func(ctx context.Context, req request.Request, _ Next[R]) (R, error) {
		if stmt == nil {
			var zero R
			return zero, invalidStatement("Invalid transaction statement: nil statement.", nil)
		}
		return execute(ctx, stmt, req)
	}
}

func execute[R any](ctx context.Context, stmt Statement[R], req request.Request) (res R, err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		perr := panicError(stmt.Name(), p)
		res, err = stmt.Compensate(ctx, req, perr)
		if err == perr {
			panic(p)
		}
	}()

	res, err = stmt.Execute(ctx, req)
	if err != nil {
		return stmt.Compensate(ctx, req, err)
	}
	return res, nil
}

func panicError(name string, p any) error {
	stack := make([]byte, 8096)
	stack = stack[:runtime.Stack(stack, false)]

	var source error
	if e, ok := p.(error); ok {
		source = e
	}
	return processors.NewError(
		processors.ErrTransactionPanic,
		fmt.Sprintf("transaction statement %q panicked: %v", name, p),
		source,
		map[string]any{
			"statement": name,
			"panic":     fmt.Sprint(p),
			"stack":     string(cleanStack(stack)),
		},
	)
}

// cleanStack drops the frames above the panic call.
func cleanStack(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")
	for i, line := range lines {
		if strings.Contains(line, "panic(") && i+2 < len(lines) {
			lines = lines[i+2:]
			break
		}
	}
	return []byte(strings.Join(lines, "\n"))
}
