package transaction

import (
	"context"
	"errors"
	"testing"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusIs(status string) Predicate {
	return func(req request.Request) bool { return req.Status() == status }
}

func always(request.Request) bool { return true }

func doneBody(context.Context, request.Request) (response.Processing, error) {
	return response.Done(), nil
}

func failingBody(err error) Body[response.Processing] {
	return func(context.Context, request.Request) (response.Processing, error) {
		return response.Processing{}, err
	}
}

type approveStatement struct {
	NoCompensation[response.Processing]
}

func (approveStatement) Name() string { return "approve" }

func (approveStatement) ShouldExecute(req request.Request) bool { return req.Status() == "pending" }

func (approveStatement) Execute(context.Context, request.Request) (response.Processing, error) {
	return response.Done(), nil
}

func TestSelectFirstMatchWins(t *testing.T) {
	entries := []Entry[response.Processing]{
		FromTuple("A", statusIs("pending"), doneBody, nil),
		FromTuple("B", always, doneBody, nil),
		FromTuple("C", always, doneBody, nil),
	}

	stmt, err := Select(entries, request.MustFromMap(map[string]any{"status": "approved"}))
	require.NoError(t, err)
	assert.Equal(t, "B", stmt.Name())

	stmt, err = Select(entries, request.MustFromMap(map[string]any{"status": "pending"}))
	require.NoError(t, err)
	assert.Equal(t, "A", stmt.Name())
}

func TestSelectNotSelected(t *testing.T) {
	req := request.MustFromMap(map[string]any{"status": "failed"})

	_, err := Select([]Entry[response.Processing]{}, req)
	assert.True(t, IsNotSelected(err))

	_, err = Select([]Entry[response.Processing]{
		FromTuple("A", statusIs("pending"), doneBody, nil),
	}, req)
	require.Error(t, err)
	assert.True(t, IsNotSelected(err))
	assert.False(t, IsInvalidStatement(err))
}

func TestSelectSkipsEmptyEntries(t *testing.T) {
	entries := []Entry[response.Processing]{
		{},
		FromObject[response.Processing](nil),
		FromAny[response.Processing](nil),
		FromObject[response.Processing](approveStatement{}),
	}

	stmt, err := Select(entries, request.MustFromMap(map[string]any{"status": "pending"}))
	require.NoError(t, err)
	assert.Equal(t, "approve", stmt.Name())
}

func TestSelectInvalidEntries(t *testing.T) {
	req := request.MustFromMap(map[string]any{"status": "pending"})

	tests := []struct {
		name  string
		entry Entry[response.Processing]
	}{
		{"missing predicate", FromTuple[response.Processing]("A", nil, doneBody, nil)},
		{"missing body", FromTuple[response.Processing]("A", always, nil, nil)},
		{"missing name", FromTuple("", always, doneBody, nil)},
		{"unknown value", FromAny[response.Processing](42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := []Entry[response.Processing]{
				FromTuple("first", always, doneBody, nil),
				tt.entry,
			}
			_, err := Select(entries, req)
			require.Error(t, err)
			assert.True(t, IsInvalidStatement(err))
		})
	}
}

func TestFromAnyForms(t *testing.T) {
	req := request.MustFromMap(map[string]any{"status": "pending"})

	for _, v := range []any{
		approveStatement{},
		Tuple[response.Processing]{Name: "t", Predicate: always, Body: doneBody},
		&Tuple[response.Processing]{Name: "p", Predicate: always, Body: doneBody},
		FromTuple("e", always, doneBody, nil),
	} {
		stmt, err := FromAny[response.Processing](v).Statement()
		require.NoError(t, err)
		assert.True(t, stmt.ShouldExecute(req))
	}
}

func TestExecutorWithoutCompensationReturnsSameError(t *testing.T) {
	boom := errors.New("boom")
	stmt, err := FromTuple("A", always, failingBody(boom), nil).Statement()
	require.NoError(t, err)

	_, err = Prepare(stmt)(context.Background(), request.New())
	if err != boom {
		t.Fatalf("expected the original error instance, got %v", err)
	}
}

func TestExecutorCompensates(t *testing.T) {
	boom := errors.New("boom")
	var seen error
	stmt, err := FromTuple("A", always, failingBody(boom), func(_ context.Context, _ request.Request, err error) (response.Processing, error) {
		seen = err
		return response.Reschedule(60), nil
	}).Statement()
	require.NoError(t, err)

	res, err := Prepare(stmt)(context.Background(), request.New())
	require.NoError(t, err)
	assert.Equal(t, response.Reschedule(60), res)
	assert.Same(t, boom, seen)
}

func TestExecutorPanics(t *testing.T) {
	panicking := func(context.Context, request.Request) (response.Processing, error) {
		panic("kaboom")
	}

	compensated, err := FromTuple("A", always, panicking, func(_ context.Context, _ request.Request, err error) (response.Processing, error) {
		assert.True(t, processors.HasCode(err, processors.ErrCodeTransactionPanic))
		return response.Fail("recovered"), nil
	}).Statement()
	require.NoError(t, err)

	res, err := Prepare(compensated)(context.Background(), request.New())
	require.NoError(t, err)
	assert.Equal(t, response.StatusFail, res.Status)

	bare, err := FromTuple("B", always, panicking, nil).Statement()
	require.NoError(t, err)
	assert.PanicsWithValue(t, "kaboom", func() {
		_, _ = Prepare(bare)(context.Background(), request.New())
	})
}

func TestSelectorRun(t *testing.T) {
	selector := NewSelector(
		FromTuple("pending", statusIs("pending"), doneBody, nil),
		FromTuple("skip", always, func(context.Context, request.Request) (response.Processing, error) {
			return response.Skip("nothing to do"), nil
		}, nil),
	)

	res, err := selector.Run(context.Background(), request.MustFromMap(map[string]any{"status": "approved"}))
	require.NoError(t, err)
	assert.Equal(t, response.StatusSkip, res.Status)
}
