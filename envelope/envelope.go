// Package envelope carries request documents in CloudEvents.
//
// Inbound events use the type "processors.{category}" and carry the request
// document as JSON data. Scheduled tasks are named by the "task" extension.
// Replies use the type "processors.{category}.result" and reference the
// inbound event through the "correlationid" extension.
package envelope

import (
	"context"
	"fmt"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/types"
	"github.com/google/uuid"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/dispatcher"
	"github.com/goliatone/go-processors/request"
)

const (
	TypePrefix      = "processors."
	ResultSuffix    = ".result"
	TaskExtension   = "task"
	CorrelationExt  = "correlationid"
	DefaultSource   = "processors"
	taskRequestPath = "task"
)

// Dispatcher routes decoded events.
type Dispatcher interface {
	Dispatch(ctx context.Context, category dispatcher.Category, req request.Request, task string) (any, error)
}

// Event is a decoded inbound event.
type Event struct {
	ID       string
	Source   string
	Category dispatcher.Category
	Request  request.Request
	Task     string
}

// Result is the data of a reply event.
type Result struct {
	Category string       `json:"category"`
	Result   any          `json:"result,omitempty"`
	Error    *ResultError `json:"error,omitempty"`
}

type ResultError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// TypeFor returns the event type of category.
func TypeFor(category dispatcher.Category) string {
	return TypePrefix + string(category)
}

// New builds an inbound event for req.
func New(source string, category dispatcher.Category, req request.Request, task string) (cloudevents.Event, error) {
	if source == "" {
		source = DefaultSource
	}
	ev := cloudevents.NewEvent()
	ev.SetID(newID())
	ev.SetSource(source)
	ev.SetType(TypeFor(category))
	ev.SetTime(time.Now())
	ev.SetSpecVersion(cloudevents.VersionV1)
	if task != "" {
		ev.SetExtension(TaskExtension, task)
	}
	if err := ev.SetData(cloudevents.ApplicationJSON, req.Raw()); err != nil {
		return ev, invalidEnvelope("failed to set event data", err, nil)
	}
	return ev, nil
}

// Decode validates ev and extracts the category, request and task.
func Decode(ev cloudevents.Event) (Event, error) {
	if err := ev.Validate(); err != nil {
		return Event{}, invalidEnvelope("invalid cloud event", err, nil)
	}

	meta := map[string]any{"event_id": ev.ID(), "event_type": ev.Type()}

	name, ok := strings.CutPrefix(ev.Type(), TypePrefix)
	if !ok {
		return Event{}, invalidEnvelope(fmt.Sprintf("unsupported event type %s", ev.Type()), nil, meta)
	}
	category, err := dispatcher.ParseCategory(name)
	if err != nil {
		return Event{}, invalidEnvelope(fmt.Sprintf("unsupported event type %s", ev.Type()), err, meta)
	}

	if ct := ev.DataContentType(); ct != "" && !strings.HasPrefix(ct, cloudevents.ApplicationJSON) {
		return Event{}, invalidEnvelope(fmt.Sprintf("unsupported data content type %s", ct), nil, meta)
	}
	req, err := request.FromJSON(ev.Data())
	if err != nil {
		return Event{}, invalidEnvelope("event data is not a request document", err, meta)
	}

	task := ""
	if v, ok := ev.Extensions()[TaskExtension]; ok {
		task, _ = types.ToString(v)
	}
	if task == "" && category == dispatcher.CategorySchedule {
		task = req.GetString(taskRequestPath)
	}

	return Event{
		ID:       ev.ID(),
		Source:   ev.Source(),
		Category: category,
		Request:  req,
		Task:     task,
	}, nil
}

// Encode builds the reply to in. A dispatch error is reported in the data.
func Encode(in Event, result any, dispatchErr error) (cloudevents.Event, error) {
	data := Result{Category: string(in.Category), Result: result}
	if dispatchErr != nil {
		data.Result = nil
		data.Error = &ResultError{
			Code:    processors.ErrorCode(dispatchErr),
			Message: dispatchErr.Error(),
		}
	}

	source := in.Source
	if source == "" {
		source = DefaultSource
	}

	ev := cloudevents.NewEvent()
	ev.SetID(newID())
	ev.SetSource(source)
	ev.SetType(TypeFor(in.Category) + ResultSuffix)
	ev.SetTime(time.Now())
	ev.SetSpecVersion(cloudevents.VersionV1)
	if in.ID != "" {
		ev.SetExtension(CorrelationExt, in.ID)
	}
	if in.Task != "" {
		ev.SetExtension(TaskExtension, in.Task)
	}
	if err := ev.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return ev, invalidEnvelope("failed to encode result", err, map[string]any{"event_id": in.ID})
	}
	return ev, nil
}

// Dispatch decodes ev, dispatches it and encodes the reply. Handler errors
// are part of the reply; only envelope errors are returned.
func Dispatch(ctx context.Context, d Dispatcher, ev cloudevents.Event) (cloudevents.Event, error) {
	in, err := Decode(ev)
	if err != nil {
		return cloudevents.Event{}, err
	}
	result, dispatchErr := d.Dispatch(ctx, in.Category, in.Request, in.Task)
	return Encode(in, result, dispatchErr)
}

// DecodeResult reads the data of a reply event.
func DecodeResult(ev cloudevents.Event) (Result, error) {
	var out Result
	if !strings.HasSuffix(ev.Type(), ResultSuffix) {
		return out, invalidEnvelope(fmt.Sprintf("event %s is not a result", ev.Type()), nil, nil)
	}
	if err := ev.DataAs(&out); err != nil {
		return out, invalidEnvelope("failed to decode result", err, nil)
	}
	return out, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

func invalidEnvelope(msg string, source error, meta map[string]any) error {
	return processors.NewError(processors.ErrInvalidEnvelope, msg, source, meta)
}
