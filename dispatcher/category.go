package dispatcher

import (
	"fmt"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/router"
)

// Category is an inbound event category.
type Category string

const (
	CategoryProcess     Category = "process"
	CategoryValidation  Category = "validate"
	CategoryCustomEvent Category = "custom-event"
	CategoryAction      Category = "action"
	CategorySchedule    Category = "schedule"
)

// Categories lists every category in dispatch order.
var Categories = []Category{
	CategoryProcess,
	CategoryValidation,
	CategoryCustomEvent,
	CategoryAction,
	CategorySchedule,
}

// ParseCategory accepts a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", unknownCategory(s)
}

// Routing fields read from the request document.
const (
	ActionIDPath   = "jwt_payload.action_id"
	ControllerPath = "body.controller"
)

// RouteFor builds the route a request is dispatched to. Process and
// validate routes are scoped by the request model and named after the
// request type; actions read the action id, custom events the controller
// name and schedules use task.
func RouteFor(category Category, req request.Request, task string) (router.Route, error) {
	switch category {
	case CategoryProcess:
		return router.ForProcess(router.Scope(req.Model()), req.Type())
	case CategoryValidation:
		return router.ForValidate(router.Scope(req.Model()), req.Type())
	case CategoryAction:
		return router.ForAction(req.GetString(ActionIDPath))
	case CategoryCustomEvent:
		return router.ForCustomEvent(req.GetString(ControllerPath))
	case CategorySchedule:
		return router.ForSchedule(task)
	default:
		return router.Route{}, unknownCategory(string(category))
	}
}

func unknownCategory(s string) error {
	return processors.NewError(
		processors.ErrInvalidRequest,
		fmt.Sprintf("unknown dispatch category %q", s),
		nil,
		map[string]any{"category": s},
	)
}
