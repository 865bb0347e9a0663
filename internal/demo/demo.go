// Package demo holds a small extension used by the CLI and the integration
// tests. It registers one handler per dispatch category.
package demo

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/goliatone/go-processors/config"
	"github.com/goliatone/go-processors/handler"
	"github.com/goliatone/go-processors/offline"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/response"
	"github.com/goliatone/go-processors/transaction"
)

// Handler names used in app.yaml.
const (
	PurchaseFlowName       = "purchase-flow"
	PurchaseValidationName = "purchase-validation"
	SSOName                = "sso"
	HelloWorldName         = "hello-world"
	RefreshTokenName       = "refresh-token"
)

const SSOLocation = "https://google.com"

//go:embed app.yaml
var appFile []byte

// File returns the bundled application file.
func File() (config.File, error) {
	return config.Parse(appFile, config.FormatYAML)
}

// Register adds every demo handler to c.
func Register(c *handler.Catalog) *handler.Catalog {
	return c.
		MustRegister(PurchaseFlowName, handler.TypeOf[*PurchaseFlow]()).
		MustRegister(PurchaseValidationName, handler.TypeOf[*PurchaseValidation]()).
		MustRegister(SSOName, handler.TypeOf[*SSO]()).
		MustRegister(HelloWorldName, handler.TypeOf[*HelloWorld]()).
		MustRegister(RefreshTokenName, handler.TypeOf[*RefreshToken]())
}

// Catalog is a new catalog holding the demo handlers.
func Catalog() *handler.Catalog {
	return Register(handler.NewCatalog())
}

// PurchaseFlow approves purchases. Offline subscriptions are completed
// without touching the pending state machine.
type PurchaseFlow struct {
	handler.BoundLogger
	Config config.Config `inject:"config"`
}

func (p *PurchaseFlow) Process(ctx context.Context, req request.Request) (response.Processing, error) {
	criteria := offline.NewCriteria(
		[]offline.Rule{offline.MatchAssetOrMarketplaceParameter},
		offline.WithOnMatch(offline.LogAndComplete(p.Log())),
	)
	return p.statements().Run(ctx, req, criteria.Middleware())
}

func (p *PurchaseFlow) statements() *transaction.Selector[response.Processing] {
	return transaction.NewSelector(
		transaction.FromTuple("approve", isPending, p.approve, nil),
		transaction.FromTuple("ignore", always, ignore, nil),
	)
}

func (p *PurchaseFlow) approve(_ context.Context, _ request.Request) (response.Processing, error) {
	p.Log().Info("Auto approve, its free!!")
	return response.Done(), nil
}

func ignore(_ context.Context, req request.Request) (response.Processing, error) {
	return response.Skip("nothing to do for status " + req.Status()), nil
}

func isPending(req request.Request) bool { return req.Status() == "pending" }

func always(request.Request) bool { return true }

// PurchaseValidation accepts every draft as is.
type PurchaseValidation struct {
	handler.BoundLogger
}

func (v *PurchaseValidation) Validate(_ context.Context, req request.Request) (response.Validation, error) {
	v.Log().Info("Everything is valid!!!")
	return response.ValidationDone(req.Map()), nil
}

type SSO struct {
	handler.BoundLogger
}

func (s *SSO) HandleAction(context.Context, request.Request) (response.Action, error) {
	s.Log().Info("Doing Single-Sign-On on Google!")
	return response.Redirect(SSOLocation), nil
}

type HelloWorld struct {
	handler.BoundLogger
	AppName string `inject:"my_app_name"`
}

func (h *HelloWorld) HandleCustomEvent(context.Context, request.Request) (response.CustomEvent, error) {
	h.Log().Info("Just printing a hello message!")
	return response.HTTPDone(http.StatusOK, response.WithBody("Hello from "+h.AppName)), nil
}

type RefreshToken struct {
	handler.BoundLogger
}

func (r *RefreshToken) ExecuteScheduled(context.Context, request.Request) (response.Scheduled, error) {
	r.Log().Info("Refreshing the token on product!")
	return response.ScheduledDone(), nil
}
