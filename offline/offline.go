// Package offline short-circuits requests for subscriptions that are
// fulfilled outside the platform.
package offline

import (
	"context"
	"fmt"
	"slices"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/logger"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/response"
	"github.com/goliatone/go-processors/transaction"
)

const (
	ParamOfflineMode     = "offline_mode"
	ParamOfflineModeList = "offline_mode_list"
)

// Rule evaluates one offline condition.
type Rule func(req request.Request) bool

// MatchRequestType matches cancel and suspend requests, or the given types.
func MatchRequestType(types ...string) Rule {
	if len(types) == 0 {
		types = []string{"cancel", "suspend"}
	}
	return func(req request.Request) bool {
		return slices.Contains(types, req.Type())
	}
}

// MatchAssetParameter matches when the asset id is the value of the
// offline_mode ordering parameter, on the request or on the asset.
func MatchAssetParameter(req request.Request) bool {
	assetID := req.GetString("asset.id")
	if assetID == "" {
		return false
	}
	for _, path := range []string{
		fmt.Sprintf(`params.#(id==%q).value`, ParamOfflineMode),
		fmt.Sprintf(`asset.params.#(id==%q).value`, ParamOfflineMode),
	} {
		if v, ok := req.Get(path); ok && v.String() == assetID {
			return true
		}
	}
	return false
}

// MatchMarketplaceParameter matches when the asset id is listed in the
// offline_mode_list marketplace configuration parameter.
func MatchMarketplaceParameter(req request.Request) bool {
	assetID := req.GetString("asset.id")
	if assetID == "" {
		return false
	}
	list, ok := req.Get(fmt.Sprintf(`asset.configuration.params.#(id==%q).structured_value`, ParamOfflineModeList))
	if !ok {
		return false
	}
	for _, item := range list.Array() {
		if item.String() == assetID {
			return true
		}
	}
	return false
}

// Any matches when at least one rule matches.
func Any(rules ...Rule) Rule {
	return func(req request.Request) bool {
		for _, rule := range rules {
			if rule != nil && rule(req) {
				return true
			}
		}
		return false
	}
}

// MatchAssetOrMarketplaceParameter combines the two parameter rules.
var MatchAssetOrMarketplaceParameter = Any(MatchMarketplaceParameter, MatchAssetParameter)

// Criteria decides whether a request is offline: every rule must match and
// an empty rule set never matches.
type Criteria struct {
	rules   []Rule
	onMatch transaction.Next[response.Processing]
}

// Option configures Criteria.
type Option func(*Criteria)

// WithOnMatch sets the transaction run for offline requests. Without it,
// offline requests are skipped.
func WithOnMatch(fn transaction.Next[response.Processing]) Option {
	return func(c *Criteria) {
		c.onMatch = fn
	}
}

func NewCriteria(rules []Rule, opts ...Option) *Criteria {
	c := &Criteria{rules: slices.DeleteFunc(slices.Clone(rules), func(r Rule) bool { return r == nil })}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Criteria) IsOfflineEnabled(req request.Request) bool {
	if len(c.rules) == 0 {
		return false
	}
	for _, rule := range c.rules {
		if !rule(req) {
			return false
		}
	}
	return true
}

// Middleware delegates online requests to next and diverts offline ones.
func (c *Criteria) Middleware() transaction.Middleware[response.Processing] {
	return func(ctx context.Context, req request.Request, next transaction.Next[response.Processing]) (response.Processing, error) {
		if !c.IsOfflineEnabled(req) {
			if next == nil {
				return response.Processing{}, processors.NewError(processors.ErrInvalidChain, "offline criteria cannot end a middleware chain", nil, nil)
			}
			return next(ctx, req)
		}
		if c.onMatch != nil {
			return c.onMatch(ctx, req)
		}
		return response.Skip(""), nil
	}
}

// LogAndComplete is an on-match transaction that logs the offline
// subscription and completes the request.
func LogAndComplete(l logger.Logger) transaction.Next[response.Processing] {
	return func(ctx context.Context, req request.Request) (response.Processing, error) {
		logger.BindRequest(l, req).WithContext(ctx).Info("The subscription %s is in offline mode.", req.GetString("asset.id"))
		return response.Done(), nil
	}
}
