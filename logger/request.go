package logger

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-processors/request"
)

// RequestFields extracts the correlation fields of a request document.
// Empty values are left out.
func RequestFields(req request.Request) map[string]any {
	fields := map[string]any{
		"request_id":     req.ID(),
		"request_type":   req.Type(),
		"request_status": req.Status(),
	}
	switch req.Model() {
	case request.ModelAsset:
		fields["tier_id"] = req.GetString("asset.tiers.customer.id")
		fields["asset_id"] = req.GetString("asset.id")
	case request.ModelTierConfig:
		fields["tier_id"] = req.GetString("configuration.account.id")
		fields["tier_config_id"] = req.GetString("configuration.id")
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}

// BindRequest returns l decorated with the request correlation fields.
func BindRequest(l Logger, req request.Request) Logger {
	return WithFields(l, RequestFields(req))
}

// Mask replaces the values of keys, at any depth, with asterisks of the
// same length as their printed form. data is not modified.
func Mask(data any, keys []string) any {
	if len(keys) == 0 {
		return data
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return mask(data, set)
}

func mask(data any, keys map[string]struct{}) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if _, ok := keys[k]; ok {
				out[k] = strings.Repeat("*", len(fmt.Sprint(item)))
				continue
			}
			out[k] = mask(item, keys)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = mask(item, keys)
		}
		return out
	default:
		return data
	}
}
