// Package request exposes the request document the dispatcher routes on.
//
// A Request is an immutable view over a raw JSON document. Reads go through
// gjson paths, writes through sjson and always return a new Request, so a
// value can be shared between goroutines without copying.
package request

import (
	"encoding/json"
	"fmt"
	"slices"

	processors "github.com/goliatone/go-processors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Value is the result of a document lookup.
type Value = gjson.Result

// Model classifies a request document.
type Model string

const (
	ModelAsset      Model = "asset"
	ModelTierConfig Model = "tier-config"
	ModelUndefined  Model = "undefined"
)

// AssetTypes are the request types that address an asset.
var AssetTypes = []string{"adjustment", "purchase", "change", "suspend", "resume", "cancel"}

// TierConfigTypes are the request types that address a tier configuration.
var TierConfigTypes = []string{"setup"}

// Request is a keyed request document.
type Request struct {
	raw []byte
}

// New returns an empty request document.
func New() Request {
	return Request{raw: []byte("{}")}
}

// FromJSON validates and wraps a raw JSON object.
func FromJSON(data []byte) (Request, error) {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return Request{}, processors.NewError(processors.ErrInvalidRequest, "request document must be a JSON object", nil, nil)
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return Request{raw: raw}, nil
}

// FromMap encodes a decoded document.
func FromMap(doc map[string]any) (Request, error) {
	if doc == nil {
		return New(), nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return Request{}, processors.NewError(processors.ErrInvalidRequest, "failed to encode request document", err, nil)
	}
	return Request{raw: data}, nil
}

// MustFromMap is FromMap for static fixtures.
func MustFromMap(doc map[string]any) Request {
	r, err := FromMap(doc)
	if err != nil {
		panic(err)
	}
	return r
}

// Raw returns a copy of the underlying JSON.
func (r Request) Raw() []byte {
	if len(r.raw) == 0 {
		return []byte("{}")
	}
	out := make([]byte, len(r.raw))
	copy(out, r.raw)
	return out
}

func (r Request) String() string {
	if len(r.raw) == 0 {
		return "{}"
	}
	return string(r.raw)
}

// MarshalJSON implements json.Marshaler.
func (r Request) MarshalJSON() ([]byte, error) {
	return r.Raw(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Request) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Map decodes the document.
func (r Request) Map() map[string]any {
	out := map[string]any{}
	if len(r.raw) == 0 {
		return out
	}
	_ = json.Unmarshal(r.raw, &out)
	return out
}

// Get looks up a gjson path. The second result is false when the path does
// not exist.
func (r Request) Get(path string) (Value, bool) {
	if len(r.raw) == 0 {
		return Value{}, false
	}
	v := gjson.GetBytes(r.raw, path)
	return v, v.Exists()
}

// Has reports whether path exists.
func (r Request) Has(path string) bool {
	_, ok := r.Get(path)
	return ok
}

// GetString returns the string at path, or "" when absent.
func (r Request) GetString(path string) string {
	v, ok := r.Get(path)
	if !ok {
		return ""
	}
	return v.String()
}

func (r Request) ID() string     { return r.GetString("id") }
func (r Request) Type() string   { return r.GetString("type") }
func (r Request) Status() string { return r.GetString("status") }

// Model classifies the document by model key presence or request type.
func (r Request) Model() Model {
	typ := r.Type()
	switch {
	case r.Has("asset") || slices.Contains(AssetTypes, typ):
		return ModelAsset
	case r.Has("configuration") || slices.Contains(TierConfigTypes, typ):
		return ModelTierConfig
	default:
		return ModelUndefined
	}
}

func (r Request) IsAssetRequest() bool      { return r.Model() == ModelAsset }
func (r Request) IsTierConfigRequest() bool { return r.Model() == ModelTierConfig }

// Param returns the parameter with the given id from the asset or the tier
// configuration, depending on the request model.
func (r Request) Param(id string) (Value, error) {
	base := "asset.params"
	if r.IsTierConfigRequest() {
		base = "configuration.params"
	}
	v, ok := r.Get(fmt.Sprintf(`%s.#(id==%q)`, base, id))
	if !ok {
		return Value{}, processors.NewError(
			processors.ErrMissingParameter,
			fmt.Sprintf("Missing parameter with id %s.", id),
			nil,
			map[string]any{"param_id": id, "model": string(r.Model())},
		)
	}
	return v, nil
}

// ParamValue returns the value of a parameter.
func (r Request) ParamValue(id string) (string, error) {
	p, err := r.Param(id)
	if err != nil {
		return "", err
	}
	return p.Get("value").String(), nil
}

// Set writes value at path and returns the updated document.
func (r Request) Set(path string, value any) (Request, error) {
	data, err := sjson.SetBytes(r.Raw(), path, value)
	if err != nil {
		return r, processors.NewError(processors.ErrInvalidRequest, "failed to set "+path, err, map[string]any{"path": path})
	}
	return Request{raw: data}, nil
}

// Delete removes path and returns the updated document.
func (r Request) Delete(path string) (Request, error) {
	data, err := sjson.DeleteBytes(r.Raw(), path)
	if err != nil {
		return r, processors.NewError(processors.ErrInvalidRequest, "failed to delete "+path, err, map[string]any{"path": path})
	}
	return Request{raw: data}, nil
}
