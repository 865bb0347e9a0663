package request

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// Builder composes a request document field by field. The first failing
// write is kept and reported by Build.
type Builder struct {
	raw []byte
	err error
}

// NewBuilder starts from an existing document, or from an empty one.
func NewBuilder(base ...Request) *Builder {
	b := &Builder{raw: []byte("{}")}
	if len(base) > 0 {
		b.raw = base[0].Raw()
	}
	return b
}

func (b *Builder) set(path string, value any) *Builder {
	if b.err != nil {
		return b
	}
	data, err := sjson.SetBytes(b.raw, path, value)
	if err != nil {
		b.err = fmt.Errorf("set %s: %w", path, err)
		return b
	}
	b.raw = data
	return b
}

func (b *Builder) WithID(id string) *Builder         { return b.set("id", id) }
func (b *Builder) WithType(typ string) *Builder      { return b.set("type", typ) }
func (b *Builder) WithStatus(status string) *Builder { return b.set("status", status) }

// WithAsset sets the asset object, making the request an asset request.
func (b *Builder) WithAsset(asset map[string]any) *Builder {
	if asset == nil {
		asset = map[string]any{}
	}
	return b.set("asset", asset)
}

// WithTierConfiguration sets the configuration object, making the request a
// tier configuration request.
func (b *Builder) WithTierConfiguration(cfg map[string]any) *Builder {
	if cfg == nil {
		cfg = map[string]any{}
	}
	return b.set("configuration", cfg)
}

// WithParam appends a parameter to the asset or tier configuration.
func (b *Builder) WithParam(id, value string) *Builder {
	base := "asset.params"
	if Wrap(b.raw).IsTierConfigRequest() {
		base = "configuration.params"
	}
	return b.set(base+".-1", map[string]any{"id": id, "value": value})
}

// With sets an arbitrary path.
func (b *Builder) With(path string, value any) *Builder { return b.set(path, value) }

// Build returns the composed document.
func (b *Builder) Build() (Request, error) {
	if b.err != nil {
		return Request{}, b.err
	}
	return FromJSON(b.raw)
}

// MustBuild is Build for fixtures.
func (b *Builder) MustBuild() Request {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}

// Wrap views raw JSON as a Request without validation or copying.
func Wrap(raw []byte) Request {
	return Request{raw: raw}
}
