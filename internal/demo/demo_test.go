package demo

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-processors/container"
	"github.com/goliatone/go-processors/handler"
	"github.com/goliatone/go-processors/logger"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/response"
)

func bound(buf *bytes.Buffer) handler.BoundLogger {
	return handler.BoundLogger{Logger: logger.NewFmtLogger(buf)}
}

func TestFileMatchesCatalog(t *testing.T) {
	f, err := File()
	require.NoError(t, err)

	c := Catalog()
	for key, name := range f.Routes {
		_, ok := c.Lookup(name)
		assert.True(t, ok, "route %s references %s", key, name)
	}
	assert.Len(t, f.Schedules, 1)
	assert.Equal(t, RefreshTokenName, f.Schedules[0].Task)
}

func TestRegisterTwicePanics(t *testing.T) {
	c := Catalog()
	assert.Panics(t, func() { Register(c) })
}

func TestPurchaseFlow(t *testing.T) {
	base := request.NewBuilder().WithID("PR-1").WithType("purchase").WithAsset(map[string]any{"id": "AS-1"})

	tests := []struct {
		name   string
		req    request.Request
		status response.Status
		log    string
	}{
		{
			name:   "pending purchase is approved",
			req:    request.NewBuilder(base.MustBuild()).WithStatus("pending").MustBuild(),
			status: response.StatusSuccess,
			log:    "Auto approve, its free!!",
		},
		{
			name:   "other statuses are skipped",
			req:    request.NewBuilder(base.MustBuild()).WithStatus("approved").MustBuild(),
			status: response.StatusSkip,
		},
		{
			name:   "offline subscriptions are completed",
			req:    request.NewBuilder(base.MustBuild()).WithStatus("pending").WithParam("offline_mode", "AS-1").MustBuild(),
			status: response.StatusSuccess,
			log:    "offline mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			flow := &PurchaseFlow{BoundLogger: bound(&buf)}

			res, err := flow.Process(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status)
			if tt.log != "" {
				assert.Contains(t, buf.String(), tt.log)
			}
		})
	}
}

func TestPurchaseValidationEchoesRequest(t *testing.T) {
	var buf bytes.Buffer
	v := &PurchaseValidation{BoundLogger: bound(&buf)}
	req := request.NewBuilder().WithID("PR-2").WithType("purchase").MustBuild()

	res, err := v.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, response.StatusSuccess, res.Status)
	assert.Equal(t, req.Map(), res.Data)
	assert.Contains(t, buf.String(), "Everything is valid!!!")
}

func TestHTTPHandlers(t *testing.T) {
	var buf bytes.Buffer

	sso, err := (&SSO{BoundLogger: bound(&buf)}).HandleAction(context.Background(), request.New())
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, sso.HTTPStatus)
	assert.Equal(t, SSOLocation, sso.Headers["Location"])

	hello, err := (&HelloWorld{BoundLogger: bound(&buf), AppName: "demo"}).HandleCustomEvent(context.Background(), request.New())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, hello.HTTPStatus)
	assert.Equal(t, "Hello from demo", hello.Body)

	assert.Contains(t, buf.String(), "Doing Single-Sign-On on Google!")
	assert.Contains(t, buf.String(), "Just printing a hello message!")
}

func TestRefreshToken(t *testing.T) {
	var buf bytes.Buffer
	res, err := (&RefreshToken{BoundLogger: bound(&buf)}).ExecuteScheduled(context.Background(), request.New())
	require.NoError(t, err)
	assert.Equal(t, response.StatusSuccess, res.Status)
	assert.Contains(t, buf.String(), "Refreshing the token on product!")
}

func TestHelloWorldNeedsOnlyAppName(t *testing.T) {
	c := container.MustNew(container.NewDependencies().ToInstance("my_app_name", "Demo"))

	h, err := container.Get[*HelloWorld](c)
	require.NoError(t, err)

	res, err := h.HandleCustomEvent(context.Background(), request.New())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, "Hello from Demo", res.Body)
}
