package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/dispatcher"
	"github.com/goliatone/go-processors/envelope"
	"github.com/goliatone/go-processors/request"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cli := &CLI{}
	parser, err := newParser(context.Background(), cli, &out, strings.NewReader(stdin), io.Discard)
	require.NoError(t, err)

	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = kctx.Run()
	return out.String(), err
}

func TestRoutesCommand(t *testing.T) {
	out, err := execute(t, "", "routes", "--not-found", "--log-format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "asset.process.purchase")
	assert.Contains(t, out, "purchase-flow")
	assert.Contains(t, out, "product.schedule.*")
}

func TestRouteCommand(t *testing.T) {
	out, err := execute(t, "", "route", "product.action.sso")
	require.NoError(t, err)
	assert.Contains(t, out, "demo.SSO")

	_, err = execute(t, "", "route", "bogus")
	assert.True(t, processors.HasCode(err, processors.ErrCodeInvalidRoute))
}

func TestDispatchCommands(t *testing.T) {
	purchase := `{"id":"PR-1","type":"purchase","status":"pending","asset":{"id":"AS-1"}}`

	out, err := execute(t, purchase, "process")
	require.NoError(t, err)
	var processed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &processed))
	assert.Equal(t, "success", processed["status"])

	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"body":{"controller":"hello-world"}}`), 0o644))
	out, err = execute(t, "", "custom-event", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Hello from demo")

	out, err = execute(t, `{"task":"refresh-token"}`, "schedule")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "success"`)
}

func TestEventCommand(t *testing.T) {
	req := request.MustFromMap(map[string]any{"jwt_payload": map[string]any{"action_id": "sso"}})
	ev, err := envelope.New("cli-test", dispatcher.CategoryAction, req, "")
	require.NoError(t, err)
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	out, err := execute(t, string(data), "event")
	require.NoError(t, err)
	assert.Contains(t, out, "processors.action.result")
	assert.Contains(t, out, "https://google.com")
}

func TestTaskCommands(t *testing.T) {
	out, err := execute(t, "", "tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "refresh-token")

	out, err = execute(t, "", "run-task", "refresh-token")
	require.NoError(t, err)
	assert.Contains(t, out, "success")

	_, err = execute(t, "", "run-task", "missing")
	assert.True(t, processors.HasCode(err, processors.ErrCodeNotImplemented))
}

func TestLogLevelFlagOverridesFileLevel(t *testing.T) {
	var buf bytes.Buffer
	g := &Globals{LogFormat: "text", Stderr: &buf}

	l := g.logger("warn")
	l.Info("info from file level")
	l.Warn("warn from file level")
	assert.NotContains(t, buf.String(), "info from file level")
	assert.Contains(t, buf.String(), "warn from file level")

	buf.Reset()
	g.LogLevel = "debug"
	g.logger("warn").Debug("debug from flag")
	assert.Contains(t, buf.String(), "debug from flag")

	buf.Reset()
	g.LogLevel = ""
	l = g.logger("")
	l.Debug("hidden debug")
	l.Info("default info")
	assert.NotContains(t, buf.String(), "hidden debug")
	assert.Contains(t, buf.String(), "default info")
}

func TestLoadUsesApplicationFileLogLevel(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "internal", "demo", "app.yaml"))
	require.NoError(t, err)
	data = bytes.Replace(data, []byte("log_level: info"), []byte("log_level: error"), 1)

	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	var buf bytes.Buffer
	g := &Globals{Config: path, LogFormat: "text", Stderr: &buf}
	a, err := g.load()
	require.NoError(t, err)
	assert.Equal(t, "error", a.File().LogLevel)

	a.Logger().Warn("below file level")
	a.Logger().Error("at file level")
	assert.NotContains(t, buf.String(), "below file level")
	assert.Contains(t, buf.String(), "at file level")
}
