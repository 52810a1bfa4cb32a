package emitter_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/h2non/gock"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/host-collector/pkg/config"
	"github.com/host-collector/pkg/emitter"
	"github.com/host-collector/pkg/payload"
)

const forwarderURL = "http://127.0.0.1:17123"

func testPayload() *payload.Payload {
	p := payload.New()
	p.APIKey = "k"
	p.UUID = "u-1"
	p.AppendMetrics(payload.NewMetric("system.uptime", 1, 42, nil))
	return p
}

func decodeBody(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	zr, err := zlib.NewReader(req.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestForwarder_Emit(t *testing.T) {
	defer gock.Off()
	f := emitter.NewForwarder(forwarderURL+"/", "k", time.Second, 0)
	gock.InterceptClient(f.Client())

	var doc map[string]any
	gock.New(forwarderURL).
		Post("/intake").
		MatchParam("api_key", "k").
		MatchHeader("Content-Encoding", "deflate").
		MatchHeader("Content-Type", "application/json").
		AddMatcher(func(req *http.Request, _ *gock.Request) (bool, error) {
			doc = decodeBody(t, req)
			return true, nil
		}).
		Reply(202)

	require.NoError(t, f.Emit(context.Background(), testPayload(), zap.NewNop()))
	assert.True(t, gock.IsDone())
	assert.Equal(t, "u-1", doc["uuid"])
	assert.Len(t, doc["metrics"], 1)
}

func TestForwarder_RetriesServerErrors(t *testing.T) {
	defer gock.Off()
	f := emitter.NewForwarder(forwarderURL, "k", time.Second, 5*time.Second)
	gock.InterceptClient(f.Client())

	gock.New(forwarderURL).Post("/intake").Reply(503)
	gock.New(forwarderURL).Post("/intake").Reply(200)

	core, logs := observer.New(zapcore.WarnLevel)
	require.NoError(t, f.Emit(context.Background(), testPayload(), zap.New(core)))
	assert.True(t, gock.IsDone())
	assert.Equal(t, 1, logs.FilterMessage("forwarder post failed, retrying").Len())
}

func TestForwarder_ClientErrorIsPermanent(t *testing.T) {
	defer gock.Off()
	f := emitter.NewForwarder(forwarderURL, "k", time.Second, 5*time.Second)
	gock.InterceptClient(f.Client())

	gock.New(forwarderURL).Post("/intake").Times(1).Reply(403)

	err := f.Emit(context.Background(), testPayload(), zap.NewNop())
	assert.ErrorContains(t, err, "rejected payload: 403")
	assert.True(t, gock.IsDone())
}

func TestLog_Emit(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	require.NoError(t, emitter.NewLog().Emit(context.Background(), testPayload(), zap.New(core)))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "u-1", fields["uuid"])
	assert.EqualValues(t, 1, fields["metrics"])
}

func TestFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig().Agent
	cfg.Emitters = []string{"log", "forwarder"}

	out, err := emitter.FromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "log", out[0].Name())
	assert.Equal(t, "forwarder", out[1].Name())

	cfg.Emitters = []string{"pigeon"}
	_, err = emitter.FromConfig(cfg)
	assert.Error(t, err)
}
