package native_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/i2y/mcphub/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/mcphub/internal/adapter/outbound/native"
	"github.com/i2y/mcphub/internal/adapter/outbound/sqlitestore"
	"github.com/i2y/mcphub/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registryOf(t *testing.T, tools []native.Tool) *native.Registry {
	t.Helper()
	reg, err := native.NewRegistry(tools...)
	require.NoError(t, err)
	return reg
}

func TestReadDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "reports")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("héllo"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte{0xff, 0xfe, 0x00}, 0o600))

	files, err := native.ReadDirectory(root, "reports")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, native.FileContent{Encoding: "utf-8", Content: "héllo"}, files["a.txt"])
	assert.Equal(t, native.FileContent{Encoding: "base64", Content: base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0x00})}, files["b.bin"])

	_, err = native.ReadDirectory(root, "../")
	assert.ErrorContains(t, err, "outside the network share")

	_, err = native.ReadDirectory(root, "missing")
	assert.ErrorContains(t, err, "invalid directory path")

	_, err = native.ReadDirectory("", "x")
	assert.ErrorIs(t, err, usecase.ErrAPINotConfigured)
}

func TestFileTools(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.md"), []byte("# hi"), 0o600))

	reg := registryOf(t, native.FileTools(root))
	descs := reg.Descriptors(usecase.NativeGroupUtility)
	require.Len(t, descs, 1)
	assert.Equal(t, []string{"path"}, descs[0].InputSchema.Required)

	out, err := reg.Call(context.Background(), "file_fetcher", native.Input{Args: map[string]interface{}{"path": "."}})
	require.NoError(t, err)
	assert.Equal(t, "# hi", out.(map[string]native.FileContent)["readme.md"].Content)
}

func TestWeatherTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("appid"))
		assert.Equal(t, "52.52", r.URL.Query().Get("lat"))
		assert.Equal(t, "13.4", r.URL.Query().Get("lon"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/data/2.5/weather":
			w.Write([]byte(`{"name":"Berlin","weather":[{"description":"clear sky"}],"main":{"temp":293.15,"humidity":40}}`))
		case "/data/2.5/forecast":
			w.Write([]byte(`{"list":[{"dt_txt":"2024-05-01 12:00:00","weather":[{"description":"rain"}],"main":{"temp":283.15,"humidity":90}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	reg := registryOf(t, native.WeatherTools(httpinvoker.New(server.Client(), testLogger()), native.WeatherConfig{APIKey: "key", BaseURL: server.URL}, testLogger()))
	ctx := context.Background()
	args := map[string]interface{}{"lat": 52.52, "lon": 13.4}

	for _, d := range reg.Descriptors(usecase.NativeGroupUtility) {
		assert.True(t, d.TypedArguments)
		assert.Equal(t, []string{"lat", "lon"}, d.InputSchema.Required)
	}

	out, err := reg.Call(ctx, "get_weather_forecast", native.Input{Args: args})
	require.NoError(t, err)
	assert.Equal(t, "Current weather: clear sky, temperature: 20.00°C", out)

	out, err = reg.Call(ctx, "get_hourly_forecast", native.Input{Args: args})
	require.NoError(t, err)
	assert.Equal(t, []native.HourlyForecast{{Time: "2024-05-01 12:00:00", Description: "rain", TemperatureC: 10, Humidity: 90}}, out)
}

func TestWeatherTools_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid API key"}`))
	}))
	defer server.Close()
	ctx := context.Background()
	args := map[string]interface{}{"lat": 1, "lon": 2}

	reg := registryOf(t, native.WeatherTools(httpinvoker.New(server.Client(), testLogger()), native.WeatherConfig{APIKey: "bad", BaseURL: server.URL}, testLogger()))
	_, err := reg.Call(ctx, "get_weather_forecast", native.Input{Args: args})
	var statusErr *httpinvoker.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)

	noKey := registryOf(t, native.WeatherTools(httpinvoker.New(server.Client(), testLogger()), native.WeatherConfig{BaseURL: server.URL}, testLogger()))
	_, err = noKey.Call(ctx, "get_weather_forecast", native.Input{Args: args})
	assert.ErrorIs(t, err, usecase.ErrMissingCredentials)
}

func TestStockTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		if r.URL.Query().Get("symbol") == "AAPL" {
			w.Write([]byte(`{"Global Quote":{"01. symbol":"AAPL","05. price":"189.9800"}}`))
			return
		}
		w.Write([]byte(`{"Global Quote":{}}`))
	}))
	defer server.Close()

	reg := registryOf(t, native.StockTools(httpinvoker.New(server.Client(), testLogger()), native.StockConfig{APIKey: "k", BaseURL: server.URL}))
	ctx := context.Background()

	out, err := reg.Call(ctx, "get_stock_price", native.Input{Args: map[string]interface{}{"ticker": "AAPL"}})
	require.NoError(t, err)
	assert.Equal(t, "The current stock price of AAPL is 189.9800", out)

	out, err = reg.Call(ctx, "get_stock_price", native.Input{Args: map[string]interface{}{"ticker": "NOPE"}})
	require.NoError(t, err)
	assert.Contains(t, out, "Could not find stock price for NOPE")
}

func TestStockTools_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var traceparent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.Write([]byte(`{"Global Quote":{"05. price":"1.00"}}`))
	}))
	defer server.Close()

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	reg := registryOf(t, native.StockTools(httpinvoker.New(server.Client(), testLogger()), native.StockConfig{APIKey: "k", BaseURL: server.URL}))
	_, err := reg.Call(ctx, "get_stock_price", native.Input{Args: map[string]interface{}{"ticker": "AAPL"}})
	require.NoError(t, err)
	assert.Equal(t, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", traceparent)
}

func TestTicketTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/api/now/table/incident", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("sysparm_display_value"))
		w.Write([]byte(`{"result":[
			{"sys_id":"1","number":"INC001","short_description":"Mail down","priority":"1 - Critical","state":"New","assignment_group":{"display_value":"Email","link":"x"}},
			{"sys_id":"2","number":"INC002","short_description":"Printer","priority":"4 - Low","state":"Resolved","assignment_group":""}
		]}`))
	}))
	defer server.Close()

	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "t.db"), testLogger())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	reg := registryOf(t, native.TicketTools(httpinvoker.New(server.Client(), testLogger()), native.ServiceNowConfig{
		InstanceURL: server.URL + "/api", Username: "admin", Password: "pw",
	}, testLogger()))
	assert.True(t, reg.NeedsResource("fetch_all_tickets"))
	assert.True(t, reg.NeedsResource("list_stored_tickets"))

	descs := reg.Descriptors(usecase.NativeGroupLocal)
	require.Len(t, descs, 2)
	assert.Empty(t, descs[0].InputSchema.Properties)
	assert.Contains(t, descs[1].InputSchema.Properties, "priority")
	assert.Empty(t, descs[1].InputSchema.Required)

	conn, err := store.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Close()

	out, err := reg.Call(ctx, "fetch_all_tickets", native.Input{DB: conn})
	require.NoError(t, err)
	assert.Equal(t, 2, out.(map[string]interface{})["count"])

	out, err = reg.Call(ctx, "list_stored_tickets", native.Input{Args: map[string]interface{}{"priority": "1 - Critical"}, DB: conn})
	require.NoError(t, err)
	tickets := out.([]sqlitestore.Ticket)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Email", tickets[0].AssignmentGroup)

	out, err = reg.Call(ctx, "list_stored_tickets", native.Input{DB: conn})
	require.NoError(t, err)
	assert.Len(t, out.([]sqlitestore.Ticket), 2)
}

func TestTicketTools_ConfigErrors(t *testing.T) {
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "t.db"), testLogger())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	conn, err := store.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Close()

	reg := registryOf(t, native.TicketTools(httpinvoker.New(nil, testLogger()), native.ServiceNowConfig{}, testLogger()))
	_, err = reg.Call(ctx, "fetch_all_tickets", native.Input{DB: conn})
	assert.ErrorIs(t, err, usecase.ErrAPINotConfigured)

	reg = registryOf(t, native.TicketTools(httpinvoker.New(nil, testLogger()), native.ServiceNowConfig{InstanceURL: "http://x"}, testLogger()))
	_, err = reg.Call(ctx, "fetch_all_tickets", native.Input{DB: conn})
	assert.ErrorIs(t, err, usecase.ErrMissingCredentials)

	_, err = reg.Call(ctx, "list_stored_tickets", native.Input{})
	assert.Error(t, err)
}
