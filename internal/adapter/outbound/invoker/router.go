package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/i2y/mcphub/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/mcphub/internal/adapter/outbound/native"
	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

// Router implements usecase.ToolInvoker and routes invocations based on the tool's route.
type Router struct {
	httpInvoker *httpinvoker.Invoker
	natives     *native.Registry
	resources   usecase.ResourceProvider
	backends    map[string]string
	apis        map[string]domain.APIConfig
	logger      *slog.Logger
}

// NewRouter creates a new invoker router. backends maps static backend names to
// base URLs; resources may be nil when no native tool takes a database handle.
func NewRouter(
	httpInv *httpinvoker.Invoker,
	natives *native.Registry,
	resources usecase.ResourceProvider,
	backends map[string]string,
	apis []domain.APIConfig,
	logger *slog.Logger,
) *Router {
	byName := make(map[string]domain.APIConfig, len(apis))
	for _, api := range apis {
		byName[api.Name] = api
	}
	return &Router{
		httpInvoker: httpInv,
		natives:     natives,
		resources:   resources,
		backends:    backends,
		apis:        byName,
		logger:      logger.With("component", "invoker_router"),
	}
}

// Invoke routes the invocation to the execution path carried by tool.Route.
func (r *Router) Invoke(ctx context.Context, tool domain.ToolDescriptor, args map[string]interface{}) (interface{}, error) {
	log := r.logger.With(slog.String("tool_name", tool.Name), slog.String("kind", string(tool.Kind())))

	switch route := tool.Route.(type) {
	case domain.StaticRoute:
		log.Info("Routing to microservice", slog.String("backend", route.Backend))
		return r.invokeStatic(ctx, route, args)

	case domain.NativeRoute:
		log.Info("Routing to native tool")
		return r.invokeNative(ctx, route, args)

	case domain.DynamicRoute:
		log.Info("Routing to dynamic API", slog.String("api_name", route.APIName))
		return r.invokeDynamic(ctx, route, args)

	default:
		log.Error("Unknown route", slog.Any("route", tool.Route))
		return nil, fmt.Errorf("unknown route for tool %s: %T", tool.Name, tool.Route)
	}
}

func (r *Router) invokeStatic(ctx context.Context, route domain.StaticRoute, args map[string]interface{}) (interface{}, error) {
	baseURL, ok := r.backends[route.Backend]
	if !ok || baseURL == "" {
		return nil, fmt.Errorf("microservice %s: %w", route.Backend, usecase.ErrAPINotConfigured)
	}

	argsIn := httpinvoker.ArgsInQuery
	if route.Method != http.MethodGet {
		argsIn = httpinvoker.ArgsInBody
	}
	result, err := r.httpInvoker.Do(ctx, httpinvoker.Request{
		Method:  route.Method,
		BaseURL: baseURL,
		Path:    route.Endpoint,
		Args:    args,
		ArgsIn:  argsIn,
	})
	if err != nil {
		var statusErr *httpinvoker.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("microservice returned an error: %d - %s", statusErr.StatusCode, statusErr.Body)
		}
		return nil, fmt.Errorf("error communicating with microservice: %v", err)
	}
	return result, nil
}

func (r *Router) invokeNative(ctx context.Context, route domain.NativeRoute, args map[string]interface{}) (interface{}, error) {
	if r.natives == nil {
		return nil, fmt.Errorf("tool %s: %w", route.Tool, usecase.ErrToolNotFound)
	}
	in := native.Input{Args: args}
	if r.natives.NeedsResource(route.Tool) {
		if r.resources == nil {
			return nil, fmt.Errorf("tool %s needs a database but none is configured", route.Tool)
		}
		conn, err := r.resources.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		in.DB = conn
	}
	return r.natives.Call(ctx, route.Tool, in)
}

func (r *Router) invokeDynamic(ctx context.Context, route domain.DynamicRoute, args map[string]interface{}) (interface{}, error) {
	api, ok := r.apis[route.APIName]
	if !ok || api.BaseURL == "" {
		return nil, fmt.Errorf("api %s: %w", route.APIName, usecase.ErrAPINotConfigured)
	}
	auth, err := httpinvoker.NewAuthenticator(api)
	if err != nil {
		return nil, err
	}

	result, err := r.httpInvoker.Do(ctx, httpinvoker.Request{
		Method:  route.Method,
		BaseURL: api.BaseURL,
		Path:    route.Path,
		Args:    args,
		ArgsIn:  httpinvoker.ArgsInBody,
		Auth:    auth,
	})
	if err != nil {
		var statusErr *httpinvoker.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("API request failed with status %d: %s", statusErr.StatusCode, statusErr.Body)
		}
		return nil, err
	}
	return result, nil
}
