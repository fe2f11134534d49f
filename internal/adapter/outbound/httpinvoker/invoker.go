package httpinvoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ArgsLocation selects where arguments left over after path substitution are sent.
type ArgsLocation int

const (
	// ArgsInBody sends leftover arguments as a JSON object body, when there are any.
	ArgsInBody ArgsLocation = iota
	// ArgsInQuery sends leftover arguments as query parameters.
	ArgsInQuery
)

// Request describes one proxied call.
type Request struct {
	Method  string
	BaseURL string
	// Path may contain {name} placeholders filled from Args.
	Path   string
	Args   map[string]interface{}
	ArgsIn ArgsLocation
	Auth   Authenticator
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Invoker performs proxied HTTP calls using standard net/http.
type Invoker struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a new HTTP Invoker.
func New(client *http.Client, logger *slog.Logger) *Invoker {
	if client == nil {
		client = http.DefaultClient
	}
	return &Invoker{
		client: client,
		logger: logger.With("component", "http_invoker"),
	}
}

// StaticMethod is the calling convention of static microservice tools:
// POST when the endpoint or tool name mentions "create" or "fetch", GET otherwise.
func StaticMethod(endpoint, toolName string) string {
	for _, s := range []string{endpoint, toolName} {
		s = strings.ToLower(s)
		if strings.Contains(s, "create") || strings.Contains(s, "fetch") {
			return http.MethodPost
		}
	}
	return http.MethodGet
}

// SubstitutePath replaces {name} placeholders in template with the matching
// arguments and returns the remaining arguments. Unmatched placeholders stay.
func SubstitutePath(template string, args map[string]interface{}) (string, map[string]interface{}) {
	path := template
	remaining := make(map[string]interface{}, len(args))
	for k, v := range args {
		placeholder := "{" + k + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(FormatArg(v)))
		} else {
			remaining[k] = v
		}
	}
	return path, remaining
}

// Do executes req. A 2xx response body is decoded as JSON when possible and
// returned as a string otherwise. Other statuses yield a *StatusError.
func (i *Invoker) Do(ctx context.Context, req Request) (interface{}, error) {
	respBodyBytes, err := i.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(respBodyBytes) == 0 {
		return "", nil
	}
	var resultData interface{}
	if err := json.Unmarshal(respBodyBytes, &resultData); err != nil {
		i.logger.Debug("Response is not JSON, returning raw body as string", slog.String("path", req.Path))
		return string(respBodyBytes), nil
	}
	return resultData, nil
}

// DoInto executes req and decodes the 2xx JSON response into out.
func (i *Invoker) DoInto(ctx context.Context, req Request, out interface{}) error {
	respBodyBytes, err := i.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (i *Invoker) roundTrip(ctx context.Context, req Request) ([]byte, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	log := i.logger.With(slog.String("method", method), slog.String("path", req.Path))

	// --- 1. Construct URL with Path Parameters --- //
	path, remaining := SubstitutePath(req.Path, req.Args)
	target, err := url.Parse(strings.TrimRight(req.BaseURL, "/") + path)
	if err != nil {
		log.Error("Failed to build request URL", slog.Any("error", err))
		return nil, fmt.Errorf("invalid URL %s%s: %w", req.BaseURL, path, err)
	}

	// --- 2. Query or Body --- //
	var body io.Reader
	switch req.ArgsIn {
	case ArgsInQuery:
		query := target.Query()
		for k, v := range remaining {
			query.Add(k, FormatArg(v))
		}
		target.RawQuery = query.Encode()
	default:
		if len(remaining) > 0 {
			jsonData, err := json.Marshal(remaining)
			if err != nil {
				log.Error("Failed to marshal request body", slog.Any("error", err))
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			body = bytes.NewReader(jsonData)
		}
	}

	// --- 3. Create HTTP Request --- //
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		log.Error("Failed to create HTTP request", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Auth != nil {
		req.Auth.Apply(httpReq)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
	log = log.With(slog.String("url", redactQuery(target)))

	// --- 4. Execute Request --- //
	log.Debug("Executing HTTP request")
	resp, err := i.client.Do(httpReq)
	if err != nil {
		log.Error("HTTP request failed", slog.Any("error", err))
		return nil, err
	}
	defer resp.Body.Close()

	log = log.With(slog.Int("status_code", resp.StatusCode))
	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", slog.Any("error", err))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// --- 5. Process Response --- //
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Received non-success status code", slog.String("response_body", string(respBodyBytes)))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBodyBytes)}
	}
	return respBodyBytes, nil
}

// redactQuery drops the query string from logged URLs; native tools pass API keys there.
func redactQuery(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	return c.String()
}
