package openapi

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/i2y/mcphub/internal/adapter/outbound/github"
	"github.com/i2y/mcphub/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/mcphub/internal/domain"
)

// FileSource reads files addressed by github:// URLs.
type FileSource interface {
	FetchFile(ctx context.Context, githubURL string) ([]byte, error)
}

// SchemaFetcher implements the usecase.SchemaFetcher interface for OpenAPI schemas.
type SchemaFetcher struct {
	httpClient     *http.Client
	github         FileSource
	logger         *slog.Logger
	autoDiscoverer *AutoDiscoverer
}

// NewSchemaFetcher creates a new OpenAPI SchemaFetcher. With insecureSkipVerify the
// client's transport is cloned with TLS certificate verification turned off.
func NewSchemaFetcher(client *http.Client, insecureSkipVerify bool, logger *slog.Logger) *SchemaFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if insecureSkipVerify {
		client = withInsecureTransport(client)
	}
	return &SchemaFetcher{
		httpClient:     client,
		github:         github.NewGHClient(),
		logger:         logger.With("component", "openapi_fetcher"),
		autoDiscoverer: NewAutoDiscoverer(client, logger),
	}
}

// WithGitHub replaces the source used for github:// documents.
func (f *SchemaFetcher) WithGitHub(src FileSource) *SchemaFetcher {
	f.github = src
	return f
}

func withInsecureTransport(client *http.Client) *http.Client {
	base, ok := client.Transport.(*http.Transport)
	if !ok || base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}
	transport := base.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	transport.TLSClientConfig.InsecureSkipVerify = true

	c := *client
	c.Transport = transport
	return &c
}

// Fetch loads the OpenAPI document of api. The document is taken from openapi_url,
// which may be an http(s) URL, a github:// reference or a local file path; when it is empty the document
// is discovered below base_url. Requests carry the API's credentials.
func (f *SchemaFetcher) Fetch(ctx context.Context, api domain.APIConfig) (domain.APISchema, error) {
	log := f.logger.With(slog.String("api_name", api.Name), slog.String("source", api.OpenAPIURL))
	log.Info("Fetching OpenAPI schema")

	auth, err := httpinvoker.NewAuthenticator(api)
	if err != nil {
		return domain.APISchema{}, err
	}

	src := api.OpenAPIURL
	if src == "" {
		if api.BaseURL == "" {
			return domain.APISchema{}, fmt.Errorf("api %s: neither openapi_url nor base_url is set", api.Name)
		}
		src, err = f.autoDiscoverer.DiscoverSchema(ctx, api.BaseURL, auth)
		if err != nil {
			return domain.APISchema{}, fmt.Errorf("api %s: %w", api.Name, err)
		}
		log.Info("Auto-discovered OpenAPI schema", slog.String("resolved_url", src))
	}

	var rawData []byte
	if github.IsGitHubURL(src) {
		rawData, err = f.github.FetchFile(ctx, src)
	} else if u, parseErr := url.ParseRequestURI(src); parseErr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		rawData, err = f.download(ctx, src, auth)
	} else {
		log.Debug("Assuming local file path")
		rawData, err = os.ReadFile(src)
		if err != nil {
			err = fmt.Errorf("failed to read schema from file %s: %w", src, err)
		}
	}
	if err != nil {
		log.Error("Failed to load OpenAPI schema", slog.Any("error", err))
		return domain.APISchema{}, err
	}

	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: true}
	doc, err := loader.LoadFromData(rawData)
	if err != nil {
		log.Error("Failed to parse OpenAPI schema data", slog.Any("error", err))
		return domain.APISchema{}, fmt.Errorf("failed to parse OpenAPI schema from %s: %w", src, err)
	}

	if validateErr := doc.Validate(ctx); validateErr != nil {
		log.Warn("OpenAPI schema validation failed", slog.Any("validation_error", validateErr))
	}

	log.Info("Successfully fetched and parsed OpenAPI schema")
	return domain.APISchema{
		Source:     src,
		APIName:    api.Name,
		RawData:    rawData,
		ParsedData: doc,
	}, nil
}

func (f *SchemaFetcher) download(ctx context.Context, src string, auth httpinvoker.Authenticator) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", src, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")
	auth.Apply(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schema from URL %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch schema from URL %s: status %s", src, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", src, err)
	}
	return body, nil
}
