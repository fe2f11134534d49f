package openapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i2y/mcphub/internal/adapter/outbound/httpinvoker"
)

// Common OpenAPI schema paths used by various frameworks
var commonOpenAPIPaths = []string{
	"/openapi.json",            // FastAPI default
	"/docs/openapi.json",       // Alternative FastAPI path
	"/swagger.json",            // Swagger/OpenAPI 2.0
	"/v3/api-docs",             // SpringDoc OpenAPI 3.0
	"/api-docs",                // SpringFox
	"/api/openapi.json",        // Custom API prefix
	"/api/v1/openapi.json",     // Versioned API
	"/api/swagger.json",        // Alternative swagger path
	"/swagger/v1/swagger.json", // .NET default
	"/_spec",                   // Some Node.js frameworks
	"/spec",                    // Alternative spec path
	"/api-spec.json",           // Custom spec name
}

// AutoDiscoverer finds the OpenAPI document of an API that only configures a base URL.
type AutoDiscoverer struct {
	client       *http.Client
	probeTimeout time.Duration
	logger       *slog.Logger
}

// NewAutoDiscoverer creates a new OpenAPI schema auto-discoverer
func NewAutoDiscoverer(client *http.Client, logger *slog.Logger) *AutoDiscoverer {
	return &AutoDiscoverer{
		client:       client,
		probeTimeout: 5 * time.Second,
		logger:       logger.With("component", "openapi_autodiscoverer"),
	}
}

// DiscoverSchema probes the well-known document paths below baseURL and returns
// the first one answering 200 with a JSON content type.
func (d *AutoDiscoverer) DiscoverSchema(ctx context.Context, baseURL string, auth httpinvoker.Authenticator) (string, error) {
	log := d.logger.With(slog.String("base_url", baseURL))
	log.Info("Attempting to auto-discover OpenAPI schema")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		return "", fmt.Errorf("base URL must include scheme (http:// or https://)")
	}

	for _, path := range commonOpenAPIPaths {
		candidate := strings.TrimRight(baseURL, "/") + path
		log.Debug("Trying OpenAPI path", slog.String("url", candidate))

		found, err := d.checkOpenAPIEndpoint(ctx, candidate, auth)
		if err != nil {
			log.Debug("Failed to check endpoint", slog.String("url", candidate), slog.Any("error", err))
			continue
		}
		if found {
			log.Info("Found OpenAPI schema", slog.String("url", candidate))
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no OpenAPI schema found at base URL: %s", baseURL)
}

// checkOpenAPIEndpoint checks if a URL returns something that looks like an OpenAPI document.
func (d *AutoDiscoverer) checkOpenAPIEndpoint(ctx context.Context, candidate string, auth httpinvoker.Authenticator) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json, application/vnd.oai.openapi+json")
	req.Header.Set("User-Agent", "mcphub/1.0")
	if auth != nil {
		auth.Apply(req)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") &&
		!strings.Contains(contentType, "application/vnd.oai.openapi+json") {
		return false, nil
	}
	return true, nil
}
