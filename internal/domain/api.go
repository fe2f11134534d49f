package domain

// AuthType selects how requests to a configured API are authenticated.
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeBearer AuthType = "bearer"
)

// APIConfig describes one third-party API whose OpenAPI document is turned into tools.
// Name joins a descriptor's api_name annotation back to these connection details.
type APIConfig struct {
	Name       string   `yaml:"name" toml:"name" json:"name"`
	BaseURL    string   `yaml:"base_url" toml:"base_url" json:"base_url"`
	OpenAPIURL string   `yaml:"openapi_url" toml:"openapi_url" json:"openapi_url"`
	AuthType   AuthType `yaml:"auth_type" toml:"auth_type" json:"auth_type"`
	AuthKey    string   `yaml:"auth_key,omitempty" toml:"auth_key" json:"auth_key,omitempty"`
	AuthUser   string   `yaml:"auth_user,omitempty" toml:"auth_user" json:"auth_user,omitempty"`
	AuthPass   string   `yaml:"auth_pass,omitempty" toml:"auth_pass" json:"auth_pass,omitempty"`
}

// APISchema represents a fetched OpenAPI document before conversion.
type APISchema struct {
	// Source is the URL or file path the document was loaded from.
	Source string
	// APIName is the configured API the document belongs to.
	APIName string
	// RawData holds the unprocessed document.
	RawData []byte
	// ParsedData holds the library-specific representation (*openapi3.T),
	// kept as interface{} so the domain does not depend on the parser.
	ParsedData interface{}
}
