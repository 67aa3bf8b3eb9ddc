package llm

import (
	"net/http"
	"sort"
	"sync"
)

// Provider adapts the generic Request to one backend's wire format.
// Providers differ only in URL layout, authentication and JSON shape.
type Provider interface {
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string

	// BuildURL constructs the full API endpoint URL. An empty baseURL
	// selects the provider's public default.
	BuildURL(baseURL, model string) string

	// SetHeaders adds provider-specific headers, including auth when apiKey is set.
	SetHeaders(req *http.Request, apiKey string)

	// BuildRequestBody creates the JSON request body for the provider.
	BuildRequestBody(model string, req Request) ([]byte, error)

	// ParseResponse extracts the generated text from provider-specific JSON.
	ParseResponse(body []byte) (*Response, error)

	// APIKeyEnv names the environment variable conventionally holding the
	// provider's credential, or "" when none is needed.
	APIKeyEnv() string
}

// providerRegistry holds registered providers.
var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names, sorted.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
