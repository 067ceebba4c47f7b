package integrations

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// AuthType is how a provider is authenticated
type AuthType string

const (
	AuthAPIKey AuthType = "api_key"
	AuthOAuth2 AuthType = "oauth2"
	AuthNone   AuthType = "none"
)

// Field describes one settings or credentials key of a provider
type Field struct {
	Key      string `yaml:"key" json:"key"`
	Label    string `yaml:"label" json:"label"`
	Required bool   `yaml:"required" json:"required"`
}

// Provider is an entry of the integration catalog
type Provider struct {
	Slug        string   `yaml:"slug" json:"slug"`
	Name        string   `yaml:"name" json:"name"`
	Category    string   `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
	AuthType    AuthType `yaml:"auth_type" json:"auth_type"`
	Testable    bool     `yaml:"testable" json:"testable"`
	Settings    []Field  `yaml:"settings" json:"settings"`
	Credentials []Field  `yaml:"credentials" json:"credentials"`
}

type catalogFile struct {
	Providers []Provider `yaml:"providers"`
}

// ParseCatalog decodes and validates a catalog document
func ParseCatalog(data []byte) ([]Provider, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("catalog has no providers")
	}

	seen := make(map[string]bool, len(file.Providers))
	for i := range file.Providers {
		p := &file.Providers[i]
		if !slugPattern.MatchString(p.Slug) {
			return nil, fmt.Errorf("provider %d: invalid slug %q", i, p.Slug)
		}
		if seen[p.Slug] {
			return nil, fmt.Errorf("provider %q is listed twice", p.Slug)
		}
		seen[p.Slug] = true
		if p.Name == "" {
			return nil, fmt.Errorf("provider %q has no name", p.Slug)
		}
		switch p.AuthType {
		case "":
			p.AuthType = AuthNone
		case AuthAPIKey, AuthOAuth2, AuthNone:
		default:
			return nil, fmt.Errorf("provider %q: unknown auth_type %q", p.Slug, p.AuthType)
		}
		if err := checkFields(p.Slug, "settings", p.Settings); err != nil {
			return nil, err
		}
		if err := checkFields(p.Slug, "credentials", p.Credentials); err != nil {
			return nil, err
		}
	}

	sort.Slice(file.Providers, func(i, j int) bool { return file.Providers[i].Slug < file.Providers[j].Slug })
	return file.Providers, nil
}

func checkFields(slug, kind string, fields []Field) error {
	keys := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Key == "" {
			return fmt.Errorf("provider %q: %s field without key", slug, kind)
		}
		if keys[f.Key] {
			return fmt.Errorf("provider %q: duplicate %s key %q", slug, kind, f.Key)
		}
		keys[f.Key] = true
	}
	return nil
}

// LoadCatalogFile reads and validates a catalog file. An empty path
// returns the embedded catalog.
func LoadCatalogFile(path string) ([]Provider, error) {
	if path == "" {
		return ParseCatalog(embeddedCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// Catalog is the set of providers an organization can connect. It is safe
// for concurrent use and can be swapped at runtime.
type Catalog struct {
	mu        sync.RWMutex
	providers []Provider
	bySlug    map[string]Provider
}

// NewCatalog creates a catalog holding providers
func NewCatalog(providers []Provider) *Catalog {
	c := &Catalog{}
	c.Replace(providers)
	return c
}

// DefaultCatalog returns the embedded catalog
func DefaultCatalog() *Catalog {
	providers, err := ParseCatalog(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded integration catalog is invalid: %v", err))
	}
	return NewCatalog(providers)
}

// Replace swaps the provider set
func (c *Catalog) Replace(providers []Provider) {
	bySlug := make(map[string]Provider, len(providers))
	for _, p := range providers {
		bySlug[p.Slug] = p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers = providers
	c.bySlug = bySlug
}

// List returns every provider ordered by slug
func (c *Catalog) List() []Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

// Get returns the provider with slug
func (c *Catalog) Get(slug string) (Provider, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.bySlug[slug]
	return p, ok
}
