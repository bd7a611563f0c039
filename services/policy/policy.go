package policy

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// Rule is the six-field access-control record resolved per tenant and
// role. Every field is optional: a nil slice or nil bool means "unset",
// which is distinct from an empty list or explicit false. Layered merging
// needs this tri-state so a coarse layer's value survives unless a finer
// layer redefines it.
type Rule struct {
	AllowProviders []string `json:"allow_providers,omitempty"`
	DenyProviders  []string `json:"deny_providers,omitempty"`
	AllowRoles     []string `json:"allow_roles,omitempty"`
	BlockRoles     []string `json:"block_roles,omitempty"`
	AllowLocal     *bool    `json:"allow_local,omitempty"`
	AllowCloud     *bool    `json:"allow_cloud,omitempty"`
}

// merge overlays other onto r. Each present field in other overwrites the
// prior value for that field only; unset fields never override.
func (r *Rule) merge(other Rule) {
	if other.AllowProviders != nil {
		r.AllowProviders = other.AllowProviders
	}
	if other.DenyProviders != nil {
		r.DenyProviders = other.DenyProviders
	}
	if other.AllowRoles != nil {
		r.AllowRoles = other.AllowRoles
	}
	if other.BlockRoles != nil {
		r.BlockRoles = other.BlockRoles
	}
	if other.AllowLocal != nil {
		r.AllowLocal = other.AllowLocal
	}
	if other.AllowCloud != nil {
		r.AllowCloud = other.AllowCloud
	}
}

// Document is the layered policy configuration. Tenant and role keys are
// matched case-insensitively; TenantRoles keys are "tenant:role".
type Document struct {
	Default     Rule            `json:"default"`
	Tenants     map[string]Rule `json:"tenants,omitempty"`
	Roles       map[string]Rule `json:"roles,omitempty"`
	TenantRoles map[string]Rule `json:"tenant_roles,omitempty"`
}

// DefaultDocument returns the allow-all document used when no policy is
// configured.
func DefaultDocument() *Document {
	return &Document{}
}

// ParseDocument parses a JSON-encoded policy document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	return &doc, nil
}

// LoadDocument reads and parses a policy document file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy document: %w", err)
	}
	return ParseDocument(data)
}

// Resolve computes the effective rule for a tenant and role by overlaying
// layers coarse to fine: default, tenant wildcard, tenant-specific,
// role-specific, tenant+role-specific. The most specific applicable
// layer's value wins per field.
func (d *Document) Resolve(tenant, role string) Rule {
	var rule Rule
	rule.merge(d.Default)

	if r, ok := lookupRule(d.Tenants, "*"); ok {
		rule.merge(r)
	}
	if r, ok := lookupRule(d.Tenants, tenant); ok {
		rule.merge(r)
	}
	if r, ok := lookupRule(d.Roles, role); ok {
		rule.merge(r)
	}
	if r, ok := lookupRule(d.TenantRoles, tenant+":"+role); ok {
		rule.merge(r)
	}

	return rule
}

// lookupRule finds a rule by case-insensitive key.
func lookupRule(rules map[string]Rule, key string) (Rule, bool) {
	if rules == nil {
		return Rule{}, false
	}
	if r, ok := rules[key]; ok {
		return r, true
	}
	for k, r := range rules {
		if strings.EqualFold(k, key) {
			return r, true
		}
	}
	return Rule{}, false
}

// Category classifies a provider instance as local or cloud.
type Category string

const (
	CategoryLocal Category = "local"
	CategoryCloud Category = "cloud"
)

// localTypes are providers that only ever run on operator-controlled
// hardware: the Ollama family and self-hosted OpenAI-compatible servers.
var localTypes = map[string]bool{
	"ollama":   true,
	"vllm":     true,
	"lmstudio": true,
	"llamacpp": true,
}

// cloudTypes are the known hosted APIs.
var cloudTypes = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
	"azure":     true,
}

// ProviderCategory maps a provider type and base URL to exactly one
// category. An OpenAI-compatible provider bound to a loopback host is
// reclassified as local. Unknown types map to cloud so a misconfigured
// provider cannot slip past a cloud-disabling policy.
func ProviderCategory(providerType, baseURL string) Category {
	t := strings.ToLower(providerType)
	if localTypes[t] {
		return CategoryLocal
	}
	if t == "openai" && isLoopbackURL(baseURL) {
		return CategoryLocal
	}
	if cloudTypes[t] {
		return CategoryCloud
	}
	return CategoryCloud
}

// isLoopbackURL reports whether the URL's host resolves syntactically to
// a loopback address.
func isLoopbackURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// IsProviderAllowed applies the resolved rule to one provider. All six
// checks are independent; any one failing denies the provider.
func IsProviderAllowed(rule Rule, role, providerType, baseURL string) bool {
	if rule.AllowRoles != nil && !containsFold(rule.AllowRoles, role) {
		return false
	}
	if containsFold(rule.BlockRoles, role) {
		return false
	}
	if rule.AllowProviders != nil && !containsFold(rule.AllowProviders, providerType) {
		return false
	}
	if containsFold(rule.DenyProviders, providerType) {
		return false
	}

	category := ProviderCategory(providerType, baseURL)
	if category == CategoryLocal && rule.AllowLocal != nil && !*rule.AllowLocal {
		return false
	}
	if category == CategoryCloud && rule.AllowCloud != nil && !*rule.AllowCloud {
		return false
	}

	return true
}

// containsFold reports whether list holds value, case-insensitively.
func containsFold(list []string, value string) bool {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}
