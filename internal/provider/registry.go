package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vico-ai/vico/internal/config"
	"github.com/vico-ai/vico/internal/logging"
	"github.com/vico-ai/vico/pkg/types"
)

// Registry manages all available providers, keyed by provider ID
// ("anthropic", "openai", "ark").
type Registry struct {
	mu            sync.RWMutex
	providers     map[string]Provider
	defaultModels map[string]string // role ("chat", "agentic", "image") -> "provider/model"
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers:     make(map[string]Provider),
		defaultModels: make(map[string]string),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all available providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// GetModel retrieves a specific model from a provider.
func (r *Registry) GetModel(providerID, modelID string) (*types.Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, model := range provider.Models() {
		if model.ID == modelID {
			return &model, nil
		}
	}

	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// AllModels returns all models from all providers, highest-priority first.
func (r *Registry) AllModels() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []types.Model
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}

	sort.Slice(models, func(i, j int) bool {
		return modelPriority(models[i].ID) > modelPriority(models[j].ID)
	})

	return models
}

// ModelForRole resolves the "provider/model" string configured for one of
// Vico's three roles (CHAT_MODEL_NAME, AGENTIC_MODEL_NAME,
// IMAGE_MODEL_NAME) to its *types.Model. If the configured model isn't
// registered, it falls back to the first available model tagged fit for
// that role, and only to the first model overall if none is tagged.
func (r *Registry) ModelForRole(role string) (*types.Model, error) {
	r.mu.RLock()
	modelString := r.defaultModels[role]
	r.mu.RUnlock()

	if modelString != "" {
		providerID, modelID := ParseModelString(modelString)
		if model, err := r.GetModel(providerID, modelID); err == nil {
			return model, nil
		}
	}

	models := r.AllModels()
	if len(models) == 0 {
		return nil, fmt.Errorf("no models available")
	}

	// Prefer a model actually fit for this role (vicoRoles, set on each
	// provider's catalog) over AllModels' generic popularity ordering, so a
	// misconfigured IMAGE_MODEL_NAME doesn't silently fall back to a
	// non-vision model.
	for _, m := range models {
		if modelHasRole(m, role) {
			return &m, nil
		}
	}
	return &models[0], nil
}

func modelHasRole(m types.Model, role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// modelPriority returns sorting priority for models.
func modelPriority(modelID string) int {
	switch {
	case strings.Contains(modelID, "gpt-5"):
		return 100
	case strings.Contains(modelID, "claude-sonnet-4"):
		return 90
	case strings.Contains(modelID, "claude-opus"):
		return 85
	case strings.Contains(modelID, "gpt-4o"):
		return 80
	case strings.Contains(modelID, "claude-3-5"):
		return 75
	case strings.Contains(modelID, "gemini-2"):
		return 70
	default:
		return 50
	}
}

// InitializeProviders constructs and registers the anthropic/openai/ark
// providers whose credentials are present in cfg, and records the three
// role model strings (CHAT_MODEL_NAME, AGENTIC_MODEL_NAME,
// IMAGE_MODEL_NAME) for later lookup via ModelForRole. Vico has exactly
// three well-known provider slots, one per credential the deployment
// supplies.
func InitializeProviders(ctx context.Context, cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()
	registry.defaultModels["chat"] = cfg.ChatModelName
	registry.defaultModels["agentic"] = cfg.AgenticModelName
	registry.defaultModels["image"] = cfg.ImageModelName

	// The orchestrator's Generator always runs the agentic loop, so each
	// provider's single bound chat model follows AGENTIC_MODEL_NAME; the
	// chat/image role strings remain available via ModelForRole for
	// callers that look up model metadata rather than generate with it.
	agenticProviderID, agenticModelID := ParseModelString(cfg.AgenticModelName)

	if cfg.AnthropicAPIKey != "" {
		model := ""
		if agenticProviderID == "anthropic" {
			model = agenticModelID
		}
		p, err := NewAnthropicProvider(ctx, &AnthropicConfig{
			ID:        "anthropic",
			APIKey:    cfg.AnthropicAPIKey,
			Model:     model,
			MaxTokens: 8192,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("provider: failed to construct anthropic provider")
		} else {
			registry.Register(p)
		}
	}

	if cfg.OpenAIAPIKey != "" {
		model := ""
		if agenticProviderID == "openai" {
			model = agenticModelID
		}
		p, err := NewOpenAIProvider(ctx, &OpenAIConfig{
			ID:        "openai",
			APIKey:    cfg.OpenAIAPIKey,
			Model:     model,
			MaxTokens: 4096,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("provider: failed to construct openai provider")
		} else {
			registry.Register(p)
		}
	}

	if cfg.ArkAPIKey != "" {
		model := ""
		if agenticProviderID == "ark" {
			model = agenticModelID
		}
		p, err := NewArkProvider(ctx, &ArkConfig{
			APIKey:    cfg.ArkAPIKey,
			BaseURL:   cfg.ArkBaseURL,
			Model:     model,
			MaxTokens: 4096,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("provider: failed to construct ark provider")
		} else {
			registry.Register(p)
		}
	}

	if len(registry.providers) == 0 {
		logging.Warn().Msg("provider: no provider credentials found (ANTHROPIC_API_KEY, OPENAI_API_KEY, ARK_API_KEY)")
	}

	return registry, nil
}
