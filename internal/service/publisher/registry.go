package publisher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ifuryst/autopost/pkg/util"
)

// ErrAgentNotFound is returned when a platform has no enabled agent.
var ErrAgentNotFound = errors.New("publishing agent not found")

// Plugin is a registry entry
type Plugin struct {
	Name    string
	Agent   Agent
	Enabled bool
	Config  map[string]string
}

// Registry maps case-insensitive platform names to agents. A disabled
// entry is indistinguishable from a missing one for every lookup.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		plugins: make(map[string]*Plugin),
		logger:  logger,
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func agentNotFound(name string) error {
	return fmt.Errorf("%w for platform: %s", ErrAgentNotFound, name)
}

// RegisterAgent inserts or replaces the entry for name.
func (r *Registry) RegisterAgent(name string, agent Agent, enabled bool, config map[string]string) error {
	if agent == nil {
		return fmt.Errorf("cannot register nil agent")
	}
	key := normalizeName(name)
	if key == "" {
		return fmt.Errorf("platform name cannot be empty")
	}

	r.mu.Lock()
	_, replaced := r.plugins[key]
	r.plugins[key] = &Plugin{Name: key, Agent: agent, Enabled: enabled, Config: config}
	r.mu.Unlock()

	r.logger.Info("Publishing agent registered",
		zap.String("platform", key),
		zap.Bool("enabled", enabled),
		zap.Bool("replaced", replaced))
	return nil
}

func (r *Registry) UnregisterAgent(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeName(name)
	if _, ok := r.plugins[key]; !ok {
		return false
	}
	delete(r.plugins, key)
	return true
}

// GetAgent returns nil when the platform is unknown or disabled.
func (r *Registry) GetAgent(name string) Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, ok := r.plugins[normalizeName(name)]
	if !ok || !plugin.Enabled {
		return nil
	}
	return plugin.Agent
}

// Plugin returns a copy of the raw entry, enabled or not.
func (r *Registry) Plugin(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, ok := r.plugins[normalizeName(name)]
	if !ok {
		return Plugin{}, false
	}
	return *plugin, true
}

func (r *Registry) EnableAgent(name string) bool {
	return r.setEnabled(name, true)
}

func (r *Registry) DisableAgent(name string) bool {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	plugin, ok := r.plugins[normalizeName(name)]
	if !ok {
		return false
	}
	plugin.Enabled = enabled
	return true
}

// GetSupportedPlatforms lists enabled platforms in name order.
func (r *Registry) GetSupportedPlatforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name, plugin := range r.plugins {
		if plugin.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (r *Registry) GetPlatformFeatures(name string) []string {
	agent := r.GetAgent(name)
	if agent == nil {
		return []string{}
	}
	return agent.SupportedFeatures()
}

func (r *Registry) ValidateCredentials(ctx context.Context, name string, credentials map[string]string) (bool, error) {
	agent := r.GetAgent(name)
	if agent == nil {
		return false, agentNotFound(name)
	}
	return agent.ValidateCredentials(ctx, credentials), nil
}

func (r *Registry) FormatContent(name, content, imageURL string) (*FormattedContent, error) {
	agent := r.GetAgent(name)
	if agent == nil {
		return nil, agentNotFound(name)
	}
	return agent.FormatContent(content, imageURL)
}

func (r *Registry) GetPublishingStatus(ctx context.Context, name, platformID string, config PublishingConfig) (PublishingStatus, error) {
	agent := r.GetAgent(name)
	if agent == nil {
		return StatusUnknown, agentNotFound(name)
	}
	return agent.GetPublishingStatus(ctx, platformID, config), nil
}

// Publish formats and publishes content on one platform. The returned error
// is non-nil only when the platform has no enabled agent; everything that
// goes wrong on the platform side is reported in the result.
func (r *Registry) Publish(ctx context.Context, name, content string, config PublishingConfig, imageURL string) (*PublishResult, error) {
	agent := r.GetAgent(name)
	if agent == nil {
		return nil, agentNotFound(name)
	}

	result := r.publishWith(ctx, agent, content, config, imageURL)
	r.logger.Info("Publishing completed",
		zap.String("platform", normalizeName(name)),
		zap.Bool("success", result.Success),
		zap.String("platform_id", result.PlatformID),
		zap.String("error", result.Error))
	return result, nil
}

func (r *Registry) publishWith(ctx context.Context, agent Agent, content string, config PublishingConfig, imageURL string) (result *PublishResult) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("Publishing agent panicked",
				zap.String("platform", agent.PlatformName()),
				zap.Any("panic", v))
			result = Failure(util.RecoveredMessage(v))
		}
	}()

	formatted, err := agent.FormatContent(content, imageURL)
	if err != nil {
		return Failure(fmt.Sprintf("failed to format content: %s", err.Error()))
	}

	result = agent.Publish(ctx, formatted, config)
	if result == nil {
		return Failure("publishing agent returned no result")
	}
	return result
}

// PublishToMultiplePlatforms publishes to every platform concurrently. The
// returned map has exactly one entry per requested platform.
func (r *Registry) PublishToMultiplePlatforms(ctx context.Context, platforms []string, content string, configs map[string]PublishingConfig, imageURL string) map[string]*PublishResult {
	results := make(map[string]*PublishResult, len(platforms))
	var mu sync.Mutex
	record := func(platform string, result *PublishResult) {
		mu.Lock()
		defer mu.Unlock()
		results[platform] = result
	}

	var g errgroup.Group
	for _, platform := range util.Unique(platforms) {
		config, ok := LookupConfig(configs, platform)
		if !ok {
			record(platform, Failure(MissingConfigMessage(platform)))
			continue
		}

		g.Go(func() error {
			result, err := r.Publish(ctx, platform, content, config, imageURL)
			if err != nil {
				result = Failure(err.Error())
			}
			record(platform, result)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// LookupConfig finds the config for platform, falling back to a case-insensitive match.
func LookupConfig(configs map[string]PublishingConfig, platform string) (PublishingConfig, bool) {
	if config, ok := configs[platform]; ok {
		return config, true
	}
	key := normalizeName(platform)
	for name, config := range configs {
		if normalizeName(name) == key {
			return config, true
		}
	}
	return PublishingConfig{}, false
}

func MissingConfigMessage(platform string) string {
	return fmt.Sprintf("No configuration found for platform: %s", platform)
}
