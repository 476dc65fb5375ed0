package strategy

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mmynk/roundtable/internal/models"
)

// DefaultStrategyName is the registry's initial default.
const DefaultStrategyName = "random"

// Info describes a registered strategy for listing endpoints.
type Info struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Configuration Config `json:"configuration"`
}

// Coordinator is the registry of assignment strategies. It dispatches by
// name, merges per-group and per-call configuration over strategy
// defaults, and falls back to the default strategy once when the
// requested strategy fails at runtime.
type Coordinator struct {
	mu          sync.RWMutex
	strategies  map[string]Strategy
	defaultName string
}

// NewCoordinator creates a registry seeded with the three built-in
// strategies (random, round_robin, weighted).
func NewCoordinator() *Coordinator {
	c := &Coordinator{
		strategies:  make(map[string]Strategy),
		defaultName: DefaultStrategyName,
	}
	c.Register(NewRandom())
	c.Register(NewRoundRobin())
	c.Register(NewWeighted())
	return c
}

// Register adds a strategy under its own name, replacing any previous
// registration. This is the open extension point for custom strategies.
func (c *Coordinator) Register(s Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategies[s.Name()] = s
}

// SetDefault switches the fallback strategy. Fails with
// models.ErrUnknownStrategy when the name is not registered.
func (c *Coordinator) SetDefault(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.strategies[name]; !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownStrategy, name)
	}
	c.defaultName = name
	return nil
}

// Default returns the current default strategy name.
func (c *Coordinator) Default() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultName
}

// Strategies lists the registered strategies with their default
// configuration, sorted by name.
func (c *Coordinator) Strategies() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	infos := make([]Info, 0, len(c.strategies))
	for _, s := range c.strategies {
		infos = append(infos, Info{
			Name:          s.Name(),
			Description:   s.Description(),
			Configuration: s.DefaultConfig(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// NextUser resolves the group's preferred strategy from its settings
// (falling back to the registry default) and dispatches. The group's
// stored strategy configuration is applied as a per-call override.
func (c *Coordinator) NextUser(group *models.Group) (*models.Member, error) {
	name := group.StrategyName()
	if name == "" {
		name = c.Default()
	}
	return c.NextUserWithStrategy(group, name, group.StrategyConfig())
}

// NextUserWithStrategy dispatches to the named strategy, merging config
// over the strategy's defaults for this call only. Lookup failures
// surface models.ErrUnknownStrategy. When execution fails and the name
// differs from the default, the default strategy is retried once; a
// failure of the default itself propagates.
func (c *Coordinator) NextUserWithStrategy(group *models.Group, name string, config Config) (*models.Member, error) {
	c.mu.RLock()
	s, ok := c.strategies[name]
	defaultName := c.defaultName
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownStrategy, name)
	}

	effective := s.DefaultConfig().Merge(config)
	member, err := s.NextUser(group, effective)
	if err != nil {
		// A broken strategy must not block turn progression; fall back
		// to the default once.
		if name != defaultName {
			slog.Warn("Turn strategy failed, falling back to default",
				"group_id", group.ID,
				"strategy", name,
				"default", defaultName,
				"error", err,
			)
			return c.NextUserWithStrategy(group, defaultName, nil)
		}
		return nil, fmt.Errorf("strategy %q: %w", name, err)
	}
	return member, nil
}
