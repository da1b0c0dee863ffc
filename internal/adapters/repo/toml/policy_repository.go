package toml

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	"github.com/spf13/viper"
)

const (
	policyPathKey  = "policy.path"
	policyFileName = "policy.toml"
)

// PolicyRepository reads the risk policy overrides. A missing file yields the
// built-in policy.
type PolicyRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.PolicyRepository = (*PolicyRepository)(nil)

func NewPolicyRepository(cfg *viper.Viper) (*PolicyRepository, error) {
	path, err := resolvePath(cfg, policyPathKey, policyFileName)
	if err != nil {
		return nil, err
	}

	return &PolicyRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *PolicyRepository) Path() string {
	return r.path
}

func (r *PolicyRepository) Load(ctx context.Context) (domain.RiskPolicy, error) {
	if err := ctx.Err(); err != nil {
		return domain.RiskPolicy{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	defaults := domain.DefaultRiskPolicy()

	var file policyFileSchema
	found, err := readTOMLFile(r.path, "policy", &file)
	if err != nil {
		return domain.RiskPolicy{}, err
	}
	if !found {
		return defaults, nil
	}
	if err := file.validateVersion(); err != nil {
		return domain.RiskPolicy{}, err
	}

	overrides := domain.RiskPolicy{
		Tiers:           make(map[string]domain.Tier, len(file.Tiers)),
		AnimatedActions: file.AnimatedActions,
		MaxFlashHz:      file.MaxFlashHz,
	}
	for action, raw := range file.Tiers {
		tier, err := domain.ParseTier(raw)
		if err != nil {
			return domain.RiskPolicy{}, fmt.Errorf("decode policy tier for %q: %w", action, err)
		}
		overrides.Tiers[action] = tier
	}

	return defaults.Merge(overrides), nil
}

// Save writes policy in full so operators have a complete file to edit.
func (r *PolicyRepository) Save(ctx context.Context, policy domain.RiskPolicy) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := policyFileSchema{
		MaxFlashHz:      policy.MaxFlashHz,
		AnimatedActions: slices.Clone(policy.AnimatedActions),
		Tiers:           make(map[string]string, len(policy.Tiers)),
	}
	for _, action := range slices.Sorted(maps.Keys(policy.Tiers)) {
		file.Tiers[action] = policy.Tiers[action].String()
	}
	file.applyDefaults()

	return writeTOMLFile(r.path, "policy", file)
}
