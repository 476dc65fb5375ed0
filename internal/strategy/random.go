package strategy

import (
	"math/rand"
	"time"

	"github.com/mmynk/roundtable/internal/models"
)

// Random selects the next user uniformly at random from the eligible
// members.
type Random struct{}

var _ Strategy = (*Random)(nil)

// NewRandom creates the random assignment strategy.
func NewRandom() *Random { return &Random{} }

func (r *Random) Name() string { return "random" }

func (r *Random) Description() string {
	return "Randomly selects the next user from eligible group members"
}

// DefaultConfig lists the supported options:
//   - exclude_current_user (bool, default true): skip the owner of an
//     active turn
//   - seed (int): deterministic selection for reproducible tests
func (r *Random) DefaultConfig() Config {
	return Config{
		"exclude_current_user": true,
		"seed":                 nil,
	}
}

// NextUser picks uniformly at random. Each call uses its own PRNG
// instance so a configured seed cannot leak determinism across
// concurrent evaluations.
func (r *Random) NextUser(group *models.Group, cfg Config) (*models.Member, error) {
	eligible := eligibleMembers(group, cfg.Bool("exclude_current_user", true))
	if len(eligible) == 0 {
		return nil, nil
	}

	var rng *rand.Rand
	if seed, ok := cfg.Int64("seed"); ok {
		rng = rand.New(rand.NewSource(seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	// Stable iteration order so a fixed seed yields a fixed pick.
	sorted := sortByTurnOrder(eligible)
	return sorted[rng.Intn(len(sorted))], nil
}
