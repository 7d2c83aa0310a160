package schema

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

//go:embed seed.toml
var seedTOML []byte

// Seed holds the defaults a fresh deployment starts from: the congregation's
// cell group names, the standard monthly subscription fee, and the initial
// code of conduct.
type Seed struct {
	CellGroups              []string `toml:"cell_groups"`
	StandardSubscriptionFee float64  `toml:"standard_subscription_fee"`
	Rules                   []struct {
		Title       string `toml:"title"`
		Description string `toml:"description"`
		Category    string `toml:"category"`
	} `toml:"rules"`
}

// LoadSeed parses the embedded seed file.
func LoadSeed() (*Seed, error) {
	var s Seed
	if err := toml.Unmarshal(seedTOML, &s); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	if len(s.CellGroups) == 0 {
		return nil, fmt.Errorf("seed data has no cell groups")
	}
	return &s, nil
}

// DefaultRules converts the seed rules into GroupRule records with fresh ids.
func (s *Seed) DefaultRules() []GroupRule {
	rules := make([]GroupRule, 0, len(s.Rules))
	for _, r := range s.Rules {
		rules = append(rules, GroupRule{
			ID:          NewID(),
			Title:       r.Title,
			Description: r.Description,
			Category:    r.Category,
		})
	}
	return rules
}
