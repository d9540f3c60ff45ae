// Package catalog holds the static protocol configuration: baseline weights,
// the signal router, goal alignment tables, conflicts and nutrient targets.
// Data is embedded YAML parsed once into immutable structures.
package catalog

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Weight bounds shared by baseline and learned weights.
const (
	MinWeight = 0.10
	MaxWeight = 1.00
)

// #region types

// Protocol is an immutable catalog entry.
type Protocol struct {
	ID       string
	Baseline float64
}

// NutrientTarget is a daily intake target driven by a protocol.
type NutrientTarget struct {
	Nutrient string
	Amount   float64
}

// Catalog is the parsed, read-only configuration. All accessors return copies.
type Catalog struct {
	version     int
	protocols   []Protocol
	index       map[string]int
	routes      map[string][]string
	signals     []string
	goals       map[string]goalTable
	goalAliases map[string]string
	conflicts   map[[2]string]bool
	nutrients   map[string][]NutrientTarget
}

type goalTable struct {
	def       float64
	alignment map[string]float64
}

// #endregion types

// #region yaml-schema

type fileSchema struct {
	Version   int `yaml:"version"`
	Protocols []struct {
		ID       string  `yaml:"id"`
		Baseline float64 `yaml:"baseline"`
	} `yaml:"protocols"`
	Routes []struct {
		Signal    string   `yaml:"signal"`
		Protocols []string `yaml:"protocols"`
	} `yaml:"routes"`
	Goals []struct {
		Name      string             `yaml:"name"`
		Default   float64            `yaml:"default"`
		Alignment map[string]float64 `yaml:"alignment"`
	} `yaml:"goals"`
	GoalAliases map[string]string             `yaml:"goal_aliases"`
	Conflicts   [][]string                    `yaml:"conflicts"`
	Nutrients   map[string]map[string]float64 `yaml:"nutrients"`
}

// #endregion yaml-schema

// #region default

//go:embed catalog.yaml
var defaultData []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog. It panics if the embedded data is
// invalid, which catalog_test guards against.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultData)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded data invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// #endregion default

// #region parse

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var raw fileSchema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(raw.Protocols) == 0 {
		return nil, fmt.Errorf("parse catalog: no protocols")
	}

	c := &Catalog{
		version:     raw.Version,
		protocols:   make([]Protocol, 0, len(raw.Protocols)),
		index:       make(map[string]int, len(raw.Protocols)),
		routes:      make(map[string][]string, len(raw.Routes)),
		goals:       make(map[string]goalTable, len(raw.Goals)),
		goalAliases: make(map[string]string, len(raw.GoalAliases)),
		conflicts:   make(map[[2]string]bool, len(raw.Conflicts)),
		nutrients:   make(map[string][]NutrientTarget, len(raw.Nutrients)),
	}

	for _, p := range raw.Protocols {
		if p.ID == "" {
			return nil, fmt.Errorf("parse catalog: protocol with empty id")
		}
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate protocol %q", p.ID)
		}
		if !InBounds(p.Baseline) {
			return nil, fmt.Errorf("parse catalog: %s baseline %.4f outside [%.2f, %.2f]", p.ID, p.Baseline, MinWeight, MaxWeight)
		}
		c.index[p.ID] = len(c.protocols)
		c.protocols = append(c.protocols, Protocol{ID: p.ID, Baseline: p.Baseline})
	}

	for _, r := range raw.Routes {
		if _, dup := c.routes[r.Signal]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate route %q", r.Signal)
		}
		for _, id := range r.Protocols {
			if _, ok := c.index[id]; !ok {
				return nil, fmt.Errorf("parse catalog: route %s references unknown protocol %q", r.Signal, id)
			}
		}
		c.routes[r.Signal] = append([]string(nil), r.Protocols...)
		c.signals = append(c.signals, r.Signal)
	}

	for _, g := range raw.Goals {
		if g.Default < 0 || g.Default > 1 {
			return nil, fmt.Errorf("parse catalog: goal %q default %.2f outside [0, 1]", g.Name, g.Default)
		}
		t := goalTable{def: g.Default, alignment: make(map[string]float64, len(g.Alignment))}
		for id, v := range g.Alignment {
			if _, ok := c.index[id]; !ok {
				return nil, fmt.Errorf("parse catalog: goal %q references unknown protocol %q", g.Name, id)
			}
			if v < 0 || v > 1 {
				return nil, fmt.Errorf("parse catalog: goal %q alignment for %s outside [0, 1]", g.Name, id)
			}
			t.alignment[id] = v
		}
		c.goals[g.Name] = t
	}

	for alias, goal := range raw.GoalAliases {
		if _, ok := c.goals[goal]; !ok {
			return nil, fmt.Errorf("parse catalog: alias %q targets unknown goal %q", alias, goal)
		}
		c.goalAliases[strings.ToLower(alias)] = goal
	}

	for _, pair := range raw.Conflicts {
		if len(pair) != 2 {
			return nil, fmt.Errorf("parse catalog: conflict must name two protocols, got %v", pair)
		}
		c.conflicts[conflictKey(pair[0], pair[1])] = true
	}

	for id, targets := range raw.Nutrients {
		if _, ok := c.index[id]; !ok {
			return nil, fmt.Errorf("parse catalog: nutrients for unknown protocol %q", id)
		}
		list := make([]NutrientTarget, 0, len(targets))
		for n, amt := range targets {
			list = append(list, NutrientTarget{Nutrient: n, Amount: amt})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Nutrient < list[j].Nutrient })
		c.nutrients[id] = list
	}

	return c, nil
}

// #endregion parse

// #region accessors

// Version returns the catalog data version.
func (c *Catalog) Version() int { return c.version }

// Len returns the number of protocols.
func (c *Catalog) Len() int { return len(c.protocols) }

// Protocols returns the protocols in catalog order.
func (c *Catalog) Protocols() []Protocol {
	out := make([]Protocol, len(c.protocols))
	copy(out, c.protocols)
	return out
}

// Baseline returns the baseline weight for a protocol.
func (c *Catalog) Baseline(id string) (float64, bool) {
	i, ok := c.index[id]
	if !ok {
		return 0, false
	}
	return c.protocols[i].Baseline, true
}

// Position returns the catalog order of a protocol, used as the ranking tie-break.
func (c *Catalog) Position(id string) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// Baselines returns a fresh protocol -> baseline map. Mutating it never
// affects the catalog.
func (c *Catalog) Baselines() map[string]float64 {
	out := make(map[string]float64, len(c.protocols))
	for _, p := range c.protocols {
		out[p.ID] = p.Baseline
	}
	return out
}

// Route returns the protocols influenced by a signal, or nil for unknown signals.
func (c *Catalog) Route(signal string) []string {
	r, ok := c.routes[signal]
	if !ok {
		return nil
	}
	return append([]string(nil), r...)
}

// Signals returns the routed signal names in configuration order.
func (c *Catalog) Signals() []string {
	return append([]string(nil), c.signals...)
}

// NormalizeGoal maps free-text goal phrasing onto a known goal name. Unknown
// goals are returned lower-cased and trimmed.
func (c *Catalog) NormalizeGoal(raw string) string {
	g := strings.ToLower(strings.TrimSpace(raw))
	if canon, ok := c.goalAliases[g]; ok {
		return canon
	}
	return g
}

// GoalAlignment returns how well a protocol supports a normalized goal. The
// second result is false when the goal is not in the table.
func (c *Catalog) GoalAlignment(goal, protocol string) (float64, bool) {
	t, ok := c.goals[goal]
	if !ok {
		return 0, false
	}
	if v, ok := t.alignment[protocol]; ok {
		return v, true
	}
	return t.def, true
}

// Conflicts reports whether two protocols should not both be pushed at high priority.
func (c *Catalog) Conflicts(a, b string) bool {
	return a != b && c.conflicts[conflictKey(a, b)]
}

// NutrientTargets returns the daily nutrient targets for a protocol, sorted by nutrient.
func (c *Catalog) NutrientTargets(id string) []NutrientTarget {
	return append([]NutrientTarget(nil), c.nutrients[id]...)
}

// #endregion accessors

// #region helpers

// InBounds reports whether w is a finite weight within [MinWeight, MaxWeight].
func InBounds(w float64) bool {
	return !math.IsNaN(w) && w >= MinWeight && w <= MaxWeight
}

// Clamp restricts w to [MinWeight, MaxWeight].
func Clamp(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}

// Topic returns the human phrase a protocol id stands for:
// "blood_sugar_protocol" -> "blood sugar".
func Topic(id string) string {
	return strings.ReplaceAll(strings.TrimSuffix(id, "_protocol"), "_", " ")
}

func conflictKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// #endregion helpers
