package billing

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// PlanID identifies a plan in the catalog.
type PlanID string

const (
	PlanFree    PlanID = "free"
	PlanPremium PlanID = "premium"
	PlanPro     PlanID = "pro"
)

// Resource is a countable entity limited by plan.
type Resource string

const (
	ResourceContents    Resource = "contents"
	ResourceTeamMembers Resource = "team_members"
)

// Feature is a capability toggled by plan.
type Feature string

const (
	FeatureAdvancedSearch    Feature = "advanced_search"
	FeatureTeamCollaboration Feature = "team_collaboration"
	FeatureIntegrations      Feature = "integrations"
	FeatureExport            Feature = "export"
	FeaturePrioritySupport   Feature = "priority_support"
)

// Unlimited marks a resource without an upper bound.
const Unlimited int64 = -1

// Plan is a catalog entry. Paid plans carry the provider price they are sold at.
type Plan struct {
	ID        PlanID             `yaml:"id"`
	Name      string             `yaml:"name"`
	PriceID   string             `yaml:"price_id"`   // provider price identifier
	LookupKey string             `yaml:"lookup_key"` // provider lookup key, optional
	Limits    map[Resource]int64 `yaml:"limits"`
	Features  []Feature          `yaml:"features"`
}

// Paid reports whether the plan is sold through the provider.
func (p Plan) Paid() bool {
	return p.PriceID != ""
}

// Catalog is the fixed set of plans known to the application.
type Catalog struct {
	plans   map[PlanID]Plan
	byPrice map[string]PlanID
}

// NewCatalog validates plans and indexes them by id, price id and lookup key.
// The free plan is added when missing.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	c := &Catalog{
		plans:   make(map[PlanID]Plan, len(plans)+1),
		byPrice: make(map[string]PlanID, len(plans)*2),
	}

	for _, p := range plans {
		if p.ID == "" {
			return nil, errors.Join(ErrInvalidCatalog, errors.New("plan id is empty"))
		}
		if _, exists := c.plans[p.ID]; exists {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("duplicate plan %q", p.ID))
		}
		if p.ID == PlanFree && p.Paid() {
			return nil, errors.Join(ErrInvalidCatalog, errors.New("free plan cannot have a price"))
		}
		if p.ID != PlanFree && !p.Paid() {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("plan %q has no price id", p.ID))
		}
		for _, ref := range []string{p.PriceID, p.LookupKey} {
			if ref == "" {
				continue
			}
			if other, taken := c.byPrice[ref]; taken {
				return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("price %q used by %q and %q", ref, other, p.ID))
			}
			c.byPrice[ref] = p.ID
		}
		c.plans[p.ID] = p
	}

	if _, ok := c.plans[PlanFree]; !ok {
		c.plans[PlanFree] = FreePlan()
	}

	return c, nil
}

// FreePlan is the plan every user has without a subscription.
func FreePlan() Plan {
	return Plan{
		ID:   PlanFree,
		Name: "Free",
		Limits: map[Resource]int64{
			ResourceContents:    50,
			ResourceTeamMembers: 1,
		},
	}
}

// DefaultPlans returns the stock free/premium/pro catalog bound to the given prices.
func DefaultPlans(premiumPriceID, proPriceID string) []Plan {
	return []Plan{
		FreePlan(),
		{
			ID:      PlanPremium,
			Name:    "Premium",
			PriceID: premiumPriceID,
			Limits: map[Resource]int64{
				ResourceContents:    Unlimited,
				ResourceTeamMembers: 5,
			},
			Features: []Feature{
				FeatureAdvancedSearch,
				FeatureTeamCollaboration,
				FeatureIntegrations,
				FeatureExport,
				FeaturePrioritySupport,
			},
		},
		{
			ID:      PlanPro,
			Name:    "Pro",
			PriceID: proPriceID,
			Limits: map[Resource]int64{
				ResourceContents:    Unlimited,
				ResourceTeamMembers: Unlimited,
			},
			Features: []Feature{
				FeatureAdvancedSearch,
				FeatureTeamCollaboration,
				FeatureIntegrations,
				FeatureExport,
				FeaturePrioritySupport,
			},
		},
	}
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadCatalog reads a YAML document with a top-level "plans" list.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	return NewCatalog(f.Plans...)
}

// LoadCatalogFile is LoadCatalog over a file path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Plan returns the plan with the given id.
func (c *Catalog) Plan(id PlanID) (Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// Purchasable returns the paid plan with the given id or ErrInvalidPlan.
func (c *Catalog) Purchasable(id PlanID) (Plan, error) {
	p, ok := c.plans[id]
	if !ok || !p.Paid() {
		return Plan{}, ErrInvalidPlan
	}
	return p, nil
}

// ResolvePrice maps the first known provider reference (lookup key or price id) to a plan.
func (c *Catalog) ResolvePrice(refs ...string) (PlanID, bool) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if id, ok := c.byPrice[ref]; ok {
			return id, true
		}
	}
	return "", false
}

// Limit returns the resource limit of a plan. Unknown plans fall back to free.
func (c *Catalog) Limit(id PlanID, res Resource) int64 {
	p, ok := c.plans[id]
	if !ok {
		p = c.plans[PlanFree]
	}
	limit, ok := p.Limits[res]
	if !ok {
		return 0
	}
	return limit
}

// HasFeature reports whether the plan includes the feature. Unknown plans have none.
func (c *Catalog) HasFeature(id PlanID, f Feature) bool {
	p, ok := c.plans[id]
	if !ok {
		return false
	}
	return slices.Contains(p.Features, f)
}

// Plans returns all plans ordered with free first, then by id.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Plan) int {
		switch {
		case a.ID == b.ID:
			return 0
		case a.ID == PlanFree:
			return -1
		case b.ID == PlanFree:
			return 1
		case a.ID < b.ID:
			return -1
		default:
			return 1
		}
	})
	return out
}
