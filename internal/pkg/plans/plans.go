// Package plans holds the static plan catalog used for feature gating.
// Plans are resolved from the Stripe price id on the account's active
// subscription; an unmatched price id is not an error, the account simply
// degrades to the Free plan.
package plans

import (
	"encoding/json"
	"math"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/cornerstone-hq/cornerstone/internal/pkg/env"
)

// FreePlanName is what PlanName reports when no plan matches.
const FreePlanName = "Free"

// Unlimited is the sentinel limit value for features without a cap.
var Unlimited = math.Inf(1)

// Plan is one tier of the catalog. Feature limits are numeric; the JSON
// value "unlimited" maps to the Unlimited sentinel.
type Plan struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	StripePriceID string             `json:"stripe_price_id"`
	Features      map[string]float64 `json:"-"`
}

type planJSON struct {
	ID            string                     `json:"id"`
	Name          string                     `json:"name"`
	StripePriceID string                     `json:"stripe_price_id"`
	Features      map[string]json.RawMessage `json:"features"`
}

type catalogJSON struct {
	Plans []planJSON `json:"plans"`
}

var (
	mu      sync.RWMutex
	catalog []Plan
)

// defaultCatalog mirrors config/plans of the hosted product; a deployment
// overrides it with PLANS_FILE.
var defaultCatalog = []Plan{
	{
		ID:            "starter",
		Name:          "Starter",
		StripePriceID: "price_starter_monthly",
		Features: map[string]float64{
			"members":  3,
			"projects": 1,
		},
	},
	{
		ID:            "growth",
		Name:          "Growth",
		StripePriceID: "price_growth_monthly",
		Features: map[string]float64{
			"members":   25,
			"projects":  10,
			"analytics": 1,
		},
	},
	{
		ID:            "scale",
		Name:          "Scale",
		StripePriceID: "price_scale_monthly",
		Features: map[string]float64{
			"members":    Unlimited,
			"projects":   Unlimited,
			"analytics":  1,
			"audit_logs": 1,
			"sso":        1,
		},
	},
}

// Setup loads the plan catalog. When PLANS_FILE is unset or unreadable the
// compiled-in defaults stay active.
func Setup() {
	path := env.GetEnv("PLANS_FILE", "")
	if path == "" {
		Load(defaultCatalog)
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("[Plans] could not read %s, using defaults: %v", path, err)
		Load(defaultCatalog)
		return
	}

	parsed, err := Parse(raw)
	if err != nil {
		log.Warnf("[Plans] could not parse %s, using defaults: %v", path, err)
		Load(defaultCatalog)
		return
	}
	Load(parsed)
}

// Parse decodes a plan catalog document. Feature values are numbers or the
// string "unlimited".
func Parse(raw []byte) ([]Plan, error) {
	var doc catalogJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	out := make([]Plan, 0, len(doc.Plans))
	for _, p := range doc.Plans {
		plan := Plan{
			ID:            p.ID,
			Name:          p.Name,
			StripePriceID: p.StripePriceID,
			Features:      make(map[string]float64, len(p.Features)),
		}
		for name, v := range p.Features {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				if s == "unlimited" {
					plan.Features[name] = Unlimited
				}
				continue
			}
			var n float64
			if err := json.Unmarshal(v, &n); err == nil {
				plan.Features[name] = n
			}
		}
		out = append(out, plan)
	}
	return out, nil
}

// Load replaces the active catalog.
func Load(plans []Plan) {
	mu.Lock()
	defer mu.Unlock()
	catalog = plans
}

// ByPriceID resolves a Stripe price id to a plan, or nil when unmatched.
func ByPriceID(priceID string) *Plan {
	if priceID == "" {
		return nil
	}
	mu.RLock()
	defer mu.RUnlock()
	for i := range catalog {
		if catalog[i].StripePriceID == priceID {
			p := catalog[i]
			return &p
		}
	}
	return nil
}

// NameForPriceID returns the matched plan name or FreePlanName.
func NameForPriceID(priceID string) string {
	if p := ByPriceID(priceID); p != nil {
		return p.Name
	}
	return FreePlanName
}

// All returns a copy of the active catalog.
func All() []Plan {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// HasFeature reports whether the plan includes the named feature at all.
// A nil plan (Free) has no gated features.
func (p *Plan) HasFeature(feature string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Features[feature]
	return ok
}

// FeatureLimit returns the cap for a feature; Unlimited for uncapped
// features, 0 for features the plan does not include.
func (p *Plan) FeatureLimit(feature string) float64 {
	if p == nil {
		return 0
	}
	limit, ok := p.Features[feature]
	if !ok {
		return 0
	}
	return limit
}
