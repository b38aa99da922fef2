package plans

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	raw := []byte(`{
		"plans": [
			{
				"id": "growth",
				"name": "Growth",
				"stripe_price_id": "price_123",
				"features": {"members": 25, "projects": "unlimited", "bogus": true}
			}
		]
	}`)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, parsed, 1)

	p := parsed[0]
	assert.Equal(t, "Growth", p.Name)
	assert.Equal(t, float64(25), p.Features["members"])
	assert.True(t, math.IsInf(p.Features["projects"], 1))

	// Unparseable feature values are dropped, not zeroed.
	_, ok := p.Features["bogus"]
	assert.False(t, ok)
}

func TestByPriceID(t *testing.T) {
	Load([]Plan{
		{ID: "growth", Name: "Growth", StripePriceID: "price_123", Features: map[string]float64{"members": 25}},
	})
	defer Load(nil)

	require.NotNil(t, ByPriceID("price_123"))
	assert.Nil(t, ByPriceID("price_unknown"))
	assert.Nil(t, ByPriceID(""))

	assert.Equal(t, "Growth", NameForPriceID("price_123"))
	assert.Equal(t, FreePlanName, NameForPriceID("price_unknown"))
}

func TestFeatureLimit(t *testing.T) {
	p := &Plan{Features: map[string]float64{"members": 3, "projects": Unlimited}}

	assert.Equal(t, float64(3), p.FeatureLimit("members"))
	assert.True(t, math.IsInf(p.FeatureLimit("projects"), 1))
	assert.Equal(t, float64(0), p.FeatureLimit("sso"))
	assert.True(t, p.HasFeature("members"))
	assert.False(t, p.HasFeature("sso"))

	var nilPlan *Plan
	assert.False(t, nilPlan.HasFeature("members"))
	assert.Equal(t, float64(0), nilPlan.FeatureLimit("members"))
}
