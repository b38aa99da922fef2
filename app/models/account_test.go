package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountSubscribed(t *testing.T) {
	for status, want := range map[string]bool{
		SubscriptionStatusActive:   true,
		SubscriptionStatusTrialing: true,
		SubscriptionStatusPastDue:  false,
		SubscriptionStatusCanceled: false,
	} {
		a := &Account{SubscriptionStatus: status}
		if a.Subscribed() != want {
			t.Fatalf("Subscribed() with status %q = %v, want %v", status, a.Subscribed(), want)
		}
	}
}

func TestAccountSettingsRoundTrip(t *testing.T) {
	a := &Account{}
	assert.Empty(t, a.Settings())

	require.NoError(t, a.SetSettings(map[string]string{"timezone": "Europe/Berlin"}))
	assert.Equal(t, "Europe/Berlin", a.Settings()["timezone"])

	a.SettingsJSON = "{broken"
	assert.Empty(t, a.Settings())
}
