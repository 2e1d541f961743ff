package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierValidate(t *testing.T) {
	tests := []struct {
		name    string
		tier    Tier
		wantErr string
	}{
		{"valid", Tier{Name: "pro", MaxPerMinute: 10, MaxPerHour: 100}, ""},
		{"valid with punctuation", Tier{Name: "pro_v2-beta", MaxPerMinute: 10, MaxPerHour: 100}, ""},
		{"empty name", Tier{MaxPerMinute: 10, MaxPerHour: 100}, "tier name cannot be empty"},
		{"upper case name", Tier{Name: "Pro", MaxPerMinute: 10, MaxPerHour: 100}, "invalid tier name"},
		{"leading dash", Tier{Name: "-pro", MaxPerMinute: 10, MaxPerHour: 100}, "invalid tier name"},
		{"zero minute limit", Tier{Name: "pro", MaxPerMinute: 0, MaxPerHour: 100}, "max per minute must be positive"},
		{"zero hour limit", Tier{Name: "pro", MaxPerMinute: 10, MaxPerHour: 0}, "max per hour must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tier.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestTierNormalize(t *testing.T) {
	tier := Tier{Name: "  Pro "}
	tier.Normalize()
	assert.Equal(t, "pro", tier.Name)
}

func TestOverrideValidate(t *testing.T) {
	assert.NoError(t, (&Override{Identity: "client-1", Tier: "pro"}).Validate())
	assert.Error(t, (&Override{Tier: "pro"}).Validate())
	assert.Error(t, (&Override{Identity: "client-1"}).Validate())
	assert.Error(t, (&Override{Identity: "   ", Tier: "pro"}).Validate())
}
