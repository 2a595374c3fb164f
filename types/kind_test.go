package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindCacheKey(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		subject int64
		key     string
	}{
		{"currency", KindCurrency, 42, "currency:42:balance"},
		{"experience", KindExperience, 42, "levels:42:experience"},
		{"negative id", KindCurrency, -7, "currency:-7:balance"},
		{"large id", KindExperience, 846581716104577024, "levels:846581716104577024:experience"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.kind.CacheKey(tt.subject))
		})
	}
}

func TestKindProperties(t *testing.T) {
	assert.True(t, KindCurrency.Valid())
	assert.True(t, KindExperience.Valid())
	assert.False(t, Kind("karma").Valid())

	assert.False(t, KindCurrency.ClampOnRemove())
	assert.True(t, KindExperience.ClampOnRemove())

	assert.Equal(t, "balance", KindCurrency.Field())
	assert.Equal(t, "experience", KindExperience.Field())
}
