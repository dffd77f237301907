package prohelper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayPercentCapsUnlimited(t *testing.T) {
	unlimited := LimitItem{IsUnlimited: true, PercentageUsed: 340}
	assert.Equal(t, float64(100), unlimited.DisplayPercent())

	// limited items keep the server value, even above 100
	exceeded := LimitItem{PercentageUsed: 120, Status: LimitExceeded}
	assert.Equal(t, float64(120), exceeded.DisplayPercent())

	regular := LimitItem{PercentageUsed: 40}
	assert.Equal(t, float64(40), regular.DisplayPercent())
}
