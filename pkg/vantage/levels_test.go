package vantage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFromBrightness(t *testing.T) {
	assert.Equal(t, 0.0, LevelFromBrightness(0))
	assert.Equal(t, 100.0, LevelFromBrightness(255))
	assert.InDelta(t, 70.59, LevelFromBrightness(180), 0.01)
	// Out of range input is clamped, not rejected.
	assert.Equal(t, 0.0, LevelFromBrightness(-5))
	assert.Equal(t, 100.0, LevelFromBrightness(300))
}

func TestBrightnessFromLevel(t *testing.T) {
	assert.Equal(t, 0, BrightnessFromLevel(0))
	assert.Equal(t, 255, BrightnessFromLevel(100))
	assert.Equal(t, 128, BrightnessFromLevel(50))
	assert.Equal(t, 0, BrightnessFromLevel(-1))
	assert.Equal(t, 255, BrightnessFromLevel(150))
}

func TestLevelRoundTripKeepsBrightness(t *testing.T) {
	for _, brightness := range []int{0, 1, 128, 180, 254, 255} {
		assert.Equal(t, brightness, BrightnessFromLevel(LevelFromBrightness(brightness)))
	}
}
