package vantage

import "math"

// The controller speaks levels in percent while the MQTT side uses the usual
// 0-255 brightness scale.

// LevelFromBrightness converts a 0-255 brightness into a 0-100 level.
func LevelFromBrightness(brightness int) float64 {
	if brightness < 0 {
		brightness = 0
	} else if brightness > 255 {
		brightness = 255
	}
	return float64(brightness) / 255.0 * 100.0
}

// BrightnessFromLevel converts a 0-100 level into a 0-255 brightness.
func BrightnessFromLevel(level float64) int {
	if level < 0 {
		level = 0
	} else if level > 100 {
		level = 100
	}
	return int(math.Round(level / 100.0 * 255.0))
}
