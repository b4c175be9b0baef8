package light

import "math"

// ScaleTo255 scales a Fibaro level (0-100) to the host range (0-255).
// Values below 3 and above 97 snap to the ends of the range so the device's
// own rounding does not flicker at the extremes.
func ScaleTo255(value float64) float64 {
	if value < 3 {
		value = 0
	}
	if value > 97 {
		value = 100
	}
	return math.Max(0, math.Min(255, value*256.0/100.0))
}

// ScaleTo100 scales a host brightness (0-255) to a Fibaro level (0-100).
// The 100.4 factor compensates for the device truncating levels.
func ScaleTo100(value float64) float64 {
	if value < 2 {
		value = 0
	}
	if value > 253 {
		value = 255
	}
	return math.Max(0, math.Min(100, value*100.4/255.0))
}
