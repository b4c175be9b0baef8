package light

import (
	"math"
	"strconv"
)

// HS is a hue (0-360) and saturation (0-100) pair.
type HS struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
}

// HSToRGB converts a full-value hue/saturation color to 0-255 channels.
// Channels are truncated, not rounded.
func HSToRGB(c HS) (r, g, b int) {
	rf, gf, bf := hsvToRGB(c.Hue/360.0, c.Saturation/100.0, 1.0)
	return int(rf * 255), int(gf * 255), int(bf * 255)
}

// RGBToHS converts 0-255 channels to hue/saturation, dropping the value
// component. Both parts are rounded to three decimals.
func RGBToHS(r, g, b int) HS {
	h, s, _ := rgbToHSV(float64(r)/255.0, float64(g)/255.0, float64(b)/255.0)
	return HS{Hue: round3(h * 360), Saturation: round3(s * 100)}
}

// hsvToRGB works on the unit cube with the six-sector p/q/t formula. The
// order of operations decides which side of an integer the channels land
// on after truncation, so it must not be rearranged.
func hsvToRGB(h, s, v float64) (r, g, b float64) {
	if s == 0 {
		return v, v, v
	}
	i := math.Trunc(h * 6.0)
	f := h*6.0 - i
	p := v * (1.0 - s)
	q := v * (1.0 - s*f)
	t := v * (1.0 - s*(1.0-f))

	sector := int(i) % 6
	if sector < 0 {
		sector += 6
	}
	switch sector {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

// rgbToHSV returns hue as a fraction of a turn in [0, 1).
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	maxc := math.Max(r, math.Max(g, b))
	minc := math.Min(r, math.Min(g, b))
	v = maxc
	if minc == maxc {
		return 0, 0, v
	}
	rangec := maxc - minc
	s = rangec / maxc
	rc := (maxc - r) / rangec
	gc := (maxc - g) / rangec
	bc := (maxc - b) / rangec
	switch maxc {
	case r:
		h = bc - gc
	case g:
		h = 2.0 + rc - bc
	default:
		h = 4.0 + gc - rc
	}
	h = math.Mod(h/6.0, 1.0)
	if h < 0 {
		h += 1.0
	}
	return h, s, v
}

// round3 rounds the exact binary value to three decimals, ties to even.
func round3(v float64) float64 {
	out, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	return out
}
