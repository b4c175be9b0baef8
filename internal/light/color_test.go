package light

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHSToRGB(t *testing.T) {
	for _, test := range []struct {
		in      HS
		r, g, b int
	}{
		{in: HS{Hue: 0, Saturation: 100}, r: 255, g: 0, b: 0},
		{in: HS{Hue: 120, Saturation: 100}, r: 0, g: 255, b: 0},
		{in: HS{Hue: 240, Saturation: 100}, r: 0, g: 0, b: 255},
		{in: HS{Hue: 360, Saturation: 100}, r: 255, g: 0, b: 0},
		{in: HS{Hue: 0, Saturation: 50}, r: 255, g: 127, b: 127},
		{in: HS{Hue: 300, Saturation: 0}, r: 255, g: 255, b: 255},
		// Truncation is sensitive to the exact arithmetic in these.
		{in: HS{Hue: 5, Saturation: 80}, r: 255, g: 67, b: 50},
		{in: HS{Hue: 72, Saturation: 100}, r: 203, g: 255, b: 0},
		{in: HS{Hue: 52, Saturation: 100}, r: 255, g: 220, b: 0},
	} {
		r, g, b := HSToRGB(test.in)
		require.Equal(t, []int{test.r, test.g, test.b}, []int{r, g, b}, "HSToRGB(%+v)", test.in)
	}
}

func TestRGBToHS(t *testing.T) {
	for _, test := range []struct {
		r, g, b  int
		expected HS
	}{
		{r: 255, g: 0, b: 0, expected: HS{Hue: 0, Saturation: 100}},
		{r: 120, g: 60, b: 0, expected: HS{Hue: 30, Saturation: 100}},
		{r: 0, g: 0, b: 255, expected: HS{Hue: 240, Saturation: 100}},
		{r: 10, g: 200, b: 30, expected: HS{Hue: 126.316, Saturation: 95}},
		{r: 80, g: 80, b: 80, expected: HS{Hue: 0, Saturation: 0}},
		{r: 93, g: 106, b: 157, expected: HS{Hue: 227.812, Saturation: 40.764}},
	} {
		got := RGBToHS(test.r, test.g, test.b)
		require.InDelta(t, test.expected.Hue, got.Hue, 1e-9, "hue of %d,%d,%d", test.r, test.g, test.b)
		require.InDelta(t, test.expected.Saturation, got.Saturation, 1e-9, "saturation of %d,%d,%d", test.r, test.g, test.b)
	}
}

func TestRound3(t *testing.T) {
	require.Equal(t, 0.124, round3(0.1245))
	require.Equal(t, 1.0, round3(0.9995))
	require.Equal(t, 227.812, round3(227.8125))
	require.Equal(t, 0.0, round3(0))
}
