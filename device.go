package main

import (
	"fmt"
	"strings"

	"github.com/iainlane/fiblight/internal/light"
)

// DeviceString renders one line describing a light and its cached state.
func DeviceString(l *light.Light) string {
	var sb strings.Builder
	state := l.Snapshot()

	sb.WriteString(state.EntityID)
	sb.WriteString(fmt.Sprintf(" device=%d name=%q", l.Device().ID(), l.Device().Name()))
	sb.WriteString(" features=")
	sb.WriteString(state.SupportedFeatures.String())
	if state.On {
		sb.WriteString(" state=on")
	} else {
		sb.WriteString(" state=off")
	}
	if state.Brightness != nil {
		sb.WriteString(fmt.Sprintf(" brightness=%d", *state.Brightness))
	}
	if state.SupportedFeatures.Has(light.SupportColor) {
		sb.WriteString(fmt.Sprintf(" hs=%g,%g", state.HSColor.Hue, state.HSColor.Saturation))
	}
	if state.SupportedFeatures.Has(light.SupportWhiteValue) {
		sb.WriteString(fmt.Sprintf(" white=%d", state.WhiteValue))
	}

	return sb.String()
}
