package light

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Device is the vendor-side handle of a single Fibaro device.
type Device interface {
	ID() int
	Name() string
	HasInterface(name string) bool
	HasAction(name string) bool
	// Property returns the raw property value and whether it exists.
	Property(name string) (string, bool)
	// Refresh polls the controller for fresh properties.
	Refresh(ctx context.Context) error
	Action(ctx context.Context, name string, args ...any) error
}

// Features is the set of capabilities of a light, fixed at construction.
type Features int

const (
	SupportBrightness Features = 1 << 0
	SupportColor      Features = 1 << 4
	SupportWhiteValue Features = 1 << 7
)

func (f Features) Has(flag Features) bool {
	return f&flag != 0
}

func (f Features) String() string {
	var parts []string
	if f.Has(SupportBrightness) {
		parts = append(parts, "brightness")
	}
	if f.Has(SupportColor) {
		parts = append(parts, "color")
	}
	if f.Has(SupportWhiteValue) {
		parts = append(parts, "white")
	}
	if len(parts) == 0 {
		return "onoff"
	}
	return strings.Join(parts, ",")
}

// Device action and property names.
const (
	actionTurnOn   = "turnOn"
	actionTurnOff  = "turnOff"
	actionSetValue = "setValue"
	actionSetColor = "setColor"

	propBrightness   = "brightness"
	propValue        = "value"
	propColor        = "color"
	propLastColorSet = "lastColorSet"
)

// Anything dimmer than this is treated as off.
const minBrightness = 4

// TurnOnOptions carries the optional turn_on attributes. Nil means "not
// supplied".
type TurnOnOptions struct {
	Brightness    *int
	BrightnessPct *int
	WhiteValue    *int
	HSColor       *HS
}

// State is a point-in-time copy of the cached light state.
type State struct {
	EntityID          string   `json:"entity_id"`
	On                bool     `json:"on"`
	Brightness        *int     `json:"brightness,omitempty"`
	HSColor           HS       `json:"hs_color"`
	WhiteValue        int      `json:"white_value"`
	SupportedFeatures Features `json:"supported_features"`
}

// Light adapts a Fibaro device to the generic light entity contract.
type Light struct {
	device   Device
	entityID string
	features Features

	mu             sync.Mutex
	brightness     float64
	brightnessSet  bool
	lastBrightness float64
	color          HS
	white          float64
}

// New inspects the device once and returns a light adapter for it.
func New(device Device, entityID string) *Light {
	var features Features
	if device.HasInterface("levelChange") {
		features |= SupportBrightness
	}
	if _, ok := device.Property(propColor); ok {
		features |= SupportColor
	}
	if device.HasAction("setW") {
		features |= SupportWhiteValue
	}

	return &Light{
		device:   device,
		entityID: entityID,
		features: features,
	}
}

func (l *Light) EntityID() string {
	return l.entityID
}

func (l *Light) Device() Device {
	return l.device
}

func (l *Light) SupportedFeatures() Features {
	return l.features
}

// Brightness returns the cached brightness (0-255) and whether it is known.
func (l *Light) Brightness() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.brightness), l.brightnessSet
}

func (l *Light) HSColor() HS {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

// WhiteValue returns the white channel between 0 and 255.
func (l *Light) WhiteValue() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.white)
}

func (l *Light) LastBrightness() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.lastBrightness)
}

// RestoreLastBrightness seeds the level TurnOn falls back to, e.g. from a
// persisted value after a restart.
func (l *Light) RestoreLastBrightness(v int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastBrightness = math.Max(0, math.Min(255, float64(v)))
}

// IsOn reports the binary state the controller last reported.
func (l *Light) IsOn() bool {
	value, ok := l.device.Property(propValue)
	if !ok {
		return false
	}
	switch value {
	case "false":
		return false
	case "true":
		return true
	}
	level, err := strconv.ParseFloat(value, 64)
	return err == nil && level > 0
}

func (l *Light) Snapshot() State {
	l.mu.Lock()
	s := State{
		EntityID:          l.entityID,
		HSColor:           l.color,
		WhiteValue:        int(l.white),
		SupportedFeatures: l.features,
	}
	if l.brightnessSet {
		b := int(l.brightness)
		s.Brightness = &b
	}
	l.mu.Unlock()

	s.On = l.IsOn()
	return s
}

// TurnOn switches the light on, applying any supplied brightness, white
// value and color.
func (l *Light) TurnOn(ctx context.Context, opts TurnOnOptions) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.features.Has(SupportBrightness) {
		var target *float64
		if opts.BrightnessPct != nil {
			v := ScaleTo255(float64(*opts.BrightnessPct))
			target = &v
		} else if opts.Brightness != nil {
			v := float64(*opts.Brightness)
			target = &v
		}

		switch {
		case target == nil:
			// Restore the last level, or go to full brightness.
			if l.brightness < minBrightness {
				if l.lastBrightness != 0 {
					l.brightness = l.lastBrightness
				} else {
					l.brightness = 255
				}
			}
		case *target < minBrightness:
			l.brightness = 0
			l.brightnessSet = true
			return l.device.Action(ctx, actionTurnOff)
		default:
			l.brightness = *target
		}
		l.brightnessSet = true
	}

	if l.features.Has(SupportColor) {
		if opts.WhiteValue != nil {
			l.white = float64(*opts.WhiteValue)
		}
		if opts.HSColor != nil {
			l.color = *opts.HSColor
		}

		brightness := l.brightness
		if !l.features.Has(SupportBrightness) {
			brightness = 255
		}
		r, g, b := HSToRGB(l.color)
		err := l.setColor(ctx,
			scaleChannel(float64(r), brightness),
			scaleChannel(float64(g), brightness),
			scaleChannel(float64(b), brightness),
			scaleChannel(l.white, brightness))
		if err != nil {
			return err
		}
		if !l.IsOn() {
			return l.setLevel(ctx, int(ScaleTo100(brightness)))
		}
		return nil
	}

	if l.features.Has(SupportBrightness) {
		return l.setLevel(ctx, int(ScaleTo100(l.brightness)))
	}

	return l.device.Action(ctx, actionTurnOn)
}

// TurnOff switches the light off, remembering the current brightness.
func (l *Light) TurnOff(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.features.Has(SupportBrightness) && l.brightness >= minBrightness {
		l.lastBrightness = l.brightness
	}
	l.brightness = 0
	l.brightnessSet = true
	return l.device.Action(ctx, actionTurnOff)
}

// Update refreshes the device and recomputes the cached state from its
// properties. It never writes to the device.
func (l *Light) Update(ctx context.Context) error {
	if err := l.device.Refresh(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.features.Has(SupportBrightness) {
		// Fibaro reports brightness either as "brightness" or as "value".
		raw, ok := l.device.Property(propBrightness)
		name := propBrightness
		if !ok {
			raw, _ = l.device.Property(propValue)
			name = propValue
		}
		level, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return &ParseError{Property: name, Value: raw, Err: err}
		}
		l.brightness = ScaleTo255(level)
		l.brightnessSet = true
	}

	if l.features.Has(SupportColor) {
		rgbw, err := l.readColor()
		if err != nil {
			return err
		}
		if rgbw[0] != 0 || rgbw[1] != 0 || rgbw[2] != 0 {
			l.color = RGBToHS(rgbw[0], rgbw[1], rgbw[2])
		}
		if l.features.Has(SupportWhiteValue) && l.brightnessSet && l.brightness != 0 {
			if len(rgbw) < 4 {
				return &ParseError{Property: propColor, Value: joinInts(rgbw), Err: errMissingWhite}
			}
			l.white = math.Min(255, math.Max(0, float64(rgbw[3])*256.0/l.brightness))
		}
	}

	logrus.WithFields(logrus.Fields{
		"entity":     l.entityID,
		"brightness": int(l.brightness),
		"hs_color":   l.color,
		"white":      int(l.white),
	}).Debug("Updated light")

	return nil
}

// readColor parses the "R,G,B,W" color property. Some devices zero "color"
// while off but keep the last active color in "lastColorSet".
func (l *Light) readColor() ([]int, error) {
	name := propColor
	raw, _ := l.device.Property(propColor)
	if raw == "0,0,0,0" {
		if last, ok := l.device.Property(propLastColorSet); ok {
			raw, name = last, propLastColorSet
		}
	}

	fields := strings.Split(raw, ",")
	if len(fields) > 4 {
		fields = fields[:4]
	}
	values := make([]int, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, &ParseError{Property: name, Value: raw, Err: err}
		}
		values = append(values, v)
	}
	if len(values) < 3 {
		return nil, &ParseError{Property: name, Value: raw, Err: errShortColor}
	}
	return values, nil
}

func (l *Light) setLevel(ctx context.Context, level int) error {
	return l.device.Action(ctx, actionSetValue, level)
}

// setColor sends the four channels, each clamped to 0-255.
func (l *Light) setColor(ctx context.Context, r, g, b, w int) error {
	return l.device.Action(ctx, actionSetColor, clampChannel(r), clampChannel(g), clampChannel(b), clampChannel(w))
}

func clampChannel(v int) int {
	return max(0, min(255, v))
}

// scaleChannel dims a 0-255 channel by brightness, rounding half up.
func scaleChannel(channel, brightness float64) int {
	return int(channel*brightness/255.0 + 0.5)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *Light) String() string {
	return fmt.Sprintf("%s (%d)", l.entityID, l.device.ID())
}
