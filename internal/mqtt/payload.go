package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iainlane/fiblight/internal/light"
)

// StatePayload is the JSON published on a light's state topic.
type StatePayload struct {
	State             string     `json:"state"`
	Brightness        *int       `json:"brightness,omitempty"`
	HSColor           [2]float64 `json:"hs_color"`
	WhiteValue        int        `json:"white_value"`
	SupportedFeatures int        `json:"supported_features"`
}

func EncodeState(s light.State) ([]byte, error) {
	p := StatePayload{
		State:             "OFF",
		Brightness:        s.Brightness,
		HSColor:           [2]float64{s.HSColor.Hue, s.HSColor.Saturation},
		WhiteValue:        s.WhiteValue,
		SupportedFeatures: int(s.SupportedFeatures),
	}
	if s.On {
		p.State = "ON"
	}
	return json.Marshal(p)
}

// Command is a decoded message from a light's command topic.
type Command struct {
	On      bool
	Options light.TurnOnOptions
}

type commandPayload struct {
	State         string     `json:"state"`
	Brightness    *int       `json:"brightness"`
	BrightnessPct *int       `json:"brightness_pct"`
	WhiteValue    *int       `json:"white_value"`
	HSColor       *[]float64 `json:"hs_color"`
}

// DecodeCommand parses a command payload. A missing state with any light
// attribute set means "on".
func DecodeCommand(data []byte) (Command, error) {
	var p commandPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	for _, r := range []struct {
		name     string
		value    *int
		min, max int
	}{
		{"brightness", p.Brightness, 0, 255},
		{"brightness_pct", p.BrightnessPct, 0, 100},
		{"white_value", p.WhiteValue, 0, 255},
	} {
		if r.value != nil && (*r.value < r.min || *r.value > r.max) {
			return Command{}, fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalidCommand, r.name, r.min, r.max, *r.value)
		}
	}

	cmd := Command{
		Options: light.TurnOnOptions{
			Brightness:    p.Brightness,
			BrightnessPct: p.BrightnessPct,
			WhiteValue:    p.WhiteValue,
		},
	}
	if p.HSColor != nil {
		if len(*p.HSColor) != 2 {
			return Command{}, fmt.Errorf("%w: hs_color needs 2 values, got %d", ErrInvalidCommand, len(*p.HSColor))
		}
		hue, sat := (*p.HSColor)[0], (*p.HSColor)[1]
		if hue < 0 || hue > 360 || sat < 0 || sat > 100 {
			return Command{}, fmt.Errorf("%w: hs_color out of range: %v", ErrInvalidCommand, *p.HSColor)
		}
		cmd.Options.HSColor = &light.HS{Hue: (*p.HSColor)[0], Saturation: (*p.HSColor)[1]}
	}

	switch strings.ToUpper(p.State) {
	case "ON":
		cmd.On = true
	case "OFF":
		cmd.On = false
	case "":
		o := cmd.Options
		cmd.On = o.Brightness != nil || o.BrightnessPct != nil || o.WhiteValue != nil || o.HSColor != nil
		if !cmd.On {
			return Command{}, fmt.Errorf("%w: empty command", ErrInvalidCommand)
		}
	default:
		return Command{}, fmt.Errorf("%w: unknown state %q", ErrInvalidCommand, p.State)
	}
	return cmd, nil
}
