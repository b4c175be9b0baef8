package fibaro

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// lightTypes are device types treated as lights even without the isLight
// property. Matched against both type and baseType.
var lightTypes = map[string]bool{
	"com.fibaro.FGD212":          true,
	"com.fibaro.FGRGBW441M":      true,
	"com.fibaro.FGRGBW442CC":     true,
	"com.fibaro.colorController": true,
	"com.fibaro.dimmer":          true,
}

// Light is a discovered light device together with its host identifiers.
type Light struct {
	Device *Device
	Room   string
	// HAID is "<room>_<name>_<id>", slugified.
	HAID string
}

func (l Light) EntityID() string {
	return "light." + l.HAID
}

// IsLight reports whether a device should be exposed as a light.
func IsLight(info DeviceInfo) bool {
	if info.Properties["isLight"] == "true" {
		return true
	}
	return lightTypes[info.Type] || lightTypes[info.BaseType]
}

// Lights lists the enabled, visible light devices known to the controller,
// ordered by device id.
func Lights(ctx context.Context, client *Client) ([]Light, error) {
	rooms, err := client.Rooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	roomNames := make(map[int]string, len(rooms))
	for _, room := range rooms {
		roomNames[room.ID] = room.Name
	}

	devices, err := client.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var lights []Light
	for _, info := range devices {
		if !info.Enabled || !info.Visible || !IsLight(info) {
			continue
		}

		room, ok := roomNames[info.RoomID]
		if !ok || info.RoomID == 0 {
			room = "Unknown"
		}
		lights = append(lights, Light{
			Device: NewDevice(client, info),
			Room:   room,
			HAID:   HAID(room, info.Name, info.ID),
		})
	}

	sort.Slice(lights, func(i, j int) bool {
		return lights[i].Device.ID() < lights[j].Device.ID()
	})
	return lights, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// HAID builds the host-side identifier of a device.
func HAID(room, name string, id int) string {
	return fmt.Sprintf("%s_%s_%d", slugify(room), slugify(name), id)
}
