package fibaro

import (
	"bytes"
	"encoding/json"
)

// Info is the subset of /api/settings/info the client cares about.
type Info struct {
	SerialNumber string `json:"serialNumber"`
	HCName       string `json:"hcName"`
	SoftVersion  string `json:"softVersion"`
}

type Room struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DeviceInfo is a device as returned by /api/devices.
type DeviceInfo struct {
	ID         int            `json:"id"`
	Name       string         `json:"name"`
	RoomID     int            `json:"roomID"`
	Type       string         `json:"type"`
	BaseType   string         `json:"baseType"`
	Enabled    bool           `json:"enabled"`
	Visible    bool           `json:"visible"`
	Interfaces []string       `json:"interfaces"`
	Properties Properties     `json:"properties"`
	Actions    map[string]int `json:"actions"`
}

// Properties holds device properties as strings. The controller mixes JSON
// strings, numbers and booleans for the same property across firmware
// versions, so everything is normalised to its text form.
type Properties map[string]string

func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	props := make(Properties, len(raw))
	for name, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			props[name] = s
			continue
		}
		props[name] = string(bytes.TrimSpace(value))
	}
	*p = props
	return nil
}
