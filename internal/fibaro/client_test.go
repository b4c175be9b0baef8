package fibaro

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedAction struct {
	DeviceID int
	Name     string
	Args     []any
}

// FakeController is a minimal Home Center REST API.
type FakeController struct {
	mu      sync.Mutex
	rooms   []Room
	devices map[int]string
	actions []recordedAction
	status  int
}

func newFakeController(t *testing.T) (*FakeController, *Client) {
	t.Helper()

	fc := &FakeController{devices: map[int]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/settings/info", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"serialNumber":"HC2-012345","hcName":"HC2","softVersion":"4.600"}`)
	})
	mux.HandleFunc("/api/rooms", func(w http.ResponseWriter, r *http.Request) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		_ = json.NewEncoder(w).Encode(fc.rooms)
	})
	mux.HandleFunc("/api/devices", func(w http.ResponseWriter, r *http.Request) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		ids := make([]int, 0, len(fc.devices))
		for id := range fc.devices {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		bodies := make([]string, len(ids))
		for i, id := range ids {
			bodies[i] = fc.devices[id]
		}
		fmt.Fprintf(w, "[%s]", strings.Join(bodies, ","))
	})
	mux.HandleFunc("/api/devices/", func(w http.ResponseWriter, r *http.Request) {
		fc.mu.Lock()
		defer fc.mu.Unlock()

		if fc.status != 0 {
			w.WriteHeader(fc.status)
			fmt.Fprint(w, `{"type":"ERROR","reason":"nope"}`)
			return
		}

		var id int
		var action string
		if n, _ := fmt.Sscanf(r.URL.Path, "/api/devices/%d/action/%s", &id, &action); n == 2 {
			var body struct {
				Args []any `json:"args"`
			}
			if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&body) != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			fc.actions = append(fc.actions, recordedAction{DeviceID: id, Name: action, Args: body.Args})
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, `{"endTimestampMillis":0,"message":"Accepted","result":{}}`)
			return
		}

		if _, err := fmt.Sscanf(r.URL.Path, "/api/devices/%d", &id); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, ok := fc.devices[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body)
	})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return fc, NewClient(server.URL+"/", "admin", "secret", server.Client())
}

func (fc *FakeController) setDevice(id int, body string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.devices[id] = body
}

func (fc *FakeController) setRooms(rooms ...Room) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.rooms = rooms
}

func (fc *FakeController) failWith(status int) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.status = status
}

func (fc *FakeController) Actions() []recordedAction {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]recordedAction(nil), fc.actions...)
}

const rgbwDevice = `{
	"id": 7,
	"name": "Kitchen Strip",
	"roomID": 2,
	"type": "com.fibaro.FGRGBW441M",
	"baseType": "com.fibaro.colorController",
	"enabled": true,
	"visible": true,
	"interfaces": ["levelChange", "colorChange"],
	"properties": {"value": "0", "color": "0,0,0,0", "lastColorSet": "255,0,0,0", "dead": false, "energy": 1.5},
	"actions": {"turnOn": 0, "turnOff": 0, "setValue": 1, "setColor": 4, "setW": 1}
}`

func TestClientInfo(t *testing.T) {
	_, client := newFakeController(t)

	info, err := client.Info(context.Background())
	require.NoError(t, err)
	require.Equal(t, "HC2-012345", info.SerialNumber)
	require.Equal(t, "4.600", info.SoftVersion)
}

func TestClientUnauthorized(t *testing.T) {
	_, client := newFakeController(t)
	client.password = "wrong"

	_, err := client.Info(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClientDevice(t *testing.T) {
	fc, client := newFakeController(t)
	fc.setDevice(7, rgbwDevice)

	device, err := client.Device(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "Kitchen Strip", device.Name)
	require.Equal(t, Properties{
		"value":        "0",
		"color":        "0,0,0,0",
		"lastColorSet": "255,0,0,0",
		"dead":         "false",
		"energy":       "1.5",
	}, device.Properties)
	require.Contains(t, device.Actions, "setW")

	_, err = client.Device(context.Background(), 99)
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestClientCallAction(t *testing.T) {
	fc, client := newFakeController(t)

	require.NoError(t, client.CallAction(context.Background(), 7, "setColor", 255, 0, 0, 10))
	require.NoError(t, client.CallAction(context.Background(), 7, "turnOff"))

	require.Equal(t, []recordedAction{
		{DeviceID: 7, Name: "setColor", Args: []any{float64(255), float64(0), float64(0), float64(10)}},
		{DeviceID: 7, Name: "turnOff", Args: []any{}},
	}, fc.Actions())
}

func TestClientServerError(t *testing.T) {
	fc, client := newFakeController(t)
	fc.failWith(http.StatusInternalServerError)

	err := client.CallAction(context.Background(), 7, "turnOn")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Contains(t, apiErr.Body, "nope")
	require.NotErrorIs(t, err, ErrDeviceNotFound)
}

func TestDeviceRefreshAndAction(t *testing.T) {
	ctx := context.Background()
	fc, client := newFakeController(t)
	fc.setDevice(7, rgbwDevice)

	info, err := client.Device(ctx, 7)
	require.NoError(t, err)
	device := NewDevice(client, *info)

	require.True(t, device.HasInterface("levelChange"))
	require.False(t, device.HasInterface("energy"))
	require.True(t, device.HasAction("setW"))

	require.NoError(t, device.Action(ctx, "setValue", 55))
	value, ok := device.Property("value")
	require.True(t, ok)
	require.Equal(t, "55", value)
	_, ok = device.Property("brightness")
	require.False(t, ok)

	require.NoError(t, device.Action(ctx, "setColor", 1, 2, 3, 4))
	color, _ := device.Property("color")
	require.Equal(t, "1,2,3,4", color)

	// Not advertised by the device, so never sent.
	require.NoError(t, device.Action(ctx, "startLevelIncrease"))
	require.Len(t, fc.Actions(), 2)

	require.NoError(t, device.Refresh(ctx))
	value, _ = device.Property("value")
	require.Equal(t, "0", value)
}

func TestDeviceRefreshError(t *testing.T) {
	_, client := newFakeController(t)
	device := NewDevice(client, DeviceInfo{ID: 3})

	require.ErrorIs(t, device.Refresh(context.Background()), ErrDeviceNotFound)
}
