package fibaro

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Device is a live handle to one controller device: the last polled
// snapshot plus the client used to refresh it and send actions.
type Device struct {
	client *Client

	mu   sync.RWMutex
	info DeviceInfo
}

func NewDevice(client *Client, info DeviceInfo) *Device {
	if info.Properties == nil {
		info.Properties = Properties{}
	}
	return &Device{client: client, info: info}
}

func (d *Device) ID() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.info.ID
}

func (d *Device) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.info.Name
}

// Info returns a copy of the last polled snapshot.
func (d *Device) Info() DeviceInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info := d.info
	info.Properties = make(Properties, len(d.info.Properties))
	for k, v := range d.info.Properties {
		info.Properties[k] = v
	}
	return info
}

func (d *Device) HasInterface(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, i := range d.info.Interfaces {
		if i == name {
			return true
		}
	}
	return false
}

func (d *Device) HasAction(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.info.Actions[name]
	return ok
}

func (d *Device) Property(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.info.Properties[name]
	return v, ok
}

// Refresh replaces the snapshot with the controller's current view.
func (d *Device) Refresh(ctx context.Context) error {
	info, err := d.client.Device(ctx, d.ID())
	if err != nil {
		return err
	}
	if info.Properties == nil {
		info.Properties = Properties{}
	}

	d.mu.Lock()
	d.info = *info
	d.mu.Unlock()
	return nil
}

// Action sends an action to the device. Actions the device does not
// advertise are logged and skipped. Successful level and color changes are
// reflected in the local snapshot so state reads do not wait for a poll.
func (d *Device) Action(ctx context.Context, name string, args ...any) error {
	log := logrus.WithFields(logrus.Fields{
		"device": d.ID(),
		"action": name,
		"args":   args,
	})

	if !d.HasAction(name) {
		log.Warn("Action not supported by device")
		return nil
	}

	if err := d.client.CallAction(ctx, d.ID(), name, args...); err != nil {
		return err
	}
	log.Debug("Action called")

	d.mu.Lock()
	defer d.mu.Unlock()
	switch name {
	case "setValue":
		if len(args) > 0 {
			level := fmt.Sprint(args[0])
			if _, ok := d.info.Properties["value"]; ok {
				d.info.Properties["value"] = level
			}
			if _, ok := d.info.Properties["brightness"]; ok {
				d.info.Properties["brightness"] = level
			}
		}
	case "setColor":
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = fmt.Sprint(arg)
		}
		d.info.Properties["color"] = strings.Join(parts, ",")
	}
	return nil
}

func (d *Device) String() string {
	info := d.Info()
	return fmt.Sprintf("%s (%d, %s)", info.Name, info.ID, info.Type)
}
