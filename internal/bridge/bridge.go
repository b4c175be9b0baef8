// Package bridge keeps a set of light adapters in sync with the controller:
// it schedules polls, persists remembered brightness and mirrors state and
// commands over MQTT.
package bridge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iainlane/fiblight/internal/light"
	"github.com/iainlane/fiblight/internal/mqtt"
)

// StateStore persists per-light state.
type StateStore interface {
	LoadLastBrightness(ctx context.Context, entityID string) (int, error)
	SaveState(ctx context.Context, entityID string, lastBrightness, brightness int) error
}

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// Option configures a Bridge.
type Option func(*Bridge)

func WithStore(store StateStore) Option {
	return func(b *Bridge) { b.store = store }
}

func WithPublisher(pub Publisher, topics mqtt.Topics) Option {
	return func(b *Bridge) {
		b.pub = pub
		b.topics = topics
	}
}

func WithInterval(interval time.Duration) Option {
	return func(b *Bridge) { b.interval = interval }
}

// Bridge owns the light adapters.
type Bridge struct {
	lights   []*light.Light
	byEntity map[string]*light.Light

	store    StateStore
	pub      Publisher
	topics   mqtt.Topics
	interval time.Duration
}

func New(lights []*light.Light, opts ...Option) *Bridge {
	b := &Bridge{
		lights:   lights,
		byEntity: make(map[string]*light.Light, len(lights)),
		interval: 30 * time.Second,
	}
	for _, l := range lights {
		b.byEntity[l.EntityID()] = l
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Lights() []*light.Light {
	return b.lights
}

// Lookup finds a light by entity id ("light.hall_3"), entity id without the
// domain ("hall_3") or controller device id ("3").
func (b *Bridge) Lookup(key string) (*light.Light, error) {
	if l, ok := b.byEntity[key]; ok {
		return l, nil
	}
	if l, ok := b.byEntity["light."+key]; ok {
		return l, nil
	}
	if id, err := strconv.Atoi(key); err == nil {
		for _, l := range b.lights {
			if l.Device().ID() == id {
				return l, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownLight, key)
}

// Start restores persisted brightness and runs a first update of every light.
// Failing lights are logged and left for the next poll.
func (b *Bridge) Start(ctx context.Context) {
	b.Restore(ctx)
	b.PollOnce(ctx)
}

// Restore seeds every light's remembered brightness from the store.
func (b *Bridge) Restore(ctx context.Context) {
	if b.store == nil {
		return
	}
	for _, l := range b.lights {
		last, err := b.store.LoadLastBrightness(ctx, l.EntityID())
		if err != nil {
			logrus.WithError(err).WithField("entity", l.EntityID()).Warn("Failed to restore last brightness")
			continue
		}
		if last > 0 {
			l.RestoreLastBrightness(last)
		}
	}
}

// Run polls every light on the configured interval until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.PollOnce(ctx)
		}
	}
}

// PollOnce updates all lights concurrently. It returns the number of lights
// that failed to update.
func (b *Bridge) PollOnce(ctx context.Context) int {
	failed := make([]bool, len(b.lights))

	var g errgroup.Group
	for i, l := range b.lights {
		g.Go(func() error {
			if err := l.Update(ctx); err != nil {
				logrus.WithError(err).WithField("entity", l.EntityID()).Warn("Failed to update light")
				failed[i] = true
				return nil
			}
			b.sync(ctx, l)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return n
}

// HandleCommand applies a command to the light with the given entity id.
func (b *Bridge) HandleCommand(ctx context.Context, entityID string, cmd mqtt.Command) error {
	l, err := b.Lookup(entityID)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"entity": l.EntityID(),
		"on":     cmd.On,
	}).Debug("Handling command")

	if cmd.On {
		err = l.TurnOn(ctx, cmd.Options)
	} else {
		err = l.TurnOff(ctx)
	}
	if err != nil {
		return err
	}

	b.sync(ctx, l)
	return nil
}

// MessageHandler adapts HandleCommand to MQTT command topics.
func (b *Bridge) MessageHandler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		entityID, ok := b.topics.EntityFromCommand(topic)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLight, topic)
		}
		cmd, err := mqtt.DecodeCommand(payload)
		if err != nil {
			return err
		}
		return b.HandleCommand(ctx, entityID, cmd)
	}
}

// sync persists and publishes the current state of a light.
func (b *Bridge) sync(ctx context.Context, l *light.Light) {
	state := l.Snapshot()
	log := logrus.WithField("entity", l.EntityID())

	if b.store != nil {
		brightness := 0
		if state.Brightness != nil {
			brightness = *state.Brightness
		}
		if err := b.store.SaveState(ctx, l.EntityID(), l.LastBrightness(), brightness); err != nil {
			log.WithError(err).Warn("Failed to persist light state")
		}
	}

	if b.pub != nil {
		payload, err := mqtt.EncodeState(state)
		if err != nil {
			log.WithError(err).Warn("Failed to encode light state")
			return
		}
		if err := b.pub.Publish(b.topics.State(l.EntityID()), payload, true); err != nil {
			log.WithError(err).Warn("Failed to publish light state")
		}
	}
}
