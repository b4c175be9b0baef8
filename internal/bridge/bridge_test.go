package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iainlane/fiblight/internal/light"
	"github.com/iainlane/fiblight/internal/mqtt"
)

type FakeDevice struct {
	mu         sync.Mutex
	id         int
	props      map[string]string
	actions    []string
	RefreshErr error
}

func (f *FakeDevice) ID() int                       { return f.id }
func (f *FakeDevice) Name() string                  { return "fake" }
func (f *FakeDevice) HasInterface(name string) bool { return name == "levelChange" }

func (f *FakeDevice) HasAction(name string) bool {
	switch name {
	case "turnOn", "turnOff", "setValue":
		return true
	}
	return false
}

func (f *FakeDevice) Property(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.props[name]
	return v, ok
}

func (f *FakeDevice) Refresh(ctx context.Context) error {
	return f.RefreshErr
}

func (f *FakeDevice) Action(ctx context.Context, name string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, name)
	return nil
}

func (f *FakeDevice) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

type FakeStore struct {
	mu    sync.Mutex
	last  map[string]int
	saved map[string][2]int
}

func newFakeStore() *FakeStore {
	return &FakeStore{last: map[string]int{}, saved: map[string][2]int{}}
}

func (s *FakeStore) LoadLastBrightness(ctx context.Context, entityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[entityID], nil
}

func (s *FakeStore) SaveState(ctx context.Context, entityID string, lastBrightness, brightness int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[entityID] = [2]int{lastBrightness, brightness}
	return nil
}

func (s *FakeStore) Saved(entityID string) ([2]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.saved[entityID]
	return v, ok
}

type FakePublisher struct {
	mu       sync.Mutex
	messages map[string]string
}

func (p *FakePublisher) Publish(topic string, payload []byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = map[string]string{}
	}
	p.messages[topic] = string(payload)
	return nil
}

func (p *FakePublisher) Message(topic string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[topic]
}

var topics = mqtt.Topics{Prefix: "fiblight"}

func setup(t *testing.T) (*Bridge, *FakeDevice, *FakeDevice, *FakeStore, *FakePublisher) {
	t.Helper()

	hall := &FakeDevice{id: 3, props: map[string]string{"value": "50"}}
	porch := &FakeDevice{id: 9, props: map[string]string{"value": "0"}}
	store := newFakeStore()
	pub := &FakePublisher{}

	b := New(
		[]*light.Light{
			light.New(hall, "light.unknown_hall_3"),
			light.New(porch, "light.garden_porch_9"),
		},
		WithStore(store),
		WithPublisher(pub, topics),
		WithInterval(10*time.Millisecond),
	)
	return b, hall, porch, store, pub
}

func TestLookup(t *testing.T) {
	b, _, _, _, _ := setup(t)

	for _, key := range []string{"light.unknown_hall_3", "unknown_hall_3", "3"} {
		l, err := b.Lookup(key)
		require.NoError(t, err, key)
		require.Equal(t, "light.unknown_hall_3", l.EntityID())
	}

	_, err := b.Lookup("42")
	require.ErrorIs(t, err, ErrUnknownLight)
}

func TestStartRestoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	b, _, porch, store, pub := setup(t)
	store.last["light.garden_porch_9"] = 200

	b.Start(ctx)

	porchLight, err := b.Lookup("9")
	require.NoError(t, err)
	require.Equal(t, 200, porchLight.LastBrightness())

	require.JSONEq(t,
		`{"state":"ON","brightness":128,"hs_color":[0,0],"white_value":0,"supported_features":1}`,
		pub.Message("fiblight/light.unknown_hall_3/state"))
	require.JSONEq(t,
		`{"state":"OFF","brightness":0,"hs_color":[0,0],"white_value":0,"supported_features":1}`,
		pub.Message("fiblight/light.garden_porch_9/state"))

	saved, ok := store.Saved("light.unknown_hall_3")
	require.True(t, ok)
	require.Equal(t, [2]int{0, 128}, saved)

	// Turning the porch on with no level restores the persisted brightness.
	require.NoError(t, b.HandleCommand(ctx, "light.garden_porch_9", mqtt.Command{On: true}))
	brightness, _ := porchLight.Brightness()
	require.Equal(t, 200, brightness)
	require.Equal(t, []string{"setValue"}, porch.Actions())
}

func TestPollOnceCountsFailures(t *testing.T) {
	b, hall, _, store, _ := setup(t)
	hall.RefreshErr = errors.New("controller timeout")

	require.Equal(t, 1, b.PollOnce(context.Background()))

	_, ok := store.Saved("light.unknown_hall_3")
	require.False(t, ok)
	_, ok = store.Saved("light.garden_porch_9")
	require.True(t, ok)
}

func TestHandleCommandTurnOffPersistsLastBrightness(t *testing.T) {
	ctx := context.Background()
	b, hall, _, store, _ := setup(t)
	b.Start(ctx)

	require.NoError(t, b.HandleCommand(ctx, "unknown_hall_3", mqtt.Command{On: false}))
	require.Equal(t, []string{"turnOff"}, hall.Actions())

	saved, _ := store.Saved("light.unknown_hall_3")
	require.Equal(t, [2]int{128, 0}, saved)

	require.ErrorIs(t, b.HandleCommand(ctx, "light.nope_1", mqtt.Command{On: true}), ErrUnknownLight)
}

func TestMessageHandler(t *testing.T) {
	ctx := context.Background()
	b, hall, _, _, _ := setup(t)
	handler := b.MessageHandler(ctx)

	require.NoError(t, handler("fiblight/light.unknown_hall_3/set", []byte(`{"state":"ON","brightness":2}`)))
	require.Equal(t, []string{"turnOff"}, hall.Actions())

	require.ErrorIs(t, handler("fiblight/light.unknown_hall_3/set", []byte(`{"state":"BLINK"}`)), mqtt.ErrInvalidCommand)
	require.ErrorIs(t, handler("fiblight/status", []byte(`{}`)), ErrUnknownLight)
}

func TestRunStopsOnCancel(t *testing.T) {
	b, _, _, _, pub := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		return pub.Message("fiblight/light.unknown_hall_3/state") != ""
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
