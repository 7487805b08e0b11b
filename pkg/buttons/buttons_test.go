package buttons

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-firmware/pkg/appconfig"
)

type fakePin struct {
	pressed bool
}

func (p *fakePin) Read() bool { return p.pressed }

type fakeDispatcher struct {
	fired    []string
	defaults int
	active   string
}

func (d *fakeDispatcher) Trigger(name string) {
	d.fired = append(d.fired, name)
	d.active = name
}

func (d *fakeDispatcher) ReturnToDefault() {
	d.defaults++
	d.active = ""
}

func (d *fakeDispatcher) ActiveName() string { return d.active }

func testDoc() *appconfig.Document {
	pin1, pin2 := 17, 27
	return &appconfig.Document{
		Buttons: map[string]appconfig.Button{
			"btn1": {Pin: &pin1, Mode: appconfig.ButtonPress},
			"btn2": {Pin: &pin2, Mode: appconfig.ButtonPress},
		},
		Media: map[string]appconfig.Media{
			"home":  {Mode: appconfig.MediaImageStill, Path: "assets/home.jpg"},
			"promo": {Mode: appconfig.MediaImageStill, Path: "assets/promo.jpg", Buttons: appconfig.ButtonRef{"btn1"}},
		},
		Actions: map[string]appconfig.Action{
			"update": {Mode: appconfig.ActionUSBUpdate, Buttons: appconfig.ButtonRef{"btn1", "btn2"}, HoldTime: 2},
		},
		Settings: appconfig.Settings{DefaultMediaName: "home", DebounceTime: 0.1},
	}
}

func newTestMonitor(t *testing.T) (*Monitor, map[string]*fakePin, *fakeDispatcher) {
	t.Helper()
	pins := map[string]*fakePin{"btn1": {}, "btn2": {}}
	readers := map[string]PinReader{"btn1": pins["btn1"], "btn2": pins["btn2"]}
	dispatcher := &fakeDispatcher{}
	m := New(testDoc(), readers, dispatcher)
	require.Len(t, m.singles, 1)
	require.Len(t, m.combos, 1)
	return m, pins, dispatcher
}

func TestSinglePressFiresEntry(t *testing.T) {
	m, pins, d := newTestMonitor(t)
	now := time.Now()

	pins["btn1"].pressed = true
	m.tick(now)

	assert.Equal(t, []string{"promo"}, d.fired)
}

func TestSinglePressOnlyOnEdge(t *testing.T) {
	m, pins, d := newTestMonitor(t)
	now := time.Now()

	pins["btn1"].pressed = true
	m.tick(now)
	m.tick(now.Add(time.Second)) // still held, no new edge

	assert.Equal(t, []string{"promo"}, d.fired)
}

func TestRePressReturnsToDefault(t *testing.T) {
	m, pins, d := newTestMonitor(t)
	now := time.Now()

	pins["btn1"].pressed = true
	m.tick(now)
	pins["btn1"].pressed = false
	m.tick(now.Add(time.Second))
	pins["btn1"].pressed = true
	m.tick(now.Add(2 * time.Second))

	assert.Equal(t, []string{"promo"}, d.fired)
	assert.Equal(t, 1, d.defaults)
}

func TestComboFiresAfterHold(t *testing.T) {
	m, pins, d := newTestMonitor(t)
	now := time.Now()

	pins["btn1"].pressed = true
	pins["btn2"].pressed = true
	m.tick(now) // combo candidate forms, nothing fires
	assert.Empty(t, d.fired)

	m.tick(now.Add(time.Second)) // hold time (2s) not reached
	assert.Empty(t, d.fired)

	m.tick(now.Add(2100 * time.Millisecond))
	assert.Equal(t, []string{"update"}, d.fired)

	// Continuing to hold does not re-fire.
	m.tick(now.Add(3 * time.Second))
	assert.Equal(t, []string{"update"}, d.fired)
}

func TestComboSuppressesSinglePress(t *testing.T) {
	m, pins, d := newTestMonitor(t)
	now := time.Now()

	// Both buttons down in the same cycle: neither single fires.
	pins["btn1"].pressed = true
	pins["btn2"].pressed = true
	m.tick(now)
	assert.Empty(t, d.fired)
}

func TestComboRearmsAfterRelease(t *testing.T) {
	m, pins, d := newTestMonitor(t)
	now := time.Now()

	pins["btn1"].pressed = true
	pins["btn2"].pressed = true
	m.tick(now)
	m.tick(now.Add(2100 * time.Millisecond))
	require.Equal(t, []string{"update"}, d.fired)

	pins["btn1"].pressed = false
	pins["btn2"].pressed = false
	m.tick(now.Add(3 * time.Second))

	pins["btn1"].pressed = true
	pins["btn2"].pressed = true
	m.tick(now.Add(4 * time.Second))
	m.tick(now.Add(6100 * time.Millisecond))
	assert.Equal(t, []string{"update", "update"}, d.fired)
}

func TestShortPressDoesNotStickPressed(t *testing.T) {
	m, pins, d := newTestMonitor(t)
	now := time.Now()

	pins["btn1"].pressed = true
	m.tick(now)
	require.Equal(t, []string{"promo"}, d.fired)

	// Release inside the debounce window, then keep polling well past it.
	pins["btn1"].pressed = false
	m.tick(now.Add(10 * time.Millisecond))
	m.tick(now.Add(5 * time.Second))
	assert.False(t, m.states["btn1"].pressed, "released button must not stay tracked as pressed")

	// The next physical press still lands: promo is active, so it returns
	// the screen to the default media.
	pins["btn1"].pressed = true
	m.tick(now.Add(6 * time.Second))
	assert.Equal(t, 1, d.defaults)
}

func TestDebounceIgnoresChatter(t *testing.T) {
	m, pins, d := newTestMonitor(t)
	now := time.Now()

	pins["btn1"].pressed = true
	m.tick(now)
	require.Equal(t, []string{"promo"}, d.fired)

	// Bounce within the debounce window: release and press again quickly.
	pins["btn1"].pressed = false
	m.tick(now.Add(10 * time.Millisecond))
	pins["btn1"].pressed = true
	m.tick(now.Add(20 * time.Millisecond))

	assert.Equal(t, []string{"promo"}, d.fired, "chatter must not re-fire the entry")
}
