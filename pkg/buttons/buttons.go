package buttons

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"kiosk-firmware/pkg/appconfig"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PinReader reads one button input. True means pressed. Production pins are
// periph GPIOs with pull-ups (pressed pulls the line low); tests inject fakes.
type PinReader interface {
	Read() bool
}

type periphPin struct {
	pin gpio.PinIO
}

func (p periphPin) Read() bool {
	return p.pin.Read() == gpio.Low
}

// Dispatcher receives the entries the monitor fires. *actions.Handler is the
// production implementation.
type Dispatcher interface {
	Trigger(name string)
	ReturnToDefault()
	ActiveName() string
}

// entry is a media or action config entry with at least one button bound.
type entry struct {
	name    string
	buttons map[string]bool
	hold    time.Duration
}

type buttonState struct {
	pressed    bool
	lastChange time.Time
}

// Monitor polls the configured buttons, debounces them, and fires single
// presses and held combinations.
type Monitor struct {
	pins       map[string]PinReader
	dispatcher Dispatcher

	poll     time.Duration
	debounce time.Duration

	singles map[string]string // button name -> entry name
	combos  []entry           // sorted by name, stable match order

	states map[string]*buttonState

	comboCandidate string
	comboStart     time.Time
	firedCombo     string

	stop chan struct{}
	wg   sync.WaitGroup
}

var instance *Monitor
var once sync.Once

// Init resolves the configured pins through periph and builds the monitor.
func Init(doc *appconfig.Document, dispatcher Dispatcher) error {
	var err error
	once.Do(func() {
		if _, herr := host.Init(); herr != nil {
			err = fmt.Errorf("failed to initialize GPIO host: %w", herr)
			return
		}
		pins := make(map[string]PinReader, len(doc.Buttons))
		for name, btn := range doc.Buttons {
			p := gpioreg.ByName(fmt.Sprintf("GPIO%d", *btn.Pin))
			if p == nil {
				err = fmt.Errorf("button %s: no GPIO%d on this board", name, *btn.Pin)
				return
			}
			if perr := p.In(gpio.PullUp, gpio.NoEdge); perr != nil {
				err = fmt.Errorf("button %s: configure GPIO%d: %w", name, *btn.Pin, perr)
				return
			}
			pins[name] = periphPin{pin: p}
		}
		instance = New(doc, pins, dispatcher)
	})
	return err
}

func Get() *Monitor {
	if instance == nil {
		panic("buttons not initialized - call Init() first")
	}
	return instance
}

func New(doc *appconfig.Document, pins map[string]PinReader, dispatcher Dispatcher) *Monitor {
	m := &Monitor{
		pins:       pins,
		dispatcher: dispatcher,
		poll:       secs(doc.Settings.Poll()),
		debounce:   secs(doc.Settings.Debounce()),
		singles:    make(map[string]string),
		states:     make(map[string]*buttonState),
		stop:       make(chan struct{}),
	}
	for name := range pins {
		m.states[name] = &buttonState{}
	}

	defaultHold := secs(doc.Settings.ComboHold())
	add := func(name string, refs appconfig.ButtonRef, holdTime float64) {
		if len(refs) == 0 {
			return
		}
		if len(refs) == 1 {
			m.singles[refs[0]] = name
			return
		}
		hold := defaultHold
		if holdTime > 0 {
			hold = secs(holdTime)
		}
		set := make(map[string]bool, len(refs))
		for _, b := range refs {
			set[b] = true
		}
		m.combos = append(m.combos, entry{name: name, buttons: set, hold: hold})
	}
	for name, md := range doc.Media {
		add(name, md.Buttons, md.HoldTime)
	}
	for name, a := range doc.Actions {
		add(name, a.Buttons, a.HoldTime)
	}
	sort.Slice(m.combos, func(i, j int) bool { return m.combos[i].name < m.combos[j].name })

	log.Printf("[buttons] Monitor ready: %d buttons, %d single bindings, %d combos",
		len(pins), len(m.singles), len(m.combos))
	return m
}

// Start launches the polling loop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.poll)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case now := <-ticker.C:
				m.tick(now)
			}
		}
	}()
}

// Stop ends the polling loop and waits for it.
func (m *Monitor) Stop() {
	close(m.stop)
	m.wg.Wait()
}

// tick is one poll cycle: sample, debounce, then fire combos before singles
// so a forming combination never triggers its member buttons individually.
func (m *Monitor) tick(now time.Time) {
	pressed := make(map[string]bool)
	var newlyPressed []string

	for _, name := range sortedPins(m.pins) {
		st := m.states[name]
		raw := m.pins[name].Read()
		// Releases take effect immediately; only press edges are debounce-gated.
		if !raw && st.pressed {
			st.pressed = false
			st.lastChange = now
		} else if raw && !st.pressed && now.Sub(st.lastChange) >= m.debounce {
			st.pressed = true
			st.lastChange = now
			newlyPressed = append(newlyPressed, name)
		}
		if st.pressed {
			pressed[name] = true
		}
	}

	if fired := m.checkCombos(pressed, now); fired {
		return
	}

	if len(newlyPressed) != 1 || len(pressed) != 1 {
		return
	}
	name := newlyPressed[0]
	entryName, ok := m.singles[name]
	if !ok {
		return
	}
	if entryName == m.dispatcher.ActiveName() {
		log.Printf("[buttons] Re-press of active entry %s, returning to default", entryName)
		m.dispatcher.ReturnToDefault()
		return
	}
	log.Printf("[buttons] Button %s fires %s", name, entryName)
	m.dispatcher.Trigger(entryName)
}

func (m *Monitor) checkCombos(pressed map[string]bool, now time.Time) bool {
	if len(pressed) == 0 {
		m.comboCandidate = ""
		m.firedCombo = ""
		return false
	}

	for _, c := range m.combos {
		if !sameSet(pressed, c.buttons) {
			continue
		}
		if m.comboCandidate != c.name {
			m.comboCandidate = c.name
			m.comboStart = now
			return false
		}
		if now.Sub(m.comboStart) < c.hold {
			return false
		}
		if m.firedCombo == c.name {
			return false
		}
		log.Printf("[buttons] Combination %s activated after %s hold", c.name, c.hold)
		m.firedCombo = c.name
		m.dispatcher.Trigger(c.name)
		return true
	}

	m.comboCandidate = ""
	return false
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedPins(pins map[string]PinReader) []string {
	names := make([]string, 0, len(pins))
	for name := range pins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
