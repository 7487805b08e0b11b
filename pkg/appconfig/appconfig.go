package appconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"kiosk-firmware/pkg/globals"
)

type ButtonMode string

const (
	ButtonPress  ButtonMode = "press"
	ButtonToggle ButtonMode = "toggle"
)

type MediaMode string

const (
	MediaImageStill MediaMode = "image_still"
	MediaImageFlash MediaMode = "image_flash"
	MediaScrollText MediaMode = "scroll_text"
	MediaSlide      MediaMode = "slide"
)

type ActionMode string

const (
	ActionHDMIControl ActionMode = "hdmi_control"
	ActionLoadConfig  ActionMode = "load_config"
	ActionUSBUpdate   ActionMode = "usb_update"
)

// ButtonRef accepts either a single button name or a list of names in JSON.
// More than one name means the entry fires on a held combination.
type ButtonRef []string

func (r *ButtonRef) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = ButtonRef{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("button reference must be a string or list of strings")
	}
	*r = ButtonRef(list)
	return nil
}

func (r ButtonRef) MarshalJSON() ([]byte, error) {
	if len(r) == 1 {
		return json.Marshal(r[0])
	}
	return json.Marshal([]string(r))
}

type Button struct {
	Pin  *int       `json:"value"`
	Mode ButtonMode `json:"mode"`
}

type Media struct {
	Mode     MediaMode `json:"mode"`
	Path     string    `json:"path"`
	Buttons  ButtonRef `json:"button,omitempty"`
	HoldTime float64   `json:"hold_time,omitempty"`
	Duration float64   `json:"duration,omitempty"`
}

type Action struct {
	Mode     ActionMode `json:"mode"`
	Buttons  ButtonRef  `json:"button,omitempty"`
	HoldTime float64    `json:"hold_time,omitempty"`
}

type Settings struct {
	DebounceTime         float64 `json:"debounce_time,omitempty"`
	PollInterval         float64 `json:"poll_interval,omitempty"`
	DefaultComboHoldTime float64 `json:"default_combo_hold_time,omitempty"`
	DefaultMediaName     string  `json:"default_media_name"`
	ImageFlashDutyCycle  float64 `json:"image_flash_duty_cycle,omitempty"`
	ImageFlashDuration   float64 `json:"image_flash_duration,omitempty"`
	ScrollTextSpeed      int     `json:"scroll_text_speed,omitempty"`
	ScrollTextFontSize   int     `json:"scroll_text_font_size,omitempty"`
	ScrollTextFontColor  string  `json:"scroll_text_font_color,omitempty"`
	ScrollTextBGColor    string  `json:"scroll_text_bg_color,omitempty"`
	SlideDelay           float64 `json:"slide_delay,omitempty"`
}

// Defaults applied where the config leaves a setting unset.
func (s Settings) Debounce() float64 {
	if s.DebounceTime <= 0 {
		return 0.3
	}
	return s.DebounceTime
}

func (s Settings) Poll() float64 {
	if s.PollInterval <= 0 {
		return 0.05
	}
	return s.PollInterval
}

func (s Settings) ComboHold() float64 {
	if s.DefaultComboHoldTime <= 0 {
		return 1.0
	}
	return s.DefaultComboHoldTime
}

func (s Settings) SlideDelaySeconds() float64 {
	if s.SlideDelay <= 0 {
		return 3.0
	}
	return s.SlideDelay
}

// Document is the application configuration: what the buttons are, what each
// media/action entry does, and the flat settings block.
type Document struct {
	Buttons  map[string]Button `json:"buttons"`
	Media    map[string]Media  `json:"media"`
	Actions  map[string]Action `json:"actions"`
	Settings Settings          `json:"settings"`
}

// Parse decodes a document without validating it.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, &SchemaError{Field: "config", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return &doc, nil
}

// Load reads and validates a document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Clone returns an independent deep copy.
func (d *Document) Clone() *Document {
	data, err := json.Marshal(d)
	if err != nil {
		panic(fmt.Sprintf("appconfig: clone marshal: %v", err))
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("appconfig: clone unmarshal: %v", err))
	}
	return &out
}

// Marshal renders the document the way it is stored on disk.
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "    ")
}

// Manager holds the live document and supports atomic reloads.
type Manager struct {
	mu   sync.RWMutex
	path string
	doc  *Document
}

var instance *Manager
var once sync.Once

func Init() error {
	var err error
	once.Do(func() {
		instance = &Manager{path: globals.ConfigPath}
		err = instance.Reload()
	})
	return err
}

func Get() *Manager {
	if instance == nil {
		panic("appconfig not initialized - call Init() first")
	}
	return instance
}

// Current returns the live document. Callers must treat it as read-only;
// anyone needing to mutate takes a Clone first.
func (m *Manager) Current() *Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc
}

// Reload re-reads the document from disk, swapping it in only if valid.
func (m *Manager) Reload() error {
	doc, err := Load(m.path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.doc = doc
	m.mu.Unlock()
	return nil
}

func (m *Manager) Path() string {
	return m.path
}
