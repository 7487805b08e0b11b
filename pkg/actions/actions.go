package actions

import (
	"log"
	"sync"

	"kiosk-firmware/pkg/appconfig"
	"kiosk-firmware/pkg/display"
	"kiosk-firmware/pkg/hdmi"
	"kiosk-firmware/pkg/updater"
)

// Handler maps fired config entries to their effect: media entries go to the
// display, action entries to the subsystem their mode names.
type Handler struct {
	mu      sync.Mutex
	current string
}

var instance *Handler
var once sync.Once

func Init() {
	once.Do(func() { instance = &Handler{} })
}

func Get() *Handler {
	if instance == nil {
		panic("actions not initialized - call Init() first")
	}
	return instance
}

// Trigger fires the named media or action entry.
func (h *Handler) Trigger(name string) {
	doc := appconfig.Get().Current()

	if m, ok := doc.Media[name]; ok {
		h.showMedia(name, m, doc.Settings)
		return
	}

	a, ok := doc.Actions[name]
	if !ok {
		log.Printf("[actions] Unknown entry %q", name)
		return
	}

	h.mu.Lock()
	h.current = name
	h.mu.Unlock()

	switch a.Mode {
	case appconfig.ActionHDMIControl:
		log.Printf("[actions] Toggling HDMI output")
		hdmi.Get().Toggle()
	case appconfig.ActionLoadConfig:
		log.Printf("[actions] Reloading configuration")
		if err := appconfig.Get().Reload(); err != nil {
			log.Printf("[actions] Reload failed, keeping previous config: %v", err)
			display.Get().DisplayStatus("Config reload failed, previous config kept.")
			return
		}
		display.Get().DisplayStatus("Configuration reloaded.")
		h.ShowDefault()
	case appconfig.ActionUSBUpdate:
		log.Printf("[actions] USB update requested")
		updater.Get().RequestUpdate()
	}
}

// ActiveName reports the entry currently in effect. A second press of the
// same button returns the screen to the default media.
func (h *Handler) ActiveName() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// ReturnToDefault puts the default media back on screen.
func (h *Handler) ReturnToDefault() {
	doc := appconfig.Get().Current()
	name := doc.Settings.DefaultMediaName
	if m, ok := doc.Media[name]; ok {
		h.showMedia(name, m, doc.Settings)
		return
	}
	h.StopCurrent()
}

// ShowDefault displays the configured default media.
func (h *Handler) ShowDefault() {
	h.ReturnToDefault()
}

// StopCurrent clears the screen and the active entry.
func (h *Handler) StopCurrent() {
	display.Get().Stop()
	h.mu.Lock()
	h.current = ""
	h.mu.Unlock()
}

func (h *Handler) showMedia(name string, m appconfig.Media, s appconfig.Settings) {
	if err := display.Get().ShowMedia(name, m, s); err != nil {
		log.Printf("[actions] Failed to show %s: %v", name, err)
		return
	}
	h.mu.Lock()
	h.current = name
	h.mu.Unlock()
}
