package display

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"kiosk-firmware/pkg/appconfig"
	"kiosk-firmware/pkg/globals"
)

// Display renders media and short status text on the attached screen by
// driving external viewers (feh for stills and slideshows, mpv for flashing
// media, osd_cat for text overlays).
type Display struct {
	mu     sync.Mutex
	viewer *exec.Cmd
	name   string
}

var instance *Display
var once sync.Once

func Init() {
	once.Do(func() { instance = &Display{} })
}

func Get() *Display {
	if instance == nil {
		panic("display not initialized - call Init() first")
	}
	return instance
}

// ShowMedia stops whatever is on screen and starts the viewer for the entry.
func (d *Display) ShowMedia(name string, m appconfig.Media, s appconfig.Settings) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopViewerLocked()

	target := m.Path
	if !filepath.IsAbs(target) {
		target = filepath.Join(globals.AppRoot, filepath.FromSlash(m.Path))
	}

	var cmd *exec.Cmd
	switch m.Mode {
	case appconfig.MediaImageStill:
		cmd = exec.Command("feh", "--fullscreen", "--hide-pointer", target)
	case appconfig.MediaImageFlash:
		on := s.ImageFlashDutyCycle * s.ImageFlashDuration
		off := s.ImageFlashDuration - on
		if on <= 0 || off <= 0 {
			cmd = exec.Command("feh", "--fullscreen", "--hide-pointer", target)
			break
		}
		// mpv alternates the image with a black frame to get the blink
		cmd = exec.Command("mpv", "--fs", "--no-osc", "--loop-playlist=inf",
			fmt.Sprintf("--image-display-duration=%.2f", on),
			target,
			fmt.Sprintf("av://lavfi:color=c=black:d=%.2f", off))
	case appconfig.MediaSlide:
		cmd = exec.Command("feh", "--fullscreen", "--hide-pointer", "--recursive",
			fmt.Sprintf("--slideshow-delay=%.1f", s.SlideDelaySeconds()), target)
	case appconfig.MediaScrollText:
		data, err := os.ReadFile(target)
		if err != nil {
			return fmt.Errorf("read scroll text %s: %w", target, err)
		}
		cmd = exec.Command("osd_cat", "--pos=middle", "--align=center", "--lines=1",
			"--delay=0", "--age=0", osdColorArg(s.ScrollTextFontColor))
		cmd.Stdin = strings.NewReader(string(data))
	default:
		return fmt.Errorf("unknown media mode %q", m.Mode)
	}

	cmd.Env = append(os.Environ(), "DISPLAY=:0")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start viewer for %s: %w", name, err)
	}
	d.viewer = cmd
	d.name = name
	go cmd.Wait()

	log.Printf("[display] Showing %s (%s)", name, m.Mode)
	return nil
}

// DisplayStatus renders a short status line on screen, best effort, and
// always logs it. Satisfies the updater's status sink.
func (d *Display) DisplayStatus(message string) {
	log.Printf("[display] %s", message)

	cmd := exec.Command("osd_cat", "--pos=bottom", "--align=center", "--delay=3")
	cmd.Stdin = strings.NewReader(message)
	cmd.Env = append(os.Environ(), "DISPLAY=:0")
	if err := cmd.Start(); err != nil {
		// Headless or osd_cat absent; the log line is enough.
		return
	}
	go cmd.Wait()
}

// Current returns the name of the entry on screen, if any.
func (d *Display) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Stop clears the screen.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopViewerLocked()
}

func (d *Display) stopViewerLocked() {
	if d.viewer != nil && d.viewer.Process != nil {
		d.viewer.Process.Kill()
	}
	d.viewer = nil
	d.name = ""
}

func osdColorArg(color string) string {
	if color == "" {
		color = "white"
	}
	return "--color=" + color
}
