package hdmi

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const xrandrTimeout = 5 * time.Second

// Controller drives the HDMI output through xrandr. The on/off state is
// tracked optimistically; xrandr is not queried at startup because X may not
// be ready yet.
type Controller struct {
	mu     sync.Mutex
	output string
	on     bool
}

var instance *Controller
var once sync.Once

func Init() {
	once.Do(func() {
		instance = &Controller{output: "HDMI-1", on: true}
	})
}

func Get() *Controller {
	if instance == nil {
		panic("hdmi not initialized - call Init() first")
	}
	return instance
}

// Toggle flips the output between on and off.
func (c *Controller) Toggle() {
	c.mu.Lock()
	on := c.on
	c.mu.Unlock()

	if on {
		c.Off()
	} else {
		c.On()
	}
}

func (c *Controller) On() error {
	if err := c.runXrandr("--output", c.output, "--auto"); err != nil {
		return err
	}
	c.mu.Lock()
	c.on = true
	c.mu.Unlock()
	log.Printf("[hdmi] %s turned on", c.output)
	return nil
}

func (c *Controller) Off() error {
	err := c.runXrandr("--output", c.output, "--off")
	if err != nil && !strings.Contains(err.Error(), "cannot find output") {
		return err
	}
	// "cannot find output" means the output is already off or disconnected
	c.mu.Lock()
	c.on = false
	c.mu.Unlock()
	log.Printf("[hdmi] %s turned off", c.output)
	return nil
}

func (c *Controller) IsOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on
}

func (c *Controller) runXrandr(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), xrandrTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "xrandr", args...)
	cmd.Env = append(os.Environ(), "DISPLAY=:0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("xrandr %s: %w (output: %s)", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}
