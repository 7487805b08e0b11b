package updater

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"kiosk-firmware/pkg/appconfig"
	"kiosk-firmware/pkg/globals"

	"github.com/gofrs/uuid"
)

// State of the update coordinator. Checked atomically before starting a run;
// there is exactly one worker alive while the state is anything but idle.
type State string

const (
	StateIdle            State = "idle"
	StateLocating        State = "locating-media"
	StateLocatingPackage State = "locating-package"
	StatePreValidating   State = "pre-validating"
	StateStaging         State = "staging"
	StateRewriting       State = "rewriting"
	StatePostValidating  State = "post-validating"
	StateBackingUp       State = "backing-up"
	StateCommitting      State = "committing"
	StateCleaningUp      State = "cleaning-up"
	StateRollingBack     State = "rolling-back"
)

// StatusSink receives short human-readable progress messages. Fire and
// forget; the caller that triggered the run is typically no longer waiting.
type StatusSink interface {
	DisplayStatus(message string)
}

// StatusFunc adapts a plain function to a StatusSink.
type StatusFunc func(message string)

func (f StatusFunc) DisplayStatus(message string) { f(message) }

// MediaSource abstracts removable-media discovery and package location.
// *usbmedia.Locator is the production implementation.
type MediaSource interface {
	Locate() (mountPath string, ok bool)
	Unmount(mountPath string) bool
	FindPackage(mountPath string) (packagePath string, ok bool)
}

// Layout is where the live application keeps its config and assets.
type Layout struct {
	AppRoot     string
	ConfigPath  string
	AssetPrefix string // forward-slash form, relative to AppRoot
}

func (l Layout) assetDir() string {
	return filepath.Join(l.AppRoot, filepath.FromSlash(l.AssetPrefix))
}

func (l Layout) stagingDir() string {
	return filepath.Join(l.AppRoot, globals.StagingDirName)
}

func (l Layout) backupDir() string {
	return filepath.Join(l.AppRoot, globals.BackupDirName)
}

// Updater drives the all-or-nothing config-and-asset update from removable
// media: locate, validate, stage, rewrite, validate again, back up, commit,
// and roll back on any failure past staging.
type Updater struct {
	mu          sync.Mutex
	state       State
	stopped     bool
	lastOutcome string

	media  MediaSource
	layout Layout
	sinks  []StatusSink

	// test hooks
	commitFault  func() error              // fires between asset swap and config move
	rewriteFault func(*appconfig.Document) // mutates the staged document before it is written
}

var instance *Updater
var once sync.Once

func Init(media MediaSource, sinks ...StatusSink) {
	once.Do(func() {
		instance = New(Layout{
			AppRoot:     globals.AppRoot,
			ConfigPath:  globals.ConfigPath,
			AssetPrefix: globals.LiveAssetPrefix,
		}, media, sinks...)
	})
}

func Get() *Updater {
	if instance == nil {
		panic("updater not initialized - call Init() first")
	}
	return instance
}

func New(layout Layout, media MediaSource, sinks ...StatusSink) *Updater {
	return &Updater{
		state:  StateIdle,
		media:  media,
		layout: layout,
		sinks:  sinks,
	}
}

// State returns the coordinator state.
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// LastOutcome reports how the most recent run ended.
func (u *Updater) LastOutcome() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastOutcome
}

// RequestUpdate starts the update sequence on a background worker. A request
// while a worker is alive is rejected; there is no queueing.
func (u *Updater) RequestUpdate() {
	u.mu.Lock()
	if u.stopped {
		u.mu.Unlock()
		u.status("Update requests are disabled, ignoring.")
		return
	}
	if u.state != StateIdle {
		u.mu.Unlock()
		u.status("Update process is already running.")
		return
	}
	u.state = StateLocating
	u.mu.Unlock()

	go u.run()
}

// Stop suppresses starting new runs. A run already executing is never
// interrupted; a half-finished commit must be driven to a consistent state by
// the run that started it.
func (u *Updater) Stop() {
	u.mu.Lock()
	u.stopped = true
	u.mu.Unlock()
}

func (u *Updater) run() {
	runID := ""
	if id, err := uuid.NewV4(); err == nil {
		runID = id.String()
	}
	log.Printf("Update run %s started", runID)

	var outcome error
	defer func() {
		u.mu.Lock()
		u.state = StateIdle
		if outcome == nil {
			u.lastOutcome = "success"
		} else {
			u.lastOutcome = outcome.Error()
		}
		u.mu.Unlock()
		log.Printf("Update run %s finished: %s", runID, u.LastOutcome())
	}()

	u.status("Checking for USB drive...")
	mountPath, ok := u.media.Locate()
	if !ok {
		u.status("No USB drive found or it could not be mounted.")
		outcome = ErrMediaNotFound
		return
	}
	defer func() {
		u.status(fmt.Sprintf("Unmounting USB drive from %s...", mountPath))
		if u.media.Unmount(mountPath) {
			u.status("USB drive unmounted. You can safely remove the drive.")
		} else {
			u.status(fmt.Sprintf("Failed to unmount USB drive from %s. Please check manually.", mountPath))
		}
	}()

	u.setState(StateLocatingPackage)
	u.status(fmt.Sprintf("USB drive mounted at %s. Searching for update package...", mountPath))
	pkgPath, ok := u.media.FindPackage(mountPath)
	if !ok {
		u.status("No valid update package found on the USB drive.")
		outcome = ErrPackageNotFound
		return
	}

	u.status(fmt.Sprintf("Update package found at %s. Starting update process...", pkgPath))
	outcome = u.apply(pkgPath)
	if outcome == nil {
		u.status("Update successful! Please restart the application.")
	} else {
		u.status(fmt.Sprintf("Update failed: %v", outcome))
	}
}

func (u *Updater) setState(s State) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}

func (u *Updater) status(message string) {
	log.Printf("[updater] %s", message)
	for _, sink := range u.sinks {
		sink.DisplayStatus(message)
	}
}
