// Package tray provides a system tray menu for the try-on service.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func(enabled bool)
	onOpen   func()
	onQuit   func()
	enabled  bool
	scale    float64
	profile  string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuScale   *systray.MenuItem
	menuProfile *systray.MenuItem
}

// New creates a new Tray instance with detection enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback called when detection is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback called when the try-on page menu item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("TryOn")
	systray.SetTooltip("Eyewear virtual try-on")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle face tracking")
	systray.AddSeparator()

	t.menuProfile = systray.AddMenuItem(profileTitle(t.profile), "Active overlay profile")
	t.menuProfile.Disable()
	t.menuScale = systray.AddMenuItem(scaleTitle(t.scale), "Last overlay scale")
	t.menuScale.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Try-On...", "Open the try-on page in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit TryOn")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

func scaleTitle(scale float64) string {
	if scale == 0 {
		return "Scale: none"
	}
	return fmt.Sprintf("Scale: %.2f", scale)
}

func profileTitle(name string) string {
	if name == "" {
		return "Profile: default"
	}
	return "Profile: " + name
}

// handleToggle flips the enabled state and reports it to the callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Quit closes the tray, making Run return. It does not call the OnQuit callback.
func (t *Tray) Quit() {
	systray.Quit()
}

// SetLastScale updates the overlay scale shown in the menu.
func (t *Tray) SetLastScale(scale float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.scale = scale
	if t.menuScale != nil {
		t.menuScale.SetTitle(scaleTitle(scale))
	}
}

// SetProfile updates the active profile name shown in the menu.
func (t *Tray) SetProfile(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.profile = name
	if t.menuProfile != nil {
		t.menuProfile.SetTitle(profileTitle(name))
	}
}

// LastScale returns the last scale set with SetLastScale.
func (t *Tray) LastScale() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scale
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
