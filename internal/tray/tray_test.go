package tray

import (
	"reflect"
	"testing"
)

func TestTray_Toggle(t *testing.T) {
	tr := New()
	if !tr.IsEnabled() {
		t.Fatal("tray should start enabled")
	}

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if want := []bool{false, true}; !reflect.DeepEqual(got, want) {
		t.Errorf("toggle callbacks = %v, want %v", got, want)
	}
	if !tr.IsEnabled() {
		t.Error("two toggles should leave the tray enabled")
	}
}

func TestTray_Open(t *testing.T) {
	tr := New()
	tr.handleOpen()

	opened := false
	tr.OnOpen(func() { opened = true })
	tr.handleOpen()

	if !opened {
		t.Error("OnOpen callback was not called")
	}
}

func TestTray_LastScale(t *testing.T) {
	tr := New()
	tr.SetLastScale(1.25)
	tr.SetProfile("aviator")

	if got := tr.LastScale(); got != 1.25 {
		t.Errorf("LastScale() = %v, want 1.25", got)
	}
}

func TestTitles(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{toggleTitle(true), "● Tracking"},
		{toggleTitle(false), "○ Paused"},
		{scaleTitle(0), "Scale: none"},
		{scaleTitle(1.5), "Scale: 1.50"},
		{profileTitle(""), "Profile: default"},
		{profileTitle("round"), "Profile: round"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("title = %q, want %q", tt.got, tt.want)
		}
	}
}
