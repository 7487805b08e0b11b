package appconfig

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"kiosk-firmware/pkg/globals"
)

// SchemaError reports the first schema violation found, naming the offending
// entry and field.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("config schema: %s: %s", e.Field, e.Reason)
}

var validButtonModes = map[ButtonMode]bool{
	ButtonPress:  true,
	ButtonToggle: true,
}

var validMediaModes = map[MediaMode]bool{
	MediaImageStill: true,
	MediaImageFlash: true,
	MediaScrollText: true,
	MediaSlide:      true,
}

var validActionModes = map[ActionMode]bool{
	ActionHDMIControl: true,
	ActionLoadConfig:  true,
	ActionUSBUpdate:   true,
}

// Validate checks the document against the schema and fails on the first
// violation found. Entries are visited in name order so the reported
// violation is deterministic.
func (d *Document) Validate() error {
	if d.Buttons == nil {
		return &SchemaError{Field: "buttons", Reason: "required section missing"}
	}
	if d.Media == nil {
		return &SchemaError{Field: "media", Reason: "required section missing"}
	}
	if d.Actions == nil {
		return &SchemaError{Field: "actions", Reason: "required section missing"}
	}

	for _, name := range sortedKeys(d.Buttons) {
		btn := d.Buttons[name]
		if btn.Pin == nil {
			return &SchemaError{Field: "buttons." + name + ".value", Reason: "integer pin value is required"}
		}
		if *btn.Pin < 0 {
			return &SchemaError{Field: "buttons." + name + ".value", Reason: fmt.Sprintf("pin value must not be negative, got %d", *btn.Pin)}
		}
		if !validButtonModes[btn.Mode] {
			return &SchemaError{Field: "buttons." + name + ".mode", Reason: fmt.Sprintf("must be one of press, toggle; got %q", btn.Mode)}
		}
	}

	for _, name := range sortedKeys(d.Media) {
		m := d.Media[name]
		if !validMediaModes[m.Mode] {
			return &SchemaError{Field: "media." + name + ".mode", Reason: fmt.Sprintf("must be one of image_still, image_flash, scroll_text, slide; got %q", m.Mode)}
		}
		if m.Path == "" {
			return &SchemaError{Field: "media." + name + ".path", Reason: "string path is required"}
		}
		// Package-relative paths must stay inside the package asset directory.
		if rel, ok := strings.CutPrefix(m.Path, globals.PackageAssetDir+"/"); ok {
			if cleaned := path.Clean(rel); cleaned == ".." || strings.HasPrefix(cleaned, "../") {
				return &SchemaError{Field: "media." + name + ".path", Reason: "must not traverse outside the asset directory"}
			}
		}
		if err := d.checkButtonRefs("media."+name, m.Buttons); err != nil {
			return err
		}
		if m.HoldTime < 0 {
			return &SchemaError{Field: "media." + name + ".hold_time", Reason: "must not be negative"}
		}
	}

	for _, name := range sortedKeys(d.Actions) {
		a := d.Actions[name]
		if !validActionModes[a.Mode] {
			return &SchemaError{Field: "actions." + name + ".mode", Reason: fmt.Sprintf("must be one of hdmi_control, load_config, usb_update; got %q", a.Mode)}
		}
		if err := d.checkButtonRefs("actions."+name, a.Buttons); err != nil {
			return err
		}
		if a.HoldTime < 0 {
			return &SchemaError{Field: "actions." + name + ".hold_time", Reason: "must not be negative"}
		}
	}

	if d.Settings.DefaultMediaName == "" {
		return &SchemaError{Field: "settings.default_media_name", Reason: "required setting missing"}
	}
	if _, ok := d.Media[d.Settings.DefaultMediaName]; !ok {
		return &SchemaError{Field: "settings.default_media_name", Reason: fmt.Sprintf("references unknown media entry %q", d.Settings.DefaultMediaName)}
	}

	return nil
}

func (d *Document) checkButtonRefs(field string, refs ButtonRef) error {
	for _, ref := range refs {
		if _, ok := d.Buttons[ref]; !ok {
			return &SchemaError{Field: field + ".button", Reason: fmt.Sprintf("references unknown button %q", ref)}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
