package automation

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SelectorProfile holds the XPath selectors for the CRM's edit session.
// Keeping them in a profile file means UI churn is a config change, not a
// code change. SlotTriggerFmt takes the 1-based slot number.
type SelectorProfile struct {
	SlotTriggerFmt string `yaml:"slot_trigger_fmt"`
	PanelTrigger   string `yaml:"panel_trigger"`
	FileInput      string `yaml:"file_input"`
	AttachButton   string `yaml:"attach_button"`
	SaveButton     string `yaml:"save_button"`
}

// DefaultSelectors returns the selectors for the stock Accounts edit layout.
func DefaultSelectors() SelectorProfile {
	return SelectorProfile{
		SlotTriggerFmt: "//lyte-button[@data-zcqa='Image Upload %d']",
		PanelTrigger:   "//crux-image-component",
		FileInput:      "//input[@type='file']",
		AttachButton:   "//button[.//text()='Attach']",
		SaveButton:     "//button[.//text()='Save']",
	}
}

// SlotTrigger returns the selector for the given 1-based slot number.
func (p SelectorProfile) SlotTrigger(n int) string {
	return fmt.Sprintf(p.SlotTriggerFmt, n)
}

// LoadSelectors reads a YAML profile, filling unset fields from the
// defaults. An empty path returns the defaults unchanged.
func LoadSelectors(path string) (SelectorProfile, error) {
	profile := DefaultSelectors()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, eris.Wrapf(err, "automation: read selector profile %s", path)
	}

	var overrides SelectorProfile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return profile, eris.Wrapf(err, "automation: parse selector profile %s", path)
	}

	if overrides.SlotTriggerFmt != "" {
		profile.SlotTriggerFmt = overrides.SlotTriggerFmt
	}
	if overrides.PanelTrigger != "" {
		profile.PanelTrigger = overrides.PanelTrigger
	}
	if overrides.FileInput != "" {
		profile.FileInput = overrides.FileInput
	}
	if overrides.AttachButton != "" {
		profile.AttachButton = overrides.AttachButton
	}
	if overrides.SaveButton != "" {
		profile.SaveButton = overrides.SaveButton
	}
	return profile, nil
}
