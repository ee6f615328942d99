package update

import (
	"fmt"

	"github.com/drc-tools/drcflash/pkg/drc"
)

// Kind parameterizes the session state machine for one kind of update:
// where the image comes from, what the transfer writes, and how the result
// is activated.
type Kind struct {
	// Name is the CLI and journal name of the kind
	Name string
	// Title is shown in the screen's top bar
	Title string
	// Image is the image file name looked up in the source directory; empty for kinds without an image
	Image string
	// Ext selects what the transfer writes on the DRC
	Ext drc.Ext
	// HasHeader requires the image to carry a valid firmware header
	HasHeader bool
	// Erase replaces the transfer with a settings erase
	Erase bool
	// Activate makes the flashed image the running one
	Activate func(dev drc.Controller, dest drc.Destination) error

	ConfirmText string
	DoneText    string
}

// NeedsImage reports whether the kind stages an image before confirming
func (k Kind) NeedsImage() bool {
	return k.Image != ""
}

func softwareActivate(dev drc.Controller, dest drc.Destination) error {
	return dev.SoftwareActivate(dest)
}

var (
	// Language flashes a language pack
	Language = Kind{
		Name:     "lang",
		Title:    "Language Pack",
		Image:    "lang.bin",
		Ext:      drc.ExtLanguage,
		Activate: softwareActivate,
		ConfirmText: "Are you really really really sure?\n" +
			"About to flash langpack.\n" +
			"Language packs mismatching the firmware\nwill brick your GamePad!",
		DoneText: "Done!\nFlashed new language pack",
	}

	// Firmware flashes the main DRC firmware
	Firmware = Kind{
		Name:      "firmware",
		Title:     "Firmware",
		Image:     "firmware.bin",
		Ext:       drc.ExtFirmware,
		HasHeader: true,
		Activate:  softwareActivate,
		ConfirmText: "Are you really really really sure?\n" +
			"About to flash firmware.\n" +
			"A bad firmware image will brick your GamePad!",
		DoneText: "Done!\nFlashed new firmware",
	}

	// Format erases the DRC settings
	Format = Kind{
		Name:        "format",
		Title:       "Format",
		Erase:       true,
		ConfirmText: "Reset all GamePad settings?",
		DoneText:    "Done!\nPlease hold POWER on the DRC.",
	}
)

// KindByName resolves a kind from its CLI name
func KindByName(name string) (Kind, error) {
	for _, k := range []Kind{Language, Firmware, Format} {
		if k.Name == name {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("unknown update kind %q", name)
}
