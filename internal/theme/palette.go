package theme

import "github.com/gdamore/tcell/v2"

// Palette holds the nine role colors every rendered surface understands.
// Roles, not widget slots: widgets map themselves onto roles so a palette
// swap restyles the whole UI at once.
type Palette struct {
	Background tcell.Color
	Foreground tcell.Color
	Surface    tcell.Color
	Accent     tcell.Color
	Border     tcell.Color
	Success    tcell.Color
	Warning    tcell.Color
	Error      tcell.Color
	Muted      tcell.Color
}

// Dark returns the built-in dark palette.
func Dark() Palette {
	return Palette{
		Background: tcell.ColorBlack,
		Foreground: tcell.ColorCadetBlue,
		Surface:    tcell.NewHexColor(0x1c1c28),
		Accent:     tcell.ColorDodgerBlue,
		Border:     tcell.ColorDodgerBlue,
		Success:    tcell.ColorGreen,
		Warning:    tcell.ColorOrange,
		Error:      tcell.ColorOrangeRed,
		Muted:      tcell.ColorGray,
	}
}

// Light returns the built-in light palette.
func Light() Palette {
	return Palette{
		Background: tcell.ColorWhite,
		Foreground: tcell.NewHexColor(0x24292e),
		Surface:    tcell.NewHexColor(0xf0f0f5),
		Accent:     tcell.ColorNavy,
		Border:     tcell.ColorSteelBlue,
		Success:    tcell.ColorDarkGreen,
		Warning:    tcell.ColorDarkOrange,
		Error:      tcell.ColorDarkRed,
		Muted:      tcell.ColorDarkGray,
	}
}

// Builtin looks up a built-in palette by name.
func Builtin(name string) (Palette, bool) {
	switch name {
	case "dark":
		return Dark(), true
	case "light":
		return Light(), true
	default:
		return Palette{}, false
	}
}
