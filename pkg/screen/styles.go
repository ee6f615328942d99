package screen

import "github.com/charmbracelet/lipgloss"

var (
	ColorText   = lipgloss.Color("#ABB2BF")
	ColorMuted  = lipgloss.Color("#636B78")
	ColorError  = lipgloss.Color("#E06C75")
	ColorAccent = lipgloss.Color("#61AFEF")
	ColorBorder = lipgloss.Color("#3F4451")
)

var (
	TopBarStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorBorder).
			PaddingLeft(1)

	BodyStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Padding(1, 2).
			Align(lipgloss.Center)

	ErrorBodyStyle = BodyStyle.
			Foreground(ColorError)

	BottomBarStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(ColorBorder).
			PaddingLeft(1)
)
