package screen

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the update screen
type KeyMap struct {
	Confirm   key.Binding
	Back      key.Binding
	Exit      key.Binding
	Interrupt key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("enter", "a"),
			key.WithHelp("enter", "Confirm"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "b"),
			key.WithHelp("esc", "Back"),
		),
		Exit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "Exit"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "interrupt"),
		),
	}
}

func hint(b key.Binding) string {
	h := b.Help()
	return "[" + h.Key + "] " + h.Desc
}
