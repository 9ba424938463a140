package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the explorer's key bindings.
type KeyMap struct {
	Quit        key.Binding
	Save        key.Binding
	Reset       key.Binding
	ZoomIn      key.Binding
	ZoomOut     key.Binding
	Up          key.Binding
	Down        key.Binding
	Left        key.Binding
	Right       key.Binding
	RotateLeft  key.Binding
	RotateRight key.Binding
	MoreIter    key.Binding
	FewerIter   key.Binding
	FreqUp      key.Binding
	FreqDown    key.Binding
	OffsetUp    key.Binding
	OffsetDown  key.Binding
	GlowToggle  key.Binding
	CycleTier   key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save png"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset"),
		),
		ZoomIn: key.NewBinding(
			key.WithKeys("+", "=", "i"),
			key.WithHelp("+/-", "zoom"),
		),
		ZoomOut: key.NewBinding(
			key.WithKeys("-", "_", "o"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("←↓↑→", "pan"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
		),
		RotateLeft: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[/]", "rotate"),
		),
		RotateRight: key.NewBinding(
			key.WithKeys("]"),
		),
		MoreIter: key.NewBinding(
			key.WithKeys("."),
			key.WithHelp(",/.", "iterations"),
		),
		FewerIter: key.NewBinding(
			key.WithKeys(","),
		),
		FreqUp: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f/F", "frequency"),
		),
		FreqDown: key.NewBinding(
			key.WithKeys("F"),
		),
		OffsetUp: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c/C", "palette"),
		),
		OffsetDown: key.NewBinding(
			key.WithKeys("C"),
		),
		GlowToggle: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "glow"),
		),
		CycleTier: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "tier"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.ZoomIn, k.Up, k.RotateLeft, k.MoreIter, k.FreqUp,
		k.OffsetUp, k.GlowToggle, k.CycleTier, k.Reset, k.Save, k.Quit,
	}
}
