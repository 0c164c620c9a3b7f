// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// AppKeys are active everywhere.
type AppKeys struct {
	Quit        key.Binding
	Help        key.Binding
	ToggleLog   key.Binding
	ToggleTheme key.Binding
	FocusNext   key.Binding
	FocusPrev   key.Binding
	Escape      key.Binding
}

// BrokerKeys act on the broker list.
type BrokerKeys struct {
	Up      key.Binding
	Down    key.Binding
	Add     key.Binding
	Edit    key.Binding
	Save    key.Binding
	Delete  key.Binding
	Connect key.Binding
	Open    key.Binding
}

// TabKeys act on the open broker tabs.
type TabKeys struct {
	Next            key.Binding
	Prev            key.Binding
	Reconnect       key.Binding
	Disconnect      key.Binding
	CloseConnection key.Binding
	CloseTab        key.Binding
}

// ConnKeys act inside a connection tab.
type ConnKeys struct {
	Up            key.Binding
	Down          key.Binding
	Submit        key.Binding
	CycleQoS      key.Binding
	CyclePayload  key.Binding
	ToggleRetain  key.Binding
	Unsubscribe   key.Binding
	RemoveHistory key.Binding
}

// FormKeys drive the broker edit form.
type FormKeys struct {
	Next    key.Binding
	Prev    key.Binding
	Toggle  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

// App holds the global bindings.
var App = AppKeys{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "ctrl+q"),
		key.WithHelp("ctrl+q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	ToggleLog: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "toggle log"),
	),
	ToggleTheme: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "light/dark"),
	),
	FocusNext: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next pane"),
	),
	FocusPrev: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "previous pane"),
	),
	Escape: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
}

// Brokers holds the broker list bindings.
var Brokers = BrokerKeys{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "previous broker"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "next broker"),
	),
	Add: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "add broker"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit broker"),
	),
	Save: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "save broker"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete broker"),
	),
	Connect: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "connect"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open tab"),
	),
}

// Tabs holds the tab bar bindings.
var Tabs = TabKeys{
	Next: key.NewBinding(
		key.WithKeys("ctrl+n", "]"),
		key.WithHelp("]", "next tab"),
	),
	Prev: key.NewBinding(
		key.WithKeys("ctrl+p", "["),
		key.WithHelp("[", "previous tab"),
	),
	Reconnect: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "reconnect"),
	),
	Disconnect: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("ctrl+d", "disconnect"),
	),
	CloseConnection: key.NewBinding(
		key.WithKeys("ctrl+w"),
		key.WithHelp("ctrl+w", "close connection"),
	),
	CloseTab: key.NewBinding(
		key.WithKeys("ctrl+k"),
		key.WithHelp("ctrl+k", "close tab"),
	),
}

// Conn holds the connection tab bindings.
var Conn = ConnKeys{
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "previous row"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "next row"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	CycleQoS: key.NewBinding(
		key.WithKeys("alt+q"),
		key.WithHelp("alt+q", "cycle qos"),
	),
	CyclePayload: key.NewBinding(
		key.WithKeys("alt+p"),
		key.WithHelp("alt+p", "cycle payload type"),
	),
	ToggleRetain: key.NewBinding(
		key.WithKeys("alt+r"),
		key.WithHelp("alt+r", "toggle retain"),
	),
	Unsubscribe: key.NewBinding(
		key.WithKeys("delete", "x"),
		key.WithHelp("x", "unsubscribe"),
	),
	RemoveHistory: key.NewBinding(
		key.WithKeys("delete", "x"),
		key.WithHelp("x", "forget entry"),
	),
}

// Form holds the broker form bindings.
var Form = FormKeys{
	Next: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab", "previous field"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "toggle"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter", "ctrl+s"),
		key.WithHelp("enter", "apply"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}

// HelpMap adapts the bindings to bubbles/help.
type HelpMap struct{}

// ShortHelp returns keybindings for the short help view.
func (HelpMap) ShortHelp() []key.Binding {
	return []key.Binding{App.FocusNext, Brokers.Open, Brokers.Connect, App.Help, App.Quit}
}

// FullHelp returns keybindings for the full help view.
func (HelpMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{Brokers.Up, Brokers.Down, Brokers.Add, Brokers.Edit, Brokers.Save, Brokers.Delete, Brokers.Connect, Brokers.Open},
		{Tabs.Next, Tabs.Prev, Tabs.Reconnect, Tabs.Disconnect, Tabs.CloseConnection, Tabs.CloseTab},
		{Conn.Submit, Conn.CycleQoS, Conn.CyclePayload, Conn.ToggleRetain, Conn.Unsubscribe},
		{App.FocusNext, App.ToggleLog, App.ToggleTheme, App.Help, App.Quit},
	}
}
