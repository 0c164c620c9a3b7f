// Package app contains the root application model. It owns AppData, applies
// transforms scheduled by the coordinator and turns key and mouse input into
// intents.
package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/mqttdesk/internal/appdata"
	"github.com/zjrosen/mqttdesk/internal/config"
	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/keys"
	"github.com/zjrosen/mqttdesk/internal/log"
	"github.com/zjrosen/mqttdesk/internal/pubsub"
	"github.com/zjrosen/mqttdesk/internal/store"
	"github.com/zjrosen/mqttdesk/internal/ui/logpane"
	"github.com/zjrosen/mqttdesk/internal/ui/styles"
)

// Submitter accepts intents for the coordinator; *intent.Queue implements it.
type Submitter interface {
	Submit(it intent.Intent) error
}

type focus int

const (
	focusBrokers focus = iota
	focusHistory
	focusSubscribe
	focusTopics
	focusPublish
	focusCount
)

func (f focus) String() string {
	switch f {
	case focusBrokers:
		return "brokers"
	case focusHistory:
		return "history"
	case focusSubscribe:
		return "subscribe"
	case focusTopics:
		return "topics"
	case focusPublish:
		return "publish"
	default:
		return "unknown"
	}
}

// Config holds what the model needs from cmd.
type Config struct {
	Submitter Submitter
	Data      *appdata.AppData
	// ConfigPath is where theme changes are saved; empty disables saving.
	ConfigPath string
	Theme      string
	Debug      bool
	ShowLog    bool
	// ConfigChanged signals edits of the config file, see internal/watcher.
	ConfigChanged <-chan struct{}
	// LoadTheme re-reads the theme after ConfigChanged fires.
	LoadTheme   func() (string, error)
	LogListener *log.LogListener
	// StoreChanges reports persisted writes in the status bar.
	StoreChanges *pubsub.ContinuousListener[store.Change]
}

// Model is the root application state.
type Model struct {
	data   *appdata.AppData
	submit Submitter

	width  int
	height int
	focus  focus

	form *brokerForm

	subTopic   textinput.Model
	pubTopic   textinput.Model
	pubPayload textinput.Model
	pubField   int

	topicCursor int
	hisCursor   int

	status    string
	statusErr bool

	help     help.Model
	showHelp bool

	logPane       logpane.Model
	logListener   *log.LogListener
	storeListener *pubsub.ContinuousListener[store.Change]

	theme         string
	configPath    string
	configChanged <-chan struct{}
	loadTheme     func() (string, error)
	debug         bool
}

// New creates the root model.
func New(cfg Config) Model {
	data := cfg.Data
	if data == nil {
		data = appdata.New()
	}

	m := Model{
		data:          data,
		submit:        cfg.Submitter,
		subTopic:      newInput("topic filter, e.g. sensors/#"),
		pubTopic:      newInput("topic"),
		pubPayload:    newInput("payload"),
		help:          help.New(),
		logPane:       logpane.New(),
		logListener:   cfg.LogListener,
		storeListener: cfg.StoreChanges,
		configPath:    cfg.ConfigPath,
		configChanged: cfg.ConfigChanged,
		loadTheme:     cfg.LoadTheme,
		debug:         cfg.Debug,
	}
	m.theme = styles.SetTheme(cfg.Theme).Name
	if cfg.ShowLog {
		m.logPane.Toggle()
	}
	if _, ok := data.SelectedBroker(); !ok {
		if ids := data.BrokerIDs(); len(ids) > 0 {
			appdata.ClickBroker(ids[0])(data)
		}
	}
	return m
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.CharLimit = 4096
	return ti
}

// Data exposes the state for tests and cmd.
func (m Model) Data() *appdata.AppData { return m.data }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.logListener != nil {
		cmds = append(cmds, m.logListener.Listen())
	}
	if m.storeListener != nil {
		cmds = append(cmds, m.storeListener.Listen())
	}
	if cmd := m.watchConfig(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

type configChangedMsg struct{}

type themeLoadedMsg struct {
	name string
	err  error
}

type themeSavedMsg struct {
	name string
	err  error
}

func (m Model) watchConfig() tea.Cmd {
	ch := m.configChanged
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return configChangedMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case TransformMsg:
		m.apply(msg)
		return m, nil

	case log.LogEvent:
		m.logPane.Append(msg.Payload)
		if strings.Contains(msg.Payload, "[ERROR]") {
			m.setError(lastField(msg.Payload))
		}
		if m.logListener == nil {
			return m, nil
		}
		return m, m.logListener.Listen()

	case pubsub.Event[store.Change]:
		m.setStatus(m.describeChange(msg))
		if m.storeListener == nil {
			return m, nil
		}
		return m, m.storeListener.Listen()

	case configChangedMsg:
		return m, tea.Batch(m.reloadTheme(), m.watchConfig())

	case themeLoadedMsg:
		if msg.err != nil {
			log.ErrorErr(log.CatConfig, "reloading theme", msg.err)
			return m, nil
		}
		if msg.name != m.theme {
			m.theme = styles.SetTheme(msg.name).Name
			log.Info(log.CatUI, "theme reloaded", "theme", m.theme)
		}
		return m, nil

	case themeSavedMsg:
		if msg.err != nil {
			m.setError("saving theme: " + msg.err.Error())
		}
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// apply runs one transform and re-syncs the widgets that mirror AppData.
func (m *Model) apply(msg TransformMsg) {
	msg.Transform(m.data)
	if m.debug {
		if err := m.data.Check(); err != nil {
			log.ErrorErr(log.CatUI, "state invariant violated", err, "transform", msg.Name)
		}
	}
	m.syncInputs()
	m.clampCursors()
	if m.data.SelectedTab == appdata.NoTab && m.focus > focusHistory {
		m.setFocus(focusBrokers)
	}
}

func (m *Model) syncInputs() {
	id := m.data.SelectedTab
	if id == appdata.NoTab {
		return
	}
	if in, ok := m.data.SubscribeInput[id]; ok && m.subTopic.Value() != in.Topic {
		m.subTopic.SetValue(in.Topic)
	}
	if in, ok := m.data.PublicInput[id]; ok {
		if m.pubTopic.Value() != in.Topic {
			m.pubTopic.SetValue(in.Topic)
		}
		if m.pubPayload.Value() != in.Payload {
			m.pubPayload.SetValue(in.Payload)
		}
	}
}

func (m *Model) clampCursors() {
	m.topicCursor = clamp(m.topicCursor, len(m.data.SubscribeTopics[m.data.SelectedTab]))
	m.hisCursor = clamp(m.hisCursor, len(m.data.History(m.historyBroker()).Entries))
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	return max(i, 0)
}

// historyBroker is the broker whose history is listed: the open tab, or
// the broker selected in the list when no tab is open.
func (m Model) historyBroker() int {
	if m.data.SelectedTab != appdata.NoTab {
		return m.data.SelectedTab
	}
	if b, ok := m.data.SelectedBroker(); ok {
		return b.ID
	}
	return appdata.NoTab
}

func (m *Model) post(it intent.Intent) {
	if m.submit == nil {
		return
	}
	if err := m.submit.Submit(it); err != nil {
		log.ErrorErr(log.CatUI, "intent not submitted", err, "kind", it.Kind().String())
		m.setError("busy: " + err.Error())
	}
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

// lastField extracts the error text of a formatted log entry.
func lastField(entry string) string {
	entry = strings.TrimSpace(entry)
	if i := strings.LastIndex(entry, " error="); i >= 0 {
		return entry[i+len(" error="):]
	}
	if i := strings.Index(entry, "] "); i >= 0 {
		return entry[i+2:]
	}
	return entry
}

// describeChange turns a store write into a status line.
func (m Model) describeChange(ev pubsub.Event[store.Change]) string {
	what := "broker " + strconv.Itoa(ev.Payload.BrokerID)
	if b, ok := m.data.GetBroker(ev.Payload.BrokerID); ok && ev.Type != pubsub.DeletedEvent {
		what = b.Name
	}
	if key, err := store.ParseKey(ev.Payload.Key); err == nil && key.Kind == store.KindSubscribeHises {
		return fmt.Sprintf("history of %s saved", what)
	}
	switch ev.Type {
	case pubsub.DeletedEvent:
		return what + " deleted"
	case pubsub.CreatedEvent:
		return what + " saved"
	default:
		return what + " updated"
	}
}

func (m Model) reloadTheme() tea.Cmd {
	load := m.loadTheme
	if load == nil {
		return nil
	}
	return func() tea.Msg {
		name, err := load()
		return themeLoadedMsg{name: name, err: err}
	}
}

func (m Model) toggleTheme() (tea.Model, tea.Cmd) {
	next := styles.Toggle(m.theme)
	m.theme = styles.SetTheme(next).Name
	m.setStatus("theme: " + m.theme)
	path := m.configPath
	if path == "" {
		return m, nil
	}
	return m, func() tea.Msg {
		return themeSavedMsg{name: next, err: config.SaveTheme(path, next)}
	}
}

// inputFocused reports whether printable keys belong to a text input.
func (m Model) inputFocused() bool {
	return m.form != nil || m.focus == focusSubscribe || m.focus == focusPublish
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.App.Quit) {
		return m, tea.Quit
	}
	if m.form != nil {
		return m.updateForm(msg)
	}
	if m.logPane.Visible() && msg.Alt {
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		return m, cmd
	}

	typing := m.inputFocused() && (msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace)
	if !typing {
		switch {
		case key.Matches(msg, keys.App.ToggleLog):
			m.logPane.Toggle()
			m.layout()
			return m, nil
		case key.Matches(msg, keys.App.ToggleTheme):
			return m.toggleTheme()
		case key.Matches(msg, keys.App.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			return m, nil
		case key.Matches(msg, keys.App.FocusNext):
			m.cycleFocus(1)
			return m, nil
		case key.Matches(msg, keys.App.FocusPrev):
			m.cycleFocus(-1)
			return m, nil
		case key.Matches(msg, keys.App.Escape):
			m.setFocus(focusBrokers)
			return m, nil
		}
		if handled := m.handleTabKey(msg); handled {
			return m, nil
		}
	}

	switch m.focus {
	case focusBrokers:
		return m.updateBrokers(msg)
	case focusHistory:
		return m.updateHistory(msg)
	case focusSubscribe:
		return m.updateSubscribe(msg)
	case focusTopics:
		return m.updateTopics(msg)
	case focusPublish:
		return m.updatePublish(msg)
	}
	return m, nil
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	m.subTopic.Blur()
	m.pubTopic.Blur()
	m.pubPayload.Blur()
	switch f {
	case focusSubscribe:
		m.subTopic.Focus()
	case focusPublish:
		if m.pubField == 0 {
			m.pubTopic.Focus()
		} else {
			m.pubPayload.Focus()
		}
	}
}

// cycleFocus moves between panes; connection panes are skipped without an
// open tab.
func (m *Model) cycleFocus(step int) {
	n := focusCount
	if m.data.SelectedTab == appdata.NoTab {
		n = focusHistory + 1
	}
	next := (int(m.focus) + step + int(n)) % int(n)
	m.setFocus(focus(next))
}

func (m *Model) handleTabKey(msg tea.KeyMsg) bool {
	id := m.data.SelectedTab
	switch {
	case key.Matches(msg, keys.Tabs.Next):
		m.stepTab(1)
	case key.Matches(msg, keys.Tabs.Prev):
		m.stepTab(-1)
	case id == appdata.NoTab:
		return false
	case key.Matches(msg, keys.Tabs.Reconnect):
		m.post(intent.NewReConnect(intent.SourceUser, id))
	case key.Matches(msg, keys.Tabs.Disconnect):
		m.post(intent.NewDisconnect(intent.SourceUser, id, ""))
	case key.Matches(msg, keys.Tabs.CloseConnection):
		m.post(intent.NewCloseConnectionTab(intent.SourceUser, id))
	case key.Matches(msg, keys.Tabs.CloseTab):
		m.post(intent.NewCloseBrokerTab(intent.SourceUser, id))
	default:
		return false
	}
	return true
}

func (m *Model) stepTab(step int) {
	tabs := m.data.BrokerTabs
	if len(tabs) == 0 {
		return
	}
	cur := 0
	for i, id := range tabs {
		if id == m.data.SelectedTab {
			cur = i
		}
	}
	next := (cur + step + len(tabs)) % len(tabs)
	m.post(intent.NewSelectTabs(intent.SourceUser, tabs[next]))
}

func (m Model) updateBrokers(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sel, hasSel := m.data.SelectedBroker()
	switch {
	case key.Matches(msg, keys.Brokers.Up):
		m.moveBrokerSelection(-1)
	case key.Matches(msg, keys.Brokers.Down):
		m.moveBrokerSelection(1)
	case key.Matches(msg, keys.Brokers.Add):
		m.post(intent.NewAddBroker(intent.SourceUser))
	case !hasSel:
		return m, nil
	case key.Matches(msg, keys.Brokers.Edit):
		m.form = newBrokerForm(sel)
	case key.Matches(msg, keys.Brokers.Save):
		m.post(intent.NewSaveBroker(intent.SourceUser, sel))
	case key.Matches(msg, keys.Brokers.Delete):
		m.post(intent.NewDeleteBroker(intent.SourceUser, sel.ID))
	case key.Matches(msg, keys.Brokers.Connect):
		m.post(intent.NewConnectBroker(intent.SourceUser, sel))
	case key.Matches(msg, keys.Brokers.Open):
		// Two clicks inside the window open the tab like a double click.
		m.post(intent.NewClickBroker(intent.SourceUser, sel.ID))
		m.post(intent.NewClickBroker(intent.SourceUser, sel.ID))
	}
	return m, nil
}

// moveBrokerSelection changes the list selection locally; only mouse
// clicks go through click disambiguation.
func (m *Model) moveBrokerSelection(step int) {
	ids := m.data.BrokerIDs()
	if len(ids) == 0 {
		return
	}
	cur := -1
	if b, ok := m.data.SelectedBroker(); ok {
		for i, id := range ids {
			if id == b.ID {
				cur = i
			}
		}
	}
	next := clamp(cur+step, len(ids))
	if cur < 0 {
		next = 0
	}
	appdata.ClickBroker(ids[next])(m.data)
	m.clampCursors()
}

func (m Model) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	h := m.data.History(m.historyBroker())
	switch {
	case key.Matches(msg, keys.Conn.Up):
		m.hisCursor = clamp(m.hisCursor-1, len(h.Entries))
	case key.Matches(msg, keys.Conn.Down):
		m.hisCursor = clamp(m.hisCursor+1, len(h.Entries))
	case len(h.Entries) == 0:
	case key.Matches(msg, keys.Conn.Submit):
		m.post(intent.NewClickSubscribeHis(intent.SourceUser, h.Entries[m.hisCursor]))
	case key.Matches(msg, keys.Conn.RemoveHistory):
		e := h.Entries[m.hisCursor]
		m.post(intent.NewRemoveSubscribeHis(intent.SourceUser, e.BrokerID, e.ID))
	}
	return m, nil
}

func (m Model) updateTopics(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.data.SelectedTab
	topics := m.data.SubscribeTopics[id]
	switch {
	case key.Matches(msg, keys.Conn.Up):
		m.topicCursor = clamp(m.topicCursor-1, len(topics))
	case key.Matches(msg, keys.Conn.Down):
		m.topicCursor = clamp(m.topicCursor+1, len(topics))
	case len(topics) == 0:
	case key.Matches(msg, keys.Conn.Unsubscribe):
		m.post(intent.NewToUnsubscribe(intent.SourceUser, id, topics[m.topicCursor].PacketID))
	}
	return m, nil
}
