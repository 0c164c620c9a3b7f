package app

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/muesli/reflow/truncate"

	"github.com/zjrosen/mqttdesk/internal/appdata"
	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/keys"
	"github.com/zjrosen/mqttdesk/internal/ui/styles"
)

const (
	logPaneHeight  = 8
	maxListWidth   = 34
	formPaneHeight = 4
)

// Zone ids for mouse click detection.
const (
	zoneBrokerPrefix = "broker:"
	zoneTabPrefix    = "tab:"
	zoneHisPrefix    = "his:"
	zoneTopicPrefix  = "topic:"
)

func brokerZone(id int) string { return zoneBrokerPrefix + strconv.Itoa(id) }
func tabZone(id int) string    { return zoneTabPrefix + strconv.Itoa(id) }
func hisZone(brokerID, hisID int) string {
	return fmt.Sprintf("%s%d:%d", zoneHisPrefix, brokerID, hisID)
}
func topicZone(pk uint16) string { return zoneTopicPrefix + strconv.Itoa(int(pk)) }

func (m *Model) layout() {
	m.help.Width = m.width
	m.logPane.SetSize(m.width, logPaneHeight)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "starting…"
	}
	t := styles.Current()

	footer := m.renderStatus(t)
	helpView := m.help.View(keys.HelpMap{})
	used := lipgloss.Height(footer) + lipgloss.Height(helpView)
	logView := ""
	if m.logPane.Visible() {
		logView = m.logPane.View()
		used += logPaneHeight
	}
	bodyHeight := max(m.height-used, 6)

	listWidth := min(maxListWidth, m.width/3)
	left := m.renderLeft(t, listWidth, bodyHeight)
	var right string
	if m.form != nil {
		right = m.renderForm(t, m.width-listWidth, bodyHeight)
	} else {
		right = m.renderRight(t, m.width-listWidth, bodyHeight)
	}

	parts := []string{lipgloss.JoinHorizontal(lipgloss.Top, left, right)}
	if logView != "" {
		parts = append(parts, logView)
	}
	parts = append(parts, footer, helpView)
	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderLeft(t styles.Theme, width, height int) string {
	brokersHeight := height / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Panel(t, m.renderBrokers(t, width-2), "Brokers", width, brokersHeight, m.focus == focusBrokers),
		styles.Panel(t, m.renderHistory(t, width-2), "History", width, height-brokersHeight, m.focus == focusHistory),
	)
}

func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return truncate.StringWithTail(s, uint(width), "…")
}

func (m Model) renderBrokers(t styles.Theme, width int) string {
	ids := m.data.BrokerIDs()
	if len(ids) == 0 {
		return t.Muted.Render(fit("no brokers, press a to add", width))
	}
	rows := make([]string, 0, len(ids))
	for _, id := range ids {
		b := m.data.Brokers[id]
		marker := "  "
		if b.Selected {
			marker = "> "
		}
		name := b.Name
		if !b.Stored {
			name += " *"
		}
		line := fit(marker+name+"  "+b.Endpoint(), width)
		style := t.Text
		if b.Selected {
			style = t.Selected
		}
		rows = append(rows, zone.Mark(brokerZone(id), style.Render(line)))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderHistory(t styles.Theme, width int) string {
	id := m.historyBroker()
	if id == appdata.NoTab {
		return ""
	}
	entries := m.data.History(id).Entries
	if len(entries) == 0 {
		return t.Muted.Render(fit("no subscriptions yet", width))
	}
	rows := make([]string, 0, len(entries))
	for i, e := range entries {
		marker := "  "
		style := t.Text
		if m.focus == focusHistory && i == m.hisCursor {
			marker = "> "
			style = t.Selected
		}
		line := fit(fmt.Sprintf("%s%s  q%s %s", marker, e.Topic, e.QoS, e.PayloadType), width)
		rows = append(rows, zone.Mark(hisZone(e.BrokerID, e.ID), style.Render(line)))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderTabs(t styles.Theme, width int) string {
	if len(m.data.BrokerTabs) == 0 {
		return t.Muted.Render(fit("no open tabs, double click a broker", width))
	}
	tabs := make([]string, 0, len(m.data.BrokerTabs))
	for _, id := range m.data.BrokerTabs {
		b, ok := m.data.GetBroker(id)
		if !ok {
			continue
		}
		label := statusDot(t, m.data.TabStatus(id)) + " " + b.Name
		style := t.TabInactive
		if id == m.data.SelectedTab {
			style = t.TabActive
		}
		tabs = append(tabs, zone.Mark(tabZone(id), style.Render(label)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func statusDot(t styles.Theme, s domain.TabStatus) string {
	switch {
	case s.Connected:
		return t.Success.Render("●")
	case s.TryConnect:
		return t.Warning.Render("◌")
	default:
		return t.Muted.Render("○")
	}
}

func statusText(s domain.TabStatus) string {
	switch {
	case s.Connected:
		return "connected"
	case s.TryConnect:
		return "connecting"
	default:
		return "disconnected"
	}
}

func (m Model) renderRight(t styles.Theme, width, height int) string {
	tabBar := m.renderTabs(t, width)
	id := m.data.SelectedTab
	rest := height - lipgloss.Height(tabBar)
	if id == appdata.NoTab {
		hint := t.Muted.Render("select a broker and press c to connect, enter to open its tab")
		return lipgloss.JoinVertical(lipgloss.Left, tabBar, styles.Panel(t, hint, "", width, rest, false))
	}
	b, _ := m.data.GetBroker(id)

	topicsHeight := max((rest-2*formPaneHeight)/3, 3)
	msgsHeight := max(rest-2*formPaneHeight-topicsHeight, 3)

	subTitle := fmt.Sprintf("%s  %s", b.Endpoint(), statusText(m.data.TabStatus(id)))
	return lipgloss.JoinVertical(lipgloss.Left,
		tabBar,
		styles.Panel(t, m.renderSubscribeForm(t, id), "Subscribe · "+subTitle, width, formPaneHeight, m.focus == focusSubscribe),
		styles.Panel(t, m.renderTopics(t, id, width-2), "Topics", width, topicsHeight, m.focus == focusTopics),
		styles.Panel(t, m.renderMessages(t, id, width-2, msgsHeight-2), "Messages", width, msgsHeight, false),
		styles.Panel(t, m.renderPublishForm(t, id), "Publish", width, formPaneHeight, m.focus == focusPublish),
	)
}

func (m Model) renderSubscribeForm(t styles.Theme, id int) string {
	in := m.data.SubscribeInput[id]
	return "topic: " + m.subTopic.View() + "\n" +
		t.Muted.Render(fmt.Sprintf("qos %s · payload %s · enter to subscribe", in.QoS, in.PayloadType))
}

func (m Model) renderPublishForm(t styles.Theme, id int) string {
	in := m.data.PublicInput[id]
	retain := ""
	if in.Retain {
		retain = " · retain"
	}
	return "topic: " + m.pubTopic.View() + "   payload: " + m.pubPayload.View() + "\n" +
		t.Muted.Render(fmt.Sprintf("qos %s · payload %s%s · enter to publish", in.QoS, in.PayloadType, retain))
}

func (m Model) renderTopics(t styles.Theme, id, width int) string {
	topics := m.data.SubscribeTopics[id]
	if len(topics) == 0 {
		return t.Muted.Render(fit("no subscriptions", width))
	}
	rows := make([]string, 0, len(topics))
	for i, st := range topics {
		marker := "  "
		if m.focus == focusTopics && i == m.topicCursor {
			marker = "> "
		}
		var style = t.Text
		switch st.Status {
		case domain.SubActive:
			style = t.Success
		case domain.SubSubscribing, domain.SubUnsubscribing:
			style = t.Warning
		case domain.SubFailed:
			style = t.Error
		}
		line := fit(fmt.Sprintf("%s%s  q%s %s", marker, st.Topic, st.QoS, st.Status), width)
		rows = append(rows, zone.Mark(topicZone(st.PacketID), style.Render(line)))
	}
	return strings.Join(rows, "\n")
}

// renderMessages shows the newest messages that fit in height rows.
func (m Model) renderMessages(t styles.Theme, id, width, height int) string {
	msgs := m.data.Msgs[id]
	if len(msgs) == 0 {
		return t.Muted.Render("no messages")
	}
	if height > 0 && len(msgs) > height {
		msgs = msgs[len(msgs)-height:]
	}
	rows := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		rows = append(rows, m.renderMessage(t, id, msg, width))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderMessage(t styles.Theme, id int, msg domain.Message, width int) string {
	payload := strings.ReplaceAll(m.payloadType(id, msg).Format(msg.Payload), "\n", "⏎")
	ts := msg.Time.Format("15:04:05")
	if msg.Kind == domain.MsgPublished {
		line := fmt.Sprintf("%s → %s q%s %s  %s", ts, msg.Topic, msg.QoS, msg.Status, payload)
		return t.Published.Render(fit(line, width))
	}
	line := fmt.Sprintf("%s ← %s q%s  %s", ts, msg.Topic, msg.QoS, payload)
	return t.Received.Render(fit(line, width))
}

// payloadType picks the display encoding: the first subscription whose
// filter matches a received topic, or the publish form's for sent messages.
func (m Model) payloadType(id int, msg domain.Message) domain.PayloadType {
	if msg.Kind == domain.MsgPublished {
		if pt := m.data.PublicInput[id].PayloadType; pt != "" {
			return pt
		}
		return domain.PayloadText
	}
	for _, st := range m.data.SubscribeTopics[id] {
		if domain.MatchTopic(st.Topic, msg.Topic) && st.PayloadType != "" {
			return st.PayloadType
		}
	}
	return domain.PayloadText
}

func (m Model) renderForm(t styles.Theme, width, height int) string {
	f := m.form
	var b strings.Builder
	for i := 0; i < fieldCount; i++ {
		label := fmt.Sprintf("%-12s", fieldLabels[i])
		if i == f.cursor {
			label = t.Selected.Render(label)
		} else {
			label = t.Muted.Render(label)
		}
		b.WriteString(label)
		if i == fieldCredentials {
			box := "[ ]"
			if f.credentials {
				box = "[x]"
			}
			b.WriteString(box)
		} else {
			b.WriteString(f.inputs[i].View())
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if f.err != "" {
		b.WriteString(t.Error.Render(f.err))
	} else {
		b.WriteString(t.Muted.Render("enter to apply · esc to cancel"))
	}
	return styles.Panel(t, b.String(), "Edit "+f.broker.Name, width, height, true)
}

func (m Model) renderStatus(t styles.Theme) string {
	left := m.status
	if m.statusErr {
		left = t.Error.Render(left)
	}
	right := t.Muted.Render(m.focus.String() + " · " + m.theme)
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return t.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Button != tea.MouseButtonLeft || msg.Action != tea.MouseActionRelease || m.form != nil {
		return m, nil
	}
	for _, id := range m.zoneIDs() {
		if z := zone.Get(id); z != nil && z.InBounds(msg) {
			m.clickZone(id)
			return m, nil
		}
	}
	return m, nil
}

// zoneIDs lists every zone the current state can render.
func (m Model) zoneIDs() []string {
	var ids []string
	for _, id := range m.data.BrokerIDs() {
		ids = append(ids, brokerZone(id))
	}
	for _, id := range m.data.BrokerTabs {
		ids = append(ids, tabZone(id))
	}
	if bid := m.historyBroker(); bid != appdata.NoTab {
		for _, e := range m.data.History(bid).Entries {
			ids = append(ids, hisZone(e.BrokerID, e.ID))
		}
	}
	for _, st := range m.data.SubscribeTopics[m.data.SelectedTab] {
		ids = append(ids, topicZone(st.PacketID))
	}
	return ids
}

// clickZone turns a click on a zone into the matching intent.
func (m *Model) clickZone(id string) {
	switch {
	case strings.HasPrefix(id, zoneBrokerPrefix):
		bid, err := strconv.Atoi(strings.TrimPrefix(id, zoneBrokerPrefix))
		if err != nil {
			return
		}
		m.setFocus(focusBrokers)
		m.post(intent.NewClickBroker(intent.SourceUser, bid))

	case strings.HasPrefix(id, zoneTabPrefix):
		bid, err := strconv.Atoi(strings.TrimPrefix(id, zoneTabPrefix))
		if err != nil {
			return
		}
		m.post(intent.NewSelectTabs(intent.SourceUser, bid))

	case strings.HasPrefix(id, zoneHisPrefix):
		var bid, hid int
		if _, err := fmt.Sscanf(strings.TrimPrefix(id, zoneHisPrefix), "%d:%d", &bid, &hid); err != nil {
			return
		}
		e, ok := m.data.History(bid).Find(hid)
		if !ok {
			return
		}
		m.setFocus(focusHistory)
		for i, x := range m.data.History(bid).Entries {
			if x.ID == hid {
				m.hisCursor = i
			}
		}
		m.post(intent.NewClickSubscribeHis(intent.SourceUser, e))

	case strings.HasPrefix(id, zoneTopicPrefix):
		pk, err := strconv.Atoi(strings.TrimPrefix(id, zoneTopicPrefix))
		if err != nil {
			return
		}
		m.setFocus(focusTopics)
		for i, st := range m.data.SubscribeTopics[m.data.SelectedTab] {
			if int(st.PacketID) == pk {
				m.topicCursor = i
			}
		}
	}
}
