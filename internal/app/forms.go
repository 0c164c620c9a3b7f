package app

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/mqttdesk/internal/appdata"
	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/keys"
)

var (
	qosCycle     = []string{"0", "1", "2"}
	payloadCycle = []domain.PayloadType{domain.PayloadText, domain.PayloadJSON, domain.PayloadHex}
)

func nextQoS(cur string) string {
	for i, q := range qosCycle {
		if q == cur {
			return qosCycle[(i+1)%len(qosCycle)]
		}
	}
	return qosCycle[0]
}

func nextPayloadType(cur domain.PayloadType) domain.PayloadType {
	for i, p := range payloadCycle {
		if p == cur {
			return payloadCycle[(i+1)%len(payloadCycle)]
		}
	}
	return payloadCycle[0]
}

// Form edits are UI-local: they are applied to AppData directly and only
// reach the coordinator when submitted.

func (m Model) updateSubscribe(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.data.SelectedTab
	if id == appdata.NoTab {
		return m, nil
	}
	in := m.data.SubscribeInput[id]
	switch {
	case key.Matches(msg, keys.Conn.Submit):
		m.post(intent.NewSubscribe(intent.SourceUser, id, in))
		return m, nil
	case key.Matches(msg, keys.Conn.CycleQoS):
		in.QoS = nextQoS(in.QoS)
	case key.Matches(msg, keys.Conn.CyclePayload):
		in.PayloadType = nextPayloadType(in.PayloadType)
	default:
		var cmd tea.Cmd
		m.subTopic, cmd = m.subTopic.Update(msg)
		in.Topic = m.subTopic.Value()
		appdata.SetSubscribeInput(id, in)(m.data)
		return m, cmd
	}
	appdata.SetSubscribeInput(id, in)(m.data)
	return m, nil
}

func (m Model) updatePublish(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.data.SelectedTab
	if id == appdata.NoTab {
		return m, nil
	}
	in := m.data.PublicInput[id]
	switch {
	case key.Matches(msg, keys.Conn.Submit):
		m.post(intent.NewPublish(intent.SourceUser, id, in))
		return m, nil
	case key.Matches(msg, keys.Conn.Up), key.Matches(msg, keys.Conn.Down):
		m.pubField = 1 - m.pubField
		m.setFocus(focusPublish)
		return m, nil
	case key.Matches(msg, keys.Conn.CycleQoS):
		in.QoS = nextQoS(in.QoS)
	case key.Matches(msg, keys.Conn.CyclePayload):
		in.PayloadType = nextPayloadType(in.PayloadType)
	case key.Matches(msg, keys.Conn.ToggleRetain):
		in.Retain = !in.Retain
	default:
		var cmd tea.Cmd
		if m.pubField == 0 {
			m.pubTopic, cmd = m.pubTopic.Update(msg)
			in.Topic = m.pubTopic.Value()
		} else {
			m.pubPayload, cmd = m.pubPayload.Update(msg)
			in.Payload = m.pubPayload.Value()
		}
		appdata.SetPublicInput(id, in)(m.data)
		return m, cmd
	}
	appdata.SetPublicInput(id, in)(m.data)
	return m, nil
}

const (
	fieldName = iota
	fieldClientID
	fieldAddr
	fieldPort
	fieldParams
	fieldCredentials
	fieldUserName
	fieldPassword
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldName:        "Name",
	fieldClientID:    "Client ID",
	fieldAddr:        "Address",
	fieldPort:        "Port",
	fieldParams:      "Params",
	fieldCredentials: "Credentials",
	fieldUserName:    "User",
	fieldPassword:    "Password",
}

// brokerForm edits one broker. fieldCredentials is a toggle and has no
// text input.
type brokerForm struct {
	broker      domain.Broker
	inputs      [fieldCount]textinput.Model
	credentials bool
	cursor      int
	err         string
}

func newBrokerForm(b domain.Broker) *brokerForm {
	f := &brokerForm{broker: b}
	src := domain.FormFromBroker(b)
	values := [fieldCount]string{
		fieldName:     src.Name,
		fieldClientID: src.ClientID,
		fieldAddr:     src.Addr,
		fieldPort:     src.Port,
		fieldParams:   src.Params,
		fieldUserName: src.UserName,
		fieldPassword: src.Password,
	}
	for i := range f.inputs {
		ti := newInput("")
		ti.SetValue(values[i])
		f.inputs[i] = ti
	}
	f.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	f.credentials = src.UseCredentials
	f.focus(0)
	return f
}

func (f *brokerForm) focus(i int) {
	f.inputs[f.cursor].Blur()
	f.cursor = (i + fieldCount) % fieldCount
	if f.cursor != fieldCredentials {
		f.inputs[f.cursor].Focus()
	}
}

func (f *brokerForm) value() domain.BrokerForm {
	return domain.BrokerForm{
		Name:           f.inputs[fieldName].Value(),
		ClientID:       f.inputs[fieldClientID].Value(),
		Addr:           f.inputs[fieldAddr].Value(),
		Port:           f.inputs[fieldPort].Value(),
		Params:         f.inputs[fieldParams].Value(),
		UseCredentials: f.credentials,
		UserName:       f.inputs[fieldUserName].Value(),
		Password:       f.inputs[fieldPassword].Value(),
	}
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.form
	switch {
	case key.Matches(msg, keys.Form.Cancel):
		m.form = nil
		return m, nil
	case key.Matches(msg, keys.Form.Confirm):
		b, err := f.value().Apply(f.broker)
		if err != nil {
			f.err = err.Error()
			return m, nil
		}
		m.post(intent.NewEditBroker(intent.SourceUser, b))
		m.form = nil
		m.setStatus("edited " + b.Name + ", press s to save")
		return m, nil
	case key.Matches(msg, keys.Form.Next):
		f.focus(f.cursor + 1)
		return m, nil
	case key.Matches(msg, keys.Form.Prev):
		f.focus(f.cursor - 1)
		return m, nil
	case f.cursor == fieldCredentials && key.Matches(msg, keys.Form.Toggle):
		f.credentials = !f.credentials
		return m, nil
	case f.cursor == fieldCredentials:
		return m, nil
	}
	var cmd tea.Cmd
	f.inputs[f.cursor], cmd = f.inputs[f.cursor].Update(msg)
	f.err = ""
	return m, cmd
}
