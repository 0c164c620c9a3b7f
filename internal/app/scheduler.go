package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/mqttdesk/internal/appdata"
)

// TransformMsg carries one scheduled transform to the UI goroutine.
type TransformMsg struct {
	Name      string
	Transform appdata.Transform
}

// Sender is the part of tea.Program the scheduler needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Scheduler delivers coordinator transforms to the Bubble Tea program.
// Send blocks until the program reads the message, so transforms from one
// goroutine reach Update in the order they were scheduled.
type Scheduler struct {
	sender Sender
}

// NewScheduler creates a scheduler sending to s, normally a *tea.Program.
func NewScheduler(s Sender) *Scheduler {
	return &Scheduler{sender: s}
}

// Schedule implements coordinator.Scheduler.
func (s *Scheduler) Schedule(name string, t appdata.Transform) {
	s.sender.Send(TransformMsg{Name: name, Transform: t})
}
