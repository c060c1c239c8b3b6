package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/GZancewicz/web-conference/internal/roster"
)

const transcriptLines = 12

// Controller is what the room view drives: the surrounding session wires
// these to the transport and negotiation engine.
type Controller interface {
	SendChat(text string)
	ToggleAudio() bool
	ToggleVideo() bool
	ToggleScreenShare() (sharing bool, err error)
	Leave()
}

// Messages pushed into the program by the session dispatch loop.
type (
	// RosterMsg replaces the displayed roster.
	RosterMsg []roster.Entry

	// ChatMsg appends a line to the transcript.
	ChatMsg struct {
		From      string
		Text      string
		Timestamp time.Time
		Self      bool
	}

	// StatusMsg shows a transient status line.
	StatusMsg string

	// ErrMsg shows an error line.
	ErrMsg string

	// DisconnectedMsg ends the session view.
	DisconnectedMsg struct{}
)

// RoomModel is the interactive in-room view: roster, transcript, input.
type RoomModel struct {
	roomID   string
	selfName string
	ctrl     Controller

	input      textinput.Model
	entries    []roster.Entry
	transcript []string
	status     string

	audioOn  bool
	videoOn  bool
	sharing  bool
	quitting bool
}

func NewRoomModel(roomID, selfName string, audioOn, videoOn bool, ctrl Controller) RoomModel {
	ti := textinput.New()
	ti.Placeholder = "type a message and press enter"
	ti.CharLimit = 500
	ti.Focus()

	return RoomModel{
		roomID:   roomID,
		selfName: selfName,
		ctrl:     ctrl,
		input:    ti,
		audioOn:  audioOn,
		videoOn:  videoOn,
	}
}

func (m RoomModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			m.ctrl.Leave()
			return m, tea.Quit

		case tea.KeyCtrlA:
			m.audioOn = m.ctrl.ToggleAudio()
			return m, nil

		case tea.KeyCtrlV:
			m.videoOn = m.ctrl.ToggleVideo()
			return m, nil

		case tea.KeyCtrlS:
			sharing, err := m.ctrl.ToggleScreenShare()
			if err != nil {
				m.status = ErrorStyle.Render("screen share: " + err.Error())
				return m, nil
			}
			m.sharing = sharing
			return m, nil

		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.ctrl.SendChat(text)
				m.input.Reset()
			}
			return m, nil
		}

	case RosterMsg:
		m.entries = msg
		return m, nil

	case ChatMsg:
		name := msg.From
		if msg.Self {
			name = SelfStyle.Render(name)
		}
		line := fmt.Sprintf("%s %s: %s",
			MutedStyle.Render(msg.Timestamp.Format("15:04:05")), name, msg.Text)
		m.transcript = append(m.transcript, line)
		if len(m.transcript) > transcriptLines {
			m.transcript = m.transcript[len(m.transcript)-transcriptLines:]
		}
		return m, nil

	case StatusMsg:
		m.status = string(msg)
		return m, nil

	case ErrMsg:
		m.status = ErrorStyle.Render(string(msg))
		return m, nil

	case DisconnectedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m RoomModel) View() string {
	if m.quitting {
		return MutedStyle.Render("left room " + m.roomID + "\n")
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("room " + m.roomID))
	if m.sharing {
		b.WriteString("  " + WarningStyle.Render("[sharing screen]"))
	}
	b.WriteString("\n\n")
	b.WriteString(RenderRoster(m.selfName, m.audioOn, m.videoOn, m.entries))
	b.WriteString("\n\n")

	if len(m.transcript) == 0 {
		b.WriteString(MutedStyle.Render("no messages yet") + "\n")
	} else {
		b.WriteString(strings.Join(m.transcript, "\n") + "\n")
	}
	b.WriteString("\n" + m.input.View() + "\n")

	if m.status != "" {
		b.WriteString(m.status + "\n")
	}
	b.WriteString(MutedStyle.Render("ctrl+a mic · ctrl+v cam · ctrl+s share · esc leave") + "\n")
	return b.String()
}
