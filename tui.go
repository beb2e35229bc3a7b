package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	leafColor  = lipgloss.Color("#15803D")
	mintColor  = lipgloss.Color("#86EFAC")
	errorColor = lipgloss.Color("#EF4444")
	mutedColor = lipgloss.Color("#6B7280")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(leafColor).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(leafColor).
			Padding(0, 1)

	chatPanelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mintColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	ownNickStyle    = lipgloss.NewStyle().Foreground(leafColor).Bold(true)
	peerNickStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	noticeStyle     = lipgloss.NewStyle().Foreground(errorColor).Italic(true)
	clockStyle      = lipgloss.NewStyle().Foreground(mutedColor).Faint(true)
	tuiHelpFooter   = "Enter send | Ctrl+H help | Esc quit"
	tuiHelpContents = `LanChat

  Type and press Enter to send a message to everyone on the local network.
  Peers are found automatically via mDNS.

  Ctrl+H        toggle this help
  Ctrl+C / Esc  quit
  /quit         quit`
)

type chatLine struct {
	Message ChatMessage
	Own     bool
	Notice  string
}

// UI is the bubbletea model of the terminal host.
type UI struct {
	ctx      context.Context
	nickname string
	selfID   string
	plugin   *Plugin
	sink     *ChannelSink
	chime    *Chime

	lines    []chatLine
	viewport viewport.Model
	textarea textarea.Model
	ready    bool
	showHelp bool
	width    int
	height   int
	clock    time.Time
}

type tickMsg time.Time

type eventMsg struct{ Event }

type sentMsg struct {
	Message ChatMessage
	Err     error
}

func NewUI(ctx context.Context, nickname, selfID string, plugin *Plugin, sink *ChannelSink, chime *Chime) *UI {
	ta := textarea.New()
	ta.Placeholder = "Say something..."
	ta.Focus()
	ta.Prompt = "> "
	ta.CharLimit = 1000
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	return &UI{
		ctx:      ctx,
		nickname: nickname,
		selfID:   selfID,
		plugin:   plugin,
		sink:     sink,
		chime:    chime,
		viewport: viewport.New(80, 20),
		textarea: ta,
		clock:    time.Now(),
	}
}

func (ui *UI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, ui.waitForEvent(), ui.tick())
}

func (ui *UI) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-ui.sink.Events():
			return eventMsg{ev}
		case <-ui.ctx.Done():
			return nil
		}
	}
}

func (ui *UI) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// send runs the plugin operation off the update loop.
func (ui *UI) send(content string) tea.Cmd {
	m := ChatMessage{Content: content, Nickname: ui.nickname, Timestamp: time.Now().UnixMilli()}
	return func() tea.Msg {
		payload, err := json.Marshal(m)
		if err == nil {
			err = ui.plugin.Invoke(ui.ctx, "send", payload)
		}
		return sentMsg{Message: m, Err: err}
	}
}

func (ui *UI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// our keys never reach the textarea, which binds ctrl+h to backspace
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return ui, tea.Quit
		case tea.KeyCtrlH:
			ui.showHelp = !ui.showHelp
			ui.refresh()
			return ui, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(ui.textarea.Value())
			ui.textarea.Reset()
			switch {
			case input == "":
				return ui, nil
			case input == "/quit" || input == "/exit":
				return ui, tea.Quit
			}
			return ui, ui.send(input)
		}
	}

	var taCmd, vpCmd tea.Cmd
	ui.textarea, taCmd = ui.textarea.Update(msg)
	ui.viewport, vpCmd = ui.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		ui.width, ui.height = msg.Width, msg.Height
		ui.ready = true
		ui.viewport.Width = ui.width - 4
		ui.viewport.Height = ui.height - 3 - 4 - 1
		ui.textarea.SetWidth(ui.width - 6)
		ui.refresh()

	case eventMsg:
		if rm, ok := msg.Event.(ReceivedMessage); ok {
			ui.chime.Play()
			ui.append(chatLine{Message: rm.ChatMessage})
		}
		return ui, ui.waitForEvent()

	case sentMsg:
		if msg.Err != nil {
			ui.append(chatLine{Notice: fmt.Sprintf("not sent: %v", msg.Err)})
		} else {
			// the node drops our own publications, so echo locally
			ui.append(chatLine{Message: msg.Message, Own: true})
		}
		return ui, nil

	case tickMsg:
		ui.clock = time.Time(msg)
		return ui, ui.tick()
	}

	return ui, tea.Batch(taCmd, vpCmd)
}

func (ui *UI) append(l chatLine) {
	ui.lines = append(ui.lines, l)
	ui.refresh()
	ui.viewport.GotoBottom()
}

func (ui *UI) refresh() {
	if ui.showHelp {
		ui.viewport.SetContent(tuiHelpContents)
		return
	}
	rendered := make([]string, 0, len(ui.lines))
	for _, l := range ui.lines {
		rendered = append(rendered, renderLine(l))
	}
	ui.viewport.SetContent(strings.Join(rendered, "\n"))
}

func renderLine(l chatLine) string {
	if l.Notice != "" {
		return noticeStyle.Render(l.Notice)
	}
	nick := peerNickStyle.Render(l.Message.Nickname)
	if l.Own {
		nick = ownNickStyle.Render(l.Message.Nickname)
	}
	return fmt.Sprintf("%s %s %s", clockStyle.Render(formatClock(l.Message.Timestamp)), nick, l.Message.Content)
}

func (ui *UI) View() string {
	if !ui.ready {
		return "\n  Joining the local chat...\n"
	}

	header := headerStyle.Render("LanChat, serverless chat for your local network")
	chat := chatPanelStyle.Width(ui.width - 2).Height(ui.viewport.Height).Render(ui.viewport.View())
	input := inputStyle.Width(ui.width - 2).Render(ui.textarea.View())

	left := fmt.Sprintf("%s @ %s", ui.nickname, shortID(ui.selfID))
	right := fmt.Sprintf("%s | %s", tuiHelpFooter, ui.clock.Format("15:04:05"))
	gap := max(ui.width-4-lipgloss.Width(left)-lipgloss.Width(right), 0)
	status := statusBarStyle.Width(ui.width - 2).Render(left + strings.Repeat(" ", gap) + right)

	return lipgloss.JoinVertical(lipgloss.Left, header, chat, status, input)
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + ".." + id[len(id)-4:]
}

// runTUI blocks until the user quits or ctx is cancelled.
func runTUI(ctx context.Context, ui *UI) error {
	p := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
