package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/palaver/pkg/chat"
	"github.com/go-go-golems/palaver/pkg/notify"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/errors"
)

const defaultWidth = 80

// Model is the chat view. It renders the active conversation from store
// snapshots and sends everything the user does through the coordinator.
type Model struct {
	ctx     context.Context
	store   *store.Store
	coord   *chat.Coordinator
	watcher *Watcher

	// last snapshot taken after a StateChangedMsg
	state *store.State

	viewport viewport.Model
	textArea textarea.Model
	spinner  spinner.Model
	help     help.Model

	keyMap KeyMap
	style  *Style
	notice *notify.Notification

	width  int
	height int
}

func NewModel(ctx context.Context, st *store.Store, coord *chat.Coordinator) Model {
	ret := Model{
		ctx:      ctx,
		store:    st,
		coord:    coord,
		watcher:  NewWatcher(st),
		state:    st.Snapshot(),
		viewport: viewport.New(0, 0),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
		keyMap:   DefaultKeyMap,
		style:    DefaultStyles(),
	}

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Send a message..."
	ret.textArea.ShowLineNumbers = false
	ret.textArea.SetHeight(3)
	ret.textArea.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ret.textArea.Focus()

	lipgloss.SetHasDarkBackground(ret.state.UI.ColorScheme != store.ColorSchemeLight)

	ret.updateKeyBindings()
	ret.refresh()

	return ret
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.watcher.Wait())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			m.coord.AbortCurrentRequest()
			m.watcher.Close()
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.CancelCompletion):
			m.coord.AbortCurrentRequest()

		case key.Matches(msg, m.keyMap.DismissError):
			m.notice = nil
			m.updateKeyBindings()
			m.recomputeSize()

		case key.Matches(msg, m.keyMap.SubmitMessage):
			m.submit()

		case key.Matches(msg, m.keyMap.Regenerate):
			if _, err := m.coord.RegenerateLast(m.ctx); err != nil {
				m.setError(err)
			}

		case key.Matches(msg, m.keyMap.NewConversation):
			if _, err := m.store.AddConversation(nil); err != nil {
				m.setError(err)
			}

		case key.Matches(msg, m.keyMap.PrevConversation):
			m.cycleConversation(-1)

		case key.Matches(msg, m.keyMap.NextConversation):
			m.cycleConversation(1)

		case key.Matches(msg, m.keyMap.ScrollUp):
			m.viewport.HalfViewUp()

		case key.Matches(msg, m.keyMap.ScrollDown):
			m.viewport.HalfViewDown()

		case key.Matches(msg, m.keyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.recomputeSize()

		default:
			m.textArea, cmd = m.textArea.Update(msg)
			cmds = append(cmds, cmd)
		}

	case StateChangedMsg:
		m.state = m.store.Snapshot()
		m.updateKeyBindings()
		m.refresh()
		cmds = append(cmds, m.watcher.Wait())

	case NotificationMsg:
		n := msg.Notification
		m.notice = &n
		m.updateKeyBindings()
		m.recomputeSize()

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.state.IsLoading() {
			m.refresh()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recomputeSize()

	default:
		m.textArea, cmd = m.textArea.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) updateKeyBindings() {
	loading := m.state.IsLoading()
	m.keyMap.SubmitMessage.SetEnabled(!loading)
	m.keyMap.Regenerate.SetEnabled(!loading)
	m.keyMap.CancelCompletion.SetEnabled(loading)
	m.keyMap.DismissError.SetEnabled(!loading && m.notice != nil)
}

func (m *Model) submit() {
	text := m.textArea.Value()
	if strings.TrimSpace(text) == "" {
		return
	}
	if _, err := m.coord.SubmitText(m.ctx, text); err != nil {
		m.setError(err)
		return
	}
	m.notice = nil
	m.textArea.Reset()
	m.updateKeyBindings()
}

func (m *Model) setError(err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, chat.ErrMissingCredential):
		msg = "no API key configured, run `palaver key set`"
	case errors.Is(err, chat.ErrNothingToRegenerate):
		msg = "there is no response to regenerate"
	}
	n := notify.Error(msg)
	m.notice = &n
	m.updateKeyBindings()
	m.recomputeSize()
}

func (m *Model) cycleConversation(delta int) {
	convs := m.state.Conversations
	if len(convs) < 2 || m.state.ActiveConversationID == nil {
		return
	}
	idx := 0
	for i, c := range convs {
		if c.ID == *m.state.ActiveConversationID {
			idx = i
			break
		}
	}
	next := (idx + delta + len(convs)) % len(convs)
	if err := m.store.SetActiveConversation(convs[next].ID); err != nil {
		m.setError(err)
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.messageView())
	m.viewport.GotoBottom()
}

func (m *Model) recomputeSize() {
	headerHeight := lipgloss.Height(m.headerView())
	inputHeight := lipgloss.Height(m.inputView())
	helpHeight := lipgloss.Height(m.help.View(m.keyMap))

	newHeight := m.height - headerHeight - inputHeight - helpHeight - 2
	if newHeight < 0 {
		newHeight = 0
	}
	m.viewport.Width = m.width
	m.viewport.Height = newHeight
	m.viewport.YPosition = headerHeight + 1

	m.textArea.SetWidth(m.contentWidth())
	m.help.Width = m.width

	m.refresh()
}

func (m Model) contentWidth() int {
	w := m.width
	if w <= 0 {
		w = defaultWidth
	}
	h, _ := m.style.Assistant.GetFrameSize()
	if w-h < 10 {
		return 10
	}
	return w - h
}

func (m Model) headerView() string {
	active := m.state.ActiveConversation()
	if active == nil {
		return m.style.Header.Render("palaver")
	}

	idx := 0
	for i, c := range m.state.Conversations {
		if c.ID == active.ID {
			idx = i
		}
	}
	header := fmt.Sprintf("%s  [%d/%d]  %s",
		active.TitleOr("New conversation"), idx+1, len(m.state.Conversations), m.state.Settings.Model)
	if active.TokensUsed != nil {
		header += fmt.Sprintf("  %d tokens", *active.TokensUsed)
	}
	return m.style.Header.Render(header)
}

func (m Model) messageView() string {
	active := m.state.ActiveConversation()
	if active == nil {
		return ""
	}

	width := m.contentWidth()
	var sb strings.Builder
	for _, msg := range active.Messages {
		text := msg.Content
		if msg.Loading {
			text = strings.TrimRight(text+" "+m.spinner.View(), " ")
		}
		v := m.style.Role.Render(string(msg.Role)) + "\n" + wordwrap.String(text, width-2)
		sb.WriteString(m.style.messageStyle(msg.Role).Width(width).Render(v))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) inputView() string {
	v := m.style.Input.Render(m.textArea.View())
	if m.notice == nil {
		return v
	}
	style := m.style.Info
	if m.notice.Severity == notify.SeverityError || m.notice.Severity == notify.SeverityWarning {
		style = m.style.Error
	}
	return style.Render(m.notice.Message) + "\n" + v
}

func (m Model) View() string {
	return m.headerView() + "\n" +
		m.viewport.View() + "\n" +
		m.inputView() + "\n" +
		m.help.View(m.keyMap)
}

// Close stops watching the store.
func (m Model) Close() {
	m.watcher.Close()
}

var _ tea.Model = Model{}

