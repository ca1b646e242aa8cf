package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Choice is what the user picked in the start menu.
type Choice int

const (
	ChoiceNone Choice = iota
	ChoiceStart
	ChoiceMemory
	ChoiceQuit
)

type item struct {
	title, desc string
	choice      Choice
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

type MenuModel struct {
	list   list.Model
	choice Choice
}

func NewMenuModel() MenuModel {
	items := []list.Item{
		item{title: "Start", desc: "Boot the emulator and let the agent play", choice: ChoiceStart},
		item{title: "Memory", desc: "Show what the agent remembers", choice: ChoiceMemory},
		item{title: "Quit", desc: "Exit", choice: ChoiceQuit},
	}

	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = lipgloss.NewStyle().Foreground(Green).Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(Green).PaddingLeft(1)
	d.Styles.SelectedDesc = d.Styles.SelectedTitle.Foreground(DimGreen)

	l := list.New(items, d, 50, 12)
	l.Title = "What next?"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = lipgloss.NewStyle().Foreground(Green).Bold(true).MarginLeft(2)

	return MenuModel{list: l}
}

func (m MenuModel) Choice() Choice { return m.choice }

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.choice = ChoiceQuit
			return m, tea.Quit
		case "enter":
			if it, ok := m.list.SelectedItem().(item); ok {
				m.choice = it.choice
			}
			return m, tea.Quit
		case "s":
			m.choice = ChoiceStart
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m MenuModel) View() string {
	return BoxStyle.Render(m.list.View()) + "\n" + HelpStyle.Render("  enter select • s start • q quit")
}

// RunMenu shows the start menu until the user picks something.
func RunMenu(in io.Reader, out io.Writer) (Choice, error) {
	p := tea.NewProgram(NewMenuModel(), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return ChoiceNone, fmt.Errorf("menu: %w", err)
	}
	return final.(MenuModel).Choice(), nil
}
