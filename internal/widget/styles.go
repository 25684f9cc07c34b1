package widget

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("25")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	botStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("35")).Bold(true)

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Border(lipgloss.NormalBorder(), false, true).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedOptionStyle = optionStyle.
				Foreground(lipgloss.Color("231")).
				Background(lipgloss.Color("25")).
				BorderForeground(lipgloss.Color("25"))

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	frameStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("25"))
)
