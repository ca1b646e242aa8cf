package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Core palette
	Green       = lipgloss.Color("#00FF41")
	BrightGreen = lipgloss.Color("#39FF14")
	MedGreen    = lipgloss.Color("#00C832")
	DarkGreen   = lipgloss.Color("#008F11")
	DimGreen    = lipgloss.Color("#003B00")
	Cyan        = lipgloss.Color("#00D4AA")
	Gold        = lipgloss.Color("#FFD700")
	Red         = lipgloss.Color("#FF4136")
	MidGray     = lipgloss.Color("#3a3a4e")
	LightGray   = lipgloss.Color("#aaaaaa")
	White       = lipgloss.Color("#e0e0e0")

	BannerStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(DarkGreen).
			Italic(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(DarkGreen).
			Padding(0, 1)

	// Cycle event labels
	CycleStyle = lipgloss.NewStyle().
			Background(DarkGreen).
			Foreground(lipgloss.Color("#0D0208")).
			Bold(true).
			Padding(0, 1)

	PlanStyle = lipgloss.NewStyle().
			Foreground(MedGreen).
			Bold(true)

	ObservationStyle = lipgloss.NewStyle().
				Foreground(Cyan)

	ReasoningStyle = lipgloss.NewStyle().
			Foreground(White).
			Italic(true)

	ActionStyle = lipgloss.NewStyle().
			Foreground(BrightGreen).
			Bold(true)

	MemoryStyle = lipgloss.NewStyle().
			Foreground(Gold)

	MutedStyle = lipgloss.NewStyle().
			Foreground(MidGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	OKStyle = lipgloss.NewStyle().
		Foreground(Green).
		Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(DimGreen)
)

// themes recolor the accent styles; "green" is the default palette above.
var themes = map[string]lipgloss.Color{
	"green": Green,
	"cyan":  Cyan,
	"gold":  Gold,
}

// ApplyTheme switches the accent color. Unknown names are ignored.
func ApplyTheme(name string) {
	c, ok := themes[name]
	if !ok {
		return
	}
	BannerStyle = BannerStyle.Foreground(c)
	ActionStyle = ActionStyle.Foreground(c)
	OKStyle = OKStyle.Foreground(c)
}

const Banner = `
   ██████╗ ██████╗  █████╗  ██████╗ ███████╗███╗   ██╗████████╗
  ██╔════╝ ██╔══██╗██╔══██╗██╔════╝ ██╔════╝████╗  ██║╚══██╔══╝
  ██║  ███╗██████╔╝███████║██║  ███╗█████╗  ██╔██╗ ██║   ██║
  ██║   ██║██╔══██╗██╔══██║██║   ██║██╔══╝  ██║╚██╗██║   ██║
  ╚██████╔╝██████╔╝██║  ██║╚██████╔╝███████╗██║ ╚████║   ██║
   ╚═════╝ ╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚═╝  ╚═══╝   ╚═╝
`

// RenderBanner returns the styled banner with a subtitle line.
func RenderBanner(subtitle string) string {
	return BannerStyle.Render(Banner) + "\n" + SubtitleStyle.Render("  "+subtitle) + "\n"
}
