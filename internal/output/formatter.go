package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// IsTTY reports whether both stdin and stdout are terminals
func IsTTY() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ConfigureColor picks the color profile for f. Output that is not a
// terminal gets plain ASCII so pipes and files stay free of escape codes.
func ConfigureColor(f *os.File) {
	if !isTerminal(f) || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(f).EnvColorProfile())
}

// depthColors cycles through tree guide colors, one per nesting level
var depthColors = []lipgloss.Color{
	"#4ccbf1", "#4dca7d", "#6ead26", "#f5c800", "#f89048",
	"#f46251", "#eb82bc", "#9f83e4", "#5084f3",
}

// ColorDepth colors text with the guide color of a tree depth
func ColorDepth(text string, depth int) string {
	return lipgloss.NewStyle().Foreground(depthColors[depth%len(depthColors)]).Render(text)
}

// ColorSHA colors a commit or object hash, abbreviated to 7 characters
func ColorSHA(sha string) string {
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("3")).
		Render(sha)
}

// ColorBranchName colors a branch name based on whether it's the selected one
func ColorBranchName(branchName string, isCurrent bool) string {
	if isCurrent {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Render(branchName + " (current)")
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Render(branchName)
}

// ColorPath colors a repository path
func ColorPath(path string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Render(path)
}

// ColorSuccess colors text green
func ColorSuccess(text string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("2")).
		Render(text)
}

// ColorDim makes text dim/gray
func ColorDim(text string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(text)
}
