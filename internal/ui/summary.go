package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Summary is a titled list of key/value rows.
type Summary struct {
	Title string
	rows  [][2]string
}

// NewSummary creates an empty [Summary].
func NewSummary(title string) *Summary {
	return &Summary{Title: title}
}

// Add appends a row. Values are formatted with %v.
func (s *Summary) Add(key string, value any) *Summary {
	s.rows = append(s.rows, [2]string{key, fmt.Sprint(value)})
	return s
}

// Len reports the number of rows.
func (s *Summary) Len() int {
	return len(s.rows)
}

// Render draws the summary inside a bordered box with keys padded to a common width.
func (p *Palette) Render(s *Summary) string {
	width := 0
	for _, row := range s.rows {
		width = max(width, lipgloss.Width(row[0]))
	}

	lines := make([]string, 0, len(s.rows)+1)
	if s.Title != "" {
		lines = append(lines, p.Title(s.Title))
	}
	for _, row := range s.rows {
		key := row[0] + strings.Repeat(" ", width-lipgloss.Width(row[0]))
		lines = append(lines, p.key.Render(key)+"  "+row[1])
	}
	return p.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)) + "\n"
}
