package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/surge-downloader/m3u8dl/internal/engine"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
)

// ErrSelectionCancelled is returned when the user leaves the variant picker without choosing
var ErrSelectionCancelled = errors.New("variant selection cancelled")

// PickerModel lets the user choose one variant of a master playlist
type PickerModel struct {
	variants  []types.Variant
	order     []int // Variant indices, highest bandwidth first
	cursor    int
	chosen    int
	cancelled bool
}

// NewPickerModel creates a picker with the highest bandwidth variant preselected
func NewPickerModel(variants []types.Variant) PickerModel {
	return PickerModel{
		variants: variants,
		order:    engine.SortedByBandwidth(variants),
		chosen:   -1,
	}
}

func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update handles navigation keys
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.order)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.order) > 0 {
			m.chosen = m.order[m.cursor]
		}
		return m, tea.Quit
	case "q", "esc", "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m PickerModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Select a stream"))
	b.WriteString("\n\n")
	for pos, idx := range m.order {
		line := fmt.Sprintf("%2d. %s", idx, engine.DescribeVariant(m.variants[idx]))
		if pos == m.cursor {
			b.WriteString(SelectedItemStyle.Render("> " + line))
		} else {
			b.WriteString(ItemStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("↑/↓ move · enter select · q cancel"))
	return AppStyle.Render(b.String())
}

// Choice returns the chosen variant index
func (m PickerModel) Choice() (int, error) {
	if m.cancelled || m.chosen < 0 {
		return -1, ErrSelectionCancelled
	}
	return m.chosen, nil
}

// PickVariant runs the interactive picker on the terminal
func PickVariant(variants []types.Variant) (int, error) {
	if len(variants) == 1 {
		return 0, nil
	}
	final, err := tea.NewProgram(NewPickerModel(variants)).Run()
	if err != nil {
		return -1, err
	}
	picker, ok := final.(PickerModel)
	if !ok {
		return -1, fmt.Errorf("unexpected picker model %T", final)
	}
	return picker.Choice()
}
