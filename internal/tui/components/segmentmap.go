package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SegmentStatus is the state of one playlist segment in the map
type SegmentStatus uint8

const (
	SegmentPending SegmentStatus = iota
	SegmentFetched
	SegmentCached
)

var (
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#44475a"))
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff79c6"))
	fetchedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b"))
	cachedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd"))
)

const block = "■"

// SegmentMapModel visualizes which segments are on disk as a grid of blocks.
// When there are more segments than blocks, each block covers a contiguous range.
type SegmentMapModel struct {
	Segments []SegmentStatus
	Width    int // UI render width (columns * 2)
	Height   int // Rows, clamped to [minRows, maxRows]
	MinRows  int
	MaxRows  int
}

// NewSegmentMapModel creates a segment map visualization
func NewSegmentMapModel(segments []SegmentStatus, width, height int) SegmentMapModel {
	return SegmentMapModel{Segments: segments, Width: width, Height: height, MinRows: 2, MaxRows: 5}
}

// Blocks downsamples the segments to the visible grid size
func (m SegmentMapModel) Blocks() ([]BlockState, int) {
	n := len(m.Segments)
	if n == 0 {
		return nil, 0
	}

	cols := m.Width / 2
	if cols < 1 {
		cols = 1
	}
	rows := m.Height
	if rows < m.MinRows {
		rows = m.MinRows
	}
	if m.MaxRows > 0 && rows > m.MaxRows {
		rows = m.MaxRows
	}

	target := rows * cols
	if n < target {
		target = n
	}

	blocks := make([]BlockState, target)
	for i := 0; i < target; i++ {
		start := i * n / target
		end := (i + 1) * n / target
		if end <= start {
			end = start + 1
		}

		var done, cached int
		for _, s := range m.Segments[start:end] {
			switch s {
			case SegmentFetched:
				done++
			case SegmentCached:
				done++
				cached++
			}
		}

		switch {
		case done == 0:
			blocks[i] = BlockPending
		case done < end-start:
			blocks[i] = BlockPartial
		case cached == done:
			blocks[i] = BlockCached
		default:
			blocks[i] = BlockFetched
		}
	}
	return blocks, cols
}

// BlockState is the rendered state of one grid block
type BlockState uint8

const (
	BlockPending BlockState = iota
	BlockPartial
	BlockFetched
	BlockCached
)

// View renders the segment grid
func (m SegmentMapModel) View() string {
	blocks, cols := m.Blocks()
	if len(blocks) == 0 {
		return ""
	}

	var s strings.Builder
	for i, b := range blocks {
		if i > 0 && i%cols == 0 {
			s.WriteRune('\n')
		} else if i > 0 {
			s.WriteRune(' ')
		}

		switch b {
		case BlockFetched:
			s.WriteString(fetchedStyle.Render(block))
		case BlockCached:
			s.WriteString(cachedStyle.Render(block))
		case BlockPartial:
			s.WriteString(partialStyle.Render(block))
		default:
			s.WriteString(pendingStyle.Render(block))
		}
	}
	return s.String()
}
