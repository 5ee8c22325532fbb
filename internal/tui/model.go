package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/surge-downloader/m3u8dl/internal/engine/events"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/tui/components"
)

// Phase is the step a run is currently in
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseFetching
	PhaseMerging
	PhaseTranscoding
	PhaseDone
	PhaseFailed
)

// RunModel renders the progress of a single download run
type RunModel struct {
	URL      string
	CacheDir string
	Output   string

	phase    Phase
	segments []components.SegmentStatus
	logs     []string

	width  int
	height int

	progress progress.Model

	// Hybrid architecture: events over a channel + polling the shared atomic state
	events <-chan any
	state  *types.ProgressState
	cancel context.CancelFunc

	result       *events.RunCompleteMsg
	transcoded   string
	transcodeErr error
	err          error
	startTime    time.Time
}

// tickMsg drives polling of the shared progress state
type tickMsg time.Time

// channelClosedMsg is delivered once the event channel is closed
type channelClosedMsg struct{}

// NewRunModel creates a model fed by ch. cancel is called when the user quits early.
func NewRunModel(url string, ch <-chan any, cancel context.CancelFunc) RunModel {
	return RunModel{
		URL:       url,
		phase:     PhaseLoading,
		width:     DefaultWidth,
		progress:  progress.New(progress.WithDefaultGradient()),
		events:    ch,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func (m RunModel) Init() tea.Cmd {
	return tea.Batch(listenForActivity(m.events), tickCmd())
}

func listenForActivity(sub <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return channelClosedMsg{}
		}
		return msg
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Err returns the run error, if the run failed
func (m RunModel) Err() error {
	return m.err
}

// Phase returns the current step of the run
func (m RunModel) Phase() Phase {
	return m.phase
}

func (m *RunModel) addLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > MaxLogLines {
		m.logs = m.logs[len(m.logs)-MaxLogLines:]
	}
}
