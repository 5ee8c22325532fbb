package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/surge-downloader/m3u8dl/internal/engine/types"
)

func pickerVariants() []types.Variant {
	return []types.Variant{
		{URI: "low/index.m3u8", Bandwidth: 400000},
		{URI: "high/index.m3u8", Bandwidth: 2500000, Resolution: "1280x720"},
		{URI: "mid/index.m3u8", Bandwidth: 1200000},
	}
}

func pressKey(t *testing.T, m PickerModel, key tea.KeyMsg) PickerModel {
	t.Helper()
	next, _ := m.Update(key)
	pm, ok := next.(PickerModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return pm
}

func TestPicker_DefaultsToHighestBandwidth(t *testing.T) {
	m := NewPickerModel(pickerVariants())
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	got, err := m.Choice()
	if err != nil {
		t.Fatalf("Choice() error: %v", err)
	}
	if got != 1 {
		t.Errorf("Choice() = %d, want 1 (highest bandwidth)", got)
	}
}

func TestPicker_Navigation(t *testing.T) {
	m := NewPickerModel(pickerVariants())
	down := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")}
	m = pressKey(t, m, down)
	m = pressKey(t, m, down)
	m = pressKey(t, m, down) // clamps at the last entry
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	got, err := m.Choice()
	if err != nil {
		t.Fatalf("Choice() error: %v", err)
	}
	if got != 2 {
		t.Errorf("Choice() = %d, want 2 (middle bandwidth)", got)
	}
}

func TestPicker_Cancel(t *testing.T) {
	m := NewPickerModel(pickerVariants())
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if _, err := m.Choice(); !errors.Is(err, ErrSelectionCancelled) {
		t.Errorf("Choice() error = %v, want ErrSelectionCancelled", err)
	}
}

func TestPicker_View(t *testing.T) {
	view := NewPickerModel(pickerVariants()).View()
	high := strings.Index(view, "2500 kbps")
	low := strings.Index(view, "400 kbps")
	if high < 0 || low < 0 || high > low {
		t.Errorf("variants not listed highest first:\n%s", view)
	}
}

func TestPickVariant_SingleVariant(t *testing.T) {
	got, err := PickVariant([]types.Variant{{URI: "only.m3u8"}})
	if err != nil || got != 0 {
		t.Errorf("PickVariant() = %d, %v; want 0, nil", got, err)
	}
}
