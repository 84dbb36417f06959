package ui

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestChartViewDrawRecordsLastSize(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init simulation screen: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(100, 30)

	v := newChartView("Population Trend")
	v.SetRect(0, 0, 100, 30)
	v.SetSnapshot(trendSnapshot([]SeriesPoint{
		{Year: 2019, Population: 328_000_000, Average: 328_000_000},
		{Year: 2020, Population: 331_000_000, Average: 329_500_000},
	}))

	v.Draw(screen)

	v.mu.Lock()
	w, h := v.lastW, v.lastH
	v.mu.Unlock()
	if w != 98 || h != 28 {
		t.Fatalf("expected inner rect 98x28 recorded, got %dx%d", w, h)
	}

	// FrameText renders at the drawn size, ignoring the fallback.
	text := v.FrameText(40, 12)
	if !strings.Contains(text, "Year") || !strings.Contains(text, "2020") {
		t.Fatalf("unexpected frame text:\n%s", text)
	}
}

func TestChartViewFrameTextFallsBackBeforeFirstDraw(t *testing.T) {
	v := newChartView("Population Trend")
	v.SetSnapshot(trendSnapshot(nil))

	text := v.FrameText(80, 24)
	if !strings.Contains(text, "waiting for records...") {
		t.Fatalf("expected waiting notice at fallback size, got:\n%s", text)
	}
}
