package ui

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"poptrend/config"
)

func ansiTestConfig() config.UIConfig {
	return config.UIConfig{
		Mode:        "ansi",
		RefreshMS:   0, // no background loop in tests
		ChartWidth:  80,
		ChartHeight: 20,
		PaneLines:   config.PaneLinesConfig{Stats: 3, Records: 3, Rejects: 2, System: 2},
	}
}

func TestNewANSIConsoleDisabledWhenRenderNotAllowed(t *testing.T) {
	if s := NewANSIConsole(ansiTestConfig(), false); s != nil {
		t.Fatalf("expected nil surface when rendering is not allowed")
	}
}

func TestANSIConsoleRendersChartAndPanes(t *testing.T) {
	s := NewANSIConsole(ansiTestConfig(), true)
	c, ok := s.(*ansiConsole)
	if !ok {
		t.Fatalf("expected *ansiConsole, got %T", s)
	}
	var buf bytes.Buffer
	c.out = &buf

	c.SetChart(trendSnapshot([]SeriesPoint{
		{Year: 2019, Population: 328_000_000, Average: 328_000_000},
		{Year: 2020, Population: 331_000_000, Average: 329_500_000},
	}))
	c.SetStats([]string{"Records: 2", "Rejected: 0"})
	for i := 1; i <= 4; i++ {
		c.AppendAccepted(fmt.Sprintf("record %d", i))
	}
	c.AppendRejected("decode error: bad payload")
	c.AppendSystem("consumer started")

	c.render()
	out := buf.String()

	if !strings.Contains(out, "\x1b[2J\x1b[H") {
		t.Fatalf("expected clear-screen sequence, got:\n%q", out)
	}
	if !strings.Contains(out, "\x1b[90m") || !strings.Contains(out, "\x1b[36m") {
		t.Fatalf("expected both series colors, got:\n%q", out)
	}
	for _, want := range []string{"---- Records ----", "---- Rejected ----", "---- System ----",
		"Records: 2", "decode error: bad payload", "consumer started"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	// The records ring holds three lines, so the first was evicted.
	if strings.Contains(out, "record 1") {
		t.Fatalf("expected record 1 evicted from the 3-line pane, got:\n%s", out)
	}
	if !strings.Contains(out, "record 2") || !strings.Contains(out, "record 4") {
		t.Fatalf("expected records 2..4 retained, got:\n%s", out)
	}
}

func TestANSIConsoleHonorsNoColorAndNoClear(t *testing.T) {
	cfg := ansiTestConfig()
	cfg.NoColor = true
	cfg.NoClear = true

	c := NewANSIConsole(cfg, true).(*ansiConsole)
	var buf bytes.Buffer
	c.out = &buf

	c.SetChart(trendSnapshot([]SeriesPoint{{Year: 2020, Population: 331_000_000, Average: 331_000_000}}))
	c.render()

	if strings.Contains(buf.String(), "\x1b") {
		t.Fatalf("expected no escape sequences, got:\n%q", buf.String())
	}
}

func TestANSIConsoleSetStatsBounded(t *testing.T) {
	c := NewANSIConsole(ansiTestConfig(), true).(*ansiConsole)

	c.SetStats([]string{"one", "two", "three", "four"})

	frame := c.FinalFrame()
	if !strings.Contains(frame, "three") {
		t.Fatalf("expected third stats line kept, got:\n%s", frame)
	}
	if strings.Contains(frame, "four") {
		t.Fatalf("expected fourth stats line dropped by the 3-line pane, got:\n%s", frame)
	}
}

func TestANSIConsoleFinalFrameIsPlainText(t *testing.T) {
	c := NewANSIConsole(ansiTestConfig(), true).(*ansiConsole)
	c.SetChart(trendSnapshot([]SeriesPoint{
		{Year: 2019, Population: 328_000_000, Average: 328_000_000},
		{Year: 2020, Population: 331_000_000, Average: 329_500_000},
	}))
	c.SetStats([]string{"Records: 2"})

	frame := c.FinalFrame()
	if strings.Contains(frame, "\x1b") {
		t.Fatalf("expected plain text final frame, got:\n%q", frame)
	}
	for _, want := range []string{"Year", "2020", "Records: 2"} {
		if !strings.Contains(frame, want) {
			t.Fatalf("expected %q in final frame, got:\n%s", want, frame)
		}
	}
}

func TestANSIConsoleStopIdempotent(t *testing.T) {
	c := NewANSIConsole(ansiTestConfig(), true).(*ansiConsole)

	c.Stop()
	c.Stop()

	select {
	case <-c.Done():
	default:
		t.Fatalf("expected Done to unblock after Stop")
	}
}

func TestANSIConsoleSystemWriterSplitsLines(t *testing.T) {
	c := NewANSIConsole(ansiTestConfig(), true).(*ansiConsole)

	w := c.SystemWriter()
	fmt.Fprintf(w, "first line\nsecond")
	fmt.Fprintf(w, " half\n")

	var buf bytes.Buffer
	c.out = &buf
	c.render()

	out := buf.String()
	if !strings.Contains(out, "first line") || !strings.Contains(out, "second half") {
		t.Fatalf("expected buffered writer to split lines, got:\n%s", out)
	}
}
