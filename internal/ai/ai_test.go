package ai

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/ebenezer-ucz/ebz/internal/report"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// stubProvider returns canned output or an error.
type stubProvider struct {
	text string
	err  error
}

func (p *stubProvider) generate(_ context.Context, _, _ string) (string, error) {
	return p.text, p.err
}

func TestNewWithoutCredentialIsFallbackOnly(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty key", Config{Provider: "gemini"}},
		{"placeholder key", Config{Provider: "gemini", APIKey: "YOUR_API_KEY_HERE"}},
		{"unknown provider", Config{Provider: "cohere", APIKey: "real-key"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.cfg, quietLogger())
			if g.provider != nil {
				t.Error("Expected a fallback-only generator")
			}
		})
	}
}

func TestTeamSummaryFallback(t *testing.T) {
	g := New(Config{}, quietLogger())

	healthy := report.Summary{MemberCount: 20, SongCount: 12, OpenCases: 1, Balance: 500}
	text := g.TeamSummary(context.Background(), healthy)
	if !strings.Contains(text, "stable") {
		t.Errorf("Expected 'stable' for a positive balance, got %q", text)
	}
	if !strings.Contains(text, "20 members") {
		t.Errorf("Expected member count in summary, got %q", text)
	}

	broke := report.Summary{MemberCount: 20, Balance: -50}
	text = g.TeamSummary(context.Background(), broke)
	if !strings.Contains(text, "concerning") {
		t.Errorf("Expected 'concerning' for a negative balance, got %q", text)
	}
}

func TestTeamSummaryProviderErrorFallsBack(t *testing.T) {
	g := &Generator{provider: &stubProvider{err: errors.New("quota exceeded")}, logger: quietLogger()}
	text := g.TeamSummary(context.Background(), report.Summary{MemberCount: 5})
	if !strings.Contains(text, "5 members") {
		t.Errorf("Expected fallback summary on provider error, got %q", text)
	}

	// Blank provider output falls back too.
	g = &Generator{provider: &stubProvider{text: "  \n"}, logger: quietLogger()}
	text = g.TeamSummary(context.Background(), report.Summary{MemberCount: 5})
	if !strings.Contains(text, "5 members") {
		t.Errorf("Expected fallback summary on blank output, got %q", text)
	}
}

func TestTeamSummaryUsesProvider(t *testing.T) {
	g := &Generator{provider: &stubProvider{text: "All is well."}, logger: quietLogger()}
	text := g.TeamSummary(context.Background(), report.Summary{})
	if text != "All is well." {
		t.Errorf("Expected provider output, got %q", text)
	}
}

func TestSuggestSetlistFallback(t *testing.T) {
	g := New(Config{}, quietLogger())

	titles := []string{"Song A", "Song B", "Song C", "Song D", "Song E"}
	text := g.SuggestSetlist(context.Background(), "Thanksgiving", titles)
	if !strings.Contains(text, "Thanksgiving") {
		t.Errorf("Expected theme in setlist, got %q", text)
	}
	for _, title := range titles[:4] {
		if !strings.Contains(text, title) {
			t.Errorf("Expected %q in setlist, got %q", title, text)
		}
	}
	if strings.Contains(text, "Song E") {
		t.Error("Expected only 4 suggestions")
	}
	if !strings.Contains(text, "local heuristic") {
		t.Error("Expected the fallback note in canned output")
	}
}

func TestSuggestSetlistEmptyLibraryUsesDefaults(t *testing.T) {
	g := New(Config{}, quietLogger())
	text := g.SuggestSetlist(context.Background(), "Harvest", nil)
	if !strings.Contains(text, "Ebenezer") {
		t.Errorf("Expected default repertoire when the library is empty, got %q", text)
	}
}

func TestSuggestSetlistShortLibraryPadsSlots(t *testing.T) {
	g := New(Config{}, quietLogger())
	text := g.SuggestSetlist(context.Background(), "Praise", []string{"Only One"})
	if !strings.Contains(text, "Only One") {
		t.Errorf("Expected the single library song, got %q", text)
	}
	if !strings.Contains(text, "Congregational choice") {
		t.Errorf("Expected padded slots for a short library, got %q", text)
	}
}
