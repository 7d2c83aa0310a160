// Package ai wraps the report text generation: an executive team-health
// summary and setlist suggestions for the music department.
//
// Two providers are supported, Gemini (default) and Anthropic. The wrapper
// is stateless and never propagates provider failures: with no credential
// configured, or on any provider error, it degrades to deterministic canned
// text so callers can always render something.
package ai

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ebenezer-ucz/ebz/internal/report"
)

// Config selects and credentials the provider.
type Config struct {
	// Provider is "gemini" or "anthropic". Empty defaults to gemini.
	Provider string
	// APIKey is the provider credential. Empty means fallback-only mode.
	APIKey string
	// Model overrides the provider's default model name.
	Model string
}

// provider is a minimal completion interface; each backend adapts its SDK
// to it.
type provider interface {
	generate(ctx context.Context, system, prompt string) (string, error)
}

// Generator produces the report texts.
type Generator struct {
	provider provider // nil means canned fallbacks only
	logger   *log.Logger
}

// New builds a generator. A missing or placeholder credential, or a
// provider construction failure, yields a fallback-only generator rather
// than an error.
func New(cfg Config, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.New(os.Stderr, "[ai] ", log.LstdFlags)
	}
	g := &Generator{logger: logger}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" || strings.HasPrefix(key, "YOUR_") {
		return g
	}

	var (
		p   provider
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		p, err = newGeminiProvider(key, cfg.Model)
	case "anthropic":
		p = newAnthropicProvider(key, cfg.Model)
	default:
		logger.Printf("unknown AI provider %q, using canned fallbacks", cfg.Provider)
		return g
	}
	if err != nil {
		logger.Printf("AI provider unavailable, using canned fallbacks: %v", err)
		return g
	}
	g.provider = p
	return g
}

// TeamSummary returns a short executive summary of team health. Never
// fails; provider errors degrade to the deterministic fallback.
func (g *Generator) TeamSummary(ctx context.Context, s report.Summary) string {
	if g.provider == nil {
		return fallbackSummary(s)
	}
	prompt := fmt.Sprintf(
		"Provide a 3-sentence executive summary of praise team health. "+
			"Members: %d (%d active). Finance balance: %.2f. Songs: %d. "+
			"Open disciplinary cases: %d. Attendance rate: %.0f%%.",
		s.MemberCount, s.ActiveMembers, s.Balance, s.SongCount,
		s.OpenCases, s.AttendanceRate*100)
	text, err := g.provider.generate(ctx,
		"You are an expert consultant for church choir management.", prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			g.logger.Printf("summary generation failed: %v", err)
		}
		return fallbackSummary(s)
	}
	return text
}

// SuggestSetlist returns a short formatted setlist suggestion for a service
// theme, drawing on the song library. Never fails.
func (g *Generator) SuggestSetlist(ctx context.Context, theme string, titles []string) string {
	if g.provider == nil {
		return fallbackSetlist(theme, titles)
	}
	prompt := fmt.Sprintf(
		"The service theme is %q. Song library: %s. Suggest 4 songs with a one-line justification each.",
		theme, strings.Join(titles, ", "))
	text, err := g.provider.generate(ctx,
		"You are a professional music director for a high-energy African praise team.", prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			g.logger.Printf("setlist generation failed: %v", err)
		}
		return fallbackSetlist(theme, titles)
	}
	return text
}

func fallbackSummary(s report.Summary) string {
	financeStatus := "stable"
	if s.Balance < 0 {
		financeStatus = "concerning"
	}
	return fmt.Sprintf(
		"The praise team is currently %s with %d members and an active library of %d songs. "+
			"There are %d disciplinary items requiring attention to maintain group harmony. "+
			"Overall operations are consistent with the team's spiritual and administrative goals.",
		financeStatus, s.MemberCount, s.SongCount, s.OpenCases)
}

var defaultSetlist = []string{"Mwalilengwa Busuma", "Ebenezer", "Nshila sha kwa Lesa", "Ubushiku"}

var setlistSlots = []string{
	"Sets a high-energy tone of gratitude.",
	"Reinforces the service theme.",
	"Transitions the congregation into a prayerful state.",
	"A powerful conclusion to the worship experience.",
}

func fallbackSetlist(theme string, titles []string) string {
	songs := titles
	if len(songs) == 0 {
		songs = defaultSetlist
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "### Suggested Setlist for: %q\n", theme)
	for i, note := range setlistSlots {
		title := "Congregational choice"
		if i < len(songs) {
			title = songs[i]
		}
		fmt.Fprintf(&sb, "%d. **%s** - %s\n", i+1, title, note)
	}
	sb.WriteString("\n*Note: Suggestions generated via local heuristic logic.*")
	return sb.String()
}
