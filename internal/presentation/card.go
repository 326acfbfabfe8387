package presentation

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/okian/zkpresence/internal/domain/model"
)

// IntentBaseURL is the tweet composer endpoint.
const IntentBaseURL = "https://twitter.com/intent/tweet?text="

const barWidth = 20

// Stat is one labelled value of the card.
type Stat struct {
	Key   string
	Label string
	Value int
}

// Stats lists the four card values in display order.
func Stats(r model.PresenceResult) []Stat {
	return []Stat{
		{Key: "consistency", Label: "zkConsistency", Value: r.Consistency},
		{Key: "effectiveness", Label: "zkEffectiveness", Value: r.Effectiveness},
		{Key: "unionmaxi", Label: "zkUnionMaxi", Value: r.UnionMaxi},
		{Key: "presence", Label: "zkPresence Score", Value: r.Score},
	}
}

// Percent formats a stat the way the card shows it.
func Percent(v int) string {
	return fmt.Sprintf("%d%%", v)
}

// RenderCard writes the stat card for r.
func RenderCard(w io.Writer, r model.PresenceResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "@%s\n", r.Username)
	fmt.Fprintf(&b, "%s\n\n", r.PFP)
	for _, s := range Stats(r) {
		fmt.Fprintf(&b, "%-17s %s %4s\n", s.Label, Bar(float64(s.Value), barWidth), Percent(s.Value))
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("render card: %w", err)
	}
	return nil
}

// Bar draws a width-cell bar filled to pct percent.
func Bar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	pct = clamp(pct, 0, 100)
	filled := int(pct*float64(width)/100 + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// ProgressLine formats an animation frame for a terminal line.
func ProgressLine(f Frame) string {
	return fmt.Sprintf("%s %3.0f%% %s", Bar(f.Progress, barWidth), f.Progress, f.Message)
}

// ShareText is the share message carrying the four card values.
func ShareText(r model.PresenceResult) string {
	return "My zkPresence stats in @union_build:\n\n" +
		"🧭 zkConsistency: " + Percent(r.Consistency) + "\n" +
		"⚡ zkEffectiveness: " + Percent(r.Effectiveness) + "\n" +
		"🫀 zkUnionMaxi: " + Percent(r.UnionMaxi) + "\n" +
		"🌐 zkPresence Score: " + Percent(r.Score) + "\n\n" +
		"Calculate your zkPresence: union-zkpresence.vercel.app"
}

// IntentURL returns the composer link prefilled with ShareText.
func IntentURL(r model.PresenceResult) string {
	return IntentBaseURL + encodeComponent(ShareText(r))
}

// encodeComponent percent-encodes s for a query value, using %20 for spaces.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
