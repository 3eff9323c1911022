// Package engine implements the outbound delivery engine: audience
// building, pacing, the resumable send worker, and progress fan-out.
package engine

import (
	"math/rand"
	"strings"
	"sync"
)

// RecipientContext carries the per-recipient values available to a template
type RecipientContext struct {
	Name    string
	Company string
	City    string
	Phone   string
	Branch  string
}

// TemplateResolver substitutes named placeholders into a message body and
// applies a light text variation meant to keep bulk sends from being exact
// duplicates of each other. No state, no I/O.
type TemplateResolver struct {
	mu  sync.Mutex
	rng *rand.Rand

	// Vary toggles the anti-duplicate variation step; tests turn it off
	Vary bool
}

// NewTemplateResolver creates a resolver with the given random source. The
// source is injected so tests can seed it deterministically.
func NewTemplateResolver(src rand.Source, vary bool) *TemplateResolver {
	return &TemplateResolver{
		rng:  rand.New(src),
		Vary: vary,
	}
}

// zero-width space; invisible to the reader but changes the byte sequence
const varyRune = "​"

// Resolve substitutes {{name}}, {{company}}, {{city}}, {{phone}} and
// {{branch}} with context values. Missing placeholders resolve to "".
func (t *TemplateResolver) Resolve(template string, rc RecipientContext) string {
	replacer := strings.NewReplacer(
		"{{name}}", rc.Name,
		"{{company}}", rc.Company,
		"{{city}}", rc.City,
		"{{phone}}", rc.Phone,
		"{{branch}}", rc.Branch,
	)
	out := replacer.Replace(template)

	if !t.Vary {
		return out
	}
	return t.vary(out)
}

// vary inserts zero-width characters after a random subset of spaces. The
// visible text is unchanged; stripping varyRune recovers the original.
func (t *TemplateResolver) vary(s string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		b.WriteRune(r)
		if r == ' ' && t.rng.Intn(3) == 0 {
			b.WriteString(varyRune)
		}
	}
	return b.String()
}
