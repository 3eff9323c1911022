package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/repository"
)

// Recipient is one resolved roster member with its dispatch position
type Recipient struct {
	LeadID    int64
	Phone     string
	Name      string
	SendOrder int
}

// AudienceBuilder resolves an AudienceSpec against the lead directory into
// a shuffled roster. The shuffle decorrelates send order from database
// insertion order; it is an anti-pattern-detection measure, not an
// optimization.
type AudienceBuilder struct {
	leads repository.LeadRepository

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAudienceBuilder creates a builder over the given lead directory. The
// random source is injected so property tests can assert the permutation
// deterministically.
func NewAudienceBuilder(leads repository.LeadRepository, src rand.Source) *AudienceBuilder {
	return &AudienceBuilder{
		leads: leads,
		rng:   rand.New(src),
	}
}

// Build resolves the spec into a roster. Explicit ids are deduplicated
// (first occurrence wins) and ids without a usable phone are skipped
// silently. Returns ErrEmptyAudience when nothing remains.
func (b *AudienceBuilder) Build(ctx context.Context, spec models.AudienceSpec, branchScope int64) ([]Recipient, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audience spec: %w", err)
	}

	var leads []*models.Lead
	var err error

	switch spec.Mode {
	case models.AudienceModeExplicit:
		leads, err = b.leads.ByIDs(ctx, dedupe(spec.LeadIDs))
	case models.AudienceModeFilter:
		leads, err = b.leads.ByFilter(ctx, b.directoryFilter(*spec.Filter, branchScope), "id ASC", 0, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lead directory: %w", err)
	}

	roster := make([]Recipient, 0, len(leads))
	for _, lead := range leads {
		if lead == nil || !lead.HasUsablePhone() {
			continue
		}
		roster = append(roster, Recipient{
			LeadID: lead.ID,
			Phone:  *lead.Phone,
			Name:   lead.Name,
		})
	}
	if len(roster) == 0 {
		return nil, ErrEmptyAudience
	}

	b.shuffle(roster)
	for i := range roster {
		roster[i].SendOrder = i + 1
	}
	return roster, nil
}

func (b *AudienceBuilder) directoryFilter(f models.AudienceFilterSpec, branchScope int64) models.LeadFilter {
	lf := models.LeadFilter{
		Status:        f.Status,
		Source:        f.Source,
		Priority:      f.Priority,
		CityLike:      f.CityLike,
		CreatedAfter:  f.CreatedAfter,
		CreatedBefore: f.CreatedBefore,
		AssignedTo:    f.AssignedTo,
		BranchID:      f.BranchID,
		WithPhoneOnly: true,
	}
	// A branch-scoped campaign only reaches its own leads unless the filter
	// narrows further; branch 0 is the shared scope and sees everything.
	if lf.BranchID == nil && branchScope != 0 {
		lf.BranchID = &branchScope
	}
	return lf
}

// shuffle applies a uniform Fisher-Yates permutation
func (b *AudienceBuilder) shuffle(roster []Recipient) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(roster) - 1; i > 0; i-- {
		j := b.rng.Intn(i + 1)
		roster[i], roster[j] = roster[j], roster[i]
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
