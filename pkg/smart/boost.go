package smart

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/codeGROOVE-dev/dossier/pkg/correlation"
	"github.com/codeGROOVE-dev/dossier/pkg/emailintel"
	"github.com/codeGROOVE-dev/dossier/pkg/personintel"
	"github.com/codeGROOVE-dev/dossier/pkg/phoneintel"
	"github.com/codeGROOVE-dev/dossier/pkg/profile"
)

const (
	// minBoostConfidence is the correlation confidence a pair needs to boost its members.
	minBoostConfidence = 0.6
	maxBoost           = 0.1
	correlatedSuffix   = " (correlated with other matching entities)"
)

// Boost raises the confidence of candidates that correlate strongly with another
// candidate, then sorts all candidates by descending confidence. Each candidate takes
// the largest boost from any of its pairs. If the correlator panics, candidates are
// sorted unboosted.
func Boost(ctx context.Context, c Correlator, cands []*Candidate, logger *slog.Logger) []*Candidate {
	if c != nil && len(cands) > 1 {
		if boosts, ok := correlationBoosts(ctx, c, cands, logger); ok {
			for _, cand := range cands {
				if b, ok := boosts[cand.Identifier]; ok && b > 0 {
					cand.Confidence = min(1.0, cand.Confidence+b)
					cand.Reason += correlatedSuffix
				}
			}
		}
	}
	slices.SortStableFunc(cands, func(a, b *Candidate) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return cands
}

func correlationBoosts(ctx context.Context, c Correlator, cands []*Candidate, logger *slog.Logger) (boosts map[string]float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.WarnContext(ctx, "correlation failed, skipping boost", "error", r)
			boosts, ok = nil, false
		}
	}()

	boosts = make(map[string]float64)
	for _, s := range c.CorrelateProfiles(records(cands)) {
		if s.Confidence < minBoostConfidence {
			continue
		}
		b := min(s.Score*0.2, maxBoost)
		boosts[s.Entity1] = max(boosts[s.Entity1], b)
		boosts[s.Entity2] = max(boosts[s.Entity2], b)
	}
	return boosts, true
}

// records projects candidates into flat correlation records. Fields a candidate's data
// does not carry are left out.
func records(cands []*Candidate) []map[string]any {
	out := make([]map[string]any, len(cands))
	for i, c := range cands {
		r := map[string]any{"id": c.Identifier, "type": string(c.Type)}
		set := func(k, v string) {
			if v != "" {
				r[k] = v
			}
		}
		switch d := c.Data.(type) {
		case *profile.Profile:
			set("username", d.Username)
		case *emailintel.Result:
			set("email", d.Email)
		case *phoneintel.Result:
			set("phone", d.Phone)
			set("location", d.Location)
		case *personintel.Result:
			// Person records carry none of the compared fields.
		}
		out[i] = r
	}
	return out
}

// detectPatterns runs pattern detection when the correlator supports it.
func detectPatterns(ctx context.Context, c Correlator, cands []*Candidate, logger *slog.Logger) (patterns []correlation.Pattern) {
	pd, ok := c.(PatternDetector)
	if !ok || len(cands) < 2 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WarnContext(ctx, "pattern detection failed", "error", r)
			patterns = nil
		}
	}()
	return pd.DetectPatterns(records(cands))
}
