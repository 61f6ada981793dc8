package smart

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/codeGROOVE-dev/dossier/pkg/correlation"
	"github.com/codeGROOVE-dev/dossier/pkg/emailintel"
	"github.com/codeGROOVE-dev/dossier/pkg/phoneintel"
)

type fakeCorrelator struct {
	scores []correlation.Score
	panics bool
}

func (f fakeCorrelator) CorrelateProfiles([]map[string]any) []correlation.Score {
	if f.panics {
		panic("analyzer exploded")
	}
	return f.scores
}

func TestBoost(t *testing.T) {
	newCands := func() []*Candidate {
		return []*Candidate{
			{Identifier: "a", Confidence: 0.5, Reason: "A"},
			{Identifier: "b", Confidence: 0.95, Reason: "B"},
			{Identifier: "c", Confidence: 0.7, Reason: "C"},
		}
	}

	tests := []struct {
		name       string
		correlator Correlator
		want       map[string]float64
		wantOrder  []string
		boosted    []string
	}{
		{
			name: "strong pair boosted and clamped",
			correlator: fakeCorrelator{scores: []correlation.Score{
				{Entity1: "a", Entity2: "b", Score: 1.0, Confidence: 1.0, SharedAttributes: []string{"email"}},
			}},
			want:      map[string]float64{"a": 0.6, "b": 1.0, "c": 0.7},
			wantOrder: []string{"b", "c", "a"},
			boosted:   []string{"a", "b"},
		},
		{
			name: "largest boost wins rather than sum",
			correlator: fakeCorrelator{scores: []correlation.Score{
				{Entity1: "a", Entity2: "c", Score: 0.4, Confidence: 0.6},
				{Entity1: "a", Entity2: "b", Score: 0.45, Confidence: 0.65},
			}},
			want:      map[string]float64{"a": 0.59, "b": 1.0, "c": 0.78},
			wantOrder: []string{"b", "c", "a"},
			boosted:   []string{"a", "b", "c"},
		},
		{
			name: "weak pair ignored",
			correlator: fakeCorrelator{scores: []correlation.Score{
				{Entity1: "a", Entity2: "c", Score: 0.9, Confidence: 0.59},
			}},
			want:      map[string]float64{"a": 0.5, "b": 0.95, "c": 0.7},
			wantOrder: []string{"b", "c", "a"},
		},
		{
			name:       "panicking correlator still sorts",
			correlator: fakeCorrelator{panics: true},
			want:       map[string]float64{"a": 0.5, "b": 0.95, "c": 0.7},
			wantOrder:  []string{"b", "c", "a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Boost(context.Background(), tt.correlator, newCands(), slog.Default())

			conf := map[string]float64{}
			var order, boosted []string
			for _, c := range got {
				conf[c.Identifier] = c.Confidence
				order = append(order, c.Identifier)
				if strings.HasSuffix(c.Reason, correlatedSuffix) {
					boosted = append(boosted, c.Identifier)
				}
			}
			if diff := cmp.Diff(tt.want, conf, approx); diff != "" {
				t.Errorf("confidence mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantOrder, order); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.boosted, boosted, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
				t.Errorf("boosted mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBoostSingleCandidateUntouched(t *testing.T) {
	c := &Candidate{Identifier: "solo", Confidence: 0.4, Reason: "R"}
	got := Boost(context.Background(), fakeCorrelator{panics: true}, []*Candidate{c}, slog.Default())
	if len(got) != 1 || got[0].Confidence != 0.4 || got[0].Reason != "R" {
		t.Errorf("Boost changed a lone candidate: %+v", got[0])
	}
}

func TestBoostWithAnalyzer(t *testing.T) {
	cands := []*Candidate{
		{Identifier: "4155551234", Type: TypePhone, Confidence: 0.5, Reason: "P1",
			Data: &phoneintel.Result{Phone: "4155551234", Location: "San Francisco, CA"}},
		{Identifier: "4155559876", Type: TypePhone, Confidence: 0.55, Reason: "P2",
			Data: &phoneintel.Result{Phone: "4155559876", Location: "San Francisco, CA"}},
		{Identifier: "j@example.com", Type: TypeEmail, Confidence: 0.6, Reason: "E",
			Data: &emailintel.Result{Email: "j@example.com"}},
	}
	got := Boost(context.Background(), correlation.New(), cands, slog.Default())

	// The phones share type and location: similarity 2/4 = 0.5, confidence 0.5+0.2 = 0.7.
	want := map[string]float64{"4155551234": 0.6, "4155559876": 0.65, "j@example.com": 0.6}
	conf := map[string]float64{}
	for _, c := range got {
		conf[c.Identifier] = c.Confidence
	}
	if diff := cmp.Diff(want, conf, approx); diff != "" {
		t.Errorf("confidence mismatch (-want +got):\n%s", diff)
	}
	if strings.HasSuffix(reasonOf(got, "j@example.com"), correlatedSuffix) {
		t.Error("email candidate should not be boosted")
	}
}

func reasonOf(cands []*Candidate, id string) string {
	for _, c := range cands {
		if c.Identifier == id {
			return c.Reason
		}
	}
	return ""
}

func TestRecords(t *testing.T) {
	cands := []*Candidate{
		{Identifier: "jdoe", Type: TypeUsername, Data: profileOn("jdoe")},
		{Identifier: "4155551234", Type: TypePhone, Data: &phoneintel.Result{Phone: "4155551234"}},
		{Identifier: "x", Type: TypeName, Data: nil},
	}
	want := []map[string]any{
		{"id": "jdoe", "type": "username", "username": "jdoe"},
		{"id": "4155551234", "type": "phone", "phone": "4155551234"},
		{"id": "x", "type": "name"},
	}
	if diff := cmp.Diff(want, records(cands)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}
