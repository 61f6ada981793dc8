// Package correlation compares flat attribute records and reports which ones likely describe the same entity.
//
// Records are map[string]any. Keys present in both records are compared value by value;
// keys present in only one record are ignored. A record without a field should leave the
// key out rather than store an empty value.
package correlation

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// MinSimilarity is the similarity a pair must exceed to be reported by CorrelateProfiles.
const MinSimilarity = 0.3

// Score describes the correlation between two records.
type Score struct {
	Entity1          string            `json:"entity1"`
	Entity2          string            `json:"entity2"`
	Score            float64           `json:"score"`
	SharedAttributes []string          `json:"shared_attributes"`
	Confidence       float64           `json:"confidence"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Analyzer correlates records. The zero value is ready to use and is safe for concurrent use.
type Analyzer struct{}

// New returns an Analyzer.
func New() *Analyzer { return &Analyzer{} }

// Similarity returns the share of common keys whose values match, in [0,1].
// Equal values count 1, case-insensitively equal strings 0.9, and strings where one
// contains the other 0.5. Records with no common keys have similarity 0.
func (*Analyzer) Similarity(a, b map[string]any) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var common int
	var matches float64
	for key, va := range a {
		vb, ok := b[key]
		if !ok {
			continue
		}
		common++
		matches += valueWeight(va, vb)
	}
	if common == 0 {
		return 0
	}
	return min(1.0, matches/float64(common))
}

func valueWeight(a, b any) float64 {
	if reflect.DeepEqual(a, b) {
		return 1
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if !okA || !okB {
		return 0
	}
	switch {
	case strings.ToLower(sa) == strings.ToLower(sb):
		return 0.9
	case strings.Contains(sb, sa) || strings.Contains(sa, sb):
		return 0.5
	default:
		return 0
	}
}

// CorrelateProfiles compares every pair of records and returns the pairs whose similarity
// exceeds MinSimilarity, sorted by descending score. Entity ids come from each record's
// "id" key.
func (a *Analyzer) CorrelateProfiles(records []map[string]any) []Score {
	var out []Score
	for i, r1 := range records {
		for _, r2 := range records[i+1:] {
			sim := a.Similarity(r1, r2)
			if sim <= MinSimilarity {
				continue
			}
			shared := sharedKeys(r1, r2)
			out = append(out, Score{
				Entity1:          stringField(r1, "id"),
				Entity2:          stringField(r2, "id"),
				Score:            sim,
				SharedAttributes: shared,
				Confidence:       pairConfidence(sim, len(shared)),
				Metadata: map[string]string{
					"profile1": stringField(r1, "platform"),
					"profile2": stringField(r2, "platform"),
				},
			})
		}
	}
	slices.SortStableFunc(out, func(x, y Score) int { return cmp.Compare(y.Score, x.Score) })
	return out
}

// pairConfidence adds 0.1 per exactly-shared attribute, capped at 0.3, to the similarity.
func pairConfidence(similarity float64, shared int) float64 {
	bonus := min(float64(shared)*0.1, 0.3)
	return min(1.0, similarity+bonus)
}

// sharedKeys returns the sorted keys whose values are exactly equal in both records.
func sharedKeys(a, b map[string]any) []string {
	var keys []string
	for k, va := range a {
		if vb, ok := b[k]; ok && reflect.DeepEqual(va, vb) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func stringField(r map[string]any, key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// SharedAttributes maps each non-empty value (other than "id") to the ids of the records
// holding it, keeping only values held by more than one record. Id lists are sorted.
func (*Analyzer) SharedAttributes(records []map[string]any) map[string][]string {
	holders := make(map[string]map[string]bool)
	for _, r := range records {
		id := stringField(r, "id")
		for k, v := range r {
			if k == "id" || isEmpty(v) {
				continue
			}
			s := fmt.Sprint(v)
			if holders[s] == nil {
				holders[s] = make(map[string]bool)
			}
			holders[s][id] = true
		}
	}

	shared := make(map[string][]string)
	for value, ids := range holders {
		if len(ids) < 2 {
			continue
		}
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		slices.Sort(list)
		shared[value] = list
	}
	return shared
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
