package correlation

import (
	"fmt"
	"strings"
)

// Pattern types reported by DetectPatterns.
const (
	PatternUsernameSimilarity = "username_similarity"
	PatternEmailDomain        = "email_domain"
	PatternLocationCluster    = "location_clustering"
)

// Pattern is a regularity found across a set of records.
type Pattern struct {
	Type        string         `json:"pattern_type"`
	Entities    []string       `json:"entities"`
	Attributes  map[string]any `json:"attributes"`
	Confidence  float64        `json:"confidence"`
	Description string         `json:"description"`
}

// DetectPatterns looks for shared username stems, a single shared email domain,
// and repeated locations.
func (*Analyzer) DetectPatterns(records []map[string]any) []Pattern {
	var out []Pattern
	if p, ok := usernamePattern(records); ok {
		out = append(out, p)
	}
	if p, ok := emailPattern(records); ok {
		out = append(out, p)
	}
	if p, ok := locationPattern(records); ok {
		out = append(out, p)
	}
	return out
}

func values(records []map[string]any, key string) []string {
	var out []string
	for _, r := range records {
		if s := stringField(r, key); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func usernamePattern(records []map[string]any) (Pattern, bool) {
	names := values(records, "username")
	if len(names) < 2 {
		return Pattern{}, false
	}
	prefix := commonPrefix(names)
	suffix := commonSuffix(names)
	if len(prefix) <= 2 && len(suffix) <= 2 {
		return Pattern{}, false
	}
	return Pattern{
		Type:        PatternUsernameSimilarity,
		Entities:    names,
		Attributes:  map[string]any{"prefix": prefix, "suffix": suffix},
		Confidence:  0.7,
		Description: fmt.Sprintf("Usernames share common pattern: %s*%s", prefix, suffix),
	}, true
}

func emailPattern(records []map[string]any) (Pattern, bool) {
	emails := values(records, "email")
	if len(emails) < 2 {
		return Pattern{}, false
	}
	domains := make(map[string]bool)
	var domain string
	for _, e := range emails {
		domain = e[strings.LastIndex(e, "@")+1:]
		domains[domain] = true
	}
	if len(domains) != 1 {
		return Pattern{}, false
	}
	return Pattern{
		Type:        PatternEmailDomain,
		Entities:    emails,
		Attributes:  map[string]any{"domain": domain},
		Confidence:  0.8,
		Description: "All emails use same domain: " + domain,
	}, true
}

func locationPattern(records []map[string]any) (Pattern, bool) {
	locations := values(records, "location")
	if len(locations) < 2 {
		return Pattern{}, false
	}
	counts := make(map[string]int)
	var order []string
	for _, l := range locations {
		if counts[l] == 0 {
			order = append(order, l)
		}
		counts[l]++
	}
	// ties go to the location seen first
	best := order[0]
	for _, l := range order[1:] {
		if counts[l] > counts[best] {
			best = l
		}
	}
	if counts[best] < 2 {
		return Pattern{}, false
	}
	return Pattern{
		Type:        PatternLocationCluster,
		Entities:    locations,
		Attributes:  map[string]any{"common_location": best, "count": counts[best]},
		Confidence:  0.6,
		Description: "Multiple entities in same location: " + best,
	}, true
}

func commonPrefix(ss []string) string {
	prefix := ss[0]
	for _, s := range ss[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}

func commonSuffix(ss []string) string {
	suffix := ss[0]
	for _, s := range ss[1:] {
		for !strings.HasSuffix(s, suffix) {
			suffix = suffix[1:]
			if suffix == "" {
				return ""
			}
		}
	}
	return suffix
}

// DefaultWeights are the attribute weights used by ConfidenceScore when none are given.
var DefaultWeights = map[string]float64{
	"verified":     1.0,
	"has_email":    0.8,
	"has_phone":    0.8,
	"has_location": 0.6,
	"has_photo":    0.5,
	"has_bio":      0.4,
}

// ConfidenceScore returns the weighted share of truthy attributes across records, in [0,100].
func (*Analyzer) ConfidenceScore(records []map[string]any, weights map[string]float64) float64 {
	if len(records) == 0 {
		return 0
	}
	if len(weights) == 0 {
		weights = DefaultWeights
	}

	var score, total float64
	for _, r := range records {
		for attr, w := range weights {
			if !isEmpty(r[attr]) {
				score += w
			}
			total += w
		}
	}
	if total == 0 {
		return 0
	}
	return min(100.0, score/total*100)
}
