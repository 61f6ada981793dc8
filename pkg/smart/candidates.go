package smart

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/codeGROOVE-dev/dossier/pkg/emailintel"
	"github.com/codeGROOVE-dev/dossier/pkg/personintel"
	"github.com/codeGROOVE-dev/dossier/pkg/phoneintel"
	"github.com/codeGROOVE-dev/dossier/pkg/profile"
)

// highValuePlatforms are widely used networks whose presence says more than a niche site.
var highValuePlatforms = map[string]bool{
	"twitter":   true,
	"instagram": true,
	"facebook":  true,
	"linkedin":  true,
	"github":    true,
	"reddit":    true,
}

// BuildCandidates turns each successful lookup into a scored candidate. Candidates are
// grouped by type (usernames, emails, phones, names) and sorted by identifier within a
// group; nil results are skipped.
func BuildCandidates(l Lookups) []*Candidate {
	var out []*Candidate
	for _, u := range sortedKeys(l.UsernameProfiles) {
		if p := l.UsernameProfiles[u]; p != nil {
			conf, reason := ScoreUsername(u, p)
			out = append(out, &Candidate{Identifier: u, Type: TypeUsername, Data: p, Confidence: conf, Reason: reason})
		}
	}
	for _, e := range sortedKeys(l.EmailResults) {
		if r := l.EmailResults[e]; r != nil {
			conf, reason := ScoreEmail(r)
			out = append(out, &Candidate{Identifier: e, Type: TypeEmail, Data: r, Confidence: conf, Reason: reason})
		}
	}
	for _, ph := range sortedKeys(l.PhoneResults) {
		if r := l.PhoneResults[ph]; r != nil {
			conf, reason := ScorePhone(r)
			out = append(out, &Candidate{Identifier: ph, Type: TypePhone, Data: r, Confidence: conf, Reason: reason})
		}
	}
	for _, n := range sortedKeys(l.PersonResults) {
		if r := l.PersonResults[n]; r != nil {
			conf, reason := ScorePerson(r)
			out = append(out, &Candidate{Identifier: n, Type: TypeName, Data: r, Confidence: conf, Reason: reason})
		}
	}
	return out
}

// ScoreUsername rates a username by how many platforms it was found on, with extra
// weight for high-value platforms and for structured usernames.
func ScoreUsername(username string, p *profile.Profile) (confidence float64, reason string) {
	found := p.FoundOnPlatforms
	conf := min(0.25+0.08*float64(min(found, 5)), 0.75)

	highValue := 0
	for name := range p.Platforms {
		if highValuePlatforms[strings.ToLower(name)] {
			highValue++
		}
	}
	if highValue > 0 {
		conf += min(0.15*float64(highValue), 0.2)
	}
	if structuredUsername(username) {
		conf += 0.05
	}
	conf = min(conf, 0.95)

	reason = fmt.Sprintf("Username found on %d platform(s)", found)
	if highValue > 0 {
		reason += fmt.Sprintf(" including %d high-value platform(s)", highValue)
	}
	return conf, reason
}

// structuredUsername reports whether u is at least 5 characters and purely
// alphanumeric apart from '_' and '.'.
func structuredUsername(u string) bool {
	if utf8.RuneCountInString(u) < 5 {
		return false
	}
	stripped := strings.NewReplacer("_", "", ".", "").Replace(u)
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ScoreEmail rates an email by validity, linked profiles, breach history, and reputation.
// Disposable addresses are penalized.
func ScoreEmail(r *emailintel.Result) (confidence float64, reason string) {
	conf := 0.15
	if r.Valid {
		conf = 0.6
	}
	profiles := len(r.OnlineProfiles)
	if profiles > 0 {
		conf += min(0.15+0.05*float64(min(profiles, 3)), 0.25)
	}
	if r.Breached {
		conf += 0.1
	}
	if r.Disposable {
		conf -= 0.15
	}
	if r.ReputationScore >= 70 {
		conf += 0.05
	}
	conf = max(0, min(conf, 0.95))

	reason = "Email pattern detected"
	if r.Valid {
		reason = "Valid email"
	}
	if profiles > 0 {
		reason += fmt.Sprintf(" with %d associated profile(s)", profiles)
	}
	if r.Breached {
		reason += ", appears in breach databases"
	}
	if r.Disposable {
		reason += " (disposable email service)"
	}
	return conf, reason
}

// ScorePhone rates a phone number by validity, a linked name, social presence, a known
// carrier, and whether it is a mobile line.
func ScorePhone(r *phoneintel.Result) (confidence float64, reason string) {
	conf := 0.1
	if r.Valid {
		conf = 0.5
	}
	if r.AssociatedName != "" {
		conf += 0.25
	}
	social := len(r.Metadata.SocialPlatforms)
	if social > 0 {
		conf += min(0.15+0.05*float64(social), 0.2)
	}
	if knownCarrier(r.Carrier) {
		conf += 0.05
	}
	if strings.Contains(strings.ToLower(r.LineType), "mobile") {
		conf += 0.05
	}
	conf = min(conf, 0.95)

	reason = "Phone pattern detected"
	if r.Valid {
		reason = "Valid phone number"
	}
	if r.AssociatedName != "" {
		reason += fmt.Sprintf(" linked to '%s'", r.AssociatedName)
	}
	if r.Carrier != "" {
		reason += fmt.Sprintf(" (%s)", r.Carrier)
	}
	if social > 0 {
		reason += fmt.Sprintf(", found on %d social platform(s)", social)
	}
	return conf, reason
}

func knownCarrier(c string) bool {
	switch strings.ToLower(c) {
	case "", "unknown", "invalid":
		return false
	}
	return true
}

// ScorePerson rates a person record by a weighted count of its attributes, with a bonus
// when at least three kinds of contact data are present.
func ScorePerson(r *personintel.Result) (confidence float64, reason string) {
	addresses := len(r.Addresses)
	phones := len(r.PhoneNumbers)
	emails := len(r.EmailAddresses)
	social := len(r.SocialProfiles)

	attrScore := float64(addresses)*0.3 +
		float64(phones)*0.25 +
		float64(emails)*0.15 +
		float64(social)*0.2 +
		float64(len(r.Relatives))*0.05 +
		float64(len(r.Employment))*0.05
	conf := min(0.25+attrScore*0.15, 0.9)

	kinds := 0
	for _, n := range []int{addresses, phones, emails, social} {
		if n > 0 {
			kinds++
		}
	}
	comprehensive := kinds >= 3
	if comprehensive {
		conf += 0.1
	}
	conf = min(conf, 0.95)

	reason = fmt.Sprintf("Person record with %d associated attribute(s)", addresses+phones+emails+social)
	if comprehensive {
		reason += " (comprehensive profile)"
	}
	return conf, reason
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
