// Package identifier extracts usernames, emails, phone numbers, and person names from free-form text.
package identifier

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input is free-form text about a target plus optional hints supplied by the caller.
type Input struct {
	Text      string   `json:"text"`
	Region    string   `json:"region,omitempty"`
	Usernames []string `json:"usernames,omitempty"`
	Emails    []string `json:"emails,omitempty"`
	Phones    []string `json:"phones,omitempty"`
	Names     []string `json:"names,omitempty"`
}

// Set holds deduplicated, normalized, sorted identifiers.
type Set struct {
	Usernames []string `json:"usernames"`
	Emails    []string `json:"emails"`
	Phones    []string `json:"phones"`
	Names     []string `json:"names"`
}

// Empty reports whether no identifier of any kind was found.
func (s Set) Empty() bool {
	return len(s.Usernames) == 0 && len(s.Emails) == 0 && len(s.Phones) == 0 && len(s.Names) == 0
}

// All returns every identifier, usernames first, then emails, phones, and names.
func (s Set) All() []string {
	out := make([]string, 0, len(s.Usernames)+len(s.Emails)+len(s.Phones)+len(s.Names))
	out = append(out, s.Usernames...)
	out = append(out, s.Emails...)
	out = append(out, s.Phones...)
	return append(out, s.Names...)
}

const (
	minPhoneDigits = 10
	minUsernameLen = 3
	maxHandleLen   = 30
)

// emailAt and nameAt are anchored at a word start. Their trailing group stands in for
// a closing word boundary that, unlike RE2's \b, treats non-ASCII letters as word
// characters; only submatch 1 is the identifier.
var (
	emailAt = regexp.MustCompile(
		`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?@[A-Za-z0-9](?:[A-Za-z0-9.-]*[A-Za-z0-9])?\.[A-Za-z]{2,})(?:$|[^\p{L}\p{N}_])`)

	nameAt = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3})(?:$|[^\p{L}\p{N}_])`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+?\d{1,4}[\s.-]?\(?\d{1,4}\)?[\s.-]?\d{1,4}[\s.-]?\d{1,9}`), // international
		regexp.MustCompile(`\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`),                        // US
	}

	handlePattern = regexp.MustCompile(`@([A-Za-z0-9_.-]{3,30})`)
)

// stopwords are common English words that are capitalized at sentence starts but are not names.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true, "you": true,
	"all": true, "can": true, "her": true, "was": true, "one": true, "our": true, "out": true,
	"day": true, "get": true, "has": true, "him": true, "his": true, "how": true, "its": true,
	"may": true, "new": true, "now": true, "old": true, "see": true, "two": true, "way": true,
	"who": true, "boy": true, "did": true, "let": true, "put": true, "say": true, "she": true,
	"too": true, "use": true, "usa": true, "uk": true,
}

// Extract parses in.Text into an identifier Set and merges in the explicit hints.
// Hints go through the same normalization as extracted values. Extract does no I/O.
func Extract(in Input) Set {
	text := in.Text

	emails := make(map[string]bool)
	for _, m := range scanWords(text, emailAt) {
		emails[m] = true
	}
	for _, e := range in.Emails {
		emails[e] = true
	}

	phones := make(map[string]bool)
	for _, re := range phonePatterns {
		for _, m := range re.FindAllString(text, -1) {
			phones[m] = true
		}
	}
	for _, p := range in.Phones {
		phones[p] = true
	}

	usernames := make(map[string]bool)
	for _, m := range handlePattern.FindAllStringSubmatch(text, -1) {
		usernames[m[1]] = true
	}
	for _, u := range standaloneUsernames(text) {
		usernames[u] = true
	}
	for _, u := range in.Usernames {
		usernames[u] = true
	}

	names := make(map[string]bool)
	for _, m := range scanWords(text, nameAt) {
		if isName(m) {
			names[m] = true
		}
	}
	for _, n := range in.Names {
		names[n] = true
	}

	return Set{
		Usernames: normalize(usernames, NormalizeUsername),
		Emails:    normalize(emails, NormalizeEmail),
		Phones:    normalize(phones, NormalizePhone),
		Names:     normalize(names, NormalizeName),
	}
}

// NormalizeUsername strips leading @ characters and lower-cases u.
// It returns "" when fewer than three characters remain.
func NormalizeUsername(u string) string {
	u = strings.TrimLeft(strings.TrimSpace(u), "@")
	if utf8.RuneCountInString(u) < minUsernameLen {
		return ""
	}
	return strings.ToLower(u)
}

// NormalizeEmail lower-cases e.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// NormalizePhone keeps only the digits of p.
// It returns "" for fewer than ten digits, which filters out zip codes and short numbers.
func NormalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < minPhoneDigits {
		return ""
	}
	return b.String()
}

// NormalizeName collapses runs of whitespace in n.
func NormalizeName(n string) string {
	return strings.Join(strings.Fields(n), " ")
}

func normalize(set map[string]bool, fn func(string) string) []string {
	out := make([]string, 0, len(set))
	seen := make(map[string]bool, len(set))
	for v := range set {
		n := fn(v)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func isName(match string) bool {
	words := strings.Fields(match)
	if len(words) < 2 {
		return false
	}
	if strings.ContainsFunc(match, unicode.IsDigit) {
		return false
	}
	for _, w := range words {
		if !stopwords[strings.ToLower(w)] {
			return true
		}
	}
	return false
}

// scanWords returns submatch 1 of re at every word start in text, scanning left to
// right and resuming after each match.
func scanWords(text string, re *regexp.Regexp) []string {
	var out []string
	for i := 0; i < len(text); {
		if isASCIIAlnum(text[i]) && !wordBefore(text, i) {
			if m := re.FindStringSubmatch(text[i:]); m != nil {
				out = append(out, m[1])
				i += len(m[1])
				continue
			}
		}
		i++
	}
	return out
}

// standaloneUsernames finds bare handle-like tokens: an alphanumeric start, then 2-29 more
// characters of [A-Za-z0-9_.-], ending on a word boundary, and followed by whitespace,
// end of text, or a character outside [\w.-]. When the longest run fails the trailing
// check, shorter lengths are tried the way a backtracking matcher would.
func standaloneUsernames(text string) []string {
	var out []string
	for i := 0; i < len(text); {
		if n := matchHandleAt(text, i); n > 0 {
			out = append(out, text[i:i+n])
			i += n
			continue
		}
		i++
	}
	return out
}

func matchHandleAt(s string, i int) int {
	if !isASCIIAlnum(s[i]) || !wordBoundary(s, i) {
		return 0
	}
	n := 1
	for n < maxHandleLen && i+n < len(s) && isHandleByte(s[i+n]) {
		n++
	}
	for ; n >= minUsernameLen; n-- {
		end := i + n
		if wordBoundary(s, end) && trailerOK(s, end) {
			return n
		}
	}
	return 0
}

// trailerOK reports whether position end is followed by whitespace, end of text, or a
// rune that is neither a word character nor '.' or '-'.
func trailerOK(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	if unicode.IsSpace(r) {
		return true
	}
	return !isWordRune(r) && r != '.' && r != '-'
}

// wordBoundary reports whether byte offset i sits between a word rune and a non-word
// rune. Accented and non-Latin letters count as word runes.
func wordBoundary(s string, i int) bool {
	return wordBefore(s, i) != wordAt(s, i)
}

func wordBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isWordRune(r)
}

func wordAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isWordByte(c byte) bool { return c == '_' || isASCIIAlnum(c) }

func isHandleByte(c byte) bool { return isWordByte(c) || c == '.' || c == '-' }

func isASCIIAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
