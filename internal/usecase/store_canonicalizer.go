package usecase

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// chainRule maps store names or chain codes to one canonical chain identity.
type chainRule struct {
	store    string
	group    string
	patterns []*regexp.Regexp
	codes    []string
	// matchGroupPatterns also tests patterns against the chain code.
	matchGroupPatterns bool
}

func (r chainRule) matches(name, code string) bool {
	for _, p := range r.patterns {
		if p.MatchString(name) || (r.matchGroupPatterns && p.MatchString(code)) {
			return true
		}
	}
	for _, c := range r.codes {
		if code == c {
			return true
		}
	}
	return false
}

func rx(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// chainRules are tested in order. More specific names come before the
// prefixes they share (Obs Bygg before Obs).
var chainRules = []chainRule{
	{store: "KIWI", group: "KIWI", patterns: rx(`^kiwi\b`), codes: []string{"kiwi"}},
	{store: "REMA 1000", group: "REMA_1000", patterns: rx(`rema\s*1000`), codes: []string{"rema_1000", "rema 1000"}},
	{store: "MENY", group: "MENY_NO", patterns: rx(`(^|\s)meny(\s|$)`), codes: []string{"meny_no", "meny"}},
	{store: "SPAR", group: "SPAR_NO", patterns: rx(`^spar\b`, `eurospar`), codes: []string{"spar_no", "eurospar"}},
	{store: "Joker", group: "JOKER_NO", patterns: rx(`^joker\b`), codes: []string{"joker_no", "joker"}},
	{store: "Nærbutikken", group: "NAERBUTIKKEN", patterns: rx(`^n(æ|ae)rbutikken\b`), codes: []string{"naerbutikken"}},
	{store: "Bunnpris", group: "BUNNPRIS", patterns: rx(`^bunnpris\b`), codes: []string{"bunnpris"}},
	{store: "Extra", group: "COOP_EXTRA", patterns: rx(`^extra\b`, `coop\s*extra`), codes: []string{"coop_extra", "extra"}},
	{store: "Obs Bygg", group: "COOP_OBS_BYGG", patterns: rx(`obs\s*bygg`), codes: []string{"coop_obs_bygg"}},
	{store: "Obs", group: "COOP_OBS", patterns: rx(`^obs\b`, `coop\s*obs`), codes: []string{"coop_obs", "obs"}},
	{store: "Coop Mega", group: "COOP_MEGA", patterns: rx(`^coop\s*mega`), codes: []string{"coop_mega", "mega"}},
	{store: "Coop Marked", group: "COOP_MARKED", patterns: rx(`^coop\s*marked`), codes: []string{"coop_marked", "marked"}},
	{store: "Coop Prix", group: "COOP_PRIX", patterns: rx(`^coop\s*prix`), codes: []string{"coop_prix", "prix"}},
	{store: "AlltiMat", group: "ALLTIMAT", patterns: rx(`allti\s*mat`), codes: []string{"alltimat"}},
	{store: "Matkroken", group: "MATKROKEN", patterns: rx(`matkroken`), codes: []string{"matkroken"}},
	{store: "Europris", group: "EUROPRIS_NO", patterns: rx(`europris`), codes: []string{"europris_no", "europris"}},
	{store: "Havaristen", group: "HAVARISTEN", patterns: rx(`havaristen`), codes: []string{"havaristen"}},
	{store: "Gigaboks", group: "GIGABOKS", patterns: rx(`gigaboks`), codes: []string{"gigaboks"}},
	{store: "FUDI", group: "FUDI", patterns: rx(`fudi`), codes: []string{"fudi"}},
	{store: "Oda", group: "ODA", patterns: rx(`oda|kolonial`), matchGroupPatterns: true},
}

// CanonicalizeStore maps a store display name and chain code to a known chain.
// Unknown stores pass through trimmed; empty results are "".
func CanonicalizeStore(store, group string) (string, string) {
	name := norm.NFC.String(strings.TrimSpace(store))
	code := strings.TrimSpace(group)
	lowerName := strings.ToLower(name)
	lowerCode := strings.ToLower(code)

	for _, rule := range chainRules {
		if rule.matches(lowerName, lowerCode) {
			return rule.store, rule.group
		}
	}
	return name, code
}
