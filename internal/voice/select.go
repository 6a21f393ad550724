package voice

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// normalizeLang turns POSIX locale names ("ja_JP.UTF-8") into BCP 47.
func normalizeLang(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	return strings.ReplaceAll(s, "_", "-")
}

type target struct {
	base   language.Base
	region language.Region
	parsed bool
	raw    string
}

func parseTarget(prefix string) target {
	norm := normalizeLang(prefix)
	t := target{raw: strings.ToLower(norm)}

	tag, err := language.Parse(norm)
	if err != nil {
		return t
	}
	t.base, _ = tag.Base()
	// For a bare language this is the likely region (ja -> JP).
	t.region, _ = tag.Region()
	t.parsed = true
	return t
}

// CanonicalLocale returns the full locale a prefix stands for, e.g. "ja-JP"
// for "ja". Unparseable prefixes are returned normalised.
func CanonicalLocale(prefix string) string {
	t := parseTarget(prefix)
	if !t.parsed {
		return normalizeLang(prefix)
	}
	return t.base.String() + "-" + t.region.String()
}

type candidate struct {
	voice Descriptor
	exact bool
	order int
}

func (t target) match(d Descriptor) (matches, exact bool) {
	norm := normalizeLang(d.Lang)
	if !t.parsed {
		return strings.HasPrefix(strings.ToLower(norm), t.raw), false
	}

	tag, err := language.Parse(norm)
	if err != nil {
		return false, false
	}
	base, _ := tag.Base()
	if base != t.base {
		return false, false
	}
	region, conf := tag.Region()
	return true, conf == language.Exact && region == t.region
}

// SelectBest picks the voice for prefix from voices. Voices whose language
// shares the prefix's base language qualify; among them an exact canonical
// locale beats a looser match, a local voice beats a network one, and
// otherwise the first enumerated wins.
func SelectBest(voices []Descriptor, prefix string) (Descriptor, bool) {
	t := parseTarget(prefix)

	var cands []candidate
	for i, v := range voices {
		ok, exact := t.match(v)
		if !ok {
			continue
		}
		cands = append(cands, candidate{voice: v, exact: exact, order: i})
	}
	if len(cands) == 0 {
		return Descriptor{}, false
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.exact != b.exact {
			return a.exact
		}
		if a.voice.IsLocal != b.voice.IsLocal {
			return a.voice.IsLocal
		}
		return a.order < b.order
	})
	return cands[0].voice, true
}
