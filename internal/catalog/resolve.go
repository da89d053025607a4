package catalog

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// Resolve implements the §4.A resolution strategy: attempts, in order,
// exact name match, exact alternate-name match, base-name equality, and
// substring containment; returns on the first non-empty result. An empty
// return signals "no match" (no error is raised; the caller composes one
// using Suggest).
func (c *Catalog) Resolve(query string, locale string) []ServiceDescriptor {
	nq := Normalize(query)
	candidates := c.candidatesForLocale(locale)

	if m := matchExactName(nq, candidates); len(m) > 0 {
		return m
	}
	if m := matchExactAlternate(nq, candidates); len(m) > 0 {
		return m
	}
	if m := matchBaseName(nq, candidates); len(m) > 0 {
		return m
	}
	return matchSubstring(nq, candidates)
}

func (c *Catalog) candidatesForLocale(locale string) []ServiceDescriptor {
	all := c.Descriptors()
	families := localeFamilies(locale)
	if families == nil {
		return all
	}

	out := make([]ServiceDescriptor, 0, len(all))
	for _, d := range all {
		n := Normalize(d.Name)
		for _, prefix := range families {
			if strings.HasPrefix(n, prefix) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func matchExactName(nq string, candidates []ServiceDescriptor) []ServiceDescriptor {
	var out []ServiceDescriptor
	for _, d := range candidates {
		if Normalize(d.Name) == nq {
			out = append(out, d)
		}
	}
	return out
}

func matchExactAlternate(nq string, candidates []ServiceDescriptor) []ServiceDescriptor {
	var out []ServiceDescriptor
	for _, d := range candidates {
		if d.AlternateName != "" && Normalize(d.AlternateName) == nq {
			out = append(out, d)
		}
	}
	return out
}

func matchBaseName(nq string, candidates []ServiceDescriptor) []ServiceDescriptor {
	queryBase := BaseName(nq)
	var out []ServiceDescriptor
	for _, d := range candidates {
		if BaseName(d.Name) == queryBase {
			out = append(out, d)
		}
	}
	return out
}

func matchSubstring(nq string, candidates []ServiceDescriptor) []ServiceDescriptor {
	var out []ServiceDescriptor
	for _, d := range candidates {
		name := Normalize(d.Name)
		base := BaseName(d.Name)
		if strings.Contains(name, nq) || strings.Contains(nq, name) ||
			strings.Contains(base, nq) || strings.Contains(nq, base) {
			out = append(out, d)
			continue
		}
		if d.AlternateName != "" {
			alt := Normalize(d.AlternateName)
			if strings.Contains(alt, nq) || strings.Contains(nq, alt) {
				out = append(out, d)
			}
		}
	}
	return out
}

// suggestion pairs a candidate service name with its similarity to the
// query, for ranking in Suggest.
type suggestion struct {
	name  string
	score float64
}

// Suggest returns up to 5 service names nearest to query, for composing a
// ServiceNotFound error message. It ranks the full catalog (locale is not
// applied here: a mistyped locale shouldn't hide every suggestion) by
// Jaro-Winkler similarity.
func (c *Catalog) Suggest(query string) []string {
	nq := Normalize(query)
	all := c.Descriptors()

	scored := make([]suggestion, 0, len(all))
	for _, d := range all {
		name := Normalize(d.Name)
		score, err := edlib.StringsSimilarity(nq, name, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		scored = append(scored, suggestion{name: d.Name, score: float64(score)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	limit := 5
	if len(scored) < limit {
		limit = len(scored)
	}

	out := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, scored[i].name)
	}
	return out
}
