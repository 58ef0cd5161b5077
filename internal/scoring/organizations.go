package scoring

import (
	"sort"
	"strings"
)

// OrganizationLookup maps an organization name to its type.
type OrganizationLookup interface {
	TypeOf(organization string) (string, bool)
}

// DefaultOrganizationTypes seeds the directory when config provides none.
var DefaultOrganizationTypes = map[string][]string{
	"government":   {"ministry", "ministerio", "department", "agency", "government", "gobierno", "county", "municipal", "city of"},
	"foundation":   {"foundation", "fundación", "fundacion", "trust", "philanthropies"},
	"academic":     {"university", "universidad", "college", "institute", "school", "academy"},
	"corporate":    {"inc", "ltd", "llc", "corp", "corporation", "gmbh", "company"},
	"multilateral": {"united nations", "world bank", "european commission", "development bank", "unesco", "unicef"},
}

type orgPattern struct {
	needle  string
	orgType string
}

// OrganizationDirectory resolves organizations by whole-word pattern match.
// When several patterns match, the longest pattern wins and ties go to the
// alphabetically first type, so lookups are deterministic.
type OrganizationDirectory struct {
	patterns []orgPattern
}

func NewOrganizationDirectory(types map[string][]string) *OrganizationDirectory {
	d := &OrganizationDirectory{}
	for orgType, needles := range types {
		for _, n := range needles {
			n = foldWords(n)
			if n == "" {
				continue
			}
			d.patterns = append(d.patterns, orgPattern{needle: n, orgType: strings.ToLower(strings.TrimSpace(orgType))})
		}
	}
	sort.Slice(d.patterns, func(i, j int) bool {
		a, b := d.patterns[i], d.patterns[j]
		if len(a.needle) != len(b.needle) {
			return len(a.needle) > len(b.needle)
		}
		if a.orgType != b.orgType {
			return a.orgType < b.orgType
		}
		return a.needle < b.needle
	})
	return d
}

func (d *OrganizationDirectory) TypeOf(organization string) (string, bool) {
	if d == nil {
		return "", false
	}
	folded := foldWords(organization)
	if folded == "" {
		return "", false
	}
	padded := " " + folded + " "
	for _, p := range d.patterns {
		if strings.Contains(padded, " "+p.needle+" ") {
			return p.orgType, true
		}
	}
	return "", false
}
