package services

import (
	"sort"
	"strings"

	"github.com/hk-health-ai/backend/internal/domain/entities"
)

// LocationService resolves a district hint from free-text user input or
// an explicit override. Pure and deterministic: no I/O, same inputs
// always produce the same hint.
type LocationService struct {
	gazetteer []gazetteerEntry
	canonical map[string]string
}

type gazetteerEntry struct {
	alias    string // lowercase
	district string // canonical district name
}

// districtAliases maps each of the 18 Hong Kong districts to the phrases
// users write for it. Aliases include well-known neighbourhoods so "wait
// times in Mong Kok" scopes to Yau Tsim Mong. The bare word "north" is
// deliberately absent; it collides with North Point.
var districtAliases = map[string][]string{
	"Central and Western": {"central and western", "central western", "central", "western", "sheung wan", "admiralty", "mid-levels"},
	"Wan Chai":            {"wan chai", "causeway bay", "happy valley"},
	"Eastern":             {"eastern", "north point", "quarry bay", "shau kei wan", "chai wan"},
	"Southern":            {"southern", "aberdeen", "pok fu lam", "stanley"},
	"Yau Tsim Mong":       {"yau tsim mong", "mong kok", "tsim sha tsui", "yau ma tei", "jordan"},
	"Sham Shui Po":        {"sham shui po", "cheung sha wan", "lai chi kok"},
	"Kowloon City":        {"kowloon city", "hung hom", "to kwa wan", "kai tak"},
	"Wong Tai Sin":        {"wong tai sin", "diamond hill", "san po kong"},
	"Kwun Tong":           {"kwun tong", "ngau tau kok", "lam tin", "yau tong"},
	"Kwai Tsing":          {"kwai tsing", "kwai chung", "tsing yi"},
	"Tsuen Wan":           {"tsuen wan"},
	"Tuen Mun":            {"tuen mun"},
	"Yuen Long":           {"yuen long", "tin shui wai"},
	"North":               {"north district", "sheung shui", "fanling"},
	"Tai Po":              {"tai po"},
	"Sha Tin":             {"sha tin", "shatin", "ma on shan"},
	"Sai Kung":            {"sai kung", "tseung kwan o"},
	"Islands":             {"islands", "lantau", "tung chung", "cheung chau", "lamma", "discovery bay"},
}

// NewLocationService builds the resolver from the district gazetteer
func NewLocationService() *LocationService {
	var entries []gazetteerEntry
	canonical := make(map[string]string)
	for district, aliases := range districtAliases {
		for _, alias := range aliases {
			entries = append(entries, gazetteerEntry{alias: alias, district: district})
			canonical[alias] = district
		}
	}
	// Longest alias first so overlapping names ("central" inside
	// "central and western") resolve to the longest match; alphabetical
	// tie-break keeps resolution deterministic
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].alias) != len(entries[j].alias) {
			return len(entries[i].alias) > len(entries[j].alias)
		}
		return entries[i].alias < entries[j].alias
	})
	return &LocationService{gazetteer: entries, canonical: canonical}
}

// Resolve extracts a district hint. An explicit hint wins outright and
// skips text scanning; otherwise the text is scanned case-insensitively
// against the gazetteer, longest match first.
func (s *LocationService) Resolve(text, explicitHint string) entities.LocationHint {
	if explicit := strings.TrimSpace(explicitHint); explicit != "" {
		district := explicit
		if canonical, ok := s.canonical[strings.ToLower(explicit)]; ok {
			district = canonical
		}
		return entities.LocationHint{
			District:   district,
			Confidence: entities.LocationConfidenceExplicit,
		}
	}

	lowered := strings.ToLower(text)
	for _, entry := range s.gazetteer {
		if strings.Contains(lowered, entry.alias) {
			return entities.LocationHint{
				District:   entry.district,
				Confidence: entities.LocationConfidenceInferred,
			}
		}
	}

	return entities.LocationHint{Confidence: entities.LocationConfidenceNone}
}

// Districts returns the canonical district names, sorted
func (s *LocationService) Districts() []string {
	districts := make([]string, 0, len(districtAliases))
	for district := range districtAliases {
		districts = append(districts, district)
	}
	sort.Strings(districts)
	return districts
}
