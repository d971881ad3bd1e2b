package screen

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/kpi-screener/internal/model"
)

// FilterUniverse restricts instruments by provider metadata. Empty ID
// slices leave that dimension unfiltered, matching the upstream behavior
// where unset widgets meant "all".
func FilterUniverse(instruments []model.Instrument, f model.UniverseFilter) []model.Instrument {
	if len(f.CountryIDs) == 0 && len(f.MarketIDs) == 0 && len(f.SectorIDs) == 0 && len(f.BranchIDs) == 0 {
		return instruments
	}

	countries := idSet(f.CountryIDs)
	markets := idSet(f.MarketIDs)
	sectors := idSet(f.SectorIDs)
	branches := idSet(f.BranchIDs)

	var out []model.Instrument
	for _, inst := range instruments {
		if countries != nil && !countries[inst.CountryID] {
			continue
		}
		if markets != nil && !markets[inst.MarketID] {
			continue
		}
		if sectors != nil && !sectors[inst.SectorID] {
			continue
		}
		if branches != nil && !branches[inst.BranchID] {
			continue
		}
		out = append(out, inst)
	}
	return out
}

func idSet(ids []int) map[int]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// SearchInstruments returns instruments whose name or ticker contains the
// query, case- and diacritic-insensitively. Nordic listings carry names
// like "Öresund" and "Børsen"; folding makes "oresund" match.
func SearchInstruments(instruments []model.Instrument, query string) []model.Instrument {
	q := foldName(query)
	if q == "" {
		return instruments
	}
	var out []model.Instrument
	for _, inst := range instruments {
		if strings.Contains(foldName(inst.Name), q) || strings.Contains(foldName(inst.Ticker), q) {
			out = append(out, inst)
		}
	}
	return out
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldName(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	// ø and æ do not decompose to combining marks; map them by hand.
	replacer := strings.NewReplacer("ø", "o", "Ø", "o", "æ", "ae", "Æ", "ae", "ß", "ss")
	return strings.ToLower(replacer.Replace(folded))
}
