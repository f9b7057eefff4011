package readiness

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rongwang/unit-roster/internal/models"
)

// GrandTotalKey is the synthetic unit key carrying the sum of all other units
const GrandTotalKey = "ВСЬОГО"

// CompanyHQKey is the report key of the company management unit
const CompanyHQKey = "Управління роти"

// Planned is the target headcount of one unit
type Planned struct {
	Total   int `json:"total"`
	Officer int `json:"officer"`
	Soldier int `json:"soldier"`
}

// Add returns the element-wise sum of p and o
func (p Planned) Add(o Planned) Planned {
	return Planned{Total: p.Total + o.Total, Officer: p.Officer + o.Officer, Soldier: p.Soldier + o.Soldier}
}

// PlannedTotals maps a canonical unit key to its baseline
type PlannedTotals map[string]Planned

// For returns the baseline of a unit, zero when the unit has none
func (t PlannedTotals) For(unit string) Planned {
	return t[unit]
}

// SumUnits sums every unit except the grand total key
func (t PlannedTotals) SumUnits() Planned {
	var sum Planned
	for key, v := range t {
		if key == GrandTotalKey {
			continue
		}
		sum = sum.Add(v)
	}
	return sum
}

// Units returns the unit keys without the grand total, sorted
func (t PlannedTotals) Units() []string {
	keys := make([]string, 0, len(t))
	for key := range t {
		if key != GrandTotalKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

var unitAliases = map[string]string{
	"управління роти": CompanyHQKey,
	"1 взвод":         "1-й взвод",
	"2 взвод":         "2-й взвод",
	"3 взвод":         "3-й взвод",
}

// Each pattern captures the platoon number in the group given next to it
var platoonPatterns = []struct {
	re    *regexp.Regexp
	group int
}{
	{regexp.MustCompile(`(^|\s)(\d+)\s*(?:й)?\s*взвод`), 2},
	{regexp.MustCompile(`взвод\s*(\d+)`), 1},
	{regexp.MustCompile(`(^|\s)(\d+)\s*[- ]?взвод`), 2},
}

var (
	hyphenSuffix = regexp.MustCompile(`-й`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// NormalizeUnitName lowercases a unit name, strips "-й" suffixes, turns hyphens
// into spaces and collapses whitespace.
func NormalizeUnitName(name string) string {
	n := strings.ToLower(name)
	n = hyphenSuffix.ReplaceAllString(n, "")
	n = strings.ReplaceAll(n, "-", " ")
	n = whitespace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

func platoonNumber(normalized string) (int, bool) {
	for _, p := range platoonPatterns {
		m := p.re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[p.group])
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

func platoonKey(n int) string {
	return fmt.Sprintf("%d-й взвод", n)
}

// CanonicalUnit folds a free-text unit name into a report key. Platoon HQs and
// squads fold into their parent platoon; unknown units keep their own name.
func CanonicalUnit(raw string) string {
	n := NormalizeUnitName(raw)

	if key, ok := unitAliases[n]; ok {
		return key
	}

	mentionsPlatoon := strings.Contains(n, "взвод")
	if mentionsPlatoon && (strings.Contains(n, "управління") || strings.Contains(n, "відділ")) {
		if pl, ok := platoonNumber(n); ok {
			return platoonKey(pl)
		}
	}

	if pl, ok := platoonNumber(n); ok {
		return platoonKey(pl)
	}

	if strings.Contains(n, "управління") && strings.Contains(n, "роти") {
		return CompanyHQKey
	}

	return strings.TrimSpace(raw)
}

// countsTowardPlan excludes attached personnel and blank units
func countsTowardPlan(unit string) bool {
	n := NormalizeUnitName(unit)
	return n != "" && !strings.Contains(n, "прикоманд")
}

// IsOfficer reports whether a rank category carries the officer marker
func IsOfficer(category string) bool {
	return strings.Contains(strings.ToLower(category), "оф")
}

// BuildPlanned derives the planned baseline from the complete slot set. It must
// be called with every slot: aliasing depends on the full set.
func BuildPlanned(slots []models.Slot) PlannedTotals {
	totals := make(PlannedTotals)

	for _, slot := range slots {
		unit := strings.TrimSpace(slot.UnitName)
		if !countsTowardPlan(unit) {
			continue
		}

		key := CanonicalUnit(unit)
		p := totals[key]
		p.Total++
		if IsOfficer(slot.Category) {
			p.Officer++
		} else {
			p.Soldier++
		}
		totals[key] = p
	}

	totals[GrandTotalKey] = totals.SumUnits()
	return totals
}
