package readiness

import (
	"regexp"
	"strings"

	"github.com/rongwang/unit-roster/internal/models"
	"github.com/shopspring/decimal"
)

// Overlapping derived groups. The primitive buckets stay disjoint.
var (
	groupInCombatNow = concat(
		positionStatuses, managementStatuses, supplyStatuses,
		[]string{
			NonCombatNewcomers, NonCombatLimitedFitness, NonCombatLimitedFitnessInUnit,
			NonCombatRefusers, NonCombatAwaitingDecision, NonCombatHasTreatmentReferral,
		},
	)
	// Non-combat statuses that count the person as missing from the unit
	groupNonCombatMissing = []string{NonCombatNewcomers, NonCombatLimitedFitness, NonCombatRefusers}
	groupMissing          = set(concat(groupNonCombatMissing, absentStatuses))
	groupInCombatNowSet   = set(groupInCombatNow)
)

// StatusTotals holds the bucket sums of one group of persons
type StatusTotals struct {
	PositionsInfantry        int `json:"positionsInfantry"`
	PositionsCrew            int `json:"positionsCrew"`
	PositionsCalc            int `json:"positionsCalc"`
	PositionsUAV             int `json:"positionsUav"`
	PositionsArmorGroup      int `json:"positionsBronegroup"`
	PositionsReserveInfantry int `json:"positionsReserveInfantry"`
	OnPosition               int `json:"onPosition"`
	TotalPositions           int `json:"totalPositions"`

	RotationInfantry int `json:"rotationInfantry"`
	RotationCrew     int `json:"rotationCrew"`
	RotationCalc     int `json:"rotationCalc"`
	RotationUAV      int `json:"rotationUav"`
	TotalRotation    int `json:"totalRotation"`

	SupplyCombat    int `json:"supplyCombat"`
	SupplyGeneral   int `json:"supplyGeneral"`
	TotalSupply     int `json:"totalSupply"`
	TotalManagement int `json:"totalManagement"`

	NonCombatNewcomers        int `json:"nonCombatNewcomers"`
	NonCombatLimited          int `json:"nonCombatLimited"`
	NonCombatLimitedInUnit    int `json:"nonCombatLimitedInCombat"`
	NonCombatRefusers         int `json:"nonCombatRefusers"`
	NonCombatAwaitingDecision int `json:"nonCombatDecision"`
	NonCombatReferral         int `json:"haveOfferToHospital"`
	NonOnBG                   int `json:"nonOnBG"`
	TotalNonCombat            int `json:"totalNonCombat"`

	AbsentBusinessTrip   int `json:"absentBusinessTrip"`
	AbsentAWOL           int `json:"absentSZO"`
	AbsentHospital       int `json:"absentHospital"`
	AbsentMedicalCompany int `json:"absentMedCompany"`
	AbsentMedicalBoard   int `json:"absentVLK"`
	AbsentRehabLeave     int `json:"absentRehabLeave"`
	AbsentLeave          int `json:"absentRehab"`
	AbsentWounded        int `json:"absentWounded"`
	AbsentKilled         int `json:"absent200"`
	AbsentMissing        int `json:"absentMIA"`
	TotalAbsent          int `json:"totalAbsent"`

	InCombatNow  int `json:"inCombatNow"`
	TotalMissing int `json:"totalMissing"`
}

// UnitReport is one row of the readiness report
type UnitReport struct {
	Unit           string `json:"unit"`
	PlannedTotal   int    `json:"plannedTotal"`
	PlannedOfficer int    `json:"plannedOfficer"`
	PlannedSoldier int    `json:"plannedSoldier"`

	StatusTotals

	ActualTotal         int    `json:"actualTotal"`
	ActualOfficers      int    `json:"actualOfficers"`
	ActualSoldiers      int    `json:"actualSoldiers"`
	StaffingPercent     string `json:"staffingPercent"`
	PresentTotal        int    `json:"presentTotal"`
	PresentPercent      string `json:"presentPercent"`
	PresentTotalOfficer int    `json:"presentTotalOfficer"`
	PresentTotalSoldier int    `json:"presentTotalSoldier"`
	InCombatNowOfficer  int    `json:"inCombatNowOfficer"`
	InCombatNowSoldier  int    `json:"inCombatNowSoldier"`
	PercentNowCurrent   string `json:"percentNowCurrent"`
}

// CountStatuses counts each non-empty raw status value
func CountStatuses(persons []models.Person) map[string]int {
	counts := make(map[string]int)
	for _, p := range persons {
		status := strings.TrimSpace(p.SoldierStatus)
		if status == "" {
			continue
		}
		counts[status]++
	}
	return counts
}

// SumStatuses adds up the counts of the given statuses
func SumStatuses(counts map[string]int, statuses []string) int {
	sum := 0
	for _, s := range statuses {
		sum += counts[s]
	}
	return sum
}

// Totals computes every bucket sum for a group of persons
func Totals(persons []models.Person) StatusTotals {
	c := CountStatuses(persons)
	t := StatusTotals{
		PositionsInfantry:        c[PositionInfantry],
		PositionsCrew:            c[PositionCrew],
		PositionsCalc:            c[PositionCalculation],
		PositionsUAV:             c[PositionUAV],
		PositionsArmorGroup:      c[PositionArmorGroup],
		PositionsReserveInfantry: c[PositionReserveInfantry],
		TotalPositions:           SumStatuses(c, positionStatuses),

		RotationInfantry: c[RotationInfantry],
		RotationCrew:     c[RotationCrew],
		RotationCalc:     c[RotationCalculation],
		RotationUAV:      c[RotationUAV],
		TotalRotation:    SumStatuses(c, rotationStatuses),

		SupplyCombat:    c[SupplyCombat],
		SupplyGeneral:   c[SupplyGeneral],
		TotalSupply:     SumStatuses(c, supplyStatuses),
		TotalManagement: SumStatuses(c, managementStatuses),

		NonCombatNewcomers:        c[NonCombatNewcomers],
		NonCombatLimited:          c[NonCombatLimitedFitness],
		NonCombatLimitedInUnit:    c[NonCombatLimitedFitnessInUnit],
		NonCombatRefusers:         c[NonCombatRefusers],
		NonCombatAwaitingDecision: c[NonCombatAwaitingDecision],
		NonCombatReferral:         c[NonCombatHasTreatmentReferral],
		NonOnBG:                   SumStatuses(c, nonCombatStatuses),
		TotalNonCombat:            SumStatuses(c, groupNonCombatMissing),

		AbsentBusinessTrip:   c[AbsentBusinessTrip],
		AbsentAWOL:           c[AbsentAWOL],
		AbsentHospital:       c[AbsentHospital],
		AbsentMedicalCompany: c[AbsentMedicalCompany],
		AbsentMedicalBoard:   c[AbsentMedicalBoard],
		AbsentRehabLeave:     c[AbsentRehabLeave],
		AbsentLeave:          c[AbsentLeave],
		AbsentWounded:        c[AbsentWounded],
		AbsentKilled:         c[AbsentKilled],
		AbsentMissing:        c[AbsentMissing],
		TotalAbsent:          SumStatuses(c, absentStatuses),

		InCombatNow: SumStatuses(c, groupInCombatNow),
	}
	t.OnPosition = t.PositionsInfantry + t.PositionsArmorGroup
	t.TotalMissing = t.TotalNonCombat + t.TotalAbsent
	return t
}

// Aggregate builds the report row for a group of persons against a baseline
func Aggregate(unit string, persons []models.Person, planned Planned) UnitReport {
	totals := Totals(persons)

	r := UnitReport{
		Unit:           unit,
		PlannedTotal:   planned.Total,
		PlannedOfficer: planned.Officer,
		PlannedSoldier: planned.Soldier,
		StatusTotals:   totals,
		ActualTotal:    len(persons),
	}

	for _, p := range persons {
		officer := IsOfficer(p.Category)
		status := strings.TrimSpace(p.SoldierStatus)
		if officer {
			r.ActualOfficers++
		}
		if !groupMissing[status] {
			if officer {
				r.PresentTotalOfficer++
			} else {
				r.PresentTotalSoldier++
			}
		}
		if groupInCombatNowSet[status] {
			if officer {
				r.InCombatNowOfficer++
			} else {
				r.InCombatNowSoldier++
			}
		}
	}
	r.ActualSoldiers = r.ActualTotal - r.ActualOfficers

	r.StaffingPercent = "0"
	if planned.Total > 0 {
		r.StaffingPercent = percent(r.ActualTotal, planned.Total) + "%"
	}

	r.PresentTotal = r.ActualTotal - totals.TotalMissing
	r.PresentPercent = "0"
	if r.ActualTotal > 0 {
		r.PresentPercent = percent(r.PresentTotal, r.ActualTotal)
	}

	r.PercentNowCurrent = "0%"
	if planned.Total > 0 {
		r.PercentNowCurrent = percent(totals.InCombatNow, planned.Total) + "%"
	}

	return r
}

// percent renders part/whole*100 rounded half away from zero
func percent(part, whole int) string {
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(0).
		String()
}

var unitLineSeparator = regexp.MustCompile(`\r?\n|,|;`)

// FilterByUnit keeps the persons tagged with the unit. A person matches when one
// line of its unit field, or two adjacent lines joined by a space, equals the
// normalized unit name.
func FilterByUnit(persons []models.Person, unit string) []models.Person {
	target := NormalizeUnitName(unit)
	out := make([]models.Person, 0)

	for _, p := range persons {
		if matchesUnit(p.UnitMain, target) {
			out = append(out, p)
		}
	}
	return out
}

func matchesUnit(unitMain, target string) bool {
	lines := make([]string, 0)
	for _, part := range unitLineSeparator.Split(unitMain, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lines = append(lines, NormalizeUnitName(part))
	}

	for i, line := range lines {
		if line == target {
			return true
		}
		if i+1 < len(lines) && strings.TrimSpace(line+" "+lines[i+1]) == target {
			return true
		}
	}
	return false
}

// FullReport aggregates each listed unit plus the grand total. The grand total is
// recomputed over the whole roster against the sum of all unit baselines; unit
// rows are never averaged.
func FullReport(persons []models.Person, planned PlannedTotals, units []string) []UnitReport {
	rows := make([]UnitReport, 0, len(units)+1)
	for _, unit := range units {
		if unit == GrandTotalKey {
			continue
		}
		rows = append(rows, Aggregate(unit, FilterByUnit(persons, unit), planned.For(unit)))
	}
	rows = append(rows, Aggregate(GrandTotalKey, persons, planned.SumUnits()))
	return rows
}

func concat(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func set(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
