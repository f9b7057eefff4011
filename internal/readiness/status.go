// Package readiness classifies readiness statuses and aggregates them into
// per-unit staffing reports against a planned baseline.
package readiness

import "strings"

// Known readiness statuses
const (
	StatusNone = "Без статусу"

	PositionInfantry        = "Позиція піхоти"
	PositionCrew            = "Позиція екіпажу"
	PositionCalculation     = "Позиція розрахунку"
	PositionUAV             = "Позиція БПЛА"
	PositionArmorGroup      = "Бронегрупа"
	PositionReserveInfantry = "Резерв піхоти"

	RotationInfantry    = "Ротація піхота"
	RotationCrew        = "Ротація екіпаж"
	RotationCalculation = "Ротація розрахунок"
	RotationUAV         = "Ротація БПЛА"

	SupplyCombat  = "Бойове забезпечення"
	SupplyGeneral = "Забезпечення"

	Management = "Управління"

	NonCombatNewcomers            = "Новоприбулі"
	NonCombatLimitedFitness       = "Обмежено придатні"
	NonCombatLimitedFitnessInUnit = "Хворі в підрозділі"
	NonCombatRefusers             = "Відмовники"
	NonCombatAwaitingDecision     = "Очікують кадрового рішення"
	NonCombatHasTreatmentReferral = "Мають направлення на лікування"

	AbsentBusinessTrip   = "Відрядження"
	AbsentAWOL           = "СЗЧ"
	AbsentHospital       = "Шпиталь"
	AbsentMedicalCompany = "Медична рота"
	AbsentMedicalBoard   = "ВЛК"
	AbsentRehabLeave     = "Відпустка реабілітація"
	AbsentLeave          = "Відпустка"
	AbsentWounded        = "300"
	AbsentKilled         = "200"
	AbsentMissing        = "500"
)

// Category is a disjoint reporting bucket
type Category string

const (
	CategoryNone       Category = ""
	CategoryOnPosition Category = "on_position"
	CategoryRotation   Category = "rotation"
	CategorySupply     Category = "supply"
	CategoryManagement Category = "management"
	CategoryNonCombat  Category = "non_combat"
	CategoryAbsent     Category = "absent"
)

var (
	positionStatuses = []string{
		PositionInfantry, PositionCrew, PositionCalculation,
		PositionUAV, PositionArmorGroup, PositionReserveInfantry,
	}
	rotationStatuses   = []string{RotationInfantry, RotationCrew, RotationCalculation, RotationUAV}
	supplyStatuses     = []string{SupplyCombat, SupplyGeneral}
	managementStatuses = []string{Management}
	nonCombatStatuses  = []string{
		NonCombatNewcomers, NonCombatLimitedFitness, NonCombatLimitedFitnessInUnit,
		NonCombatRefusers, NonCombatAwaitingDecision, NonCombatHasTreatmentReferral,
	}
	absentStatuses = []string{
		AbsentBusinessTrip, AbsentAWOL, AbsentHospital, AbsentMedicalCompany, AbsentMedicalBoard,
		AbsentRehabLeave, AbsentLeave, AbsentWounded, AbsentKilled, AbsentMissing,
	}

	categoryByStatus = buildCategoryIndex()
)

func buildCategoryIndex() map[string]Category {
	index := make(map[string]Category)
	add := func(c Category, statuses []string) {
		for _, s := range statuses {
			index[s] = c
		}
	}
	add(CategoryOnPosition, positionStatuses)
	add(CategoryRotation, rotationStatuses)
	add(CategorySupply, supplyStatuses)
	add(CategoryManagement, managementStatuses)
	add(CategoryNonCombat, nonCombatStatuses)
	add(CategoryAbsent, absentStatuses)
	return index
}

// Categorize returns the single bucket of a known status. Unknown or empty
// statuses belong to no bucket.
func Categorize(status string) Category {
	return categoryByStatus[strings.TrimSpace(status)]
}

// Statuses returns the known statuses of a bucket in report order
func Statuses(c Category) []string {
	var src []string
	switch c {
	case CategoryOnPosition:
		src = positionStatuses
	case CategoryRotation:
		src = rotationStatuses
	case CategorySupply:
		src = supplyStatuses
	case CategoryManagement:
		src = managementStatuses
	case CategoryNonCombat:
		src = nonCombatStatuses
	case CategoryAbsent:
		src = absentStatuses
	}
	return append([]string(nil), src...)
}

// Classification holds the two report-only columns derived from a status
type Classification struct {
	StatusInArea  string `json:"statusInArea"`
	AbsenceReason string `json:"absenceReason"`
}

// Free-text fragments recognised when a status is not one of the known values
var (
	inAreaMarkers  = []string{"Позиція", "Ротація", "Забезпечення", "забезпечення", "Управління", "КСП"}
	absenceMarkers = []string{
		"Відпустка", "Навчання", "Відрядження", "Арешт", "СЗЧ", "Шпиталь", "ВЛК",
		"Приданий", "лікування", "Звільнений", "Обмежено придатн", "Очікує кадрового рішення", "Відмовник",
	}
	absenceExact = map[string]bool{AbsentWounded: true, AbsentKilled: true, AbsentMissing: true}
)

// Classify derives the area status and the absence reason for a status. It never
// fails: an empty or unrecognised status yields two empty strings.
func Classify(status string) Classification {
	status = strings.TrimSpace(status)
	if status == "" {
		return Classification{}
	}

	switch Categorize(status) {
	case CategoryOnPosition, CategoryRotation, CategorySupply, CategoryManagement:
		return Classification{StatusInArea: status}
	case CategoryNonCombat, CategoryAbsent:
		return Classification{AbsenceReason: status}
	}

	if containsAny(status, inAreaMarkers) {
		return Classification{StatusInArea: status}
	}
	if absenceExact[status] || containsAny(status, absenceMarkers) {
		return Classification{AbsenceReason: status}
	}
	return Classification{}
}

var namedListMarks = map[string]string{
	AbsentLeave:                   "вп",
	AbsentRehabLeave:              "вп",
	AbsentBusinessTrip:            "вд",
	AbsentHospital:                "гп",
	AbsentMedicalCompany:          "гп",
	AbsentWounded:                 "300",
	AbsentAWOL:                    "сзч",
	AbsentKilled:                  "200",
	AbsentMissing:                 "500",
	AbsentMedicalBoard:            "влк",
	Management:                    "воп",
	SupplyCombat:                  "воп",
	SupplyGeneral:                 "воп",
	PositionInfantry:              "воп",
	PositionUAV:                   "воп",
	PositionCrew:                  "воп",
	PositionCalculation:           "воп",
	PositionReserveInfantry:       "воп",
	PositionArmorGroup:            "бч",
	NonCombatNewcomers:            "+",
	NonCombatLimitedFitness:       "+",
	NonCombatLimitedFitnessInUnit: "+",
	NonCombatHasTreatmentReferral: "+",
	NonCombatAwaitingDecision:     "зв",
}

// NamedListMark returns the short attendance mark used in the daily named list
func NamedListMark(status string) string {
	return namedListMarks[strings.TrimSpace(status)]
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
