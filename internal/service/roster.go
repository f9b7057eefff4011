package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rongwang/unit-roster/internal/models"
	"github.com/rongwang/unit-roster/internal/readiness"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/sirupsen/logrus"
)

// Person operations
func (s *DefaultService) RegisterPerson(ctx context.Context, req models.CreatePersonRequest) (*models.Person, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return nil, invalid("fullName is required")
	}

	person := &models.Person{
		FullName:      name,
		Rank:          strings.TrimSpace(req.Rank),
		SoldierStatus: strings.TrimSpace(req.SoldierStatus),
		Membership:    models.MembershipActive,
	}

	if err := s.repo.CreatePerson(ctx, person); err != nil {
		return nil, fmt.Errorf("error creating person: %w", err)
	}

	s.log.WithField("person_id", person.ID).Info("person registered")
	return person, nil
}

// GetPerson returns the person with the full history, newest first
func (s *DefaultService) GetPerson(ctx context.Context, id int64) (*models.PersonResponse, error) {
	person, err := s.mustGetPerson(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}

	history, err := s.History(ctx, id, RangeAll, false)
	if err != nil {
		return nil, err
	}

	return &models.PersonResponse{Person: *person, History: history}, nil
}

// ListPersons returns the roster, optionally only one membership state
func (s *DefaultService) ListPersons(ctx context.Context, membership models.MembershipState) ([]models.Person, error) {
	if membership != "" && !membership.Valid() {
		return nil, invalid("unknown membership %q", membership)
	}

	persons, err := s.repo.ListPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing persons: %w", err)
	}
	if membership == "" {
		return persons, nil
	}

	out := make([]models.Person, 0, len(persons))
	for _, p := range persons {
		if p.Membership == membership {
			out = append(out, p)
		}
	}
	return out, nil
}

// DeletePerson removes the person and its history. Ledger entries are kept.
func (s *DefaultService) DeletePerson(ctx context.Context, id int64) error {
	deleted, err := s.repo.DeletePerson(ctx, id)
	if err != nil {
		return fmt.Errorf("error deleting person: %w", err)
	}
	if !deleted {
		return ErrPersonNotFound
	}
	s.log.WithField("person_id", id).Info("person deleted")
	return nil
}

// Slot operations
var slotDigits = regexp.MustCompile(`\d+`)

// slotOrder sorts by the first number in the slot id, then by the id itself
func slotOrder(a, b string) bool {
	na, okA := slotNumeric(a)
	nb, okB := slotNumeric(b)
	if okA && okB && na != nb {
		return na < nb
	}
	if okA != okB {
		return okA
	}
	return a < b
}

func slotNumeric(number string) (int, bool) {
	m := slotDigits.FindString(number)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

func (s *DefaultService) ListSlots(ctx context.Context) ([]models.Slot, error) {
	slots, err := s.repo.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing slots: %w", err)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slotOrder(slots[i].ShtatNumber, slots[j].ShtatNumber)
	})
	return slots, nil
}

// ImportSlots inserts the slots whose number is not taken yet. Existing slots
// and rows without a number are skipped.
func (s *DefaultService) ImportSlots(ctx context.Context, slots []models.Slot) (*models.ImportResult, error) {
	result := &models.ImportResult{Status: "success", Total: len(slots)}

	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		result.Added, result.Skipped = 0, 0
		for i := range slots {
			slot := slots[i]
			slot.ShtatNumber = strings.TrimSpace(slot.ShtatNumber)
			if slot.ShtatNumber == "" {
				result.Skipped++
				continue
			}

			added, err := tx.InsertSlotIfAbsent(ctx, &slot)
			if err != nil {
				return fmt.Errorf("error importing slot %s: %w", slot.ShtatNumber, err)
			}
			if added {
				result.Added++
			} else {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"added":   result.Added,
		"skipped": result.Skipped,
		"total":   result.Total,
	}).Info("slots imported")
	return result, nil
}

// UpdateSlot replaces the slot's fields and copies them onto its occupant
func (s *DefaultService) UpdateSlot(ctx context.Context, number string, slot models.Slot) (*models.Slot, error) {
	slot.ShtatNumber = number

	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		existing, err := tx.GetSlot(ctx, number)
		if err != nil {
			return fmt.Errorf("error getting slot: %w", err)
		}
		if existing == nil {
			return ErrSlotNotFound
		}
		if slot.ExtraData == nil {
			slot.ExtraData = existing.ExtraData
		}

		if err := tx.SaveSlot(ctx, &slot); err != nil {
			return fmt.Errorf("error saving slot: %w", err)
		}

		occupant, err := tx.FindPersonBySlot(ctx, number)
		if err != nil {
			return fmt.Errorf("error finding occupant: %w", err)
		}
		if occupant == nil || occupant.MatchesSlot(slot) {
			return nil
		}
		occupant.ApplySlot(slot)
		return tx.SavePerson(ctx, occupant)
	})
	if err != nil {
		return nil, err
	}

	return &slot, nil
}

// DeleteSlot removes the slot. An occupant keeps its reference until it is
// reassigned or released.
func (s *DefaultService) DeleteSlot(ctx context.Context, number string) error {
	deleted, err := s.repo.DeleteSlot(ctx, number)
	if err != nil {
		return fmt.Errorf("error deleting slot: %w", err)
	}
	if !deleted {
		return ErrSlotNotFound
	}
	return nil
}

func (s *DefaultService) DeleteAllSlots(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAllSlots(ctx)
	if err != nil {
		return 0, fmt.Errorf("error deleting slots: %w", err)
	}
	s.log.WithField("deleted", n).Warn("all slots deleted")
	return n, nil
}

// StaffTable joins every slot with its occupant. Report columns stored on the
// slot win over the values derived from the occupant's status.
func (s *DefaultService) StaffTable(ctx context.Context) ([]models.StaffRow, error) {
	slots, err := s.ListSlots(ctx)
	if err != nil {
		return nil, err
	}
	persons, err := s.repo.ListPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing persons: %w", err)
	}

	occupants := make(map[string]models.Person, len(persons))
	for _, p := range persons {
		if p.HasSlot() {
			occupants[*p.SlotNumber] = p
		}
	}

	rows := make([]models.StaffRow, 0, len(slots))
	for _, slot := range slots {
		extra := slot.ExtraData
		row := models.StaffRow{
			ShtatNumber:     slot.ShtatNumber,
			Unit:            slot.UnitName,
			Position:        slot.PositionName,
			Category:        slot.Category,
			ShpkCode:        slot.ShpkCode,
			StatusInArea:    extra[models.ExtraStatusInArea],
			AbsenceReason:   extra[models.ExtraAbsenceReason],
			DateFrom:        extra[models.ExtraDateFrom],
			DateTo:          extra[models.ExtraDateTo],
			DistanceFromLVZ: extra[models.ExtraDistanceFromLVZ],
			StatusNote:      extra[models.ExtraStatusNote],
		}

		if p, ok := occupants[slot.ShtatNumber]; ok {
			if err := s.fillOccupant(ctx, &row, p, extra); err != nil {
				return nil, err
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *DefaultService) fillOccupant(ctx context.Context, row *models.StaffRow, p models.Person, extra models.ExtraData) error {
	id := p.ID
	row.PersonID = &id
	row.FullName = p.FullName
	row.Rank = p.Rank
	row.Membership = p.Membership
	row.SoldierStatus = p.SoldierStatus
	row.Mark = readiness.NamedListMark(p.SoldierStatus)

	_, inAreaSet := extra[models.ExtraStatusInArea]
	_, absenceSet := extra[models.ExtraAbsenceReason]
	if !inAreaSet && !absenceSet {
		c := readiness.Classify(p.SoldierStatus)
		row.StatusInArea = c.StatusInArea
		row.AbsenceReason = c.AbsenceReason
	}

	history, err := s.repo.ListHistory(ctx, p.ID, time.Time{})
	if err != nil {
		return fmt.Errorf("error listing history: %w", err)
	}
	if period := models.LatestStatusPeriod(history); period != nil {
		row.DateFrom = period.From
		row.DateTo = period.To
	}
	return nil
}

// Reports
func (s *DefaultService) PlannedTotals(ctx context.Context) (readiness.PlannedTotals, error) {
	slots, err := s.repo.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing slots: %w", err)
	}
	return readiness.BuildPlanned(slots), nil
}

// ReadinessReport aggregates the non-excluded roster per report unit. Planned
// units missing from the configured list get their own row before the total.
func (s *DefaultService) ReadinessReport(ctx context.Context) ([]readiness.UnitReport, error) {
	planned, err := s.PlannedTotals(ctx)
	if err != nil {
		return nil, err
	}

	persons, err := s.ListPersons(ctx, "")
	if err != nil {
		return nil, err
	}
	roster := make([]models.Person, 0, len(persons))
	for _, p := range persons {
		if p.Membership != models.MembershipExcluded {
			roster = append(roster, p)
		}
	}

	units := append([]string(nil), s.reportUnits...)
	listed := make(map[string]bool, len(units))
	for _, u := range units {
		listed[u] = true
	}
	for _, u := range planned.Units() {
		if !listed[u] {
			units = append(units, u)
		}
	}

	return readiness.FullReport(roster, planned, units), nil
}
