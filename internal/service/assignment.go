package service

import (
	"context"
	"fmt"

	"github.com/rongwang/unit-roster/internal/models"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/sirupsen/logrus"
)

// Assign puts the person into the slot. A current occupant is released first,
// then the person's move (or first assignment) is recorded. All writes share one
// transaction.
func (s *DefaultService) Assign(ctx context.Context, personID int64, slotNumber string) (*models.AssignmentResponse, error) {
	var (
		person    *models.Person
		displaced *models.Person
		kind      models.PositionChangeKind
	)

	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		var err error
		person, err = s.mustGetPerson(ctx, tx, personID)
		if err != nil {
			return err
		}
		if person.Membership == models.MembershipExcluded {
			return fmt.Errorf("%w: excluded persons cannot hold a slot", ErrInvalidTransition)
		}

		slot, err := tx.GetSlot(ctx, slotNumber)
		if err != nil {
			return fmt.Errorf("error getting slot: %w", err)
		}
		if slot == nil {
			return ErrSlotNotFound
		}

		// Already there: only refresh the copied fields
		if person.HoldsSlot(slot.ShtatNumber) {
			if person.MatchesSlot(*slot) {
				return nil
			}
			person.ApplySlot(*slot)
			return tx.SavePerson(ctx, person)
		}

		occupant, err := tx.FindPersonBySlot(ctx, slot.ShtatNumber)
		if err != nil {
			return fmt.Errorf("error finding occupant: %w", err)
		}
		if occupant != nil {
			if err := s.release(ctx, tx, occupant); err != nil {
				return err
			}
			displaced = occupant
		}

		// Capture the previous slot before it is overwritten
		previous := person.CurrentPosition()
		target := slot.Ref()
		change := &models.PositionChange{Kind: models.PositionAssigned, To: &target}
		if previous != nil {
			change.Kind = models.PositionMoved
			change.From = previous
		}
		kind = change.Kind

		person.ApplySlot(*slot)
		if err := tx.SavePerson(ctx, person); err != nil {
			return fmt.Errorf("error saving person: %w", err)
		}

		entry := s.newEntry(ctx, person.ID, models.HistoryPositionChange)
		entry.Payload.PositionChange = change
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("error appending history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{"person_id": person.ID, "slot": slotNumber}
	if displaced != nil {
		fields["displaced_id"] = displaced.ID
		s.metrics.Assignment(string(models.PositionReleased))
	}
	if kind != "" {
		s.metrics.Assignment(string(kind))
		fields["kind"] = kind
	}
	s.log.WithFields(fields).Info("slot assigned")

	return &models.AssignmentResponse{
		Status:    "success",
		Person:    *person,
		Displaced: displaced,
	}, nil
}

// Unassign releases the slot's occupant. ErrNoOccupant is returned when the
// slot is already vacant.
func (s *DefaultService) Unassign(ctx context.Context, slotNumber string) (*models.Person, error) {
	var occupant *models.Person

	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		var err error
		occupant, err = tx.FindPersonBySlot(ctx, slotNumber)
		if err != nil {
			return fmt.Errorf("error finding occupant: %w", err)
		}
		if occupant == nil {
			return ErrNoOccupant
		}
		return s.release(ctx, tx, occupant)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Assignment(string(models.PositionReleased))
	s.log.WithFields(logrus.Fields{"person_id": occupant.ID, "slot": slotNumber}).Info("slot released")

	return occupant, nil
}

// release clears every assignment field of the person and records the release
func (s *DefaultService) release(ctx context.Context, tx repository.Repository, person *models.Person) error {
	from := person.CurrentPosition()
	if from == nil {
		return nil
	}

	person.ClearAssignment()
	if err := tx.SavePerson(ctx, person); err != nil {
		return fmt.Errorf("error saving released person: %w", err)
	}

	entry := s.newEntry(ctx, person.ID, models.HistoryPositionChange)
	entry.Payload.PositionChange = &models.PositionChange{
		Kind:    models.PositionReleased,
		Subject: person.FullName,
		From:    from,
	}
	if err := tx.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("error appending history: %w", err)
	}
	return nil
}

// Reconcile rewrites the copied assignment fields of every person whose slot
// still exists but describes it differently. The slot wins. Running it again on
// the same data changes nothing.
func (s *DefaultService) Reconcile(ctx context.Context) (int, error) {
	var repaired []models.Person

	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		persons, err := tx.ListPersons(ctx)
		if err != nil {
			return fmt.Errorf("error listing persons: %w", err)
		}
		slots, err := tx.ListSlots(ctx)
		if err != nil {
			return fmt.Errorf("error listing slots: %w", err)
		}

		repaired = reconcilePersons(persons, slots)
		if len(repaired) == 0 {
			return nil
		}
		return tx.BulkSavePersons(ctx, repaired)
	})
	if err != nil {
		return 0, err
	}

	s.metrics.Reconciled(len(repaired))
	entry := s.log.WithField("repaired", len(repaired))
	for _, p := range repaired {
		entry.WithFields(logrus.Fields{"person_id": p.ID, "slot": *p.SlotNumber}).Debug("assignment fields repaired")
	}
	entry.Info("reconciliation finished")

	return len(repaired), nil
}

// ReconcileOnce runs Reconcile the first time it is called on this service. A
// failed run may be retried.
func (s *DefaultService) ReconcileOnce(ctx context.Context) (int, error) {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	if s.reconcileDone {
		return 0, nil
	}

	n, err := s.Reconcile(ctx)
	if err != nil {
		return 0, err
	}
	s.reconcileDone = true
	return n, nil
}

// reconcilePersons returns the persons that needed a repair, already repaired
func reconcilePersons(persons []models.Person, slots []models.Slot) []models.Person {
	byNumber := make(map[string]models.Slot, len(slots))
	for _, slot := range slots {
		byNumber[slot.ShtatNumber] = slot
	}

	repaired := make([]models.Person, 0)
	for _, p := range persons {
		if !p.HasSlot() {
			continue
		}
		slot, ok := byNumber[*p.SlotNumber]
		if !ok || p.MatchesSlot(slot) {
			continue
		}
		p.ApplySlot(slot)
		repaired = append(repaired, p)
	}
	return repaired
}
