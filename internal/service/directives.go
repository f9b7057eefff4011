package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rongwang/unit-roster/internal/models"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/sirupsen/logrus"
)

// nextMembership applies a directive to the current membership state
func nextMembership(current models.MembershipState, t models.DirectiveType) (models.MembershipState, error) {
	switch t {
	case models.DirectiveOrder:
		if current == models.MembershipActive {
			return models.MembershipOrdered, nil
		}
	case models.DirectiveExclude:
		if current == models.MembershipActive || current == models.MembershipOrdered {
			return models.MembershipExcluded, nil
		}
	case models.DirectiveRestore:
		if current == models.MembershipOrdered || current == models.MembershipExcluded {
			return models.MembershipActive, nil
		}
	}
	return "", fmt.Errorf("%w: %s directive on a person in state %q", ErrInvalidTransition, t, current)
}

// directivePeriod is the optional range of an order, or the single day of an
// exclusion or restoration
func directivePeriod(req models.DirectiveRequest) (models.Period, error) {
	if req.Type == models.DirectiveOrder {
		return parsePeriod(req.PeriodFrom, req.PeriodTo)
	}
	day := req.Date.Format(dateLayout)
	return models.Period{From: day, To: day}, nil
}

// IssueDirective records the directive in the ledger, appends the matching
// history entry and moves the person to the new membership state. An order keeps
// the slot reference; an exclusion frees the slot; a restoration never gives a
// slot back.
func (s *DefaultService) IssueDirective(ctx context.Context, personID int64, req models.DirectiveRequest) (*models.Directive, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	period, err := directivePeriod(req)
	if err != nil {
		return nil, err
	}

	directive := &models.Directive{
		ID:          uuid.New().String(),
		PersonID:    personID,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		File:        req.File,
		Date:        req.Date.UTC(),
		Period:      period,
	}
	var released bool

	err = s.repo.WithTx(ctx, func(tx repository.Repository) error {
		person, err := s.mustGetPerson(ctx, tx, personID)
		if err != nil {
			return err
		}

		next, err := nextMembership(person.Membership, req.Type)
		if err != nil {
			return err
		}

		if err := tx.AddDirective(ctx, directive); err != nil {
			return fmt.Errorf("error adding directive: %w", err)
		}

		entry := s.newEntry(ctx, person.ID, req.Type.HistoryType())
		entry.Date = directive.Date
		entry.Note = req.Description
		entry.Files = models.Attachments{*req.File}
		entry.Payload.Directive = &models.DirectiveRef{DirectiveID: directive.ID, Title: directive.Title}
		if !period.IsZero() {
			p := period
			entry.Period = &p
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("error appending history: %w", err)
		}

		if next == models.MembershipExcluded && person.HasSlot() {
			if err := s.release(ctx, tx, person); err != nil {
				return err
			}
			released = true
		}

		person.Membership = next
		if err := tx.SavePerson(ctx, person); err != nil {
			return fmt.Errorf("error saving person: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Directive(string(directive.Type))
	if released {
		s.metrics.Assignment(string(models.PositionReleased))
	}
	s.log.WithFields(logrus.Fields{
		"person_id":    personID,
		"directive_id": directive.ID,
		"type":         directive.Type,
		"released":     released,
	}).Info("directive issued")

	return directive, nil
}

func (s *DefaultService) ListDirectives(ctx context.Context, t models.DirectiveType) ([]models.Directive, error) {
	if !t.Valid() {
		return nil, invalid("unknown directive type %q", t)
	}

	directives, err := s.repo.ListDirectivesByType(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("error listing directives: %w", err)
	}
	return directives, nil
}

// DeleteDirective removes a ledger entry only. The person's history entry stays.
func (s *DefaultService) DeleteDirective(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteDirectiveByID(ctx, id)
	if err != nil {
		return fmt.Errorf("error deleting directive: %w", err)
	}
	if !deleted {
		return ErrDirectiveNotFound
	}
	s.log.WithField("directive_id", id).Info("directive deleted from ledger")
	return nil
}

// DeletePersonDirectives removes the person's ledger entries dated date
func (s *DefaultService) DeletePersonDirectives(ctx context.Context, personID int64, date time.Time) (int64, error) {
	n, err := s.repo.DeleteDirectives(ctx, personID, date.UTC())
	if err != nil {
		return 0, fmt.Errorf("error deleting directives: %w", err)
	}
	return n, nil
}

// ClearDirectives empties the ledger of one type. History entries are kept.
func (s *DefaultService) ClearDirectives(ctx context.Context, t models.DirectiveType) (int64, error) {
	if !t.Valid() {
		return 0, invalid("unknown directive type %q", t)
	}

	n, err := s.repo.ClearDirectivesByType(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("error clearing directives: %w", err)
	}
	s.log.WithFields(logrus.Fields{"type": t, "deleted": n}).Info("directive ledger cleared")
	return n, nil
}

// RemoveExclusion deletes an exclusion from the ledger together with the
// excluded person record. A person already gone is not an error.
func (s *DefaultService) RemoveExclusion(ctx context.Context, id string) error {
	var personDeleted bool

	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		directive, err := tx.GetDirective(ctx, id)
		if err != nil {
			return fmt.Errorf("error getting directive: %w", err)
		}
		if directive == nil {
			return ErrDirectiveNotFound
		}
		if directive.Type != models.DirectiveExclude {
			return invalid("directive %s is not an exclusion", id)
		}

		if _, err := tx.DeleteDirectiveByID(ctx, id); err != nil {
			return fmt.Errorf("error deleting directive: %w", err)
		}
		personDeleted, err = tx.DeletePerson(ctx, directive.PersonID)
		if err != nil {
			return fmt.Errorf("error deleting person: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"directive_id": id, "person_deleted": personDeleted}).Info("exclusion removed")
	return nil
}
