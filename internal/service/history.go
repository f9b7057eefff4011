package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rongwang/unit-roster/internal/models"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/sirupsen/logrus"
)

// History range filters
const (
	RangeDay   = "1d"
	RangeWeek  = "7d"
	RangeMonth = "30d"
	RangeAll   = "all"
)

var historyRanges = map[string]time.Duration{
	RangeDay:   24 * time.Hour,
	RangeWeek:  7 * 24 * time.Hour,
	RangeMonth: 30 * 24 * time.Hour,
	RangeAll:   0,
	"":         0,
}

// ChangeStatus sets the readiness status and records the change with its
// optional validity period.
func (s *DefaultService) ChangeStatus(ctx context.Context, personID int64, req models.StatusChangeRequest) (*models.HistoryEntryResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	period, err := periodPtr(req.Period)
	if err != nil {
		return nil, err
	}

	var entry *models.HistoryEntry
	err = s.repo.WithTx(ctx, func(tx repository.Repository) error {
		person, err := s.mustGetPerson(ctx, tx, personID)
		if err != nil {
			return err
		}

		entry = s.newEntry(ctx, person.ID, models.HistoryStatusChange)
		entry.Note = req.Note
		entry.Period = period
		if len(req.Files) > 0 {
			entry.Files = req.Files
		}
		entry.Payload.StatusChange = &models.StatusChange{
			From: person.SoldierStatus,
			To:   strings.TrimSpace(req.Status),
		}

		person.SoldierStatus = entry.Payload.StatusChange.To
		if err := tx.SavePerson(ctx, person); err != nil {
			return fmt.Errorf("error saving person: %w", err)
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("error appending history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusChange()
	s.log.WithFields(logrus.Fields{
		"person_id": personID,
		"from":      entry.Payload.StatusChange.From,
		"to":        entry.Payload.StatusChange.To,
	}).Info("status changed")

	resp := models.NewHistoryEntryResponse(*entry)
	return &resp, nil
}

// AddNote appends a free-text entry
func (s *DefaultService) AddNote(ctx context.Context, personID int64, req models.HistoryNoteRequest) (*models.HistoryEntryResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	period, err := periodPtr(req.Period)
	if err != nil {
		return nil, err
	}

	person, err := s.mustGetPerson(ctx, s.repo, personID)
	if err != nil {
		return nil, err
	}

	entry := s.newEntry(ctx, person.ID, models.HistoryNote)
	entry.Note = req.Note
	entry.Period = period
	if len(req.Files) > 0 {
		entry.Files = req.Files
	}

	if err := s.repo.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("error appending history: %w", err)
	}

	resp := models.NewHistoryEntryResponse(*entry)
	return &resp, nil
}

// EditHistory replaces the note, files and period of one entry. The entry type
// and its structured payload cannot be edited.
func (s *DefaultService) EditHistory(ctx context.Context, personID, entryID int64, req models.EditHistoryRequest) (*models.HistoryEntryResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	period, err := periodPtr(req.Period)
	if err != nil {
		return nil, err
	}

	var entry *models.HistoryEntry
	err = s.repo.WithTx(ctx, func(tx repository.Repository) error {
		var err error
		entry, err = tx.GetHistoryEntry(ctx, personID, entryID)
		if err != nil {
			return fmt.Errorf("error getting history entry: %w", err)
		}
		if entry == nil {
			return ErrHistoryNotFound
		}

		entry.Note = req.Note
		entry.Period = period
		entry.Files = models.Attachments(req.Files)
		if entry.Files == nil {
			entry.Files = models.Attachments{}
		}
		return tx.EditHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	resp := models.NewHistoryEntryResponse(*entry)
	return &resp, nil
}

// DeleteHistory removes one entry of the person's history. Ledger entries are
// not touched.
func (s *DefaultService) DeleteHistory(ctx context.Context, personID, entryID int64) error {
	deleted, err := s.repo.DeleteHistory(ctx, personID, entryID)
	if err != nil {
		return fmt.Errorf("error deleting history entry: %w", err)
	}
	if !deleted {
		return ErrHistoryNotFound
	}
	return nil
}

// History returns the person's entries within the range, newest first
func (s *DefaultService) History(ctx context.Context, personID int64, rangeFilter string, incompleteOnly bool) ([]models.HistoryEntryResponse, error) {
	window, ok := historyRanges[strings.TrimSpace(rangeFilter)]
	if !ok {
		return nil, invalid("unknown history range %q", rangeFilter)
	}

	if _, err := s.mustGetPerson(ctx, s.repo, personID); err != nil {
		return nil, err
	}

	var since time.Time
	if window > 0 {
		since = s.now().UTC().Add(-window)
	}

	entries, err := s.repo.ListHistory(ctx, personID, since)
	if err != nil {
		return nil, fmt.Errorf("error listing history: %w", err)
	}

	models.SortHistoryForDisplay(entries)

	out := make([]models.HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		if incompleteOnly && !e.Incomplete() {
			continue
		}
		out = append(out, models.NewHistoryEntryResponse(e))
	}
	return out, nil
}
