package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rongwang/unit-roster/internal/models"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryEnforcesOneOccupantPerSlot(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	slot := "3"

	first := &models.Person{FullName: "Перший", SlotNumber: &slot}
	require.NoError(t, repo.CreatePerson(ctx, first))

	second := &models.Person{FullName: "Другий"}
	require.NoError(t, repo.CreatePerson(ctx, second))

	second.SlotNumber = &slot
	assert.ErrorIs(t, repo.SavePerson(ctx, second), repository.ErrSlotOccupied)

	occupant, err := repo.FindPersonBySlot(ctx, slot)
	require.NoError(t, err)
	require.NotNil(t, occupant)
	assert.Equal(t, first.ID, occupant.ID)
}

func TestMemoryRepositoryWithTxRestoresSnapshot(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.SaveSlot(ctx, &models.Slot{ShtatNumber: "1"}))

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx repository.Repository) error {
		if _, err := tx.DeleteAllSlots(ctx); err != nil {
			return err
		}
		return tx.AddDirective(ctx, &models.Directive{ID: "d1", Type: models.DirectiveOrder})
	})
	require.NoError(t, err)

	repo.FailOn("AppendHistory", boom)
	err = repo.WithTx(ctx, func(tx repository.Repository) error {
		if err := tx.SaveSlot(ctx, &models.Slot{ShtatNumber: "2"}); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, &models.HistoryEntry{ID: 1, PersonID: 1})
	})
	assert.ErrorIs(t, err, boom)

	slots, err := repo.ListSlots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots)

	directives, err := repo.ListDirectivesByType(ctx, models.DirectiveOrder)
	require.NoError(t, err)
	assert.Len(t, directives, 1)
}

func TestMemoryRepositoryDeletePersonKeepsLedger(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()

	p := &models.Person{FullName: "Виключений"}
	require.NoError(t, repo.CreatePerson(ctx, p))
	require.NoError(t, repo.AppendHistory(ctx, &models.HistoryEntry{ID: 1, PersonID: p.ID}))
	require.NoError(t, repo.AddDirective(ctx, &models.Directive{ID: "d1", PersonID: p.ID, Type: models.DirectiveExclude}))

	deleted, err := repo.DeletePerson(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	history, err := repo.ListHistory(ctx, p.ID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, history)

	d, err := repo.GetDirective(ctx, "d1")
	require.NoError(t, err)
	assert.NotNil(t, d)
}
