package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rongwang/unit-roster/internal/models"
	"github.com/rongwang/unit-roster/internal/readiness"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/rongwang/unit-roster/internal/service"
	"github.com/rongwang/unit-roster/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

type fixture struct {
	svc   *service.DefaultService
	repo  *repository.MemoryRepository
	clock *testClock
	ctx   context.Context
}

func setup(t *testing.T) *fixture {
	t.Helper()

	repo := repository.NewMemoryRepository()
	clock := &testClock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc := service.NewDefaultService(repo,
		service.WithLogger(utils.NopLogger()),
		service.WithClock(clock.Now),
	)

	f := &fixture{svc: svc, repo: repo, clock: clock, ctx: service.WithOperator(context.Background(), "черговий")}

	_, err := svc.ImportSlots(f.ctx, []models.Slot{
		{ShtatNumber: "1", UnitName: "1-й взвод", PositionName: "Стрілець", Category: "Солдати", ShpkCode: "100"},
		{ShtatNumber: "2", UnitName: "2-й взвод", PositionName: "Кулеметник", Category: "Солдати", ShpkCode: "101"},
		{ShtatNumber: "3", UnitName: "Управління роти", PositionName: "Командир роти", Category: "Офіцери", ShpkCode: "001"},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) register(t *testing.T, name string) *models.Person {
	t.Helper()
	p, err := f.svc.RegisterPerson(f.ctx, models.CreatePersonRequest{FullName: name, Rank: "солдат"})
	require.NoError(t, err)
	return p
}

func (f *fixture) person(t *testing.T, id int64) *models.PersonResponse {
	t.Helper()
	p, err := f.svc.GetPerson(f.ctx, id)
	require.NoError(t, err)
	return p
}

func (f *fixture) directive(t models.DirectiveType, title string) models.DirectiveRequest {
	return models.DirectiveRequest{
		Type:  t,
		Title: title,
		File:  &models.Attachment{Name: title + ".pdf", Type: "application/pdf"},
		Date:  f.clock.t,
	}
}

// assertOneOccupantPerSlot checks that no slot number is referenced twice
func assertOneOccupantPerSlot(t *testing.T, f *fixture) {
	t.Helper()
	persons, err := f.repo.ListPersons(f.ctx)
	require.NoError(t, err)

	seen := make(map[string]int64)
	for _, p := range persons {
		if !p.HasSlot() {
			continue
		}
		other, dup := seen[*p.SlotNumber]
		assert.False(t, dup, "slot %s held by %d and %d", *p.SlotNumber, other, p.ID)
		seen[*p.SlotNumber] = p.ID
	}
}

func assertCleared(t *testing.T, p models.Person) {
	t.Helper()
	assert.Nil(t, p.SlotNumber)
	assert.Empty(t, p.Position)
	assert.Empty(t, p.UnitMain)
	assert.Empty(t, p.Category)
	assert.Empty(t, p.ShpkCode)
}

func TestAssignFirstAssignment(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")

	resp, err := f.svc.Assign(f.ctx, p.ID, "1")
	require.NoError(t, err)
	assert.Nil(t, resp.Displaced)
	assert.True(t, resp.Person.HoldsSlot("1"))
	assert.Equal(t, "Стрілець", resp.Person.Position)
	assert.Equal(t, "1-й взвод", resp.Person.UnitMain)
	assert.Equal(t, "Солдати", resp.Person.Category)
	assert.Equal(t, "100", resp.Person.ShpkCode)

	got := f.person(t, p.ID)
	require.Len(t, got.History, 1)
	assert.Equal(t, "Призначено на посаду Стрілець (1-й взвод)", got.History[0].Description)
	assert.Equal(t, "черговий", got.History[0].Author)
}

func TestAssignDisplacesOccupant(t *testing.T) {
	f := setup(t)
	first := f.register(t, "Петренко Іван")
	second := f.register(t, "Коваль Олег")

	_, err := f.svc.Assign(f.ctx, first.ID, "1")
	require.NoError(t, err)

	resp, err := f.svc.Assign(f.ctx, second.ID, "1")
	require.NoError(t, err)
	require.NotNil(t, resp.Displaced)
	assert.Equal(t, first.ID, resp.Displaced.ID)

	displaced := f.person(t, first.ID)
	assertCleared(t, displaced.Person)
	require.Len(t, displaced.History, 2)
	assert.Equal(t, "Користувача Петренко Іван звільнено з посади Стрілець (1-й взвод)", displaced.History[0].Description)

	assert.True(t, f.person(t, second.ID).HoldsSlot("1"))
	assertOneOccupantPerSlot(t, f)
}

func TestAssignMoveRecordsPreviousSlot(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")

	_, err := f.svc.Assign(f.ctx, p.ID, "1")
	require.NoError(t, err)
	resp, err := f.svc.Assign(f.ctx, p.ID, "2")
	require.NoError(t, err)
	assert.True(t, resp.Person.HoldsSlot("2"))

	got := f.person(t, p.ID)
	require.Len(t, got.History, 2)
	assert.Equal(t, "Переміщено з посади Стрілець (1-й взвод) → Кулеметник (2-й взвод)", got.History[0].Description)
	require.NotNil(t, got.History[0].Payload.PositionChange)
	assert.Equal(t, "1", got.History[0].Payload.PositionChange.From.SlotNumber)

	_, err = f.svc.Unassign(f.ctx, "1")
	assert.ErrorIs(t, err, service.ErrNoOccupant)
}

func TestAssignSameSlotWritesNothing(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")

	_, err := f.svc.Assign(f.ctx, p.ID, "1")
	require.NoError(t, err)
	_, err = f.svc.Assign(f.ctx, p.ID, "1")
	require.NoError(t, err)

	assert.Len(t, f.person(t, p.ID).History, 1)
}

func TestAssignErrors(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")

	_, err := f.svc.Assign(f.ctx, 999, "1")
	assert.ErrorIs(t, err, service.ErrPersonNotFound)

	_, err = f.svc.Assign(f.ctx, p.ID, "404")
	assert.ErrorIs(t, err, service.ErrSlotNotFound)
}

func TestAssignmentSequenceKeepsOneOccupantPerSlot(t *testing.T) {
	f := setup(t)
	a := f.register(t, "А")
	b := f.register(t, "Б")
	c := f.register(t, "В")

	steps := []struct {
		person int64
		slot   string
	}{
		{a.ID, "1"}, {b.ID, "1"}, {c.ID, "2"}, {a.ID, "2"},
		{b.ID, "3"}, {c.ID, "3"}, {a.ID, "1"}, {b.ID, "1"},
	}

	for _, step := range steps {
		_, err := f.svc.Assign(f.ctx, step.person, step.slot)
		require.NoError(t, err)
		assertOneOccupantPerSlot(t, f)
	}

	// Everyone who lost a slot along the way has all fields cleared
	persons, err := f.svc.ListPersons(f.ctx, "")
	require.NoError(t, err)
	for _, p := range persons {
		if !p.HasSlot() {
			assertCleared(t, p)
		}
	}
}

func TestAssignRollsBackOnFailure(t *testing.T) {
	f := setup(t)
	first := f.register(t, "Петренко Іван")
	second := f.register(t, "Коваль Олег")

	_, err := f.svc.Assign(f.ctx, first.ID, "1")
	require.NoError(t, err)

	boom := errors.New("storage unavailable")
	f.repo.FailOn("AppendHistory", boom)

	_, err = f.svc.Assign(f.ctx, second.ID, "1")
	assert.ErrorIs(t, err, boom)

	f.repo.FailOn("AppendHistory", nil)

	// Nothing of the failed action is visible
	assert.True(t, f.person(t, first.ID).HoldsSlot("1"))
	assert.False(t, f.person(t, second.ID).HasSlot())
	assert.Len(t, f.person(t, first.ID).History, 1)
}

func TestUnassign(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")

	_, err := f.svc.Unassign(f.ctx, "1")
	assert.ErrorIs(t, err, service.ErrNoOccupant)

	_, err = f.svc.Assign(f.ctx, p.ID, "1")
	require.NoError(t, err)

	released, err := f.svc.Unassign(f.ctx, "1")
	require.NoError(t, err)
	assertCleared(t, *released)

	got := f.person(t, p.ID)
	assertCleared(t, got.Person)
	require.Len(t, got.History, 2)
	require.NotNil(t, got.History[0].Payload.PositionChange)
	assert.Equal(t, models.PositionReleased, got.History[0].Payload.PositionChange.Kind)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := setup(t)
	slot := "2"
	stale := &models.Person{
		FullName:   "Застарілий",
		Position:   "Стара посада",
		UnitMain:   "Старий підрозділ",
		SlotNumber: &slot,
	}
	require.NoError(t, f.repo.CreatePerson(f.ctx, stale))

	dangling := "77"
	orphan := &models.Person{FullName: "Без посади", Position: "Ліквідована", SlotNumber: &dangling}
	require.NoError(t, f.repo.CreatePerson(f.ctx, orphan))

	n, err := f.svc.Reconcile(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := f.repo.ListPersons(f.ctx)
	require.NoError(t, err)

	n, err = f.svc.Reconcile(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	again, err := f.repo.ListPersons(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, after, again)

	got := f.person(t, stale.ID)
	assert.Equal(t, "Кулеметник", got.Position)
	assert.Equal(t, "2-й взвод", got.UnitMain)
	assert.Empty(t, got.History)

	// A slot that no longer exists is left alone
	assert.Equal(t, "Ліквідована", f.person(t, orphan.ID).Position)
}

func TestReconcileOnceRunsOnce(t *testing.T) {
	f := setup(t)
	slot := "1"
	require.NoError(t, f.repo.CreatePerson(f.ctx, &models.Person{FullName: "А", SlotNumber: &slot}))

	n, err := f.svc.ReconcileOnce(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	other := "2"
	require.NoError(t, f.repo.CreatePerson(f.ctx, &models.Person{FullName: "Б", SlotNumber: &other}))

	n, err = f.svc.ReconcileOnce(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDirectiveStateMachine(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")
	_, err := f.svc.Assign(f.ctx, p.ID, "1")
	require.NoError(t, err)

	// Test case 1: restore is only valid away from the unit
	_, err = f.svc.IssueDirective(f.ctx, p.ID, f.directive(models.DirectiveRestore, "Наказ 1"))
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	// Test case 2: an order keeps the slot
	order := f.directive(models.DirectiveOrder, "Наказ 2")
	order.PeriodFrom, order.PeriodTo = "2025-03-10", "2025-03-20"
	d, err := f.svc.IssueDirective(f.ctx, p.ID, order)
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, models.Period{From: "2025-03-10", To: "2025-03-20"}, d.Period)

	got := f.person(t, p.ID)
	assert.Equal(t, models.MembershipOrdered, got.Membership)
	assert.True(t, got.HoldsSlot("1"))
	assert.Equal(t, "Подано розпорядження: Наказ 2", got.History[0].Description)

	// Test case 3: a second order is rejected
	_, err = f.svc.IssueDirective(f.ctx, p.ID, f.directive(models.DirectiveOrder, "Наказ 3"))
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	// Test case 4: restore returns to active with the slot still held
	_, err = f.svc.IssueDirective(f.ctx, p.ID, f.directive(models.DirectiveRestore, "Наказ 4"))
	require.NoError(t, err)
	got = f.person(t, p.ID)
	assert.Equal(t, models.MembershipActive, got.Membership)
	assert.True(t, got.HoldsSlot("1"))

	orders, err := f.svc.ListDirectives(f.ctx, models.DirectiveOrder)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestExcludeFreesSlotAndRestoreDoesNotGiveItBack(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")
	replacement := f.register(t, "Коваль Олег")
	_, err := f.svc.Assign(f.ctx, p.ID, "1")
	require.NoError(t, err)

	d, err := f.svc.IssueDirective(f.ctx, p.ID, f.directive(models.DirectiveExclude, "Наказ про виключення"))
	require.NoError(t, err)
	assert.Equal(t, f.clock.t.Format("2006-01-02"), d.Period.From)
	assert.Equal(t, d.Period.From, d.Period.To)

	got := f.person(t, p.ID)
	assert.Equal(t, models.MembershipExcluded, got.Membership)
	assertCleared(t, got.Person)

	var sawRelease, sawDirective bool
	for _, e := range got.History {
		switch e.Type {
		case models.HistoryPositionChange:
			if e.Payload.PositionChange.Kind == models.PositionReleased {
				sawRelease = true
			}
		case models.HistoryDirectiveExclude:
			sawDirective = true
			assert.Equal(t, "Користувача виключено: Наказ про виключення", e.Description)
		}
	}
	assert.True(t, sawRelease)
	assert.True(t, sawDirective)

	// Excluded persons cannot be assigned
	_, err = f.svc.Assign(f.ctx, p.ID, "2")
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	// The slot is taken in the meantime
	_, err = f.svc.Assign(f.ctx, replacement.ID, "1")
	require.NoError(t, err)

	_, err = f.svc.IssueDirective(f.ctx, p.ID, f.directive(models.DirectiveRestore, "Наказ про відновлення"))
	require.NoError(t, err)

	got = f.person(t, p.ID)
	assert.Equal(t, models.MembershipActive, got.Membership)
	assert.False(t, got.HasSlot())
	assert.True(t, f.person(t, replacement.ID).HoldsSlot("1"))
	assertOneOccupantPerSlot(t, f)
}

func TestOrderedOccupantIsDisplacedLikeAnyOther(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")
	other := f.register(t, "Коваль Олег")
	_, err := f.svc.Assign(f.ctx, p.ID, "1")
	require.NoError(t, err)
	_, err = f.svc.IssueDirective(f.ctx, p.ID, f.directive(models.DirectiveOrder, "Наказ"))
	require.NoError(t, err)

	_, err = f.svc.Assign(f.ctx, other.ID, "1")
	require.NoError(t, err)

	got := f.person(t, p.ID)
	assert.Equal(t, models.MembershipOrdered, got.Membership)
	assertCleared(t, got.Person)
	assertOneOccupantPerSlot(t, f)
}

func TestIssueDirectiveValidation(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")

	tests := []struct {
		name string
		req  models.DirectiveRequest
	}{
		{"missing title", models.DirectiveRequest{Type: models.DirectiveOrder, File: &models.Attachment{Name: "a.pdf"}, Date: f.clock.t}},
		{"missing file", models.DirectiveRequest{Type: models.DirectiveOrder, Title: "Наказ", Date: f.clock.t}},
		{"missing date", models.DirectiveRequest{Type: models.DirectiveOrder, Title: "Наказ", File: &models.Attachment{Name: "a.pdf"}}},
		{"unnamed file", models.DirectiveRequest{Type: models.DirectiveOrder, Title: "Наказ", File: &models.Attachment{}, Date: f.clock.t}},
		{"unknown type", models.DirectiveRequest{Type: "promote", Title: "Наказ", File: &models.Attachment{Name: "a.pdf"}, Date: f.clock.t}},
		{"bad period", models.DirectiveRequest{Type: models.DirectiveOrder, Title: "Наказ", File: &models.Attachment{Name: "a.pdf"}, Date: f.clock.t, PeriodFrom: "2025-03-20", PeriodTo: "2025-03-10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.IssueDirective(f.ctx, p.ID, tt.req)
			var verr *service.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	// Nothing was written
	orders, err := f.svc.ListDirectives(f.ctx, models.DirectiveOrder)
	require.NoError(t, err)
	assert.Empty(t, orders)
	got := f.person(t, p.ID)
	assert.Equal(t, models.MembershipActive, got.Membership)
	assert.Empty(t, got.History)
}

func TestLedgerAndHistoryDeletionAreIndependent(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")

	d, err := f.svc.IssueDirective(f.ctx, p.ID, f.directive(models.DirectiveOrder, "Наказ"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteDirective(f.ctx, d.ID))
	assert.ErrorIs(t, f.svc.DeleteDirective(f.ctx, d.ID), service.ErrDirectiveNotFound)

	got := f.person(t, p.ID)
	require.Len(t, got.History, 1)
	assert.Equal(t, models.HistoryDirectiveOrder, got.History[0].Type)

	_, err = f.svc.IssueDirective(f.ctx, p.ID, f.directive(models.DirectiveRestore, "Відновлення"))
	require.NoError(t, err)
	n, err := f.svc.ClearDirectives(f.ctx, models.DirectiveRestore)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, f.person(t, p.ID).History, 2)

	require.NoError(t, f.svc.DeleteHistory(f.ctx, p.ID, got.History[0].ID))
	assert.ErrorIs(t, f.svc.DeleteHistory(f.ctx, p.ID, got.History[0].ID), service.ErrHistoryNotFound)
}

func TestDeletePersonDirectives(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")

	req := f.directive(models.DirectiveOrder, "Наказ")
	_, err := f.svc.IssueDirective(f.ctx, p.ID, req)
	require.NoError(t, err)

	n, err := f.svc.DeletePersonDirectives(f.ctx, p.ID, req.Date.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = f.svc.DeletePersonDirectives(f.ctx, p.ID, req.Date)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRemoveExclusionDeletesPerson(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")
	other := f.register(t, "Коваль Олег")

	order, err := f.svc.IssueDirective(f.ctx, other.ID, f.directive(models.DirectiveOrder, "Наказ"))
	require.NoError(t, err)
	err = f.svc.RemoveExclusion(f.ctx, order.ID)
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)

	exclusion, err := f.svc.IssueDirective(f.ctx, p.ID, f.directive(models.DirectiveExclude, "Виключення"))
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveExclusion(f.ctx, exclusion.ID))

	_, err = f.svc.GetPerson(f.ctx, p.ID)
	assert.ErrorIs(t, err, service.ErrPersonNotFound)
	excluded, err := f.svc.ListDirectives(f.ctx, models.DirectiveExclude)
	require.NoError(t, err)
	assert.Empty(t, excluded)

	assert.ErrorIs(t, f.svc.RemoveExclusion(f.ctx, exclusion.ID), service.ErrDirectiveNotFound)
}

func TestChangeStatus(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")

	entry, err := f.svc.ChangeStatus(f.ctx, p.ID, models.StatusChangeRequest{Status: readiness.AbsentLeave})
	require.NoError(t, err)
	assert.Equal(t, `Статус змінено з "—" → "Відпустка"`, entry.Description)
	assert.True(t, entry.Incomplete)

	entry, err = f.svc.ChangeStatus(f.ctx, p.ID, models.StatusChangeRequest{
		Status: readiness.AbsentHospital,
		Note:   "переведений",
		Period: &models.Period{From: "2025-03-01", To: "2025-03-15"},
		Files:  []models.Attachment{{Name: "довідка.pdf"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Статус змінено з \"Відпустка\" → \"Шпиталь\"\nпереведений", entry.Description)
	assert.False(t, entry.Incomplete)

	assert.Equal(t, readiness.AbsentHospital, f.person(t, p.ID).SoldierStatus)

	_, err = f.svc.ChangeStatus(f.ctx, p.ID, models.StatusChangeRequest{})
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.ChangeStatus(f.ctx, p.ID, models.StatusChangeRequest{
		Status: readiness.AbsentLeave,
		Period: &models.Period{From: "15.03.2025"},
	})
	assert.ErrorAs(t, err, &verr)

	incomplete, err := f.svc.History(f.ctx, p.ID, service.RangeAll, true)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, readiness.AbsentLeave, incomplete[0].Payload.StatusChange.To)
}

func TestHistoryOrderingAndRange(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")
	base := f.clock.t

	notes := []struct {
		text string
		at   time.Time
	}{
		{"другий", base.Add(-30 * time.Hour)},
		{"перший", base.Add(-10 * 24 * time.Hour)},
		{"третій", base.Add(-1 * time.Hour)},
	}
	for _, n := range notes {
		f.clock.t = n.at
		_, err := f.svc.AddNote(f.ctx, p.ID, models.HistoryNoteRequest{Note: n.text})
		require.NoError(t, err)
	}
	f.clock.t = base

	all, err := f.svc.History(f.ctx, p.ID, service.RangeAll, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "третій", all[0].Note)
	assert.Equal(t, "другий", all[1].Note)
	assert.Equal(t, "перший", all[2].Note)

	day, err := f.svc.History(f.ctx, p.ID, service.RangeDay, false)
	require.NoError(t, err)
	assert.Len(t, day, 1)

	week, err := f.svc.History(f.ctx, p.ID, service.RangeWeek, false)
	require.NoError(t, err)
	assert.Len(t, week, 2)

	_, err = f.svc.History(f.ctx, p.ID, "2w", false)
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.History(f.ctx, 999, service.RangeAll, false)
	assert.ErrorIs(t, err, service.ErrPersonNotFound)
}

func TestEditHistoryKeepsPayload(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")

	entry, err := f.svc.ChangeStatus(f.ctx, p.ID, models.StatusChangeRequest{Status: readiness.AbsentMedicalBoard})
	require.NoError(t, err)

	edited, err := f.svc.EditHistory(f.ctx, p.ID, entry.ID, models.EditHistoryRequest{
		Note:   "оновлено",
		Period: &models.Period{From: "2025-03-10"},
		Files:  []models.Attachment{{Name: "направлення.pdf"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.HistoryStatusChange, edited.Type)
	assert.Equal(t, readiness.AbsentMedicalBoard, edited.Payload.StatusChange.To)
	assert.Equal(t, "оновлено", edited.Note)
	assert.False(t, edited.Incomplete)

	_, err = f.svc.EditHistory(f.ctx, p.ID, entry.ID+1000, models.EditHistoryRequest{})
	assert.ErrorIs(t, err, service.ErrHistoryNotFound)
}

func TestImportAndListSlots(t *testing.T) {
	f := setup(t)

	result, err := f.svc.ImportSlots(f.ctx, []models.Slot{
		{ShtatNumber: "1", UnitName: "інший"},
		{ShtatNumber: "10", UnitName: "3-й взвод"},
		{ShtatNumber: " ", UnitName: "без номера"},
		{ShtatNumber: "А-4", UnitName: "3-й взвод"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 4, result.Total)

	slots, err := f.svc.ListSlots(f.ctx)
	require.NoError(t, err)
	numbers := make([]string, 0, len(slots))
	for _, s := range slots {
		numbers = append(numbers, s.ShtatNumber)
	}
	assert.Equal(t, []string{"1", "2", "3", "А-4", "10"}, numbers)

	// Insert-if-absent keeps the existing slot
	assert.Equal(t, "1-й взвод", slots[0].UnitName)
}

func TestUpdateSlotRefreshesOccupant(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")
	_, err := f.svc.Assign(f.ctx, p.ID, "1")
	require.NoError(t, err)

	_, err = f.svc.UpdateSlot(f.ctx, "1", models.Slot{UnitName: "1-й взвод", PositionName: "Старший стрілець", Category: "Солдати"})
	require.NoError(t, err)

	got := f.person(t, p.ID)
	assert.Equal(t, "Старший стрілець", got.Position)
	assert.Empty(t, got.ShpkCode)

	_, err = f.svc.UpdateSlot(f.ctx, "404", models.Slot{})
	assert.ErrorIs(t, err, service.ErrSlotNotFound)
}

func TestDeleteSlots(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.svc.DeleteSlot(f.ctx, "3"))
	assert.ErrorIs(t, f.svc.DeleteSlot(f.ctx, "3"), service.ErrSlotNotFound)

	n, err := f.svc.DeleteAllSlots(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStaffTable(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")
	q := f.register(t, "Коваль Олег")

	_, err := f.svc.UpdateSlot(f.ctx, "2", models.Slot{
		UnitName: "2-й взвод", PositionName: "Кулеметник", Category: "Солдати", ShpkCode: "101",
		ExtraData: models.ExtraData{models.ExtraStatusInArea: "КСП", models.ExtraDistanceFromLVZ: "5 км"},
	})
	require.NoError(t, err)

	_, err = f.svc.Assign(f.ctx, p.ID, "1")
	require.NoError(t, err)
	_, err = f.svc.Assign(f.ctx, q.ID, "2")
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(f.ctx, p.ID, models.StatusChangeRequest{
		Status: readiness.AbsentBusinessTrip,
		Period: &models.Period{From: "2025-03-01", To: "2025-03-31"},
	})
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(f.ctx, q.ID, models.StatusChangeRequest{Status: readiness.AbsentHospital})
	require.NoError(t, err)

	rows, err := f.svc.StaffTable(f.ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Derived from the status
	assert.Equal(t, "Петренко Іван", rows[0].FullName)
	assert.Equal(t, readiness.AbsentBusinessTrip, rows[0].AbsenceReason)
	assert.Empty(t, rows[0].StatusInArea)
	assert.Equal(t, "2025-03-01", rows[0].DateFrom)
	assert.Equal(t, "2025-03-31", rows[0].DateTo)
	assert.Equal(t, "вд", rows[0].Mark)

	// Stored report columns win
	assert.Equal(t, "КСП", rows[1].StatusInArea)
	assert.Empty(t, rows[1].AbsenceReason)
	assert.Equal(t, "5 км", rows[1].DistanceFromLVZ)
	assert.Equal(t, "гп", rows[1].Mark)

	// Vacant slot
	assert.Nil(t, rows[2].PersonID)
	assert.Empty(t, rows[2].FullName)
}

func TestReadinessReport(t *testing.T) {
	f := setup(t)
	_, err := f.svc.ImportSlots(f.ctx, []models.Slot{
		{ShtatNumber: "4", UnitName: "Мінометна батарея", Category: "Солдати"},
	})
	require.NoError(t, err)

	active := f.register(t, "Петренко Іван")
	excluded := f.register(t, "Коваль Олег")
	_, err = f.svc.Assign(f.ctx, active.ID, "1")
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(f.ctx, active.ID, models.StatusChangeRequest{Status: readiness.PositionInfantry})
	require.NoError(t, err)
	_, err = f.svc.Assign(f.ctx, excluded.ID, "2")
	require.NoError(t, err)
	_, err = f.svc.IssueDirective(f.ctx, excluded.ID, f.directive(models.DirectiveExclude, "Виключення"))
	require.NoError(t, err)

	rows, err := f.svc.ReadinessReport(f.ctx)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	units := make([]string, 0, len(rows))
	for _, r := range rows {
		units = append(units, r.Unit)
	}
	assert.Equal(t, []string{readiness.CompanyHQKey, "1-й взвод", "2-й взвод", "3-й взвод", "Мінометна батарея", readiness.GrandTotalKey}, units)

	assert.Equal(t, 1, rows[1].ActualTotal)
	assert.Equal(t, "100%", rows[1].StaffingPercent)
	assert.Equal(t, 0, rows[2].ActualTotal)
	assert.Equal(t, "0", rows[3].StaffingPercent)

	total := rows[5]
	assert.Equal(t, 4, total.PlannedTotal)
	assert.Equal(t, 1, total.ActualTotal)
	assert.Equal(t, "25%", total.StaffingPercent)
	assert.Equal(t, "25%", total.PercentNowCurrent)
}

func TestListPersonsByMembership(t *testing.T) {
	f := setup(t)
	p := f.register(t, "Петренко Іван")
	f.register(t, "Коваль Олег")

	_, err := f.svc.IssueDirective(f.ctx, p.ID, f.directive(models.DirectiveOrder, "Наказ"))
	require.NoError(t, err)

	ordered, err := f.svc.ListPersons(f.ctx, models.MembershipOrdered)
	require.NoError(t, err)
	require.Len(t, ordered, 1)
	assert.Equal(t, p.ID, ordered[0].ID)

	_, err = f.svc.ListPersons(f.ctx, "gone")
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.RegisterPerson(f.ctx, models.CreatePersonRequest{FullName: "  "})
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, f.svc.DeletePerson(f.ctx, p.ID))
	assert.ErrorIs(t, f.svc.DeletePerson(f.ctx, p.ID), service.ErrPersonNotFound)
}
