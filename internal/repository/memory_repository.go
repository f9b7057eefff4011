package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rongwang/unit-roster/internal/models"
)

type memoryState struct {
	persons    map[int64]models.Person
	slots      map[string]models.Slot
	history    map[int64][]models.HistoryEntry
	directives []models.Directive
	nextID     int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		persons:    make(map[int64]models.Person, len(s.persons)),
		slots:      make(map[string]models.Slot, len(s.slots)),
		history:    make(map[int64][]models.HistoryEntry, len(s.history)),
		directives: append([]models.Directive(nil), s.directives...),
		nextID:     s.nextID,
	}
	for k, v := range s.persons {
		c.persons[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.history {
		c.history[k] = append([]models.HistoryEntry(nil), v...)
	}
	return c
}

// MemoryRepository is an in-process Repository. Transactions are serialized and
// rolled back by restoring a snapshot.
type MemoryRepository struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state *memoryState
	fail  map[string]error
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state: &memoryState{
			persons: make(map[int64]models.Person),
			slots:   make(map[string]models.Slot),
			history: make(map[int64][]models.HistoryEntry),
		},
		fail: make(map[string]error),
	}
}

// FailOn makes every later call of the named method return err. A nil err clears it.
func (r *MemoryRepository) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, method)
		return
	}
	r.fail[method] = err
}

// injected must be called with mu held
func (r *MemoryRepository) injected(method string) error {
	return r.fail[method]
}

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.state.clone()
	r.mu.Unlock()

	if err := fn(&memoryTx{r}); err != nil {
		r.mu.Lock()
		r.state = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// memoryTx is handed to WithTx callbacks. Nested WithTx calls join the running one.
type memoryTx struct {
	*MemoryRepository
}

func (t *memoryTx) WithTx(ctx context.Context, fn func(Repository) error) error {
	return fn(t)
}

func (t *memoryTx) BulkSavePersons(ctx context.Context, persons []models.Person) error {
	for i := range persons {
		if err := t.SavePerson(ctx, &persons[i]); err != nil {
			return err
		}
	}
	return nil
}

// Person operations
func (r *MemoryRepository) ListPersons(ctx context.Context) ([]models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("ListPersons"); err != nil {
		return nil, err
	}

	persons := make([]models.Person, 0, len(r.state.persons))
	for _, p := range r.state.persons {
		persons = append(persons, p)
	}
	sort.Slice(persons, func(i, j int) bool { return persons[i].ID < persons[j].ID })
	return persons, nil
}

func (r *MemoryRepository) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("GetPerson"); err != nil {
		return nil, err
	}

	p, ok := r.state.persons[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *MemoryRepository) FindPersonBySlot(ctx context.Context, slotNumber string) (*models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("FindPersonBySlot"); err != nil {
		return nil, err
	}

	for _, p := range r.state.persons {
		if p.HoldsSlot(slotNumber) {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) CreatePerson(ctx context.Context, person *models.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("CreatePerson"); err != nil {
		return err
	}
	if r.slotTaken(person) {
		return ErrSlotOccupied
	}

	if person.Membership == "" {
		person.Membership = models.MembershipActive
	}
	r.state.nextID++
	person.ID = r.state.nextID
	now := time.Now().UTC()
	person.CreatedAt = now
	person.UpdatedAt = now

	stored := *person
	stored.History = nil
	r.state.persons[person.ID] = stored
	return nil
}

func (r *MemoryRepository) SavePerson(ctx context.Context, person *models.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("SavePerson"); err != nil {
		return err
	}
	if _, ok := r.state.persons[person.ID]; !ok {
		return nil
	}
	if r.slotTaken(person) {
		return ErrSlotOccupied
	}

	person.UpdatedAt = time.Now().UTC()
	stored := *person
	stored.History = nil
	r.state.persons[person.ID] = stored
	return nil
}

// slotTaken mirrors the unique index on persons.slot_number
func (r *MemoryRepository) slotTaken(person *models.Person) bool {
	if !person.HasSlot() {
		return false
	}
	for id, p := range r.state.persons {
		if id != person.ID && p.HoldsSlot(*person.SlotNumber) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) BulkSavePersons(ctx context.Context, persons []models.Person) error {
	return r.WithTx(ctx, func(tx Repository) error {
		return tx.BulkSavePersons(ctx, persons)
	})
}

func (r *MemoryRepository) DeletePerson(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("DeletePerson"); err != nil {
		return false, err
	}

	if _, ok := r.state.persons[id]; !ok {
		return false, nil
	}
	delete(r.state.persons, id)
	delete(r.state.history, id)
	return true, nil
}

// Slot operations
func (r *MemoryRepository) ListSlots(ctx context.Context) ([]models.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("ListSlots"); err != nil {
		return nil, err
	}

	slots := make([]models.Slot, 0, len(r.state.slots))
	for _, s := range r.state.slots {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ShtatNumber < slots[j].ShtatNumber })
	return slots, nil
}

func (r *MemoryRepository) GetSlot(ctx context.Context, number string) (*models.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("GetSlot"); err != nil {
		return nil, err
	}

	s, ok := r.state.slots[number]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MemoryRepository) SaveSlot(ctx context.Context, slot *models.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("SaveSlot"); err != nil {
		return err
	}

	r.state.slots[slot.ShtatNumber] = copySlot(*slot)
	return nil
}

func (r *MemoryRepository) InsertSlotIfAbsent(ctx context.Context, slot *models.Slot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("InsertSlotIfAbsent"); err != nil {
		return false, err
	}

	if _, ok := r.state.slots[slot.ShtatNumber]; ok {
		return false, nil
	}
	r.state.slots[slot.ShtatNumber] = copySlot(*slot)
	return true, nil
}

func (r *MemoryRepository) DeleteSlot(ctx context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("DeleteSlot"); err != nil {
		return false, err
	}

	if _, ok := r.state.slots[number]; !ok {
		return false, nil
	}
	delete(r.state.slots, number)
	return true, nil
}

func (r *MemoryRepository) DeleteAllSlots(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("DeleteAllSlots"); err != nil {
		return 0, err
	}

	n := int64(len(r.state.slots))
	r.state.slots = make(map[string]models.Slot)
	return n, nil
}

func copySlot(s models.Slot) models.Slot {
	if s.ExtraData != nil {
		extra := make(models.ExtraData, len(s.ExtraData))
		for k, v := range s.ExtraData {
			extra[k] = v
		}
		s.ExtraData = extra
	}
	return s
}

// History operations
func (r *MemoryRepository) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("AppendHistory"); err != nil {
		return err
	}

	r.state.history[entry.PersonID] = append(r.state.history[entry.PersonID], *entry)
	return nil
}

func (r *MemoryRepository) GetHistoryEntry(ctx context.Context, personID, id int64) (*models.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("GetHistoryEntry"); err != nil {
		return nil, err
	}

	for _, e := range r.state.history[personID] {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) EditHistory(ctx context.Context, entry *models.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("EditHistory"); err != nil {
		return err
	}

	entries := r.state.history[entry.PersonID]
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i].Date = entry.Date
			entries[i].Note = entry.Note
			entries[i].Files = entry.Files
			entries[i].Period = entry.Period
			return nil
		}
	}
	return nil
}

func (r *MemoryRepository) DeleteHistory(ctx context.Context, personID, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("DeleteHistory"); err != nil {
		return false, err
	}

	entries := r.state.history[personID]
	for i := range entries {
		if entries[i].ID == id {
			r.state.history[personID] = append(entries[:i:i], entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ListHistory(ctx context.Context, personID int64, since time.Time) ([]models.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("ListHistory"); err != nil {
		return nil, err
	}

	out := make([]models.HistoryEntry, 0, len(r.state.history[personID]))
	for _, e := range r.state.history[personID] {
		if !since.IsZero() && e.Date.Before(since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Directive ledger operations
func (r *MemoryRepository) AddDirective(ctx context.Context, directive *models.Directive) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("AddDirective"); err != nil {
		return err
	}

	r.state.directives = append(r.state.directives, *directive)
	return nil
}

func (r *MemoryRepository) GetDirective(ctx context.Context, id string) (*models.Directive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("GetDirective"); err != nil {
		return nil, err
	}

	for _, d := range r.state.directives {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListDirectivesByType(ctx context.Context, t models.DirectiveType) ([]models.Directive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("ListDirectivesByType"); err != nil {
		return nil, err
	}

	out := make([]models.Directive, 0)
	for _, d := range r.state.directives {
		if d.Type == t {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *MemoryRepository) DeleteDirectiveByID(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("DeleteDirectiveByID"); err != nil {
		return false, err
	}

	n := r.removeDirectives(func(d models.Directive) bool { return d.ID == id })
	return n > 0, nil
}

func (r *MemoryRepository) DeleteDirectives(ctx context.Context, personID int64, date time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("DeleteDirectives"); err != nil {
		return 0, err
	}

	return r.removeDirectives(func(d models.Directive) bool {
		return d.PersonID == personID && d.Date.Equal(date)
	}), nil
}

func (r *MemoryRepository) ClearDirectivesByType(ctx context.Context, t models.DirectiveType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("ClearDirectivesByType"); err != nil {
		return 0, err
	}

	return r.removeDirectives(func(d models.Directive) bool { return d.Type == t }), nil
}

func (r *MemoryRepository) removeDirectives(match func(models.Directive) bool) int64 {
	kept := r.state.directives[:0:0]
	var removed int64
	for _, d := range r.state.directives {
		if match(d) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	r.state.directives = kept
	return removed
}
