package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rongwang/unit-roster/internal/models"
)

// ErrSlotOccupied is returned when a write would give a slot a second occupant
var ErrSlotOccupied = errors.New("slot already has an occupant")

// Repository is the persistence contract of the roster engine
type Repository interface {
	// Person operations
	ListPersons(ctx context.Context) ([]models.Person, error)
	GetPerson(ctx context.Context, id int64) (*models.Person, error)
	FindPersonBySlot(ctx context.Context, slotNumber string) (*models.Person, error)
	CreatePerson(ctx context.Context, person *models.Person) error
	SavePerson(ctx context.Context, person *models.Person) error
	BulkSavePersons(ctx context.Context, persons []models.Person) error
	DeletePerson(ctx context.Context, id int64) (bool, error)

	// Slot operations
	ListSlots(ctx context.Context) ([]models.Slot, error)
	GetSlot(ctx context.Context, number string) (*models.Slot, error)
	SaveSlot(ctx context.Context, slot *models.Slot) error
	InsertSlotIfAbsent(ctx context.Context, slot *models.Slot) (bool, error)
	DeleteSlot(ctx context.Context, number string) (bool, error)
	DeleteAllSlots(ctx context.Context) (int64, error)

	// History operations
	AppendHistory(ctx context.Context, entry *models.HistoryEntry) error
	GetHistoryEntry(ctx context.Context, personID, id int64) (*models.HistoryEntry, error)
	EditHistory(ctx context.Context, entry *models.HistoryEntry) error
	DeleteHistory(ctx context.Context, personID, id int64) (bool, error)
	// ListHistory returns the entries in insertion order. A zero since returns all of them.
	ListHistory(ctx context.Context, personID int64, since time.Time) ([]models.HistoryEntry, error)

	// Directive ledger operations
	AddDirective(ctx context.Context, directive *models.Directive) error
	GetDirective(ctx context.Context, id string) (*models.Directive, error)
	ListDirectivesByType(ctx context.Context, t models.DirectiveType) ([]models.Directive, error)
	DeleteDirectiveByID(ctx context.Context, id string) (bool, error)
	DeleteDirectives(ctx context.Context, personID int64, date time.Time) (int64, error)
	ClearDirectivesByType(ctx context.Context, t models.DirectiveType) (int64, error)

	// WithTx runs fn against a repository bound to one transaction. The
	// transaction is rolled back when fn returns an error.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	tx  *sqlx.Tx
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		ext: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

func (r *PostgresRepository) WithTx(ctx context.Context, fn func(Repository) error) (err error) {
	// Nested calls join the running transaction
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	err = fn(&PostgresRepository{db: r.db, ext: tx, tx: tx})
	if err != nil {
		return err
	}

	return tx.Commit()
}

const personColumns = `id, full_name, rank, position, unit_main, category, shpk_code,
	slot_number, membership, soldier_status, created_at, updated_at`

// Person repository methods
func (r *PostgresRepository) ListPersons(ctx context.Context) ([]models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons ORDER BY id ASC`

	var persons []models.Person
	err := sqlx.SelectContext(ctx, r.ext, &persons, query)
	if err != nil {
		return nil, err
	}

	return persons, nil
}

func (r *PostgresRepository) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = $1`

	var person models.Person
	err := sqlx.GetContext(ctx, r.ext, &person, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Person not found
		}
		return nil, err
	}

	return &person, nil
}

func (r *PostgresRepository) FindPersonBySlot(ctx context.Context, slotNumber string) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE slot_number = $1`

	var person models.Person
	err := sqlx.GetContext(ctx, r.ext, &person, query, slotNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Slot is vacant
		}
		return nil, err
	}

	return &person, nil
}

func (r *PostgresRepository) CreatePerson(ctx context.Context, person *models.Person) error {
	query := `
		INSERT INTO persons (full_name, rank, position, unit_main, category, shpk_code,
			slot_number, membership, soldier_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	if person.Membership == "" {
		person.Membership = models.MembershipActive
	}

	now := time.Now().UTC()
	person.CreatedAt = now
	person.UpdatedAt = now

	err := r.ext.QueryRowxContext(ctx, query,
		person.FullName, person.Rank, person.Position, person.UnitMain, person.Category,
		person.ShpkCode, person.SlotNumber, person.Membership, person.SoldierStatus,
		person.CreatedAt, person.UpdatedAt).Scan(&person.ID)

	return mapConstraintError(err)
}

func (r *PostgresRepository) SavePerson(ctx context.Context, person *models.Person) error {
	query := `
		UPDATE persons SET full_name = $1, rank = $2, position = $3, unit_main = $4,
			category = $5, shpk_code = $6, slot_number = $7, membership = $8,
			soldier_status = $9, updated_at = $10
		WHERE id = $11
	`

	person.UpdatedAt = time.Now().UTC()

	_, err := r.ext.ExecContext(ctx, query,
		person.FullName, person.Rank, person.Position, person.UnitMain, person.Category,
		person.ShpkCode, person.SlotNumber, person.Membership, person.SoldierStatus,
		person.UpdatedAt, person.ID)

	return mapConstraintError(err)
}

func (r *PostgresRepository) BulkSavePersons(ctx context.Context, persons []models.Person) error {
	return r.WithTx(ctx, func(tx Repository) error {
		for i := range persons {
			if err := tx.SavePerson(ctx, &persons[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepository) DeletePerson(ctx context.Context, id int64) (bool, error) {
	// History entries go with the person (ON DELETE CASCADE); ledger entries stay
	res, err := r.ext.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, id)
	return affected(res, err)
}

const slotColumns = `shtat_number, unit_name, position_name, category, shpk_code, extra_data`

// Slot repository methods
func (r *PostgresRepository) ListSlots(ctx context.Context) ([]models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM staff_positions ORDER BY shtat_number ASC`

	var slots []models.Slot
	err := sqlx.SelectContext(ctx, r.ext, &slots, query)
	if err != nil {
		return nil, err
	}

	return slots, nil
}

func (r *PostgresRepository) GetSlot(ctx context.Context, number string) (*models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM staff_positions WHERE shtat_number = $1`

	var slot models.Slot
	err := sqlx.GetContext(ctx, r.ext, &slot, query, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Slot not found
		}
		return nil, err
	}

	return &slot, nil
}

func (r *PostgresRepository) SaveSlot(ctx context.Context, slot *models.Slot) error {
	query := `
		INSERT INTO staff_positions (shtat_number, unit_name, position_name, category, shpk_code, extra_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (shtat_number) DO UPDATE SET
			unit_name = EXCLUDED.unit_name,
			position_name = EXCLUDED.position_name,
			category = EXCLUDED.category,
			shpk_code = EXCLUDED.shpk_code,
			extra_data = EXCLUDED.extra_data
	`

	_, err := r.ext.ExecContext(ctx, query,
		slot.ShtatNumber, slot.UnitName, slot.PositionName, slot.Category, slot.ShpkCode, slot.ExtraData)

	return err
}

func (r *PostgresRepository) InsertSlotIfAbsent(ctx context.Context, slot *models.Slot) (bool, error) {
	query := `
		INSERT INTO staff_positions (shtat_number, unit_name, position_name, category, shpk_code, extra_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (shtat_number) DO NOTHING
	`

	res, err := r.ext.ExecContext(ctx, query,
		slot.ShtatNumber, slot.UnitName, slot.PositionName, slot.Category, slot.ShpkCode, slot.ExtraData)

	return affected(res, err)
}

func (r *PostgresRepository) DeleteSlot(ctx context.Context, number string) (bool, error) {
	res, err := r.ext.ExecContext(ctx, `DELETE FROM staff_positions WHERE shtat_number = $1`, number)
	return affected(res, err)
}

func (r *PostgresRepository) DeleteAllSlots(ctx context.Context) (int64, error) {
	res, err := r.ext.ExecContext(ctx, `DELETE FROM staff_positions`)
	return rowCount(res, err)
}

const historyColumns = `id, person_id, date, type, author, note, payload, files, period`

// History repository methods
func (r *PostgresRepository) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	query := `
		INSERT INTO history_entries (id, person_id, date, type, author, note, payload, files, period)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.ext.ExecContext(ctx, query,
		entry.ID, entry.PersonID, entry.Date, entry.Type, entry.Author, entry.Note,
		entry.Payload, entry.Files, entry.Period)

	return err
}

func (r *PostgresRepository) GetHistoryEntry(ctx context.Context, personID, id int64) (*models.HistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM history_entries WHERE person_id = $1 AND id = $2`

	var entry models.HistoryEntry
	err := sqlx.GetContext(ctx, r.ext, &entry, query, personID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Entry not found
		}
		return nil, err
	}

	return &entry, nil
}

func (r *PostgresRepository) EditHistory(ctx context.Context, entry *models.HistoryEntry) error {
	query := `
		UPDATE history_entries SET date = $1, note = $2, files = $3, period = $4
		WHERE person_id = $5 AND id = $6
	`

	_, err := r.ext.ExecContext(ctx, query,
		entry.Date, entry.Note, entry.Files, entry.Period, entry.PersonID, entry.ID)

	return err
}

func (r *PostgresRepository) DeleteHistory(ctx context.Context, personID, id int64) (bool, error) {
	res, err := r.ext.ExecContext(ctx,
		`DELETE FROM history_entries WHERE person_id = $1 AND id = $2`, personID, id)
	return affected(res, err)
}

func (r *PostgresRepository) ListHistory(ctx context.Context, personID int64, since time.Time) ([]models.HistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM history_entries WHERE person_id = $1`

	args := []interface{}{personID}

	// Add the lower date bound if provided
	if !since.IsZero() {
		query += ` AND date >= $2`
		args = append(args, since)
	}

	query += ` ORDER BY id ASC`

	var entries []models.HistoryEntry
	err := sqlx.SelectContext(ctx, r.ext, &entries, query, args...)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

const directiveColumns = `id, person_id, type, title, description, file, date, period`

// Directive ledger repository methods
func (r *PostgresRepository) AddDirective(ctx context.Context, directive *models.Directive) error {
	query := `
		INSERT INTO directives (id, person_id, type, title, description, file, date, period)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.ext.ExecContext(ctx, query,
		directive.ID, directive.PersonID, directive.Type, directive.Title, directive.Description,
		directive.File, directive.Date, directive.Period)

	return err
}

func (r *PostgresRepository) GetDirective(ctx context.Context, id string) (*models.Directive, error) {
	query := `SELECT ` + directiveColumns + ` FROM directives WHERE id = $1`

	var directive models.Directive
	err := sqlx.GetContext(ctx, r.ext, &directive, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Directive not found
		}
		return nil, err
	}

	return &directive, nil
}

func (r *PostgresRepository) ListDirectivesByType(ctx context.Context, t models.DirectiveType) ([]models.Directive, error) {
	query := `SELECT ` + directiveColumns + ` FROM directives WHERE type = $1 ORDER BY date DESC, id ASC`

	var directives []models.Directive
	err := sqlx.SelectContext(ctx, r.ext, &directives, query, t)
	if err != nil {
		return nil, err
	}

	return directives, nil
}

func (r *PostgresRepository) DeleteDirectiveByID(ctx context.Context, id string) (bool, error) {
	res, err := r.ext.ExecContext(ctx, `DELETE FROM directives WHERE id = $1`, id)
	return affected(res, err)
}

func (r *PostgresRepository) DeleteDirectives(ctx context.Context, personID int64, date time.Time) (int64, error) {
	res, err := r.ext.ExecContext(ctx,
		`DELETE FROM directives WHERE person_id = $1 AND date = $2`, personID, date)
	return rowCount(res, err)
}

func (r *PostgresRepository) ClearDirectivesByType(ctx context.Context, t models.DirectiveType) (int64, error) {
	res, err := r.ext.ExecContext(ctx, `DELETE FROM directives WHERE type = $1`, t)
	return rowCount(res, err)
}

func affected(res sql.Result, err error) (bool, error) {
	n, err := rowCount(res, err)
	return n > 0, err
}

func rowCount(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// mapConstraintError turns the one-occupant-per-slot index violation into ErrSlotOccupied
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "idx_persons_slot_number" {
		return ErrSlotOccupied
	}
	return err
}
