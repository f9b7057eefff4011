package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rongwang/unit-roster/internal/metrics"
	"github.com/rongwang/unit-roster/internal/models"
	"github.com/rongwang/unit-roster/internal/readiness"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/sirupsen/logrus"
)

var (
	ErrPersonNotFound    = errors.New("person not found")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrDirectiveNotFound = errors.New("directive not found")
	ErrHistoryNotFound   = errors.New("history entry not found")
	// ErrNoOccupant is a recoverable notice: the slot is already vacant
	ErrNoOccupant        = errors.New("slot has no current occupant")
	ErrInvalidTransition = errors.New("invalid membership transition")
)

// ValidationError reports a rejected request. Nothing was written.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Service defines all the roster operations
type Service interface {
	// Persons
	RegisterPerson(ctx context.Context, req models.CreatePersonRequest) (*models.Person, error)
	GetPerson(ctx context.Context, id int64) (*models.PersonResponse, error)
	ListPersons(ctx context.Context, membership models.MembershipState) ([]models.Person, error)
	DeletePerson(ctx context.Context, id int64) error

	// Slots
	ListSlots(ctx context.Context) ([]models.Slot, error)
	ImportSlots(ctx context.Context, slots []models.Slot) (*models.ImportResult, error)
	UpdateSlot(ctx context.Context, number string, slot models.Slot) (*models.Slot, error)
	DeleteSlot(ctx context.Context, number string) error
	DeleteAllSlots(ctx context.Context) (int64, error)
	StaffTable(ctx context.Context) ([]models.StaffRow, error)

	// Assignment
	Assign(ctx context.Context, personID int64, slotNumber string) (*models.AssignmentResponse, error)
	Unassign(ctx context.Context, slotNumber string) (*models.Person, error)
	Reconcile(ctx context.Context) (int, error)
	ReconcileOnce(ctx context.Context) (int, error)

	// Directives
	IssueDirective(ctx context.Context, personID int64, req models.DirectiveRequest) (*models.Directive, error)
	ListDirectives(ctx context.Context, t models.DirectiveType) ([]models.Directive, error)
	DeleteDirective(ctx context.Context, id string) error
	DeletePersonDirectives(ctx context.Context, personID int64, date time.Time) (int64, error)
	ClearDirectives(ctx context.Context, t models.DirectiveType) (int64, error)
	RemoveExclusion(ctx context.Context, id string) error

	// Status and history
	ChangeStatus(ctx context.Context, personID int64, req models.StatusChangeRequest) (*models.HistoryEntryResponse, error)
	AddNote(ctx context.Context, personID int64, req models.HistoryNoteRequest) (*models.HistoryEntryResponse, error)
	EditHistory(ctx context.Context, personID, entryID int64, req models.EditHistoryRequest) (*models.HistoryEntryResponse, error)
	DeleteHistory(ctx context.Context, personID, entryID int64) error
	History(ctx context.Context, personID int64, rangeFilter string, incompleteOnly bool) ([]models.HistoryEntryResponse, error)

	// Reports
	PlannedTotals(ctx context.Context) (readiness.PlannedTotals, error)
	ReadinessReport(ctx context.Context) ([]readiness.UnitReport, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo        repository.Repository
	log         logrus.FieldLogger
	metrics     metrics.Recorder
	validate    *validator.Validate
	reportUnits []string
	now         func() time.Time
	ids         *idSource

	reconcileMu   sync.Mutex
	reconcileDone bool
}

// Option configures a DefaultService
type Option func(*DefaultService)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *DefaultService) { s.log = log }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *DefaultService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithReportUnits sets the unit rows of the readiness report, in order
func WithReportUnits(units []string) Option {
	return func(s *DefaultService) { s.reportUnits = units }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *DefaultService) {
		s.now = now
		s.ids.now = now
	}
}

// DefaultReportUnits are the report rows used when none are configured
var DefaultReportUnits = []string{readiness.CompanyHQKey, "1-й взвод", "2-й взвод", "3-й взвод"}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, opts ...Option) *DefaultService {
	s := &DefaultService{
		repo:        repo,
		log:         logrus.StandardLogger(),
		metrics:     (*metrics.Metrics)(nil),
		validate:    newValidator(),
		reportUnits: DefaultReportUnits,
		now:         time.Now,
		ids:         &idSource{now: time.Now},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names in validation messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *DefaultService) validateRequest(req interface{}) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Message: err.Error(), Err: err}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			msgs = append(msgs, fe.Field()+" is required")
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
	}
	return &ValidationError{Message: strings.Join(msgs, "; "), Err: err}
}

// idSource hands out strictly increasing history ids derived from the clock
type idSource struct {
	last atomic.Int64
	now  func() time.Time
}

func (s *idSource) next() int64 {
	for {
		last := s.last.Load()
		candidate := s.now().UnixNano()
		if candidate <= last {
			candidate = last + 1
		}
		if s.last.CompareAndSwap(last, candidate) {
			return candidate
		}
	}
}

type operatorKey struct{}

// WithOperator attaches the acting operator, recorded as history author
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operator)
}

// OperatorFrom returns the acting operator, "system" when none is set
func OperatorFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operatorKey{}).(string); ok && op != "" {
		return op
	}
	return "system"
}

// newEntry stamps a history entry with a fresh id, the clock and the operator
func (s *DefaultService) newEntry(ctx context.Context, personID int64, t models.HistoryType) *models.HistoryEntry {
	return &models.HistoryEntry{
		ID:       s.ids.next(),
		PersonID: personID,
		Date:     s.now().UTC(),
		Type:     t,
		Author:   OperatorFrom(ctx),
		Files:    models.Attachments{},
	}
}

func (s *DefaultService) mustGetPerson(ctx context.Context, repo repository.Repository, id int64) (*models.Person, error) {
	person, err := repo.GetPerson(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting person: %w", err)
	}
	if person == nil {
		return nil, ErrPersonNotFound
	}
	return person, nil
}

const dateLayout = "2006-01-02"

// parsePeriod checks a from/to pair of YYYY-MM-DD dates. To may be empty.
func parsePeriod(from, to string) (models.Period, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return models.Period{}, nil
	}
	if from == "" {
		return models.Period{}, invalid("period start is required when an end is given")
	}

	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return models.Period{}, invalid("period start %q is not a YYYY-MM-DD date", from)
	}
	if to != "" {
		end, err := time.Parse(dateLayout, to)
		if err != nil {
			return models.Period{}, invalid("period end %q is not a YYYY-MM-DD date", to)
		}
		if end.Before(start) {
			return models.Period{}, invalid("period ends before it starts")
		}
	}
	return models.Period{From: from, To: to}, nil
}

func periodPtr(p *models.Period) (*models.Period, error) {
	if p == nil || p.IsZero() {
		return nil, nil
	}
	checked, err := parsePeriod(p.From, p.To)
	if err != nil {
		return nil, err
	}
	return &checked, nil
}
