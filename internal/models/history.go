package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// HistoryType tags the variant carried by a history entry
type HistoryType string

const (
	HistoryNote             HistoryType = "note"
	HistoryStatusChange     HistoryType = "status_change"
	HistoryPositionChange   HistoryType = "position_change"
	HistoryDirectiveOrder   HistoryType = "directive_order"
	HistoryDirectiveExclude HistoryType = "directive_exclude"
	HistoryDirectiveRestore HistoryType = "directive_restore"
)

// PositionChangeKind distinguishes the position-change events
type PositionChangeKind string

const (
	PositionAssigned PositionChangeKind = "assigned"
	PositionMoved    PositionChangeKind = "moved"
	PositionReleased PositionChangeKind = "released"
)

// NoStatusPlaceholder stands for an empty status in rendered text
const NoStatusPlaceholder = "—"

// PositionRef identifies a slot together with the names shown to the user
type PositionRef struct {
	SlotNumber string `json:"slotNumber"`
	Position   string `json:"position"`
	Unit       string `json:"unit"`
}

func (r PositionRef) String() string {
	return fmt.Sprintf("%s (%s)", r.Position, r.Unit)
}

// StatusChange is the payload of a status_change entry
type StatusChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PositionChange is the payload of a position_change entry
type PositionChange struct {
	Kind    PositionChangeKind `json:"kind"`
	Subject string             `json:"subject,omitempty"`
	From    *PositionRef       `json:"from,omitempty"`
	To      *PositionRef       `json:"to,omitempty"`
}

// DirectiveRef is the payload of the directive_* entries
type DirectiveRef struct {
	DirectiveID string `json:"directiveId"`
	Title       string `json:"title"`
}

// HistoryPayload carries exactly one variant, selected by HistoryEntry.Type
type HistoryPayload struct {
	StatusChange   *StatusChange   `json:"statusChange,omitempty"`
	PositionChange *PositionChange `json:"positionChange,omitempty"`
	Directive      *DirectiveRef   `json:"directive,omitempty"`
}

// HistoryEntry is an audit record owned by one person
type HistoryEntry struct {
	ID       int64          `db:"id" json:"id"`
	PersonID int64          `db:"person_id" json:"personId"`
	Date     time.Time      `db:"date" json:"date"`
	Type     HistoryType    `db:"type" json:"type"`
	Author   string         `db:"author" json:"author"`
	Note     string         `db:"note" json:"note"`
	Payload  HistoryPayload `db:"payload" json:"payload"`
	Files    Attachments    `db:"files" json:"files"`
	Period   *Period        `db:"period" json:"period,omitempty"`
}

// Description renders the human text of the entry from its payload. The text is
// display-only and is never parsed back.
func (e HistoryEntry) Description() string {
	var head string
	switch e.Type {
	case HistoryStatusChange:
		if sc := e.Payload.StatusChange; sc != nil {
			head = fmt.Sprintf("Статус змінено з \"%s\" → \"%s\"", orPlaceholder(sc.From), orPlaceholder(sc.To))
		}
	case HistoryPositionChange:
		if pc := e.Payload.PositionChange; pc != nil {
			head = pc.describe()
		}
	case HistoryDirectiveOrder:
		head = "Подано розпорядження: " + e.directiveTitle()
	case HistoryDirectiveExclude:
		head = "Користувача виключено: " + e.directiveTitle()
	case HistoryDirectiveRestore:
		head = "Відновлено користувача: " + e.directiveTitle()
	}

	parts := make([]string, 0, 2)
	for _, s := range []string{head, strings.TrimSpace(e.Note)} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Incomplete reports a status change that still lacks a period or a supporting file
func (e HistoryEntry) Incomplete() bool {
	if e.Type != HistoryStatusChange {
		return false
	}
	return e.Period == nil || e.Period.IsZero() || len(e.Files) == 0
}

func (e HistoryEntry) directiveTitle() string {
	if e.Payload.Directive == nil {
		return ""
	}
	return e.Payload.Directive.Title
}

func (pc PositionChange) describe() string {
	switch pc.Kind {
	case PositionAssigned:
		if pc.To != nil {
			return "Призначено на посаду " + pc.To.String()
		}
	case PositionMoved:
		if pc.From != nil && pc.To != nil {
			return fmt.Sprintf("Переміщено з посади %s → %s", pc.From, pc.To)
		}
	case PositionReleased:
		if pc.From != nil {
			if pc.Subject != "" {
				return fmt.Sprintf("Користувача %s звільнено з посади %s", pc.Subject, pc.From)
			}
			return "Звільнено з посади " + pc.From.String()
		}
	}
	return ""
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return NoStatusPlaceholder
	}
	return s
}

// SortHistoryForDisplay orders entries by date, newest first. Entries sharing a
// date keep the later-created one first.
func SortHistoryForDisplay(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].ID > entries[j].ID
	})
}

// LatestStatusPeriod returns the period of the most recent status change that has one
func LatestStatusPeriod(entries []HistoryEntry) *Period {
	var (
		found  *Period
		latest HistoryEntry
	)
	for _, e := range entries {
		if e.Type != HistoryStatusChange || e.Period == nil || e.Period.From == "" {
			continue
		}
		if found == nil || e.Date.After(latest.Date) || (e.Date.Equal(latest.Date) && e.ID > latest.ID) {
			p := *e.Period
			found = &p
			latest = e
		}
	}
	return found
}
