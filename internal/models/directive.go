package models

import "time"

// DirectiveType is the kind of administrative directive
type DirectiveType string

const (
	DirectiveOrder   DirectiveType = "order"
	DirectiveExclude DirectiveType = "exclude"
	DirectiveRestore DirectiveType = "restore"
)

// Valid reports whether t is a known directive type
func (t DirectiveType) Valid() bool {
	switch t {
	case DirectiveOrder, DirectiveExclude, DirectiveRestore:
		return true
	}
	return false
}

// HistoryType returns the person history variant written for this directive
func (t DirectiveType) HistoryType() HistoryType {
	switch t {
	case DirectiveOrder:
		return HistoryDirectiveOrder
	case DirectiveExclude:
		return HistoryDirectiveExclude
	default:
		return HistoryDirectiveRestore
	}
}

// Directive is a ledger entry. It describes the same event as one of the
// person's history entries but is stored and deleted independently.
type Directive struct {
	ID          string        `db:"id" json:"id"`
	PersonID    int64         `db:"person_id" json:"userId"`
	Type        DirectiveType `db:"type" json:"type"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description"`
	File        *Attachment   `db:"file" json:"file"`
	Date        time.Time     `db:"date" json:"date"`
	Period      Period        `db:"period" json:"period"`
}
