package models

import (
	"time"
)

// MembershipState is the roster membership of a person
type MembershipState string

const (
	MembershipActive   MembershipState = "active"
	MembershipOrdered  MembershipState = "ordered"  // temporarily away under an order directive
	MembershipExcluded MembershipState = "excluded" // removed from the active roster
)

// Valid reports whether m is one of the known states
func (m MembershipState) Valid() bool {
	switch m {
	case MembershipActive, MembershipOrdered, MembershipExcluded:
		return true
	}
	return false
}

// Person represents one individual of the unit. Position, UnitMain, Category,
// ShpkCode and SlotNumber are a denormalized copy of the occupied slot.
type Person struct {
	ID            int64           `db:"id" json:"id"`
	FullName      string          `db:"full_name" json:"fullName"`
	Rank          string          `db:"rank" json:"rank"`
	Position      string          `db:"position" json:"position"`
	UnitMain      string          `db:"unit_main" json:"unitMain"`
	Category      string          `db:"category" json:"category"`
	ShpkCode      string          `db:"shpk_code" json:"shpkCode"`
	SlotNumber    *string         `db:"slot_number" json:"slotNumber"`
	Membership    MembershipState `db:"membership" json:"membership"`
	SoldierStatus string          `db:"soldier_status" json:"soldierStatus"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`

	History []HistoryEntry `db:"-" json:"history,omitempty"`
}

// HasSlot reports whether the person currently references any slot
func (p *Person) HasSlot() bool {
	return p.SlotNumber != nil && *p.SlotNumber != ""
}

// HoldsSlot reports whether the person references the given slot number
func (p *Person) HoldsSlot(number string) bool {
	return p.HasSlot() && *p.SlotNumber == number
}

// ClearAssignment vacates the person's slot. All assignment fields are cleared together.
func (p *Person) ClearAssignment() {
	p.Position = ""
	p.UnitMain = ""
	p.Category = ""
	p.ShpkCode = ""
	p.SlotNumber = nil
}

// ApplySlot copies the slot's descriptive fields and number onto the person
func (p *Person) ApplySlot(slot Slot) {
	number := slot.ShtatNumber
	p.Position = slot.PositionName
	p.UnitMain = slot.UnitName
	p.Category = slot.Category
	p.ShpkCode = slot.ShpkCode
	p.SlotNumber = &number
}

// MatchesSlot reports whether the denormalized fields agree with the slot
func (p *Person) MatchesSlot(slot Slot) bool {
	return p.HoldsSlot(slot.ShtatNumber) &&
		p.Position == slot.PositionName &&
		p.UnitMain == slot.UnitName &&
		p.Category == slot.Category &&
		p.ShpkCode == slot.ShpkCode
}

// CurrentPosition describes the held slot, or nil when none is held
func (p *Person) CurrentPosition() *PositionRef {
	if !p.HasSlot() {
		return nil
	}
	return &PositionRef{SlotNumber: *p.SlotNumber, Position: p.Position, Unit: p.UnitMain}
}

// Slot is a staff-position slot (billet), independent of who occupies it
type Slot struct {
	ShtatNumber  string    `db:"shtat_number" json:"shtatNumber"`
	UnitName     string    `db:"unit_name" json:"unitName"`
	PositionName string    `db:"position_name" json:"positionName"`
	Category     string    `db:"category" json:"category"`
	ShpkCode     string    `db:"shpk_code" json:"shpkCode"`
	ExtraData    ExtraData `db:"extra_data" json:"extraData"`
}

// Ref describes the slot as a position reference for history payloads
func (s Slot) Ref() PositionRef {
	return PositionRef{SlotNumber: s.ShtatNumber, Position: s.PositionName, Unit: s.UnitName}
}

// Report-only keys carried in Slot.ExtraData
const (
	ExtraStatusInArea    = "statusInArea"
	ExtraAbsenceReason   = "absenceReason"
	ExtraDateFrom        = "dateFrom"
	ExtraDateTo          = "dateTo"
	ExtraDistanceFromLVZ = "distanceFromLVZ"
	ExtraStatusNote      = "statusNote"
)

// Period is a validity range of dates in YYYY-MM-DD form; To may be empty
type Period struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
}

// IsZero reports whether no bound is set
func (p Period) IsZero() bool {
	return p.From == "" && p.To == ""
}

// Attachment is the metadata of a file attached to a history entry or directive.
// File contents are stored by a separate collaborator.
type Attachment struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
	Ref  string `json:"ref,omitempty"`
}
