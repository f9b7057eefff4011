package models

import "time"

// Request models
type CreatePersonRequest struct {
	FullName      string `json:"fullName" binding:"required"`
	Rank          string `json:"rank"`
	SoldierStatus string `json:"soldierStatus"`
}

type StatusChangeRequest struct {
	Status string       `json:"status" validate:"required"`
	Note   string       `json:"note"`
	Period *Period      `json:"period"`
	Files  []Attachment `json:"files" validate:"dive"`
}

type HistoryNoteRequest struct {
	Note   string       `json:"note" validate:"required"`
	Period *Period      `json:"period"`
	Files  []Attachment `json:"files" validate:"dive"`
}

// EditHistoryRequest replaces the editable parts of one entry. The variant and
// its payload are never edited.
type EditHistoryRequest struct {
	Note   string       `json:"note"`
	Period *Period      `json:"period"`
	Files  []Attachment `json:"files" validate:"dive"`
}

// DirectiveRequest is validated by the directive engine, not by the HTTP binding,
// so the same rules apply to every caller.
type DirectiveRequest struct {
	Type        DirectiveType `json:"type" validate:"required,oneof=order exclude restore"`
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description"`
	File        *Attachment   `json:"file" validate:"required"`
	Date        time.Time     `json:"date" validate:"required"`
	PeriodFrom  string        `json:"periodFrom"`
	PeriodTo    string        `json:"periodTo"`
}

type AssignRequest struct {
	PersonID int64 `json:"personId" binding:"required"`
}

type ImportSlotsRequest struct {
	Slots []Slot `json:"slots" binding:"required"`
}

// Response models
type ImportResult struct {
	Status  string `json:"status"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
	Total   int    `json:"total"`
}

type HistoryEntryResponse struct {
	HistoryEntry
	Description string `json:"description"`
	Incomplete  bool   `json:"incomplete"`
}

// NewHistoryEntryResponse renders the entry for display
func NewHistoryEntryResponse(e HistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{HistoryEntry: e, Description: e.Description(), Incomplete: e.Incomplete()}
}

type PersonResponse struct {
	Person
	History []HistoryEntryResponse `json:"history,omitempty"`
}

type AssignmentResponse struct {
	Status    string  `json:"status"`
	Person    Person  `json:"person"`
	Displaced *Person `json:"displaced,omitempty"`
}

// StaffRow joins a slot with its current occupant for the staff table view
type StaffRow struct {
	ShtatNumber     string          `json:"shtatNumber"`
	Unit            string          `json:"unit"`
	Position        string          `json:"position"`
	Category        string          `json:"category"`
	ShpkCode        string          `json:"shpkCode"`
	PersonID        *int64          `json:"personId,omitempty"`
	FullName        string          `json:"fullName"`
	Rank            string          `json:"rank"`
	Membership      MembershipState `json:"membership,omitempty"`
	SoldierStatus   string          `json:"soldierStatus"`
	StatusInArea    string          `json:"statusInArea"`
	AbsenceReason   string          `json:"absenceReason"`
	DateFrom        string          `json:"dateFrom"`
	DateTo          string          `json:"dateTo"`
	DistanceFromLVZ string          `json:"distanceFromLVZ"`
	StatusNote      string          `json:"statusNote"`
	Mark            string          `json:"mark"`
}

type ReconcileResponse struct {
	Status   string `json:"status"`
	Repaired int    `json:"repaired"`
}

type DeleteResponse struct {
	Status  string `json:"status"`
	Deleted int64  `json:"deleted"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
