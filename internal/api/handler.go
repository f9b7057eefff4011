package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rongwang/unit-roster/internal/models"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/rongwang/unit-roster/internal/service"
	"github.com/sirupsen/logrus"
)

// Handler exposes the roster service over HTTP
type Handler struct {
	svc     service.Service
	log     logrus.FieldLogger
	metrics http.Handler
}

// NewHandler creates a handler. Metrics are served from gatherer, or from the
// default registry when gatherer is nil.
func NewHandler(svc service.Service, log logrus.FieldLogger, gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		svc:     svc,
		log:     log,
		metrics: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}

// SetupRoutes registers every route. auth guards the /api group.
func (h *Handler) SetupRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(h.metrics))

	api := router.Group("/api")
	if auth != nil {
		api.Use(auth)
	}

	persons := api.Group("/persons")
	{
		persons.GET("", h.listPersons)
		persons.POST("", h.createPerson)
		persons.GET("/:id", h.getPerson)
		persons.DELETE("/:id", h.deletePerson)
		persons.POST("/:id/status", h.changeStatus)
		persons.GET("/:id/history", h.history)
		persons.POST("/:id/history", h.addNote)
		persons.PUT("/:id/history/:entryId", h.editHistory)
		persons.DELETE("/:id/history/:entryId", h.deleteHistory)
		persons.POST("/:id/directives", h.issueDirective)
		persons.DELETE("/:id/directives", h.deletePersonDirectives)
	}

	directives := api.Group("/directives")
	{
		directives.GET("", h.listDirectives)
		directives.DELETE("", h.clearDirectives)
		directives.DELETE("/:id", h.deleteDirective)
		directives.DELETE("/:id/exclusion", h.removeExclusion)
	}

	slots := api.Group("/slots")
	{
		slots.GET("", h.listSlots)
		slots.POST("", h.importSlots)
		slots.DELETE("", h.deleteAllSlots)
		slots.PUT("/:number", h.updateSlot)
		slots.DELETE("/:number", h.deleteSlot)
		slots.POST("/:number/assign", h.assign)
		slots.POST("/:number/unassign", h.unassign)
	}

	api.GET("/staff-table", h.staffTable)
	api.GET("/reports/readiness", h.readinessReport)
	api.GET("/reports/planned", h.plannedTotals)
	api.POST("/maintenance/reconcile", h.reconcile)
}

// respondError maps service errors onto HTTP statuses
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(c, http.StatusBadRequest, "error", "VALIDATION", verr.Message)
	case errors.Is(err, service.ErrPersonNotFound),
		errors.Is(err, service.ErrSlotNotFound),
		errors.Is(err, service.ErrDirectiveNotFound),
		errors.Is(err, service.ErrHistoryNotFound):
		writeError(c, http.StatusNotFound, "error", "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrNoOccupant):
		writeError(c, http.StatusConflict, "notice", "NO_OCCUPANT", err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(c, http.StatusConflict, "error", "INVALID_TRANSITION", err.Error())
	case errors.Is(err, repository.ErrSlotOccupied):
		writeError(c, http.StatusConflict, "error", "SLOT_OCCUPIED", err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "error", "INTERNAL_ERROR", "Internal server error")
	}
}

func writeError(c *gin.Context, status int, kind, code, message string) {
	c.JSON(status, models.ErrorResponse{Status: kind, Code: code, Message: message})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, "error", "INVALID_REQUEST", message)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// Persons
func (h *Handler) listPersons(c *gin.Context) {
	persons, err := h.svc.ListPersons(c.Request.Context(), models.MembershipState(strings.TrimSpace(c.Query("membership"))))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, persons)
}

func (h *Handler) createPerson(c *gin.Context) {
	var req models.CreatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	person, err := h.svc.RegisterPerson(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, person)
}

func (h *Handler) getPerson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	person, err := h.svc.GetPerson(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

func (h *Handler) deletePerson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeletePerson(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Status: "success", Deleted: 1})
}

// Status and history
func (h *Handler) changeStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req models.StatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	entry, err := h.svc.ChangeStatus(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) history(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	incomplete, _ := strconv.ParseBool(c.DefaultQuery("incomplete", "false"))
	entries, err := h.svc.History(c.Request.Context(), id, c.Query("range"), incomplete)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) addNote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req models.HistoryNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	entry, err := h.svc.AddNote(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) editHistory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	entryID, ok := paramID(c, "entryId")
	if !ok {
		return
	}

	var req models.EditHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	entry, err := h.svc.EditHistory(c.Request.Context(), id, entryID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) deleteHistory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	entryID, ok := paramID(c, "entryId")
	if !ok {
		return
	}

	if err := h.svc.DeleteHistory(c.Request.Context(), id, entryID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Status: "success", Deleted: 1})
}

// Directives
func (h *Handler) issueDirective(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req models.DirectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	directive, err := h.svc.IssueDirective(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, directive)
}

func (h *Handler) deletePersonDirectives(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	date, err := time.Parse(time.RFC3339Nano, c.Query("date"))
	if err != nil {
		badRequest(c, "date must be an RFC 3339 timestamp")
		return
	}

	n, err := h.svc.DeletePersonDirectives(c.Request.Context(), id, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Status: "success", Deleted: n})
}

func (h *Handler) listDirectives(c *gin.Context) {
	directives, err := h.svc.ListDirectives(c.Request.Context(), models.DirectiveType(strings.TrimSpace(c.Query("type"))))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, directives)
}

func (h *Handler) clearDirectives(c *gin.Context) {
	n, err := h.svc.ClearDirectives(c.Request.Context(), models.DirectiveType(strings.TrimSpace(c.Query("type"))))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Status: "success", Deleted: n})
}

func (h *Handler) deleteDirective(c *gin.Context) {
	if err := h.svc.DeleteDirective(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Status: "success", Deleted: 1})
}

func (h *Handler) removeExclusion(c *gin.Context) {
	if err := h.svc.RemoveExclusion(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Status: "success", Deleted: 1})
}

// Slots
func (h *Handler) listSlots(c *gin.Context) {
	slots, err := h.svc.ListSlots(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

func (h *Handler) importSlots(c *gin.Context) {
	var req models.ImportSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.svc.ImportSlots(c.Request.Context(), req.Slots)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) deleteAllSlots(c *gin.Context) {
	n, err := h.svc.DeleteAllSlots(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Status: "success", Deleted: n})
}

func (h *Handler) updateSlot(c *gin.Context) {
	var slot models.Slot
	if err := c.ShouldBindJSON(&slot); err != nil {
		badRequest(c, err.Error())
		return
	}

	updated, err := h.svc.UpdateSlot(c.Request.Context(), c.Param("number"), slot)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteSlot(c *gin.Context) {
	if err := h.svc.DeleteSlot(c.Request.Context(), c.Param("number")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Status: "success", Deleted: 1})
}

func (h *Handler) assign(c *gin.Context) {
	var req models.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.svc.Assign(c.Request.Context(), req.PersonID, c.Param("number"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) unassign(c *gin.Context) {
	person, err := h.svc.Unassign(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AssignmentResponse{Status: "success", Person: *person})
}

// Views and reports
func (h *Handler) staffTable(c *gin.Context) {
	rows, err := h.svc.StaffTable(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) readinessReport(c *gin.Context) {
	rows, err := h.svc.ReadinessReport(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) plannedTotals(c *gin.Context) {
	planned, err := h.svc.PlannedTotals(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, planned)
}

func (h *Handler) reconcile(c *gin.Context) {
	n, err := h.svc.Reconcile(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.log.WithField("repaired", n).Info("manual reconciliation")
	c.JSON(http.StatusOK, models.ReconcileResponse{Status: "success", Repaired: n})
}
