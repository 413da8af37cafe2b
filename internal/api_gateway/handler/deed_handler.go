package handler

import (
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mortgage-deed-signing/internal/api_gateway/middleware"
	"github.com/mortgage-deed-signing/internal/api_gateway/service"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/identity"
	"github.com/mortgage-deed-signing/internal/signing"
)

const (
	// MaxAuditLogLimit caps the limit query parameter of the audit log
	MaxAuditLogLimit = 200

	defaultPerPage = 20
	maxPerPage     = 100
)

// DeedHandler handles HTTP requests for deeds and their signing workflow
type DeedHandler struct {
	signingService service.SigningService
	queryService   service.DeedQueryService
	logger         *slog.Logger
}

// NewDeedHandler creates a new deed handler
func NewDeedHandler(logger *slog.Logger, signingService service.SigningService, queryService service.DeedQueryService) *DeedHandler {
	return &DeedHandler{
		signingService: signingService,
		queryService:   queryService,
		logger:         logger,
	}
}

// Create registers a new deed in CREATED
func (h *DeedHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	var req CreateDeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	in := signing.CreateDeedInput{
		CreditNumber:     req.CreditNumber,
		ApartmentAddress: req.ApartmentAddress,
		ApartmentNumber:  req.ApartmentNumber,
		BankID:           req.BankID,
		CooperativeID:    req.CooperativeID,
	}
	for _, b := range req.Borrowers {
		in.Borrowers = append(in.Borrowers, &deed.Borrower{
			Name:         b.Name,
			PersonNumber: b.PersonNumber,
			Email:        b.Email,
			Ownership:    b.OwnershipPercentage,
		})
	}
	for _, s := range req.CooperativeSigners {
		in.CooperativeSigners = append(in.CooperativeSigners, &deed.CooperativeSigner{
			Name:         s.Name,
			PersonNumber: s.PersonNumber,
			Email:        s.Email,
		})
	}

	d, err := h.signingService.CreateDeed(c.Request.Context(), claims, in)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create deed")
		return
	}

	RespondCreated(c, mapDeedToResponse(d))
}

// GetByID returns the deed with its parties to any party of the deed
func (h *DeedHandler) GetByID(c *gin.Context) {
	claims, id, ok := claimsAndDeedID(c)
	if !ok {
		return
	}

	d, err := h.signingService.GetDeed(c.Request.Context(), claims, id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get deed")
		return
	}

	RespondOK(c, mapDeedToResponse(d))
}

// SendForSigning moves the deed from CREATED to PENDING_BORROWER_SIGNATURE
func (h *DeedHandler) SendForSigning(c *gin.Context) {
	claims, id, ok := claimsAndDeedID(c)
	if !ok {
		return
	}

	d, err := h.signingService.InitiateSigning(c.Request.Context(), claims, id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to send deed for signing")
		return
	}

	RespondOK(c, mapDeedToResponse(d))
}

// SignAsBorrower records the signature of the borrower named in the path
func (h *DeedHandler) SignAsBorrower(c *gin.Context) {
	claims, id, ok := claimsAndDeedID(c)
	if !ok {
		return
	}

	d, err := h.signingService.RecordBorrowerSignature(c.Request.Context(), claims, id, c.Param("person_number"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to record borrower signature")
		return
	}

	RespondOK(c, mapDeedToResponse(d))
}

// SignAsCooperative records a cooperative signature. The signer defaults to
// the caller; an admin names it with person_number in the query or body.
func (h *DeedHandler) SignAsCooperative(c *gin.Context) {
	claims, id, ok := claimsAndDeedID(c)
	if !ok {
		return
	}

	personNumber := c.Query("person_number")
	if personNumber == "" && c.Request.ContentLength != 0 {
		var req CooperativeSignRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			h.logger.Warn("Invalid request body", "error", err)
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
		personNumber = req.PersonNumber
	}

	d, err := h.signingService.RecordCooperativeSignature(c.Request.Context(), claims, id, personNumber)
	if err != nil {
		respondError(c, h.logger, err, "Failed to record cooperative signature")
		return
	}

	RespondOK(c, mapDeedToResponse(d))
}

// GetStatus returns the current status to the parties allowed to view the deed
func (h *DeedHandler) GetStatus(c *gin.Context) {
	claims, id, ok := claimsAndDeedID(c)
	if !ok {
		return
	}

	d, err := h.signingService.GetDeed(c.Request.Context(), claims, id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get deed status")
		return
	}

	RespondOK(c, StatusResponse{DeedID: id, Status: string(d.Status)})
}

// AuditLog pages through the deed's ledger in timestamp order. The limit
// defaults to the configured ledger page size.
func (h *DeedHandler) AuditLog(c *gin.Context) {
	claims, id, ok := claimsAndDeedID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxAuditLogLimit {
			RespondBadRequest(c, "limit must be between 1 and "+strconv.Itoa(MaxAuditLogLimit))
			return
		}
		limit = n
	}

	entries, next, err := h.queryService.AuditLog(c.Request.Context(), claims, id, c.Query("cursor"), limit)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list audit log")
		return
	}

	response := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, mapEntryToResponse(e))
	}
	RespondWithCursor(c, response, limit, next)
}

func (h *DeedHandler) StatusDurations(c *gin.Context) {
	claims, id, ok := claimsAndDeedID(c)
	if !ok {
		return
	}

	report, err := h.queryService.StatusDurations(c.Request.Context(), claims, id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to compute status durations")
		return
	}

	RespondOK(c, mapReportToResponse(report))
}

// Notifications lists the delivery documents of the deed, newest first
func (h *DeedHandler) Notifications(c *gin.Context) {
	claims, id, ok := claimsAndDeedID(c)
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		RespondBadRequest(c, "Invalid page parameter")
		return
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if err != nil || perPage < 1 || perPage > maxPerPage {
		RespondBadRequest(c, "per_page must be between 1 and "+strconv.Itoa(maxPerPage))
		return
	}

	deliveries, total, err := h.queryService.Notifications(c.Request.Context(), claims, id, page, perPage)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list notifications")
		return
	}

	response := make([]DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		response = append(response, mapDeliveryToResponse(d))
	}
	RespondWithPaginatedData(c, response, page, perPage, int(total))
}

// Pending lists the deeds waiting for the caller's signature
func (h *DeedHandler) Pending(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	deeds, err := h.signingService.PendingForActor(c.Request.Context(), claims)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list pending deeds")
		return
	}

	response := make([]DeedSummaryResponse, 0, len(deeds))
	for _, d := range deeds {
		response = append(response, mapDeedToSummary(d))
	}
	RespondOK(c, response)
}

func requireClaims(c *gin.Context) (identity.Claims, bool) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		RespondUnauthorized(c, "")
		return identity.Claims{}, false
	}
	return claims, true
}

func claimsAndDeedID(c *gin.Context) (identity.Claims, int64, bool) {
	claims, ok := requireClaims(c)
	if !ok {
		return identity.Claims{}, 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(c, "Invalid deed ID")
		return identity.Claims{}, 0, false
	}
	return claims, id, true
}
