package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/services"
	"example.com/backstage/services/identifier/internal/tracing"
	"example.com/backstage/services/identifier/internal/validation"
)

// RegisterValidators adds the identifier tags to gin's binding validator
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding validator is not go-playground/validator")
	}
	return validation.Register(v)
}

// IdentifierHandler handles identifier HTTP requests
type IdentifierHandler struct {
	service *services.IdentifierService
	tracer  tracing.Tracer
}

// NewIdentifierHandler creates a new identifier handler
func NewIdentifierHandler(service *services.IdentifierService, tracer tracing.Tracer) *IdentifierHandler {
	return &IdentifierHandler{
		service: service,
		tracer:  tracer,
	}
}

// IssueBatchRequest is the body of POST /api/v1/batches
type IssueBatchRequest struct {
	SiteID    int    `json:"site_id" binding:"required,site_id"`
	BatchType int    `json:"batch_type" binding:"required,batch_type"`
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
}

// IssueBatchResponse is returned for a newly issued batch
type IssueBatchResponse struct {
	BatchNumber string `json:"batch_number"`
}

// IssueSerialRequest is the body of POST /api/v1/serials
type IssueSerialRequest struct {
	BatchNumber string           `json:"batch_number" binding:"required"`
	StrainCode  int              `json:"strain_code" binding:"required,strain_code"`
	WeightGrams *decimal.Decimal `json:"weight_grams" binding:"required"`
	PackSize    *int             `json:"pack_size" binding:"required,pack_size"`
}

// IssueSerialResponse is returned for a newly issued serial pair
type IssueSerialResponse struct {
	FullSerial  string `json:"full_serial"`
	ShortSerial string `json:"short_serial"`
}

// DecodedResponse is the JSON form of a decoded identifier
type DecodedResponse struct {
	Kind          string           `json:"kind"`
	Identifier    string           `json:"identifier"`
	BatchNumber   string           `json:"batch_number"`
	SiteID        int              `json:"site_id"`
	BatchType     string           `json:"batch_type"`
	BatchTypeCode int              `json:"batch_type_code"`
	Date          string           `json:"date"`
	BatchSequence int              `json:"batch_sequence"`
	FullSerial    string           `json:"full_serial,omitempty"`
	ShortSerial   string           `json:"short_serial,omitempty"`
	StrainCode    int              `json:"strain_code,omitempty"`
	StrainFamily  string           `json:"strain_family,omitempty"`
	UnitSequence  int              `json:"unit_sequence,omitempty"`
	WeightGrams   *decimal.Decimal `json:"weight_grams,omitempty"`
	PackSize      *int             `json:"pack_size,omitempty"`
}

// NewDecodedResponse builds the JSON view of a decoded identifier
func NewDecodedResponse(rec *services.DecodedRecord) DecodedResponse {
	resp := DecodedResponse{
		Kind:          string(rec.Kind),
		Identifier:    rec.Identifier,
		BatchNumber:   rec.BatchNumber,
		SiteID:        int(rec.Batch.Site),
		BatchType:     rec.Batch.Type.String(),
		BatchTypeCode: int(rec.Batch.Type),
		Date:          rec.Batch.Date.Format("2006-01-02"),
		BatchSequence: rec.Batch.Sequence,
		FullSerial:    rec.FullSerial,
		ShortSerial:   rec.ShortSerial,
	}
	if s := rec.Serial; s != nil {
		grams := identifier.WeightToGrams(s.WeightTenths)
		pack := int(s.PackSize)
		resp.StrainCode = int(s.Strain)
		resp.StrainFamily = s.Strain.Family().String()
		resp.UnitSequence = s.UnitSequence
		resp.WeightGrams = &grams
		resp.PackSize = &pack
	}
	return resp
}

// HandleIssueBatch issues a new batch number
func (h *IdentifierHandler) HandleIssueBatch(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-issue-batch")
	defer h.tracer.EndTransaction(txn)

	var req IssueBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Invalid issue batch request")
		h.tracer.RecordError(txn, err)
		writeBindError(c, err)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeBindError(c, err)
		return
	}

	h.tracer.AddAttribute(txn, "site_id", req.SiteID)
	h.tracer.AddAttribute(txn, "batch_type", req.BatchType)

	number, err := h.service.IssueBatch(c.Request.Context(), identifier.SiteID(req.SiteID), identifier.BatchType(req.BatchType), date)
	if err != nil {
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, IssueBatchResponse{BatchNumber: number})
}

// HandleIssueSerial issues a full and short serial pair in a batch
func (h *IdentifierHandler) HandleIssueSerial(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-issue-serial")
	defer h.tracer.EndTransaction(txn)

	var req IssueSerialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Invalid issue serial request")
		h.tracer.RecordError(txn, err)
		writeBindError(c, err)
		return
	}
	tenths, err := identifier.WeightFromGrams(*req.WeightGrams)
	if err != nil {
		writeError(c, err)
		return
	}

	h.tracer.AddAttribute(txn, "batch_number", req.BatchNumber)

	full, short, err := h.service.IssueSerial(c.Request.Context(), req.BatchNumber,
		identifier.StrainCode(req.StrainCode), tenths, identifier.PackSize(*req.PackSize))
	if err != nil {
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, IssueSerialResponse{FullSerial: full, ShortSerial: short})
}

// HandleDecode decodes a batch number, full serial or short serial
func (h *IdentifierHandler) HandleDecode(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-decode-identifier")
	defer h.tracer.EndTransaction(txn)

	rec, err := h.service.Decode(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDecodedResponse(rec))
}

// HandleValidate reports whether an identifier is valid
func (h *IdentifierHandler) HandleValidate(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"identifier": id,
		"valid":      h.service.Validate(c.Request.Context(), id),
	})
}

// HandleResolveShort returns the full serial behind a short serial
func (h *IdentifierHandler) HandleResolveShort(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-resolve-short")
	defer h.tracer.EndTransaction(txn)

	short := c.Param("short")
	full, err := h.service.ResolveShort(c.Request.Context(), short)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"short_serial": short, "full_serial": full})
}

// HandleResolveFull returns the short serial issued alongside a full serial
func (h *IdentifierHandler) HandleResolveFull(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-resolve-full")
	defer h.tracer.EndTransaction(txn)

	full := c.Param("full")
	short, err := h.service.ResolveFull(c.Request.Context(), full)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"full_serial": full, "short_serial": short})
}

// HandleBatchSerials lists the indexed serials of a batch
func (h *IdentifierHandler) HandleBatchSerials(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-batch-serials")
	defer h.tracer.EndTransaction(txn)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBindError(c, errors.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	batchNumber := c.Param("batch")
	h.tracer.AddAttribute(txn, "batch_number", batchNumber)

	docs, err := h.service.BatchSerials(c.Request.Context(), batchNumber, limit)
	if err != nil {
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batch_number": batchNumber,
		"count":        len(docs),
		"serials":      docs,
	})
}

// RegisterRoutes registers the handler's routes
func (h *IdentifierHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.POST("/batches", h.HandleIssueBatch)
	v1.GET("/batches/:batch/serials", h.HandleBatchSerials)
	v1.POST("/serials", h.HandleIssueSerial)
	v1.GET("/identifiers/:id", h.HandleDecode)
	v1.GET("/identifiers/:id/validate", h.HandleValidate)
	v1.GET("/serials/short/:short", h.HandleResolveShort)
	v1.GET("/serials/full/:full", h.HandleResolveFull)
}
