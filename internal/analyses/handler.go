package analyses

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"atsense-api/internal/extract"
	"atsense-api/internal/shared/server/middleware"
	"atsense-api/internal/shared/server/respond"
)

// multipartOverhead covers boundaries, headers and the jobDesc field.
const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc              *Service
	MaxUploadBytes   int64
	MaxJobDescLength int
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64, maxJobDescLength int) *Handler {
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes, MaxJobDescLength: maxJobDescLength}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.GET("/resumes", h.listResumes)
	rg.GET("/resumes/:id", h.getResume)
}

type analyzeResponse struct {
	Result
	ID          string      `json:"id"`
	Grade       string      `json:"grade"`
	PayloadKind PayloadKind `json:"payloadKind"`
	AnalyzedAt  time.Time   `json:"analyzedAt"`
}

func (h *Handler) analyze(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", middleware.MsgUnauthorized, nil)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)
	fh, err := c.FormFile("resume")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr), strings.Contains(err.Error(), "request body too large"):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, MsgFileTooLarge(h.MaxUploadBytes), nil)
		case errors.Is(err, http.ErrMissingFile):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, MsgNoFile, nil)
		default:
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, MsgInvalidFile, nil)
		}
		return
	}

	fileName, err := validateUpload(fh, h.MaxUploadBytes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	jobDesc := c.PostForm("jobDesc")
	if err := validateJobDescription(jobDesc, h.MaxJobDescLength); err != nil {
		h.writeError(c, err)
		return
	}
	data, err := readUpload(fh, h.MaxUploadBytes)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out, err := h.Svc.Analyze(c.Request.Context(), AnalyzeRequest{
		UserID:    userID,
		RequestID: middleware.RequestIDFromContext(c),
		Document: extract.Document{
			Data:     data,
			MIMEType: mimePDF,
			FileName: fileName,
		},
		JobDescription: jobDesc,
	})
	if out.Extraction.Strategy != "" {
		c.Set(middleware.LogKeyStrategy, out.Extraction.Strategy)
	}
	if out.Kind != "" {
		c.Set(middleware.LogKeyPayload, string(out.Kind))
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set(middleware.LogKeyAnalysisID, out.Record.ID)
	c.Set(middleware.LogKeyModel, out.Model)

	respond.Private(c, withExtra(analyzeResponse{
		Result:      out.Result,
		ID:          out.Record.ID,
		Grade:       out.Record.Metadata.Grade,
		PayloadKind: out.Kind,
		AnalyzedAt:  out.Record.Metadata.AnalyzedAt,
	}, out.Result.Extra))
}

// writeError maps pipeline errors onto the API error envelope.
func (h *Handler) writeError(c *gin.Context, err error) {
	if verr, ok := isValidation(err); ok {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, verr.Message, nil)
		return
	}

	code := classifyFailure(err)
	switch code {
	case ErrorCodeNoText:
		var nt *NoTextError
		details := gin.H{}
		if errors.As(err, &nt) {
			details = gin.H{
				"extractedLength": nt.ExtractedLength,
				"filename":        nt.Filename,
				"size":            nt.Size,
			}
		}
		respond.Error(c, http.StatusBadRequest, code, MsgNoText, details)
	case ErrorCodeRateLimited:
		respond.Error(c, http.StatusTooManyRequests, code, "Rate limit exceeded. Please try again later.", nil)
	case ErrorCodeTimeout:
		respond.Error(c, http.StatusGatewayTimeout, code, "Analysis timed out. Please try again.", nil)
	case ErrorCodeCanceled:
		respond.Error(c, http.StatusRequestTimeout, code, "Request was canceled", nil)
	case ErrorCodeNotConfigured:
		respond.Error(c, http.StatusInternalServerError, code, "Analysis service is not configured", nil)
	case ErrorCodeParse:
		respond.Error(c, http.StatusInternalServerError, code, "Failed to parse analysis", nil)
	case ErrorCodeStorage:
		var se *StoreError
		details := gin.H{}
		if errors.As(err, &se) {
			details = gin.H{
				"message": se.Message,
				"details": se.Details,
				"hint":    se.Hint,
				"code":    se.Code,
			}
		}
		respond.Error(c, http.StatusInternalServerError, code, "Failed to save analysis", details)
	default:
		respond.Error(c, http.StatusInternalServerError, code, MsgAnalysisFailed, nil)
	}
}

type resumeSummary struct {
	ID          string      `json:"id"`
	Filename    string      `json:"filename"`
	Score       float64     `json:"score"`
	Grade       string      `json:"grade"`
	Summary     string      `json:"summary"`
	PayloadKind PayloadKind `json:"payloadKind"`
	AnalyzedAt  time.Time   `json:"analyzedAt"`
}

type resumeDetail struct {
	Result
	ID          string           `json:"id"`
	Grade       string           `json:"grade"`
	Filename    string           `json:"filename"`
	JobDesc     *string          `json:"jobDesc"`
	PayloadKind PayloadKind      `json:"payloadKind"`
	Model       string           `json:"model"`
	Extraction  *extract.Outcome `json:"extraction,omitempty"`
	Content     string           `json:"content"`
	AnalyzedAt  time.Time        `json:"analyzedAt"`
}

func (h *Handler) listResumes(c *gin.Context) {
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	limit, offset := clampPage(queryInt(c, "limit", 20), queryInt(c, "offset", 0))

	records, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to list analyses", nil)
		return
	}

	items := make([]resumeSummary, 0, len(records))
	for _, rec := range records {
		items = append(items, resumeSummary{
			ID:          rec.ID,
			Filename:    rec.Metadata.Filename,
			Score:       rec.Metadata.Score,
			Grade:       gradeOf(rec.Metadata),
			Summary:     rec.Metadata.Summary,
			PayloadKind: rec.Metadata.PayloadKind,
			AnalyzedAt:  analyzedAt(rec),
		})
	}
	respond.Private(c, gin.H{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) getResume(c *gin.Context) {
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "analysis id is required", nil)
		return
	}

	rec, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to fetch analysis", nil)
		return
	}

	result := rec.Metadata.Result()
	respond.Private(c, withExtra(resumeDetail{
		Result:      result,
		ID:          rec.ID,
		Grade:       gradeOf(rec.Metadata),
		Filename:    rec.Metadata.Filename,
		JobDesc:     rec.Metadata.JobDesc,
		PayloadKind: rec.Metadata.PayloadKind,
		Model:       rec.Metadata.Model,
		Extraction:  rec.Metadata.Extraction,
		Content:     rec.Content,
		AnalyzedAt:  analyzedAt(rec),
	}, result.Extra))
}

func gradeOf(m Metadata) string {
	if m.Grade != "" {
		return m.Grade
	}
	return Grade(m.Score)
}

func analyzedAt(rec Record) time.Time {
	if !rec.Metadata.AnalyzedAt.IsZero() {
		return rec.Metadata.AnalyzedAt
	}
	return rec.CreatedAt
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
