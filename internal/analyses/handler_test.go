package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"atsense-api/internal/extract"
	"atsense-api/internal/extract/extracttest"
	"atsense-api/internal/shared/auth"
	"atsense-api/internal/shared/server/middleware"
)

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func setupRouter(t *testing.T, svc *Service, timeout time.Duration) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	r := gin.New()
	r.Use(middleware.RequestID())
	if timeout > 0 {
		r.Use(middleware.Deadline(timeout))
	}
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(true))
	NewHandler(svc, 5<<20, 10000).RegisterRoutes(api)
	return r
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	token, err := auth.SignJWT(auth.Claims{Sub: sub, Email: sub + "@example.com"})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + token
}

func postAnalyze(t *testing.T, r *gin.Engine, u upload, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, u)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", resp.Body.String(), err)
	}
	return body
}

func TestAnalyzeRequiresIdentity(t *testing.T) {
	svc := newTestService(&scriptedProvider{}, NewMemoryRepo(), &fixedExtractor{name: "structured", text: longResume})
	r := setupRouter(t, svc, 0)

	resp := postAnalyze(t, r, pdfUpload([]byte("%PDF")), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if body := decodeError(t, resp); body.Error != middleware.MsgUnauthorized {
		t.Fatalf("unexpected error %q", body.Error)
	}
}

func TestAnalyzeTextPDF(t *testing.T) {
	repo := NewMemoryRepo()
	p := &scriptedProvider{replies: []string{`Sure! {"score":74,"summary":"Good","feedback":["Add metrics"],"strengths":["Go"]}`}}
	svc := newTestService(p, repo, extract.StructuredExtractor{}, extract.AlternateExtractor{})
	r := setupRouter(t, svc, time.Minute)

	u := pdfUpload(extracttest.PDF(longResume))
	u.jobDesc = "Backend engineer, Go, Postgres"
	resp := postAnalyze(t, r, u, bearer(t, "google:1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store cache header")
	}

	var body struct {
		ID          string   `json:"id"`
		Score       float64  `json:"score"`
		Summary     string   `json:"summary"`
		Feedback    []string `json:"feedback"`
		Strengths   []string `json:"strengths"`
		Grade       string   `json:"grade"`
		PayloadKind string   `json:"payloadKind"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Score != 74 || body.Summary != "Good" || len(body.Feedback) != 1 || body.Grade != "B" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.PayloadKind != string(PayloadText) {
		t.Fatalf("expected text payload, got %q", body.PayloadKind)
	}

	rec, err := repo.GetByID(context.Background(), "google:1", body.ID)
	if err != nil {
		t.Fatalf("expected stored record: %v", err)
	}
	if !strings.Contains(rec.Content, "Jane Doe") {
		t.Fatalf("expected extracted content stored, got %q", rec.Content)
	}
	if rec.Metadata.JobDesc == nil || *rec.Metadata.JobDesc != u.jobDesc {
		t.Fatalf("expected job description stored")
	}

	parts := p.reqs[0].Parts
	if !strings.HasPrefix(parts[len(parts)-1].Text, "Job Description:") {
		t.Fatalf("expected job description part last")
	}
}

func TestAnalyzeScannedPDFNoText(t *testing.T) {
	svc := newTestService(&scriptedProvider{}, NewMemoryRepo(), extract.StructuredExtractor{}, extract.AlternateExtractor{})
	r := setupRouter(t, svc, 0)

	data := extracttest.PDF("")
	u := upload{fileName: "scan.pdf", contentType: "application/pdf", data: data}
	resp := postAnalyze(t, r, u, bearer(t, "google:1"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeError(t, resp)
	if body.Code != ErrorCodeNoText || body.Error != MsgNoText {
		t.Fatalf("unexpected error body %+v", body)
	}
	if body.Details["extractedLength"] != float64(0) || body.Details["filename"] != "scan.pdf" || body.Details["size"] != float64(len(data)) {
		t.Fatalf("unexpected details %+v", body.Details)
	}
}

func TestAnalyzeScannedPDFDocumentFallback(t *testing.T) {
	p := &scriptedProvider{}
	svc := newTestService(p, NewMemoryRepo(), &fixedExtractor{name: "structured"})
	svc.DocumentFallback = true
	r := setupRouter(t, svc, 0)

	resp := postAnalyze(t, r, pdfUpload([]byte("%PDF-1.4 image only")), bearer(t, "google:1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		PayloadKind string `json:"payloadKind"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body.PayloadKind != string(PayloadDocument) {
		t.Fatalf("expected document payload, got %q", body.PayloadKind)
	}
}

func TestAnalyzeUploadValidation(t *testing.T) {
	svc := newTestService(&scriptedProvider{}, NewMemoryRepo(), &fixedExtractor{name: "structured", text: longResume})
	r := setupRouter(t, svc, 0)

	cases := []struct {
		name string
		u    upload
		want string
	}{
		{"missing file", upload{jobDesc: "x"}, MsgNoFile},
		{"wrong mime", upload{fileName: "resume.pdf", contentType: "image/png", data: []byte("x")}, MsgInvalidFile},
		{"wrong extension", upload{fileName: "resume.docx", contentType: "application/pdf", data: []byte("x")}, MsgInvalidFile},
		{"too large", upload{fileName: "resume.pdf", contentType: "application/pdf", data: make([]byte, 5<<20+1)}, MsgFileTooLarge(5 << 20)},
		{"long job description", upload{fileName: "resume.pdf", contentType: "application/pdf", data: []byte("x"), jobDesc: strings.Repeat("j", 10001)}, MsgJobDescTooLong(10000)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postAnalyze(t, r, tc.u, bearer(t, "google:1"))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
			if body := decodeError(t, resp); body.Error != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, body.Error)
			}
		})
	}
}

func TestAnalyzeJobDescriptionAtLimit(t *testing.T) {
	svc := newTestService(&scriptedProvider{}, NewMemoryRepo(), &fixedExtractor{name: "structured", text: longResume})
	r := setupRouter(t, svc, 0)

	u := pdfUpload([]byte("%PDF"))
	u.jobDesc = strings.Repeat("é", 10000)
	if resp := postAnalyze(t, r, u, bearer(t, "google:1")); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 at the limit, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAnalyzeProviderFailures(t *testing.T) {
	rateErr := []error{errorString("429"), errorString("429"), errorString("429")}
	cases := []struct {
		name     string
		provider *scriptedProvider
		status   int
		code     string
	}{
		{"rate limit exhausted", &scriptedProvider{errs: rateErr}, http.StatusTooManyRequests, ErrorCodeRateLimited},
		{"unparseable reply", &scriptedProvider{replies: []string{"no json here"}}, http.StatusInternalServerError, ErrorCodeParse},
		{"schema mismatch", &scriptedProvider{replies: []string{`{"score":1,"summary":"x"}`}}, http.StatusInternalServerError, ErrorCodeParse},
		{"provider error", &scriptedProvider{errs: []error{errorString("permission denied")}}, http.StatusInternalServerError, ErrorCodeProvider},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(tc.provider, NewMemoryRepo(), &fixedExtractor{name: "structured", text: longResume})
			r := setupRouter(t, svc, 0)

			resp := postAnalyze(t, r, pdfUpload([]byte("%PDF")), bearer(t, "google:1"))
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if body := decodeError(t, resp); body.Code != tc.code || body.Error == "" {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}
}

func TestAnalyzeStoreFailureDetails(t *testing.T) {
	storeErr := &StoreError{Message: "null value in column", Details: "Failing row", Hint: "set content", Code: "23502"}
	svc := newTestService(&scriptedProvider{}, failingRepo{MemoryRepo: NewMemoryRepo(), err: storeErr}, &fixedExtractor{name: "structured", text: longResume})
	r := setupRouter(t, svc, 0)

	resp := postAnalyze(t, r, pdfUpload([]byte("%PDF")), bearer(t, "google:1"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	body := decodeError(t, resp)
	if body.Error != "Failed to save analysis" {
		t.Fatalf("unexpected error %q", body.Error)
	}
	for key, want := range map[string]string{"message": storeErr.Message, "details": storeErr.Details, "hint": storeErr.Hint, "code": storeErr.Code} {
		if body.Details[key] != want {
			t.Fatalf("details[%s]=%v want %q", key, body.Details[key], want)
		}
	}
}

func TestAnalyzeDeadline(t *testing.T) {
	svc := newTestService(blockingProvider{}, NewMemoryRepo(), &fixedExtractor{name: "structured", text: longResume})
	r := setupRouter(t, svc, 30*time.Millisecond)

	resp := postAnalyze(t, r, pdfUpload([]byte("%PDF")), bearer(t, "google:1"))
	if resp.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestResumeHistory(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(&scriptedProvider{}, repo, &fixedExtractor{name: "structured", text: longResume})
	r := setupRouter(t, svc, 0)

	owner := bearer(t, "google:1")
	for i := 0; i < 2; i++ {
		if resp := postAnalyze(t, r, pdfUpload([]byte("%PDF")), owner); resp.Code != http.StatusOK {
			t.Fatalf("seed analyze: %d %s", resp.Code, resp.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resumes?limit=1", nil)
	req.Header.Set("Authorization", owner)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("list: %d %s", resp.Code, resp.Body.String())
	}
	var list struct {
		Items []struct {
			ID    string `json:"id"`
			Grade string `json:"grade"`
		} `json:"items"`
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Limit != 1 || list.Items[0].Grade != "A" {
		t.Fatalf("unexpected list %+v", list)
	}

	id := list.Items[0].ID
	req = httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+id, nil)
	req.Header.Set("Authorization", owner)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"content"`) {
		t.Fatalf("get: %d %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+id, nil)
	req.Header.Set("Authorization", bearer(t, "google:2"))
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/resumes", nil)
	req.Header.Set("X-Guest-Id", "guest-1")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected guests to be refused history, got %d", resp.Code)
	}
}

func TestAnalyzeScannedPDFVisionFallbackFails(t *testing.T) {
	p := &scriptedProvider{errs: []error{errorString("status 500: vision backend unavailable")}}
	vision := extract.VisionExtractor{Provider: p, Model: "vision-model"}
	svc := newTestService(p, NewMemoryRepo(), extract.StructuredExtractor{}, extract.AlternateExtractor{}, vision)
	r := setupRouter(t, svc, 0)

	data := extracttest.PDF("")
	u := upload{fileName: "scan.pdf", contentType: "application/pdf", data: data}
	resp := postAnalyze(t, r, u, bearer(t, "google:1"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeError(t, resp)
	if body.Code != ErrorCodeNoText || body.Error != MsgNoText {
		t.Fatalf("unexpected error body %+v", body)
	}
	if body.Details["extractedLength"] != float64(0) || body.Details["filename"] != "scan.pdf" || body.Details["size"] != float64(len(data)) {
		t.Fatalf("unexpected details %+v", body.Details)
	}

	if len(p.reqs) != 1 {
		t.Fatalf("expected only the vision call, got %d provider calls", len(p.reqs))
	}
	req := p.reqs[0]
	if req.Model != "vision-model" || len(req.Parts) != 2 {
		t.Fatalf("unexpected vision request %+v", req)
	}
	if blob := req.Parts[1]; !blob.IsBlob() || !bytes.Equal(blob.Data, data) {
		t.Fatalf("expected vision to receive the uploaded bytes")
	}
}

func TestAnalyzeNoTextReportsFinalLength(t *testing.T) {
	p := &scriptedProvider{errs: []error{errorString("document could not be read")}}
	svc := newTestService(p, NewMemoryRepo(), &fixedExtractor{name: "structured", text: "a few stray glyphs"})
	svc.DocumentFallback = true
	r := setupRouter(t, svc, 0)

	resp := postAnalyze(t, r, pdfUpload([]byte("%PDF")), bearer(t, "google:1"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeError(t, resp)
	if body.Code != ErrorCodeNoText {
		t.Fatalf("unexpected code %q", body.Code)
	}
	if body.Details["extractedLength"] != float64(0) || body.Details["size"] != float64(4) {
		t.Fatalf("unexpected details %+v", body.Details)
	}
}

func TestAnalyzeParseFailureHidesDiagnostics(t *testing.T) {
	p := &scriptedProvider{replies: []string{`{"score": 1, "summary": "x", "feedback": [}`}}
	svc := newTestService(p, NewMemoryRepo(), &fixedExtractor{name: "structured", text: longResume})
	r := setupRouter(t, svc, 0)

	resp := postAnalyze(t, r, pdfUpload([]byte("%PDF")), bearer(t, "google:1"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	body := decodeError(t, resp)
	if body.Code != ErrorCodeParse || body.Error != "Failed to parse analysis" {
		t.Fatalf("unexpected body %+v", body)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw["details"]; ok {
		t.Fatalf("parse failure must not carry details: %s", resp.Body.String())
	}
	if strings.Contains(resp.Body.String(), "invalid character") {
		t.Fatalf("decoder error leaked: %s", resp.Body.String())
	}
}

func TestAnalyzeKeepsUnknownReplyFields(t *testing.T) {
	reply := `{"score":82,"summary":"Strong","feedback":[],"verdict":{"hire":true},"id":"model-id"}`
	p := &scriptedProvider{replies: []string{reply}}
	svc := newTestService(p, NewMemoryRepo(), &fixedExtractor{name: "structured", text: longResume})
	r := setupRouter(t, svc, 0)
	owner := bearer(t, "google:1")

	resp := postAnalyze(t, r, pdfUpload([]byte("%PDF")), owner)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		ID      string          `json:"id"`
		Verdict json.RawMessage `json:"verdict"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(body.Verdict) != `{"hire":true}` {
		t.Fatalf("expected verdict passthrough, got %s", body.Verdict)
	}
	if body.ID == "model-id" || body.ID == "" {
		t.Fatalf("reply fields must not override the record id, got %q", body.ID)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+body.ID, nil)
	req.Header.Set("Authorization", owner)
	got := httptest.NewRecorder()
	r.ServeHTTP(got, req)
	if got.Code != http.StatusOK || !strings.Contains(got.Body.String(), `"verdict":{"hire":true}`) {
		t.Fatalf("stored analysis lost verdict: %d %s", got.Code, got.Body.String())
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }
