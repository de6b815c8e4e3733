package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"issue-map/internal/errs"
	"issue-map/internal/metrics"
	"issue-map/internal/model"
	"issue-map/internal/service"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type fakeIssueService struct {
	healthErr     *service.HealthError
	createReq     *model.CreateIssueRequest
	createFile    string
	createData    string
	createErr     error
	listItems     []model.Issue
	resolveErr    error
	resolvedID    int64
	resolvedActor string
}

func (f *fakeIssueService) HealthCheck(ctx context.Context) *service.HealthError {
	return f.healthErr
}

func (f *fakeIssueService) CreateIssue(ctx context.Context, req model.CreateIssueRequest, filename string, image io.Reader) (*model.Issue, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	data, _ := io.ReadAll(image)
	f.createReq = &req
	f.createFile = filename
	f.createData = string(data)
	return &model.Issue{
		ID:        1,
		Category:  req.Category,
		Title:     req.Title,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Status:    model.StatusOpen,
	}, nil
}

func (f *fakeIssueService) ListIssues(ctx context.Context) ([]model.Issue, error) {
	return f.listItems, nil
}

func (f *fakeIssueService) ResolveIssue(ctx context.Context, id int64, actor string) (*model.Issue, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	f.resolvedID = id
	f.resolvedActor = actor
	return &model.Issue{ID: id, Status: model.StatusResolved, ResolvedBy: actor}, nil
}

func newTestRouter(svc *fakeIssueService, opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewRouter(NewHandler(logger, svc, 1<<20), opts)
}

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestListIssues(t *testing.T) {
	svc := &fakeIssueService{listItems: []model.Issue{{ID: 2, Title: "i2"}, {ID: 1, Title: "i1"}}}
	r := newTestRouter(svc, RouterOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/issues", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var items []model.Issue
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(items) != 2 || items[0].ID != 2 {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestCreateIssue_Multipart(t *testing.T) {
	svc := &fakeIssueService{}
	r := newTestRouter(svc, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{
		"issue_type": "pothole",
		"title":      "  Deep hole ",
		"latitude":   "12.9716",
		"longitude":  "77.5946",
	}, "hole.jpg", "jpeg-bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/issues", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusCreated, w.Code, w.Body.String())
	}
	if svc.createReq == nil {
		t.Fatal("service did not receive the issue")
	}
	if svc.createReq.Category != model.CategoryPothole || svc.createReq.Title != "Deep hole" {
		t.Fatalf("unexpected request: %+v", svc.createReq)
	}
	if svc.createReq.Latitude != 12.9716 || svc.createReq.Longitude != 77.5946 {
		t.Fatalf("unexpected coordinate: %+v", svc.createReq)
	}
	if svc.createFile != "hole.jpg" || svc.createData != "jpeg-bytes" {
		t.Fatalf("unexpected image %q %q", svc.createFile, svc.createData)
	}
}

func TestCreateIssue_AcceptsCategoryAlias(t *testing.T) {
	svc := &fakeIssueService{}
	r := newTestRouter(svc, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{
		"category":  "garbage",
		"latitude":  "1",
		"longitude": "2",
	}, "a.png", "png")
	req := httptest.NewRequest(http.MethodPost, "/api/issues", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated || svc.createReq.Category != model.CategoryGarbage {
		t.Fatalf("unexpected result: code=%d req=%+v", w.Code, svc.createReq)
	}
}

func TestCreateIssue_MissingImage(t *testing.T) {
	svc := &fakeIssueService{}
	r := newTestRouter(svc, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{
		"issue_type": "pothole", "latitude": "1", "longitude": "2",
	}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/issues", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assertError(t, w, http.StatusBadRequest, "Invalid image")
	if svc.createReq != nil {
		t.Fatal("service must not be called without an image")
	}
}

func TestCreateIssue_BadCoordinates(t *testing.T) {
	svc := &fakeIssueService{}
	r := newTestRouter(svc, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{
		"issue_type": "pothole", "latitude": "north",
	}, "a.jpg", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/issues", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assertError(t, w, http.StatusBadRequest, "Invalid coordinates")
}

func TestCreateIssue_ServiceValidation(t *testing.T) {
	svc := &fakeIssueService{createErr: errs.Invalid("Invalid issue type")}
	r := newTestRouter(svc, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{
		"issue_type": "meteor", "latitude": "1", "longitude": "2",
	}, "a.jpg", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/issues", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assertError(t, w, http.StatusBadRequest, "Invalid issue type")
}

func TestCreateIssue_InternalErrorIsHidden(t *testing.T) {
	svc := &fakeIssueService{createErr: errors.New("pq: connection refused")}
	r := newTestRouter(svc, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{
		"issue_type": "pothole", "latitude": "1", "longitude": "2",
	}, "a.jpg", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/issues", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assertError(t, w, http.StatusInternalServerError, "internal error")
}

func TestResolveIssue(t *testing.T) {
	svc := &fakeIssueService{}
	r := newTestRouter(svc, RouterOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/issues/5/resolve", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if svc.resolvedID != 5 || svc.resolvedActor != "" {
		t.Fatalf("unexpected resolve call: id=%d actor=%q", svc.resolvedID, svc.resolvedActor)
	}
}

func TestResolveIssue_NotFound(t *testing.T) {
	svc := &fakeIssueService{resolveErr: errs.Wrap("issue 5", errs.ErrNotFound)}
	r := newTestRouter(svc, RouterOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/issues/5/resolve", nil))

	assertError(t, w, http.StatusNotFound, "Issue not found")
}

func TestResolveIssue_BadID(t *testing.T) {
	r := newTestRouter(&fakeIssueService{}, RouterOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/issues/abc/resolve", nil))

	assertError(t, w, http.StatusBadRequest, "Invalid issue id")
}

func TestResolveIssue_RequiresTokenWhenSecretSet(t *testing.T) {
	svc := &fakeIssueService{}
	r := newTestRouter(svc, RouterOptions{AuthSecret: "s3cret"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/issues/5/resolve", nil))
	assertError(t, w, http.StatusUnauthorized, "Authorization required")

	req := httptest.NewRequest(http.MethodPost, "/api/issues/5/resolve", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong", "alice"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assertError(t, w, http.StatusUnauthorized, "Invalid token")

	if svc.resolvedID != 0 {
		t.Fatal("service must not be called without a valid token")
	}
}

func TestResolveIssue_AttributesActor(t *testing.T) {
	svc := &fakeIssueService{}
	r := newTestRouter(svc, RouterOptions{AuthSecret: "s3cret"})

	req := httptest.NewRequest(http.MethodPost, "/api/issues/5/resolve", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", "alice"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusOK, w.Code, w.Body.String())
	}
	if svc.resolvedActor != "alice" {
		t.Fatalf("expected actor alice, got %q", svc.resolvedActor)
	}
}

func TestHealthHandler_OK(t *testing.T) {
	r := newTestRouter(&fakeIssueService{}, RouterOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/system/health", nil))

	body := decodeHealth(t, w)
	if body.Status != "ok" || body.DB != "ok" || body.Redis != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthHandler_Degraded(t *testing.T) {
	svc := &fakeIssueService{
		healthErr: &service.HealthError{DBError: errors.New("db error")},
	}
	r := newTestRouter(svc, RouterOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/system/health", nil))

	body := decodeHealth(t, w)
	if body.Status != "degraded" || body.DB != "error" || body.Redis != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&fakeIssueService{}, RouterOptions{Metrics: metrics.New()})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/issues", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !bytes.Contains(w.Body.Bytes(), []byte(`path="/api/issues"`)) {
		t.Fatalf("metrics do not include the issues route:\n%s", w.Body.String())
	}
}

type healthBody struct {
	Status string `json:"status"`
	DB     string `json:"db"`
	Redis  string `json:"redis"`
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) healthBody {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var body healthBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return body
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d, body=%s", status, w.Code, w.Body.String())
	}
	var body model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Error != msg {
		t.Fatalf("expected error %q, got %q", msg, body.Error)
	}
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
