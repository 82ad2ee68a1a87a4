package httptransport_test

import (
	"bytes"
	"context"
	"fmt"
	stdimage "image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"inkwell-server-go/internal/domain/attach"
	"inkwell-server-go/internal/domain/attach/dedupe"
	"inkwell-server-go/internal/domain/attach/store"
	"inkwell-server-go/internal/domain/auth"
	"inkwell-server-go/internal/domain/image"
	"inkwell-server-go/internal/platform/config"
	"inkwell-server-go/internal/platform/storage"
	platformtesting "inkwell-server-go/internal/platform/testing"
	httptransport "inkwell-server-go/internal/transport/http"
	attachhttp "inkwell-server-go/internal/transport/http/attach"
	statushttp "inkwell-server-go/internal/transport/http/status"
)

type testServer struct {
	router *httptransport.Router
	tokens *auth.SessionToken
	cfg    *config.Config
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()

	cfg := platformtesting.SetupTestConfig(t)
	cfg.Web.AuthSecret = "router-test-secret"
	if mutate != nil {
		mutate(cfg)
	}
	logger := platformtesting.SetupTestLogger(t)

	storage.ResetForTest()
	if err := storage.InitDatabase(cfg.Database.Path); err != nil {
		t.Fatalf("InitDatabase() error = %v", err)
	}
	t.Cleanup(storage.ResetForTest)
	repo := storage.NewAttachmentRepository(storage.GetDB())

	blobs, err := store.New(store.Config{
		Driver:     store.DriverDisk,
		Dir:        cfg.Attach.Store.Dir,
		PublicBase: cfg.Web.PublicURL,
	})
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}

	index, err := dedupe.New(dedupe.Config{Driver: dedupe.DriverMemory, TTL: time.Minute})
	if err != nil {
		t.Fatalf("dedupe.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = index.Close(context.Background())
	})

	pipeline, err := image.NewPipeline(image.Options{Security: &cfg.Security, Logger: logger})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	attachments := attach.NewAttachmentService(blobs, index, repo, pipeline, logger)
	tokens := auth.NewSessionToken(cfg.Web.AuthSecret)

	router, err := httptransport.Build(httptransport.Options{
		Config:         cfg,
		Logger:         logger,
		AuthMiddleware: httptransport.BearerAuth(tokens, logger),
		StaticRoot:     t.TempDir(),
		AttachmentsDir: cfg.Attach.Store.Dir,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	attachSvc, err := attachhttp.NewService(cfg, logger, attachments)
	if err != nil {
		t.Fatalf("attach.NewService() error = %v", err)
	}
	if err := attachSvc.Register(context.Background(), router.API, router.Secured); err != nil {
		t.Fatalf("attach Register() error = %v", err)
	}

	statusSvc, err := statushttp.NewService(cfg, logger, attachments)
	if err != nil {
		t.Fatalf("status.NewService() error = %v", err)
	}
	if err := statusSvc.Register(context.Background(), router.API); err != nil {
		t.Fatalf("status Register() error = %v", err)
	}

	return &testServer{router: router, tokens: tokens, cfg: cfg}
}

func (ts *testServer) do(t *testing.T, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	rec := httptest.NewRecorder()
	ts.router.Engine.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message"`
	Code    int            `json:"code"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := sonic.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not a JSON envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return env
}

// decodeAccept parses the raw upload response body. The upload route
// answers without the envelope so clients can read url at the top level.
func decodeAccept(t *testing.T, rec *httptest.ResponseRecorder) attach.AcceptResult {
	t.Helper()

	var result attach.AcceptResult
	if err := sonic.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("upload response is not valid JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 40), G: uint8(y * 40), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// multipartBody builds a form with one file part carrying an explicit
// image content type, plus any extra plain fields.
func multipartBody(t *testing.T, field, fileName string, content []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if field != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
		header.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("part.Write() error = %v", err)
		}
	}
	for name, value := range extra {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close() error = %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadStoresImage(t *testing.T) {
	ts := newTestServer(t, nil)

	body, contentType := multipartBody(t, "image", "shot.png", pngBytes(t, 2, 2), nil)
	rec := ts.do(t, http.MethodPost, "/api/attach", body, map[string]string{
		"Content-Type":     contentType,
		"X-Editor-Session": "session-9",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/attach = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	result := decodeAccept(t, rec)

	if !strings.Contains(result.URL, "/attachments/") {
		t.Errorf("url = %q, want an /attachments/ path", result.URL)
	}
	if result.Duplicate {
		t.Error("first upload reported as duplicate")
	}
	if result.Hash == "" || result.Format != "png" {
		t.Errorf("result = %+v, want hash and png format", result)
	}

	if result.ID == "" {
		t.Fatal("upload response carries no id")
	}
	getRec := ts.do(t, http.MethodGet, "/api/attach/"+result.ID, nil, nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GET /api/attach/%s = %d, want 200", result.ID, getRec.Code)
	}
}

func TestUploadDeduplicatesRepeatedContent(t *testing.T) {
	ts := newTestServer(t, nil)
	content := pngBytes(t, 3, 3)

	body, contentType := multipartBody(t, "image", "first.png", content, nil)
	first := decodeAccept(t, ts.do(t, http.MethodPost, "/api/attach", body, map[string]string{"Content-Type": contentType}))

	body, contentType = multipartBody(t, "image", "second.png", content, nil)
	rec := ts.do(t, http.MethodPost, "/api/attach", body, map[string]string{"Content-Type": contentType})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat POST = %d, want 200", rec.Code)
	}
	second := decodeAccept(t, rec)

	if !second.Duplicate {
		t.Error("repeated content not reported as duplicate")
	}
	if first.ID != second.ID {
		t.Errorf("duplicate answered with id %q, want original %q", second.ID, first.ID)
	}
	if first.URL != second.URL {
		t.Errorf("duplicate answered with url %q, want original %q", second.URL, first.URL)
	}
}

func TestUploadRejectsNonImagePayload(t *testing.T) {
	ts := newTestServer(t, nil)

	body, contentType := multipartBody(t, "image", "junk.png", []byte("definitely not a png"), nil)
	rec := ts.do(t, http.MethodPost, "/api/attach", body, map[string]string{"Content-Type": contentType})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("junk upload = %d, want 400", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Success {
		t.Error("junk upload reported success")
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	ts := newTestServer(t, nil)

	body, contentType := multipartBody(t, "", "", nil, map[string]string{"note": "no file here"})
	rec := ts.do(t, http.MethodPost, "/api/attach", body, map[string]string{"Content-Type": contentType})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("fileless POST = %d, want 400", rec.Code)
	}
}

func TestUploadEnforcesCSRFField(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Upload.CSRFToken = "csrf_token"
		cfg.Upload.CSRFHash = "expected-hash"
	})

	body, contentType := multipartBody(t, "image", "shot.png", pngBytes(t, 2, 2), nil)
	rec := ts.do(t, http.MethodPost, "/api/attach", body, map[string]string{"Content-Type": contentType})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("POST without csrf field = %d, want 403", rec.Code)
	}

	body, contentType = multipartBody(t, "image", "shot.png", pngBytes(t, 2, 2), map[string]string{
		"csrf_token": "expected-hash",
	})
	rec = ts.do(t, http.MethodPost, "/api/attach", body, map[string]string{"Content-Type": contentType})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST with csrf field = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t, nil)

	body, contentType := multipartBody(t, "image", "shot.png", pngBytes(t, 2, 2), nil)
	uploaded := decodeAccept(t, ts.do(t, http.MethodPost, "/api/attach", body, map[string]string{"Content-Type": contentType}))
	id := uploaded.ID
	if id == "" {
		t.Fatal("upload response carries no id")
	}

	rec := ts.do(t, http.MethodDelete, "/api/attach/"+id, nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("DELETE without token = %d, want 401", rec.Code)
	}

	token, err := ts.tokens.GenerateToken("session-9")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	rec = ts.do(t, http.MethodDelete, "/api/attach/"+id, nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE with token = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	getRec := ts.do(t, http.MethodGet, "/api/attach/"+id, nil, nil)
	if getRec.Code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", getRec.Code)
	}
}

func TestListReturnsRecentUploads(t *testing.T) {
	ts := newTestServer(t, nil)

	for i := 0; i < 3; i++ {
		body, contentType := multipartBody(t, "image", fmt.Sprintf("n%d.png", i), pngBytes(t, 2+i, 2), nil)
		rec := ts.do(t, http.MethodPost, "/api/attach", body, map[string]string{"Content-Type": contentType})
		if rec.Code != http.StatusOK {
			t.Fatalf("seed upload %d = %d, want 200", i, rec.Code)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/attach?limit=2", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/attach = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if count, _ := env.Data["count"].(float64); count != 2 {
		t.Errorf("count = %v, want 2", env.Data["count"])
	}
}

func TestStatusReportsHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/status", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatal("status endpoint reported failure")
	}
	if _, ok := env.Data["uptime_seconds"]; !ok {
		t.Error("status response carries no uptime")
	}
	system, _ := env.Data["system"].(map[string]any)
	if system == nil {
		t.Fatal("status response carries no system block")
	}
	if goroutines, _ := system["goroutines"].(float64); goroutines <= 0 {
		t.Errorf("goroutines = %v, want > 0", system["goroutines"])
	}
}
