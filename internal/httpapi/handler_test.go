package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"plate-match/internal/plate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProcessor struct {
	calls    []string
	paths    []string
	existed  []bool
	target   string
	info     plate.VehicleInfo
	video    *plate.VideoResult
	vehicles *plate.MultiResult
	// panics makes the next Process calls panic, one per count.
	panics int
}

func (f *fakeProcessor) record(call, path string) {
	f.calls = append(f.calls, call)
	f.paths = append(f.paths, path)
	_, err := os.Stat(path)
	f.existed = append(f.existed, err == nil)
}

func (f *fakeProcessor) Process(_ context.Context, path string) *plate.VideoResult {
	f.record("process", path)
	if f.panics > 0 {
		f.panics--
		panic("decoder crashed")
	}
	return f.videoResult()
}

func (f *fakeProcessor) ProcessWithPlate(_ context.Context, path, target string) *plate.VideoResult {
	f.record("plate", path)
	f.target = target
	return f.videoResult()
}

func (f *fakeProcessor) ProcessWithVehicles(_ context.Context, path string, info plate.VehicleInfo) *plate.MultiResult {
	f.record("vehicles", path)
	f.info = info
	if f.vehicles != nil {
		return f.vehicles
	}
	return &plate.MultiResult{Success: true, Vehicles: info, Matches: map[string]plate.MatchResult{}}
}

func (f *fakeProcessor) videoResult() *plate.VideoResult {
	if f.video != nil {
		return f.video
	}
	return &plate.VideoResult{Success: true, TotalFramesProcessed: 8}
}

func newTestRouter(t *testing.T, proc Processor, maxUpload int64) *gin.Engine {
	t.Helper()
	h := NewHandler(proc, Options{
		MaxUploadBytes: maxUpload,
		OCRAvailable:   true,
		External:       "alpr",
		TempDir:        t.TempDir(),
	}, zerolog.Nop())
	return NewRouter(h, []string{"*"}, zerolog.Nop())
}

func uploadRequest(t *testing.T, filename string, content []byte, plateNumber string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if plateNumber != "" {
		if err := w.WriteField("plate_number", plateNumber); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/plates", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &fakeProcessor{}, 1<<20)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" || body["ocr_available"] != true || body["external"] != "alpr" {
		t.Fatalf("unexpected body %v", body)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}
}

func TestScanVideoRouting(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		call   string
		report string
	}{
		{name: "no plate", input: "", call: "process", report: "Video Analysis Complete"},
		{name: "single plate", input: " ka01ab1234 ", call: "plate", report: "NO MATCH FOUND"},
		{name: "message", input: "My car KA01AB1234 hit MH12CD5678", call: "vehicles", report: "MULTIPLE VEHICLE PLATE ANALYSIS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			if tc.call == "plate" {
				proc.video = &plate.VideoResult{Success: true, Match: &plate.MatchResult{UserPlate: "ka01ab1234"}}
			}
			router := newTestRouter(t, proc, 1<<20)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, "clip.MP4", []byte("video"), tc.input))

			if rec.Code != http.StatusOK {
				t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
			}
			if len(proc.calls) != 1 || proc.calls[0] != tc.call {
				t.Fatalf("expected %s call, got %v", tc.call, proc.calls)
			}
			if !proc.existed[0] {
				t.Fatal("upload was not on disk during processing")
			}
			if _, err := os.Stat(proc.paths[0]); !os.IsNotExist(err) {
				t.Fatalf("upload not removed after request: %v", err)
			}
			if !strings.HasSuffix(proc.paths[0], ".mp4") {
				t.Fatalf("temp file lost its extension: %s", proc.paths[0])
			}
			body := decode(t, rec)
			if text, _ := body["report"].(string); !strings.Contains(text, tc.report) {
				t.Fatalf("expected report containing %q, got %q", tc.report, text)
			}
			if tc.call == "plate" && proc.target != "ka01ab1234" {
				t.Fatalf("unexpected target %q", proc.target)
			}
			if tc.call == "vehicles" && proc.info.UserVehicle != "KA01AB1234" {
				t.Fatalf("unexpected vehicle info %+v", proc.info)
			}
		})
	}
}

func TestScanVideoMessageWithoutPlates(t *testing.T) {
	proc := &fakeProcessor{}
	router := newTestRouter(t, proc, 1<<20)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "clip.avi", []byte("video"), "it was a red car"))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if len(proc.calls) != 0 {
		t.Fatalf("video should not be processed, got %v", proc.calls)
	}
	if !strings.Contains(rec.Body.String(), "No vehicle numbers found in message") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestScanVideoFailureResult(t *testing.T) {
	proc := &fakeProcessor{video: &plate.VideoResult{Error: "could not extract frames from video"}}
	router := newTestRouter(t, proc, 1<<20)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "clip.mkv", []byte("video"), ""))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Video Processing Error") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestScanVideoRejectsInput(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		content  []byte
		status   int
	}{
		{name: "missing file", status: http.StatusBadRequest},
		{name: "bad extension", filename: "notes.txt", content: []byte("x"), status: http.StatusBadRequest},
		{name: "too large", filename: "clip.mp4", content: bytes.Repeat([]byte("v"), 4096), status: http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			router := newTestRouter(t, proc, 1024)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, tc.filename, tc.content, ""))

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if len(proc.calls) != 0 {
				t.Fatalf("processor should not run, got %v", proc.calls)
			}
			if _, ok := decode(t, rec)["error"]; !ok {
				t.Fatalf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestExtractMessage(t *testing.T) {
	router := newTestRouter(t, &fakeProcessor{}, 1<<20)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/plates", strings.NewReader(`{"message":"My car KA01AB1234 hit MH12CD5678"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body struct {
		Data plate.VehicleInfo `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.UserVehicle != "KA01AB1234" || body.Data.OtherVehicle != "MH12CD5678" {
		t.Fatalf("unexpected vehicles %+v", body.Data)
	}

	for _, payload := range []string{`{"message":"  "}`, `not json`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/plates", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: expected 400, got %d", payload, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, &fakeProcessor{}, 1<<20)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/videos/plates", nil)
	req.Header.Set("Origin", "https://claims.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected preflight status %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestScanVideoRecoversAfterProcessorPanic(t *testing.T) {
	proc := &fakeProcessor{panics: 1}
	router := newTestRouter(t, proc, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "clip.mp4", []byte("video"), ""))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for the panicking run, got %d", rec.Code)
	}
	if _, err := os.Stat(proc.paths[0]); !os.IsNotExist(err) {
		t.Fatalf("upload not removed after panic: %v", err)
	}

	next := uploadRequest(t, "clip.mp4", []byte("video"), "")
	done := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, next)
		done <- rec.Code
	}()

	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Fatalf("expected 200 after recovery, got %d", code)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("second upload blocked after a processor panic")
	}
	if len(proc.calls) != 2 {
		t.Fatalf("expected two processor calls, got %v", proc.calls)
	}
}
