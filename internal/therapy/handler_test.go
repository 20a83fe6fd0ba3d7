package therapy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeHistory struct {
	records []RecommendationResult
}

func (f *fakeHistory) Save(ctx context.Context, r *RecommendationResult) error {
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeHistory) ListByPatient(ctx context.Context, patientID string) ([]RecommendationResult, error) {
	var out []RecommendationResult
	for _, r := range f.records {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeReports struct {
	rendered int
}

func (f *fakeReports) Render(r RecommendationResult) ([]byte, error) {
	f.rendered++
	return []byte("%PDF-1.4 fake"), nil
}

func (f *fakeReports) Deliver(ctx context.Context, r RecommendationResult) error { return nil }

func newTestRouter(svc Service, history Repository, reports ReportService) http.Handler {
	h := NewHandler(svc, history, reports)
	r := chi.NewRouter()
	RegisterRootRoutes(r, h)
	r.Route("/api/agent", func(r chi.Router) {
		RegisterRoutes(r, h)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["detail"]
}

func TestChat_MissingEmotionSummary(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{}
	search := &fakeSearch{}
	router := newTestRouter(newTestService(llm, search, nil, nil), nil, nil)

	rec := do(t, router, http.MethodPost, "/api/agent/chat",
		`{"patient_id":"p1","therapist_id":"t1","emotion_data":{"timeline":{"0":"happy"}}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	if d := detail(t, rec); !strings.Contains(d, "emotion_summary") || strings.Contains(d, "timeline") {
		t.Fatalf("detail=%q", d)
	}
	if len(llm.prompts) != 0 || len(search.queries) != 0 {
		t.Fatalf("external calls made: llm=%d search=%d", len(llm.prompts), len(search.queries))
	}
}

func TestChat_MissingEmotionData(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newTestService(&fakeLLM{}, nil, nil, nil), nil, nil)
	rec := do(t, router, http.MethodPost, "/api/agent/chat", `{"patient_id":"p1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	if d := detail(t, rec); !strings.Contains(d, "emotion_data") {
		t.Fatalf("detail=%q", d)
	}
}

func TestChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newTestService(&fakeLLM{}, nil, nil, nil), nil, nil)
	if rec := do(t, router, http.MethodPost, "/api/agent/chat", `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestChat_Success(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{replies: []string{"analysis text", "recommendation text"}}
	search := &fakeSearch{resources: []Resource{{Title: "Mindfulness", Snippet: "Stay present."}}}
	router := newTestRouter(newTestService(llm, search, nil, nil), nil, nil)

	rec := do(t, router, http.MethodPost, "/api/agent/chat?therapist_id=t9",
		`{"patient_id":"p1","emotion_data":{"timeline":{"0":"neutral","1":"happy"},"emotion_summary":{"happy":2,"neutral":1}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["dominant_emotion"] != "happy" || body["recommendations"] != "recommendation text" {
		t.Fatalf("body=%v", body)
	}
	if body["therapist_id"] != "t9" || body["patient_id"] != "p1" {
		t.Fatalf("ids=%v/%v", body["therapist_id"], body["patient_id"])
	}
	analysis, _ := body["analysis"].(map[string]any)
	if analysis["analysis"] != "analysis text" {
		t.Fatalf("analysis=%v", body["analysis"])
	}
	resources, _ := body["resources"].([]any)
	if len(resources) != 1 {
		t.Fatalf("resources=%v", body["resources"])
	}
	for _, key := range []string{"timestamp", "id"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing %q", key)
		}
	}
}

func TestChat_GenerationFailureIs500(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newTestService(&fakeLLM{failAt: 1}, &fakeSearch{}, nil, nil), nil, nil)
	rec := do(t, router, http.MethodPost, "/api/agent/chat",
		`{"emotion_data":{"timeline":{},"emotion_summary":{"sad":1}}}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if d := detail(t, rec); !strings.HasPrefix(d, "error generating recommendations:") || !strings.Contains(d, "quota exceeded") {
		t.Fatalf("detail=%q", d)
	}
}

func TestChat_EmptySummaryIs400(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newTestService(&fakeLLM{}, &fakeSearch{}, nil, nil), nil, nil)
	rec := do(t, router, http.MethodPost, "/api/agent/chat",
		`{"emotion_data":{"timeline":{},"emotion_summary":{}}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newTestService(&fakeLLM{replies: []string{"hello back"}}, nil, fakeDetector{code: "en"}, nil), nil, nil)

	rec := do(t, router, http.MethodPost, "/api/agent/message", `{"message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["response"] != "hello back" {
		t.Fatalf("response=%q", body["response"])
	}

	if rec := do(t, router, http.MethodPost, "/api/agent/message", `{"message":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank message status=%d", rec.Code)
	}
}

func TestReport(t *testing.T) {
	t.Parallel()

	reports := &fakeReports{}
	router := newTestRouter(newTestService(&fakeLLM{}, &fakeSearch{}, nil, nil), nil, reports)

	rec := do(t, router, http.MethodPost, "/api/agent/report",
		`{"patient_id":"p1","emotion_data":{"timeline":{"0":"sad"},"emotion_summary":{"sad":1}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("Content-Type=%q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatalf("body=%q", rec.Body.String())
	}
	if reports.rendered != 1 {
		t.Fatalf("rendered=%d", reports.rendered)
	}
}

func TestReport_Disabled(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newTestService(&fakeLLM{}, nil, nil, nil), nil, nil)
	if rec := do(t, router, http.MethodPost, "/api/agent/report", `{}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{}
	router := newTestRouter(newTestService(&fakeLLM{}, &fakeSearch{}, nil, history), history, nil)

	body := `{"patient_id":"p7","emotion_data":{"timeline":{"0":"calm"},"emotion_summary":{"calm":1}}}`
	if rec := do(t, router, http.MethodPost, "/api/agent/chat", body); rec.Code != http.StatusOK {
		t.Fatalf("chat status=%d", rec.Code)
	}

	rec := do(t, router, http.MethodGet, "/api/agent/patients/p7/recommendations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var records []RecommendationResult
	if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0].DominantEmotion != "calm" {
		t.Fatalf("records=%+v", records)
	}

	rec = do(t, router, http.MethodGet, "/api/agent/patients/nobody/recommendations", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty history body=%q", rec.Body.String())
	}
}

func TestHistory_Disabled(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newTestService(&fakeLLM{}, nil, nil, nil), nil, nil)
	rec := do(t, router, http.MethodGet, "/api/agent/patients/p1/recommendations", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
	if d := detail(t, rec); d != ErrHistoryDisabled.Error() {
		t.Fatalf("detail=%q", d)
	}
}

func TestQuickRecommendationsEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newTestService(&fakeLLM{replies: []string{"rest"}}, &fakeSearch{err: errors.New("down")}, nil, nil), nil, nil)

	rec := do(t, router, http.MethodPost, "/recommendations",
		`{"current_emotion":"sad","emotion_history":["sad"],"timestamp":"2024-05-01T12:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["recommendations"] != "rest" || body["timestamp"] != "2024-05-01T12:00:00Z" {
		t.Fatalf("body=%v", body)
	}
	if sources, ok := body["sources"].([]any); !ok || len(sources) != 0 {
		t.Fatalf("sources=%v", body["sources"])
	}

	if rec := do(t, router, http.MethodPost, "/recommendations", `{"current_emotion":"sad"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("incomplete body status=%d", rec.Code)
	}
}

func TestHealthAndRoot(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newTestService(&fakeLLM{}, nil, nil, nil), nil, nil)

	rec := do(t, router, http.MethodGet, "/api/agent/health", "")
	var health map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["status"] != "healthy" || health["service"] != "therapeutic_agent" || health["version"] != "1.0.0" {
		t.Fatalf("health=%v", health)
	}

	rec = do(t, router, http.MethodGet, "/", "")
	var root map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&root); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if root["status"] != "active" || root["version"] != "1.0.0" {
		t.Fatalf("root=%v", root)
	}
}
