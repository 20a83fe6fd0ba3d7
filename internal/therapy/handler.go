package therapy

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	serviceName    = "therapeutic_agent"
	serviceVersion = "1.0.0"
)

type Handler struct {
	svc     Service
	history Repository
	reports ReportService
}

// NewHandler builds the HTTP layer. history and reports may be nil, in which case
// their endpoints answer 503.
func NewHandler(svc Service, history Repository, reports ReportService) *Handler {
	return &Handler{svc: svc, history: history, reports: reports}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// decodeChatRequest reads and validates a chat body. Query parameters fill in the
// identifiers when the body omits them.
func decodeChatRequest(r *http.Request) (*ChatRequest, string) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "invalid request body: " + err.Error()
	}
	if req.TherapistID == "" {
		req.TherapistID = r.URL.Query().Get("therapist_id")
	}
	if req.PatientID == "" {
		req.PatientID = r.URL.Query().Get("patient_id")
	}

	if req.EmotionData == nil {
		return nil, "the 'emotion_data' field is required"
	}
	var missing []string
	if req.EmotionData.Timeline == nil {
		missing = append(missing, "timeline")
	}
	if req.EmotionData.EmotionSummary == nil {
		missing = append(missing, "emotion_summary")
	}
	if len(missing) > 0 {
		return nil, "incomplete emotion data, missing: '" + strings.Join(missing, "', '") + "'"
	}
	return &req, ""
}

func (h *Handler) recommend(ctx context.Context, w http.ResponseWriter, req *ChatRequest) (*RecommendationResult, bool) {
	result, err := h.svc.GenerateRecommendations(ctx, req.PatientID, req.TherapistID, *req.EmotionData, req.Message)
	if err != nil {
		if errors.Is(err, ErrEmptySummary) {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "error generating recommendations: "+err.Error())
		return nil, false
	}
	return result, true
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	req, problem := decodeChatRequest(r)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}
	result, ok := h.recommend(r.Context(), w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	response, err := h.svc.ProcessMessage(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "error processing message: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

// Report generates recommendations and answers with the therapist PDF.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports are not configured")
		return
	}
	req, problem := decodeChatRequest(r)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}
	result, ok := h.recommend(r.Context(), w, req)
	if !ok {
		return
	}

	pdf, err := h.reports.Render(*result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "error rendering report: "+err.Error())
		return
	}

	go func(res RecommendationResult) {
		if err := h.reports.Deliver(context.Background(), res); err != nil {
			log.Printf("report delivery for %s failed: %v", res.ID, err)
		}
	}(*result)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="report_`+result.ID.String()+`.pdf"`)
	w.Write(pdf)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrHistoryDisabled.Error())
		return
	}
	records, err := h.history.ListByPatient(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "error loading history: "+err.Error())
		return
	}
	if records == nil {
		records = []RecommendationResult{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) QuickRecommendations(w http.ResponseWriter, r *http.Request) {
	var req QuickRecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	if req.CurrentEmotion == "" || req.EmotionHistory == nil || req.Timestamp == "" {
		writeError(w, http.StatusUnprocessableEntity, "current_emotion, emotion_history and timestamp are required")
		return
	}
	result, err := h.svc.QuickRecommendations(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the EmotionAI Therapeutic Agent",
		"version": serviceVersion,
		"status":  "active",
	})
}

// RegisterRoutes mounts the agent API on r. The caller decides the prefix.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/chat", h.Chat)
	r.Post("/message", h.Message)
	r.Post("/report", h.Report)
	r.Get("/patients/{patientID}/recommendations", h.History)
	r.Get("/health", h.Health)
}

// RegisterRootRoutes mounts the welcome payload and the standalone
// recommendations endpoint.
func RegisterRootRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.Root)
	r.Post("/recommendations", h.QuickRecommendations)
}
