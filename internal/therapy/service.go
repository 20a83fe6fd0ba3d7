package therapy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrGeneration marks a failed call to the LLM provider. It is always fatal.
	ErrGeneration = errors.New("text generation failed")
	// ErrEmptySummary is returned when no dominant emotion can be selected.
	ErrEmptySummary = errors.New("emotion_summary has no entries")
	// ErrEmptyMessage is returned by ProcessMessage for a blank message.
	ErrEmptyMessage = errors.New("message is required")
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Searcher looks up therapeutic resources on the web.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Resource, error)
}

// LanguageDetector returns an ISO 639-1 code for text.
type LanguageDetector interface {
	Detect(text string) (string, error)
}

// Recorder stores generated recommendations.
type Recorder interface {
	Save(ctx context.Context, r *RecommendationResult) error
}

// ReportService delivers a rendered report for a result.
type ReportService interface {
	Render(r RecommendationResult) ([]byte, error)
	Deliver(ctx context.Context, r RecommendationResult) error
}

type Service interface {
	GenerateRecommendations(ctx context.Context, patientID, therapistID string, data EmotionData, message string) (*RecommendationResult, error)
	ProcessMessage(ctx context.Context, req MessageRequest) (string, error)
	QuickRecommendations(ctx context.Context, req QuickRecommendationRequest) (*QuickRecommendationResult, error)
}

// Options configures the orchestrator. Zero values fall back to defaults.
type Options struct {
	MaxResults      int
	DefaultLanguage string
	Now             func() time.Time
}

type service struct {
	llm      Generator
	search   Searcher
	detector LanguageDetector
	recorder Recorder

	maxResults      int
	defaultLanguage string
	now             func() time.Time
}

// NewService wires the orchestrator. recorder may be nil.
func NewService(llm Generator, search Searcher, detector LanguageDetector, recorder Recorder, opts Options) Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 3
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "es"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		llm:             llm,
		search:          search,
		detector:        detector,
		recorder:        recorder,
		maxResults:      opts.MaxResults,
		defaultLanguage: opts.DefaultLanguage,
		now:             opts.Now,
	}
}

// ResourceLookup is the outcome of a web search. A failed search is not an error
// for the caller: Resources is empty and Degraded reports why.
type ResourceLookup struct {
	Resources []Resource
	Degraded  bool
	Cause     error
}

func (s *service) lookupResources(ctx context.Context, query string) ResourceLookup {
	if s.search == nil {
		return ResourceLookup{Resources: []Resource{}, Degraded: true, Cause: errors.New("no search provider configured")}
	}
	resources, err := s.search.Search(ctx, query, s.maxResults)
	if err != nil {
		log.Printf("web search failed for %q: %v", query, err)
		return ResourceLookup{Resources: []Resource{}, Degraded: true, Cause: err}
	}
	if len(resources) > s.maxResults {
		resources = resources[:s.maxResults]
	}
	if resources == nil {
		resources = []Resource{}
	}
	return ResourceLookup{Resources: resources}
}

func (s *service) generate(ctx context.Context, stage, prompt string) (string, error) {
	text, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", stage, ErrGeneration, err)
	}
	return text, nil
}

// detectLanguage returns the code and English name of the text's language,
// falling back to the configured default.
func (s *service) detectLanguage(text string) (string, string) {
	code := s.defaultLanguage
	if s.detector != nil {
		detected, err := s.detector.Detect(text)
		if err != nil {
			log.Printf("language detection failed, using %q: %v", s.defaultLanguage, err)
		} else if detected != "" {
			code = detected
		}
	}
	return code, LanguageName(code)
}

// GenerateRecommendations runs analysis, resource lookup and the final
// recommendation (or chat answer when message is set).
func (s *service) GenerateRecommendations(ctx context.Context, patientID, therapistID string, data EmotionData, message string) (*RecommendationResult, error) {
	dominant, ok := data.EmotionSummary.Dominant()
	if !ok {
		return nil, ErrEmptySummary
	}

	analysis, err := s.generate(ctx, "analysis", BuildAnalysisPrompt(patientID, data))
	if err != nil {
		return nil, err
	}

	lookup := s.lookupResources(ctx, resourceQuery(dominant))

	var prompt string
	if strings.TrimSpace(message) != "" {
		_, language := s.detectLanguage(message)
		prompt = BuildChatPrompt(ChatPromptInput{
			PatientID: patientID,
			Question:  message,
			Language:  language,
			Analysis:  analysis,
			Dominant:  dominant,
			Resources: lookup.Resources,
			Data:      &data,
		})
	} else {
		prompt = BuildRecommendationPrompt(patientID, analysis, lookup.Resources, dominant)
	}

	text, err := s.generate(ctx, "recommendations", prompt)
	if err != nil {
		return nil, err
	}

	result := &RecommendationResult{
		ID:              uuid.New(),
		PatientID:       patientID,
		TherapistID:     therapistID,
		Recommendations: text,
		Analysis:        Analysis{Text: analysis},
		Resources:       lookup.Resources,
		DominantEmotion: dominant,
		Timestamp:       s.now(),
	}

	if s.recorder != nil {
		if err := s.recorder.Save(ctx, result); err != nil {
			log.Printf("failed to record recommendations %s: %v", result.ID, err)
		}
	}
	return result, nil
}

// ProcessMessage answers a chat message with a single generation call.
func (s *service) ProcessMessage(ctx context.Context, req MessageRequest) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", ErrEmptyMessage
	}
	_, language := s.detectLanguage(req.Message)
	prompt := BuildSessionChatPrompt(req.Message, language, req.SessionID, req.Sessions)
	return s.generate(ctx, "chat", prompt)
}

func (s *service) QuickRecommendations(ctx context.Context, req QuickRecommendationRequest) (*QuickRecommendationResult, error) {
	topic := strings.TrimSpace(req.CurrentEmotion)
	if topic == "" {
		topic = "manejo emocional"
	}
	lookup := s.lookupResources(ctx, "herramientas terapéuticas para "+topic)

	text, err := s.generate(ctx, "recommendations", BuildQuickPrompt(req, lookup.Resources))
	if err != nil {
		return nil, err
	}
	return &QuickRecommendationResult{
		Recommendations: text,
		Sources:         lookup.Resources,
		Timestamp:       req.Timestamp,
	}, nil
}

// resourceQuery describes the patient context without identifiers, which never
// leave the service in search queries.
func resourceQuery(emotion string) string {
	return fmt.Sprintf("therapeutic techniques for managing %s in psychotherapy patients", emotion)
}
