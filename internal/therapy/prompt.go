package therapy

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// suggestionClause is appended to every prompt sent to the model.
const suggestionClause = "Remember these are suggestions, not absolute truths. Never phrase anything as a diagnosis."

// FormatTimeline renders one line per entry in ascending key order. Keys that are
// all numeric (second offsets) sort numerically, anything else sorts lexically.
func FormatTimeline(timeline EmotionTimeline) string {
	keys := make([]string, 0, len(timeline))
	for k := range timeline {
		keys = append(keys, k)
	}

	numeric := len(keys) > 0
	values := make(map[string]float64, len(keys))
	for _, k := range keys {
		v, err := strconv.ParseFloat(strings.TrimSpace(k), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			numeric = false
			break
		}
		values[k] = v
	}

	if numeric {
		sort.SliceStable(keys, func(i, j int) bool {
			if values[keys[i]] == values[keys[j]] {
				return keys[i] < keys[j]
			}
			return values[keys[i]] < values[keys[j]]
		})
	} else {
		sort.Strings(keys)
	}

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		if numeric {
			lines = append(lines, fmt.Sprintf("- Second %s: %s", k, timeline[k]))
		} else {
			lines = append(lines, fmt.Sprintf("- %s: %s", k, timeline[k]))
		}
	}
	return strings.Join(lines, "\n")
}

// FormatSummary renders one line per emotion in stored order.
func FormatSummary(summary *EmotionSummary) string {
	entries := summary.Entries()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("- %s: %d occurrences", e.Emotion, e.Count))
	}
	return strings.Join(lines, "\n")
}

func FormatResources(resources []Resource) string {
	lines := make([]string, 0, len(resources))
	for _, r := range resources {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Title, r.Snippet))
	}
	return strings.Join(lines, "\n")
}

func BuildAnalysisPrompt(patientID string, data EmotionData) string {
	return fmt.Sprintf(`As a psychotherapy specialist, analyze the following data for patient %s:

Emotional Timeline:
%s

Emotion Summary:
%s

Please provide a detailed analysis considering:
1. Specific emotional patterns for this patient
2. Dominant emotions and their frequency
3. Possible triggers identified
4. Specific areas for improvement
5. Progress or changes over time

Provide a detailed but concise analysis, focused on this specific patient.
%s`, patientID, FormatTimeline(data.Timeline), FormatSummary(data.EmotionSummary), suggestionClause)
}

func BuildRecommendationPrompt(patientID, analysis string, resources []Resource, dominant string) string {
	return fmt.Sprintf(`As a psychotherapy specialist, provide personalized recommendations for patient %s based on:

Pattern Analysis:
%s

Therapeutic Resources:
%s

Dominant Emotion: %s

Provide specific and relevant recommendations for this patient, such as:
1. Immediate strategies for managing %s
2. Long-term personalized plan
3. Specific tools
4. Relevant additional resources

%s`, patientID, analysis, FormatResources(resources), dominant, dominant, suggestionClause)
}

// ChatPromptInput carries everything the clinician chat prompt can reference.
type ChatPromptInput struct {
	PatientID string
	Question  string
	// Language is the English name of the language the question is written in.
	Language  string
	Analysis  string
	Dominant  string
	Resources []Resource
	Data      *EmotionData
}

// BuildChatPrompt answers a therapist's question directly, in the question's own
// language.
func BuildChatPrompt(in ChatPromptInput) string {
	var b strings.Builder
	b.WriteString("You are a clinical assistant supporting a psychotherapist. Stay within the clinical scope of the patient data below.\n")
	if in.PatientID != "" {
		fmt.Fprintf(&b, "\nPatient: %s\n", in.PatientID)
	}
	if in.Data != nil {
		fmt.Fprintf(&b, "\nEmotional Timeline:\n%s\n", FormatTimeline(in.Data.Timeline))
		fmt.Fprintf(&b, "\nEmotion Summary:\n%s\n", FormatSummary(in.Data.EmotionSummary))
	}
	if in.Dominant != "" {
		fmt.Fprintf(&b, "\nDominant Emotion: %s\n", in.Dominant)
	}
	if in.Analysis != "" {
		fmt.Fprintf(&b, "\nPattern Analysis:\n%s\n", in.Analysis)
	}
	if len(in.Resources) > 0 {
		fmt.Fprintf(&b, "\nTherapeutic Resources:\n%s\n", FormatResources(in.Resources))
	}
	fmt.Fprintf(&b, "\nTherapist's question:\n%s\n", in.Question)
	b.WriteString("\nAnswer the question directly and concisely. Do not produce a structured treatment plan unless the therapist asks for one.\n")
	fmt.Fprintf(&b, "Answer in %s, the same language the question is written in. Do not translate the question or answer in any other language.\n", in.Language)
	b.WriteString(suggestionClause)
	return b.String()
}

// BuildSessionChatPrompt renders the multi-session chat prompt. When sessionID is
// set only that session is used as context.
func BuildSessionChatPrompt(message, language, sessionID string, sessions map[string]EmotionData) string {
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		if sessionID != "" && id != sessionID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("You are a clinical assistant supporting a psychotherapist.\n")
	if len(ids) > 0 {
		b.WriteString("\nEmotional data from the patient's sessions:\n")
		for _, id := range ids {
			data := sessions[id]
			fmt.Fprintf(&b, "\nSession %s\nEmotional Timeline:\n%s\nEmotion Summary:\n%s\n",
				id, FormatTimeline(data.Timeline), FormatSummary(data.EmotionSummary))
		}
	} else if sessionID != "" {
		fmt.Fprintf(&b, "\nNo emotional data is available for session %s.\n", sessionID)
	}
	fmt.Fprintf(&b, "\nTherapist's question:\n%s\n", message)
	b.WriteString("\nAnswer the question directly and concisely.\n")
	fmt.Fprintf(&b, "Answer in %s, the same language the question is written in. Do not translate the question or answer in any other language.\n", language)
	b.WriteString(suggestionClause)
	return b.String()
}

// quickSuggestionClause closes the legacy prompt, which is written in Spanish.
const quickSuggestionClause = "Recuerda que estas son sugerencias basadas en el análisis y no verdades absolutas. Nunca formules nada como un diagnóstico."

// BuildQuickPrompt renders the legacy /recommendations prompt around the raw
// request payload.
func BuildQuickPrompt(req QuickRecommendationRequest, resources []Resource) string {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", req))
	}
	return fmt.Sprintf(`Como especialista en psicoterapia y análisis emocional, analiza los siguientes datos del paciente y proporciona recomendaciones personalizadas.

Datos del paciente:
%s

Información adicional de recursos terapéuticos:
%s

Por favor, proporciona recomendaciones considerando:
1. Patrones emocionales observados
2. Herramientas y técnicas que podrían ser útiles
3. Sugerencias para el manejo emocional
4. Recursos adicionales que podrían ser beneficiosos

%s`, payload, FormatResources(resources), quickSuggestionClause)
}
