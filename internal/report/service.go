package report

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/signintech/gopdf"

	"emotionai-agent/internal/therapy"
)

// DefaultFontPaths lists where DejaVuSans usually lives on Debian and Alpine.
// It covers Latin, Cyrillic and Greek, which is enough for the languages the
// agent answers in.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

const (
	fontName     = "DejaVu"
	textWidth    = 500
	pageBottomY  = 790
	timeLayout   = "02.01.2006 15:04"
	reportHeader = "Therapeutic Recommendations Report"
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

type Service struct {
	tgClient        TelegramClient
	therapistChatID int64
	fontPaths       []string
}

// NewService builds the report service. tg may be nil, which disables delivery.
func NewService(tg TelegramClient, therapistChatID int64, fontPaths ...string) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &Service{
		tgClient:        tg,
		therapistChatID: therapistChatID,
		fontPaths:       fontPaths,
	}
}

// FileName is the attachment name used for a result's report.
func FileName(r therapy.RecommendationResult) string {
	return fmt.Sprintf("report_%s.pdf", r.ID.String())
}

type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) font(size float64) {
	if w.err != nil {
		return
	}
	w.err = w.pdf.SetFont(fontName, "", size)
}

func (w *writer) line(text string, gap float64) {
	if w.err != nil {
		return
	}
	if w.pdf.GetY() > pageBottomY {
		w.pdf.AddPage()
	}
	w.err = w.pdf.Cell(nil, text)
	w.pdf.Br(gap)
}

// paragraph wraps text to the page width, keeping the author's line breaks.
func (w *writer) paragraph(text string) {
	for _, raw := range strings.Split(text, "\n") {
		if w.err != nil {
			return
		}
		raw = strings.TrimRight(raw, " \t\r")
		if raw == "" {
			w.pdf.Br(6)
			continue
		}
		lines, err := w.pdf.SplitText(raw, textWidth)
		if err != nil {
			w.err = err
			return
		}
		for _, l := range lines {
			w.line(l, 12)
		}
	}
}

func (s *Service) loadFont(pdf *gopdf.GoPdf) error {
	var fontErr error
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont(fontName, path); err == nil {
			return nil
		} else {
			fontErr = err
		}
	}
	return fmt.Errorf("failed to load font for PDF. Please ensure ttf-dejavu is installed. Last error: %w", fontErr)
}

// Render produces the PDF report for a recommendation result.
func (s *Service) Render(r therapy.RecommendationResult) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := s.loadFont(pdf); err != nil {
		return nil, err
	}

	w := &writer{pdf: pdf}

	w.font(20)
	w.line(reportHeader, 30)

	w.font(12)
	w.line(fmt.Sprintf("Date: %s", r.Timestamp.Format(timeLayout)), 15)
	w.line(fmt.Sprintf("Patient ID: %s", r.PatientID), 15)
	w.line(fmt.Sprintf("Therapist ID: %s", r.TherapistID), 15)
	w.line(fmt.Sprintf("Dominant emotion: %s", r.DominantEmotion), 25)

	w.font(14)
	w.line("Pattern analysis:", 15)
	w.font(11)
	w.paragraph(r.Analysis.Text)
	pdf.Br(15)

	w.font(14)
	w.line("Recommendations:", 15)
	w.font(11)
	w.paragraph(r.Recommendations)
	pdf.Br(15)

	w.font(14)
	w.line("Resources:", 15)
	w.font(11)
	if len(r.Resources) == 0 {
		w.line("- No resources found.", 15)
	}
	for _, res := range r.Resources {
		w.paragraph(fmt.Sprintf("- %s: %s", res.Title, res.Snippet))
		if res.URL != "" {
			w.paragraph("  " + res.URL)
		}
		pdf.Br(5)
	}

	pdf.Br(15)
	w.font(9)
	w.line("These are suggestions to support clinical judgement, not diagnoses.", 12)

	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Deliver sends the report to the therapist's Telegram chat. It is a no-op when
// Telegram is not configured.
func (s *Service) Deliver(ctx context.Context, r therapy.RecommendationResult) error {
	if s.tgClient == nil || s.therapistChatID == 0 {
		return nil
	}

	pdf, err := s.Render(r)
	if err != nil {
		return err
	}

	caption := fmt.Sprintf("New recommendations for patient %s (dominant emotion: %s)", r.PatientID, r.DominantEmotion)
	if err := s.tgClient.SendMessage(ctx, s.therapistChatID, caption); err != nil {
		return err
	}

	log.Printf("Sending PDF report %s to Telegram chat %d", r.ID, s.therapistChatID)
	return s.tgClient.SendDocument(ctx, s.therapistChatID, pdf, FileName(r))
}
