package agent

import (
	"errors"
	"strings"

	"github.com/abadojack/whatlanggo"
)

var errLanguageUndetermined = errors.New("language could not be determined")

// LanguageDetector wraps whatlanggo. Results below minConfidence count as a
// failed detection so the caller can apply its default.
type LanguageDetector struct {
	minConfidence float64
}

func NewLanguageDetector() *LanguageDetector {
	return &LanguageDetector{minConfidence: 0.2}
}

func (d *LanguageDetector) Detect(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errLanguageUndetermined
	}
	info := whatlanggo.Detect(text)
	if info.Lang == -1 || info.Confidence < d.minConfidence {
		return "", errLanguageUndetermined
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "", errLanguageUndetermined
	}
	return code, nil
}
