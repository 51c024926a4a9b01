package session

import (
	"strconv"
	"strings"
)

// DefaultScore is recorded when an evaluation cannot be parsed.
const DefaultScore = 50

const (
	scoreMarker   = "SCORE:"
	commentMarker = "COMMENT:"
)

// Evaluation is the parsed grading of a test answer.
type Evaluation struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
	Raw     string `json:"raw"`
	// Parsed is false when the defaults were used.
	Parsed bool `json:"parsed"`
}

// ParseEvaluation extracts the score from the first line following "SCORE:"
// and the comment from everything after "COMMENT:". When either marker is
// missing or the score is not an integer, the score is DefaultScore and the
// comment is the raw text. Parsed scores are clamped to [0, 100].
func ParseEvaluation(raw string) Evaluation {
	fallback := Evaluation{Score: DefaultScore, Comment: raw, Raw: raw}

	_, afterScore, ok := strings.Cut(raw, scoreMarker)
	if !ok {
		return fallback
	}
	line, _, _ := strings.Cut(afterScore, "\n")
	score, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return fallback
	}

	_, comment, ok := strings.Cut(raw, commentMarker)
	if !ok {
		return fallback
	}

	return Evaluation{
		Score:   min(max(score, 0), 100),
		Comment: strings.TrimSpace(comment),
		Raw:     raw,
		Parsed:  true,
	}
}
