// Package recommendations computes "what to play next" exploration lists
// and search ranks from exploration summaries.
package recommendations

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	SameTopicSimilarity    = 1.0
	DefaultTopicSimilarity = 0.5
)

// Categories are the topics the similarity matrix is defined over.
var Categories = []string{
	"Architecture", "Art", "Biology", "Business", "Chemistry", "Computing",
	"Economics", "Education", "Engineering", "Environment", "Geography",
	"Government", "Hobbies", "Languages", "Law", "Life Skills", "Mathematics",
	"Medicine", "Music", "Philosophy", "Physics", "Programming", "Psychology",
	"Puzzles", "Reading", "Religion", "Sport", "Statistics", "Welcome",
}

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, a ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, a...)}
}

func isCategory(topic string) bool {
	i := sort.SearchStrings(Categories, topic)
	return i < len(Categories) && Categories[i] == topic
}

// TopicSimilarities is a symmetric matrix of similarities between
// categories, safe for concurrent use.
type TopicSimilarities struct {
	mu     sync.RWMutex
	matrix map[string]map[string]float64
}

func DefaultMatrix() map[string]map[string]float64 {
	m := make(map[string]map[string]float64, len(Categories))
	for _, a := range Categories {
		row := make(map[string]float64, len(Categories))
		for _, b := range Categories {
			if a == b {
				row[b] = SameTopicSimilarity
			} else {
				row[b] = DefaultTopicSimilarity
			}
		}
		m[a] = row
	}
	return m
}

func NewTopicSimilarities() *TopicSimilarities {
	return &TopicSimilarities{matrix: DefaultMatrix()}
}

// Similarity of two topics. Topics outside Categories are only similar to
// themselves.
func (t *TopicSimilarities) Similarity(a, b string) float64 {
	if isCategory(a) && isCategory(b) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		return t.matrix[a][b]
	}
	if a == b {
		return SameTopicSimilarity
	}
	return DefaultTopicSimilarity
}

// Matrix returns a copy of the full matrix.
func (t *TopicSimilarities) Matrix() map[string]map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]map[string]float64, len(t.matrix))
	for a, row := range t.matrix {
		cp := make(map[string]float64, len(row))
		for b, v := range row {
			cp[b] = v
		}
		out[a] = cp
	}
	return out
}

// Replace overlays m onto the default matrix.
func (t *TopicSimilarities) Replace(m map[string]map[string]float64) {
	next := DefaultMatrix()
	for a, row := range m {
		if _, ok := next[a]; !ok {
			continue
		}
		for b, v := range row {
			if _, ok := next[b]; ok {
				next[a][b] = v
			}
		}
	}
	t.mu.Lock()
	t.matrix = next
	t.mu.Unlock()
}

// Update parses data as CSV whose first row names topics and whose other
// rows hold the similarity values, and merges it into the matrix.
func (t *TopicSimilarities) Update(data string) error {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(data)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return validationErrorf("Invalid topic similarities CSV: %v", err)
	}
	if len(rows) == 0 {
		return validationErrorf("Expected topic similarities CSV to have a header row.")
	}
	topics, values := rows[0], rows[1:]
	if len(topics) != len(values) {
		return validationErrorf("Length of topic similarities columns: %d does not match length of topic list: %d.", len(values), len(topics))
	}
	for _, topic := range topics {
		if !isCategory(topic) {
			return validationErrorf("Topic %s not in list of known topics.", topic)
		}
	}
	for _, row := range values {
		if len(row) != len(topics) {
			return validationErrorf("Length of topic similarities rows: %d does not match length of topic list: %d.", len(row), len(topics))
		}
	}
	parsed := make([][]float64, len(values))
	for i, row := range values {
		parsed[i] = make([]float64, len(row))
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return validationErrorf("Expected similarity to be a float, received %s", cell)
			}
			if v < 0 || v > 1 {
				return validationErrorf("Expected similarity to be between 0.0 and 1.0, received %s", strconv.FormatFloat(v, 'f', -1, 64))
			}
			parsed[i][j] = v
		}
	}
	for i := range parsed {
		for j := range parsed {
			if parsed[i][j] != parsed[j][i] {
				return validationErrorf("Expected topic similarities to be symmetric.")
			}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i, a := range topics {
		for j, b := range topics {
			t.matrix[a][b] = parsed[i][j]
		}
	}
	return nil
}

// CSV renders the whole matrix in the format Update accepts.
func (t *TopicSimilarities) CSV() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(Categories)
	for _, a := range Categories {
		row := make([]string, len(Categories))
		for j, c := range Categories {
			row[j] = strconv.FormatFloat(t.matrix[a][c], 'f', -1, 64)
		}
		_ = w.Write(row)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}
