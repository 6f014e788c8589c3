package converter

import (
	"strings"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/types"
)

// Classifier infers a document's role from where it sits in the archive.
// Exports from DGI portals and ERPs put received and issued CFEs in
// separate folders ("Recibidos/", "Emitidos/"); renamed folders simply fall
// back to RoleUnknown.
type Classifier struct {
	received []string
	issued   []string
}

// NewClassifier builds a classifier from path markers. Markers are compared
// case-insensitively; received markers win when both match.
func NewClassifier(receivedMarkers, issuedMarkers []string) *Classifier {
	return &Classifier{
		received: lowerAll(receivedMarkers),
		issued:   lowerAll(issuedMarkers),
	}
}

// DefaultClassifier uses the "recibidos" and "emitidos" folder markers.
func DefaultClassifier() *Classifier {
	return NewClassifier([]string{"recibidos"}, []string{"emitidos"})
}

// Classify returns the role implied by path.
func (c *Classifier) Classify(path string) types.Role {
	lower := strings.ToLower(path)
	if containsAny(lower, c.received) {
		return types.RoleReceived
	}
	if containsAny(lower, c.issued) {
		return types.RoleIssued
	}
	return types.RoleUnknown
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}
