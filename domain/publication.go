package domain

import (
	"fmt"
	"strings"
	"time"
)

// Tribunal identifies which external docket service a case is monitored on.
type Tribunal string

const (
	TribunalTJSP  Tribunal = "TJSP"
	TribunalTRT2  Tribunal = "TRT2"
	TribunalTRT15 Tribunal = "TRT15"

	// SourceManual marks publications entered by hand instead of ingested
	// from a docket service.
	SourceManual Tribunal = "MANUAL"
)

// ParseTribunal validates a raw tribunal code.
func ParseTribunal(raw string) (Tribunal, error) {
	switch t := Tribunal(strings.ToUpper(strings.TrimSpace(raw))); t {
	case TribunalTJSP, TribunalTRT2, TribunalTRT15:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tribunal %q", raw)
	}
}

// MovementComplement is a structured annotation attached to a docket movement.
type MovementComplement struct {
	Name  string
	Value string
}

// Movement is a single raw docket entry as returned by the search service.
type Movement struct {
	Code        int
	Name        string
	RawDate     string
	PublishedAt time.Time
	Complements []MovementComplement
}

// Content renders the human-readable body for a movement: the movement name,
// followed by its complements joined as "name: value" pairs when present.
func (m Movement) Content() string {
	if len(m.Complements) == 0 {
		return m.Name
	}
	parts := make([]string, len(m.Complements))
	for i, c := range m.Complements {
		parts[i] = c.Name + ": " + c.Value
	}
	return m.Name + "\n\n" + strings.Join(parts, "; ")
}

// IdentityKey derives the deduplication token for a movement. It is the sole
// uniqueness contract for persisted publications and must be stable across
// repeated fetches of the same docket.
//
// The key does not include the movement content, so two distinct movements
// sharing code and timestamp on the same docket collide. Known limitation,
// kept for compatibility with existing stored keys.
func IdentityKey(tribunal Tribunal, processNumber string, code int, rawDate string) string {
	return fmt.Sprintf("%s_%s_%d_%s", tribunal, processNumber, code, rawDate)
}

// Publication is a persisted docket movement scoped to a case.
type Publication struct {
	CaseID       string    `json:"caseId"`
	UserID       string    `json:"userId"`
	Source       Tribunal  `json:"source"`
	MovementCode int       `json:"movementCode"`
	MovementName string    `json:"movementName"`
	Content      string    `json:"content"`
	PublishedAt  time.Time `json:"publishedAt"`
	IdentityKey  string    `json:"identityKey"`
	IsRead       bool      `json:"isRead"`
}
