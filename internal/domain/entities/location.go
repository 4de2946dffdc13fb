package entities

// LocationConfidence says how a district hint was obtained
type LocationConfidence string

const (
	// LocationConfidenceExplicit means the caller supplied the district
	LocationConfidenceExplicit LocationConfidence = "explicit"
	// LocationConfidenceInferred means the district was matched in free text
	LocationConfidenceInferred LocationConfidence = "inferred"
	// LocationConfidenceNone means no district could be determined;
	// consumers must not scope queries by district in this case
	LocationConfidenceNone LocationConfidence = "none"
)

// LocationHint is a resolved district plus how confidently it was
// resolved. Transient, computed per request.
type LocationHint struct {
	District   string             `json:"district,omitempty"`
	Confidence LocationConfidence `json:"confidence"`
}

// Scoped reports whether queries should be scoped by the hint
func (h LocationHint) Scoped() bool {
	return h.Confidence != LocationConfidenceNone && h.District != ""
}
