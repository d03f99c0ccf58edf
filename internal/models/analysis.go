package models

// AnalysisRequest is what the classification providers receive: the
// chapter plus an immutable policy snapshot.
type AnalysisRequest struct {
	ChapterID     string
	Title         string
	Content       string // normalized chapter text
	ContentHash   string
	Policies      []*Policy
	PolicyVersion string
}

// RawFinding mirrors one entry of the model's JSON findings array before
// validation.
type RawFinding struct {
	SectionID string `json:"section_id"`
	Verdict   string `json:"verdict"`
	Rationale string `json:"rationale"`
}

// AnalysisResponse is the untrusted structured output of a classification
// provider. Every field is validated and coerced by the invoker before it
// reaches the decision engine.
type AnalysisResponse struct {
	Status    string       `json:"status"`
	RiskScore *float64     `json:"risk_score"`
	Labels    []string     `json:"labels"`
	Findings  []RawFinding `json:"findings"`
}

// AnalysisResult is the validated tuple the invoker hands to the decision
// engine. A result is always usable: failed runs are downgraded to a WARN
// with an explanatory finding instead of an error.
type AnalysisResult struct {
	Status        Status
	RiskScore     int // always in [0,100]
	Labels        StringList
	Findings      FindingList
	PolicyVersion string
	AIModel       string // empty when the run never produced a usable response
	Err           error  // wrapped ErrClassification for failed runs, nil otherwise
}
