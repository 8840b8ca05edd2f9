package models

// QueryPriority ranks a follow-up collection query.
type QueryPriority string

const (
	QueryPriorityHigh   QueryPriority = "high"
	QueryPriorityMedium QueryPriority = "medium"
	QueryPriorityLow    QueryPriority = "low"
)

// QuerySuggestion is a follow-up collection query derived from extracted
// indicators. Tags must reference at least one indicator from the current
// set; untraceable suggestions are dropped before being returned.
type QuerySuggestion struct {
	QueryString string        `json:"query_string"`
	Rationale   string        `json:"rationale"`
	Priority    QueryPriority `json:"priority"`
	Tags        []string      `json:"tags"`
}
