package models

import "time"

// RawRecord is the uniform record every collector yields: a timestamped,
// source-tagged observation with free text for the extractor plus an
// optional structured host observation from network-exposure scans.
type RawRecord struct {
	Source      string           `json:"source"`
	ObservedAt  time.Time        `json:"observed_at"`
	Text        string           `json:"text"`
	EvidenceURL string           `json:"evidence_url,omitempty"`
	Host        *HostObservation `json:"host,omitempty"`
}

// HostObservation is the structured payload of a network-exposure record.
// It maps directly to Port/IP indicators without a regex pass.
type HostObservation struct {
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	Transport string `json:"transport,omitempty"`
	Product   string `json:"product,omitempty"`
	Version   string `json:"version,omitempty"`
}

// FetchResult is what a connector returns from one Fetch call.
type FetchResult struct {
	SourceSlug string        `json:"source_slug"`
	Records    []RawRecord   `json:"records"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Error      error         `json:"-"`
}
