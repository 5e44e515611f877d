package domain

import "time"

// Message is a piece of user content queued for spam review.
type Message struct {
	ID               string        `json:"id"`
	Text             string        `json:"text"`
	OrganizationHost string        `json:"organization_host"`
	ResourceClass    ResourceClass `json:"resource_class"`
	CreatedAt        time.Time     `json:"created_at"`
}

// ResourceClass names the kind of resource the text was authored in.
type ResourceClass string

const (
	ResourceComment  ResourceClass = "Decidim::Comments::Comment"
	ResourceProposal ResourceClass = "Decidim::Proposals::Proposal"
	ResourceDebate   ResourceClass = "Decidim::Debates::Debate"
	ResourceUser     ResourceClass = "Decidim::User"
)

// StrategyReport is the outcome of one strategy on one piece of content.
// Error is set instead of Label and Score when the strategy failed.
type StrategyReport struct {
	Strategy  string `json:"strategy"`
	Label     string `json:"label,omitempty"`
	Score     *int   `json:"score,omitempty"`
	Log       string `json:"log,omitempty"`
	Degraded  string `json:"degraded,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	// Status is the gateway status the failure maps to.
	Status int `json:"status,omitempty"`
}

// VerdictEvent is published once per classified record.
type VerdictEvent struct {
	ID            string           `json:"id"`
	ResourceClass ResourceClass    `json:"resource_class"`
	Strategies    []StrategyReport `json:"strategies"`
}
