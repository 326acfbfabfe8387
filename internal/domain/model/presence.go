// Package model contains domain models passed between layers.
package model

// Season identifies one of the two leaderboard periods.
type Season string

// Known seasons.
const (
	S0 Season = "s0"
	S1 Season = "s1"
)

// Seasons lists every season in load order.
func Seasons() []Season { return []Season{S0, S1} }

// LeaderboardRecord is one row of a season dataset.
// Mindshare is kept as the raw percent string, e.g. "4.25%".
type LeaderboardRecord struct {
	Username  string `json:"username"`
	Mindshare string `json:"mindshare"`
	PFP       string `json:"pfp,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

// Dataset is the ordered list of records for a single season.
type Dataset []LeaderboardRecord

// PresenceResult is the scored output for a username. Its JSON form is the
// value persisted by the result cache.
type PresenceResult struct {
	PFP           string `json:"pfp"`
	Username      string `json:"username"`
	Consistency   int    `json:"consistency"`
	Effectiveness int    `json:"effectiveness"`
	UnionMaxi     int    `json:"unionmaxi"`
	Score         int    `json:"score"`
}

// IsZero reports whether all four stats are zero (the not-found result).
func (r PresenceResult) IsZero() bool {
	return r.Consistency == 0 && r.Effectiveness == 0 && r.UnionMaxi == 0 && r.Score == 0
}

// PresenceCase records which datasets contained the user.
type PresenceCase string

// Membership cases.
const (
	CaseNone   PresenceCase = "none"
	CaseS0Only PresenceCase = "s0_only"
	CaseS1Only PresenceCase = "s1_only"
	CaseBoth   PresenceCase = "both"
)

// CaseFor maps dataset membership to a PresenceCase.
func CaseFor(inS0, inS1 bool) PresenceCase {
	switch {
	case inS0 && inS1:
		return CaseBoth
	case inS0:
		return CaseS0Only
	case inS1:
		return CaseS1Only
	default:
		return CaseNone
	}
}
