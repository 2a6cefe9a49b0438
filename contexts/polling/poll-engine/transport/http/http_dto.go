package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePollRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Options     []string   `json:"options"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type UpdatePollRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type AddOptionRequest struct {
	Text string `json:"text"`
}

type CastVoteRequest struct {
	OptionID string `json:"option_id"`
}

type OptionResponse struct {
	OptionID  string   `json:"option_id"`
	Text      string   `json:"text"`
	VoteCount int      `json:"vote_count"`
	Voters    []string `json:"voters,omitempty"`
}

type PollResponse struct {
	PollID      string           `json:"poll_id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	CreatorID   string           `json:"creator_id"`
	Options     []OptionResponse `json:"options"`
	IsLocked    bool             `json:"is_locked"`
	Expired     bool             `json:"expired"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	TotalVotes  int              `json:"total_votes"`
	Version     int64            `json:"version"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type PollListResponse struct {
	Items []PollResponse `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}
