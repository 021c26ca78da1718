package model

import "time"

type ShoppingItem struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	AddedByID     string    `json:"added_by_id"`
	AddedByName   string    `json:"added_by_name"`
	ClaimedByID   string    `json:"claimed_by_id,omitempty"`
	ClaimedByName string    `json:"claimed_by_name,omitempty"`
	Completed     bool      `json:"completed"`
	CreatedAt     time.Time `json:"created_at"`
}

type FeedbackStatus string

const (
	FeedbackNew        FeedbackStatus = "new"
	FeedbackInProgress FeedbackStatus = "in-progress"
	FeedbackDone       FeedbackStatus = "done"
)

func (s FeedbackStatus) Valid() bool {
	switch s {
	case FeedbackNew, FeedbackInProgress, FeedbackDone:
		return true
	}
	return false
}

type FeedbackItem struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	AuthorID   string         `json:"author_id"`
	AuthorName string         `json:"author_name"`
	Status     FeedbackStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}
