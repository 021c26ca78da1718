package model

import "time"

type Group struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	InviteCode   string         `json:"invite_code"`
	AdminID      string         `json:"admin_id"`
	Members      []Member       `json:"members"`
	Tasks        []Task         `json:"tasks"`
	ShoppingList []ShoppingItem `json:"shopping_list"`
	Feedback     []FeedbackItem `json:"feedback"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Member returns the roster entry for id, or nil.
func (g *Group) Member(id string) *Member {
	for i := range g.Members {
		if g.Members[i].ID == id {
			return &g.Members[i]
		}
	}
	return nil
}

// Task returns the task with the given id, or nil.
func (g *Group) Task(id string) *Task {
	for i := range g.Tasks {
		if g.Tasks[i].ID == id {
			return &g.Tasks[i]
		}
	}
	return nil
}

func (g *Group) IsAdmin(memberID string) bool {
	return g.AdminID != "" && g.AdminID == memberID
}

// GroupSummary is the lightweight listing used by "my groups".
type GroupSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	IsAdmin     bool   `json:"is_admin"`
}
