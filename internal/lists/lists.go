// Package lists holds the group's shared shopping list and feedback board.
// Every function mutates the group in place and is meant to run inside a
// store update callback.
package lists

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/rota/internal/model"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrTextRequired  = errors.New("text is required")
	ErrInvalidStatus = errors.New("invalid feedback status")
)

// MaxTextLength bounds the text of shopping and feedback items.
const MaxTextLength = 500

func cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrTextRequired
	}
	if r := []rune(text); len(r) > MaxTextLength {
		text = string(r[:MaxTextLength])
	}
	return text, nil
}

// AddShoppingItem appends an unclaimed item on behalf of the member.
func AddShoppingItem(g *model.Group, text string, by model.Member, now time.Time) (model.ShoppingItem, error) {
	text, err := cleanText(text)
	if err != nil {
		return model.ShoppingItem{}, err
	}
	item := model.ShoppingItem{
		ID:          uuid.NewString(),
		Text:        text,
		AddedByID:   by.ID,
		AddedByName: by.DisplayName,
		CreatedAt:   now,
	}
	g.ShoppingList = append(g.ShoppingList, item)
	return item, nil
}

func shoppingItem(g *model.Group, id string) (*model.ShoppingItem, error) {
	for i := range g.ShoppingList {
		if g.ShoppingList[i].ID == id {
			return &g.ShoppingList[i], nil
		}
	}
	return nil, ErrItemNotFound
}

// Claim marks the item as being picked up by the member. Claiming an item someone
// else holds takes it over.
func Claim(g *model.Group, id string, by model.Member) (model.ShoppingItem, error) {
	item, err := shoppingItem(g, id)
	if err != nil {
		return model.ShoppingItem{}, err
	}
	item.ClaimedByID = by.ID
	item.ClaimedByName = by.DisplayName
	return *item, nil
}

func Unclaim(g *model.Group, id string) (model.ShoppingItem, error) {
	item, err := shoppingItem(g, id)
	if err != nil {
		return model.ShoppingItem{}, err
	}
	item.ClaimedByID = ""
	item.ClaimedByName = ""
	return *item, nil
}

func CompleteItem(g *model.Group, id string) (model.ShoppingItem, error) {
	item, err := shoppingItem(g, id)
	if err != nil {
		return model.ShoppingItem{}, err
	}
	item.Completed = true
	return *item, nil
}

func RemoveItem(g *model.Group, id string) error {
	for i := range g.ShoppingList {
		if g.ShoppingList[i].ID == id {
			g.ShoppingList = append(g.ShoppingList[:i:i], g.ShoppingList[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// AddFeedback appends a new feedback entry with status "new".
func AddFeedback(g *model.Group, text string, by model.Member, now time.Time) (model.FeedbackItem, error) {
	text, err := cleanText(text)
	if err != nil {
		return model.FeedbackItem{}, err
	}
	item := model.FeedbackItem{
		ID:         uuid.NewString(),
		Text:       text,
		AuthorID:   by.ID,
		AuthorName: by.DisplayName,
		Status:     model.FeedbackNew,
		CreatedAt:  now,
	}
	g.Feedback = append(g.Feedback, item)
	return item, nil
}

func SetFeedbackStatus(g *model.Group, id string, status model.FeedbackStatus) (model.FeedbackItem, error) {
	if !status.Valid() {
		return model.FeedbackItem{}, ErrInvalidStatus
	}
	for i := range g.Feedback {
		if g.Feedback[i].ID == id {
			g.Feedback[i].Status = status
			return g.Feedback[i], nil
		}
	}
	return model.FeedbackItem{}, ErrItemNotFound
}
