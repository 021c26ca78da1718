package store

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/rota/internal/model"
)

// ErrGroupNotFound is returned by Update when the group does not exist.
var ErrGroupNotFound = errors.New("group not found")

const (
	inviteAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeLength = 6
	defaultGroupName = "Our Place"
)

type GroupStore struct {
	db *sql.DB
}

func NewGroupStore(db *sql.DB) *GroupStore {
	return &GroupStore{db: db}
}

const groupCols = `id, name, invite_code, admin_id, document, created_at, updated_at`

func scanGroup(scanner interface{ Scan(...any) error }) (*model.Group, error) {
	var g model.Group
	var doc string
	err := scanner.Scan(&g.ID, &g.Name, &g.InviteCode, &g.AdminID, &doc, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	decodeDocument(&g, []byte(doc))
	return &g, nil
}

// Create stores a new group with admin as its only member and the default
// task set assigned to them.
func (s *GroupStore) Create(name string, admin model.Member) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultGroupName
	}

	g := &model.Group{
		ID:           uuid.NewString(),
		Name:         name,
		AdminID:      admin.ID,
		Members:      []model.Member{admin},
		Tasks:        defaultTasks(admin.ID),
		ShoppingList: []model.ShoppingItem{},
		Feedback:     []model.FeedbackItem{},
	}
	doc, err := encodeDocument(g)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Invite codes are short; retry the rare collision with a fresh one.
	for attempt := 0; ; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return nil, err
		}
		var taken int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM groups WHERE invite_code = ?`, code).Scan(&taken); err != nil {
			return nil, fmt.Errorf("check invite code: %w", err)
		}
		if taken == 0 {
			g.InviteCode = code
			break
		}
		if attempt >= 10 {
			return nil, fmt.Errorf("generate invite code: too many collisions")
		}
	}

	_, err = tx.Exec(
		`INSERT INTO groups (id, name, invite_code, admin_id, document) VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.InviteCode, g.AdminID, doc,
	)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	if err := syncMembers(tx, g); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit group: %w", err)
	}
	return s.GetByID(g.ID)
}

func (s *GroupStore) GetByID(id string) (*model.Group, error) {
	row := s.db.QueryRow(`SELECT `+groupCols+` FROM groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// GetByInviteCode looks a group up by its invite code, ignoring case.
func (s *GroupStore) GetByInviteCode(code string) (*model.Group, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	row := s.db.QueryRow(`SELECT `+groupCols+` FROM groups WHERE invite_code = ?`, code)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group by invite code: %w", err)
	}
	return g, nil
}

// ListByMember returns every group the member belongs to, oldest first.
func (s *GroupStore) ListByMember(memberID string) ([]model.Group, error) {
	rows, err := s.db.Query(
		`SELECT g.id, g.name, g.invite_code, g.admin_id, g.document, g.created_at, g.updated_at
		 FROM groups g JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.member_id = ? ORDER BY g.created_at ASC, g.name ASC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups by member: %w", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

// ListIDs returns the id of every group, for the reminder sweep.
func (s *GroupStore) ListIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM groups ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list group ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update reads the group, applies fn and writes the result back in one
// transaction. An error from fn aborts the write and is returned as is.
func (s *GroupStore) Update(id string, fn func(g *model.Group) error) (*model.Group, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	g, err := scanGroup(tx.QueryRow(`SELECT `+groupCols+` FROM groups WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group for update: %w", err)
	}

	if err := fn(g); err != nil {
		return nil, err
	}

	doc, err := encodeDocument(g)
	if err != nil {
		return nil, err
	}
	g.UpdatedAt = time.Now().UTC()
	_, err = tx.Exec(
		`UPDATE groups SET name = ?, admin_id = ?, document = ?, updated_at = ? WHERE id = ?`,
		g.Name, g.AdminID, doc, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	if err := syncMembers(tx, g); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit group: %w", err)
	}
	return g, nil
}

func (s *GroupStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// syncMembers rewrites the membership index used by ListByMember.
func syncMembers(tx *sql.Tx, g *model.Group) error {
	if _, err := tx.Exec(`DELETE FROM group_members WHERE group_id = ?`, g.ID); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}
	for _, m := range g.Members {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO group_members (group_id, member_id) VALUES (?, ?)`, g.ID, m.ID); err != nil {
			return fmt.Errorf("insert group member: %w", err)
		}
	}
	return nil
}

func scanGroups(rows *sql.Rows) ([]model.Group, error) {
	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	code := make([]byte, inviteCodeLength)
	for i, b := range buf {
		code[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(code), nil
}

func defaultTasks(adminID string) []model.Task {
	return []model.Task{
		{
			ID:       "trash",
			Name:     "Take Out Trash",
			Icon:     "🗑️",
			Rotation: []string{adminID},
			History:  []model.HistoryEntry{},
		},
		{
			ID:            "bathroom",
			Name:          "Clean Bathroom",
			Icon:          "🚿",
			Rotation:      []string{adminID},
			FrequencyDays: model.Days(7),
			History:       []model.HistoryEntry{},
		},
	}
}
