package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/dukerupert/rota/internal/model"
)

func TestGroupCreate(t *testing.T) {
	gs := NewGroupStore(openTestDB(t))
	g := createTestGroup(t, gs)

	if g.ID == "" {
		t.Error("expected non-empty ID")
	}
	if g.Name != "Flat 4B" {
		t.Errorf("name = %q, want %q", g.Name, "Flat 4B")
	}
	if len(g.InviteCode) != inviteCodeLength {
		t.Errorf("invite code %q has length %d, want %d", g.InviteCode, len(g.InviteCode), inviteCodeLength)
	}
	for _, c := range g.InviteCode {
		if !strings.ContainsRune(inviteAlphabet, c) {
			t.Errorf("invite code %q contains %q outside the alphabet", g.InviteCode, c)
		}
	}
	if g.AdminID != "u1" {
		t.Errorf("admin_id = %q, want %q", g.AdminID, "u1")
	}
	if len(g.Members) != 1 || g.Members[0].DisplayName != "Ada" {
		t.Errorf("members = %+v, want only Ada", g.Members)
	}
	if len(g.Tasks) != 2 {
		t.Fatalf("expected 2 default tasks, got %d", len(g.Tasks))
	}

	trash := g.Task("trash")
	if trash == nil || trash.FrequencyDays != nil {
		t.Errorf("trash task should be manual, got %+v", trash)
	}
	bathroom := g.Task("bathroom")
	if bathroom == nil || bathroom.FrequencyDays == nil || *bathroom.FrequencyDays != 7 {
		t.Errorf("bathroom task should repeat every 7 days, got %+v", bathroom)
	}
	for _, task := range g.Tasks {
		if len(task.Rotation) != 1 || task.Rotation[0] != "u1" {
			t.Errorf("task %s rotation = %v, want [u1]", task.ID, task.Rotation)
		}
	}
	if g.ShoppingList == nil || g.Feedback == nil {
		t.Error("lists should be empty, not nil")
	}
}

func TestGroupCreateDefaultName(t *testing.T) {
	gs := NewGroupStore(openTestDB(t))
	g, err := gs.Create("   ", model.Member{ID: "u1", DisplayName: "Ada"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if g.Name != defaultGroupName {
		t.Errorf("name = %q, want %q", g.Name, defaultGroupName)
	}
}

func TestGroupGetByIDNotFound(t *testing.T) {
	gs := NewGroupStore(openTestDB(t))

	g, err := gs.GetByID("missing")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if g != nil {
		t.Error("expected nil for nonexistent group")
	}
}

func TestGroupGetByInviteCode(t *testing.T) {
	gs := NewGroupStore(openTestDB(t))
	created := createTestGroup(t, gs)

	g, err := gs.GetByInviteCode(" " + strings.ToLower(created.InviteCode) + " ")
	if err != nil {
		t.Fatalf("get by invite code: %v", err)
	}
	if g == nil || g.ID != created.ID {
		t.Fatalf("got %+v, want group %s", g, created.ID)
	}

	g, err = gs.GetByInviteCode("ZZZZZZ")
	if err != nil {
		t.Fatalf("get by unknown invite code: %v", err)
	}
	if g != nil && g.ID == created.ID {
		t.Error("expected no match for a different code")
	}
}

func TestGroupUpdate(t *testing.T) {
	gs := NewGroupStore(openTestDB(t))
	created := createTestGroup(t, gs)

	updated, err := gs.Update(created.ID, func(g *model.Group) error {
		g.Name = "Flat 4C"
		g.Members = append(g.Members, model.Member{ID: "u2", DisplayName: "Ben"})
		g.Task("bathroom").Rotation = []string{"u1", "u2"}
		return nil
	})
	if err != nil {
		t.Fatalf("update group: %v", err)
	}
	if updated.Name != "Flat 4C" {
		t.Errorf("name = %q, want %q", updated.Name, "Flat 4C")
	}

	got, err := gs.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if got.Name != "Flat 4C" {
		t.Errorf("stored name = %q, want %q", got.Name, "Flat 4C")
	}
	if got.Member("u2") == nil {
		t.Error("expected u2 on the stored roster")
	}
	if rot := got.Task("bathroom").Rotation; len(rot) != 2 || rot[1] != "u2" {
		t.Errorf("stored rotation = %v, want [u1 u2]", rot)
	}
}

func TestGroupUpdateCallbackErrorAborts(t *testing.T) {
	gs := NewGroupStore(openTestDB(t))
	created := createTestGroup(t, gs)
	boom := errors.New("boom")

	_, err := gs.Update(created.ID, func(g *model.Group) error {
		g.Name = "should not persist"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	got, _ := gs.GetByID(created.ID)
	if got.Name != "Flat 4B" {
		t.Errorf("name = %q, want unchanged %q", got.Name, "Flat 4B")
	}
}

func TestGroupUpdateNotFound(t *testing.T) {
	gs := NewGroupStore(openTestDB(t))

	_, err := gs.Update("missing", func(g *model.Group) error { return nil })
	if !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("err = %v, want ErrGroupNotFound", err)
	}
}

func TestGroupListByMember(t *testing.T) {
	gs := NewGroupStore(openTestDB(t))
	first := createTestGroup(t, gs)
	second, err := gs.Create("Cabin", model.Member{ID: "u2", DisplayName: "Ben"})
	if err != nil {
		t.Fatalf("create second group: %v", err)
	}

	groups, err := gs.ListByMember("u1")
	if err != nil {
		t.Fatalf("list by member: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != first.ID {
		t.Fatalf("u1 groups = %+v, want only %s", groups, first.ID)
	}

	// Joining updates the membership index.
	if _, err := gs.Update(second.ID, func(g *model.Group) error {
		g.Members = append(g.Members, model.Member{ID: "u1", DisplayName: "Ada"})
		return nil
	}); err != nil {
		t.Fatalf("join: %v", err)
	}
	groups, _ = gs.ListByMember("u1")
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups after joining, got %d", len(groups))
	}

	// Leaving removes it again.
	if _, err := gs.Update(second.ID, func(g *model.Group) error {
		g.Members = g.Members[:1]
		return nil
	}); err != nil {
		t.Fatalf("leave: %v", err)
	}
	groups, _ = gs.ListByMember("u1")
	if len(groups) != 1 {
		t.Fatalf("expected 1 group after leaving, got %d", len(groups))
	}
}

func TestGroupListIDs(t *testing.T) {
	gs := NewGroupStore(openTestDB(t))
	createTestGroup(t, gs)
	createTestGroup(t, gs)

	ids, err := gs.ListIDs()
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 ids, got %d", len(ids))
	}
}

func TestGroupDelete(t *testing.T) {
	gs := NewGroupStore(openTestDB(t))
	g := createTestGroup(t, gs)

	if err := gs.Delete(g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := gs.GetByID(g.ID)
	if err != nil {
		t.Fatalf("get deleted group: %v", err)
	}
	if got != nil {
		t.Error("expected nil for deleted group")
	}
}
