package lists

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasklist/cmd/internal/activity"
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
	"tasklist/cmd/internal/store"
)

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *activity.Log) {
	t.Helper()
	st := store.NewMemoryStore()
	clock := func() time.Time { return time.UnixMilli(1_000) }
	events := activity.New(st, activity.WithClock(clock))
	return NewService(st, events, WithClock(clock)), st, events
}

func eventTypes(t *testing.T, events *activity.Log, listID string) []model.EventType {
	t.Helper()
	page, err := events.Page(context.Background(), listID, 1, activity.MaxPageSize)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	out := make([]model.EventType, 0, len(page.Items))
	for _, it := range page.Items {
		out = append(out, it.Type)
	}
	return out
}

func addMember(t *testing.T, st store.Store, listID, userID string, role model.Role) {
	t.Helper()
	err := st.PutMembership(context.Background(), model.Membership{
		ID: listID + ":" + userID, ListID: listID, UserID: userID, Role: role,
	})
	if err != nil {
		t.Fatalf("put membership: %v", err)
	}
}

func TestCreate_MakesOwnerMembership(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st, events := newTestService(t)

	l, err := svc.Create(ctx, "u1", CreateInput{Name: "  Groceries ", Color: strPtr("#ff0")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Name != "Groceries" || l.OwnerID != "u1" || l.Color == nil || *l.Color != "#ff0" {
		t.Fatalf("list=%+v", l)
	}
	m, err := st.GetMembership(ctx, l.ID, "u1")
	if err != nil || m.Role != model.RoleOwner {
		t.Fatalf("membership=%+v err=%v", m, err)
	}
	if _, err := st.GetUser(ctx, "u1"); err != nil {
		t.Fatalf("actor not bootstrapped: %v", err)
	}
	if got := eventTypes(t, events, l.ID); len(got) != 1 || got[0] != model.EventListCreated {
		t.Fatalf("events=%v", got)
	}
}

func TestCreate_RequiresName(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), "u1", CreateInput{Name: "   "})
	if !errors.Is(err, fault.ErrInvalidInput) {
		t.Fatalf("err=%v want=%v", err, fault.ErrInvalidInput)
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st, events := newTestService(t)
	l, err := svc.Create(ctx, "owner", CreateInput{Name: "Work", Color: strPtr("red")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	addMember(t, st, l.ID, "admin", model.RoleAdmin)
	addMember(t, st, l.ID, "member", model.RoleMember)

	if _, err := svc.Update(ctx, "member", l.ID, Patch{Name: model.Set("x")}); !errors.Is(err, fault.ErrForbidden) {
		t.Fatalf("member update err=%v want=%v", err, fault.ErrForbidden)
	}
	if _, err := svc.Update(ctx, "admin", l.ID, Patch{Name: model.Set(" ")}); !errors.Is(err, fault.ErrInvalidInput) {
		t.Fatalf("blank name err=%v want=%v", err, fault.ErrInvalidInput)
	}

	got, err := svc.Update(ctx, "admin", l.ID, Patch{Name: model.Set("Office"), Color: model.Null[string]()})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Office" || got.Color != nil {
		t.Fatalf("list=%+v", got)
	}

	// unchanged fields produce no event
	if _, err := svc.Update(ctx, "owner", l.ID, Patch{Name: model.Set("Office")}); err != nil {
		t.Fatalf("noop update: %v", err)
	}
	types := eventTypes(t, events, l.ID)
	want := []model.EventType{model.EventListUpdated, model.EventListCreated}
	if len(types) != len(want) {
		t.Fatalf("events=%v want=%v", types, want)
	}
}

func TestDelete_OwnerOnlyAndCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st, events := newTestService(t)
	l, err := svc.Create(ctx, "owner", CreateInput{Name: "Trip"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	addMember(t, st, l.ID, "admin", model.RoleAdmin)
	if err := st.PutTask(ctx, model.Task{ID: "t1", ListID: l.ID, Title: "pack", Status: model.StatusTodo, CreatedBy: "owner"}); err != nil {
		t.Fatalf("put task: %v", err)
	}

	if err := svc.Delete(ctx, "admin", l.ID); !errors.Is(err, fault.ErrForbidden) {
		t.Fatalf("admin delete err=%v want=%v", err, fault.ErrForbidden)
	}
	if err := svc.Delete(ctx, "owner", l.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetList(ctx, l.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("list err=%v want=%v", err, store.ErrNotFound)
	}
	if _, err := st.GetTask(ctx, "t1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("task err=%v want=%v", err, store.ErrNotFound)
	}
	if ms, _ := st.ListMemberships(ctx, l.ID); len(ms) != 0 {
		t.Fatalf("memberships=%v", ms)
	}
	if types := eventTypes(t, events, l.ID); len(types) != 2 || types[0] != model.EventListDeleted {
		t.Fatalf("events=%v", types)
	}
}

func TestGetAndForUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)
	a, _ := svc.Create(ctx, "u1", CreateInput{Name: "A"})
	if _, err := svc.Create(ctx, "u2", CreateInput{Name: "B"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, "u2", a.ID); !errors.Is(err, fault.ErrForbidden) {
		t.Fatalf("outsider get err=%v want=%v", err, fault.ErrForbidden)
	}
	ls, err := svc.ForUser(ctx, "u1")
	if err != nil || len(ls) != 1 || ls[0].ID != a.ID {
		t.Fatalf("lists=%v err=%v", ls, err)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st, _ := newTestService(t)
	l, err := svc.Create(ctx, "owner", CreateInput{Name: "Chores"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	addMember(t, st, l.ID, "bob", model.RoleMember)
	done := int64(5)
	for i, tk := range []model.Task{
		{ID: "t1", Status: model.StatusDone, CompletedAt: &done, AssigneeID: strPtr("bob")},
		{ID: "t2", Status: model.StatusTodo, AssigneeID: strPtr("bob")},
		{ID: "t3", Status: model.StatusDoing, AssigneeID: strPtr("bob")},
		{ID: "t4", Status: model.StatusTodo},
	} {
		tk.ListID, tk.Title, tk.CreatedBy, tk.CreatedAt = l.ID, "task", "owner", int64(i)
		if err := st.PutTask(ctx, tk); err != nil {
			t.Fatalf("put task: %v", err)
		}
	}

	got, err := svc.Stats(ctx, "bob", l.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got.Total != 4 || got.Done != 1 || got.Percent != 25 {
		t.Fatalf("stats=%+v", got)
	}
	per := map[string]MemberStats{}
	for _, m := range got.Members {
		per[m.UserID] = m
	}
	if b := per["bob"]; b.Total != 3 || b.Done != 1 || b.Percent != 33 || b.Name != "bob" {
		t.Fatalf("bob=%+v", b)
	}
	if o := per["owner"]; o.Total != 0 || o.Percent != 0 {
		t.Fatalf("owner=%+v", o)
	}

	if _, err := svc.Stats(ctx, "stranger", l.ID); !errors.Is(err, fault.ErrForbidden) {
		t.Fatalf("stranger err=%v want=%v", err, fault.ErrForbidden)
	}
}

func TestPercentRounds(t *testing.T) {
	t.Parallel()

	cases := []struct{ done, total, want int }{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{3, 3, 100},
	}
	for _, tc := range cases {
		if got := percent(tc.done, tc.total); got != tc.want {
			t.Fatalf("percent(%d,%d)=%d want=%d", tc.done, tc.total, got, tc.want)
		}
	}
}

func TestDelete_RemovesAllTasksAndMemberships(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st, _ := newTestService(t)
	l, err := svc.Create(ctx, "owner", CreateInput{Name: "Move"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	addMember(t, st, l.ID, "m1", model.RoleMember)
	addMember(t, st, l.ID, "m2", model.RoleAdmin)
	taskIDs := []string{"a", "b", "c", "d", "e"}
	for _, id := range taskIDs {
		if err := st.PutTask(ctx, model.Task{ID: id, ListID: l.ID, Title: id, Status: model.StatusTodo, CreatedBy: "owner"}); err != nil {
			t.Fatalf("put task: %v", err)
		}
	}

	if err := svc.Delete(ctx, "owner", l.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, id := range taskIDs {
		if _, err := st.GetTask(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("task %s err=%v want=%v", id, err, store.ErrNotFound)
		}
	}
	for _, u := range []string{"owner", "m1", "m2"} {
		if _, err := st.GetMembership(ctx, l.ID, u); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("membership %s err=%v want=%v", u, err, store.ErrNotFound)
		}
	}
}
