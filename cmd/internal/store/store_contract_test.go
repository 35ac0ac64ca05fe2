package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"tasklist/cmd/internal/model"
)

// runContract exercises behavior every Store backend must share.
func runContract(t *testing.T, open func(t *testing.T) Store) {
	t.Helper()

	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("memberships", func(t *testing.T) { testMemberships(t, open(t)) })
	t.Run("delete list cascades", func(t *testing.T) { testDeleteListCascade(t, open(t)) })
	t.Run("invites", func(t *testing.T) { testInvites(t, open(t)) })
	t.Run("tasks", func(t *testing.T) { testTasks(t, open(t)) })
	t.Run("events page order", func(t *testing.T) { testEventsPage(t, open(t)) })
	t.Run("tx rollback", func(t *testing.T) { testTxRollback(t, open(t)) })
	t.Run("tx serializes", func(t *testing.T) { testTxSerializes(t, open(t)) })
}

func strPtr(s string) *string { return &s }

func mustPut(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("put: %v", err)
	}
}

func testUsers(t *testing.T, st Store) {
	ctx := context.Background()

	mustPut(t, st.PutUser(ctx, model.User{ID: "u1", Email: "ada@example.com", Name: "Ada", CreatedAt: 1}))
	mustPut(t, st.PutUser(ctx, model.User{ID: "u2", Email: "bob@example.com", Name: "Bob", ExternalAuthID: strPtr("g-2"), CreatedAt: 2}))

	got, err := st.GetUserByEmail(ctx, "ADA@example.com")
	if err != nil || got.ID != "u1" {
		t.Fatalf("by email got=%+v err=%v", got, err)
	}
	got, err = st.GetUserByExternalAuthID(ctx, "g-2")
	if err != nil || got.ID != "u2" {
		t.Fatalf("by external id got=%+v err=%v", got, err)
	}
	if _, err := st.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err=%v want=%v", err, ErrNotFound)
	}
	if err := st.PutUser(ctx, model.User{ID: "u3", Email: "ada@example.com", Name: "Imposter", CreatedAt: 3}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email err=%v want=%v", err, ErrConflict)
	}

	// upsert by id
	mustPut(t, st.PutUser(ctx, model.User{ID: "u1", Email: "ada@example.com", Name: "Ada L.", Avatar: strPtr("a.png"), CreatedAt: 1}))
	got, err = st.GetUser(ctx, "u1")
	if err != nil || got.Name != "Ada L." || got.Avatar == nil || *got.Avatar != "a.png" {
		t.Fatalf("after upsert got=%+v err=%v", got, err)
	}

	users, err := st.GetUsers(ctx, []string{"u1", "u2", "ghost"})
	if err != nil {
		t.Fatalf("get users: %v", err)
	}
	if len(users) != 2 || users["u2"].Name != "Bob" {
		t.Fatalf("users=%+v", users)
	}
}

func testMemberships(t *testing.T, st Store) {
	ctx := context.Background()

	mustPut(t, st.PutList(ctx, model.List{ID: "l1", Name: "Groceries", OwnerID: "u1", CreatedAt: 1}))
	mustPut(t, st.PutList(ctx, model.List{ID: "l2", Name: "Chores", OwnerID: "u2", CreatedAt: 2}))
	mustPut(t, st.PutMembership(ctx, model.Membership{ID: "m1", ListID: "l1", UserID: "u1", Role: model.RoleOwner, CreatedAt: 1}))
	mustPut(t, st.PutMembership(ctx, model.Membership{ID: "m2", ListID: "l1", UserID: "u2", Role: model.RoleMember, CreatedAt: 2}))
	mustPut(t, st.PutMembership(ctx, model.Membership{ID: "m3", ListID: "l2", UserID: "u2", Role: model.RoleOwner, CreatedAt: 3}))

	if err := st.PutMembership(ctx, model.Membership{ID: "m4", ListID: "l1", UserID: "u2", Role: model.RoleAdmin, CreatedAt: 4}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate pair err=%v want=%v", err, ErrConflict)
	}

	mustPut(t, st.PutMembership(ctx, model.Membership{ID: "m2", ListID: "l1", UserID: "u2", Role: model.RoleAdmin, CreatedAt: 2}))
	m, err := st.GetMembership(ctx, "l1", "u2")
	if err != nil || m.Role != model.RoleAdmin {
		t.Fatalf("membership=%+v err=%v", m, err)
	}

	ms, err := st.ListMemberships(ctx, "l1")
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(ms) != 2 || ms[0].ID != "m1" || ms[1].ID != "m2" {
		t.Fatalf("memberships=%+v", ms)
	}

	lists, err := st.ListListsForUser(ctx, "u2")
	if err != nil {
		t.Fatalf("lists for user: %v", err)
	}
	if len(lists) != 2 || lists[0].ID != "l1" || lists[1].ID != "l2" {
		t.Fatalf("lists=%+v", lists)
	}
	lists, err = st.ListListsForUser(ctx, "nobody")
	if err != nil || len(lists) != 0 {
		t.Fatalf("lists for stranger=%+v err=%v", lists, err)
	}
}

func testDeleteListCascade(t *testing.T, st Store) {
	ctx := context.Background()

	mustPut(t, st.PutList(ctx, model.List{ID: "l1", Name: "Trip", OwnerID: "u1", CreatedAt: 1}))
	mustPut(t, st.PutMembership(ctx, model.Membership{ID: "m1", ListID: "l1", UserID: "u1", Role: model.RoleOwner, CreatedAt: 1}))
	mustPut(t, st.PutInvite(ctx, model.Invite{ID: "i1", ListID: "l1", InvitedBy: "u1", Token: "tok-1", Status: model.InvitePending, CreatedAt: 1}))
	mustPut(t, st.PutTask(ctx, model.Task{ID: "t1", ListID: "l1", Title: "Pack", Status: model.StatusTodo, CreatedAt: 1, CreatedBy: "u1"}))
	if _, err := st.AppendEvent(ctx, model.Event{ID: "e1", ListID: "l1", Type: model.EventListCreated, At: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := st.DeleteList(ctx, "l1"); err != nil {
		t.Fatalf("delete list: %v", err)
	}
	if _, err := st.GetList(ctx, "l1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("list err=%v", err)
	}
	if _, err := st.GetTask(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("task err=%v", err)
	}
	if _, err := st.GetMembership(ctx, "l1", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("membership err=%v", err)
	}
	if _, err := st.GetInviteByToken(ctx, "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("invite err=%v", err)
	}
	_, total, err := st.PageEvents(ctx, "l1", 0, 10)
	if err != nil || total != 1 {
		t.Fatalf("events total=%d err=%v want=1", total, err)
	}
	if err := st.DeleteList(ctx, "l1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err=%v want=%v", err, ErrNotFound)
	}
}

func testInvites(t *testing.T, st Store) {
	ctx := context.Background()

	if _, err := st.FindPendingInvite(ctx, "l1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no pending err=%v", err)
	}
	mustPut(t, st.PutInvite(ctx, model.Invite{ID: "i1", ListID: "l1", InvitedBy: "u1", Token: "tok-1", Status: model.InviteAccepted, CreatedAt: 1}))
	mustPut(t, st.PutInvite(ctx, model.Invite{ID: "i2", ListID: "l1", Email: strPtr("x@example.com"), InvitedBy: "u1", Token: "tok-2", Status: model.InvitePending, CreatedAt: 2}))
	mustPut(t, st.PutInvite(ctx, model.Invite{ID: "i3", ListID: "l1", InvitedBy: "u1", Token: "tok-3", Status: model.InvitePending, CreatedAt: 3}))

	inv, err := st.FindPendingInvite(ctx, "l1")
	if err != nil || inv.ID != "i2" {
		t.Fatalf("pending=%+v err=%v want=i2", inv, err)
	}
	if inv.Email == nil || *inv.Email != "x@example.com" {
		t.Fatalf("email=%v", inv.Email)
	}
	if err := st.PutInvite(ctx, model.Invite{ID: "i4", ListID: "l1", InvitedBy: "u1", Token: "tok-2", Status: model.InvitePending, CreatedAt: 4}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate token err=%v want=%v", err, ErrConflict)
	}

	inv.Status = model.InviteRevoked
	mustPut(t, st.PutInvite(ctx, inv))
	got, err := st.GetInvite(ctx, "i2")
	if err != nil || got.Status != model.InviteRevoked {
		t.Fatalf("status=%v err=%v", got.Status, err)
	}
	got, err = st.GetInviteByToken(ctx, "tok-3")
	if err != nil || got.ID != "i3" {
		t.Fatalf("by token=%+v err=%v", got, err)
	}
}

func testTasks(t *testing.T, st Store) {
	ctx := context.Background()

	mustPut(t, st.PutMembership(ctx, model.Membership{ID: "m1", ListID: "l1", UserID: "u1", Role: model.RoleOwner, CreatedAt: 1}))
	mustPut(t, st.PutMembership(ctx, model.Membership{ID: "m2", ListID: "l2", UserID: "u1", Role: model.RoleMember, CreatedAt: 2}))

	due := int64(1_700_000_000_000)
	est, prio := 30, 2
	done := int64(50)
	mustPut(t, st.PutTask(ctx, model.Task{
		ID: "t1", ListID: "l1", Title: "Milk", Notes: strPtr("2%"), DueAt: &due,
		EstimateMinutes: &est, Priority: &prio, Status: model.StatusTodo, CreatedAt: 10, CreatedBy: "u1",
	}))
	mustPut(t, st.PutTask(ctx, model.Task{ID: "t2", ListID: "l2", Title: "Sweep", Status: model.StatusDone, CreatedAt: 20, CompletedAt: &done, CreatedBy: "u1", AssigneeID: strPtr("u1")}))
	mustPut(t, st.PutTask(ctx, model.Task{ID: "t3", ListID: "l3", Title: "Hidden", Status: model.StatusTodo, CreatedAt: 30, CreatedBy: "u9"}))

	got, err := st.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.DueAt == nil || *got.DueAt != due || got.EstimateMinutes == nil || *got.EstimateMinutes != 30 || got.Priority == nil || *got.Priority != 2 {
		t.Fatalf("task=%+v", got)
	}
	if got.CompletedAt != nil || got.AssigneeID != nil {
		t.Fatalf("expected nil completedAt and assignee: %+v", got)
	}

	mine, err := st.ListTasksForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("tasks for user: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "t1" || mine[1].ID != "t2" {
		t.Fatalf("tasks=%+v", mine)
	}

	got.Title = "Oat milk"
	got.Notes = nil
	mustPut(t, st.PutTask(ctx, got))
	ts, err := st.ListTasks(ctx, "l1")
	if err != nil || len(ts) != 1 || ts[0].Title != "Oat milk" || ts[0].Notes != nil {
		t.Fatalf("tasks=%+v err=%v", ts, err)
	}

	if err := st.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteTask(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err=%v", err)
	}
}

func testEventsPage(t *testing.T, st Store) {
	ctx := context.Background()

	// e2 and e3 share a timestamp; insertion order must break the tie.
	ats := []int64{100, 200, 200, 300}
	for i, at := range ats {
		e, err := st.AppendEvent(ctx, model.Event{
			ID:     fmt.Sprintf("e%d", i+1),
			ListID: "l1",
			Type:   model.EventTaskUpdated,
			At:     at,
			Data:   map[string]any{"n": float64(i + 1)},
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if e.Seq <= 0 {
			t.Fatalf("seq=%d", e.Seq)
		}
	}
	if _, err := st.AppendEvent(ctx, model.Event{ID: "other", ListID: "l2", Type: model.EventTaskCreated, At: 999}); err != nil {
		t.Fatalf("append other: %v", err)
	}
	if _, err := st.AppendEvent(ctx, model.Event{ID: "e1", ListID: "l1", Type: model.EventTaskCreated, At: 1}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate id err=%v want=%v", err, ErrConflict)
	}

	items, total, err := st.PageEvents(ctx, "l1", 0, 10)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if total != 4 {
		t.Fatalf("total=%d want=4", total)
	}
	want := []string{"e4", "e2", "e3", "e1"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("items[%d]=%s want=%s", i, items[i].ID, id)
		}
	}
	if items[0].Data["n"] != float64(4) {
		t.Fatalf("data=%v", items[0].Data)
	}

	items, _, err = st.PageEvents(ctx, "l1", 2, 1)
	if err != nil || len(items) != 1 || items[0].ID != "e3" {
		t.Fatalf("offset page=%+v err=%v", items, err)
	}
	items, total, err = st.PageEvents(ctx, "l1", 10, 5)
	if err != nil || len(items) != 0 || total != 4 {
		t.Fatalf("past end=%+v total=%d err=%v", items, total, err)
	}
}

func testTxRollback(t *testing.T, st Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.Tx(ctx, "l1", func(ctx context.Context, q Queries) error {
		if err := q.PutList(ctx, model.List{ID: "l1", Name: "Temp", OwnerID: "u1", CreatedAt: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("tx err=%v want=%v", err, boom)
	}
	if _, err := st.GetList(ctx, "l1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rollback, err=%v", err)
	}

	err = st.Tx(ctx, "l1", func(ctx context.Context, q Queries) error {
		return q.PutList(ctx, model.List{ID: "l1", Name: "Kept", OwnerID: "u1", CreatedAt: 1})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if l, err := st.GetList(ctx, "l1"); err != nil || l.Name != "Kept" {
		t.Fatalf("list=%+v err=%v", l, err)
	}
}

// testTxSerializes runs read-modify-write transactions concurrently on one
// key; lost updates would leave the counter short.
func testTxSerializes(t *testing.T, st Store) {
	ctx := context.Background()
	mustPut(t, st.PutList(ctx, model.List{ID: "l1", Name: "0", OwnerID: "u1", CreatedAt: 1}))

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.Tx(ctx, "l1", func(ctx context.Context, q Queries) error {
				l, err := q.GetList(ctx, "l1")
				if err != nil {
					return err
				}
				var c int
				if _, err := fmt.Sscanf(l.Name, "%d", &c); err != nil {
					return err
				}
				l.Name = fmt.Sprint(c + 1)
				return q.PutList(ctx, l)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("tx: %v", err)
		}
	}
	l, err := st.GetList(ctx, "l1")
	if err != nil || l.Name != fmt.Sprint(n) {
		t.Fatalf("counter=%q err=%v want=%d", l.Name, err, n)
	}
}
