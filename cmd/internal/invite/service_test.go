package invite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tasklist/cmd/internal/activity"
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
	"tasklist/cmd/internal/store"
	"tasklist/cmd/security/token"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *activity.Log) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.PutList(ctx, model.List{ID: "l1", Name: "Trip", OwnerID: "o"}); err != nil {
		t.Fatalf("put list: %v", err)
	}
	for userID, role := range map[string]model.Role{"o": model.RoleOwner, "a": model.RoleAdmin, "m": model.RoleMember} {
		if err := st.PutMembership(ctx, model.Membership{ID: "m-" + userID, ListID: "l1", UserID: userID, Role: role}); err != nil {
			t.Fatalf("put membership: %v", err)
		}
	}
	events := activity.New(st)
	svc, err := NewService(st, events, WithClock(func() time.Time { return time.UnixMilli(7) }))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, st, events
}

func TestNewService_RejectsShortTokens(t *testing.T) {
	t.Parallel()

	if _, err := NewService(store.NewMemoryStore(), nil, WithTokenBytes(8)); !errors.Is(err, token.ErrTooShort) {
		t.Fatalf("err=%v want=%v", err, token.ErrTooShort)
	}
}

func TestCreateInvite_ReusesPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, events := newTestService(t)

	first, err := svc.CreateInvite(ctx, "o", "l1", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Status != model.InvitePending || first.ListID != "l1" || first.InvitedBy != "o" {
		t.Fatalf("invite=%+v", first)
	}
	if _, err := token.Normalize(first.Token); err != nil {
		t.Fatalf("token %q: %v", first.Token, err)
	}

	second, err := svc.CreateInvite(ctx, "a", "l1", nil)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if second.ID != first.ID || second.Token != first.Token {
		t.Fatalf("second=%+v want=%+v", second, first)
	}

	page, _ := events.Page(ctx, "l1", 1, 10)
	if page.Total != 1 || page.Items[0].Type != model.EventInviteCreated || page.Items[0].Data["inviteId"] != first.ID {
		t.Fatalf("page=%+v", page)
	}
}

func TestCreateInvite_Permissions(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	for _, actor := range []string{"m", "stranger"} {
		if _, err := svc.CreateInvite(context.Background(), actor, "l1", nil); !errors.Is(err, fault.ErrForbidden) {
			t.Fatalf("%s err=%v want=%v", actor, err, fault.ErrForbidden)
		}
	}
	hint := "not an email"
	if _, err := svc.CreateInvite(context.Background(), "o", "l1", &hint); !errors.Is(err, fault.ErrInvalidInput) {
		t.Fatalf("hint err=%v want=%v", err, fault.ErrInvalidInput)
	}
}

func TestAcceptInvite_OnceOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st, events := newTestService(t)
	inv, err := svc.CreateInvite(ctx, "o", "l1", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	m, err := svc.AcceptInvite(ctx, "newbie", inv.Token)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.ListID != "l1" || m.Role != model.RoleMember {
		t.Fatalf("membership=%+v", m)
	}
	u, err := st.GetUser(ctx, "newbie")
	if err != nil || u.Email != "newbie@example.com" || u.Name != "newbie" {
		t.Fatalf("user=%+v err=%v", u, err)
	}
	got, _ := st.GetInvite(ctx, inv.ID)
	if got.Status != model.InviteAccepted {
		t.Fatalf("status=%q want=accepted", got.Status)
	}

	if _, err := svc.AcceptInvite(ctx, "other", inv.Token); !errors.Is(err, fault.ErrInvalidInvite) {
		t.Fatalf("second accept err=%v want=%v", err, fault.ErrInvalidInvite)
	}
	if _, err := st.GetMembership(ctx, "l1", "other"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("other membership err=%v want=%v", err, store.ErrNotFound)
	}

	page, _ := events.Page(ctx, "l1", 1, 10)
	if page.Total != 2 || page.Items[0].Type != model.EventInviteAccepted {
		t.Fatalf("page=%+v", page)
	}

	// a fresh invite is minted once the previous one is consumed
	next, err := svc.CreateInvite(ctx, "o", "l1", nil)
	if err != nil || next.ID == inv.ID {
		t.Fatalf("next=%+v err=%v", next, err)
	}
}

func TestAcceptInvite_ExistingMemberKeepsRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)
	inv, _ := svc.CreateInvite(ctx, "o", "l1", nil)

	m, err := svc.AcceptInvite(ctx, "a", inv.Token)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.Role != model.RoleAdmin {
		t.Fatalf("role=%q want=admin", m.Role)
	}
}

func TestAcceptInvite_BadTokens(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	unknown, _ := token.New(0)
	for _, tok := range []string{"", "   ", "!!!", "c2hvcnQ", unknown} {
		if _, err := svc.AcceptInvite(context.Background(), "u", tok); !errors.Is(err, fault.ErrInvalidInvite) {
			t.Fatalf("token %q err=%v want=%v", tok, err, fault.ErrInvalidInvite)
		}
	}
}

func TestAcceptInvite_ConcurrentAcceptsAdmitOne(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)
	inv, _ := svc.CreateInvite(ctx, "o", "l1", nil)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if _, err := svc.AcceptInvite(ctx, u, inv.Token); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()
	if ok != 1 {
		t.Fatalf("accepted=%d want=1", ok)
	}
}

func TestRevokeInvite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)
	inv, _ := svc.CreateInvite(ctx, "o", "l1", nil)

	if _, err := svc.RevokeInvite(ctx, "m", "l1", inv.ID); !errors.Is(err, fault.ErrForbidden) {
		t.Fatalf("member err=%v want=%v", err, fault.ErrForbidden)
	}
	if _, err := svc.RevokeInvite(ctx, "a", "l1", "missing"); !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("missing err=%v want=%v", err, fault.ErrNotFound)
	}
	got, err := svc.RevokeInvite(ctx, "a", "l1", inv.ID)
	if err != nil || got.Status != model.InviteRevoked {
		t.Fatalf("revoke=%+v err=%v", got, err)
	}
	if _, err := svc.RevokeInvite(ctx, "a", "l1", inv.ID); !errors.Is(err, fault.ErrInvalidInvite) {
		t.Fatalf("re-revoke err=%v want=%v", err, fault.ErrInvalidInvite)
	}
	if _, err := svc.AcceptInvite(ctx, "u", inv.Token); !errors.Is(err, fault.ErrInvalidInvite) {
		t.Fatalf("accept revoked err=%v want=%v", err, fault.ErrInvalidInvite)
	}
}
