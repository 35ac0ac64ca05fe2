package activity

import (
	"context"
	"math"

	"tasklist/cmd/internal/authz"
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
)

// Item is an event enriched with its actor's current profile.
// ActorName and ActorEmail are nil when the actor is unknown.
type Item struct {
	model.Event
	ActorName  *string `json:"actorName"`
	ActorEmail *string `json:"actorEmail"`
}

// Page is one window of a list's history, newest first.
type Page struct {
	Items    []Item `json:"items"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// ClampPage normalizes paging input: page >= 1, pageSize in [1, MaxPageSize],
// with 0 or negative pageSize meaning DefaultPageSize. page is capped so that
// page*pageSize fits in an int; such a page is always past the end.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if maxPage := math.MaxInt / pageSize; page > maxPage {
		page = maxPage
	}
	return page, pageSize
}

// Page returns events of listID ordered by time descending, ties in
// insertion order. It performs no authorization; see History.
func (l *Log) Page(ctx context.Context, listID string, page, pageSize int) (Page, error) {
	page, pageSize = ClampPage(page, pageSize)

	events, total, err := l.store.PageEvents(ctx, listID, (page-1)*pageSize, pageSize)
	if err != nil {
		return Page{}, fault.Op("activity.Page", err)
	}

	actorIDs := make([]string, 0, len(events))
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		if e.ActorID != nil && !seen[*e.ActorID] {
			seen[*e.ActorID] = true
			actorIDs = append(actorIDs, *e.ActorID)
		}
	}
	actors, err := l.store.GetUsers(ctx, actorIDs)
	if err != nil {
		return Page{}, fault.Op("activity.Page", err)
	}

	items := make([]Item, 0, len(events))
	for _, e := range events {
		it := Item{Event: e}
		if e.ActorID != nil {
			if u, ok := actors[*e.ActorID]; ok {
				name, email := u.DisplayName(), u.Email
				it.ActorName, it.ActorEmail = &name, &email
			}
		}
		items = append(items, it)
	}
	return Page{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// History is Page gated on actorID being a member of listID.
func (l *Log) History(ctx context.Context, actorID, listID string, page, pageSize int) (Page, error) {
	if _, err := l.authz.Authorize(ctx, l.store, actorID, listID, authz.ActionViewHistory, nil); err != nil {
		return Page{}, fault.Op("activity.History", err)
	}
	return l.Page(ctx, listID, page, pageSize)
}
