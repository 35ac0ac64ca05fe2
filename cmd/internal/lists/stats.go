package lists

import (
	"context"
	"math"

	"tasklist/cmd/internal/authz"
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
)

// MemberStats is one member's share of assigned work.
type MemberStats struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Total   int    `json:"total"`
	Done    int    `json:"done"`
	Percent int    `json:"percent"`
}

// Stats summarizes a list's progress.
type Stats struct {
	Total   int           `json:"total"`
	Done    int           `json:"done"`
	Percent int           `json:"percent"`
	Members []MemberStats `json:"members"`
}

// Stats returns completion counts for the list and for each member's assigned tasks.
func (s *Service) Stats(ctx context.Context, actorID, listID string) (Stats, error) {
	if _, err := s.authz.Authorize(ctx, s.store, actorID, listID, authz.ActionViewStats, nil); err != nil {
		return Stats{}, fault.Op("lists.Stats", err)
	}
	tasks, err := s.store.ListTasks(ctx, listID)
	if err != nil {
		return Stats{}, fault.Op("lists.Stats", err)
	}
	members, err := s.store.ListMemberships(ctx, listID)
	if err != nil {
		return Stats{}, fault.Op("lists.Stats", err)
	}
	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	users, err := s.store.GetUsers(ctx, userIDs)
	if err != nil {
		return Stats{}, fault.Op("lists.Stats", err)
	}
	return computeStats(tasks, members, users), nil
}

func computeStats(tasks []model.Task, members []model.Membership, users map[string]model.User) Stats {
	out := Stats{Members: make([]MemberStats, 0, len(members))}
	type tally struct{ total, done int }
	byAssignee := make(map[string]*tally)
	for _, t := range tasks {
		out.Total++
		done := t.Status == model.StatusDone
		if done {
			out.Done++
		}
		if t.AssigneeID == nil {
			continue
		}
		c := byAssignee[*t.AssigneeID]
		if c == nil {
			c = &tally{}
			byAssignee[*t.AssigneeID] = c
		}
		c.total++
		if done {
			c.done++
		}
	}
	out.Percent = percent(out.Done, out.Total)

	for _, m := range members {
		ms := MemberStats{UserID: m.UserID, Name: m.UserID}
		if u, ok := users[m.UserID]; ok {
			ms.Name = u.DisplayName()
		}
		if c := byAssignee[m.UserID]; c != nil {
			ms.Total, ms.Done = c.total, c.done
		}
		ms.Percent = percent(ms.Done, ms.Total)
		out.Members = append(out.Members, ms)
	}
	return out
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) * 100 / float64(total)))
}
