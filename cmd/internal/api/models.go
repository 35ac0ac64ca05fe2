package api

import "tasklist/cmd/internal/model"

type okResponse struct {
	OK bool `json:"ok"`
}

type profileRequest struct {
	Name   model.Field[string] `json:"name"`
	Avatar model.Field[string] `json:"avatar"`
}

type createListRequest struct {
	Name  string  `json:"name"`
	Color *string `json:"color"`
}

type updateListRequest struct {
	Name  model.Field[string] `json:"name"`
	Color model.Field[string] `json:"color"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type createInviteRequest struct {
	Email *string `json:"email"`
}

type inviteResponse struct {
	model.Invite
	JoinURL string `json:"joinUrl"`
}

type joinResponse struct {
	OK     bool   `json:"ok"`
	ListID string `json:"listId"`
	Role   string `json:"role"`
}

type createTaskRequest struct {
	Title       string           `json:"title"`
	Notes       *string          `json:"notes"`
	DueAt       model.Field[any] `json:"dueAt"`
	EstimateMin *int             `json:"estimateMin"`
	Priority    *int             `json:"priority"`
	AssigneeID  *string          `json:"assigneeId"`
}
