package model

// List is a shared task list.
type List struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Color     *string `json:"color"`
	OwnerID   string  `json:"ownerId"`
	CreatedAt int64   `json:"createdAt"`
}
