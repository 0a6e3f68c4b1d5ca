package dto

// JobdeskRequest payload for catalog create and update.
type JobdeskRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}
