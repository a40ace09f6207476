package cvs

import "time"

type cvResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type cvListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type summaryResponse struct {
	Count      int         `json:"count"`
	LastEdited *cvListItem `json:"lastEdited,omitempty"`
}

// writeRequest is the body of create and patch.
type writeRequest struct {
	Title   *string  `json:"title"`
	Content *Content `json:"content"`
}

func toResponse(cv CV) cvResponse {
	return cvResponse{
		ID:        cv.ID,
		Title:     cv.Title,
		Content:   cv.Content,
		CreatedAt: cv.CreatedAt,
		UpdatedAt: cv.UpdatedAt,
	}
}

func toListItem(cv CV) cvListItem {
	return cvListItem{ID: cv.ID, Title: cv.Title, CreatedAt: cv.CreatedAt, UpdatedAt: cv.UpdatedAt}
}
