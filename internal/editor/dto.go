package editor

import (
	"time"

	"vitaeforge/internal/autosave"
	"vitaeforge/internal/cvs"
)

type statusResponse struct {
	State       string     `json:"state"`
	Pending     bool       `json:"pending"`
	LastError   string     `json:"lastError,omitempty"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
}

type editorResponse struct {
	CVID    string           `json:"cvId"`
	Title   string           `json:"title"`
	Content cvs.Content      `json:"content"`
	Errors  []cvs.FieldError `json:"errors"`
	Status  statusResponse   `json:"status"`
}

type entryResponse struct {
	EntryID string `json:"entryId"`
	editorResponse
}

type refineResponse struct {
	Field string `json:"field"`
	Text  string `json:"text"`
	editorResponse
}

type fieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

type moveRequest struct {
	Index *int `json:"index"`
}

type refineRequest struct {
	Field string `json:"field"`
}

func toStatus(st autosave.Status) statusResponse {
	resp := statusResponse{State: st.State.String(), Pending: st.Pending}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	if !st.LastSavedAt.IsZero() {
		t := st.LastSavedAt.UTC()
		resp.LastSavedAt = &t
	}
	return resp
}

func toResponse(s *Session) editorResponse {
	v := s.View()
	return editorResponse{
		CVID:    s.CVID,
		Title:   v.Title,
		Content: v.Content,
		Errors:  v.Errors,
		Status:  toStatus(s.Status()),
	}
}
