package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrMemberIDRequired is returned when member_id is missing
	ErrMemberIDRequired = errors.New("member_id is required")

	// ErrIdeaTextRequired is returned when an idea is submitted without text
	ErrIdeaTextRequired = errors.New("text is required")

	// ErrIdeaIDRequired is returned when ideaId is missing
	ErrIdeaIDRequired = errors.New("ideaId is required")

	// ErrNameRequired is returned when an account update carries no name
	ErrNameRequired = errors.New("name is required")
)

// maxFormBytes bounds urlencoded bodies read outside http.Request.ParseForm.
const maxFormBytes = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON encodes body with status. json.RawMessage bodies are written verbatim.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if raw, ok := body.(json.RawMessage); ok {
		_, _ = w.Write(raw)
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes {"message": msg} with status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// parseForm populates r.Form. net/http only reads bodies of POST, PUT and
// PATCH requests, so urlencoded DELETE bodies are decoded here.
func parseForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	if r.Method != http.MethodDelete || r.Body == nil {
		return nil
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/x-www-form-urlencoded" {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	if err != nil {
		return err
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return err
	}
	for k, vs := range values {
		r.Form[k] = append(r.Form[k], vs...)
	}
	return nil
}

// formBool treats a present checkbox value as true.
func formBool(form url.Values, key string) bool {
	v := strings.TrimSpace(form.Get(key))
	return v != "" && !strings.EqualFold(v, "false") && v != "0"
}
