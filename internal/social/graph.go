package social

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// GraphProfile is the Graph API "me" response. Pointer fields are nil when
// Facebook left them out.
type GraphProfile struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	FirstName *string       `json:"first_name"`
	LastName  *string       `json:"last_name"`
	Picture   *GraphPicture `json:"picture"`
}

// GraphPicture wraps the profile picture payload.
type GraphPicture struct {
	Data *GraphPictureData `json:"data"`
}

// GraphPictureData describes the profile picture.
type GraphPictureData struct {
	URL          *string `json:"url"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	IsSilhouette bool    `json:"is_silhouette"`
}

// PhotoURL returns picture.data.url when every level of it is present.
func (p *GraphProfile) PhotoURL() (string, bool) {
	if p.Picture == nil || p.Picture.Data == nil || p.Picture.Data.URL == nil {
		return "", false
	}
	return *p.Picture.Data.URL, true
}

// DecodeGraphProfile decodes a raw Graph "me" response.
func DecodeGraphProfile(raw json.RawMessage) (*GraphProfile, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, ErrEmptyGraphResponse
	}
	var p GraphProfile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode graph profile: %w", err)
	}
	return &p, nil
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
