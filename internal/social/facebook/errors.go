package facebook

import (
	"encoding/json"
	"fmt"
)

// GraphError is the error envelope returned by the Graph API.
type GraphError struct {
	Status    int    `json:"-"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *GraphError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("graph error %d (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("graph %s %d (status %d): %s", e.Type, e.Code, e.Status, e.Message)
}

func decodeGraphError(status int, body []byte) error {
	var envelope struct {
		Error *GraphError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return &GraphError{Status: status, Message: string(body)}
	}
	envelope.Error.Status = status
	return envelope.Error
}
