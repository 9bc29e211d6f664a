package errors

import (
	"encoding/json"
	"fmt"
)

// jsonError is the JSON representation of an error, suitable for RPC
// responses and structured logging.
type jsonError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Category  string            `json:"category"`
	Severity  string            `json:"severity"`
	Details   map[string]string `json:"details,omitempty"`
	Cause     string            `json:"cause,omitempty"`
	Retryable bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	se, ok := err.(*StractError)
	if !ok {
		se = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:      se.Code,
		Message:   se.Message,
		Category:  string(se.Category),
		Severity:  string(se.Severity),
		Details:   se.Details,
		Retryable: se.Retryable,
	}

	if se.Cause != nil {
		je.Cause = se.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error as a map of key-value pairs suitable for
// structured log attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	se, ok := err.(*StractError)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": se.Code,
		"message":    se.Message,
		"category":   string(se.Category),
		"severity":   string(se.Severity),
		"retryable":  se.Retryable,
	}

	if se.Cause != nil {
		result["cause"] = se.Cause.Error()
	}

	for k, v := range se.Details {
		result["detail_"+k] = v
	}

	return result
}

// FormatForCLI formats an error for the `searcher` CLI's stderr output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	se, ok := err.(*StractError)
	if !ok {
		return fmt.Sprintf("error: %s", err.Error())
	}
	return fmt.Sprintf("error: %s [%s]", se.Message, se.Code)
}
