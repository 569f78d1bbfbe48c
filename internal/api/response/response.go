// Package response writes the flat JSON bodies every endpoint returns:
// {"success": true, ...} on success and
// {"success": false, "error": msg, "code": CODE, ...} on failure.
package response

import (
	"encoding/json"
	"net/http"
)

// OK writes a 200 with fields plus "success": true.
func OK(w http.ResponseWriter, fields map[string]any) {
	writeJSON(w, http.StatusOK, merge(fields, map[string]any{"success": true}))
}

// Error writes status with a failure body. extra is merged in but cannot
// override success, error or code.
func Error(w http.ResponseWriter, status int, code, message string, extra map[string]any) {
	writeJSON(w, status, merge(extra, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	}))
}

func merge(base, fixed map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(fixed))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range fixed {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
