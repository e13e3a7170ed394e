package httpx

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends the marketplace error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

// writePaymentRequired sends the quiz-flow envelope for an empty wallet.
func writePaymentRequired(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusPaymentRequired, map[string]string{"status": "payment_required", "message": msg})
}
