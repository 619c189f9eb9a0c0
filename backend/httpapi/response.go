package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
)

// Result is the response envelope consumed by the web frontend.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func OK[T any](w http.ResponseWriter, data T) {
	WriteJSON(w, http.StatusOK, Result[T]{
		Success: true,
		Data:    data,
	})
}

func Fail(w http.ResponseWriter, status int, message string) {
	if status <= 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, Result[any]{
		Success: false,
		Error:   message,
	})
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[httpapi] writeJSON encode error: %v", err)
	}
}
