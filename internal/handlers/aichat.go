package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/simpl-chat/internal/services"
)

const functionErrorText = "An error occurred"

// HandleAIChat serves the chat function over HTTP. It reads the user input from the "input" query
// parameter and the conversation transcript from the optional "history" parameter, and answers with
// {"output": …}. When no reply could be obtained it answers 500 with {"error": "An error occurred"};
// the cause is only logged.
func (m Main) HandleAIChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		writeJSON(w, http.StatusMethodNotAllowed, services.FunctionResponse{Error: "Method not allowed"})
		return
	}

	q := r.URL.Query()
	input := q.Get("input")
	if strings.TrimSpace(input) == "" {
		writeJSON(w, http.StatusBadRequest, services.FunctionResponse{Error: "input is required"})
		return
	}

	output, err := m.function.Reply(r.Context(), input, q.Get("history"))
	if err != nil {
		m.logger.Error("Chat function failed", slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusInternalServerError, services.FunctionResponse{Error: functionErrorText})
		return
	}

	writeJSON(w, http.StatusOK, services.FunctionResponse{Output: output})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
