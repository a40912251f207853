package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"flashbot-backend/internal/model"
	"flashbot-backend/internal/service"
	"flashbot-backend/pkg/apierror"
	"flashbot-backend/pkg/response"
)

// maxMessageLen bounds chat input so a pasted document does not become a
// search query.
const maxMessageLen = 2000

// ChatHandler handles the retrieval-grounded chat endpoint.
type ChatHandler struct {
	answerer *service.Answerer
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(answerer *service.Answerer) *ChatHandler {
	return &ChatHandler{answerer: answerer}
}

// ChatRequest is the chat endpoint request body.
type ChatRequest struct {
	Message string `json:"message"`
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	if len(req.Message) > maxMessageLen {
		response.Error(w, apierror.BadRequest("message too long"))
		return
	}

	answer, err := h.answerer.Answer(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			response.Error(w, apierror.ServiceUnavailable("catalog is not ready yet"))
			return
		}
		log.Printf("[ChatHandler] Answer failed: %v", err)
		response.Error(w, apierror.InternalError(""))
		return
	}

	response.OK(w, answer)
}
