package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/duckgate/duckgate/internal/codec"
	"github.com/duckgate/duckgate/internal/config"
	"github.com/duckgate/duckgate/internal/types"
)

// supportedModels is the catalog the upstream currently serves. The gateway
// forwards whatever model the caller names; the list is advisory.
var supportedModels = []string{
	"gpt-4o-mini",
	"o3-mini",
	"claude-3-haiku-20240307",
	"meta-llama/Llama-3.3-70B-Instruct-Turbo",
	"mistralai/Mixtral-8x7B-Instruct-v0.1",
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		codec.WriteOpenAIError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var req types.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		codec.WriteOpenAIError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Model == "" {
		codec.WriteOpenAIError(w, http.StatusBadRequest, "Missing required field: model")
		return
	}
	if len(req.Messages) == 0 {
		codec.WriteOpenAIError(w, http.StatusBadRequest, "Missing required field: messages")
		return
	}

	clientToken := strings.TrimSpace(r.Header.Get(config.TokenHeader))
	s.Pipeline.Execute(r.Context(), w, &req, clientToken)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	list := types.ModelList{Object: "list", Data: make([]types.ModelObject, 0, len(supportedModels))}
	for _, id := range supportedModels {
		list.Data = append(list.Data, types.ModelObject{
			ID:      id,
			Object:  "model",
			OwnedBy: "duckgate",
		})
	}
	codec.WriteJSON(w, http.StatusOK, list)
}
