package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// sceneResponse is the JSON shape of a scene in list responses.
type sceneResponse struct {
	SceneID    string `json:"scene_id"`
	Name       string `json:"name"`
	LocationID string `json:"location_id,omitempty"`
}

// handleListScenes returns every scene of the installation's location.
func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	b := s.getBroker()
	if b == nil {
		writeNotReady(w, "installation setup has not completed")
		return
	}

	scenes := b.Scenes()
	resp := make([]sceneResponse, 0, len(scenes))
	for _, scene := range scenes {
		resp = append(resp, sceneResponse{
			SceneID:    scene.SceneID,
			Name:       scene.SceneName,
			LocationID: scene.LocationID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scenes": resp,
		"count":  len(resp),
	})
}

// handleExecuteScene runs a scene by ID.
func (s *Server) handleExecuteScene(w http.ResponseWriter, r *http.Request) {
	b := s.getBroker()
	if b == nil {
		writeNotReady(w, "installation setup has not completed")
		return
	}

	sceneID := chi.URLParam(r, "id")
	if err := b.ExecuteScene(r.Context(), sceneID); err != nil {
		writeBrokerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scene_id": sceneID,
		"executed": true,
	})
}
