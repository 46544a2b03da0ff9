package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ambrook/skirmishd/internal/api/middleware"
	"github.com/ambrook/skirmishd/internal/api/request"
	"github.com/ambrook/skirmishd/internal/api/response"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/services/queue"
)

// QueueHandler handles matchmaking queue endpoints
type QueueHandler struct {
	queues *queue.Controller
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queues *queue.Controller) *QueueHandler {
	return &QueueHandler{queues: queues}
}

// List handles GET /api/v1/queues
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	configs := h.queues.Queues()
	out := make([]response.Queue, 0, len(configs))
	for _, cfg := range configs {
		depth, err := h.queues.Size(cfg.ID)
		if err != nil {
			WriteError(w, err)
			return
		}
		out = append(out, response.QueueFromConfig(cfg, depth))
	}
	response.JSON(w, http.StatusOK, out)
}

// Join handles POST /api/v1/queues/{queue_id}/join. The requester queues
// solo unless the body names a party; the requester leads the party and
// must be in it.
func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	queueID := model.QueueID(mux.Vars(r)["queue_id"])

	var req request.JoinQueueRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, NewInvalidRequestError("invalid request body"))
			return
		}
	}

	party := model.Party{Members: []model.PlayerID{player.ID}, Leader: player.ID}
	if len(req.PartyMembers) > 0 {
		party.Members = make([]model.PlayerID, len(req.PartyMembers))
		for i, m := range req.PartyMembers {
			party.Members[i] = model.PlayerID(m)
		}
		if !party.Contains(player.ID) {
			WriteError(w, NewInvalidRequestError("party must include the requesting player"))
			return
		}
	}

	entry, err := h.queues.Join(r.Context(), queueID, party)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.QueueEntryFromModel(entry))
}

// Leave handles POST /api/v1/queues/{queue_id}/leave. Removes the
// requester's whole party from the queue.
func (h *QueueHandler) Leave(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	queueID := model.QueueID(mux.Vars(r)["queue_id"])

	if err := h.queues.Leave(r.Context(), queueID, player.ID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// GetEntry handles GET /api/v1/queues/entry. Returns the requester's
// current standing search, if any.
func (h *QueueHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	entry, ok := h.queues.EntryOf(player.ID)
	if !ok {
		WriteError(w, model.ErrNotQueued)
		return
	}

	response.JSON(w, http.StatusOK, response.QueueEntryFromModel(entry))
}
