// Package handlers contains the full set of handler functions and routes
// supported by the agent's web api.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ardanlabs/timelock/foundation/events"
	"github.com/ardanlabs/timelock/foundation/timelock/keys"
	"github.com/ardanlabs/timelock/foundation/timelock/state"
	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Mux constructs an http.Handler with all application routes defined.
func Mux(log *zap.SugaredLogger, st *state.State, evts *events.Events) http.Handler {
	h := handlers{
		log:  log,
		st:   st,
		evts: evts,
	}

	mux := httptreemux.NewContextMux()
	mux.GET("/v1/status", h.status)
	mux.GET("/v1/chains", h.chains)
	mux.GET("/v1/events", h.events)

	return mux
}

// =============================================================================

type handlers struct {
	log  *zap.SugaredLogger
	st   *state.State
	evts *events.Events
}

// status returns the aggregate view of the timelock being worked on.
func (h handlers) status(w http.ResponseWriter, r *http.Request) {
	entry := h.st.Chains()[state.EntryChain]

	resp := struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		NChains     int    `json:"n_chains"`
		ChainLength uint64 `json:"chain_length"`
		EntryStep   uint64 `json:"entry_step"`
	}{
		ID:          h.st.ID(),
		Status:      string(h.st.Status()),
		NChains:     len(h.st.Chains()),
		ChainLength: h.st.ChainLength(),
	}

	if step, _, ok := entry.Progress(); ok {
		resp.EntryStep = step
	}

	respond(h.log, w, resp)
}

// chains returns the per chain lifecycle view, including the bounty address
// for every chain with a confirmed terminal.
func (h handlers) chains(w http.ResponseWriter, r *http.Request) {
	type chainResp struct {
		Index    int    `json:"index"`
		Status   string `json:"status"`
		Progress uint64 `json:"progress"`
		Address  string `json:"address,omitempty"`
	}

	var resp []chainResp
	for _, c := range h.st.Chains() {
		cr := chainResp{
			Index:  c.Index(),
			Status: string(c.Status()),
		}

		if step, _, ok := c.Progress(); ok {
			cr.Progress = step
		}

		if terminal, ok := c.Terminal(); ok {
			if key, err := keys.Derive(terminal); err == nil {
				cr.Address = key.Address
			}
		}

		resp = append(resp, cr)
	}

	respond(h.log, w, resp)
}

// events upgrades the connection to a websocket and streams progress events
// until the client goes away.
func (h handlers) events(w http.ResponseWriter, r *http.Request) {
	var upgrader websocket.Upgrader

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("events", "ERROR", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	ch := h.evts.Acquire(id)
	defer h.evts.Release(id)

	h.log.Infow("events", "status", "client connected", "id", id)
	defer h.log.Infow("events", "status", "client disconnected", "id", id)

	for msg := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
}

// respond marshals a value to the client as JSON.
func respond(log *zap.SugaredLogger, w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorw("respond", "ERROR", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		log.Errorw("respond", "ERROR", err)
	}
}
