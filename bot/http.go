package bot

import (
	"encoding/json"
	"net/http"

	"bookclubbot/gateway"
)

// ServeEvents receives inbound text messages from the platform.
func (b *Bot) ServeEvents(w http.ResponseWriter, r *http.Request) {
	var ev gateway.InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}
	b.HandleEvent(r.Context(), ev)
	w.WriteHeader(http.StatusOK)
}

// ServeInteractions receives vote selections from the platform.
func (b *Bot) ServeInteractions(w http.ResponseWriter, r *http.Request) {
	var in gateway.Interaction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid interaction payload", http.StatusBadRequest)
		return
	}
	b.HandleInteraction(r.Context(), in)
	w.WriteHeader(http.StatusOK)
}
