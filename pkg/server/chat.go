package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bestbox-ai/orchestrator/pkg/auth"
	"github.com/bestbox-ai/orchestrator/pkg/graph"
	"github.com/google/uuid"
)

// chatMessage is the wire shape of one entry in a chat/completions request,
// deliberately narrower than model.Message (no Seq/reasoning trace) since
// only Role/Content carry information a caller can supply.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionsRequest is the OpenAI-compatible request body spec.md §6
// names: "messages, optional thread_id, optional stream".
type chatCompletionsRequest struct {
	Messages []chatMessage `json:"messages"`
	ThreadID string        `json:"thread_id,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

// chatDelta is one SSE frame's JSON payload (spec.md §6: "deltas
// {text?, reasoning_step?, done?}").
type chatDelta struct {
	Text          string `json:"text,omitempty"`
	ReasoningStep string `json:"reasoning_step,omitempty"`
	Done          bool   `json:"done,omitempty"`
	ThreadID      string `json:"thread_id,omitempty"`
	TurnID        string `json:"turn_id,omitempty"`
}

func lastUserQuery(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// handleChatCompletions opens a turn and streams its events as SSE deltas.
// A write-class tool pending approval suspends the stream with a final
// {done:true} delta and leaves the turn in model.ThreadInterrupted —
// spec.md's worked example 4 ("API returns 202 with thread_id") — the
// equivalent signal for a streaming response, since an SSE response has
// already committed to a 200 status line by the time a delta can be sent.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	query := lastUserQuery(req.Messages)
	if query == "" {
		writeBadRequest(w, "messages must include at least one user message")
		return
	}

	uc := auth.UserContextFromRequest(r)

	if req.ThreadID == "" {
		req.ThreadID = uuid.New().String()
	}
	turnID, events, err := s.sessions.StartTurn(r.Context(), uc, req.ThreadID, query)
	if err != nil {
		writeAppError(w, err)
		return
	}
	threadID := req.ThreadID

	if !req.Stream {
		s.writeBufferedCompletion(w, threadID, turnID, events)
		return
	}
	s.streamCompletion(w, r, threadID, turnID, events)
}

func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, threadID, turnID string, events <-chan graph.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAppError(w, fmt.Errorf("server: response writer does not support streaming"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	write := func(d chatDelta) {
		d.ThreadID = threadID
		d.TurnID = turnID
		_, _ = w.Write([]byte("data: "))
		_ = enc.Encode(d)
		_, _ = w.Write([]byte("\n"))
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case graph.EventThink:
				write(chatDelta{ReasoningStep: ev.Text})
			case graph.EventAnswer:
				write(chatDelta{Text: ev.Text})
			case graph.EventAct, graph.EventObserve:
				// Tool activity surfaces only as reasoning-step text; act/observe
				// payloads (args, results) are audited, not streamed to the caller.
				write(chatDelta{ReasoningStep: string(ev.Kind) + ": " + ev.ToolName})
			case graph.EventAwaitingApproval, graph.EventDone:
				write(chatDelta{Done: true})
			case graph.EventError:
				write(chatDelta{Done: true})
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeBufferedCompletion(w http.ResponseWriter, threadID, turnID string, events <-chan graph.Event) {
	var answer string
	var pending bool
	var turnErr error
	for ev := range events {
		switch ev.Kind {
		case graph.EventAnswer:
			answer += ev.Text
		case graph.EventAwaitingApproval:
			pending = true
		case graph.EventError:
			turnErr = ev.Err
		}
	}
	if turnErr != nil {
		writeAppError(w, turnErr)
		return
	}
	if pending {
		writeJSON(w, http.StatusAccepted, map[string]any{"thread_id": threadID, "turn_id": turnID, "status": "awaiting_approval"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "turn_id": turnID, "message": chatMessage{Role: "assistant", Content: answer}})
}
