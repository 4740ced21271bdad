package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/freyabot/freya/internal/bot"
	"github.com/freyabot/freya/internal/line"
)

// handleCallback receives the platform webhook. The signature is checked
// before the body is parsed; a body that fails signature verification is
// rejected with 400 and never processed.
//
// Per-event failures are logged but never surface as a non-200 status:
// the platform redelivers on error responses, and redelivery of a batch
// that half-succeeded would duplicate the successful half.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, "read_failed", "failed to read request body")
		return
	}

	signature := r.Header.Get("X-Line-Signature")
	if !line.ValidateSignature(s.channelSecret, body, signature) {
		s.logger.Warn("webhook signature verification failed")
		writeError(s.logger, w, http.StatusBadRequest, "invalid_signature", "signature verification failed")
		return
	}

	var webhook line.Webhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		s.logger.Error("failed to parse webhook body", "error", err)
		writeError(s.logger, w, http.StatusInternalServerError, "parse_failed", "malformed webhook body")
		return
	}

	for _, ev := range webhook.Events {
		if ev.Type != "message" || ev.Message.Type != "text" {
			continue
		}
		if ev.Source.UserID == "" {
			s.logger.Debug("skipping event without user id", "event_type", ev.Type)
			continue
		}

		inbound := bot.InboundEvent{
			EventID:    ev.EventID(),
			SenderID:   ev.Source.UserID,
			Text:       ev.Message.Text,
			ReplyToken: ev.ReplyToken,
			ReceivedAt: time.UnixMilli(ev.Timestamp),
		}

		outcome, err := s.events.HandleEvent(r.Context(), inbound)
		if err != nil {
			s.logger.Error("event handling failed",
				"event_id", inbound.EventID,
				"user_id", inbound.SenderID,
				"error", err)
			continue
		}
		s.logger.Debug("event handled",
			"event_id", inbound.EventID,
			"outcome", outcome)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}
