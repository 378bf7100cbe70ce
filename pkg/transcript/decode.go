package transcript

import (
	"encoding/json"

	"github.com/labstack/gommon/log"
)

type wireMessage struct {
	Object     string `json:"object"`
	Text       string `json:"text"`
	StartMs    int64  `json:"start_ms"`
	TurnID     int    `json:"turn_id"`
	UserID     string `json:"user_id"`
	Final      bool   `json:"final"`
	TurnStatus int    `json:"turn_status"`
}

// Decode parses an inbound side-channel payload into a Record. The second
// return value is false for anything that is not a transcript update:
// malformed JSON, messages missing a sender, or unrelated message objects
// (the feed also carries metrics and error reports). Decode never panics;
// binary payloads are treated as UTF-8 text.
func Decode(payload []byte) (Record, bool) {
	var msg wireMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Debugf("ignoring undecodable side-channel payload | error: %v, bytes: %d", err, len(payload))
		return Record{}, false
	}

	if msg.Object != objectUserTranscription && msg.Object != objectAgentTranscription {
		return Record{}, false
	}
	if msg.UserID == "" {
		log.Debugf("ignoring transcription without sender | object: %s", msg.Object)
		return Record{}, false
	}

	rec := Record{
		UID:     msg.UserID,
		TurnID:  msg.TurnID,
		Text:    msg.Text,
		StartMs: msg.StartMs,
	}

	switch msg.Object {
	case objectUserTranscription:
		rec.Kind = KindUser
		if msg.Final {
			rec.Status = TurnEnd
		} else {
			rec.Status = TurnInProgress
		}
	case objectAgentTranscription:
		rec.Kind = KindAgent
		switch msg.TurnStatus {
		case wireStatusEnd:
			rec.Status = TurnEnd
		case wireStatusInterrupted:
			rec.Status = TurnInterrupted
		case wireStatusInProgress:
			rec.Status = TurnInProgress
		default:
			log.Debugf("ignoring transcription with unknown status | status: %d, uid: %s", msg.TurnStatus, msg.UserID)
			return Record{}, false
		}
	}

	return rec, true
}
