package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openclaw/agentops/internal/store"
)

// BatchItem is the outcome of one event in a batch.
type BatchItem struct {
	Index     int          `json:"index"`
	EventType string       `json:"event_type"`
	Success   bool         `json:"success"`
	ID        string       `json:"id,omitempty"`
	Error     string       `json:"error,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
}

// BatchResult summarizes a batch.
type BatchResult struct {
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Results   []BatchItem `json:"results"`
}

type batchBody struct {
	Events json.RawMessage `json:"events"`
}

type batchHeader struct {
	Event string `json:"event"`
}

// Batch runs every event in raw's "events" array through Handle, in order.
// A failed event is recorded in its BatchItem and never stops the rest. The
// returned error is non-nil only when the body itself is unusable.
func (s *Service) Batch(ctx context.Context, raw []byte) (*BatchResult, error) {
	var body batchBody
	if err := DecodeJSON(raw, &body); err != nil {
		return nil, err
	}
	list := bytes.TrimSpace(body.Events)
	var events []json.RawMessage
	if len(list) == 0 || list[0] != '[' || json.Unmarshal(list, &events) != nil {
		return nil, Invalid("events", "must be an array")
	}
	if len(events) > s.maxBatch {
		return nil, Invalid("events", fmt.Sprintf("must contain at most %d events", s.maxBatch))
	}

	res := &BatchResult{Results: make([]BatchItem, 0, len(events))}
	for i, ev := range events {
		item := s.batchItem(ctx, i, ev)
		res.Processed++
		if item.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
		res.Results = append(res.Results, item)
	}
	return res, nil
}

func (s *Service) batchItem(ctx context.Context, index int, raw json.RawMessage) BatchItem {
	item := BatchItem{Index: index}

	var hdr batchHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		item.Error = "Validation failed"
		item.Errors = []FieldError{{Field: "event", Message: "must be a JSON object"}}
		return item
	}
	item.EventType = hdr.Event
	if !knownKind(hdr.Event) {
		item.Error = "Unknown event type: " + hdr.Event
		item.Errors = []FieldError{{Field: "event", Message: "must be one of: " + strings.Join(Kinds, ", ")}}
		return item
	}

	r, err := s.Handle(ctx, hdr.Event, raw)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			item.Error = "Validation failed"
			item.Errors = ve.Errors
			return item
		}
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrConflict) {
			logFailure(hdr.Event, err)
		}
		item.Error = store.PublicMessage(err)
		return item
	}
	item.Success = true
	item.ID = r.ID
	return item
}

func knownKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
