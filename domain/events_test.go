package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestScopeOf(t *testing.T) {
	scope, err := ScopeOf(json.RawMessage(`{"boardId":"b1","cardId":"c1","title":"x"}`))
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if scope.BoardID != "b1" || scope.CardID != "c1" {
		t.Fatalf("unexpected scope: %+v", scope)
	}

	if _, err := ScopeOf(json.RawMessage(`{"title":"x"}`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing boardId, got %v", err)
	}
	if _, err := ScopeOf(nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty payload, got %v", err)
	}
	if _, err := ScopeOf(json.RawMessage(`{broken`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for malformed payload, got %v", err)
	}
}

func TestEnrichPayloadMergesPublisherIdentity(t *testing.T) {
	out, err := EnrichPayload(json.RawMessage(`{"boardId":"b1","title":"Fix bug"}`), "u1", "Ada")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("unmarshal enriched payload: %v", err)
	}
	if fields["userId"] != "u1" || fields["userName"] != "Ada" {
		t.Fatalf("identity not merged: %v", fields)
	}
	if fields["boardId"] != "b1" || fields["title"] != "Fix bug" {
		t.Fatalf("original fields lost: %v", fields)
	}
}

func TestEnrichPayloadOverwritesSpoofedIdentity(t *testing.T) {
	out, err := EnrichPayload(json.RawMessage(`{"boardId":"b1","userId":"intruder"}`), "u1", "Ada")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fields["userId"] != "u1" {
		t.Fatalf("expected server identity to win, got %v", fields["userId"])
	}
}

func TestRelayable(t *testing.T) {
	for _, evt := range []EventType{
		EventCardCreated, EventCardUpdated, EventCardDeleted, EventCardMoved,
		EventListCreated, EventListUpdated, EventListDeleted,
		EventCommentAdded, EventMemberAssigned,
	} {
		if !evt.Relayable() {
			t.Fatalf("%s should be relayable", evt)
		}
	}
	for _, evt := range []EventType{EventJoinBoard, EventLeaveBoard, EventTypingStart, EventUserJoined, EventType("drop-table")} {
		if evt.Relayable() {
			t.Fatalf("%s should not be relayable", evt)
		}
	}
}
