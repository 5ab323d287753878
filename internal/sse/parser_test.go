package sse

import (
	"strings"
	"testing"
)

func TestParser_FeedAnthropicFormat(t *testing.T) {
	p := NewParser()
	stream := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\"}\n\n" +
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"

	events := p.Feed([]byte(stream))
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Event != "message_start" {
		t.Errorf("events[0].Event = %q, want message_start", events[0].Event)
	}
	if events[2].Event != "message_stop" {
		t.Errorf("events[2].Event = %q, want message_stop", events[2].Event)
	}
}

func TestParser_FeedOpenAIFormat(t *testing.T) {
	p := NewParser()
	stream := "data: {\"id\":\"chatcmpl-1\"}\n\ndata: [DONE]\n\n"

	events := p.Feed([]byte(stream))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != "" {
		t.Errorf("OpenAI events should have empty Event, got %q", events[0].Event)
	}
	if events[1].Data != "[DONE]" {
		t.Errorf("events[1].Data = %q, want [DONE]", events[1].Data)
	}
}

func TestParser_FeedAcrossChunkBoundary(t *testing.T) {
	p := NewParser()
	full := "event: message_start\ndata: {\"a\":1}\n\n"

	var got []Event
	for _, b := range []byte(full) {
		got = append(got, p.Feed([]byte{b})...)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event fed byte-by-byte, got %d", len(got))
	}
	if got[0].Event != "message_start" {
		t.Errorf("Event = %q, want message_start", got[0].Event)
	}
}

func TestParser_FlushResidualBlock(t *testing.T) {
	p := NewParser()
	// No trailing blank line — this block never completes via Feed.
	events := p.Feed([]byte("event: ping\ndata: {}"))
	if len(events) != 0 {
		t.Fatalf("expected 0 events before flush, got %d", len(events))
	}

	flushed := p.Flush()
	if len(flushed) != 1 {
		t.Fatalf("expected 1 event from flush, got %d", len(flushed))
	}
	if flushed[0].Event != "ping" {
		t.Errorf("Event = %q, want ping", flushed[0].Event)
	}
}

func TestParser_FlushEmptyBuffer(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("event: a\ndata: b\n\n"))
	if flushed := p.Flush(); flushed != nil {
		t.Errorf("expected nil flush after fully-consumed buffer, got %v", flushed)
	}
}

func TestParser_MultiLineData(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("data: line1\ndata: line2\n\n"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Data != "line1\nline2" {
		t.Errorf("Data = %q, want line1\\nline2", events[0].Data)
	}
}

func TestParser_IgnoresCommentLines(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte(": keep-alive\ndata: {\"id\":1}\n\n"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}

func TestParser_CommentOnlyBlockYieldsNoEvent(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte(": just a comment\n\n"))
	if len(events) != 0 {
		t.Errorf("expected 0 events for comment-only block, got %d", len(events))
	}
}

func TestParser_LastFieldWinsForSingletons(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("id: first\nid: second\ndata: x\n\n"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID != "second" {
		t.Errorf("ID = %q, want second (last field wins)", events[0].ID)
	}
}

func TestParser_InvalidUTF8Replaced(t *testing.T) {
	p := NewParser()
	chunk := append([]byte("data: "), 0xff, 0xfe)
	chunk = append(chunk, []byte("\n\n")...)
	events := p.Feed(chunk)
	if len(events) != 1 {
		t.Fatalf("expected 1 event despite invalid UTF-8, got %d", len(events))
	}
	if !strings.Contains(events[0].Data, "�") {
		t.Errorf("expected replacement character in data, got %q", events[0].Data)
	}
}

func TestCanonicalize_RoundTripsFields(t *testing.T) {
	events := []Event{
		{Event: "message_start", Data: "{\"a\":1}", ID: "1"},
		{Data: "[DONE]"},
	}
	out := Canonicalize(events)

	reparsed := NewParser()
	got := reparsed.Feed([]byte(out))
	if len(got) != 2 {
		t.Fatalf("expected 2 events after round-trip, got %d", len(got))
	}
	if got[0].Event != "message_start" || got[0].ID != "1" {
		t.Errorf("round-trip lost fields: %+v", got[0])
	}
	if got[1].Data != "[DONE]" {
		t.Errorf("round-trip lost data: %+v", got[1])
	}
}
