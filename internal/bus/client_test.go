package bus_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/loqalabs/signspeak/internal/bus/bustest"
	"github.com/loqalabs/signspeak/internal/protocol"
)

func TestPublishJSON(t *testing.T) {
	client := bustest.Connect(t)
	if !client.Healthy() {
		t.Fatal("expected healthy connection")
	}

	sub, err := client.Conn().SubscribeSync(protocol.SubjectSpeechRequest)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := client.PublishJSON(protocol.SubjectSpeechRequest, protocol.SpeechRequest{ID: "r1", Text: "hello"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	var req protocol.SpeechRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.ID != "r1" || req.Text != "hello" {
		t.Fatalf("unexpected request %+v", req)
	}
}
