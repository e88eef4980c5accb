package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lecturehub/backend/internal/auth"
	"github.com/lecturehub/backend/internal/lecture"
	"github.com/lecturehub/backend/internal/pubsub"
)

func newTestServer(t *testing.T, broker *pubsub.Broker) *httptest.Server {
	t.Helper()

	handler := NewHandler(broker, auth.NewService(nil, nil, "test-secret"))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/lectures/{lecture_id}/", handler.ServeWS)
	// Route without an id segment, so the handler sees an empty lecture_id.
	mux.HandleFunc("GET /ws/lectures/", handler.ServeWS)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) pubsub.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg pubsub.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	return msg
}

func TestServeWS_ForwardsStatusUpdates(t *testing.T) {
	broker := pubsub.NewBroker()
	server := newTestServer(t, broker)

	lectureID := uuid.New()
	conn := dial(t, server, "/ws/lectures/"+lectureID.String()+"/")

	// Wait for the subscription to land before publishing.
	waitForSubscribers(t, broker, lecture.TopicName(lectureID), 1)

	publisher := pubsub.NewStatusPublisher(broker)
	publisher.PublishStatus(lectureID, lecture.StatusInProgress, nil)

	msg := readFrame(t, conn)
	if msg.Event != pubsub.EventStatusUpdate {
		t.Errorf("got event %q, want %q", msg.Event, pubsub.EventStatusUpdate)
	}
	if msg.Data["status"] != string(lecture.StatusInProgress) {
		t.Errorf("got status %v, want In progress", msg.Data["status"])
	}
}

func TestServeWS_MissingIdentifierCloses4001(t *testing.T) {
	broker := pubsub.NewBroker()
	server := newTestServer(t, broker)

	conn := dial(t, server, "/ws/lectures/")

	code := readCloseCode(t, conn)
	if code != CloseMissingIdentifier {
		t.Errorf("got close code %d, want %d", code, CloseMissingIdentifier)
	}
}

func TestServeWS_InvalidIdentifierCloses4001(t *testing.T) {
	broker := pubsub.NewBroker()
	server := newTestServer(t, broker)

	conn := dial(t, server, "/ws/lectures/not-a-uuid/")

	code := readCloseCode(t, conn)
	if code != CloseMissingIdentifier {
		t.Errorf("got close code %d, want %d", code, CloseMissingIdentifier)
	}
}

func TestServeWS_MalformedFrameGetsErrorAndStaysOpen(t *testing.T) {
	broker := pubsub.NewBroker()
	server := newTestServer(t, broker)

	lectureID := uuid.New()
	conn := dial(t, server, "/ws/lectures/"+lectureID.String()+"/")
	waitForSubscribers(t, broker, lecture.TopicName(lectureID), 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg := readFrame(t, conn)
	if msg.Event != pubsub.EventError {
		t.Errorf("got event %q, want error", msg.Event)
	}
	if msg.Data["message"] == nil {
		t.Error("error frame should carry a message")
	}

	// The connection must survive: a valid frame still round-trips.
	frame, _ := json.Marshal(pubsub.Message{
		Event: "client_ping",
		Data:  map[string]interface{}{"seq": float64(1)},
	})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write after error failed: %v", err)
	}

	echoed := readFrame(t, conn)
	if echoed.Event != "client_ping" {
		t.Errorf("got event %q, want client_ping", echoed.Event)
	}
}

func TestServeWS_MissingEventGetsError(t *testing.T) {
	broker := pubsub.NewBroker()
	server := newTestServer(t, broker)

	lectureID := uuid.New()
	conn := dial(t, server, "/ws/lectures/"+lectureID.String()+"/")
	waitForSubscribers(t, broker, lecture.TopicName(lectureID), 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{"x":1}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg := readFrame(t, conn)
	if msg.Event != pubsub.EventError {
		t.Errorf("got event %q, want error", msg.Event)
	}
}

func TestServeWS_InboundFrameFansOutToAllWatchers(t *testing.T) {
	broker := pubsub.NewBroker()
	server := newTestServer(t, broker)

	lectureID := uuid.New()
	path := "/ws/lectures/" + lectureID.String() + "/"
	sender := dial(t, server, path)
	watcher := dial(t, server, path)
	waitForSubscribers(t, broker, lecture.TopicName(lectureID), 2)

	frame, _ := json.Marshal(pubsub.Message{
		Event: "annotation",
		Data:  map[string]interface{}{"text": "see slide 4"},
	})
	if err := sender.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"sender": sender, "watcher": watcher} {
		msg := readFrame(t, conn)
		if msg.Event != "annotation" {
			t.Errorf("%s: got event %q, want annotation", name, msg.Event)
		}
		if msg.Data["text"] != "see slide 4" {
			t.Errorf("%s: frame data not forwarded verbatim", name)
		}
	}
}

func TestServeWS_DisconnectUnsubscribes(t *testing.T) {
	broker := pubsub.NewBroker()
	server := newTestServer(t, broker)

	lectureID := uuid.New()
	topic := lecture.TopicName(lectureID)
	conn := dial(t, server, "/ws/lectures/"+lectureID.String()+"/")
	waitForSubscribers(t, broker, topic, 1)

	conn.Close()
	waitForSubscribers(t, broker, topic, 0)
}

func readCloseCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected a close frame")
	}
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	return closeErr.Code
}

func waitForSubscribers(t *testing.T, broker *pubsub.Broker, topic string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if broker.SubscriberCount(topic) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("topic %s never reached %d subscribers", topic, want)
}
