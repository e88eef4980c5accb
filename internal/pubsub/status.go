package pubsub

import (
	"github.com/google/uuid"

	"github.com/lecturehub/backend/internal/lecture"
)

// Reserved event names on lecture topics.
const (
	EventStatusUpdate = "status_update"
	EventError        = "error"
)

// StatusPublisher publishes status_update events for lectures. It is the one
// path the pipeline uses to talk to connected clients.
type StatusPublisher struct {
	broker *Broker
}

// NewStatusPublisher creates a status publisher backed by broker.
func NewStatusPublisher(broker *Broker) *StatusPublisher {
	return &StatusPublisher{broker: broker}
}

// PublishStatus fans out a status_update carrying status plus any extra
// fields (transcript, summary, pdf, flashcards, message) to everyone watching
// the lecture.
func (p *StatusPublisher) PublishStatus(lectureID uuid.UUID, status lecture.Status, extra map[string]interface{}) {
	data := map[string]interface{}{"status": string(status)}
	for k, v := range extra {
		data[k] = v
	}
	p.broker.Publish(lecture.TopicName(lectureID), Message{
		Event: EventStatusUpdate,
		Data:  data,
	})
}

// PublishError fans out an error event to everyone watching the lecture.
func (p *StatusPublisher) PublishError(lectureID uuid.UUID, message string) {
	p.broker.Publish(lecture.TopicName(lectureID), Message{
		Event: EventError,
		Data:  map[string]interface{}{"message": message},
	})
}
