package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"course-authoring/internal/domain"
	"course-authoring/internal/logger"
)

// AllCourses subscribes to every course.
const AllCourses = "*"

// Subject returns the NATS subject carrying updates for courseID.
func Subject(courseID string) string {
	return "courses." + courseID + ".updated"
}

// Connect dials a NATS server with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("course-authoring"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSPublisher publishes events as JSON on the course subject.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// Ping round-trips to the server. ctx must carry a deadline.
func (p *NATSPublisher) Ping(ctx context.Context) error {
	return p.conn.FlushWithContext(ctx)
}

func (p *NATSPublisher) Publish(ctx context.Context, evt domain.PushEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode push event: %w", err)
	}
	if err := p.conn.Publish(Subject(evt.CourseID), data); err != nil {
		return fmt.Errorf("failed to publish push event: %w", err)
	}
	return nil
}

// Subscribe delivers events for courseID, or AllCourses, to fn.
// Malformed messages are logged and skipped.
func Subscribe(conn *nats.Conn, courseID string, fn func(domain.PushEvent)) (*nats.Subscription, error) {
	sub, err := conn.Subscribe(Subject(courseID), func(msg *nats.Msg) {
		var evt domain.PushEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			logger.Warn("Ignoring malformed push event",
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()))
			return
		}
		fn(evt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Subject(courseID), err)
	}
	return sub, nil
}

// Bridge republishes every course event received over NATS into sink,
// normally the local Hub.
func Bridge(conn *nats.Conn, sink Publisher) (*nats.Subscription, error) {
	return Subscribe(conn, AllCourses, func(evt domain.PushEvent) {
		if err := sink.Publish(context.Background(), evt); err != nil {
			logger.Warn("Failed to relay push event",
				slog.String("course_id", evt.CourseID),
				slog.Int64("version", evt.Version),
				slog.String("error", err.Error()))
		}
	})
}

// Watcher adapts a NATS connection to the per-course watch used by
// authoring sessions.
type Watcher struct {
	Conn *nats.Conn
}

// Watch delivers events for courseID to fn until ctx is canceled.
func (w Watcher) Watch(ctx context.Context, courseID string, fn func(domain.PushEvent)) error {
	sub, err := Subscribe(w.Conn, courseID, fn)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()
	<-ctx.Done()
	return ctx.Err()
}
