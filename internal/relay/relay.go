// Package relay runs the processing loop: pull one punch from the
// terminal, forward it, write one transaction log line, repeat.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/otiza/ZkConnectSolution/internal/device"
	"github.com/otiza/ZkConnectSolution/internal/forward"
)

// ErrStreamClosed reports that the device ended the live-capture
// stream, usually because the session dropped. Fatal for the run.
var ErrStreamClosed = errors.New("device event stream closed")

// ErrDayRollover reports that a new day started while daily log
// splitting is enabled. The process exits so the supervisor restarts
// it against a fresh dated log file.
var ErrDayRollover = errors.New("day rollover, restarting for a new log file")

// EventSource yields realtime punches. *device.Terminal implements it.
type EventSource interface {
	LiveCapture() (<-chan device.AttendanceEvent, error)
}

// Forwarder delivers one event to the endpoint. *forward.Forwarder
// implements it.
type Forwarder interface {
	Forward(ctx context.Context, event device.AttendanceEvent) (*forward.Result, error)
}

// TransactionLog records the outcome of each processed event.
// *translog.Logger implements it.
type TransactionLog interface {
	Forwarded(event device.AttendanceEvent, status int)
	Dropped(event device.AttendanceEvent, err error)
	Received(event device.AttendanceEvent)
}

// Service owns the processing loop. Strictly sequential: each event is
// fully forwarded and logged before the next one is taken.
type Service struct {
	source       EventSource
	forwarder    Forwarder
	translog     TransactionLog
	transmission bool
	splitDaily   bool

	now func() time.Time
}

// NewService wires the loop. With transmission false events are only
// logged, never forwarded. With splitDaily true the loop terminates at
// the first event of a new day.
func NewService(source EventSource, forwarder Forwarder, translog TransactionLog, transmission, splitDaily bool) *Service {
	return &Service{
		source:       source,
		forwarder:    forwarder,
		translog:     translog,
		transmission: transmission,
		splitDaily:   splitDaily,
		now:          time.Now,
	}
}

// Run consumes the live-capture stream until the context is canceled
// or the stream fails. Forwarding failures are isolated to their
// event; only stream-level faults make Run return.
func (s *Service) Run(ctx context.Context) error {
	events, err := s.source.LiveCapture()
	if err != nil {
		return fmt.Errorf("failed to start live capture: %w", err)
	}

	startedAt := dayOf(s.now())
	logrus.WithField("transmission", s.transmission).Info("Processing attendance events")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return ErrStreamClosed
			}
			s.process(ctx, event)
			if s.splitDaily && !dayOf(s.now()).Equal(startedAt) {
				return ErrDayRollover
			}
		}
	}
}

func (s *Service) process(ctx context.Context, event device.AttendanceEvent) {
	fields := logrus.Fields{
		"user_id":   event.DeviceUserID,
		"timestamp": event.Timestamp,
	}

	if !s.transmission {
		logrus.WithFields(fields).Info("Received attendance event, transmission disabled")
		s.translog.Received(event)
		return
	}

	result, err := s.forwarder.Forward(ctx, event)
	if err != nil {
		// Delivery failures never stop the loop; the next event
		// is processed as if this one succeeded.
		logrus.WithError(err).WithFields(fields).Error("Failed to forward attendance event")
		s.translog.Dropped(event, err)
		return
	}

	fields["status"] = result.StatusCode
	logrus.WithFields(fields).Info("Forwarded attendance event")
	s.translog.Forwarded(event, result.StatusCode)
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
