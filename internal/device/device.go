// Package device adapts the ZKTeco terminal protocol client to the
// relay's event model.
package device

import (
	"fmt"
	"strconv"

	"github.com/canhlinh/gozk"
	"github.com/sirupsen/logrus"
)

// TimeLayout is the wire format for punch timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// AttendanceEvent is one clock-in/out punch reported by the terminal.
// Duplicates are possible if the device redelivers; they are not
// deduplicated here or anywhere downstream.
type AttendanceEvent struct {
	DeviceUserID int64
	Timestamp    string
}

// Terminal is an open session with one ZKTeco attendance terminal.
type Terminal struct {
	socket *gozk.ZK
	host   string
	port   int
}

// Dial establishes a session with the terminal. A failure here is
// fatal for the run; the supervisor restarts the process.
func Dial(host string, port int, timezone string) (*Terminal, error) {
	socket := gozk.NewZK(host, port, 0, timezone)
	if err := socket.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to terminal %s:%d: %w", host, port, err)
	}

	logrus.WithFields(logrus.Fields{
		"host": host,
		"port": port,
	}).Info("Connected to attendance terminal")

	return &Terminal{socket: socket, host: host, port: port}, nil
}

// LiveCapture starts realtime capture and returns a channel of punch
// events. The channel closes when the device drops the session; the
// capture is not restartable on the same Terminal.
func (t *Terminal) LiveCapture() (<-chan AttendanceEvent, error) {
	raw, err := t.socket.LiveCapture()
	if err != nil {
		return nil, fmt.Errorf("failed to start live capture: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host": t.host,
		"port": t.port,
	}).Info("Started live capture")

	events := make(chan AttendanceEvent)
	go func() {
		defer close(events)
		for attendance := range raw {
			event, ok := fromAttendance(attendance)
			if !ok {
				continue
			}
			events <- event
		}
	}()
	return events, nil
}

// Disconnect stops the capture and closes the session.
func (t *Terminal) Disconnect() error {
	t.socket.StopCapture()
	if err := t.socket.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from terminal %s:%d: %w", t.host, t.port, err)
	}
	return nil
}

// fromAttendance converts one gozk record to an AttendanceEvent. The
// wire contract requires an integer user id; records with non-numeric
// ids are dropped with a warning.
func fromAttendance(attendance *gozk.Attendance) (AttendanceEvent, bool) {
	if attendance == nil {
		return AttendanceEvent{}, false
	}
	userID, err := strconv.ParseInt(attendance.UserID, 10, 64)
	if err != nil {
		logrus.WithField("user_id", attendance.UserID).Warn("Dropping punch with non-numeric user id")
		return AttendanceEvent{}, false
	}
	return AttendanceEvent{
		DeviceUserID: userID,
		Timestamp:    attendance.AttendedAt.Format(TimeLayout),
	}, true
}
