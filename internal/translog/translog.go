// Package translog writes the append-only transaction log: one line
// per processed event and per fatal fault. Logging here is best
// effort and never propagates failures to event processing.
package translog

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/otiza/ZkConnectSolution/internal/device"
	applog "github.com/otiza/ZkConnectSolution/internal/log"
)

// DefaultFilename is used when a config error prevents reading the
// configured name.
const DefaultFilename = "transactions"

// Logger owns the log file handle for the process lifetime.
type Logger struct {
	file *os.File
	log  *logrus.Logger
}

// FileName resolves the log file name. With split enabled the name
// carries the day, so each supervised run after midnight starts a
// fresh file.
func FileName(filename string, split bool, day time.Time) string {
	if split {
		return fmt.Sprintf("%s-%s.log", filename, day.Format("2006-01-02"))
	}
	return filename + ".log"
}

// Open opens (appending, never truncating) the transaction log in the
// working directory. It never fails: if the file cannot be opened the
// returned Logger discards lines and a warning goes to the
// operational log.
func Open(filename string, split bool) *Logger {
	name := FileName(filename, split, time.Now())

	log := logrus.New()
	log.SetFormatter(applog.NewFormatter(false))
	log.SetLevel(logrus.InfoLevel)

	file, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logrus.WithError(err).WithField("file", name).
			Warn("Cannot open transaction log, lines will be discarded")
		log.SetOutput(io.Discard)
		return &Logger{log: log}
	}

	log.SetOutput(file)
	return &Logger{file: file, log: log}
}

// Forwarded records a successfully delivered event.
func (l *Logger) Forwarded(event device.AttendanceEvent, status int) {
	l.log.WithFields(logrus.Fields{
		"user_id":   event.DeviceUserID,
		"timestamp": event.Timestamp,
		"status":    status,
	}).Info("forwarded")
}

// Dropped records an event whose delivery failed. The event is not
// queued or replayed; the line is the only trace it leaves.
func (l *Logger) Dropped(event device.AttendanceEvent, err error) {
	l.log.WithFields(logrus.Fields{
		"user_id":   event.DeviceUserID,
		"timestamp": event.Timestamp,
		"error":     err,
	}).Error("dropped")
}

// Received records an event observed with transmission disabled.
func (l *Logger) Received(event device.AttendanceEvent) {
	l.log.WithFields(logrus.Fields{
		"user_id":   event.DeviceUserID,
		"timestamp": event.Timestamp,
	}).Info("received")
}

// Fault records a fatal fault on the way out of the process.
func (l *Logger) Fault(stage string, err error) {
	l.log.WithFields(logrus.Fields{
		"stage": stage,
		"error": err,
	}).Error("fatal")
}

// Close releases the file handle. Safe on a discard logger.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	l.log.SetOutput(io.Discard)
	return l.file.Close()
}
