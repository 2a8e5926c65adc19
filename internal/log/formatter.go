// Package log provides the logrus formatter shared by the operational
// logger and the transaction log.
package log

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const timestampLayout = "2006-01-02 15:04:05"

// Formatter renders entries as
// "2021-02-17 18:23:00 INFO message key=value".
type Formatter struct {
	colors bool
}

// NewFormatter creates a Formatter. Colors are only meaningful on a
// terminal and must stay off for the transaction log file.
func NewFormatter(colors bool) *Formatter {
	return &Formatter{colors: colors}
}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	b.WriteString(entry.Time.Format(timestampLayout))
	b.WriteByte(' ')
	b.WriteString(f.level(entry.Level))
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *Formatter) level(level logrus.Level) string {
	name := strings.ToUpper(level.String())
	if !f.colors {
		return name
	}
	var code int
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		code = 37 // gray
	case logrus.WarnLevel:
		code = 33 // yellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		code = 31 // red
	default:
		code = 36 // cyan
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, name)
}
