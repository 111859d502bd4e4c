package stream

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/TFMV/fsjson/internal/watch"
	"github.com/fatih/color"
)

// typeWidth pads event types so paths line up.
const typeWidth = 8

// Formatter renders records as one human-readable line each.
type Formatter struct {
	Writer io.Writer
	Color  bool
}

// NewFormatter creates a formatter writing to w.
func NewFormatter(w io.Writer, colorMode bool) *Formatter {
	return &Formatter{Writer: w, Color: colorMode}
}

// Format returns the line for rec without a trailing newline.
func (f *Formatter) Format(rec watch.Record) string {
	label := fmt.Sprintf("%-*s", typeWidth, strings.ToUpper(string(rec.EventType)))
	if f.Color {
		c := typeColor(rec.EventType)
		c.EnableColor()
		label = c.Sprint(label)
	}
	if rec.DestPath != "" {
		return fmt.Sprintf("%s %s -> %s", label, rec.SrcPath, rec.DestPath)
	}
	return fmt.Sprintf("%s %s", label, rec.SrcPath)
}

// Print writes the line for rec.
func (f *Formatter) Print(rec watch.Record) error {
	_, err := fmt.Fprintln(f.Writer, f.Format(rec))
	return err
}

// PrintAt writes the line for rec prefixed with the time it was observed.
func (f *Formatter) PrintAt(at time.Time, rec watch.Record) error {
	stamp := at.Local().Format("2006-01-02 15:04:05.000")
	if f.Color {
		c := color.New(color.Faint)
		c.EnableColor()
		stamp = c.Sprint(stamp)
	}
	_, err := fmt.Fprintf(f.Writer, "%s %s\n", stamp, f.Format(rec))
	return err
}

func typeColor(t watch.EventType) *color.Color {
	switch t {
	case watch.EventCreated:
		return color.New(color.FgGreen, color.Bold)
	case watch.EventModified:
		return color.New(color.FgYellow)
	case watch.EventDeleted:
		return color.New(color.FgRed, color.Bold)
	case watch.EventMoved:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}
