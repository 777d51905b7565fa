package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
)

// Output handles styled terminal output.
type Output struct {
	noColor bool
	debug   bool
	out     io.Writer
	err     io.Writer
}

// NewOutput creates a new Output instance writing to stdout and stderr.
func NewOutput() *Output {
	return &Output{out: os.Stdout, err: os.Stderr}
}

// NewBufferedOutput writes everything to w without styling; used by tests.
func NewBufferedOutput(w io.Writer) *Output {
	o := &Output{out: w, err: w}
	o.SetNoColor(true)
	return o
}

// SetNoColor disables colored output.
func (o *Output) SetNoColor(v bool) {
	o.noColor = v
	if v {
		pterm.DisableStyling()
	} else {
		pterm.EnableStyling()
	}
}

// SetDebug enables Debug lines.
func (o *Output) SetDebug(v bool) {
	o.debug = v
}

func (o *Output) Writer() io.Writer {
	return o.out
}

// Success prints a success message.
func (o *Output) Success(format string, args ...any) {
	if o.noColor {
		fmt.Fprintf(o.out, "OK %s\n", fmt.Sprintf(format, args...))
		return
	}
	pterm.Success.WithWriter(o.out).Printfln(format, args...)
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	if o.noColor {
		fmt.Fprintf(o.err, "FAIL %s\n", fmt.Sprintf(format, args...))
		return
	}
	pterm.Error.WithWriter(o.err).Printfln(format, args...)
}

// Warning prints a warning message.
func (o *Output) Warning(format string, args ...any) {
	if o.noColor {
		fmt.Fprintf(o.err, "WARN %s\n", fmt.Sprintf(format, args...))
		return
	}
	pterm.Warning.WithWriter(o.err).Printfln(format, args...)
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	if o.noColor {
		fmt.Fprintf(o.out, format+"\n", args...)
		return
	}
	pterm.Info.WithWriter(o.out).Printfln(format, args...)
}

// Println prints a line to stdout.
func (o *Output) Println(format string, args ...any) {
	fmt.Fprintf(o.out, format+"\n", args...)
}

// Debug prints a debug message when debug output is on.
func (o *Output) Debug(format string, args ...any) {
	if !o.debug {
		return
	}
	if o.noColor {
		fmt.Fprintf(o.err, "DEBUG %s\n", fmt.Sprintf(format, args...))
		return
	}
	pterm.Debug.WithWriter(o.err).WithDebugger(false).Printfln(format, args...)
}

// Section prints a heading.
func (o *Output) Section(title string) {
	if o.noColor {
		fmt.Fprintf(o.out, "\n== %s ==\n", title)
		return
	}
	fmt.Fprint(o.out, pterm.DefaultSection.Sprint(title))
}

// Table prints an aligned table with a header row.
func (o *Output) Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	data := pterm.TableData{headers}
	data = append(data, rows...)
	if err := pterm.DefaultTable.WithHasHeader().WithWriter(o.out).WithData(data).Render(); err != nil {
		o.Error("rendering table: %v", err)
	}
}
