package sio

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/karagenc/sioengine/internal/sync"
	"github.com/xiegeo/coloredgoroutine"
)

type (
	Debugger interface {
		Log(main string, v ...any)
		WithContext(context string) Debugger
		WithDynamicContext(context string, dynamicContext func() string) Debugger
	}

	noopDebugger struct{}

	printDebugger struct {
		w              io.Writer
		context        string
		dynamicContext func() string
	}
)

func NewNoopDebugger() Debugger { return noopDebugger{} }

func (noopDebugger) Log(main string, v ...any) {}

func (d noopDebugger) WithContext(context string) Debugger { return d }

func (d noopDebugger) WithDynamicContext(context string, _ func() string) Debugger { return d }

// NewPrintDebugger prints to stdout. Every goroutine gets its own color.
func NewPrintDebugger() Debugger {
	return NewWriterDebugger(coloredgoroutine.Colors(os.Stdout))
}

func NewWriterDebugger(w io.Writer) Debugger {
	return &printDebugger{w: w}
}

var printMu sync.Mutex

// Log writes the context, the dynamic context, main and v
// on one line, separated by colons. Empty fields are skipped.
func (d *printDebugger) Log(main string, v ...any) {
	fields := make([]string, 0, 3+len(v))
	if d.context != "" {
		fields = append(fields, d.context)
	}
	if d.dynamicContext != nil {
		if dc := d.dynamicContext(); dc != "" {
			fields = append(fields, dc)
		}
	}
	if main != "" {
		fields = append(fields, main)
	}
	for _, f := range v {
		fields = append(fields, fmt.Sprint(f))
	}

	printMu.Lock()
	defer printMu.Unlock()
	fmt.Fprintln(d.w, strings.Join(fields, ": "))
}

func (d printDebugger) WithContext(context string) Debugger {
	d.context = context
	return &d
}

func (d printDebugger) WithDynamicContext(context string, dynamicContext func() string) Debugger {
	d.context = context
	d.dynamicContext = dynamicContext
	return &d
}
