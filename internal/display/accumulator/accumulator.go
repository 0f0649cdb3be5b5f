// Package accumulator keeps the result-count bookkeeping for a search view
// and formats the "showing N" label.
package accumulator

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LabelSink receives the formatted results label.
type LabelSink interface {
	SetLabel(label string)
}

// Accumulator tracks the total number of results for the current query. The
// total is set on full renders only; appended pages never change it, so the
// label always shows the size of the whole result set rather than the number
// of rows rendered so far.
type Accumulator struct {
	total   int
	format  string
	printer *message.Printer
	sink    LabelSink
}

// New creates an Accumulator. format must contain a single %d verb; lang is a
// BCP 47 tag used for digit grouping (falls back to English).
func New(format, lang string, sink LabelSink) *Accumulator {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return &Accumulator{
		format:  format,
		printer: message.NewPrinter(tag),
		sink:    sink,
	}
}

// Full records the total of a full render and refreshes the label. It reports
// whether the result set is empty.
func (a *Accumulator) Full(total int) (empty bool) {
	if total < 0 {
		total = 0
	}
	a.total = total
	a.UpdateLabel()
	return total == 0
}

// Append refreshes the label after an appended page. The number of appended
// rows is not folded into the total.
func (a *Accumulator) Append(_ int) {
	a.UpdateLabel()
}

// Total returns the current total.
func (a *Accumulator) Total() int {
	return a.total
}

// Label formats the current total.
func (a *Accumulator) Label() string {
	return a.printer.Sprintf(a.format, a.total)
}

// UpdateLabel pushes the label for the current total to the sink.
func (a *Accumulator) UpdateLabel() {
	if a.sink != nil {
		a.sink.SetLabel(a.Label())
	}
}
