package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/highlight"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/session"
)

// render updates the label, then builds and highlights the new fragment off
// the document before attaching it. A full render replaces the content; an
// append render adds to the results area.
func (v *View) render(appendPage bool, rows []session.Row, total int) error {
	if appendPage {
		v.acc.Append(len(rows))
	} else {
		v.acc.Full(total)
	}

	if total == 0 {
		v.renderEmpty(appendPage)
		return nil
	}

	if v.partRendered && !appendPage {
		nodes, err := html.ParseFragment(strings.NewReader(v.opts.PartRendered), element(atom.Div, contentClass))
		if err != nil {
			return fmt.Errorf("parsing part-rendered content: %w", err)
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		root := v.content().Get(0)
		removeChildren(root)
		for _, n := range nodes {
			root.AppendChild(n)
		}
		v.record(v.highlight(v.content()), appendPage)
		return nil
	}

	fragment, err := rowsFragment(rows)
	if err != nil {
		return err
	}
	res := v.highlight(goquery.NewDocumentFromNode(fragment).Selection)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.record(res, appendPage)
	if appendPage {
		moveChildren(fragment, v.resultsArea().Get(0))
		return nil
	}
	results := element(atom.Div, resultsClass)
	moveChildren(fragment, results)
	root := v.content().Get(0)
	removeChildren(root)
	root.AppendChild(results)
	return nil
}

func (v *View) renderEmpty(appendPage bool) {
	msg := element(atom.Div, notApplicableClass)
	msg.AppendChild(&html.Node{Type: html.TextNode, Data: noResultsMessage})

	v.mu.Lock()
	if appendPage {
		v.resultsArea().Get(0).AppendChild(msg)
	} else {
		root := v.content().Get(0)
		removeChildren(root)
		root.AppendChild(msg)
	}
	v.mu.Unlock()

	if v.metrics != nil {
		v.metrics.ZeroResultViews.Inc()
	}
	v.tracker.Track(analytics.DisplayEvent{
		Type:       analytics.EventZeroResult,
		SessionID:  v.sess.ID(),
		Query:      v.sess.Query(),
		SearchType: v.opts.SearchType,
		Timestamp:  time.Now().UTC(),
	})
}

// highlight runs one pass over sel: by lexical code when the session carries
// codes, by query term otherwise.
func (v *View) highlight(sel *goquery.Selection) highlight.Result {
	res := v.engine.Highlight(sel, v.sess.Query(), v.sess.Strongs(), v.sess.Highlight())

	if v.metrics != nil {
		v.metrics.HighlightPasses.WithLabelValues(string(res.Mode)).Inc()
		v.metrics.HighlightMarks.Observe(float64(len(res.Marks)))
	}
	v.tracker.Track(analytics.DisplayEvent{
		Type:          analytics.EventHighlight,
		SessionID:     v.sess.ID(),
		Query:         v.sess.Query(),
		SearchType:    v.opts.SearchType,
		HighlightMode: string(res.Mode),
		Marks:         len(res.Marks),
		Timestamp:     time.Now().UTC(),
	})
	return res
}

// record keeps the outcome of a pass for snapshots. Callers hold v.mu.
func (v *View) record(res highlight.Result, appendPage bool) {
	v.status.mode = res.Mode
	if appendPage {
		v.status.marks += len(res.Marks)
	} else {
		v.status.marks = len(res.Marks)
	}
}

// content is the root of the rendered area. Callers hold v.mu.
func (v *View) content() *goquery.Selection {
	return v.doc.Find("." + contentClass).First()
}

// resultsArea is where pages are appended; part-rendered content without a
// results container appends to the root. Callers hold v.mu.
func (v *View) resultsArea() *goquery.Selection {
	if area := v.doc.Find("." + resultsClass).First(); area.Length() > 0 {
		return area
	}
	return v.content()
}

// ShowLoading implements pager.Placeholder.
func (v *View) ShowLoading() {
	waiting := element(atom.Div, v.opts.LoadingClass)
	waiting.AppendChild(&html.Node{Type: html.TextNode, Data: "\u00a0"})

	v.mu.Lock()
	v.resultsArea().Get(0).AppendChild(waiting)
	v.mu.Unlock()
}

// HideLoading implements pager.Placeholder.
func (v *View) HideLoading() {
	v.mu.Lock()
	v.resultsArea().Find("." + v.opts.LoadingClass).Remove()
	v.mu.Unlock()
}

// SetLabel implements accumulator.LabelSink.
func (v *View) SetLabel(label string) {
	v.mu.Lock()
	v.label = label
	v.mu.Unlock()
}

// Snapshot is a read-only copy of a view's state.
type Snapshot struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"session_id"`
	Query         string         `json:"query"`
	Label         string         `json:"label"`
	Page          int            `json:"page"`
	State         string         `json:"state"`
	HasPages      bool           `json:"has_pages"`
	Total         int            `json:"total"`
	HighlightMode highlight.Mode `json:"highlight_mode"`
	Marks         int            `json:"marks"`
	HTML          string         `json:"html"`
}

func (v *View) Snapshot() (Snapshot, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	markup, err := goquery.OuterHtml(v.content())
	if err != nil {
		return Snapshot{}, fmt.Errorf("serializing view %s: %w", v.id, err)
	}
	return Snapshot{
		ID:            v.id,
		SessionID:     v.sess.ID(),
		Query:         v.sess.Query(),
		Label:         v.label,
		Page:          v.status.page,
		State:         v.status.state.String(),
		HasPages:      v.status.hasPages,
		Total:         v.acc.Total(),
		HighlightMode: v.status.mode,
		Marks:         v.status.marks,
		HTML:          markup,
	}, nil
}

// rowsFragment parses the pre-rendered previews into row containers under a
// detached root.
func rowsFragment(rows []session.Row) (*html.Node, error) {
	root := element(atom.Div, "")
	for _, row := range rows {
		outer := element(atom.Div, rowClass)
		if row.Key != "" {
			outer.Attr = append(outer.Attr, html.Attribute{Key: "name", Val: row.Key})
		}
		cell := element(atom.Div, rowClass)
		nodes, err := html.ParseFragment(strings.NewReader(row.Preview), cell)
		if err != nil {
			return nil, fmt.Errorf("parsing preview of %s: %w", row.Key, err)
		}
		for _, n := range nodes {
			cell.AppendChild(n)
		}
		outer.AppendChild(cell)
		root.AppendChild(outer)
	}
	return root, nil
}

func element(a atom.Atom, class string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		n.Attr = []html.Attribute{{Key: "class", Val: class}}
	}
	return n
}

func moveChildren(from, to *html.Node) {
	for c := from.FirstChild; c != nil; c = from.FirstChild {
		from.RemoveChild(c)
		to.AppendChild(c)
	}
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}
