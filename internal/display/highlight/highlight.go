// Package highlight marks the parts of rendered search results that match the
// user's query, either by literal term or by lexical code (Strong's numbers
// attached to spans). It never edits markup itself: every match is reported
// to a Marker, which decides how the highlight is presented.
package highlight

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/html"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/terms"
)

// CodeAttr is the attribute holding the space-separated lexical codes of a
// rendered word.
const CodeAttr = "strong"

const defaultCacheSize = 256

// Mode identifies which kind of highlight pass ran over some content.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeTerms   Mode = "terms"
	ModeStrongs Mode = "strongs"
)

// Mark is a single highlight instruction. For term marks Node is a text node
// and [Start, End) is the matched byte range of its data; for code marks Node
// is the element carrying the code and Start == End == 0.
type Mark struct {
	Match string
	Node  *html.Node
	Start int
	End   int
}

// Marker presents highlight instructions. Implementations must leave the text
// content of the tree unchanged.
type Marker interface {
	MarkText(node *html.Node, start, end int)
	MarkElement(node *html.Node)
}

// State receives the terms of the latest term-based pass. It is owned by the
// search session, not by the engine.
type State interface {
	Set(terms []string)
	Clear()
}

// Result describes one highlight pass.
type Result struct {
	Mode  Mode
	Marks []Mark
}

// Engine runs highlight passes. It is safe for concurrent use as long as the
// Marker is.
type Engine struct {
	marker   Marker
	patterns *lru.Cache[string, *regexp.Regexp]
	logger   *slog.Logger
}

// New creates an Engine reporting matches to marker. cacheSize bounds the
// number of compiled term patterns kept around.
func New(marker Marker, cacheSize int) (*Engine, error) {
	if marker == nil {
		return nil, fmt.Errorf("highlight: marker is required")
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	patterns, err := lru.New[string, *regexp.Regexp](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating pattern cache: %w", err)
	}
	return &Engine{
		marker:   marker,
		patterns: patterns,
		logger:   slog.Default().With("component", "highlighter"),
	}, nil
}

// Highlight runs exactly one pass over content. A non-nil codes slice selects
// the code pass, even when empty; otherwise the terms of query are used.
func (e *Engine) Highlight(content *goquery.Selection, query string, codes []string, state State) Result {
	if codes != nil {
		return Result{Mode: ModeStrongs, Marks: e.ByStrongs(content, codes)}
	}
	return Result{Mode: ModeTerms, Marks: e.ByTerms(content, terms.Extract(query), state)}
}

// ByTerms marks every whole-word, case-insensitive occurrence of each term in
// the text of content. Terms are applied one after another and overlapping
// matches are not merged. An empty term list clears state and marks nothing.
func (e *Engine) ByTerms(content *goquery.Selection, termList []string, state State) []Mark {
	if len(termList) == 0 || content == nil {
		if state != nil {
			state.Clear()
		}
		return nil
	}
	if state != nil {
		state.Set(termList)
	}

	var marks []Mark
	for _, term := range termList {
		if strings.TrimSpace(term) == "" {
			continue
		}
		pattern, err := e.pattern(term)
		if err != nil {
			e.logger.Warn("skipping unusable highlight term", "term", term, "error", err)
			continue
		}
		for _, node := range textNodes(content) {
			locs := pattern.FindAllStringIndex(node.Data, -1)
			if len(locs) == 0 {
				continue
			}
			nodeMarks := make([]Mark, 0, len(locs))
			for _, loc := range locs {
				nodeMarks = append(nodeMarks, Mark{
					Match: term,
					Node:  node,
					Start: loc[0],
					End:   loc[1],
				})
			}
			// back to front, so splitting a text node keeps earlier offsets valid
			for i := len(nodeMarks) - 1; i >= 0; i-- {
				e.marker.MarkText(node, nodeMarks[i].Start, nodeMarks[i].End)
			}
			marks = append(marks, nodeMarks...)
		}
	}
	e.logger.Debug("term highlight pass", "terms", termList, "marks", len(marks))
	return marks
}

// ByStrongs marks every span whose code attribute contains one of codes as a
// whole token. A nil code list is a no-op.
func (e *Engine) ByStrongs(content *goquery.Selection, codes []string) []Mark {
	if codes == nil || content == nil {
		return nil
	}
	spans := content.Find("span[" + CodeAttr + "]")

	var marks []Mark
	for _, code := range codes {
		if code == "" {
			continue
		}
		spans.Each(func(_ int, span *goquery.Selection) {
			attr, _ := span.Attr(CodeAttr)
			if !hasToken(attr, code) {
				return
			}
			node := span.Get(0)
			e.marker.MarkElement(node)
			marks = append(marks, Mark{Match: code, Node: node})
		})
	}
	e.logger.Debug("code highlight pass", "codes", codes, "marks", len(marks))
	return marks
}

func (e *Engine) pattern(term string) (*regexp.Regexp, error) {
	if re, ok := e.patterns.Get(term); ok {
		return re, nil
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern for %q: %w", term, err)
	}
	e.patterns.Add(term, re)
	return re, nil
}

func hasToken(attr, token string) bool {
	for _, field := range strings.Fields(attr) {
		if field == token {
			return true
		}
	}
	return false
}

// textNodes collects the text nodes below content up front, so that markers
// may restructure the tree while a term is being applied.
func textNodes(content *goquery.Selection) []*html.Node {
	var nodes []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode && n.Data != "" {
			nodes = append(nodes, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range content.Nodes {
		walk(n)
	}
	return nodes
}
