package highlight

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const class = "secondaryBackground"

type recordingState struct {
	terms   []string
	cleared int
}

func (s *recordingState) Set(terms []string) { s.terms = terms }
func (s *recordingState) Clear()             { s.terms = nil; s.cleared++ }

type recordingMarker struct {
	texts    int
	elements int
}

func (m *recordingMarker) MarkText(*html.Node, int, int) { m.texts++ }
func (m *recordingMarker) MarkElement(*html.Node)        { m.elements++ }

func content(t *testing.T, body string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div class="searchResults">` + body + `</div>`))
	require.NoError(t, err)
	return doc.Find(".searchResults")
}

func newEngine(t *testing.T, marker Marker) *Engine {
	t.Helper()
	e, err := New(marker, 8)
	require.NoError(t, err)
	return e
}

func TestByTerms_MarksWholeWordsCaseInsensitively(t *testing.T) {
	sel := content(t, `<p>Love is patient, love is kind. Beloved.</p>`)
	before := sel.Text()
	state := &recordingState{}

	marks := newEngine(t, ClassMarker{Class: class}).ByTerms(sel, []string{"love"}, state)

	require.Len(t, marks, 2)
	assert.Equal(t, before, sel.Text(), "highlighting must not change the text")
	assert.Equal(t, 2, sel.Find("span."+class).Length())
	assert.Equal(t, "Love", sel.Find("span."+class).First().Text())
	assert.Equal(t, []string{"love"}, state.terms)
}

func TestByTerms_Phrase(t *testing.T) {
	sel := content(t, `<p>The LORD is my shepherd</p>`)

	marks := newEngine(t, ClassMarker{Class: class}).ByTerms(sel, []string{"the Lord"}, nil)

	require.Len(t, marks, 1)
	assert.Equal(t, "The LORD", sel.Find("span."+class).Text())
	assert.Equal(t, "The LORD is my shepherd", sel.Text())
}

func TestByTerms_EachTermAppliedIndependently(t *testing.T) {
	sel := content(t, `<p>faith hope <em>love</em> hope</p>`)

	marks := newEngine(t, ClassMarker{Class: class}).ByTerms(sel, []string{"hope", "love", " "}, nil)

	assert.Len(t, marks, 3)
	assert.Equal(t, 3, sel.Find("span."+class).Length())
	assert.Equal(t, "faith hope love hope", sel.Text())
}

func TestByTerms_TermIsLiteral(t *testing.T) {
	sel := content(t, `<p>axb a.b</p>`)

	marks := newEngine(t, ClassMarker{Class: class}).ByTerms(sel, []string{"a.b"}, nil)

	require.Len(t, marks, 1)
	assert.Equal(t, "a.b", sel.Find("span."+class).Text())
}

func TestByTerms_SkipsInvalidUTF8Term(t *testing.T) {
	sel := content(t, `<p>love one another</p>`)

	var marks []Mark
	require.NotPanics(t, func() {
		marks = newEngine(t, ClassMarker{Class: class}).ByTerms(sel, []string{"lov\xffe", "love"}, nil)
	})

	require.Len(t, marks, 1)
	assert.Equal(t, "love", marks[0].Match)
}

func TestHighlight_InvalidUTF8Query(t *testing.T) {
	sel := content(t, `<p>love one another</p>`)

	var res Result
	require.NotPanics(t, func() {
		res = newEngine(t, ClassMarker{Class: class}).Highlight(sel, "t=lov\xffe in (ESV)", nil, nil)
	})

	assert.Equal(t, ModeTerms, res.Mode)
	require.Len(t, res.Marks, 1)
	assert.Equal(t, "love", sel.Find("span."+class).Text())
}

func TestByTerms_EmptyTermsClearState(t *testing.T) {
	sel := content(t, `<p>love</p>`)
	state := &recordingState{terms: []string{"stale"}}
	marker := &recordingMarker{}

	marks := newEngine(t, marker).ByTerms(sel, nil, state)

	assert.Empty(t, marks)
	assert.Nil(t, state.terms)
	assert.Equal(t, 1, state.cleared)
	assert.Zero(t, marker.texts)
}

func TestByTerms_SkipsScripts(t *testing.T) {
	sel := content(t, `<p>grace</p><script>var grace = 1;</script>`)

	marks := newEngine(t, ClassMarker{Class: class}).ByTerms(sel, []string{"grace"}, nil)

	assert.Len(t, marks, 1)
}

func TestByStrongs_TokenMembership(t *testing.T) {
	sel := content(t, `<span strong="H1234 G5678">one</span><span strong="H12345">two</span><span strong="G5678">three</span><span>four</span>`)

	marks := newEngine(t, ClassMarker{Class: class}).ByStrongs(sel, []string{"H1234", "G5678"})

	require.Len(t, marks, 3)
	highlighted := sel.Find("span." + class)
	assert.Equal(t, 2, highlighted.Length(), "first span matched twice but carries the class once")
	assert.Equal(t, "onethree", highlighted.Text())
}

func TestByStrongs_NilCodesIsNoop(t *testing.T) {
	sel := content(t, `<span strong="H1">one</span>`)
	marker := &recordingMarker{}

	assert.Nil(t, newEngine(t, marker).ByStrongs(sel, nil))
	assert.Zero(t, marker.elements)
}

func TestHighlight_ExactlyOnePass(t *testing.T) {
	body := `<span strong="H1">love</span> love`

	t.Run("codes supplied", func(t *testing.T) {
		marker := &recordingMarker{}
		state := &recordingState{terms: []string{"kept"}}
		res := newEngine(t, marker).Highlight(content(t, body), "love", []string{"H1"}, state)

		assert.Equal(t, ModeStrongs, res.Mode)
		assert.Equal(t, 1, marker.elements)
		assert.Zero(t, marker.texts)
		assert.Equal(t, []string{"kept"}, state.terms)
	})

	t.Run("empty but supplied codes still pick the code pass", func(t *testing.T) {
		marker := &recordingMarker{}
		res := newEngine(t, marker).Highlight(content(t, body), "love", []string{}, nil)

		assert.Equal(t, ModeStrongs, res.Mode)
		assert.Empty(t, res.Marks)
		assert.Zero(t, marker.texts)
	})

	t.Run("no codes", func(t *testing.T) {
		marker := &recordingMarker{}
		state := &recordingState{}
		res := newEngine(t, marker).Highlight(content(t, body), "t=love in (ESV)", nil, state)

		assert.Equal(t, ModeTerms, res.Mode)
		assert.Equal(t, 2, marker.texts)
		assert.Zero(t, marker.elements)
		assert.Equal(t, []string{"love"}, state.terms)
	})
}

func TestClassMarker_MarkElementKeepsExistingClasses(t *testing.T) {
	node := &html.Node{Type: html.ElementNode, Data: "span", Attr: []html.Attribute{{Key: "class", Val: "word"}}}
	m := ClassMarker{Class: class}

	m.MarkElement(node)
	m.MarkElement(node)

	assert.Equal(t, "word "+class, node.Attr[0].Val)
}

func TestNew_RequiresMarker(t *testing.T) {
	_, err := New(nil, 0)
	assert.Error(t, err)
}
