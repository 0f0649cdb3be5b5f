package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	saved map[string][]int
	err   error
}

func (m *memStore) SavePageNumber(_ context.Context, id string, page int) error {
	if m.saved == nil {
		m.saved = make(map[string][]int)
	}
	m.saved[id] = append(m.saved[id], page)
	return m.err
}

func newSession(t *testing.T, store PageStore) *Session {
	t.Helper()
	s, err := New(Params{Query: "t=love in (ESV)", PageSize: 60, Order: "relevance", Context: 3}, store)
	require.NoError(t, err)
	return s
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Params{Query: "  ", PageSize: 10}, nil)
	assert.Error(t, err)

	_, err = New(Params{Query: "t=x in (KJV)", PageSize: 0}, nil)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	s := newSession(t, nil)

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "t=love in (ESV)", s.Params().Args, "args default to the query")
	assert.Equal(t, 1, s.PageNumber())
	assert.Nil(t, s.Strongs())
}

func TestNew_KeepsEmptyStrongs(t *testing.T) {
	s, err := New(Params{Query: "s=H157 in (KJV)", PageSize: 10, Strongs: []string{}}, nil)
	require.NoError(t, err)

	assert.NotNil(t, s.Strongs(), "an empty list is still a supplied list")
	assert.Empty(t, s.Strongs())
}

func TestFetchParams(t *testing.T) {
	s, err := New(Params{
		Query:           "s=H157 in (KJV)",
		Args:            "strong=H157 in (KJV)",
		InterlinearMode: "interlinear",
		Order:           "canonical",
		Context:         1,
		PageSize:        20,
		Strongs:         []string{"H157"},
	}, nil)
	require.NoError(t, err)

	req := s.FetchParams()
	assert.Equal(t, "strong=H157 in (KJV)", req.Args)
	assert.Equal(t, "interlinear", req.InterlinearMode)
	assert.Equal(t, "canonical", req.Order)
	assert.Equal(t, 1, req.Context)
	assert.Equal(t, []string{"H157"}, req.Strongs)
	assert.Nil(t, req.HighlightTerms, "codes and terms are never sent together")
	assert.Zero(t, req.PageNumber)
	assert.False(t, req.Append)
}

func TestFetchParams_TermSearch(t *testing.T) {
	s, err := New(Params{Query: `t="the Lord" shepherd in (KJV)`, PageSize: 20}, nil)
	require.NoError(t, err)

	req := s.FetchParams()
	assert.Nil(t, req.Strongs)
	assert.Equal(t, []string{"the Lord", "shepherd"}, req.HighlightTerms)

	req.HighlightTerms[0] = "changed"
	assert.Equal(t, "the Lord", s.FetchParams().HighlightTerms[0])
}

func TestDeliverPage_NotifiesSubscribers(t *testing.T) {
	s := newSession(t, nil)
	first, unsubFirst := s.Subscribe()
	defer unsubFirst()
	second, unsubSecond := s.Subscribe()
	defer unsubSecond()

	rows := []Row{{Key: "Gen.1.1", Preview: "<p>In the beginning</p>"}}
	s.DeliverPage(2, rows, 120)

	for _, ch := range []<-chan Event{first, second} {
		ev := receive(t, ch)
		assert.Equal(t, EventNewPage, ev.Kind)
		assert.Equal(t, 2, ev.Page)
	}
	got, total := s.Results()
	assert.Equal(t, rows, got)
	assert.Equal(t, 120, total)
}

func TestSetResults_IsSilent(t *testing.T) {
	s := newSession(t, nil)
	ch, unsub := s.Subscribe()
	defer unsub()

	s.SetResults([]Row{{Key: "a"}}, 1)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev.Kind)
	default:
	}
}

func TestSavePageNumber(t *testing.T) {
	store := &memStore{}
	s := newSession(t, store)
	ch, unsub := s.Subscribe()
	defer unsub()

	require.NoError(t, s.SavePageNumber(context.Background(), 3))

	assert.Equal(t, 3, s.PageNumber())
	assert.Equal(t, []int{3}, store.saved[s.ID()])
	select {
	case ev := <-ch:
		t.Fatalf("saving a page number must not notify, got %v", ev.Kind)
	default:
	}
}

func TestSavePageNumber_StoreError(t *testing.T) {
	store := &memStore{err: errors.New("connection refused")}
	s := newSession(t, store)

	err := s.SavePageNumber(context.Background(), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 4, s.PageNumber(), "in-memory page number is still updated")
}

func TestDestroy(t *testing.T) {
	s := newSession(t, nil)
	ch, unsub := s.Subscribe()
	defer unsub()

	s.Destroy()
	s.Destroy()

	assert.True(t, s.Destroyed())
	assert.Equal(t, EventDestroy, receive(t, ch).Kind)
	select {
	case ev := <-ch:
		t.Fatalf("destroy published twice: %v", ev.Kind)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	s := newSession(t, nil)
	ch, unsub := s.Subscribe()
	require.Equal(t, 1, s.Subscribers())

	unsub()
	unsub()

	assert.Equal(t, 0, s.Subscribers())
	_, open := <-ch
	assert.False(t, open)

	s.DeliverPage(2, nil, 0)
}

func TestPublish_DropsWhenSubscriberIsFull(t *testing.T) {
	s := newSession(t, nil)
	_, unsub := s.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			s.DeliverPage(i+2, nil, 0)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestHighlightState(t *testing.T) {
	var h HighlightState
	assert.Empty(t, h.Terms())

	terms := []string{"love", "world"}
	h.Set(terms)
	terms[0] = "mutated"
	assert.Equal(t, []string{"love", "world"}, h.Terms())

	h.Clear()
	assert.Empty(t, h.Terms())
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "new_page", EventNewPage.String())
	assert.Equal(t, "destroy", EventDestroy.String())
	assert.Equal(t, "unknown", EventKind(7).String())
}
