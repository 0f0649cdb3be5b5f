package accumulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type labels struct{ got []string }

func (l *labels) SetLabel(label string) { l.got = append(l.got, label) }

func TestFull_SetsTotalAndLabel(t *testing.T) {
	sink := &labels{}
	acc := New("Showing %d", "en", sink)

	empty := acc.Full(1234)

	assert.False(t, empty)
	assert.Equal(t, 1234, acc.Total())
	assert.Equal(t, []string{"Showing 1,234"}, sink.got)
}

func TestFull_ZeroIsEmpty(t *testing.T) {
	acc := New("Showing %d", "en", nil)

	assert.True(t, acc.Full(0))
	assert.True(t, acc.Full(-3), "negative totals are clamped")
	assert.Equal(t, 0, acc.Total())
}

func TestAppend_KeepsTotal(t *testing.T) {
	sink := &labels{}
	acc := New("Showing %d", "en", sink)
	acc.Full(50)

	acc.Append(20)
	acc.Append(20)

	assert.Equal(t, 50, acc.Total())
	assert.Equal(t, []string{"Showing 50", "Showing 50", "Showing 50"}, sink.got)
}

func TestLabel_UsesLocale(t *testing.T) {
	acc := New("%d Treffer", "de", nil)
	acc.Full(1234567)

	assert.Equal(t, "1.234.567 Treffer", acc.Label())
}

func TestNew_BadLanguageFallsBack(t *testing.T) {
	acc := New("Showing %d", "not a tag!", nil)
	acc.Full(1000)

	assert.Equal(t, "Showing 1,000", acc.Label())
}
