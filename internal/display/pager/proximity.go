package pager

// ScrollMetrics is a read-out of the scrollable results area.
type ScrollMetrics struct {
	ScrollTop    float64 `json:"scroll_top"`
	ScrollHeight float64 `json:"scroll_height"`
	Height       float64 `json:"height"`
}

// Proportion is how far down the area has been scrolled, as a fraction of its
// scroll height. An area with no height reports 0.
func (m ScrollMetrics) Proportion() float64 {
	if m.ScrollHeight <= 0 {
		return 0
	}
	return m.ScrollTop / m.ScrollHeight
}

// Remaining is the distance, in CSS pixels, between the scroll position and
// the bottom of the scrollable content.
func (m ScrollMetrics) Remaining() float64 {
	return m.ScrollHeight - m.ScrollTop
}

// Trigger holds the thresholds of the proximity predicate.
type Trigger struct {
	Proportion float64
	Remaining  float64
}

// DefaultTrigger fires past 70% of the content or within 800px of its end.
func DefaultTrigger() Trigger {
	return Trigger{Proportion: 0.7, Remaining: 800}
}

// Fires reports whether the scroll position is close enough to the end of the
// content to prefetch the next page. The proportion == height clause only
// holds in degenerate layouts, such as a zero-height viewport at the top.
func (t Trigger) Fires(m ScrollMetrics) bool {
	proportion := m.Proportion()
	return proportion > t.Proportion ||
		proportion == m.Height ||
		m.Remaining() < t.Remaining
}
