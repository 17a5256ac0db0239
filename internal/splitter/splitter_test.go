package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collapse(items []Item) []Item {
	var out []Item
	for _, it := range items {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Kind == it.Kind && (it.Kind == PlainDelta || it.Kind == ThinkDelta) {
				last.Text += it.Text
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

func TestTagSplitAcrossChunks(t *testing.T) {
	s := New(false)
	var items []Item
	items = append(items, s.Feed("abc<thi")...)
	items = append(items, s.Feed("nk>hello</thin")...)
	items = append(items, s.Feed("k>world")...)
	items = append(items, s.Close()...)

	items = collapse(items)
	require.Len(t, items, 4)
	assert.Equal(t, Item{Kind: PlainDelta, Text: "abc"}, items[0])
	assert.Equal(t, Item{Kind: ThinkDelta, Text: "hello"}, items[1])
	assert.Equal(t, ThinkComplete, items[2].Kind)
	assert.Equal(t, Item{Kind: PlainDelta, Text: "world"}, items[3])
}

func TestInjectedThink(t *testing.T) {
	s := New(true)
	var items []Item
	items = append(items, s.Feed("reasoning here</think>answer")...)
	items = append(items, s.Close()...)

	items = collapse(items)
	require.Len(t, items, 3)
	assert.Equal(t, Item{Kind: ThinkDelta, Text: "reasoning here"}, items[0])
	assert.Equal(t, ThinkComplete, items[1].Kind)
	assert.Equal(t, Item{Kind: PlainDelta, Text: "answer"}, items[2])
}

func TestIdempotentAcrossRechunkings(t *testing.T) {
	full := "before <think>reasoning across many words</think> after the fact"

	chunkings := [][]string{
		{full},
		splitEvery(full, 1),
		splitEvery(full, 3),
		splitEvery(full, 7),
		{"before ", "<thi", "nk>reasoning", " across many words</th", "ink> after", " the fact"},
	}

	var reference []Item
	for i, chunks := range chunkings {
		s := New(false)
		var items []Item
		for _, c := range chunks {
			items = append(items, s.Feed(c)...)
		}
		items = append(items, s.Close()...)
		items = collapse(items)

		if i == 0 {
			reference = items
			continue
		}
		assert.Equal(t, reference, items, "chunking %d diverged", i)
	}
}

func splitEvery(s string, n int) []string {
	var out []string
	for len(s) > 0 {
		if len(s) <= n {
			out = append(out, s)
			break
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}

func TestNoPartialTagLeaksAcrossFeed(t *testing.T) {
	s := New(false)
	items := s.Feed("hello <th")
	for _, it := range items {
		assert.NotContains(t, it.Text, "<th")
	}
}

func TestEventPassthroughOrder(t *testing.T) {
	s := New(false)
	var items []Item
	items = append(items, s.Feed("plain text")...)
	items = append(items, s.Event("tool_call_start", map[string]any{"name": "x"})...)
	items = append(items, s.Close()...)

	require.GreaterOrEqual(t, len(items), 2)
	assert.Equal(t, PassthroughEvent, items[len(items)-1].Kind)
	assert.Equal(t, "tool_call_start", items[len(items)-1].EventType)
}
