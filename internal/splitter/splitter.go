// Package splitter turns an arbitrary-boundary stream of raw model text
// into a stream of semantic deltas that distinguish reasoning content
// (wrapped in <think>...</think>) from plain content, without ever
// emitting a partial tag: it accumulates into a pending buffer, emits only
// the portion that cannot be a tag prefix, and flushes on end-of-stream.
package splitter

import "strings"

const (
	openTag  = "<think>"
	closeTag = "</think>"
)

// State is the splitter's current parsing state.
type State int

const (
	// Undecided means no bytes have committed the stream to plain or think mode yet.
	Undecided State = iota
	InPlain
	InThink
)

// ItemKind identifies the variant of a Item.
type ItemKind int

const (
	PlainDelta ItemKind = iota
	ThinkDelta
	ThinkComplete
	PassthroughEvent
)

// Item is one output unit of the splitter.
type Item struct {
	Kind      ItemKind
	Text      string
	EventType string
	Payload   map[string]any
}

// Splitter is an incremental, idempotent-under-rechunking tag splitter.
//
// InjectThinkIfMissing makes the splitter treat text with no leading <think>
// tag as if it were entirely inside a think block, for models that omit the
// opening tag and rely on </think> alone to mark the reasoning/plain
// boundary.
type Splitter struct {
	state                State
	pending              string
	injectThinkIfMissing bool
}

// New creates a Splitter. When injectThinkIfMissing is true, input that does
// not open with <think> is treated as already inside a think block.
func New(injectThinkIfMissing bool) *Splitter {
	return &Splitter{
		state:                Undecided,
		injectThinkIfMissing: injectThinkIfMissing,
	}
}

// maxTagPrefix is the longest length a suffix of pending can have while still
// being a proper prefix of one of the two tags we scan for.
func maxTagPrefix(s string) int {
	longest := 0
	for _, tag := range []string{openTag, closeTag} {
		limit := len(tag) - 1
		if limit > len(s) {
			limit = len(s)
		}
		for k := limit; k > 0; k-- {
			if strings.HasSuffix(s, tag[:k]) {
				if k > longest {
					longest = k
				}
				break
			}
		}
	}
	return longest
}

// Feed accumulates a text chunk and returns the items it produces. Feed never
// emits a delta containing a full tag or a proper prefix of one at its
// trailing boundary: it withholds the ambiguous suffix for the next call.
func (s *Splitter) Feed(chunk string) []Item {
	s.pending += chunk
	return s.drain(false)
}

// Event passes a control event through unchanged, respecting delta ordering:
// any bytes accumulated so far that can be safely emitted are flushed first.
func (s *Splitter) Event(eventType string, payload map[string]any) []Item {
	items := s.drain(false)
	items = append(items, Item{Kind: PassthroughEvent, EventType: eventType, Payload: payload})
	return items
}

// Close flushes any remaining buffered bytes and, if still inside a think
// block, emits a final ThinkComplete. Call exactly once, after the final
// chunk.
func (s *Splitter) Close() []Item {
	items := s.drain(true)
	if s.state == InThink {
		items = append(items, Item{Kind: ThinkComplete})
		s.state = InPlain
	}
	return items
}

func (s *Splitter) drain(final bool) []Item {
	var items []Item

	for {
		switch s.state {
		case Undecided:
			if idx := strings.Index(s.pending, openTag); idx >= 0 {
				if idx > 0 {
					items = append(items, Item{Kind: PlainDelta, Text: s.pending[:idx]})
				}
				s.pending = s.pending[idx+len(openTag):]
				s.state = InThink
				continue
			}

			// No opening tag found yet. If what we have so far could still
			// grow into "<think>", wait for more bytes unless this is the
			// final flush. Deciding doesn't consume anything: the next
			// state's own branch re-scans the full buffer.
			if !final && len(s.pending) < len(openTag) && strings.HasPrefix(openTag, s.pending) {
				return items
			}

			if s.injectThinkIfMissing {
				s.state = InThink
			} else {
				s.state = InPlain
			}
			continue

		case InPlain:
			if idx := strings.Index(s.pending, openTag); idx >= 0 {
				if idx > 0 {
					items = append(items, Item{Kind: PlainDelta, Text: s.pending[:idx]})
				}
				s.pending = s.pending[idx+len(openTag):]
				s.state = InThink
				continue
			}

			keep := maxTagPrefix(s.pending)
			if final {
				keep = 0
			}
			emit := s.pending[:len(s.pending)-keep]
			if emit != "" {
				items = append(items, Item{Kind: PlainDelta, Text: emit})
			}
			s.pending = s.pending[len(emit):]
			return items

		case InThink:
			if idx := strings.Index(s.pending, closeTag); idx >= 0 {
				if idx > 0 {
					items = append(items, Item{Kind: ThinkDelta, Text: s.pending[:idx]})
				}
				items = append(items, Item{Kind: ThinkComplete})
				s.pending = s.pending[idx+len(closeTag):]
				s.state = InPlain
				continue
			}

			keep := maxTagPrefix(s.pending)
			if final {
				keep = 0
			}
			emit := s.pending[:len(s.pending)-keep]
			if emit != "" {
				items = append(items, Item{Kind: ThinkDelta, Text: emit})
			}
			s.pending = s.pending[len(emit):]
			return items
		}
	}
}
