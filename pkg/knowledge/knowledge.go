// Package knowledge holds the video knowledge of a recipe: the reference
// cooking video cut into ordered segments, each with its transcript and
// descriptions extracted ahead of time.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// Segment is one cut of the reference video. Span is [startMs, endMs].
type Segment struct {
	Index                       int      `json:"index" yaml:"index"`
	Span                        [2]int64 `json:"segment" yaml:"segment,flow"`
	VideoTranscript             string   `json:"video_transcript" yaml:"video_transcript"`
	ProcedureDescription        string   `json:"procedure_description" yaml:"procedure_description"`
	VideoClipDescription        string   `json:"video_clip_description" yaml:"video_clip_description"`
	EnvironmentSoundDescription string   `json:"environment_sound_description" yaml:"environment_sound_description"`
}

func (s Segment) Start() int64 { return s.Span[0] }
func (s Segment) End() int64   { return s.Span[1] }

// Contains reports whether ms lies within the segment, bounds included.
func (s Segment) Contains(ms int64) bool {
	return s.Span[0] <= ms && ms <= s.Span[1]
}

// VideoKnowledge is a validated, read-only list of segments.
type VideoKnowledge struct {
	segments []Segment
	byIndex  map[int]int
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("knowledge: invalid video knowledge")

// New validates segs and returns the knowledge. Segment indices must be
// unique and strictly increasing, and every span must have 0 <= start <= end.
func New(segs []Segment) (*VideoKnowledge, error) {
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: no segments", ErrInvalid)
	}
	vk := &VideoKnowledge{
		segments: make([]Segment, len(segs)),
		byIndex:  make(map[int]int, len(segs)),
	}
	copy(vk.segments, segs)
	var errs []error
	for i, s := range vk.segments {
		if s.Span[0] < 0 || s.Span[0] > s.Span[1] {
			errs = append(errs, fmt.Errorf("%w: segment %d: span [%d, %d]", ErrInvalid, s.Index, s.Span[0], s.Span[1]))
		}
		if _, dup := vk.byIndex[s.Index]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate segment index %d", ErrInvalid, s.Index))
			continue
		}
		if i > 0 && s.Index <= vk.segments[i-1].Index {
			errs = append(errs, fmt.Errorf("%w: segment index %d out of order", ErrInvalid, s.Index))
		}
		vk.byIndex[s.Index] = i
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return vk, nil
}

// Parse decodes a JSON array of segments.
func Parse(data []byte) (*VideoKnowledge, error) {
	var segs []Segment
	if err := json.Unmarshal(data, &segs); err != nil {
		return nil, fmt.Errorf("knowledge: decode: %w", err)
	}
	return New(segs)
}

// Len returns the number of segments.
func (vk *VideoKnowledge) Len() int {
	if vk == nil {
		return 0
	}
	return len(vk.segments)
}

// Segments returns a copy of the segments in order.
func (vk *VideoKnowledge) Segments() []Segment {
	if vk == nil {
		return nil
	}
	out := make([]Segment, len(vk.segments))
	copy(out, vk.segments)
	return out
}

// Segment returns the segment with the given index.
func (vk *VideoKnowledge) Segment(index int) (Segment, bool) {
	if vk == nil {
		return Segment{}, false
	}
	i, ok := vk.byIndex[index]
	if !ok {
		return Segment{}, false
	}
	return vk.segments[i], true
}

// Has reports whether a segment with the given index exists.
func (vk *VideoKnowledge) Has(index int) bool {
	_, ok := vk.Segment(index)
	return ok
}

// SegmentAt returns the first segment whose span contains ms.
func (vk *VideoKnowledge) SegmentAt(ms int64) (Segment, bool) {
	if vk == nil {
		return Segment{}, false
	}
	for _, s := range vk.segments {
		if s.Contains(ms) {
			return s, true
		}
	}
	return Segment{}, false
}

// Filter keeps the indices that name a segment, preserving order and
// dropping duplicates. The result is never nil.
func (vk *VideoKnowledge) Filter(indices []int) []int {
	out := make([]int, 0, len(indices))
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if vk.Has(i) && !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

func (vk *VideoKnowledge) MarshalJSON() ([]byte, error) {
	return json.Marshal(vk.Segments())
}

// Query runs a jq expression over the segments in their JSON form and
// returns every result.
func (vk *VideoKnowledge) Query(ctx context.Context, expr string) ([]any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("knowledge: invalid jq expression %q: %w", expr, err)
	}
	b, err := json.Marshal(vk.Segments())
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(b, &input); err != nil {
		return nil, err
	}
	var out []any
	it := q.RunWithContext(ctx, input)
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("knowledge: jq: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
