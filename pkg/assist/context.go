package assist

import (
	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/memlog"
)

// contextBuilder renders the common sections of a handler's model context.
type contextBuilder struct {
	genx.ModelContextBuilder
}

func (b *contextBuilder) instruction(text string) {
	b.PromptText("instruction", text)
}

func (b *contextBuilder) knowledge(req *Request) error {
	if req.Knowledge.Len() == 0 {
		return nil
	}
	return b.Prompt("knowledge", "video_knowledge", req.Knowledge.Segments())
}

func (b *contextBuilder) memory(mem memlog.Snapshot) error {
	if len(mem) == 0 {
		return nil
	}
	return b.Prompt("memory", "memory", mem.Views())
}

func (b *contextBuilder) image(req *Request) {
	if len(req.Image) > 0 {
		b.UserBlob("camera", req.imageType(), req.Image)
	}
}

// input adds the utterance, or a description of the system event that
// triggered the request when there is none.
func (b *contextBuilder) input(req *Request) {
	switch {
	case req.Utterance != "":
		b.UserText("user", req.Utterance)
	case req.Event.Valid():
		b.UserText("event", "["+req.Event.String()+"] "+req.Event.Info().Description)
	default:
		b.UserText("event", "[no input]")
	}
}
