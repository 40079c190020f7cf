package genx

import (
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func TestOpenAIGenerator_UserMessageWithImage(t *testing.T) {
	g := &OpenAIGenerator{Model: "gpt-4o"}
	msg := &Message{
		Role: RoleUser,
		Payload: Contents{
			Text("what is in the pan?"),
			&Blob{MIMEType: "image/jpeg", Data: []byte{1, 2}},
		},
	}
	mp, err := g.convUserMessage(msg)
	if err != nil {
		t.Fatalf("convUserMessage() error = %v", err)
	}
	parts := mp.OfUser.Content.OfArrayOfContentParts
	if len(parts) != 2 {
		t.Fatalf("len(parts) = %d, want 2", len(parts))
	}
	if parts[0].OfText == nil || parts[0].OfText.Text != "what is in the pan?" {
		t.Errorf("parts[0] = %+v", parts[0])
	}
	if parts[1].OfImageURL == nil || parts[1].OfImageURL.ImageURL.URL != "data:image/jpeg;base64,AQI=" {
		t.Errorf("parts[1] = %+v", parts[1])
	}
}

func TestOpenAIGenerator_TextOnly(t *testing.T) {
	g := &OpenAIGenerator{Model: "m"}
	mp, err := g.convUserMessage(&Message{Role: RoleUser, Payload: Contents{Text("hi")}})
	if err != nil {
		t.Fatal(err)
	}
	if mp.OfUser.Content.OfString.Value != "hi" {
		t.Errorf("content = %+v", mp.OfUser.Content)
	}

	g.SupportTextOnly = true
	_, err = g.convUserMessage(&Message{Role: RoleUser, Payload: Contents{&Blob{MIMEType: "image/png"}}})
	if err == nil {
		t.Fatal("expected error for blob on text-only model")
	}
}

func TestOpenAIGenerator_UnsupportedBlob(t *testing.T) {
	g := &OpenAIGenerator{Model: "m"}
	_, err := g.convUserMessage(&Message{Role: RoleUser, Payload: Contents{&Blob{MIMEType: "video/mp4"}}})
	if err == nil {
		t.Fatal("expected unsupported blob error")
	}
}

func TestFormatOpenAISchema(t *testing.T) {
	s, err := jsonschema.For[struct {
		Reply    string `json:"reply"`
		Optional string `json:"optional,omitempty"`
	}](nil)
	if err != nil {
		t.Fatal(err)
	}
	out := FormatOpenAISchema(s)
	if len(out.Required) != 2 {
		t.Errorf("Required = %v, want both fields", out.Required)
	}
	if out.AdditionalProperties == nil || out.AdditionalProperties.Not == nil {
		t.Error("additionalProperties must be false")
	}
}
