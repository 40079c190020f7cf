// Package genx is a small model-agnostic layer over chat LLM providers.
//
// A ModelContext carries system prompts, a message history (text and image
// parts), and tools. A Generator answers it by calling a single FuncTool whose
// argument schema is derived from a Go struct, so every model reply arrives as
// typed, validated JSON:
//
//	tool := genx.MustNewFuncTool[Answer]("respond", "Reply to the user.")
//	var mcb genx.ModelContextBuilder
//	mcb.PromptText("system", "You are a cooking assistant.")
//	mcb.UserText("", "is my steak done?")
//	mcb.UserBlob("", "image/jpeg", frame)
//	_, call, err := gen.Invoke(ctx, "gpt-4o", mcb.Build(), tool)
//	ans, err := genx.Decode[Answer](call)
//
// OpenAIGenerator and GeminiGenerator are the provider implementations;
// package generators routes model names to them.
package genx
