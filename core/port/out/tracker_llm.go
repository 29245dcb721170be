package out

import "context"

// TextGenerator produces a JSON document from a prompt. Implementations may
// return malformed text; callers must validate the output.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}
