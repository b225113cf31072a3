package llm

import "context"

const stubResponse = `{"technical":70,"communication":70,"completeness":70,"red_flags":[],"summary":"LLM stub"}`

// Stub returns a fixed grade. Used in local development and tests.
type Stub struct{}

func (Stub) Generate(ctx context.Context, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(stubResponse), nil
}
