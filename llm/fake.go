package llm

import (
	"context"
	"encoding/json"
)

// FakeClient is a scripted Client double for agent node tests, so they
// don't depend on a live API key or network access.
type FakeClient struct {
	TextResponses       []string
	StructuredResponses []any

	textCalls       int
	structuredCalls int

	Invocations []FakeInvocation
}

// FakeInvocation records one call made against a FakeClient for assertions.
type FakeInvocation struct {
	System string
	User   string
}

func (f *FakeClient) Invoke(_ context.Context, system, user string) (string, error) {
	f.Invocations = append(f.Invocations, FakeInvocation{System: system, User: user})
	if f.textCalls >= len(f.TextResponses) {
		return "", nil
	}
	resp := f.TextResponses[f.textCalls]
	f.textCalls++
	return resp, nil
}

func (f *FakeClient) InvokeStructured(_ context.Context, system, user string, _ map[string]any, out any) error {
	f.Invocations = append(f.Invocations, FakeInvocation{System: system, User: user})
	if f.structuredCalls >= len(f.StructuredResponses) {
		return nil
	}
	resp := f.StructuredResponses[f.structuredCalls]
	f.structuredCalls++

	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
