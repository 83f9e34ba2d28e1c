package models

import "context"

// DummyLLM is a canned-response model for tests.
type DummyLLM struct {
	Response string
	Err      error
	Prompts  []string // prompts seen, in call order
}

func (d *DummyLLM) Generate(_ context.Context, prompt string) (string, error) {
	d.Prompts = append(d.Prompts, prompt)
	if d.Err != nil {
		return "", d.Err
	}
	return d.Response, nil
}

var _ Agent = (*DummyLLM)(nil)
