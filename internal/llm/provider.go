package llm

import (
	"context"
	"encoding/json"
)

// Request is one model invocation. Schema, when set, is a JSON schema the
// response must conform to; nil means unconstrained free text. UseCache
// and Compress are honored by the Client and ignored by providers.
type Request struct {
	System      string
	User        string
	Schema      json.RawMessage
	Temperature float32
	UseCache    bool
	Compress    bool
}

// Provider is a single generation endpoint. Implementations classify
// their transport failures into the package error taxonomy and perform
// no retries of their own; retry and fallback policy lives in the Client.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// CredentialFunc supplies an API key at call time. Reading the credential
// per call means a rotated key takes effect on the next request.
type CredentialFunc func() string

// StaticCredential wraps a fixed key as a CredentialFunc.
func StaticCredential(key string) CredentialFunc {
	return func() string { return key }
}
