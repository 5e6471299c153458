// Package llm defines the provider boundary: the four completion calls an
// instrumented client forwards, the pull-based Stream they return and a
// provider-agnostic error type.
//
// Request and response values use the OpenAI-compatible wire shapes from
// llm/schema so they can be forwarded untouched. Implementations live under
// llm/providers.
package llm
