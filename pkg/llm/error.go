// Package llm provides the internal representations of a parley conversation:
// messages, their attachments and the usage reported by providers.
package llm

// ErrorResponse represents an error returned by the parley HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
}
