package server

// Config is the HTTP API configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// BodyLimit caps request bodies in bytes. Zero allows attachments up to
	// the composer limit plus multipart overhead.
	BodyLimit int
}
