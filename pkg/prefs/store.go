// Package prefs is the persistence port for user preferences and secrets.
// The UI writes preferences (API key, model, voice settings) and the gateway
// reads them back through a Store, which keeps both sides testable without a
// real storage backend.
package prefs

import "errors"

// Well-known preference keys.
const (
	KeyPrimaryAPIKey  = "openrouter_api_key"
	KeyFallbackAPIKey = "gemini_api_key"
	KeyModel          = "model"
	KeyTranslateTo    = "translate_to"
	KeyVoiceLanguage  = "voice_language"
	KeyVoiceGender    = "voice_gender"
	KeyVoiceSpeed     = "voice_speed"
	KeyChatHead       = "chat_head"
)

// Store reads and writes string preferences.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set stores value under key.
	Set(key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// ErrReadOnly is returned by stores that cannot be written.
var ErrReadOnly = errors.New("preference store is read-only")

// Chain reads from the first store holding a key and writes to the first store
// that accepts the write.
type Chain []Store

func (c Chain) Get(key string) (string, bool, error) {
	var firstErr error
	for _, s := range c {
		v, ok, err := s.Get(key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, firstErr
}

func (c Chain) Set(key, value string) error {
	var lastErr error = ErrReadOnly
	for _, s := range c {
		if err := s.Set(key, value); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (c Chain) Delete(key string) error {
	var errs []error
	for _, s := range c {
		if err := s.Delete(key); err != nil && !errors.Is(err, ErrReadOnly) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
