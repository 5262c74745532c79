// Package credential resolves which API key and model apply to a request.
// Resolution never touches the network; the gateway runs it before any I/O.
package credential

import (
	"errors"
	"strings"

	"github.com/papercomputeco/parley/pkg/prefs"
)

// ErrNoCredential is returned when no API key can be resolved.
var ErrNoCredential = errors.New("no API credential configured")

// Source names where a resolved key came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceStored   Source = "stored"
	SourceConfig   Source = "config"
)

// Credential is an API key together with the model it should be used with.
type Credential struct {
	Key    string
	Model  string
	Source Source
}

// Explicit carries values supplied directly by the caller for one request.
// Empty fields fall through to stored and configured values.
type Explicit struct {
	Key   string
	Model string
}

// Resolver resolves credentials from explicit values, a preference store and
// configured defaults, in that order.
type Resolver struct {
	store        prefs.Store
	keyPref      string
	modelPref    string
	defaultKey   string
	defaultModel string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStore sets the store holding the persisted key and model preference.
func WithStore(s prefs.Store) Option {
	return func(r *Resolver) { r.store = s }
}

// WithPreferenceKeys overrides the preference names for the key and model.
// Pass an empty modelPref to ignore stored models.
func WithPreferenceKeys(keyPref, modelPref string) Option {
	return func(r *Resolver) {
		r.keyPref = keyPref
		r.modelPref = modelPref
	}
}

// WithDefaults sets the configured key and model used when nothing else resolves.
func WithDefaults(key, model string) Option {
	return func(r *Resolver) {
		r.defaultKey = key
		r.defaultModel = model
	}
}

// NewResolver creates a Resolver for the primary provider preferences.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		keyPref:   prefs.KeyPrimaryAPIKey,
		modelPref: prefs.KeyModel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the effective credential or ErrNoCredential.
// Store read errors are treated as a missing value so a broken keyring cannot
// block a configured key.
func (r *Resolver) Resolve(explicit Explicit) (Credential, error) {
	cred := Credential{Model: r.resolveModel(explicit.Model)}

	if k := strings.TrimSpace(explicit.Key); k != "" {
		cred.Key, cred.Source = k, SourceExplicit
		return cred, nil
	}
	if k := r.stored(r.keyPref); k != "" {
		cred.Key, cred.Source = k, SourceStored
		return cred, nil
	}
	if k := strings.TrimSpace(r.defaultKey); k != "" {
		cred.Key, cred.Source = k, SourceConfig
		return cred, nil
	}
	return cred, ErrNoCredential
}

func (r *Resolver) resolveModel(explicit string) string {
	if m := strings.TrimSpace(explicit); m != "" {
		return m
	}
	if m := r.stored(r.modelPref); m != "" {
		return m
	}
	return r.defaultModel
}

func (r *Resolver) stored(key string) string {
	if r.store == nil || key == "" {
		return ""
	}
	v, ok, err := r.store.Get(key)
	if err != nil || !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
