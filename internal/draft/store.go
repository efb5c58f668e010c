// Package draft persists in-progress form values between visits.
//
// Drafts are a convenience cache, not an authoritative record: they are keyed
// per form, refreshed on every change and removed after a successful
// submission.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/faciam-dev/formportal/pkg/formschema"
)

// KeyPrefix is prepended to a form id to build its draft key.
const KeyPrefix = "form_draft_"

// Key returns the draft key for a form.
func Key(formID string) string { return KeyPrefix + formID }

// Store is a minimal key-value store for serialized drafts.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ErrCorrupt is returned by Load when a stored draft cannot be decoded.
var ErrCorrupt = errors.New("draft corrupt")

// Load reads and decodes the draft for formID.
func Load(ctx context.Context, s Store, formID string) (formschema.Values, bool, error) {
	b, ok, err := s.Get(ctx, Key(formID))
	if err != nil || !ok {
		return nil, false, err
	}
	var v formschema.Values
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return v, true, nil
}

// Save encodes values and stores them as the draft for formID.
func Save(ctx context.Context, s Store, formID string, values formschema.Values) error {
	b, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return s.Set(ctx, Key(formID), b)
}

// Remove deletes the draft for formID.
func Remove(ctx context.Context, s Store, formID string) error {
	return s.Delete(ctx, Key(formID))
}

type namespaced struct {
	Store
	prefix string
}

// Namespace scopes every key of s under ns, so one backing store can hold
// drafts for many browsers.
func Namespace(s Store, ns string) Store {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return s
	}
	return &namespaced{Store: s, prefix: ns + ":"}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.Store.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.Store.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.Store.Delete(ctx, n.prefix+key)
}
