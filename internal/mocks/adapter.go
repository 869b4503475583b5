package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/castpost/castpost-api/internal/credential"
	"github.com/castpost/castpost-api/internal/publish"
)

// Adapter is a scripted publish.Adapter that records its calls.
type Adapter struct {
	mu       sync.Mutex
	name     string
	postID   string
	err      error
	calls    int
	contents []publish.Content
}

// NewAdapter creates an adapter that succeeds with the given post ID.
func NewAdapter(name, postID string) *Adapter {
	return &Adapter{name: name, postID: postID}
}

// Fail makes every subsequent Publish call return err.
func (a *Adapter) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// Calls reports how many times Publish was invoked.
func (a *Adapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Contents returns the content passed to each Publish call, in order.
func (a *Adapter) Contents() []publish.Content {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]publish.Content, len(a.contents))
	copy(out, a.contents)
	return out
}

// Name implements publish.Adapter.
func (a *Adapter) Name() string { return a.name }

// Publish implements publish.Adapter.
func (a *Adapter) Publish(ctx context.Context, cred *credential.Credential, content publish.Content) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.contents = append(a.contents, content)
	if a.err != nil {
		return "", a.err
	}
	return a.postID, nil
}

// CredentialStore is a scripted credential.Store.
type CredentialStore struct {
	mu    sync.Mutex
	creds map[uuid.UUID]*credential.Credential
	errs  map[uuid.UUID]error
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		creds: make(map[uuid.UUID]*credential.Credential),
		errs:  make(map[uuid.UUID]error),
	}
}

// Grant makes GetValidToken return cred for the platform.
func (s *CredentialStore) Grant(platformID uuid.UUID, cred *credential.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[platformID] = cred
}

// Deny makes GetValidToken return err for the platform.
func (s *CredentialStore) Deny(platformID uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[platformID] = err
}

// GetValidToken implements credential.Store.
func (s *CredentialStore) GetValidToken(ctx context.Context, platformID uuid.UUID) (*credential.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[platformID]; ok {
		return nil, err
	}
	if cred, ok := s.creds[platformID]; ok {
		return cred, nil
	}
	return nil, credential.ErrTokenMissing
}
