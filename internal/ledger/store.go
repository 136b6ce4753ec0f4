// Package ledger is the bank core: it loads the bank document from local storage, enforces the
// banking rules and writes the whole document back after every change.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rongwang/xmlbank/internal/document"
	"github.com/rongwang/xmlbank/internal/repository"
	"github.com/rongwang/xmlbank/internal/utils"
)

// DefaultDataKey is the storage key holding the bank document.
const DefaultDataKey = "bankData"

const dateLayout = "2006-01-02"

// Store owns the bank document in a repository. Every operation opens the stored text, works on
// the parsed copy and commits once, all under one lock, so no half-applied change is ever written.
type Store struct {
	mu     sync.Mutex
	repo   repository.Repository
	key    string
	reseed bool
	now    func() time.Time
	log    *utils.Logger
}

// Option configures a Store
type Option func(*Store)

// WithDataKey changes the storage key of the document
func WithDataKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithClock replaces time.Now for ids and transaction dates
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger; the default discards output
func WithLogger(l *utils.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithReseedOnCorrupt makes Open replace an unreadable document with a fresh seed after copying
// the bad text to "<key>.corrupt". Without it Open fails with ErrCorruptDocument.
func WithReseedOnCorrupt(enabled bool) Option {
	return func(s *Store) { s.reseed = enabled }
}

// NewStore creates a Store on top of repo
func NewStore(repo repository.Repository, opts ...Option) *Store {
	s := &Store{
		repo: repo,
		key:  DefaultDataKey,
		now:  time.Now,
		log:  utils.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is one opened copy of the bank document. Changes to it are invisible to others
// until it is committed.
type Snapshot struct {
	*document.Document
	base string
}

// Open loads the document, seeding the store on first use.
func (s *Store) Open(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open(ctx)
}

// Commit writes the whole snapshot back. It fails with ErrStaleDocument, writing nothing, when
// the stored text is no longer the text the snapshot was opened from.
func (s *Store) Commit(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, snap)
}

func (s *Store) open(ctx context.Context) (*Snapshot, error) {
	raw, found, err := s.repo.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read bank document: %w", err)
	}
	if !found {
		if raw, err = s.seed(ctx); err != nil {
			return nil, err
		}
	}

	doc, err := document.Parse(raw)
	if err != nil {
		if !s.reseed {
			s.log.Error("bank document under %q is unreadable: %v", s.key, err)
			return nil, wrapError(CodeCorruptDocument, ErrCorruptDocument.Message, err)
		}
		return s.reseedCorrupt(ctx, raw, err)
	}

	return &Snapshot{Document: doc, base: raw}, nil
}

// seed writes the demo document unless another writer got there first, and returns whatever
// text ends up stored.
func (s *Store) seed(ctx context.Context) (string, error) {
	seed, err := document.Serialize(document.Seed())
	if err != nil {
		return "", err
	}

	var raw string
	err = s.repo.Update(ctx, s.key, func(cur string, found bool) (string, error) {
		if found {
			raw = cur
			return "", repository.ErrSkipWrite
		}
		raw = seed
		return seed, nil
	})
	if err != nil {
		return "", fmt.Errorf("seed bank document: %w", err)
	}
	if raw == seed {
		s.log.Info("seeded bank document under %q", s.key)
	}
	return raw, nil
}

func (s *Store) reseedCorrupt(ctx context.Context, bad string, cause error) (*Snapshot, error) {
	s.log.Error("bank document under %q is unreadable, reseeding: %v", s.key, cause)

	if err := s.repo.Put(ctx, s.key+".corrupt", bad); err != nil {
		return nil, fmt.Errorf("back up corrupt bank document: %w", err)
	}

	doc := document.Seed()
	seed, err := document.Serialize(doc)
	if err != nil {
		return nil, err
	}
	err = s.repo.Update(ctx, s.key, func(cur string, found bool) (string, error) {
		if found && cur != bad {
			return "", ErrStaleDocument
		}
		return seed, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reseed bank document: %w", err)
	}

	return &Snapshot{Document: doc, base: seed}, nil
}

func (s *Store) commit(ctx context.Context, snap *Snapshot) error {
	raw, err := document.Serialize(snap.Document)
	if err != nil {
		return err
	}

	err = s.repo.Update(ctx, s.key, func(cur string, found bool) (string, error) {
		if !found || cur != snap.base {
			return "", ErrStaleDocument
		}
		return raw, nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleDocument) {
			s.log.Warn("rejected commit of a stale bank document under %q", s.key)
			return err
		}
		return fmt.Errorf("commit bank document: %w", err)
	}

	snap.base = raw
	return nil
}

// today is the UTC calendar day used to date new transactions
func (s *Store) today() string {
	return s.now().UTC().Format(dateLayout)
}

// nextID derives a fresh id from the clock, stepping past ids already in use
func (s *Store) nextID(doc *document.Document) int64 {
	id := s.now().UnixMilli()
	if max := doc.MaxUserID(); id <= max {
		id = max + 1
	}
	return id
}
