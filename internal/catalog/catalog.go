// Package catalog implements the browse side of the marketplace: read-only
// queries over active listings plus the per-sender filter and pagination
// state used while a sender pages through results.
package catalog

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/carbazar/go-car-market/internal/domain"
	"github.com/carbazar/go-car-market/internal/repo"
)

// Page is one slice of catalog results with pagination metadata.
type Page struct {
	Ads    []domain.Ad
	Total  int64
	Offset int
	Limit  int
}

// Browser runs catalog queries against the entity store.
type Browser struct {
	DB *gorm.DB
	// PageSize is the number of listings per page (default 5).
	PageSize int
}

// NewBrowser constructs a Browser with the default page size.
func NewBrowser(db *gorm.DB) *Browser {
	return &Browser{DB: db, PageSize: 5}
}

// Find returns one page of active listings matching the filter.
func (b *Browser) Find(ctx context.Context, f repo.AdFilter, offset int) (*Page, error) {
	limit := b.PageSize
	if limit <= 0 {
		limit = 5
	}
	total, err := repo.CountActiveAds(ctx, b.DB, f)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &Page{Ads: []domain.Ad{}, Limit: limit}, nil
	}
	ads, err := repo.ListActiveAds(ctx, b.DB, f, limit, offset)
	if err != nil {
		return nil, err
	}
	return &Page{Ads: ads, Total: total, Offset: offset, Limit: limit}, nil
}

// session is one sender's browse state.
type session struct {
	filter repo.AdFilter
	offset int
}

// SessionStore keeps each sender's current filter criteria and page offset
// between messages. Purely in-memory; losing it only resets the browse view.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionStore constructs an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*session)}
}

// Filter returns the sender's current criteria (zero value when unset).
func (s *SessionStore) Filter(sender string) repo.AdFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[sender]; ok {
		return st.filter
	}
	return repo.AdFilter{}
}

// SetFilter replaces the sender's criteria and rewinds to the first page.
func (s *SessionStore) SetFilter(sender string, f repo.AdFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sender] = &session{filter: f}
}

// Offset returns the sender's current page offset.
func (s *SessionStore) Offset(sender string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[sender]; ok {
		return st.offset
	}
	return 0
}

// Advance moves the sender's offset forward by pageSize and returns the new
// offset.
func (s *SessionStore) Advance(sender string, pageSize int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sender]
	if !ok {
		st = &session{}
		s.sessions[sender] = st
	}
	st.offset += pageSize
	return st.offset
}

// Reset drops the sender's browse state entirely.
func (s *SessionStore) Reset(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sender)
}
