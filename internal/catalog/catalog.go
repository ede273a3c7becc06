// Package catalog owns the vending machine state: the item catalog, the
// notification channel reference, and the purchase rules. It is the only
// writer of the persistent store; every mutation persists before returning.
package catalog

import (
	"sort"
	"sync"

	"github.com/eliseohh/vendobot/internal/store"
)

// Service wraps the root document with an operator check and a lock. The
// lock covers each read-modify-write-persist sequence so the service stays
// correct even if the dispatch layer delivers events concurrently.
type Service struct {
	mu         sync.Mutex
	doc        *store.Document
	path       string
	operatorID int64
}

// Entry is a catalog item together with its name, for listing.
type Entry struct {
	Name string
	Item store.Item
}

func NewService(doc *store.Document, path string, operatorID int64) *Service {
	return &Service{doc: doc, path: path, operatorID: operatorID}
}

func (s *Service) authorize(callerID int64) error {
	if callerID != s.operatorID {
		return ErrPermissionDenied
	}
	return nil
}

// AddItem inserts or silently overwrites the entry for name. Stock 0 at add
// time means unlimited; the flag is stored explicitly so a finite item that
// sells down to zero stays sold out.
func (s *Service) AddItem(callerID int64, name, content string, stock int) error {
	if err := s.authorize(callerID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Items[name] = store.Item{
		Content:   content,
		Stock:     stock,
		Unlimited: stock == 0,
	}
	return store.Save(s.path, s.doc)
}

// DeleteItem removes the entry for name. A missing name reports
// ErrItemNotFound and leaves the catalog untouched.
func (s *Service) DeleteItem(callerID int64, name string) error {
	if err := s.authorize(callerID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Items[name]; !ok {
		return ErrItemNotFound
	}
	delete(s.doc.Items, name)
	return store.Save(s.path, s.doc)
}

// SetChannel overwrites the achievement chat id.
func (s *Service) SetChannel(callerID, channelID int64) error {
	if err := s.authorize(callerID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.ChannelID = &channelID
	return store.Save(s.path, s.doc)
}

// Channel reports the configured achievement chat id, if any.
func (s *Service) Channel() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.ChannelID == nil {
		return 0, false
	}
	return *s.doc.ChannelID, true
}

// Get looks up a single item by name.
func (s *Service) Get(name string) (store.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.doc.Items[name]
	return it, ok
}

// Items lists the catalog sorted by name, so the panel view is the same
// every time it is rendered from the same catalog.
func (s *Service) Items() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.doc.Items))
	for name, it := range s.doc.Items {
		entries = append(entries, Entry{Name: name, Item: it})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Purchase runs one purchase attempt and returns the content to deliver.
// For finite items the stock decrement is persisted here, before delivery is
// attempted; a later delivery failure does not refund it.
func (s *Service) Purchase(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.doc.Items[name]
	if !ok {
		return "", ErrItemNotFound
	}

	if !it.Unlimited {
		if it.Stock <= 0 {
			return "", ErrOutOfStock
		}
		it.Stock--
		s.doc.Items[name] = it
		if err := store.Save(s.path, s.doc); err != nil {
			return "", err
		}
	}
	return it.Content, nil
}
