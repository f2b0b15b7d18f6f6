package models

import "sync"

// Product is a catalogue entry.
type Product struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`

	created bool
}

func (p *Product) WasRecentlyCreated() bool { return p.created }

// ProductStore keeps products in memory.
type ProductStore struct {
	mu       sync.RWMutex
	products []Product
}

func NewProductStore(products ...Product) *ProductStore {
	s := &ProductStore{}
	for _, p := range products {
		s.Create(p)
	}
	return s
}

func (s *ProductStore) All() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Product(nil), s.products...)
}

func (s *ProductStore) Find(id int) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// Create stores p under the next id and marks it as recently created.
func (s *ProductStore) Create(p Product) *Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = len(s.products) + 1
	s.products = append(s.products, p)
	p.created = true
	return &p
}
