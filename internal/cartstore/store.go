// Package cartstore holds a shopper's in-progress selection and keeps it in
// durable local storage across restarts.
package cartstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

// StorageKey is the fixed key the serialized cart lives under.
const StorageKey = "storefront.cart"

// ErrPersist wraps storage failures. The in-memory change is kept when it is returned.
var ErrPersist = errors.New("cart persist failed")

// ErrQuantityLimit is returned when a line would exceed domain.MaxLineQuantity.
var ErrQuantityLimit = fmt.Errorf("quantity above %d", domain.MaxLineQuantity)

// Storage is a durable byte store keyed by name. Load returns (nil, nil) when
// the key has never been written.
type Storage interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
}

// Item is what a product view hands to Add.
type Item struct {
	ProductID      string
	Name           string
	UnitPriceCents int64
	ImageRef       string
}

type Line = domain.CartLine

// Store is the cart. One Store may be shared by several concurrent callers.
type Store struct {
	mu      sync.Mutex
	lines   []Line
	storage Storage
	logger  zerolog.Logger
}

// Open rehydrates a Store from storage. Unreadable or invalid saved carts are
// discarded and the store starts empty; Open itself never fails.
func Open(storage Storage, logger *zerolog.Logger) *Store {
	lg := zerolog.Nop()
	if logger != nil {
		lg = logging.Component(*logger, "cartstore")
	}
	s := &Store{storage: storage, logger: lg}
	s.lines = s.restore()
	return s
}

func (s *Store) restore() []Line {
	raw, err := s.storage.Load(StorageKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cart load failed, starting empty")
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	lines, err := decode(raw)
	if err != nil {
		s.logger.Warn().Err(err).Int("bytes", len(raw)).Msg("discarding corrupt saved cart")
		if err := s.storage.Save(StorageKey, encode(nil)); err != nil {
			s.logger.Warn().Err(err).Msg("cart reset failed")
		}
		return nil
	}
	return lines
}

// Add increments the line for item.ProductID by one, or appends a new line
// with quantity 1. Stock is not checked here.
func (s *Store) Add(item Item) (Line, error) {
	if item.ProductID == "" {
		return Line{}, errors.New("product id required")
	}
	if item.UnitPriceCents < 0 || item.UnitPriceCents > domain.MaxUnitPriceCents {
		return Line{}, fmt.Errorf("price %d out of range", item.UnitPriceCents)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(item.ProductID); i >= 0 {
		if s.lines[i].Quantity >= domain.MaxLineQuantity {
			return s.lines[i], ErrQuantityLimit
		}
		s.lines[i].Quantity++
		return s.lines[i], s.persist()
	}
	line := Line{
		ProductID:      item.ProductID,
		Name:           item.Name,
		UnitPriceCents: item.UnitPriceCents,
		ImageRef:       item.ImageRef,
		Quantity:       1,
	}
	s.lines = append(s.lines, line)
	return line, s.persist()
}

// Remove deletes the line for productID. Absent ids are a no-op.
func (s *Store) Remove(productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(productID)
}

// UpdateQuantity sets an absolute quantity. Anything below 1 removes the line;
// unknown ids are ignored.
func (s *Store) UpdateQuantity(productID string, quantity int) error {
	if quantity > domain.MaxLineQuantity {
		return ErrQuantityLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		return s.removeLocked(productID)
	}
	i := s.index(productID)
	if i < 0 {
		return nil
	}
	s.lines[i].Quantity = quantity
	return s.persist()
}

// Clear empties the cart.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	return s.persist()
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TotalItems(s.lines)
}

func (s *Store) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TotalPrice(s.lines)
}

// TotalItems sums quantities.
func TotalItems(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// TotalPrice sums unit price times quantity, in cents.
func TotalPrice(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.SubtotalCents()
	}
	return total
}

func (s *Store) removeLocked(productID string) error {
	i := s.index(productID)
	if i < 0 {
		return nil
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return s.persist()
}

func (s *Store) index(productID string) int {
	for i, l := range s.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) persist() error {
	if err := s.storage.Save(StorageKey, encode(s.lines)); err != nil {
		s.logger.Error().Err(err).Int("lines", len(s.lines)).Msg("cart persist failed")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func encode(lines []Line) []byte {
	if lines == nil {
		lines = []Line{}
	}
	// Marshalling a slice of plain structs cannot fail.
	b, _ := json.Marshal(lines)
	return b
}

func decode(raw []byte) ([]Line, error) {
	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, err
	}
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return lines, nil
}

// ValidateLines reports the first line that could not have been produced by
// the Store's own mutations.
func ValidateLines(lines []Line) error {
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			return errors.New("line without product id")
		}
		if l.Quantity < 1 || l.Quantity > domain.MaxLineQuantity {
			return fmt.Errorf("line %s: quantity %d", l.ProductID, l.Quantity)
		}
		if l.UnitPriceCents < 0 || l.UnitPriceCents > domain.MaxUnitPriceCents {
			return fmt.Errorf("line %s: price %d out of range", l.ProductID, l.UnitPriceCents)
		}
		if _, dup := seen[l.ProductID]; dup {
			return fmt.Errorf("duplicate line %s", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}
