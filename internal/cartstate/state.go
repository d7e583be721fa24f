package cartstate

import (
	"sync"

	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/types"
	"github.com/shopspring/decimal"
)

// Observer is notified after every cart mutation with a snapshot of the
// resulting state. Observers must not call back into the state.
type Observer interface {
	CartChanged(items []types.CartItem, selected []types.ItemKey)
}

// State is the session-scoped cart container: the item set plus the
// selection of items the shopper intends to purchase now. All mutations go
// through its methods; no two items ever share an identity key and every
// stored quantity is at least one.
type State struct {
	mu        sync.Mutex
	items     []types.CartItem
	selected  map[types.ItemKey]struct{}
	observers []Observer
}

// New returns an empty cart state.
func New() *State {
	return &State{selected: map[types.ItemKey]struct{}{}}
}

// Subscribe registers an observer for mutation notifications.
func (s *State) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// SetItems replaces the item set with the provided snapshot. Duplicate
// identity keys in the input are folded together by summing quantities.
// Selections pointing at keys no longer present are dropped.
func (s *State) SetItems(items []types.CartItem) {
	s.mu.Lock()
	folded := make([]types.CartItem, 0, len(items))
	index := map[types.ItemKey]int{}
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		key := item.Key()
		if pos, ok := index[key]; ok {
			folded[pos].Quantity += item.Quantity
			continue
		}
		index[key] = len(folded)
		folded = append(folded, item)
	}
	s.items = folded
	for key := range s.selected {
		if _, ok := index[key]; !ok {
			delete(s.selected, key)
		}
	}
	s.notifyLocked()
}

// AddItem merges the quantity into an existing line with the same identity
// key, or appends a new line.
func (s *State) AddItem(item types.CartItem) error {
	if item.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least one")
	}
	s.mu.Lock()
	key := item.Key()
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items[i].Quantity += item.Quantity
			s.notifyLocked()
			return nil
		}
	}
	s.items = append(s.items, item)
	s.notifyLocked()
	return nil
}

// UpdateItem sets the quantity of an existing line. Updates to zero or below
// are rejected and leave the stored quantity untouched.
func (s *State) UpdateItem(key types.ItemKey, quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least one")
	}
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items[i].Quantity = quantity
			s.notifyLocked()
			return nil
		}
	}
	s.mu.Unlock()
	return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
}

// RemoveItem deletes one line and any selection pointing at it.
func (s *State) RemoveItem(key types.ItemKey) {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	delete(s.selected, key)
	s.notifyLocked()
}

// RemoveItems deletes the provided lines, used after a checkout submits a
// subset of the cart.
func (s *State) RemoveItems(keys []types.ItemKey) {
	drop := make(map[types.ItemKey]struct{}, len(keys))
	for _, key := range keys {
		drop[key] = struct{}{}
	}
	s.mu.Lock()
	kept := s.items[:0]
	for _, item := range s.items {
		if _, gone := drop[item.Key()]; !gone {
			kept = append(kept, item)
		}
	}
	s.items = kept
	for key := range drop {
		delete(s.selected, key)
	}
	s.notifyLocked()
}

// ClearCart removes every line and the whole selection set.
func (s *State) ClearCart() {
	s.mu.Lock()
	s.items = nil
	s.selected = map[types.ItemKey]struct{}{}
	s.notifyLocked()
}

// ToggleSelect flips the selection of one line. Toggling an unknown key is
// a no-op.
func (s *State) ToggleSelect(key types.ItemKey) {
	s.mu.Lock()
	if !s.containsLocked(key) {
		s.mu.Unlock()
		return
	}
	if _, on := s.selected[key]; on {
		delete(s.selected, key)
	} else {
		s.selected[key] = struct{}{}
	}
	s.notifyLocked()
}

// SelectAll marks every line as selected.
func (s *State) SelectAll() {
	s.mu.Lock()
	for _, item := range s.items {
		s.selected[item.Key()] = struct{}{}
	}
	s.notifyLocked()
}

// UnselectAll empties the selection set without touching the items.
func (s *State) UnselectAll() {
	s.mu.Lock()
	s.selected = map[types.ItemKey]struct{}{}
	s.notifyLocked()
}

// Items returns a copy of the current item set.
func (s *State) Items() []types.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsCopyLocked()
}

// SelectedKeys returns the selection set.
func (s *State) SelectedKeys() []types.ItemKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedCopyLocked()
}

// IsSelected reports whether the line is in the selection set.
func (s *State) IsSelected(key types.ItemKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, on := s.selected[key]
	return on
}

// Contains reports whether a line with the given key exists.
func (s *State) Contains(key types.ItemKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.containsLocked(key)
}

// TotalPrice sums price times quantity over every line.
func (s *State) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumLocked(func(types.ItemKey) bool { return true })
}

// SelectedTotal sums price times quantity over the selected lines only.
func (s *State) SelectedTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumLocked(func(key types.ItemKey) bool {
		_, on := s.selected[key]
		return on
	})
}

func (s *State) sumLocked(include func(types.ItemKey) bool) decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		if !include(item.Key()) {
			continue
		}
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total
}

func (s *State) containsLocked(key types.ItemKey) bool {
	for _, item := range s.items {
		if item.Key() == key {
			return true
		}
	}
	return false
}

func (s *State) itemsCopyLocked() []types.CartItem {
	out := make([]types.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *State) selectedCopyLocked() []types.ItemKey {
	out := make([]types.ItemKey, 0, len(s.selected))
	for key := range s.selected {
		out = append(out, key)
	}
	return out
}

// notifyLocked snapshots state, releases the lock, then notifies observers.
func (s *State) notifyLocked() {
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	items := s.itemsCopyLocked()
	selected := s.selectedCopyLocked()
	s.mu.Unlock()

	for _, obs := range observers {
		obs.CartChanged(items, selected)
	}
}
