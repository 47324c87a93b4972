// Package replicated holds server-writable, all-readable game state. Every accepted write is
// followed by an explicit publish to the configured Publisher.
package replicated

import "strconv"

// ClientID is the stable numeric identity of a connected participant.
type ClientID uint64

func (id ClientID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Role decides whether this process may write authoritative state.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// ParseRole maps a config string to a Role. Anything but "client" is the server.
func ParseRole(s string) Role {
	if s == "client" {
		return RoleClient
	}
	return RoleServer
}

// Change is one published write.
type Change struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

type Publisher interface {
	Publish(c Change)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(c Change)

func (f PublisherFunc) Publish(c Change) { f(c) }

// Store carries the role and publisher shared by a group of fields.
type Store struct {
	role Role
	pub  Publisher
}

func NewStore(role Role, pub Publisher) *Store {
	return &Store{role: role, pub: pub}
}

func (s *Store) Role() Role { return s.role }

func (s *Store) IsServer() bool { return s != nil && s.role == RoleServer }

func (s *Store) publish(field string, v any) {
	if s.pub != nil {
		s.pub.Publish(Change{Field: field, Value: v})
	}
}

// Value is a single replicated field.
type Value[T comparable] struct {
	store *Store
	name  string
	v     T
}

func NewValue[T comparable](store *Store, name string, initial T) *Value[T] {
	return &Value[T]{store: store, name: name, v: initial}
}

func (v *Value[T]) Name() string { return v.name }

func (v *Value[T]) Get() T { return v.v }

// Set writes x and publishes when it differs from the current value. It reports whether the
// write was accepted; writes from a non-server role are dropped.
func (v *Value[T]) Set(x T) bool {
	if !v.store.IsServer() {
		return false
	}
	if v.v == x {
		return true
	}
	v.v = x
	v.store.publish(v.name, x)
	return true
}

// Update applies fn to the current value and stores the result.
func (v *Value[T]) Update(fn func(T) T) bool {
	return v.Set(fn(v.v))
}

// List is a replicated ordered collection. Elements are compared with ==, so element types must
// include every field that should count as a change.
type List[T comparable] struct {
	store *Store
	name  string
	items []T
}

func NewList[T comparable](store *Store, name string) *List[T] {
	return &List[T]{store: store, name: name}
}

func (l *List[T]) Name() string { return l.name }

func (l *List[T]) Len() int { return len(l.items) }

func (l *List[T]) At(i int) T { return l.items[i] }

// Items returns a copy of the current contents.
func (l *List[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// IndexFunc returns the first index whose element satisfies match, or -1.
func (l *List[T]) IndexFunc(match func(T) bool) int {
	for i, it := range l.items {
		if match(it) {
			return i
		}
	}
	return -1
}

func (l *List[T]) Append(x T) bool {
	if !l.store.IsServer() {
		return false
	}
	l.items = append(l.items, x)
	l.publish()
	return true
}

func (l *List[T]) Set(i int, x T) bool {
	if !l.store.IsServer() || i < 0 || i >= len(l.items) {
		return false
	}
	if l.items[i] == x {
		return true
	}
	l.items[i] = x
	l.publish()
	return true
}

func (l *List[T]) RemoveAt(i int) bool {
	if !l.store.IsServer() || i < 0 || i >= len(l.items) {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.publish()
	return true
}

func (l *List[T]) publish() {
	l.store.publish(l.name, l.Items())
}
