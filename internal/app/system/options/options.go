// Package options is the typed key/value configuration service.
//
// Features declare their options once at startup on a Registry (name, group,
// type, sanitizer, default). The Service then reads and writes values through
// a Backend, coercing every value to its declared type so callers never see a
// stored value of the wrong shape.
package options

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dalemusser/pilitosync/internal/app/system/textsanitize"
)

// Type is the declared value type of an option.
type Type string

const (
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
)

// Errors returned by the registry and service.
var (
	ErrUnknownOption   = errors.New("options: unknown option")
	ErrDuplicateOption = errors.New("options: option already registered")
	ErrInvalidOption   = errors.New("options: invalid option definition")
	ErrNotFound        = errors.New("options: no stored value")
)

// SanitizeFunc cleans a raw value before it is coerced and stored.
type SanitizeFunc func(any) any

// Option declares one named configuration value.
type Option struct {
	Name     string
	Group    string
	Type     Type
	Sanitize SanitizeFunc // optional
	Default  any          // optional; zero value of Type when nil
}

// Registry holds option declarations. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	opts map[string]Option
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{opts: make(map[string]Option)}
}

// Register declares an option. Registering the same name twice is an error.
func (r *Registry) Register(opt Option) error {
	if opt.Name == "" || opt.Group == "" {
		return fmt.Errorf("%w: name and group are required", ErrInvalidOption)
	}
	if opt.Type != TypeString && opt.Type != TypeBoolean {
		return fmt.Errorf("%w: %s has unsupported type %q", ErrInvalidOption, opt.Name, opt.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.opts[opt.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOption, opt.Name)
	}
	r.opts[opt.Name] = opt
	return nil
}

// Lookup returns the declaration for name.
func (r *Registry) Lookup(name string) (Option, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	opt, ok := r.opts[name]
	return opt, ok
}

// Group returns the declarations in group, sorted by name.
func (r *Registry) Group(group string) []Option {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Option
	for _, opt := range r.opts {
		if opt.Group == group {
			out = append(out, opt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Backend persists coerced option values.
// Get returns ErrNotFound when no value has been stored for name. Deleting
// a name that was never stored is not an error.
type Backend interface {
	Get(ctx context.Context, name string) (any, error)
	Set(ctx context.Context, name, group string, value any, updatedBy string) error
	Delete(ctx context.Context, name string) error
}

// Service reads and writes registered options.
type Service struct {
	reg     *Registry
	backend Backend
}

// NewService creates a Service over the given registry and backend.
func NewService(reg *Registry, backend Backend) *Service {
	return &Service{reg: reg, backend: backend}
}

// Registry returns the registry the service validates against.
func (s *Service) Registry() *Registry {
	return s.reg
}

// Get returns the stored value for name coerced to its declared type, or the
// declared default when nothing is stored.
func (s *Service) Get(ctx context.Context, name string) (any, error) {
	opt, ok := s.reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	v, err := s.backend.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return defaultValue(opt), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get option %s: %w", name, err)
	}
	return coerce(opt.Type, v), nil
}

// Set runs value through the option's sanitizer, coerces it and stores it.
// It returns the value that was stored.
func (s *Service) Set(ctx context.Context, name string, value any, updatedBy string) (any, error) {
	opt, ok := s.reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	if opt.Sanitize != nil {
		value = opt.Sanitize(value)
	}
	value = coerce(opt.Type, value)
	if err := s.backend.Set(ctx, name, opt.Group, value, updatedBy); err != nil {
		return nil, fmt.Errorf("set option %s: %w", name, err)
	}
	return value, nil
}

// Unset removes the stored value so reads return the declared default.
func (s *Service) Unset(ctx context.Context, name string) error {
	if _, ok := s.reg.Lookup(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	if err := s.backend.Delete(ctx, name); err != nil {
		return fmt.Errorf("unset option %s: %w", name, err)
	}
	return nil
}

// String returns a string option.
func (s *Service) String(ctx context.Context, name string) (string, error) {
	v, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	str, _ := v.(string)
	return str, nil
}

// Bool returns a boolean option.
func (s *Service) Bool(ctx context.Context, name string) (bool, error) {
	v, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// Group returns every option of group keyed by name.
func (s *Service) Group(ctx context.Context, group string) (map[string]any, error) {
	out := make(map[string]any)
	for _, opt := range s.reg.Group(group) {
		v, err := s.Get(ctx, opt.Name)
		if err != nil {
			return nil, err
		}
		out[opt.Name] = v
	}
	return out, nil
}

func defaultValue(opt Option) any {
	if opt.Default == nil {
		return coerce(opt.Type, nil)
	}
	return coerce(opt.Type, opt.Default)
}

func coerce(t Type, v any) any {
	switch t {
	case TypeBoolean:
		return textsanitize.Bool(v)
	default:
		switch s := v.(type) {
		case nil:
			return ""
		case string:
			return s
		case bool:
			if s {
				return "1"
			}
			return ""
		default:
			return fmt.Sprint(s)
		}
	}
}
