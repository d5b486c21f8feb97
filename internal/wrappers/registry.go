package wrappers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry stores tools by stable identifier.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Tool)}
}

// ValidateMetadata checks required metadata fields and id format.
func ValidateMetadata(meta Metadata) error {
	id := strings.TrimSpace(meta.ID)
	name := strings.TrimSpace(meta.Name)
	desc := strings.TrimSpace(meta.Description)
	if id == "" || name == "" || desc == "" {
		return fmt.Errorf("%w: id, name, and description are required", ErrInvalidMetadata)
	}
	if !isValidID(id) {
		return fmt.Errorf("%w: invalid id format %q", ErrInvalidMetadata, id)
	}
	return nil
}

func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return ErrToolNil
	}

	meta := tool.Metadata()
	if err := ValidateMetadata(meta); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[meta.ID]; ok {
		return fmt.Errorf("%w: %s", ErrToolExists, meta.ID)
	}
	r.items[meta.ID] = tool
	return nil
}

func (r *Registry) Resolve(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.items[id]
	return tool, ok
}

// Run dispatches action to the tool registered under id.
func (r *Registry) Run(id, action string, args map[string]string) (Result, error) {
	tool, ok := r.Resolve(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	return tool.Run(action, args)
}

// ListMetadata returns metadata ordered by id.
func (r *Registry) ListMetadata() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Metadata, 0, len(r.items))
	for _, tool := range r.items {
		list = append(list, tool.Metadata())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

func isValidID(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(id)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
