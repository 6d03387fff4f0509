package routing

import (
	"sync"

	"github.com/eoffice/docflow/model"
)

// AssigneeFunc computes assignees for a Dynamic step from the bound
// document. Resolvers are compiled into the binary and registered under a
// name; step definitions reference them by that name. Definitions never
// carry executable code.
type AssigneeFunc func(doc *model.Document) []string

type AssigneeRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]AssigneeFunc
}

func NewAssigneeRegistry() *AssigneeRegistry {
	return &AssigneeRegistry{resolvers: make(map[string]AssigneeFunc)}
}

func (r *AssigneeRegistry) Register(name string, fn AssigneeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[name] = fn
}

func (r *AssigneeRegistry) Resolve(name string) (AssigneeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.resolvers[name]
	return fn, ok
}
