package practice

import "sync"

// Registry keeps one machine per user, built on first use.
type Registry struct {
	build func(user string) *Machine

	mu       sync.Mutex
	machines map[string]*Machine
}

func NewRegistry(build func(user string) *Machine) *Registry {
	return &Registry{build: build, machines: make(map[string]*Machine)}
}

func (r *Registry) Get(user string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[user]
	if !ok {
		m = r.build(user)
		r.machines[user] = m
	}
	return m
}

// Close resets every machine, cancelling in-flight feedback requests and
// stopping countdowns.
func (r *Registry) Close() {
	r.mu.Lock()
	machines := make([]*Machine, 0, len(r.machines))
	for _, m := range r.machines {
		machines = append(machines, m)
	}
	r.mu.Unlock()

	for _, m := range machines {
		m.Reset()
	}
}
