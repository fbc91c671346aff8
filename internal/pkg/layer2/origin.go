// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package layer2

import (
	"slices"
	"strings"
	"sync"
)

// Precedence decides which origin may overwrite a metric slot. A write is
// accepted when its precedence is at least the stored one.
type Precedence int

const (
	PrecedenceDefault    Precedence = 10 // static/default data
	PrecedenceReliable   Precedence = 20 // live protocol data (DLEP)
	PrecedenceConfigured Precedence = 30
	PrecedenceOverride   Precedence = 40 // operator forced values
)

// Origin identifies a producer of layer2 data.
type Origin struct {
	Name       string
	Precedence Precedence
}

func (o *Origin) String() string {
	if o == nil {
		return "-"
	}
	return o.Name
}

// OriginRegistry hands out one Origin per name. Origins are never removed.
type OriginRegistry struct {
	mu      sync.Mutex
	origins map[string]*Origin
}

func NewOriginRegistry() *OriginRegistry {
	return &OriginRegistry{
		origins: make(map[string]*Origin),
	}
}

// Register returns the origin called name, creating it with precedence p if
// it does not exist yet. An existing origin keeps its precedence.
func (r *OriginRegistry) Register(name string, p Precedence) *Origin {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.origins[name]; ok {
		return o
	}
	o := &Origin{Name: name, Precedence: p}
	r.origins[name] = o
	return o
}

func (r *OriginRegistry) Get(name string) (*Origin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.origins[name]
	return o, ok
}

// All returns the registered origins ordered by name.
func (r *OriginRegistry) All() []*Origin {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*Origin, 0, len(r.origins))
	for _, o := range r.origins {
		all = append(all, o)
	}
	slices.SortFunc(all, func(a, b *Origin) int {
		return strings.Compare(a.Name, b.Name)
	})
	return all
}
