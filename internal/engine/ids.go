package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator mints session ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator mints time-ordered ids, so sessions listed by id also
// list in creation order. The zero value is ready and safe to share.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Sprintf("uuid v7: %v", err))
	}
	return id.String()
}

// FixedGenerator hands out a scripted list of ids, one per call. It panics
// once the list runs dry.
type FixedGenerator struct {
	mu   sync.Mutex
	next []string
}

func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{next: ids}
}

func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.next) == 0 {
		panic("engine: fixed id list exhausted")
	}
	id := g.next[0]
	g.next = g.next[1:]
	return id
}
