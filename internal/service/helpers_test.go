package service

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/store"
)

const testBaseURL = "https://downloads.digistore.com"

// flakyBackend counts writes and can refuse them per key.
type flakyBackend struct {
	*store.MemoryBackend

	mu      sync.Mutex
	sets    int
	failAll bool
	failing map[string]bool
	gates   map[string]*writeGate
}

// writeGate holds writes to one key until opened.
type writeGate struct {
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *writeGate) open() { close(g.release) }

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{
		MemoryBackend: store.NewMemoryBackend(0),
		failing:       make(map[string]bool),
		gates:         make(map[string]*writeGate),
	}
}

func (b *flakyBackend) Set(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	b.sets++
	fail := b.failAll || b.failing[key]
	gate := b.gates[key]
	b.mu.Unlock()
	if gate != nil {
		gate.once.Do(func() { close(gate.reached) })
		<-gate.release
	}
	if fail {
		return errors.New("storage unavailable")
	}
	return b.MemoryBackend.Set(ctx, key, value)
}

func (b *flakyBackend) failKey(logical string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing["digistore-"+logical] = true
}

// hold blocks writes to the logical key until the returned gate is opened.
func (b *flakyBackend) hold(logical string) *writeGate {
	g := &writeGate{reached: make(chan struct{}), release: make(chan struct{})}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gates["digistore-"+logical] = g
	return g
}

func (b *flakyBackend) setFailAll(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAll = v
}

func (b *flakyBackend) heal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAll = false
	b.failing = make(map[string]bool)
}

func (b *flakyBackend) setCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sets
}

func testProduct(id int, p string) models.Product {
	return models.Product{
		ID:       id,
		Title:    "Product",
		Price:    decimal.RequireFromString(p),
		Category: models.CategoryEbook,
	}
}

func validCustomer() models.Customer {
	return models.Customer{
		FirstName:  "Amira",
		LastName:   "Ben Salah",
		Email:      "amira@example.com",
		Phone:      "+216 20 000 000",
		Address:    "12 rue de Marseille",
		City:       "Tunis",
		PostalCode: "1000",
	}
}

func cardPayment() models.PaymentInfo {
	return models.PaymentInfo{
		Method:     models.PaymentCard,
		CardNumber: "4242424242424242",
		ExpiryDate: "12/30",
		CVV:        "123",
		CardName:   "A BEN SALAH",
	}
}
