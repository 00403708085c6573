package repository

import "context"

// MemoryBackend bundles the in-memory stores behind the Backend interface.
// Used by tests and the lambda entrypoint when no database is configured.
type MemoryBackend struct {
	categories *MemoryTreeStore
	atcCodes   *MemoryTreeStore
	medicines  *MemoryMedicineStore
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		categories: NewMemoryTreeStore(),
		atcCodes:   NewMemoryTreeStore(),
		medicines:  NewMemoryMedicineStore(),
	}
}

func (b *MemoryBackend) Initialize(ctx context.Context) error { return nil }

func (b *MemoryBackend) Cleanup(ctx context.Context) error { return nil }

func (b *MemoryBackend) Categories() TreeRepository { return b.categories }

func (b *MemoryBackend) ATCCodes() TreeRepository { return b.atcCodes }

func (b *MemoryBackend) Medicines() MedicineRepository { return b.medicines }

func (b *MemoryBackend) DoseForms() DoseFormRepository { return b.medicines }
