package repository

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryMedicineStore implements MedicineRepository and DoseFormRepository
// in memory for tests and local runs without a database.
type MemoryMedicineStore struct {
	mu        sync.RWMutex
	medicines map[int64]*Medicine
	strengths map[int64]*Strength
	doseForms map[int64]*DoseForm
	nextID    int64
}

// NewMemoryMedicineStore creates an empty in-memory medicine store.
func NewMemoryMedicineStore() *MemoryMedicineStore {
	return &MemoryMedicineStore{
		medicines: make(map[int64]*Medicine),
		strengths: make(map[int64]*Strength),
		doseForms: make(map[int64]*DoseForm),
	}
}

func cloneMedicine(m *Medicine) *Medicine {
	c := *m
	c.CategoryIDs = append([]int64(nil), m.CategoryIDs...)
	c.ATCCodeIDs = append([]int64(nil), m.ATCCodeIDs...)
	return &c
}

func (s *MemoryMedicineStore) CreateMedicine(ctx context.Context, m *Medicine) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC()
	stored := cloneMedicine(m)
	stored.ID = s.nextID
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.medicines[stored.ID] = stored
	return stored.ID, nil
}

func (s *MemoryMedicineStore) GetMedicine(ctx context.Context, id int64) (*Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.medicines[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return cloneMedicine(m), nil
}

func (s *MemoryMedicineStore) ListMedicines(ctx context.Context, page, pageSize int) ([]*Medicine, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Medicine, 0, len(s.medicines))
	for _, m := range s.medicines {
		all = append(all, cloneMedicine(m))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []*Medicine{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *MemoryMedicineStore) UpdateMedicine(ctx context.Context, id int64, m *Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.medicines[id]
	if !ok {
		return ErrNodeNotFound
	}
	updated := cloneMedicine(m)
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.medicines[id] = updated
	return nil
}

func (s *MemoryMedicineStore) DeleteMedicine(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.medicines[id]; !ok {
		return ErrNodeNotFound
	}
	delete(s.medicines, id)
	for sid, st := range s.strengths {
		if st.MedicineID == id {
			delete(s.strengths, sid)
		}
	}
	return nil
}

func (s *MemoryMedicineStore) AddStrength(ctx context.Context, medicineID int64, st *Strength) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.medicines[medicineID]; !ok {
		return 0, ErrNodeNotFound
	}
	s.nextID++
	now := time.Now().UTC()
	stored := *st
	stored.ID = s.nextID
	stored.MedicineID = medicineID
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.strengths[stored.ID] = &stored
	return stored.ID, nil
}

func (s *MemoryMedicineStore) ListStrengths(ctx context.Context, medicineID int64) ([]*Strength, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Strength{}
	for _, st := range s.strengths {
		if st.MedicineID == medicineID {
			c := *st
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryMedicineStore) DeleteStrength(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.strengths[id]; !ok {
		return ErrNodeNotFound
	}
	delete(s.strengths, id)
	return nil
}

func (s *MemoryMedicineStore) CreateDoseForm(ctx context.Context, d *DoseForm) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC()
	stored := *d
	stored.ID = s.nextID
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.doseForms[stored.ID] = &stored
	return stored.ID, nil
}

func (s *MemoryMedicineStore) GetDoseForm(ctx context.Context, id int64) (*DoseForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.doseForms[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	c := *d
	return &c, nil
}

func (s *MemoryMedicineStore) ListDoseForms(ctx context.Context) ([]*DoseForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*DoseForm{}
	for _, d := range s.doseForms {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryMedicineStore) UpdateDoseForm(ctx context.Context, id int64, d *DoseForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.doseForms[id]
	if !ok {
		return ErrNodeNotFound
	}
	existing.Name = d.Name
	existing.Description = d.Description
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryMedicineStore) DeleteDoseForm(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doseForms[id]; !ok {
		return ErrNodeNotFound
	}
	delete(s.doseForms, id)
	return nil
}
