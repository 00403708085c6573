package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// postgresMedicineStore implements MedicineRepository over the medicines,
// strengths and pivot tables.
type postgresMedicineStore struct {
	db *sql.DB
}

const medicineColumns = "id, name, slug, generic_name, status, description, created_at, updated_at"

func scanMedicine(row rowScanner) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.Slug, &m.GenericName, &m.Status, &m.Description, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *postgresMedicineStore) CreateMedicine(ctx context.Context, m *Medicine) (int64, error) {
	if m.Name == "" || m.Slug == "" {
		return 0, ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO medicines (name, slug, generic_name, status, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		m.Name, m.Slug, m.GenericName, m.Status, m.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error creating medicine: %w", err)
	}

	if err := replaceAssociations(ctx, tx, "medicine_category", "category_id", id, m.CategoryIDs); err != nil {
		return 0, err
	}
	if err := replaceAssociations(ctx, tx, "medicine_atc_code", "atc_code_id", id, m.ATCCodeIDs); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing: %w", err)
	}
	return id, nil
}

// replaceAssociations rewrites the pivot rows of one medicine. The pivot
// table and column names are package constants, never caller input.
func replaceAssociations(ctx context.Context, tx *sql.Tx, pivot, column string, medicineID int64, ids []int64) error {
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE medicine_id = $1", pivot), medicineID); err != nil {
		return fmt.Errorf("error clearing %s: %w", pivot, err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (medicine_id, %s) VALUES ($1, $2)", pivot, column)
	for _, refID := range ids {
		if _, err := tx.ExecContext(ctx, insert, medicineID, refID); err != nil {
			return fmt.Errorf("error linking %s %d: %w", column, refID, err)
		}
	}
	return nil
}

func (s *postgresMedicineStore) loadAssociations(ctx context.Context, m *Medicine) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category_id FROM medicine_category WHERE medicine_id = $1 ORDER BY category_id", m.ID)
	if err != nil {
		return fmt.Errorf("error loading categories: %w", err)
	}
	m.CategoryIDs, err = collectIDs(rows)
	if err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT atc_code_id FROM medicine_atc_code WHERE medicine_id = $1 ORDER BY atc_code_id", m.ID)
	if err != nil {
		return fmt.Errorf("error loading atc codes: %w", err)
	}
	m.ATCCodeIDs, err = collectIDs(rows)
	return err
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *postgresMedicineStore) GetMedicine(ctx context.Context, id int64) (*Medicine, error) {
	query := fmt.Sprintf("SELECT %s FROM medicines WHERE id = $1", medicineColumns)
	m, err := scanMedicine(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("error getting medicine: %w", err)
	}
	if err := s.loadAssociations(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *postgresMedicineStore) ListMedicines(ctx context.Context, page, pageSize int) ([]*Medicine, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM medicines").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting medicines: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM medicines ORDER BY id LIMIT $1 OFFSET $2", medicineColumns)
	rows, err := s.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing medicines: %w", err)
	}
	defer rows.Close()

	medicines := []*Medicine{}
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning medicine: %w", err)
		}
		medicines = append(medicines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating medicines: %w", err)
	}
	for _, m := range medicines {
		if err := s.loadAssociations(ctx, m); err != nil {
			return nil, 0, err
		}
	}
	return medicines, total, nil
}

func (s *postgresMedicineStore) UpdateMedicine(ctx context.Context, id int64, m *Medicine) error {
	if m.Name == "" || m.Slug == "" {
		return ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE medicines SET name = $1, slug = $2, generic_name = $3, status = $4,
			description = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6`,
		m.Name, m.Slug, m.GenericName, m.Status, m.Description, id)
	if err != nil {
		return fmt.Errorf("error updating medicine: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}

	if err := replaceAssociations(ctx, tx, "medicine_category", "category_id", id, m.CategoryIDs); err != nil {
		return err
	}
	if err := replaceAssociations(ctx, tx, "medicine_atc_code", "atc_code_id", id, m.ATCCodeIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *postgresMedicineStore) DeleteMedicine(ctx context.Context, id int64) error {
	// Strengths and pivot rows cascade via foreign keys.
	result, err := s.db.ExecContext(ctx, "DELETE FROM medicines WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("error deleting medicine: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	return nil
}

const strengthColumns = "id, medicine_id, dose_form_id, concentration_amount, concentration_unit, volume_amount, volume_unit, chemical_form, description, created_at, updated_at"

func (s *postgresMedicineStore) AddStrength(ctx context.Context, medicineID int64, st *Strength) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO strengths (medicine_id, dose_form_id, concentration_amount, concentration_unit,
			volume_amount, volume_unit, chemical_form, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		medicineID, st.DoseFormID, st.ConcentrationAmount, st.ConcentrationUnit,
		st.VolumeAmount, st.VolumeUnit, st.ChemicalForm, st.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error creating strength: %w", err)
	}
	return id, nil
}

func (s *postgresMedicineStore) ListStrengths(ctx context.Context, medicineID int64) ([]*Strength, error) {
	query := fmt.Sprintf("SELECT %s FROM strengths WHERE medicine_id = $1 ORDER BY id", strengthColumns)
	rows, err := s.db.QueryContext(ctx, query, medicineID)
	if err != nil {
		return nil, fmt.Errorf("error listing strengths: %w", err)
	}
	defer rows.Close()

	strengths := []*Strength{}
	for rows.Next() {
		var st Strength
		if err := rows.Scan(&st.ID, &st.MedicineID, &st.DoseFormID,
			&st.ConcentrationAmount, &st.ConcentrationUnit,
			&st.VolumeAmount, &st.VolumeUnit, &st.ChemicalForm, &st.Description,
			&st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning strength: %w", err)
		}
		strengths = append(strengths, &st)
	}
	return strengths, rows.Err()
}

func (s *postgresMedicineStore) DeleteStrength(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM strengths WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("error deleting strength: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// postgresDoseFormStore implements DoseFormRepository.
type postgresDoseFormStore struct {
	db *sql.DB
}

func (s *postgresDoseFormStore) CreateDoseForm(ctx context.Context, d *DoseForm) (int64, error) {
	if d.Name == "" {
		return 0, ErrInvalidInput
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO dose_forms (name, description) VALUES ($1, $2) RETURNING id",
		d.Name, d.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error creating dose form: %w", err)
	}
	return id, nil
}

func (s *postgresDoseFormStore) GetDoseForm(ctx context.Context, id int64) (*DoseForm, error) {
	var d DoseForm
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM dose_forms WHERE id = $1", id,
	).Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("error getting dose form: %w", err)
	}
	return &d, nil
}

func (s *postgresDoseFormStore) ListDoseForms(ctx context.Context) ([]*DoseForm, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM dose_forms ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("error listing dose forms: %w", err)
	}
	defer rows.Close()

	forms := []*DoseForm{}
	for rows.Next() {
		var d DoseForm
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning dose form: %w", err)
		}
		forms = append(forms, &d)
	}
	return forms, rows.Err()
}

func (s *postgresDoseFormStore) UpdateDoseForm(ctx context.Context, id int64, d *DoseForm) error {
	if d.Name == "" {
		return ErrInvalidInput
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE dose_forms SET name = $1, description = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3",
		d.Name, d.Description, id)
	if err != nil {
		return fmt.Errorf("error updating dose form: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (s *postgresDoseFormStore) DeleteDoseForm(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM dose_forms WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("error deleting dose form: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	return nil
}
