package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ammiranda/medicine_service/handlers"
	"github.com/ammiranda/medicine_service/models"
	"github.com/ammiranda/medicine_service/repository"
)

func setupMedicineTest(t *testing.T) (*gin.Engine, *repository.MemoryMedicineStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryMedicineStore()
	medicineHandler := handlers.NewMedicineHandler(store, zap.NewNop())
	doseFormHandler := handlers.NewDoseFormHandler(store, zap.NewNop())

	router := gin.New()
	medicines := router.Group("/api/medicines")
	medicines.POST("", medicineHandler.CreateMedicine)
	medicines.GET("", medicineHandler.ListMedicines)
	medicines.GET("/:id", medicineHandler.GetMedicine)
	medicines.PUT("/:id", medicineHandler.UpdateMedicine)
	medicines.DELETE("/:id", medicineHandler.DeleteMedicine)
	medicines.POST("/:id/strengths", medicineHandler.AddStrength)
	medicines.GET("/:id/strengths", medicineHandler.ListStrengths)
	medicines.DELETE("/:id/strengths/:strengthId", medicineHandler.DeleteStrength)

	doseForms := router.Group("/api/dose-forms")
	doseForms.POST("", doseFormHandler.CreateDoseForm)
	doseForms.GET("", doseFormHandler.ListDoseForms)
	doseForms.GET("/:id", doseFormHandler.GetDoseForm)
	doseForms.PUT("/:id", doseFormHandler.UpdateDoseForm)
	doseForms.DELETE("/:id", doseFormHandler.DeleteDoseForm)

	return router, store
}

func TestCreateAndGetMedicine(t *testing.T) {
	router, _ := setupMedicineTest(t)

	w := doJSON(router, "POST", "/api/medicines", gin.H{
		"name":        "Paracetamol 500mg",
		"genericName": "Paracetamol",
		"categoryIds": []int64{1, 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.MedicineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "paracetamol-500mg", created.Slug)
	assert.Equal(t, "active", created.Status)
	assert.Equal(t, []int64{1, 2}, created.CategoryIDs)

	w = doJSON(router, "GET", fmt.Sprintf("/api/medicines/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.MedicineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.Name, got.Name)
}

func TestCreateMedicineValidation(t *testing.T) {
	router, _ := setupMedicineTest(t)

	w := doJSON(router, "POST", "/api/medicines", gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "POST", "/api/medicines", gin.H{"name": "X", "categoryIds": []int64{0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMedicinesPagination(t *testing.T) {
	router, _ := setupMedicineTest(t)

	for i := 0; i < 25; i++ {
		w := doJSON(router, "POST", "/api/medicines", gin.H{"name": fmt.Sprintf("Medicine %02d", i)})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(router, "GET", "/api/medicines?page=2&pageSize=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list models.MedicineListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(25), list.Total)
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 10, list.PageSize)
	assert.Len(t, list.Items, 10)

	// Out-of-range values fall back to the defaults.
	w = doJSON(router, "GET", "/api/medicines?page=0&pageSize=9999", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.PageSize)
}

func TestUpdateMedicineReplacesAssociations(t *testing.T) {
	router, _ := setupMedicineTest(t)

	w := doJSON(router, "POST", "/api/medicines", gin.H{"name": "Ibuprofen", "categoryIds": []int64{1}})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.MedicineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, "PUT", fmt.Sprintf("/api/medicines/%d", created.ID),
		gin.H{"name": "Ibuprofen 400mg", "categoryIds": []int64{3, 4}, "atcCodeIds": []int64{9}})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "GET", fmt.Sprintf("/api/medicines/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.MedicineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Ibuprofen 400mg", got.Name)
	assert.Equal(t, []int64{3, 4}, got.CategoryIDs)
	assert.Equal(t, []int64{9}, got.ATCCodeIDs)
}

func TestDeleteMedicine(t *testing.T) {
	router, _ := setupMedicineTest(t)

	w := doJSON(router, "POST", "/api/medicines", gin.H{"name": "Aspirin"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.MedicineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, "DELETE", fmt.Sprintf("/api/medicines/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, "GET", fmt.Sprintf("/api/medicines/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, "DELETE", "/api/medicines/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStrengthLifecycle(t *testing.T) {
	router, _ := setupMedicineTest(t)

	w := doJSON(router, "POST", "/api/dose-forms", gin.H{"name": "Tablet"})
	require.Equal(t, http.StatusCreated, w.Code)
	var doseForm models.DoseFormResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doseForm))

	w = doJSON(router, "POST", "/api/medicines", gin.H{"name": "Paracetamol"})
	require.Equal(t, http.StatusCreated, w.Code)
	var medicine models.MedicineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &medicine))

	w = doJSON(router, "POST", fmt.Sprintf("/api/medicines/%d/strengths", medicine.ID), gin.H{
		"doseFormId":          doseForm.ID,
		"concentrationAmount": "500",
		"concentrationUnit":   "mg",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var strength models.StrengthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &strength))
	assert.Equal(t, medicine.ID, strength.MedicineID)
	assert.Equal(t, "500", strength.ConcentrationAmount)

	w = doJSON(router, "GET", fmt.Sprintf("/api/medicines/%d/strengths", medicine.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var strengths []*models.StrengthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &strengths))
	require.Len(t, strengths, 1)

	w = doJSON(router, "DELETE", fmt.Sprintf("/api/medicines/%d/strengths/%d", medicine.ID, strength.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, "GET", fmt.Sprintf("/api/medicines/%d/strengths", medicine.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &strengths))
	assert.Empty(t, strengths)
}

func TestAddStrengthMedicineMissing(t *testing.T) {
	router, _ := setupMedicineTest(t)

	w := doJSON(router, "POST", "/api/medicines/42/strengths", gin.H{"doseFormId": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDoseFormLifecycle(t *testing.T) {
	router, _ := setupMedicineTest(t)

	w := doJSON(router, "POST", "/api/dose-forms", gin.H{"name": "Syrup", "description": "Oral liquid"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.DoseFormResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Syrup", created.Name)

	w = doJSON(router, "PUT", fmt.Sprintf("/api/dose-forms/%d", created.ID), gin.H{"name": "Oral Syrup"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "GET", "/api/dose-forms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []*models.DoseFormResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.Equal(t, "Oral Syrup", all[0].Name)

	w = doJSON(router, "DELETE", fmt.Sprintf("/api/dose-forms/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, "GET", fmt.Sprintf("/api/dose-forms/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
