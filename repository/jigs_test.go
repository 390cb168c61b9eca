package repository

import (
	"testing"

	"jigtrack/repository/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateJig_DuplicateQR(t *testing.T) {
	repo := newTestRepository(t)
	seedJig(t, repo, "QR-1")

	_, rerr := repo.CreateJig(&models.Jig{QRCode: "QR-1", JigNumber: "JIG-2", Type: "manual"})
	require.NotNil(t, rerr)
	assert.Equal(t, CodeConflict, rerr.Code)
}

func TestGetEquipmentView_ReadThrough(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")
	jig := seedJig(t, repo, "QR-1")

	_, rerr := repo.SubmitValidation(SubmitValidationInput{
		JigID: &jig.ID, Actor: testActor(tech), Shift: "A", Outcome: models.OutcomeOK,
	})
	require.Nil(t, rerr)

	view, rerr := repo.GetEquipmentView("QR-1")
	require.Nil(t, rerr)
	assert.Equal(t, jig.ID, view.Jig.ID)
	assert.Len(t, view.Validations, 1)
	assert.Empty(t, view.NGReports)

	// Cached: a direct DB write stays invisible until an invalidating
	// mutation happens.
	require.NoError(t, repo.DB().Model(&models.Jig{}).
		Where("jig_id = ?", jig.ID).Update("jig_number", "RENAMED").Error)
	stale, rerr := repo.GetEquipmentView("QR-1")
	require.Nil(t, rerr)
	assert.Equal(t, view.Jig.JigNumber, stale.Jig.JigNumber)

	_, rerr = repo.UpdateJig(jig.ID, "", "semiautomatic", "")
	require.Nil(t, rerr)
	fresh, rerr := repo.GetEquipmentView("QR-1")
	require.Nil(t, rerr)
	assert.Equal(t, "semiautomatic", fresh.Jig.Type)
}

func TestGetEquipmentView_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, rerr := repo.GetEquipmentView("NOPE")
	require.NotNil(t, rerr)
	assert.Equal(t, CodeEquipmentNotFound, rerr.Code)
}

func TestDeleteJig_RequiresAdminCapability(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")
	jig := seedJig(t, repo, "QR-1")

	rerr := repo.DeleteJig(jig.ID, testActor(tech))
	require.NotNil(t, rerr)
	assert.Equal(t, CodeInvalidState, rerr.Code)

	admin := testActor(tech)
	admin.Admin = true
	require.Nil(t, repo.DeleteJig(jig.ID, admin))
}

func TestDeleteJig_WipesHistory(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")
	jig := seedJig(t, repo, "QR-1")
	other := seedJig(t, repo, "QR-2")

	for _, target := range []*models.Jig{jig, other} {
		_, rerr := repo.SubmitValidation(SubmitValidationInput{
			JigID: &target.ID, Actor: testActor(tech), Shift: "A", Outcome: models.OutcomeNG,
		})
		require.Nil(t, rerr)
	}

	admin := testActor(tech)
	admin.Admin = true
	require.Nil(t, repo.DeleteJig(jig.ID, admin))

	for _, model := range []interface{}{&models.Validation{}, &models.Repair{}, &models.NGReport{}} {
		var count int64
		require.NoError(t, repo.DB().Model(model).Where("jig_id = ?", jig.ID).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	}

	// The other jig's history is untouched.
	var remaining int64
	require.NoError(t, repo.DB().Model(&models.Validation{}).Where("jig_id = ?", other.ID).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestUpdateJig_PartialFields(t *testing.T) {
	repo := newTestRepository(t)
	jig := seedJig(t, repo, "QR-1")

	updated, rerr := repo.UpdateJig(jig.ID, "", "", "ADA20100_01")
	require.Nil(t, rerr)
	assert.Equal(t, jig.JigNumber, updated.JigNumber, "empty fields are left alone")
	assert.Equal(t, "ADA20100_01", updated.CurrentModel)
}
