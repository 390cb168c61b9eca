package repository

import (
	"testing"
	"time"

	"jigtrack/repository/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitValidation_OK(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")
	jig := seedJig(t, repo, "QR-1")

	v, rerr := repo.SubmitValidation(SubmitValidationInput{
		JigID:   &jig.ID,
		Actor:   testActor(tech),
		Shift:   "A",
		Outcome: models.OutcomeOK,
	})
	require.Nil(t, rerr)
	assert.Equal(t, models.OutcomeOK, v.Outcome)
	assert.Equal(t, 1, v.Quantity, "quantity defaults to 1")

	fresh, rerr := repo.GetJigByID(jig.ID)
	require.Nil(t, rerr)
	assert.Equal(t, models.JigStatusActive, fresh.Status)
	require.NotNil(t, fresh.LastValidationAt)
	assert.Equal(t, "A", fresh.LastValidationShift)
	require.NotNil(t, fresh.LastValidationTechID)
	assert.Equal(t, tech.ID, *fresh.LastValidationTechID)
}

func TestSubmitValidation_NGQuarantinesJig(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")
	jig := seedJig(t, repo, "QR-1")

	_, rerr := repo.SubmitValidation(SubmitValidationInput{
		JigID:   &jig.ID,
		Actor:   testActor(tech),
		Shift:   "A",
		Outcome: models.OutcomeNG,
		Comment: "misaligned pin block",
	})
	require.Nil(t, rerr)

	fresh, rerr := repo.GetJigByID(jig.ID)
	require.Nil(t, rerr)
	assert.Equal(t, models.JigStatusUnderRepair, fresh.Status)

	reports, rerr := repo.ListNGReports("", "", 0, 10)
	require.Nil(t, rerr)
	require.Len(t, reports, 1)
	assert.Equal(t, models.NGStatusPending, reports[0].Status)
	assert.Equal(t, "misaligned pin block", reports[0].Reason)
	assert.Equal(t, tech.Name, reports[0].ReportedBy)

	var repairs []models.Repair
	require.NoError(t, repo.DB().Where("jig_id = ?", jig.ID).Find(&repairs).Error)
	require.Len(t, repairs, 1)
	assert.Equal(t, models.JigStatusUnderRepair, repairs[0].NewStatus)
}

func TestSubmitValidation_QuarantineBlocksUntilRepaired(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")
	fixer := seedTechnician(t, repo, "bob")
	jig := seedJig(t, repo, "QR-1")

	_, rerr := repo.SubmitValidation(SubmitValidationInput{
		JigID: &jig.ID, Actor: testActor(tech), Shift: "A", Outcome: models.OutcomeNG,
	})
	require.Nil(t, rerr)

	// Quarantined: further submissions are rejected with the open report.
	_, rerr = repo.SubmitValidation(SubmitValidationInput{
		JigID: &jig.ID, Actor: testActor(tech), Shift: "A", Outcome: models.OutcomeOK,
	})
	require.NotNil(t, rerr)
	assert.Equal(t, CodeEquipmentQuarantined, rerr.Code)
	require.NotNil(t, rerr.Report)
	assert.Equal(t, models.NGStatusPending, rerr.Report.Status)

	// Repairing the report reactivates the jig.
	_, rerr = repo.TransitionNGReport(rerr.Report.ID, models.NGStatusRepaired, testActor(fixer), "replaced pin block")
	require.Nil(t, rerr)

	fresh, rerr := repo.GetJigByID(jig.ID)
	require.Nil(t, rerr)
	assert.Equal(t, models.JigStatusActive, fresh.Status)

	_, rerr = repo.SubmitValidation(SubmitValidationInput{
		JigID: &jig.ID, Actor: testActor(tech), Shift: "A", Outcome: models.OutcomeOK,
	})
	require.Nil(t, rerr)
}

func TestSubmitValidation_NGWithoutCommentGetsPlaceholder(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")
	jig := seedJig(t, repo, "QR-1")

	_, rerr := repo.SubmitValidation(SubmitValidationInput{
		JigID: &jig.ID, Actor: testActor(tech), Shift: "A", Outcome: models.OutcomeNG,
	})
	require.Nil(t, rerr)

	reports, rerr := repo.ListNGReports("", "", 0, 10)
	require.Nil(t, rerr)
	require.Len(t, reports, 1)
	assert.Equal(t, "No comment", reports[0].Reason)
}

func TestSubmitValidation_WithoutJig(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")
	assigned := seedTechnician(t, repo, "bob")

	v, rerr := repo.SubmitValidation(SubmitValidationInput{
		Actor:          testActor(tech),
		AssignedTechID: &assigned.ID,
		Shift:          "B",
		Outcome:        models.OutcomeOK,
	})
	require.Nil(t, rerr)
	assert.Nil(t, v.JigID)
	require.NotNil(t, v.AssignedTechID)
	assert.Equal(t, assigned.ID, *v.AssignedTechID)
}

func TestSubmitValidation_UnknownJig(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")
	missing := uint(999)

	_, rerr := repo.SubmitValidation(SubmitValidationInput{
		JigID: &missing, Actor: testActor(tech), Shift: "A", Outcome: models.OutcomeOK,
	})
	require.NotNil(t, rerr)
	assert.Equal(t, CodeEquipmentNotFound, rerr.Code)
}

func TestSubmitValidation_ClientTimestampReinterpreted(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")

	// A client clock in a different zone: the wall-clock components are kept
	// and the zone replaced with the canonical one.
	est := time.FixedZone("EST", -5*60*60)
	client := time.Date(2026, 3, 10, 14, 30, 0, 0, est)

	v, rerr := repo.SubmitValidation(SubmitValidationInput{
		Actor: testActor(tech), Shift: "A", Outcome: models.OutcomeOK, Timestamp: &client,
	})
	require.Nil(t, rerr)
	assert.Equal(t, 14, v.Timestamp.Hour())
	assert.Equal(t, 30, v.Timestamp.Minute())
	assert.Equal(t, time.UTC, v.Timestamp.Location())
}

func TestCloseOutShift(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		ts := day.Add(time.Duration(8+i) * time.Hour)
		completed := i < 7
		_, rerr := repo.SubmitValidation(SubmitValidationInput{
			Actor: testActor(tech), Shift: "A", Outcome: models.OutcomeOK,
			Timestamp: &ts, Completed: completed,
		})
		require.Nil(t, rerr)
	}
	// A row from another shift in the same window must not be touched.
	ts := day.Add(9 * time.Hour)
	_, rerr := repo.SubmitValidation(SubmitValidationInput{
		Actor: testActor(tech), Shift: "B", Outcome: models.OutcomeOK, Timestamp: &ts,
	})
	require.Nil(t, rerr)

	marked, rerr := repo.CloseOutShift("A", day, day.AddDate(0, 0, 1))
	require.Nil(t, rerr)
	assert.Equal(t, int64(3), marked)

	var noValidated int64
	require.NoError(t, repo.DB().Model(&models.Validation{}).
		Where("outcome = ?", models.OutcomeNoValidated).Count(&noValidated).Error)
	assert.Equal(t, int64(3), noValidated)

	// Second pass finds nothing left to finalize.
	marked, rerr = repo.CloseOutShift("A", day, day.AddDate(0, 0, 1))
	require.Nil(t, rerr)
	assert.Equal(t, int64(0), marked)
}

func TestPurgeShiftValidations_Idempotent(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ts := day.Add(time.Duration(8+i) * time.Hour)
		_, rerr := repo.SubmitValidation(SubmitValidationInput{
			Actor: testActor(tech), Shift: "A", Outcome: models.OutcomeOK, Timestamp: &ts,
		})
		require.Nil(t, rerr)
	}

	purged, rerr := repo.PurgeShiftValidations("A", day, day.AddDate(0, 0, 1))
	require.Nil(t, rerr)
	assert.Equal(t, int64(5), purged)

	purged, rerr = repo.PurgeShiftValidations("A", day, day.AddDate(0, 0, 1))
	require.Nil(t, rerr)
	assert.Equal(t, int64(0), purged, "an empty window is not an error")
}

func TestListValidations_Filters(t *testing.T) {
	repo := newTestRepository(t)
	tech := seedTechnician(t, repo, "alice")
	jig := seedJig(t, repo, "QR-1")

	for _, shift := range []string{"A", "A", "B"} {
		_, rerr := repo.SubmitValidation(SubmitValidationInput{
			JigID: &jig.ID, Actor: testActor(tech), Shift: shift, Outcome: models.OutcomeOK,
		})
		require.Nil(t, rerr)
	}

	byShift, rerr := repo.ListValidations(nil, "A", 0, 10)
	require.Nil(t, rerr)
	assert.Len(t, byShift, 2)

	byJig, rerr := repo.ListValidations(&jig.ID, "", 0, 10)
	require.Nil(t, rerr)
	assert.Len(t, byJig, 3)
}

type captureNotifier struct {
	outcomes []string
}

func (n *captureNotifier) SendNotice(tech *models.Technician, outcome string) error {
	n.outcomes = append(n.outcomes, outcome)
	return nil
}

func TestSubmitValidation_NoticeWithoutRenderer(t *testing.T) {
	repo := newTestRepository(t)
	notifier := &captureNotifier{}
	repo.SetHooks(nil, notifier)

	tech := seedTechnician(t, repo, "alice")
	jig := seedJig(t, repo, "QR-1")

	v, rerr := repo.SubmitValidation(SubmitValidationInput{
		JigID:   &jig.ID,
		Actor:   testActor(tech),
		Shift:   "A",
		Outcome: models.OutcomeOK,
	})
	require.Nil(t, rerr)

	assert.Equal(t, []string{models.OutcomeOK}, notifier.outcomes,
		"notice fires even with no report renderer configured")

	var fresh models.Validation
	require.NoError(t, repo.DB().First(&fresh, "validation_id = ?", v.ID).Error)
	assert.True(t, fresh.Synced)
}
