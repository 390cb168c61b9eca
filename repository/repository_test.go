package repository

import (
	"path/filepath"
	"testing"
	"time"

	"jigtrack/cache"
	"jigtrack/repository/models"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestRepository opens a throwaway sqlite database and an in-memory cache.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	logger := cmtlog.NewNopLogger()

	cacheSvc := cache.Open("", time.Minute, logger)
	t.Cleanup(func() { cacheSvc.Close() })

	repo := NewRepository(cacheSvc, logger, time.UTC)
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	repo.UseDB(db)
	require.NoError(t, repo.Migrate())
	return repo
}

func seedTechnician(t *testing.T, repo *Repository, username string) *models.Technician {
	t.Helper()
	tech, rerr := repo.CreateTechnician(username, "Tech "+username, "EMP-"+username, "operator")
	require.Nil(t, rerr)
	return tech
}

func seedJig(t *testing.T, repo *Repository, qr string) *models.Jig {
	t.Helper()
	jig, rerr := repo.CreateJig(&models.Jig{
		QRCode:       qr,
		JigNumber:    "JIG-" + qr,
		Type:         "test",
		CurrentModel: "MODELO_1",
	})
	require.Nil(t, rerr)
	return jig
}

func testActor(tech *models.Technician) Actor {
	return Actor{TechnicianID: tech.ID, Name: tech.Name}
}
