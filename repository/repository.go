package repository

import (
	"time"

	"jigtrack/cache"
	"jigtrack/repository/models"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ReportRenderer renders a validation report artifact and returns its path.
// Rendering is a best-effort side effect; failures never roll back the
// validation that triggered them.
type ReportRenderer interface {
	RenderValidation(v *models.Validation, jig *models.Jig, tech *models.Technician) (string, error)
}

// Notifier delivers the validation outcome to interested parties.
type Notifier interface {
	SendNotice(tech *models.Technician, outcome string) error
}

// Repository owns the relational store. Every operation loads its own rows
// inside its own transaction; no entity references are held across operation
// boundaries.
type Repository struct {
	db       *gorm.DB
	cache    *cache.Service
	logger   cmtlog.Logger
	loc      *time.Location
	renderer ReportRenderer
	notifier Notifier
}

// NewRepository creates a repository without a database connection. Call
// ConnectDB or UseDB before issuing operations.
func NewRepository(cacheSvc *cache.Service, logger cmtlog.Logger, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.Local
	}
	return &Repository{
		cache:  cacheSvc,
		logger: logger,
		loc:    loc,
	}
}

// SetHooks attaches the optional report renderer and notifier.
func (r *Repository) SetHooks(renderer ReportRenderer, notifier Notifier) {
	r.renderer = renderer
	r.notifier = notifier
}

// ConnectDB connects to Postgres, retrying while the database comes up.
func (r *Repository) ConnectDB(dsn string) error {
	var db *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		r.logger.Info("Connecting to Postgres", "attempt", i+1)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err == nil {
			break
		}
		r.logger.Error("Connection attempt failed", "attempt", i+1, "err", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return err
	}
	r.db = db
	r.logger.Info("Connected to Postgres")
	return nil
}

// UseDB attaches an already-open gorm handle. Used by tests.
func (r *Repository) UseDB(db *gorm.DB) {
	r.db = db
}

// Migrate creates or updates the schema for all lifecycle models.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Technician{},
		&models.Jig{},
		&models.Validation{},
		&models.Repair{},
		&models.NGReport{},
		&models.Adapter{},
		&models.Connector{},
		&models.AdapterValidation{},
		&models.ConnectorValidation{},
		&models.ReportFile{},
	)
}

// DB exposes the underlying handle for the storage and scheduler packages.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// now returns the current time in the canonical clock zone.
func (r *Repository) now() time.Time {
	return time.Now().In(r.loc)
}

// canonicalTime reinterprets a client-supplied timestamp into the canonical
// clock zone, keeping its wall-clock components.
func (r *Repository) canonicalTime(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), r.loc)
}

// invalidate drops a cache key after a committed mutation. Cache failures
// never surface to the write path.
func (r *Repository) invalidate(key string) {
	if r.cache != nil {
		r.cache.Delete(key)
	}
}
