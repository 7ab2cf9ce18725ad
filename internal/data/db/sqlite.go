package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/platform/envutil"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

// Service owns the sqlite connection for the relational metadata store
// (businesses). Report artifacts live in the file-based report store, not here.
type Service struct {
	log *logger.Logger
	db  *gorm.DB
}

func NewSQLiteService(baseLog *logger.Logger) (*Service, error) {
	path := envutil.Str("DB_PATH", "data/app.db")
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return &Service{
		log: baseLog.With("service", "SQLiteService"),
		db:  gdb,
	}, nil
}

func (s *Service) AutoMigrateAll() error {
	return s.db.AutoMigrate(&domain.Business{})
}

func (s *Service) DB() *gorm.DB { return s.db }
