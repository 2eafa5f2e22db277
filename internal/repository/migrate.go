package repository

import (
	"fmt"

	"gorm.io/gorm"

	"course-platform-backend/internal/models"
)

// Models lists every table the platform owns, parents first.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Course{},
		&models.Lesson{},
		&models.Quiz{},
		&models.QuizQuestion{},
		&models.QuizAttempt{},
		&models.QuizAnswer{},
		&models.Payment{},
		&models.PaymentCourse{},
		&models.Enrollment{},
	}
}

func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// CreateIndexes adds the partial indexes AutoMigrate cannot express. The
// statements are valid for both postgres and sqlite.
func CreateIndexes(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_payments_pending ON payments(id) WHERE status = 'pending'",
		"CREATE INDEX IF NOT EXISTS idx_payments_pending_user ON payments(user_id, course_key) WHERE status = 'pending'",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
