package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"course-platform-backend/internal/models"
)

// newTestDB opens a private in-memory database for one test. A single
// connection keeps every statement on the same memory database and makes
// transactions naturally exclusive.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := CreateIndexes(db); err != nil {
		t.Fatalf("failed to create indexes: %v", err)
	}
	return db
}

func seedCourse(t *testing.T, db *gorm.DB, title string, price int64) models.Course {
	t.Helper()
	course := models.Course{
		Title:       title,
		Slug:        strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		PriceMinor:  price,
		MaxPosition: -1,
	}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("failed to seed course: %v", err)
	}
	return course
}

func seedUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Username: email, Email: email, Password: "x", Role: models.RoleStudent}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func positionsOf(t *testing.T, repo ContentRepository, courseID uint) map[string]int {
	t.Helper()
	items, err := repo.ListItems(context.Background(), courseID)
	if err != nil {
		t.Fatalf("failed to list items: %v", err)
	}
	positions := make(map[string]int, len(items))
	for _, item := range items {
		positions[item.Title] = item.Position
	}
	return positions
}
