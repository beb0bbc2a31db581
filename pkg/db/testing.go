package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testSequence int

// NewTest opens an isolated in-memory sqlite database for tests.
func NewTest() (*gorm.DB, error) {
	testSequence++
	dsn := fmt.Sprintf("file:trustcove-test-%d?mode=memory&cache=shared", testSequence)
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
}
