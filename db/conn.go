// Package db opens the relational store used for session, photo and
// kiosk-connection metadata
package db

import (
	"fmt"

	"github.com/boubou-paradis/photojet-sub002/model"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New opens the database selected by database.driver and migrates the
// core tables. SQLite is the default for single-node deployments,
// postgres for anything shared.
func New() (*gorm.DB, error) {
	var dial gorm.Dialector

	dsn := viper.GetString("database.dsn")

	switch viper.GetString("database.driver") {
	case "postgres":
		dial = postgres.Open(dsn)
	default:
		dial = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dial)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	err = db.AutoMigrate(model.Session{}, model.Photo{}, model.BorneConnection{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}
