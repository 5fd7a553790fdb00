// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package migrateutil

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	sqlite3migrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
)

type Status struct {
	Store   string `json:"store"`
	From    uint   `json:"from"`
	To      uint   `json:"to"`
	Applied bool   `json:"applied"`
}

func currentVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("database is dirty at version %d", version)
	}
	return version, nil
}

func newMigrate(storeName string, db *sql.DB, migrationFS fs.FS, dirName string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFS, dirName)
	if err != nil {
		return nil, fmt.Errorf("%s: opening migrations %q: %w", storeName, dirName, err)
	}
	driver, err := sqlite3migrate.WithInstance(db, &sqlite3migrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("%s: migration driver: %w", storeName, err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("%s: migration setup: %w", storeName, err)
	}
	return m, nil
}

// MigrateUp applies every pending migration in dirName.  the driver shares db,
// so the returned Migrate is not closed here.
func MigrateUp(storeName string, db *sql.DB, migrationFS fs.FS, dirName string) (*Status, error) {
	m, err := newMigrate(storeName, db, migrationFS, dirName)
	if err != nil {
		return nil, err
	}
	status := &Status{Store: storeName}
	status.From, err = currentVersion(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", storeName, err)
	}
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("%s: migrate up: %w", storeName, err)
	}
	status.To, err = currentVersion(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", storeName, err)
	}
	status.Applied = status.To != status.From
	return status, nil
}

func Migrate(storeName string, db *sql.DB, migrationFS fs.FS, dirName string) error {
	status, err := MigrateUp(storeName, db, migrationFS, dirName)
	if err != nil {
		return err
	}
	if status.Applied {
		log.Printf("[db] %s migrated, version %d -> %d\n", storeName, status.From, status.To)
	}
	return nil
}
