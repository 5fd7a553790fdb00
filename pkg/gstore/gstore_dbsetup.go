// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package gstore

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sawka/txwrap"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
	"github.com/wavetermdev/snipgallery/pkg/util/migrateutil"

	dbfs "github.com/wavetermdev/snipgallery/db"
)

const GStoreDBName = "gallery.db"

type TxWrap = txwrap.TxWrap

var globalDB *sqlx.DB

func InitGStore() error {
	err := snipbase.EnsureSnipDBDir()
	if err != nil {
		return err
	}
	return OpenGStore(GetDBName())
}

// OpenGStore opens (creating if needed) and migrates the store at dbName.
func OpenGStore(dbName string) error {
	ctx, cancelFn := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelFn()
	var err error
	globalDB, err = MakeDB(ctx, dbName)
	if err != nil {
		return err
	}
	err = migrateutil.Migrate("gstore", globalDB.DB, dbfs.GStoreMigrationFS, "migrations-gstore")
	if err != nil {
		return err
	}
	log.Printf("[gstore] initialized %s\n", dbName)
	return nil
}

func CloseGStore() error {
	if globalDB == nil {
		return nil
	}
	err := globalDB.Close()
	globalDB = nil
	return err
}

func GetDBName() string {
	return filepath.Join(snipbase.GetSnipDBDir(), GStoreDBName)
}

func MakeDB(ctx context.Context, dbName string) (*sqlx.DB, error) {
	rtn, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_busy_timeout=5000", dbName))
	if err != nil {
		return nil, err
	}
	rtn.DB.SetMaxOpenConns(1)
	err = rtn.PingContext(ctx)
	if err != nil {
		rtn.Close()
		return nil, fmt.Errorf("opening db %s: %w", dbName, err)
	}
	return rtn, nil
}

func WithTx(ctx context.Context, fn func(tx *TxWrap) error) error {
	return txwrap.WithTx(ctx, globalDB, fn)
}

func WithTxRtn[RT any](ctx context.Context, fn func(tx *TxWrap) (RT, error)) (RT, error) {
	return txwrap.WithTxRtn(ctx, globalDB, fn)
}
