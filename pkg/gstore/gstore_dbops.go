// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package gstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wavetermdev/snipgallery/pkg/util/dbutil"
)

const TableComponent = "db_component"
const TableUser = "db_user"

// builds "INSERT INTO table (a, b) VALUES (?, ?)" from a db map, columns in sorted order
func insertQuery(table string, m map[string]any) (string, []any) {
	cols := make([]string, 0, len(m))
	for col := range m {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		args = append(args, m[col])
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders), args
}

// builds "UPDATE table SET a = ?, b = ? WHERE id = ?" skipping immutable columns
func updateQuery(table string, m map[string]any, skip ...string) (string, []any) {
	skipSet := map[string]bool{"id": true}
	for _, s := range skip {
		skipSet[s] = true
	}
	cols := make([]string, 0, len(m))
	for col := range m {
		if !skipSet[col] {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, m[col])
	}
	args = append(args, m["id"])
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", ")), args
}

// DBListComponents returns matching components, newest first.
func DBListComponents(ctx context.Context, filter ComponentFilter) ([]*ComponentRecord, error) {
	return WithTxRtn(ctx, func(tx *TxWrap) ([]*ComponentRecord, error) {
		var where []string
		var args []any
		if filter.Category != "" {
			where = append(where, "category = ?")
			args = append(args, filter.Category)
		}
		if filter.UserID != "" {
			where = append(where, "userid = ?")
			args = append(args, filter.UserID)
		}
		query := "SELECT * FROM " + TableComponent
		if len(where) > 0 {
			query += " WHERE " + strings.Join(where, " AND ")
		}
		query += " ORDER BY createdat DESC, id"
		return dbutil.SelectMappable[*ComponentRecord](tx, query, args...), nil
	})
}

func DBCountComponents(ctx context.Context) (int, error) {
	return WithTxRtn(ctx, func(tx *TxWrap) (int, error) {
		return tx.GetInt("SELECT count(*) FROM " + TableComponent), nil
	})
}

func DBGetComponent(ctx context.Context, id string) (*ComponentRecord, error) {
	return WithTxRtn(ctx, func(tx *TxWrap) (*ComponentRecord, error) {
		query := fmt.Sprintf("SELECT * FROM %s WHERE id = ?", TableComponent)
		rtn := dbutil.GetMappable[*ComponentRecord](tx, query, id)
		if rtn == nil {
			return nil, fmt.Errorf("component %q: %w", id, ErrNotFound)
		}
		return rtn, nil
	})
}

// DBInsertComponent assigns id and timestamps when they are unset.
func DBInsertComponent(ctx context.Context, rec *ComponentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return WithTx(ctx, func(tx *TxWrap) error {
		query, args := insertQuery(TableComponent, dbutil.ToDBMap(rec))
		tx.Exec(query, args...)
		return nil
	})
}

// DBUpdateComponent replaces the mutable fields of an existing component and bumps UpdatedAt.
func DBUpdateComponent(ctx context.Context, rec *ComponentRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("cannot update component with empty id")
	}
	rec.UpdatedAt = time.Now().UnixMilli()
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return WithTx(ctx, func(tx *TxWrap) error {
		if !tx.Exists(fmt.Sprintf("SELECT id FROM %s WHERE id = ?", TableComponent), rec.ID) {
			return fmt.Errorf("component %q: %w", rec.ID, ErrNotFound)
		}
		query, args := updateQuery(TableComponent, dbutil.ToDBMap(rec), "createdat", "userid", "builtin")
		tx.Exec(query, args...)
		return nil
	})
}

func DBDeleteComponent(ctx context.Context, id string) error {
	return WithTx(ctx, func(tx *TxWrap) error {
		if !tx.Exists(fmt.Sprintf("SELECT id FROM %s WHERE id = ?", TableComponent), id) {
			return fmt.Errorf("component %q: %w", id, ErrNotFound)
		}
		tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", TableComponent), id)
		return nil
	})
}

func DBGetUser(ctx context.Context, id string) (*UserRecord, error) {
	return WithTxRtn(ctx, func(tx *TxWrap) (*UserRecord, error) {
		query := fmt.Sprintf("SELECT * FROM %s WHERE id = ?", TableUser)
		rtn := dbutil.GetMappable[*UserRecord](tx, query, id)
		if rtn == nil {
			return nil, fmt.Errorf("user %q: %w", id, ErrNotFound)
		}
		return rtn, nil
	})
}

// emails are matched case-insensitively
func DBGetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return WithTxRtn(ctx, func(tx *TxWrap) (*UserRecord, error) {
		query := fmt.Sprintf("SELECT * FROM %s WHERE email = ?", TableUser)
		rtn := dbutil.GetMappable[*UserRecord](tx, query, NormalizeEmail(email))
		if rtn == nil {
			return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
		}
		return rtn, nil
	})
}

// DBGetUsers returns the users that exist among ids, keyed by id.
func DBGetUsers(ctx context.Context, ids []string) (map[string]*UserRecord, error) {
	return WithTxRtn(ctx, func(tx *TxWrap) (map[string]*UserRecord, error) {
		rtn := make(map[string]*UserRecord)
		if len(ids) == 0 {
			return rtn, nil
		}
		query := fmt.Sprintf("SELECT * FROM %s WHERE id IN (SELECT value FROM json_each(?))", TableUser)
		users := dbutil.SelectMappable[*UserRecord](tx, query, dbutil.QuickJsonArr(ids))
		for _, user := range users {
			rtn[user.ID] = user
		}
		return rtn, nil
	})
}

func DBInsertUser(ctx context.Context, user *UserRecord) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().UnixMilli()
	}
	user.Email = NormalizeEmail(user.Email)
	return WithTx(ctx, func(tx *TxWrap) error {
		if tx.Exists(fmt.Sprintf("SELECT id FROM %s WHERE email = ?", TableUser), user.Email) {
			return fmt.Errorf("%s: %w", user.Email, ErrDuplicateEmail)
		}
		query, args := insertQuery(TableUser, dbutil.ToDBMap(user))
		tx.Exec(query, args...)
		return nil
	})
}

// DBUpdateUser writes profile fields.  email and createdat never change.
func DBUpdateUser(ctx context.Context, user *UserRecord) error {
	return WithTx(ctx, func(tx *TxWrap) error {
		if !tx.Exists(fmt.Sprintf("SELECT id FROM %s WHERE id = ?", TableUser), user.ID) {
			return fmt.Errorf("user %q: %w", user.ID, ErrNotFound)
		}
		query, args := updateQuery(TableUser, dbutil.ToDBMap(user), "email", "createdat")
		tx.Exec(query, args...)
		return nil
	})
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
