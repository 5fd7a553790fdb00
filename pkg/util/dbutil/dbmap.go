// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package dbutil

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/sawka/txwrap"
)

// DBMappable marks a struct whose exported fields map one-to-one onto table
// columns.  the column is the lowercased field name unless a dbmap tag names
// it ("-" skips the field).  slices, maps and structs are stored as json text.
type DBMappable interface {
	UseDBMap()
}

type DBMappablePtr[T any] interface {
	DBMappable
	*T
}

type colKind int

const (
	colScalar colKind = iota
	colJson
)

type colPlan struct {
	name  string
	index []int
	kind  colKind
}

var planCache sync.Map // reflect.Type -> []colPlan

func planFor(rt reflect.Type) []colPlan {
	if cached, ok := planCache.Load(rt); ok {
		return cached.([]colPlan)
	}
	var plan []colPlan
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Tag.Get("dbmap")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		kind := colScalar
		switch field.Type.Kind() {
		case reflect.Slice, reflect.Map, reflect.Struct, reflect.Pointer:
			kind = colJson
		}
		plan = append(plan, colPlan{name: name, index: field.Index, kind: kind})
	}
	planCache.Store(rt, plan)
	return plan
}

func structValue(v DBMappable) reflect.Value {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			panic(fmt.Sprintf("dbutil: nil %T", v))
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		panic(fmt.Sprintf("dbutil: %T is not a struct", v))
	}
	return rv
}

// ToDBMap returns the column values for v.  nil slices encode as "[]".
func ToDBMap(v DBMappable) map[string]any {
	rv := structValue(v)
	rtn := make(map[string]any)
	for _, col := range planFor(rv.Type()) {
		fieldVal := rv.FieldByIndex(col.index)
		if col.kind == colScalar {
			rtn[col.name] = fieldVal.Interface()
			continue
		}
		rtn[col.name] = QuickJsonArr(fieldVal.Interface())
	}
	return rtn
}

// FromDBMap fills v from a row map.  missing columns leave fields untouched.
func FromDBMap(v DBMappable, m map[string]any) error {
	rv := structValue(v)
	for _, col := range planFor(rv.Type()) {
		raw, ok := m[col.name]
		if !ok || raw == nil {
			continue
		}
		fieldVal := rv.FieldByIndex(col.index)
		if col.kind == colJson {
			text := asString(raw)
			if text == "" {
				continue
			}
			err := json.Unmarshal([]byte(text), fieldVal.Addr().Interface())
			if err != nil {
				return fmt.Errorf("column %s: %w", col.name, err)
			}
			continue
		}
		err := setScalar(fieldVal, raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", col.name, err)
		}
	}
	return nil
}

func asString(raw any) string {
	switch val := raw.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	}
	return fmt.Sprint(raw)
}

func asInt64(raw any) (int64, error) {
	switch val := raw.(type) {
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string, []byte:
		return strconv.ParseInt(asString(val), 10, 64)
	}
	return 0, fmt.Errorf("cannot read %T as an integer", raw)
}

func setScalar(fieldVal reflect.Value, raw any) error {
	switch fieldVal.Kind() {
	case reflect.String:
		fieldVal.SetString(asString(raw))
	case reflect.Bool:
		ival, err := asInt64(raw)
		if err != nil {
			return err
		}
		fieldVal.SetBool(ival != 0)
	case reflect.Int, reflect.Int32, reflect.Int64:
		ival, err := asInt64(raw)
		if err != nil {
			return err
		}
		fieldVal.SetInt(ival)
	default:
		return fmt.Errorf("unsupported field kind %v", fieldVal.Kind())
	}
	return nil
}

func GetMappable[PT DBMappablePtr[T], T any](tx *txwrap.TxWrap, query string, args ...any) PT {
	m := tx.GetMap(query, args...)
	if len(m) == 0 {
		return nil
	}
	rtn := PT(new(T))
	err := FromDBMap(rtn, m)
	if err != nil {
		tx.SetErr(err)
		return nil
	}
	return rtn
}

func SelectMappable[PT DBMappablePtr[T], T any](tx *txwrap.TxWrap, query string, args ...any) []PT {
	var rtn []PT
	for _, m := range tx.SelectMaps(query, args...) {
		if len(m) == 0 {
			continue
		}
		val := PT(new(T))
		err := FromDBMap(val, m)
		if err != nil {
			tx.SetErr(err)
			return nil
		}
		rtn = append(rtn, val)
	}
	return rtn
}

// QuickJsonArr encodes v as json, with nil becoming "[]".
func QuickJsonArr(v any) string {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return "[]"
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer:
		if rv.IsNil() {
			if rv.Kind() == reflect.Slice {
				return "[]"
			}
			return "null"
		}
	}
	barr, _ := json.Marshal(v)
	return string(barr)
}
