// Package store persists engine records in SQLite. Schema and queries are
// generated from the `column`, `dbtype`, `primary` and `index` struct tags
// carried by the engine types, so adding a field to a record is a one-line
// change.
package store

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection and the tag-driven SQL generation shared by
// the typed stores.
type DB struct {
	conn *sql.DB
	log  *logrus.Entry
}

// Open opens (or creates) the SQLite database at path.
func Open(path string, log *logrus.Entry) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.WithField("path", path).Info("database opened")
	return &DB{conn: conn, log: log}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateTable creates the table and indexes for the given record type if
// they do not exist.
func (db *DB) CreateTable(table string, record interface{}) error {
	createSQL := generateCreateTableSQL(record, table)
	db.log.WithField("sql", createSQL).Debug("creating table")
	if _, err := db.conn.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	for _, indexSQL := range generateIndexSQL(record, table) {
		if _, err := db.conn.Exec(indexSQL); err != nil {
			db.log.WithError(err).Warn("failed to create index")
		}
	}
	return nil
}

// Save inserts the record, or updates it when a row with the same primary
// key already exists.
func (db *DB) Save(table string, record interface{}) error {
	exists, err := db.exists(table, record)
	if err != nil {
		return err
	}
	if exists {
		return db.update(table, record)
	}
	return db.insert(table, record)
}

// SaveAll saves records inside a single transaction.
func (db *DB) SaveAll(table string, records []interface{}) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, record := range records {
		columns, placeholders, values := insertData(record)
		query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
		if _, err := tx.Exec(query, values...); err != nil {
			return fmt.Errorf("failed to save into %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (db *DB) insert(table string, record interface{}) error {
	columns, placeholders, values := insertData(record)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	db.log.WithField("sql", query).Debug("insert")
	if _, err := db.conn.Exec(query, values...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func (db *DB) update(table string, record interface{}) error {
	setPairs, values := updateData(record)
	whereClause, whereValues := whereFromPrimaryKey(record)
	values = append(values, whereValues...)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(setPairs, ", "), whereClause)
	db.log.WithField("sql", query).Debug("update")
	if _, err := db.conn.Exec(query, values...); err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	return nil
}

func (db *DB) exists(table string, record interface{}) (bool, error) {
	whereClause, values := whereFromPrimaryKey(record)
	if whereClause == "" {
		return false, fmt.Errorf("record type %T has no primary key tags", record)
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, whereClause)
	var count int
	if err := db.conn.QueryRow(query, values...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence in %s: %w", table, err)
	}
	return count > 0, nil
}

// FindWhere runs a SELECT with the given where clause and scans each row
// into a new record of prototype's type, invoking collect for each one.
func (db *DB) FindWhere(table string, prototype interface{}, collect func(interface{}), whereClause string, args ...interface{}) error {
	columns, _ := selectData(prototype)
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), table)
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	db.log.WithField("sql", query).Debug("select")

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	recordType := reflect.TypeOf(prototype)
	if recordType.Kind() == reflect.Ptr {
		recordType = recordType.Elem()
	}
	for rows.Next() {
		record := reflect.New(recordType).Interface()
		_, destinations := selectData(record)
		if err := rows.Scan(destinations...); err != nil {
			return fmt.Errorf("failed to scan row from %s: %w", table, err)
		}
		collect(record)
	}
	return rows.Err()
}

// FindOne scans a single row into record. Returns (false, nil) when no row
// matches; expected absence is a result, not an error.
func (db *DB) FindOne(table string, record interface{}, whereClause string, args ...interface{}) (bool, error) {
	columns, destinations := selectData(record)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), table, whereClause)
	db.log.WithField("sql", query).Debug("select one")

	err := db.conn.QueryRow(query, args...).Scan(destinations...)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to scan row from %s: %w", table, err)
	}
	return true, nil
}

// Count returns the number of rows matching the where clause.
func (db *DB) Count(table, whereClause string, args ...interface{}) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	var count int
	if err := db.conn.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// Exec runs an arbitrary statement, used for targeted updates that do not
// fit the tag-generated forms.
func (db *DB) Exec(query string, args ...interface{}) error {
	if _, err := db.conn.Exec(query, args...); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

/////////////////////////////////////////////////////////////////////////
////// Tag-driven SQL generation
/////////////////////////////////////////////////////////////////////////

func generateCreateTableSQL(record interface{}, table string) string {
	recordType := derefType(record)

	var columns []string
	var primaryKeys []string
	for i := 0; i < recordType.NumField(); i++ {
		field := recordType.Field(i)
		if !field.IsExported() {
			continue
		}
		dbType := field.Tag.Get("dbtype")
		if dbType == "" {
			continue
		}
		columnName := columnNameFor(field)
		if field.Tag.Get("primary") == "true" {
			primaryKeys = append(primaryKeys, columnName)
		}
		columns = append(columns, fmt.Sprintf("%s %s", columnName, dbType))
	}
	if len(primaryKeys) > 0 {
		columns = append(columns, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(primaryKeys, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(columns, ", "))
}

func generateIndexSQL(record interface{}, table string) []string {
	recordType := derefType(record)

	var statements []string
	for i := 0; i < recordType.NumField(); i++ {
		field := recordType.Field(i)
		if field.Tag.Get("index") == "" || field.Tag.Get("dbtype") == "" {
			continue
		}
		columnName := columnNameFor(field)
		statements = append(statements, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", table, columnName, table, columnName))
	}
	return statements
}

func insertData(record interface{}) (columns, placeholders []string, values []interface{}) {
	recordValue, recordType := derefValue(record)
	for i := 0; i < recordType.NumField(); i++ {
		field := recordType.Field(i)
		if !field.IsExported() || field.Tag.Get("dbtype") == "" {
			continue
		}
		columns = append(columns, columnNameFor(field))
		placeholders = append(placeholders, "?")
		values = append(values, recordValue.Field(i).Interface())
	}
	return columns, placeholders, values
}

func updateData(record interface{}) (setPairs []string, values []interface{}) {
	recordValue, recordType := derefValue(record)
	for i := 0; i < recordType.NumField(); i++ {
		field := recordType.Field(i)
		if !field.IsExported() || field.Tag.Get("dbtype") == "" || field.Tag.Get("primary") == "true" {
			continue
		}
		setPairs = append(setPairs, fmt.Sprintf("%s = ?", columnNameFor(field)))
		values = append(values, recordValue.Field(i).Interface())
	}
	return setPairs, values
}

func selectData(record interface{}) (columns []string, destinations []interface{}) {
	recordValue, recordType := derefValue(record)
	for i := 0; i < recordType.NumField(); i++ {
		field := recordType.Field(i)
		if !field.IsExported() || field.Tag.Get("dbtype") == "" {
			continue
		}
		columns = append(columns, columnNameFor(field))
		destinations = append(destinations, recordValue.Field(i).Addr().Interface())
	}
	return columns, destinations
}

func whereFromPrimaryKey(record interface{}) (string, []interface{}) {
	recordValue, recordType := derefValue(record)

	var conditions []string
	var values []interface{}
	for i := 0; i < recordType.NumField(); i++ {
		field := recordType.Field(i)
		if field.Tag.Get("primary") != "true" {
			continue
		}
		conditions = append(conditions, fmt.Sprintf("%s = ?", columnNameFor(field)))
		values = append(values, recordValue.Field(i).Interface())
	}
	return strings.Join(conditions, " AND "), values
}

func columnNameFor(field reflect.StructField) string {
	if name := field.Tag.Get("column"); name != "" {
		return name
	}
	return strings.ToLower(field.Name)
}

func derefType(record interface{}) reflect.Type {
	t := reflect.TypeOf(record)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func derefValue(record interface{}) (reflect.Value, reflect.Type) {
	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v, v.Type()
}
