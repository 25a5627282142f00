// Package store persists entries, relation edges, and collections in SQLite
// and notifies watchers when they change.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"tableflip.dev/jot/pkg/collection"
	"tableflip.dev/jot/pkg/entry"
)

//go:embed schema.sql
var schema string

var (
	// ErrNotFound is returned when no row matches the requested id.
	ErrNotFound = errors.New("store: entry not found")
	// ErrSelfLoop is returned when a relation would link a row to itself.
	ErrSelfLoop = errors.New("store: relation cannot link an entry to itself")
	// ErrMissingRow is returned when a relation edge references a row that
	// does not exist. Callers treat it as an internal invariant violation.
	ErrMissingRow = errors.New("store: relation references a missing entry")
	// ErrConstraint wraps database constraint violations (e.g. duplicate
	// uid/occurrence identity) so callers can surface them as notices.
	ErrConstraint = errors.New("store: constraint violation")
)

// Store handles database operations for the engine. A single Store is safe
// for concurrent readers; writes are expected to arrive serialized from the
// engine's work queue.
type Store struct {
	db    *sql.DB
	watch *notifier
}

// Open creates a Store at the given database path, initializing the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite has a single writer anyway; one connection also keeps
	// in-memory databases on the same schema.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	return &Store{db: db, watch: newNotifier(50 * time.Millisecond)}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.watch.close()
	return s.db.Close()
}

// DB exposes the underlying handle for read-only query execution.
func (s *Store) DB() *sql.DB {
	return s.db
}

const entryColumns = `id, uid, module, summary, description,
	dtstart, dtstart_tz, due, due_tz, completed, completed_tz,
	status, classification, priority, percent,
	rrule, recurrence_id, sequence, collection_id, categories,
	dirty, deleted, upload_pending, read_only, created, last_modified`

// entryWriteColumns is entryColumns without the autoincrement id.
var entryWriteColumns = []string{
	"uid", "module", "summary", "description",
	"dtstart", "dtstart_tz", "due", "due_tz", "completed", "completed_tz",
	"status", "classification", "priority", "percent",
	"rrule", "recurrence_id", "sequence", "collection_id", "categories",
	"dirty", "deleted", "upload_pending", "read_only", "created", "last_modified",
}

// catSep joins the category set in one text column.
const catSep = ","

func wrapConstraint(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}

func millisOrNull(t *entry.Timestamp) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Millis()
}

func recurrenceMillis(t *entry.Timestamp) int64 {
	if t == nil {
		return 0
	}
	return t.Millis()
}

func entryArgs(e *entry.Entry) []any {
	return []any{
		e.UID, string(e.Module), e.Summary, e.Description,
		millisOrNull(e.DTStart), e.DTStartTZ,
		millisOrNull(e.Due), e.DueTZ,
		millisOrNull(e.Completed), e.CompletedTZ,
		string(e.Status), string(e.Classification), e.Priority, e.PercentComplete,
		e.RecurrenceRule, recurrenceMillis(e.RecurrenceID), e.Sequence,
		e.CollectionID, strings.Join(e.Categories, catSep),
		e.Dirty, e.Deleted, e.UploadPending, e.ReadOnly,
		e.Created.Millis(), e.LastModified.Millis(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc rowScanner) (*entry.Entry, error) {
	var e entry.Entry
	var module, status, class, categories string
	var dtstart, due, completed sql.NullInt64
	var recurrenceID, created, lastModified int64
	err := sc.Scan(
		&e.ID, &e.UID, &module, &e.Summary, &e.Description,
		&dtstart, &e.DTStartTZ, &due, &e.DueTZ, &completed, &e.CompletedTZ,
		&status, &class, &e.Priority, &e.PercentComplete,
		&e.RecurrenceRule, &recurrenceID, &e.Sequence, &e.CollectionID, &categories,
		&e.Dirty, &e.Deleted, &e.UploadPending, &e.ReadOnly,
		&created, &lastModified,
	)
	if err != nil {
		return nil, err
	}
	e.Module = entry.Module(module)
	e.Status = entry.Status(status)
	e.Classification = entry.Classification(class)
	if dtstart.Valid {
		t := entry.FromMillis(dtstart.Int64)
		e.DTStart = &t
	}
	if due.Valid {
		t := entry.FromMillis(due.Int64)
		e.Due = &t
	}
	if completed.Valid {
		t := entry.FromMillis(completed.Int64)
		e.Completed = &t
	}
	if recurrenceID != 0 {
		t := entry.FromMillis(recurrenceID)
		e.RecurrenceID = &t
	}
	if categories != "" {
		e.Categories = strings.Split(categories, catSep)
	}
	e.Created = entry.FromMillis(created)
	e.LastModified = entry.FromMillis(lastModified)
	return &e, nil
}

// Insert persists a new entry and assigns its storage id.
func (s *Store) Insert(e *entry.Entry) error {
	q := fmt.Sprintf("INSERT INTO entries (%s) VALUES (%s)",
		strings.Join(entryWriteColumns, ", "), placeholders(len(entryWriteColumns)))
	res, err := s.db.Exec(q, entryArgs(e)...)
	if err != nil {
		return fmt.Errorf("store: insert entry: %w", wrapConstraint(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: insert entry id: %w", err)
	}
	e.ID = id
	s.watch.notify(Event{Type: EventEntriesChanged, Module: e.Module})
	return nil
}

// Get retrieves an entry by storage id.
func (s *Store) Get(id int64) (*entry.Entry, error) {
	row := s.db.QueryRow("SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get entry: %w", err)
	}
	return e, nil
}

// Update rewrites every mutable column of an existing entry.
func (s *Store) Update(e *entry.Entry) error {
	sets := make([]string, len(entryWriteColumns))
	for i, c := range entryWriteColumns {
		sets[i] = c + " = ?"
	}
	args := append(entryArgs(e), e.ID)
	res, err := s.db.Exec("UPDATE entries SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("store: update entry: %w", wrapConstraint(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, e.ID)
	}
	s.watch.notify(Event{Type: EventEntriesChanged, Module: e.Module})
	return nil
}

// DeleteRows removes entries and every edge touching them, atomically. Rows
// go first and edges last inside one transaction, so an abort leaves the
// graph untouched and a commit leaves no dangling edge.
func (s *Store) DeleteRows(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: delete rows: %w", err)
	}
	defer tx.Rollback()

	in := placeholders(len(ids))
	args := idArgs(ids)
	if _, err := tx.Exec("DELETE FROM entries WHERE id IN ("+in+")", args...); err != nil {
		return fmt.Errorf("store: delete entries: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM relations WHERE parent_id IN ("+in+") OR child_id IN ("+in+")",
		append(args, args...)...); err != nil {
		return fmt.Errorf("store: delete relations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: delete rows commit: %w", err)
	}
	s.watch.notify(Event{Type: EventEntriesChanged})
	return nil
}

// ReplaceOccurrence atomically swaps a generated occurrence for its exception
// clone: the occurrence row and its edges are removed, the clone inserted,
// and the series linked to it, all in one transaction. The clone's id is
// assigned only on commit; any failure leaves the occurrence in place.
func (s *Store) ReplaceOccurrence(occurrenceID, seriesID int64, clone *entry.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: replace occurrence: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries WHERE id = ?", occurrenceID); err != nil {
		return fmt.Errorf("store: replace occurrence delete: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM relations WHERE parent_id = ? OR child_id = ?",
		occurrenceID, occurrenceID); err != nil {
		return fmt.Errorf("store: replace occurrence edges: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO entries (%s) VALUES (%s)",
		strings.Join(entryWriteColumns, ", "), placeholders(len(entryWriteColumns)))
	res, err := tx.Exec(q, entryArgs(clone)...)
	if err != nil {
		return fmt.Errorf("store: replace occurrence insert: %w", wrapConstraint(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: replace occurrence id: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO relations (parent_id, child_id, reltype, other_uid) VALUES (?, ?, ?, ?)",
		seriesID, id, string(entry.RelChild), clone.UID); err != nil {
		return fmt.Errorf("store: replace occurrence link: %w", wrapConstraint(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: replace occurrence commit: %w", err)
	}
	clone.ID = id
	s.watch.notify(Event{Type: EventEntriesChanged, Module: clone.Module})
	return nil
}

// MarkDeleted stages rows for the sync adapter: deleted and dirty, rows and
// edges retained until server-side removal is confirmed.
func (s *Store) MarkDeleted(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{time.Now().UnixMilli()}, idArgs(ids)...)
	_, err := s.db.Exec(
		"UPDATE entries SET deleted = 1, dirty = 1, last_modified = ? WHERE id IN ("+placeholders(len(ids))+")",
		args...)
	if err != nil {
		return fmt.Errorf("store: mark deleted: %w", err)
	}
	s.watch.notify(Event{Type: EventEntriesChanged})
	return nil
}

// UpdateCollectionIDs rewrites collection_id in place for the given rows.
// Only valid for purely local moves; remote moves copy instead.
func (s *Store) UpdateCollectionIDs(ids []int64, collectionID int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{collectionID, time.Now().UnixMilli()}, idArgs(ids)...)
	_, err := s.db.Exec(
		"UPDATE entries SET collection_id = ?, last_modified = ? WHERE id IN ("+placeholders(len(ids))+")",
		args...)
	if err != nil {
		return fmt.Errorf("store: move rows: %w", err)
	}
	s.watch.notify(Event{Type: EventEntriesChanged})
	return nil
}

// Link inserts a relation edge, rejecting self-loops and edges to rows that
// do not exist.
func (s *Store) Link(parentID, childID int64, typ entry.RelType, otherUID string) error {
	if parentID == childID {
		return ErrSelfLoop
	}
	var n int
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM entries WHERE id IN (?, ?)", parentID, childID).Scan(&n); err != nil {
		return fmt.Errorf("store: link lookup: %w", err)
	}
	if n != 2 {
		return fmt.Errorf("%w: %d -> %d", ErrMissingRow, parentID, childID)
	}
	_, err := s.db.Exec(
		"INSERT INTO relations (parent_id, child_id, reltype, other_uid) VALUES (?, ?, ?, ?)",
		parentID, childID, string(typ), otherUID)
	if err != nil {
		return fmt.Errorf("store: link: %w", wrapConstraint(err))
	}
	s.watch.notify(Event{Type: EventEntriesChanged})
	return nil
}

// Relations returns every edge touching the given row.
func (s *Store) Relations(id int64) ([]entry.Relation, error) {
	rows, err := s.db.Query(
		"SELECT parent_id, child_id, reltype, other_uid FROM relations WHERE parent_id = ? OR child_id = ?",
		id, id)
	if err != nil {
		return nil, fmt.Errorf("store: relations: %w", err)
	}
	defer rows.Close()

	var rels []entry.Relation
	for rows.Next() {
		var r entry.Relation
		var typ string
		if err := rows.Scan(&r.ParentID, &r.ChildID, &typ, &r.OtherUID); err != nil {
			return nil, fmt.Errorf("store: scan relation: %w", err)
		}
		r.Type = entry.RelType(typ)
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// CascadeSet returns every id reachable from root over CHILD edges,
// inclusive of root. The walk is guarded by a visited set so a structurally
// impossible cycle cannot hang the engine, and it fails before any
// destructive step if an edge references a missing row.
func (s *Store) CascadeSet(rootID int64) ([]int64, error) {
	if _, err := s.Get(rootID); err != nil {
		return nil, err
	}

	children := make(map[int64][]int64)
	rows, err := s.db.Query("SELECT parent_id, child_id FROM relations WHERE reltype = ?", string(entry.RelChild))
	if err != nil {
		return nil, fmt.Errorf("store: cascade edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p, c int64
		if err := rows.Scan(&p, &c); err != nil {
			return nil, fmt.Errorf("store: scan edge: %w", err)
		}
		children[p] = append(children[p], c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	exists := make(map[int64]bool)
	idRows, err := s.db.Query("SELECT id FROM entries")
	if err != nil {
		return nil, fmt.Errorf("store: cascade ids: %w", err)
	}
	defer idRows.Close()
	for idRows.Next() {
		var id int64
		if err := idRows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan id: %w", err)
		}
		exists[id] = true
	}
	if err := idRows.Err(); err != nil {
		return nil, err
	}

	visited := map[int64]bool{}
	stack := []int64{rootID}
	var set []int64
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		if !exists[id] {
			return nil, fmt.Errorf("%w: id %d", ErrMissingRow, id)
		}
		visited[id] = true
		set = append(set, id)
		stack = append(stack, children[id]...)
	}
	return set, nil
}

// SeriesByUID returns the series definition row for a uid: the single row
// without a recurrence id.
func (s *Store) SeriesByUID(uid string) (*entry.Entry, error) {
	row := s.db.QueryRow(
		"SELECT "+entryColumns+" FROM entries WHERE uid = ? AND recurrence_id = 0", uid)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: series uid %s", ErrNotFound, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("store: series by uid: %w", err)
	}
	return e, nil
}

// InstancesByUID returns the materialized occurrence rows of a series,
// ordered by occurrence start.
func (s *Store) InstancesByUID(uid string) ([]*entry.Entry, error) {
	rows, err := s.db.Query(
		"SELECT "+entryColumns+" FROM entries WHERE uid = ? AND recurrence_id != 0 ORDER BY recurrence_id", uid)
	if err != nil {
		return nil, fmt.Errorf("store: instances by uid: %w", err)
	}
	defer rows.Close()

	var out []*entry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan instance: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertCollection persists a collection and assigns its id.
func (s *Store) InsertCollection(c *collection.Collection) error {
	if err := collection.Validate(*c); err != nil {
		return err
	}
	res, err := s.db.Exec(
		"INSERT INTO collections (name, account_name, local, read_only, color) VALUES (?, ?, ?, ?, ?)",
		c.Name, c.AccountName, c.Local, c.ReadOnly, c.Color)
	if err != nil {
		return fmt.Errorf("store: insert collection: %w", wrapConstraint(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: insert collection id: %w", err)
	}
	c.ID = id
	s.watch.notify(Event{Type: EventCollectionsChanged})
	return nil
}

// GetCollection retrieves a collection by id.
func (s *Store) GetCollection(id int64) (*collection.Collection, error) {
	var c collection.Collection
	err := s.db.QueryRow(
		"SELECT id, name, account_name, local, read_only, color FROM collections WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.AccountName, &c.Local, &c.ReadOnly, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: collection %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get collection: %w", err)
	}
	return &c, nil
}

// ListCollections returns all collections ordered by account then name.
func (s *Store) ListCollections() ([]collection.Collection, error) {
	rows, err := s.db.Query(
		"SELECT id, name, account_name, local, read_only, color FROM collections ORDER BY account_name, name")
	if err != nil {
		return nil, fmt.Errorf("store: list collections: %w", err)
	}
	defer rows.Close()

	var out []collection.Collection
	for rows.Next() {
		var c collection.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.AccountName, &c.Local, &c.ReadOnly, &c.Color); err != nil {
			return nil, fmt.Errorf("store: scan collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PendingUpload returns entries the sync adapter still needs to transfer.
func (s *Store) PendingUpload() ([]*entry.Entry, error) {
	rows, err := s.db.Query(
		"SELECT " + entryColumns + " FROM entries WHERE dirty = 1 OR upload_pending = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: pending upload: %w", err)
	}
	defer rows.Close()

	var out []*entry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan pending: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearSyncFlags resets dirty and upload-pending after the adapter confirms
// a transfer.
func (s *Store) ClearSyncFlags(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(
		"UPDATE entries SET dirty = 0, upload_pending = 0 WHERE id IN ("+placeholders(len(ids))+")",
		idArgs(ids)...)
	if err != nil {
		return fmt.Errorf("store: clear sync flags: %w", err)
	}
	return nil
}

// PurgeConfirmed physically removes rows previously marked deleted, once the
// adapter confirms server-side removal.
func (s *Store) PurgeConfirmed(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.db.Query(
		"SELECT id FROM entries WHERE deleted = 1 AND id IN ("+placeholders(len(ids))+")",
		idArgs(ids)...)
	if err != nil {
		return fmt.Errorf("store: purge lookup: %w", err)
	}
	defer rows.Close()
	var confirmed []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("store: scan purge id: %w", err)
		}
		confirmed = append(confirmed, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return s.DeleteRows(confirmed)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
