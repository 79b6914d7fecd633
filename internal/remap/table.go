package remap

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	kerrors "github.com/PolarWolf314/veil/internal/errors"
	logger "github.com/PolarWolf314/veil/internal/logging"
	"github.com/PolarWolf314/veil/internal/store"
)

// DefaultRef is where the table lives unless configured otherwise.
const DefaultRef = "refs/veil/remap"

type Entry struct {
	Key   string
	Value string
}

func (e Entry) String() string {
	return e.Key + " " + e.Value
}

// InsertResult describes the table blob produced by Insert or Update.
type InsertResult struct {
	ID store.ID

	// Added is the number of new lines merged into the table.
	Added int

	// Duplicates is the number of lines skipped because their key was
	// already present.
	Duplicates int
}

// Table is the remap table stored under ref in s.
type Table struct {
	store store.Store
	ref   string
	log   logger.Logger

	mu     sync.Mutex
	cached store.ID
	lines  []Entry
}

func New(s store.Store, ref string, log logger.Logger) *Table {
	if ref == "" {
		ref = DefaultRef
	}
	return &Table{store: s, ref: ref, log: log}
}

func (t *Table) Ref() string {
	return t.ref
}

// Head returns the id of the current table blob, or store.ZeroID when the
// table has never been written.
func (t *Table) Head(ctx context.Context) (store.ID, error) {
	return store.ReadRefOrZero(ctx, t.store, t.ref)
}

// Get returns the value recorded for key.
func (t *Table) Get(ctx context.Context, key string) (string, bool, error) {
	_, entries, err := t.load(ctx)
	if err != nil {
		return "", false, err
	}
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Key >= key })
	if i < len(entries) && entries[i].Key == key {
		return entries[i].Value, true, nil
	}
	return "", false, nil
}

// GetByValue returns the key whose value is value. It scans the whole table.
func (t *Table) GetByValue(ctx context.Context, value string) (string, bool, error) {
	_, entries, err := t.load(ctx)
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if e.Value == value {
			return e.Key, true, nil
		}
	}
	return "", false, nil
}

// Entries returns the whole table in key order.
func (t *Table) Entries(ctx context.Context) ([]Entry, error) {
	_, entries, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// Insert merges entries into the current table and writes the result as a
// new blob. The ref is not moved.
func (t *Table) Insert(ctx context.Context, entries []Entry) (InsertResult, error) {
	head, err := t.Head(ctx)
	if err != nil {
		return InsertResult{}, err
	}
	return t.insertAt(ctx, head, entries)
}

// Update records kvs and moves the table ref to the merged table. It fails
// with ErrRefChanged when another writer moved the ref in between.
func (t *Table) Update(ctx context.Context, kvs map[string]string) (InsertResult, error) {
	head, err := t.Head(ctx)
	if err != nil {
		return InsertResult{}, err
	}
	if len(kvs) == 0 {
		return InsertResult{ID: head}, nil
	}

	entries := make([]Entry, 0, len(kvs))
	for k, v := range kvs {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	res, err := t.insertAt(ctx, head, entries)
	if err != nil {
		return InsertResult{}, err
	}
	if res.ID == head {
		return res, nil
	}

	if err := t.store.UpdateRef(ctx, t.ref, res.ID, head); err != nil {
		return InsertResult{}, fmt.Errorf("updating remap table: %w", err)
	}
	t.log.Debugf("remap table %s moved to %s (%d added)", t.ref, res.ID.Short(), res.Added)
	return res, nil
}

func (t *Table) insertAt(ctx context.Context, base store.ID, entries []Entry) (InsertResult, error) {
	existing, err := t.read(ctx, base)
	if err != nil {
		return InsertResult{}, err
	}

	batch := make([]Entry, len(entries))
	copy(batch, entries)
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Key < batch[j].Key })

	merged, added, dups := t.merge(existing, batch)

	var buf bytes.Buffer
	for _, e := range merged {
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}
	id, err := t.store.WriteBlob(ctx, &buf)
	if err != nil {
		return InsertResult{}, fmt.Errorf("writing remap table: %w", err)
	}
	t.remember(id, merged)
	return InsertResult{ID: id, Added: added, Duplicates: dups}, nil
}

// merge is a single linear pass over two key-sorted lists. Existing lines
// win every key collision.
func (t *Table) merge(existing, batch []Entry) (merged []Entry, added, dups int) {
	merged = make([]Entry, 0, len(existing)+len(batch))

	emitNew := func(e Entry) {
		if n := len(merged); n > 0 && merged[n-1].Key == e.Key {
			t.duplicate(merged[n-1], e)
			dups++
			return
		}
		merged = append(merged, e)
		added++
	}

	i, j := 0, 0
	for i < len(existing) && j < len(batch) {
		switch {
		case existing[i].Key < batch[j].Key:
			merged = append(merged, existing[i])
			i++
		case batch[j].Key < existing[i].Key:
			emitNew(batch[j])
			j++
		default:
			t.duplicate(existing[i], batch[j])
			dups++
			j++
		}
	}
	merged = append(merged, existing[i:]...)
	for ; j < len(batch); j++ {
		emitNew(batch[j])
	}
	return merged, added, dups
}

func (t *Table) duplicate(kept, skipped Entry) {
	if kept.Value == skipped.Value {
		t.log.Warnf("%v: %s", kerrors.ErrDuplicateEntry, skipped)
		return
	}
	t.log.WarnfAlways("%v: %s conflicts with %s, keeping the existing entry", kerrors.ErrDuplicateEntry, skipped, kept)
}

func (t *Table) load(ctx context.Context) (store.ID, []Entry, error) {
	head, err := t.Head(ctx)
	if err != nil {
		return store.ZeroID, nil, err
	}
	entries, err := t.read(ctx, head)
	return head, entries, err
}

// read parses the table blob id, reusing the last parsed table when it is
// the same blob.
func (t *Table) read(ctx context.Context, id store.ID) ([]Entry, error) {
	if id == store.ZeroID {
		return nil, nil
	}

	t.mu.Lock()
	if t.cached == id {
		lines := t.lines
		t.mu.Unlock()
		return lines, nil
	}
	t.mu.Unlock()

	data, err := store.ReadBlobBytes(ctx, t.store, id)
	if err != nil {
		return nil, fmt.Errorf("reading remap table: %w", err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}
	t.remember(id, entries)
	return entries, nil
}

func (t *Table) remember(id store.ID, entries []Entry) {
	t.mu.Lock()
	t.cached = id
	t.lines = entries
	t.mu.Unlock()
}

// Parse decodes a table blob. Blank lines are ignored.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, " ")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("%w: malformed remap line %d: %q", kerrors.ErrStore, n, line)
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading remap table: %v", kerrors.ErrStore, err)
	}
	return entries, nil
}
