package playground

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func journalEntry(i int) RequestEntry {
	return RequestEntry{
		ID:         fmt.Sprintf("req-%d", i),
		Time:       time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
		Method:     "GET",
		Path:       fmt.Sprintf("/pets/%d", i),
		Status:     200,
		DurationMs: int64(i),
		Source:     SourceSchema,
	}
}

func testJournal(t *testing.T, journal Journal, capacity int) {
	ctx := context.Background()

	entries, err := journal.List(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	for i := 1; i <= capacity+2; i++ {
		require.NoError(t, journal.Record(ctx, journalEntry(i)))
	}

	entries, err = journal.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, capacity, "oldest entries are evicted")
	assert.Equal(t, journalEntry(capacity+2), entries[0], "newest first")
	assert.Equal(t, journalEntry(3), entries[capacity-1])

	entries, err = journal.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-"+fmt.Sprint(capacity+1), entries[1].ID)

	require.NoError(t, journal.Close())
}

func TestMemoryJournal(t *testing.T) {
	testJournal(t, NewMemoryJournal(5), 5)
}

func TestMemoryJournalPartial(t *testing.T) {
	journal := NewMemoryJournal(10)
	ctx := context.Background()
	require.NoError(t, journal.Record(ctx, journalEntry(1)))
	require.NoError(t, journal.Record(ctx, journalEntry(2)))

	entries, err := journal.List(ctx, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-2", entries[0].ID)
}

func TestSQLiteJournal(t *testing.T) {
	journal, err := OpenSQLiteJournal(context.Background(), filepath.Join(t.TempDir(), "db", "journal.db"), 4)
	require.NoError(t, err)
	testJournal(t, journal, 4)
}

func TestSQLiteJournalPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	journal, err := OpenSQLiteJournal(ctx, path, 0)
	require.NoError(t, err)
	require.NoError(t, journal.Record(ctx, journalEntry(1)))
	require.NoError(t, journal.Close())

	reopened, err := OpenSQLiteJournal(ctx, path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journalEntry(1), entries[0])
}

func TestNewJournal(t *testing.T) {
	journal, err := NewJournal(context.Background(), nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryJournal{}, journal)

	journal, err = NewJournal(context.Background(), &MonitorConfig{JournalPath: ":memory:", HistorySize: 3})
	require.NoError(t, err)
	require.IsType(t, &SQLiteJournal{}, journal)
	testJournal(t, journal, 3)
}
