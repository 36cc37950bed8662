package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablescrub/internal/clean"
	"tablescrub/internal/table"
)

func newTestStore(t *testing.T, max int) *Store {
	t.Helper()
	s := NewStore(30*time.Minute, time.Hour, max)
	t.Cleanup(s.Close)
	return s
}

func parsedFixture() table.Parsed {
	return table.Parse("Name,City\nAlice, NYC\nAlice,NYC\n, \n")
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t, 0)

	sess, err := s.Create("contacts.csv", parsedFixture())
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	assert.Equal(t, "contacts.csv", sess.FileName)
	assert.Equal(t, table.Comma, sess.Delimiter)
	assert.Equal(t, table.Header{"Name", "City"}, sess.Headers)
	assert.Len(t, sess.Original, 3)
	assert.Equal(t, sess.Original, sess.Current)
	assert.Equal(t, clean.DefaultOptions(), sess.Options)

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, 1, s.Len())
}

func TestGetUnknownID(t *testing.T) {
	s := newTestStore(t, 0)

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanRunsFromOriginal(t *testing.T) {
	s := newTestStore(t, 0)

	sess, err := s.Create("contacts.csv", parsedFixture())
	require.NoError(t, err)

	opts := clean.DefaultOptions()
	cleaned, err := s.Clean(sess.ID, opts)
	require.NoError(t, err)

	assert.Equal(t, table.Table{{"Alice", "NYC"}}, cleaned.Current)
	assert.Equal(t, 1, cleaned.Stats.DuplicatesRemoved)
	assert.Equal(t, 1, cleaned.Stats.EmptyRowsRemoved)
	// The original upload stays intact.
	assert.Len(t, cleaned.Original, 3)

	// A second run with the same options reports the same stats because
	// cleaning always restarts from the original.
	again, err := s.Clean(sess.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, cleaned.Current, again.Current)
	assert.Equal(t, cleaned.Stats, again.Stats)
}

func TestReset(t *testing.T) {
	s := newTestStore(t, 0)

	sess, err := s.Create("contacts.csv", parsedFixture())
	require.NoError(t, err)

	opts := clean.Options{RemoveDuplicates: true, RemoveEmptyRows: true}
	_, err = s.Clean(sess.ID, opts)
	require.NoError(t, err)

	reset, err := s.Reset(sess.ID)
	require.NoError(t, err)

	assert.Equal(t, sess.Original, reset.Current)
	assert.Equal(t, clean.Stats{}, reset.Stats)
	// Selected options survive a reset.
	assert.Equal(t, opts, reset.Options)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t, 0)

	sess, err := s.Create("contacts.csv", parsedFixture())
	require.NoError(t, err)

	require.NoError(t, s.Delete(sess.ID))
	assert.Equal(t, 0, s.Len())

	assert.ErrorIs(t, s.Delete(sess.ID), ErrNotFound)
	_, err = s.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFull(t *testing.T) {
	s := newTestStore(t, 1)

	first, err := s.Create("a.csv", parsedFixture())
	require.NoError(t, err)

	_, err = s.Create("b.csv", parsedFixture())
	assert.ErrorIs(t, err, ErrStoreFull)

	// Deleting frees a slot.
	require.NoError(t, s.Delete(first.ID))
	_, err = s.Create("c.csv", parsedFixture())
	assert.NoError(t, err)
}

func TestEvictExpired(t *testing.T) {
	s := newTestStore(t, 0)

	fresh, err := s.Create("fresh.csv", parsedFixture())
	require.NoError(t, err)
	stale, err := s.Create("stale.csv", parsedFixture())
	require.NoError(t, err)

	// Backdate the stale session past the TTL.
	s.mu.Lock()
	s.sessions[stale.ID].LastAccess = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	s.evictExpired()

	_, err = s.Get(stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestSnapshotIsolation(t *testing.T) {
	s := newTestStore(t, 0)

	sess, err := s.Create("contacts.csv", parsedFixture())
	require.NoError(t, err)

	// Cleaning swaps in a new table; snapshots taken before keep the old one.
	before := sess.Current
	_, err = s.Clean(sess.ID, clean.DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, before, 3)
}
