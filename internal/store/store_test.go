package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizutanik/shiori/internal/domain"
)

func openTestStore(t *testing.T) *LibraryStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(sourceID string) domain.LibraryEntry {
	return domain.LibraryEntry{
		Identity:    domain.Identity{Provider: "pixiv", SourceID: sourceID},
		Title:       "Title " + sourceID,
		Author:      "Author",
		Fingerprint: "fp-" + sourceID,
		EpubUUID:    "uuid-" + sourceID,
		EpubPath:    "/out/" + sourceID + ".epub",
		LastBuiltAt: time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestGet_AbsentReturnsNil(t *testing.T) {
	s := openTestStore(t)

	entry, err := s.Get(domain.Identity{Provider: "pixiv", SourceID: "none"})
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := testEntry("1")

	require.NoError(t, s.Put(want))

	got, err := s.Get(want.Identity)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Identity, got.Identity)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Fingerprint, got.Fingerprint)
	assert.Equal(t, want.EpubUUID, got.EpubUUID)
	assert.Equal(t, want.EpubPath, got.EpubPath)
	assert.True(t, want.LastBuiltAt.Equal(got.LastBuiltAt))
}

func TestPut_ReplacesExisting(t *testing.T) {
	s := openTestStore(t)
	entry := testEntry("1")
	require.NoError(t, s.Put(entry))

	entry.Fingerprint = "fp-rebuilt"
	require.NoError(t, s.Put(entry))

	got, err := s.Get(entry.Identity)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fp-rebuilt", got.Fingerprint)

	entries, err := s.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPut_InvalidIdentityRejected(t *testing.T) {
	s := openTestStore(t)
	err := s.Put(domain.LibraryEntry{Title: "no identity"})
	require.Error(t, err)
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(testEntry("1")))
	require.NoError(t, s.Put(testEntry("2")))
	require.NoError(t, s.Put(testEntry("3")))

	entries, err := s.List()
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(testEntry("1")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(testEntry("1").Identity)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fp-1", got.Fingerprint)
}

func TestLock_SerializesSameIdentity(t *testing.T) {
	s := openTestStore(t)
	id := domain.Identity{Provider: "pixiv", SourceID: "1"}

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(id)
			defer unlock()
			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, counter)
}

func TestLock_DistinctIdentitiesIndependent(t *testing.T) {
	s := openTestStore(t)

	unlockA := s.Lock(domain.Identity{Provider: "pixiv", SourceID: "1"})
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := s.Lock(domain.Identity{Provider: "pixiv", SourceID: "2"})
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different identity blocked")
	}
}
