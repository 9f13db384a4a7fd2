package backup

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects []Object
	deleted []string
}

func (f *fakeStore) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	return nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]Object, error) {
	return f.objects, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func archiveName(t time.Time) string {
	return archivePrefix + t.Format("2006-01-02-150405") + ".tar.gz"
}

func TestService_RotateKeepsMinimumRegardlessOfAge(t *testing.T) {
	now := time.Now()
	store := &fakeStore{}
	for i := 0; i < 4; i++ {
		ts := now.AddDate(0, 0, -365*(i+1))
		store.objects = append(store.objects, Object{Key: archiveName(ts), Size: 100})
	}

	svc := New(store, nil, t.TempDir(), 30, zerolog.Nop())
	require.NoError(t, svc.Rotate(context.Background()))

	assert.Len(t, store.deleted, 1) // only the 4th (oldest) beyond minBackupsToKeep=3
}

func TestService_RotateDisabledWhenRetentionIsZero(t *testing.T) {
	now := time.Now()
	store := &fakeStore{}
	for i := 0; i < 10; i++ {
		ts := now.AddDate(0, 0, -365*(i+1))
		store.objects = append(store.objects, Object{Key: archiveName(ts), Size: 100})
	}

	svc := New(store, nil, t.TempDir(), 0, zerolog.Nop())
	require.NoError(t, svc.Rotate(context.Background()))

	assert.Empty(t, store.deleted)
}

func TestService_RotateSkipsWhenTooFewBackups(t *testing.T) {
	store := &fakeStore{objects: []Object{
		{Key: archiveName(time.Now().AddDate(0, 0, -400)), Size: 100},
	}}

	svc := New(store, nil, t.TempDir(), 30, zerolog.Nop())
	require.NoError(t, svc.Rotate(context.Background()))

	assert.Empty(t, store.deleted)
}

func TestService_ListSortsNewestFirst(t *testing.T) {
	now := time.Now()
	older := now.AddDate(0, 0, -2)
	newer := now.AddDate(0, 0, -1)
	store := &fakeStore{objects: []Object{
		{Key: archiveName(older), Size: 1},
		{Key: archiveName(newer), Size: 2},
	}}

	svc := New(store, nil, t.TempDir(), 30, zerolog.Nop())
	backups, err := svc.List(context.Background())

	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.True(t, backups[0].Timestamp.After(backups[1].Timestamp))
}
