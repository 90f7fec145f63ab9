package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	exists    bool
	existsErr error
	putErr    error
	made      []string
	objects   map[string]string
	types     map[string]string
}

func newFakeObjectStore(exists bool) *fakeObjectStore {
	return &fakeObjectStore{exists: exists, objects: map[string]string{}, types: map[string]string{}}
}

func (f *fakeObjectStore) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeObjectStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucket+"/"+name] = string(body)
	f.types[bucket+"/"+name] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: size}, nil
}

func TestNewTranscriptArchiveCreatesMissingBucket(t *testing.T) {
	store := newFakeObjectStore(false)
	_, err := newTranscriptArchive(context.Background(), store, "transcripts", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"transcripts"}, store.made)

	existing := newFakeObjectStore(true)
	_, err = newTranscriptArchive(context.Background(), existing, "transcripts", nil)
	require.NoError(t, err)
	assert.Empty(t, existing.made)
}

func TestNewTranscriptArchiveBucketCheckFails(t *testing.T) {
	store := newFakeObjectStore(false)
	store.existsErr = errors.New("access denied")
	_, err := newTranscriptArchive(context.Background(), store, "transcripts", nil)
	assert.ErrorContains(t, err, "check bucket transcripts: access denied")
}

func TestTranscriptArchiveStore(t *testing.T) {
	store := newFakeObjectStore(true)
	archive, err := newTranscriptArchive(context.Background(), store, "transcripts", nil)
	require.NoError(t, err)

	location, err := archive.Store(context.Background(), "transcripts/2024/03/01/ticket-c1-transcript.txt", []byte("body"))
	require.NoError(t, err)
	assert.Equal(t, "transcripts/transcripts/2024/03/01/ticket-c1-transcript.txt", location)
	assert.Equal(t, "body", store.objects[location])
	assert.Equal(t, transcriptContentType, store.types[location])

	store.putErr = errors.New("quota exceeded")
	_, err = archive.Store(context.Background(), "k", []byte("x"))
	assert.ErrorContains(t, err, "upload transcript k: quota exceeded")
}
