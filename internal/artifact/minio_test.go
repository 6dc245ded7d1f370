package artifact

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

type fakeObjectStorage struct {
	objects map[string][]byte
	meta    map[string]minio.PutObjectOptions
	putErr  error
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: map[string][]byte{}, meta: map[string]minio.PutObjectOptions{}}
}

func (f *fakeObjectStorage) PutObject(_ context.Context, bucket, key string, reader io.Reader,
	_ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	cnt, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucket+"/"+key] = cnt
	f.meta[bucket+"/"+key] = opts
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(cnt))}, nil
}

func (f *fakeObjectStorage) RemoveObject(_ context.Context, bucket, key string, _ minio.RemoveObjectOptions) error {
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeObjectStorage) StatObject(_ context.Context, bucket, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if _, ok := f.objects[bucket+"/"+key]; !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}
	return minio.ObjectInfo{Key: key}, nil
}

func readerBlob(name, content string) Blob {
	return Blob{
		Kind: KindDocument,
		Name: name,
		MIME: "text/plain",
		Size: int64(len(content)),
		Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func TestMinioBackendPutAndRemove(t *testing.T) {
	cli := newFakeObjectStorage()
	b, err := NewMinioBackend(cli, "bucket", "/files/")
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := b.Put(ctx, readerBlob("notes.txt", "hello"), Metadata{OwnerUID: 3})
	require.NoError(t, err)
	require.NotEmpty(t, ref.FileID)
	require.Equal(t, "files/"+ref.FileID+"/notes.txt", ref.Locator)
	require.Equal(t, []byte("hello"), cli.objects["bucket/"+ref.Locator])
	require.Equal(t, "text/plain", cli.meta["bucket/"+ref.Locator].ContentType)
	require.Equal(t, "3", cli.meta["bucket/"+ref.Locator].UserMetadata["owner"])

	require.NoError(t, b.Remove(ctx, ref))
	require.Empty(t, cli.objects)

	err = b.Remove(ctx, ref)
	require.Error(t, err)
	require.True(t, b.IsNotExist(err))
}

func TestMinioBackendDeleteThroughStore(t *testing.T) {
	cli := newFakeObjectStorage()
	b, err := NewMinioBackend(cli, "bucket", "")
	require.NoError(t, err)
	s, err := NewStore(b)
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.Store(ctx, readerBlob("a", "x"), Metadata{})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, ref))
	require.NoError(t, s.Delete(ctx, ref))
}

func TestMinioBackendPutErrors(t *testing.T) {
	cli := newFakeObjectStorage()
	b, err := NewMinioBackend(cli, "bucket", "p")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = b.Put(ctx, Blob{Name: "no-reader"}, Metadata{})
	require.Error(t, err)

	cli.putErr = errors.New("connection reset")
	_, err = b.Put(ctx, readerBlob("a", "b"), Metadata{})
	require.ErrorContains(t, err, "connection reset")
	require.False(t, b.IsNotExist(err))
}

func TestObjectName(t *testing.T) {
	require.Equal(t, "a.txt", objectName("a.txt"))
	require.Equal(t, "b.txt", objectName("../../b.txt"))
	require.Equal(t, "c.txt", objectName(`dir\c.txt`))
	require.Equal(t, "file", objectName(""))
	require.Equal(t, "file", objectName(".."))
}
