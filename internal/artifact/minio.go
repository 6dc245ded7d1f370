package artifact

import (
	"context"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage is the part of *minio.Client the minio backend needs.
type ObjectStorage interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader,
		objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// NewMinioClient dials the configured S3 endpoint.
func NewMinioClient(settings MinioSettings) (*minio.Client, error) {
	if settings.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}

	cli, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure: settings.Secure,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "new minio client for %s", settings.Endpoint)
	}

	return cli, nil
}

// MinioBackend streams blobs into an S3 compatible bucket.
type MinioBackend struct {
	cli    ObjectStorage
	bucket string
	prefix string
}

// NewMinioBackend creates a backend writing under bucket/prefix.
func NewMinioBackend(cli ObjectStorage, bucket, prefix string) (*MinioBackend, error) {
	if cli == nil {
		return nil, errors.New("minio client is required")
	}
	if bucket == "" {
		return nil, errors.New("minio bucket is required")
	}

	return &MinioBackend{
		cli:    cli,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Name implements Backend.
func (b *MinioBackend) Name() string {
	return BackendMinio
}

// Put implements Backend.
func (b *MinioBackend) Put(ctx context.Context, blob Blob, meta Metadata) (Reference, error) {
	if blob.Open == nil {
		return Reference{}, errors.New("minio backend needs readable content")
	}

	body, err := blob.Open(ctx)
	if err != nil {
		return Reference{}, errors.Wrap(err, "open blob")
	}
	defer body.Close() // nolint: errcheck

	id := gutils.UUID7()
	key := path.Join(b.prefix, id, objectName(blob.Name))
	contentType := blob.MIME
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	size := blob.Size
	if size <= 0 {
		size = -1
	}

	if _, err = b.cli.PutObject(ctx, b.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"owner": strconv.FormatInt(meta.OwnerUID, 10),
		},
	}); err != nil {
		return Reference{}, errors.Wrapf(err, "put object %s", key)
	}

	return Reference{FileID: id, Locator: key}, nil
}

// Remove implements Backend. RemoveObject does not report missing keys, so the
// object is looked up first.
func (b *MinioBackend) Remove(ctx context.Context, ref Reference) error {
	if ref.Locator == "" {
		return errors.Wrap(ErrInvalidReference, "empty object key")
	}

	if _, err := b.cli.StatObject(ctx, b.bucket, ref.Locator, minio.StatObjectOptions{}); err != nil {
		return errors.Wrapf(err, "stat object %s", ref.Locator)
	}
	if err := b.cli.RemoveObject(ctx, b.bucket, ref.Locator, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "remove object %s", ref.Locator)
	}

	return nil
}

// IsNotExist implements Backend.
func (b *MinioBackend) IsNotExist(err error) bool {
	if err == nil {
		return false
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
	}
	return false
}

// objectName keeps the original file name readable but path safe.
func objectName(name string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}
