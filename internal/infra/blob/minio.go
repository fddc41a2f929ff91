package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/you-humble/videogen/internal/domain"
	mio "github.com/you-humble/videogen/internal/libs/minio"

	"github.com/minio/minio-go/v7"
)

// minioStore is the blob-store adapter: local files go up as objects, object
// references come back down as local files. Generated videos live on the
// generation backend's own storage, so Download also accepts foreign URLs and
// fetches those over plain HTTP.
type minioStore struct {
	db         *minio.Client
	bucket     string
	publicBase string
	httpc      *http.Client
}

func NewMinIOStore(ctx context.Context, cfg mio.Config) (*minioStore, error) {
	mioClient, err := mio.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}

	return &minioStore{
		db:         mioClient,
		bucket:     cfg.Bucket,
		publicBase: fmt.Sprintf("%s://%s/%s/", scheme, cfg.Endpoint, cfg.Bucket),
		httpc:      &http.Client{},
	}, nil
}

// Upload puts a local file into the bucket and returns its public URL.
func (s *minioStore) Upload(ctx context.Context, localPath, objectName string) (string, error) {
	object, err := s.objectName(objectName)
	if err != nil {
		return "", err
	}

	if _, err := s.db.FPutObject(ctx, s.bucket, object, localPath, minio.PutObjectOptions{}); err != nil {
		return "", fmt.Errorf("put object %s: %w", object, err)
	}

	return s.publicBase + object, nil
}

// Download resolves ref into a local file. A ref under the bucket's public URL
// (or a bare object name) is fetched from the bucket; anything else is treated
// as a remote video URL and fetched over HTTP.
func (s *minioStore) Download(ctx context.Context, ref, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	if object, ok := s.objectFromRef(ref); ok {
		if err := s.db.FGetObject(ctx, s.bucket, object, localPath, minio.GetObjectOptions{}); err != nil {
			return fmt.Errorf("get object %s: %w", object, err)
		}
		return nil
	}

	return s.httpDownload(ctx, ref, localPath)
}

// Save streams an uploaded file into the bucket and returns its public URL.
func (s *minioStore) Save(ctx context.Context, reader io.Reader, objectName string, size int64) (string, error) {
	object, err := s.objectName(objectName)
	if err != nil {
		return "", err
	}

	putSize := size
	if putSize <= 0 {
		putSize = -1
	}

	if _, err := s.db.PutObject(ctx, s.bucket, object, reader, putSize, minio.PutObjectOptions{}); err != nil {
		return "", fmt.Errorf("put object %s: %w", object, err)
	}

	return s.publicBase + object, nil
}

// List walks the objects under prefix and returns their public descriptions.
func (s *minioStore) List(ctx context.Context, prefix string) ([]domain.VideoObject, error) {
	clean, err := s.objectName(prefix)
	if err != nil {
		return nil, err
	}

	var out []domain.VideoObject
	for obj := range s.db.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    clean + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", clean, obj.Err)
		}
		out = append(out, domain.VideoObject{
			Filename:     path.Base(obj.Key),
			Path:         s.publicBase + obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

func (s *minioStore) httpDownload(ctx context.Context, url, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", localPath, err)
	}
	return nil
}

func (s *minioStore) objectFromRef(ref string) (string, bool) {
	if object, found := strings.CutPrefix(ref, s.publicBase); found {
		return object, true
	}
	if !strings.Contains(ref, "://") {
		return strings.TrimLeft(ref, "/"), true
	}
	return "", false
}

func (s *minioStore) objectName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty object name")
	}

	clean := path.Clean(name)
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object name: %s", name)
	}

	return strings.TrimLeft(clean, "/"), nil
}
