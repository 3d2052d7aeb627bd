package store

import (
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	raven "github.com/getsentry/raven-go"

	"github.com/ndlib/gzstore/resource"
	"github.com/ndlib/gzstore/util"
)

// A S3 storage is a generic storage which keeps resource content
// uncompressed in an S3 bucket. Keys are the sharded digest paths, after the
// Prefix. Do not change Bucket or Prefix concurrently with calls using the
// structure.
type S3 struct {
	svc      *s3.S3
	uploader *s3manager.Uploader
	Bucket   string
	Prefix   string
	sizes    *sizecache // keep HEAD info

	// TempDir is where content passed to Import is spooled before it is
	// uploaded. Empty means the system default.
	TempDir string
}

var _ resource.Storage = &S3{}

// NewS3 creates a new S3 storage. It will use the given bucket and will
// prepend prefix to all keys, so a bucket may be shared. The authorization
// method and credentials in the session are used for all accesses.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return &S3{
		Bucket:   bucket,
		Prefix:   prefix,
		svc:      s3.New(awsSession),
		uploader: s3manager.NewUploader(awsSession),
		sizes:    newSizeCache(),
	}
}

// Name returns the location of this storage.
func (s *S3) Name() string { return "s3:/" + s.Bucket + "/" + s.Prefix }

// Compressed is always false.
func (s *S3) Compressed() bool { return false }

func (s *S3) key(digest string) string {
	return s.Prefix + itemSubdir(digest) + digest
}

// ImportTemporary uploads the file at tempPath and then deletes it. The file
// is read twice: once to find its digest, and once to upload it.
func (s *S3) ImportTemporary(tempPath, collection string) (*resource.Resource, error) {
	f, err := os.Open(tempPath)
	if err != nil {
		return nil, fault("open", tempPath, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fault("stat", tempPath, err)
	}
	hw := util.NewHashWriterPlain()
	if _, err := io.Copy(hw, f); err != nil {
		return nil, fault("read", tempPath, err)
	}
	if hw.Size() != fi.Size() {
		return nil, fault("import", tempPath, io.ErrUnexpectedEOF)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fault("seek", tempPath, err)
	}
	d := hw.Digest()
	key := s.key(d)
	if _, err := s.sizes.Get(key, s.stat0); err != nil {
		// not there yet (or we could not tell), so upload it
		_, err = s.uploader.Upload(&s3manager.UploadInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		if err != nil {
			log.Println("S3 Upload:", s.Bucket, key, err)
			raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Key": key})
			return nil, fault("upload", key, err)
		}
		s.sizes.Set(key, hw.Size())
	}
	f.Close()
	if err := os.Remove(tempPath); err != nil {
		return nil, fault("remove", tempPath, err)
	}
	return &resource.Resource{
		Digest:     d,
		Size:       hw.Size(),
		Collection: collection,
		Created:    time.Now(),
	}, nil
}

// Import spools r to a local temporary file and uploads it.
func (s *S3) Import(r io.Reader, collection string) (*resource.Resource, error) {
	f, err := os.CreateTemp(s.TempDir, "s3import-*")
	if err != nil {
		return nil, fault("create", s.TempDir, err)
	}
	name := f.Name()
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return nil, fault("write", name, err)
	}
	res, err := s.ImportTemporary(name, collection)
	if err != nil {
		os.Remove(name)
	}
	return res, err
}

// Open returns the body of the object holding res.
func (s *S3) Open(res *resource.Resource) (io.ReadCloser, error) {
	d, err := digestOf(res)
	if err != nil {
		return nil, err
	}
	key := s.key(d)
	out, err := s.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			s.sizes.Set(key, sizeDeleted)
			return nil, resource.ErrNotFound
		}
		return nil, fault("get", key, err)
	}
	return out.Body, nil
}

// StoredSize returns the size of the object holding res.
func (s *S3) StoredSize(res *resource.Resource) (int64, error) {
	d, err := digestOf(res)
	if err != nil {
		return 0, err
	}
	// Cache the key sizes as we see them. This drastically cuts down on the
	// number of HEAD requests.
	return s.sizes.Get(s.key(d), s.stat0)
}

// OpenStored is the same as Open.
func (s *S3) OpenStored(res *resource.Resource) (io.ReadCloser, error) {
	return s.Open(res)
}

// Delete will remove the object holding res. It is not an error to delete
// something that doesn't exist.
func (s *S3) Delete(res *resource.Resource) error {
	d, err := digestOf(res)
	if err != nil {
		return nil
	}
	key := s.key(d)
	_, err = s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Println("S3 Delete:", s.Bucket, key, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Key": key})
		return fault("delete", key, err)
	}
	s.sizes.Set(key, sizeDeleted)
	return nil
}

// stat0 implements the actual HEAD request to s3. Returns either an error
// or the size. You probably want to use the sizecache.
func (s *S3) stat0(key string) (int64, error) {
	info, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, resource.ErrNotFound
		}
		return 0, fault("head", key, err)
	}
	return aws.Int64Value(info.ContentLength), nil
}

func isS3NotFound(err error) bool {
	if e, ok := err.(awserr.RequestFailure); ok && e.StatusCode() == http.StatusNotFound {
		return true
	}
	if e, ok := err.(awserr.Error); ok && e.Code() == s3.ErrCodeNoSuchKey {
		return true
	}
	return false
}
