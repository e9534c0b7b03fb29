package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const objectStoreScheme = "s3://"

// objectRef is a parsed s3://bucket/key address.
type objectRef struct {
	Bucket string
	Key    string
}

// parseObjectAddress validates the address before any client is
// constructed, so a malformed URI never reaches the SDK.
func parseObjectAddress(op, addr string) (objectRef, error) {
	if !strings.HasPrefix(addr, objectStoreScheme) {
		return objectRef{}, invalidPathf(op, addr, "address must start with %s", objectStoreScheme)
	}

	rest := strings.TrimPrefix(addr, objectStoreScheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return objectRef{}, invalidPathf(op, addr, "address must name a bucket and an object key")
	}

	return objectRef{Bucket: bucket, Key: key}, nil
}

// objectStoreConnector fetches the spreadsheet from an S3-compatible
// object store. Username/Password carry the access-key/secret pair.
type objectStoreConnector struct {
	cfg  SourceConfig
	opts Options
}

func (c *objectStoreConnector) client() (*minio.Client, error) {
	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.cfg.Username, c.cfg.Password, ""),
		Secure: true,
	})
}

// Probe performs a metadata-only existence check (head-object).
func (c *objectStoreConnector) Probe(ctx context.Context) (ProbeInfo, error) {
	addr := c.cfg.Address

	ref, err := parseObjectAddress("probe", addr)
	if err != nil {
		return ProbeInfo{}, err
	}

	client, err := c.client()
	if err != nil {
		return ProbeInfo{}, transport("probe", addr, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout())
	defer cancel()

	stat, err := client.StatObject(ctx, ref.Bucket, ref.Key, minio.StatObjectOptions{})
	if err != nil {
		return ProbeInfo{}, classifyObjectError("probe", addr, err)
	}

	return ProbeInfo{
		Detail: fmt.Sprintf("object accessible: s3://%s/%s", ref.Bucket, ref.Key),
		Size:   stat.Size,
	}, nil
}

// Fetch streams the object into a scratch file.
func (c *objectStoreConnector) Fetch(ctx context.Context) (string, error) {
	addr := c.cfg.Address

	ref, err := parseObjectAddress("fetch", addr)
	if err != nil {
		return "", err
	}

	client, err := c.client()
	if err != nil {
		return "", transport("fetch", addr, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout())
	defer cancel()

	obj, err := client.GetObject(ctx, ref.Bucket, ref.Key, minio.GetObjectOptions{})
	if err != nil {
		return "", classifyObjectError("fetch", addr, err)
	}
	defer obj.Close()

	path, err := copyToScratch(obj)
	if err != nil {
		// GetObject is lazy; missing objects surface on first read.
		return "", classifyObjectError("fetch", addr, err)
	}
	return path, nil
}

func classifyObjectError(op, addr string, err error) *Error {
	// The SDK error may arrive wrapped (GetObject is lazy, so a missing
	// object surfaces from the read inside the scratch-file copy), and
	// minio.ToErrorResponse does not unwrap. Dig it out of the chain.
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return transport(op, addr, err)
	}
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return notFound(op, addr, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return authFailed(op, addr, err)
	default:
		return transport(op, addr, err)
	}
}
