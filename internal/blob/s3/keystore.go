package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// maxKeyObject bounds how much of an object Fetch will read. An encrypted
// keypair is a few hundred bytes.
const maxKeyObject = 64 << 10

// KeyStore reads and writes encrypted keypair objects addressed by
// s3://bucket/key URIs.
type KeyStore struct {
	client   *s3.Client
	uploader *manager.Uploader
}

// NewKeyStore creates a KeyStore on top of c.
func NewKeyStore(c *Client) *KeyStore {
	return &KeyStore{
		client:   c.s3,
		uploader: manager.NewUploader(c.s3),
	}
}

// Fetch returns the object body. A missing object wraps domain.ErrNotFound.
func (k *KeyStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	out, err := k.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", uri, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", uri, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxKeyObject+1))
	if err != nil {
		return nil, fmt.Errorf("s3blob: read %s: %w", uri, err)
	}
	if len(data) > maxKeyObject {
		return nil, fmt.Errorf("s3blob: %s exceeds %d bytes", uri, maxKeyObject)
	}
	return data, nil
}

// Store uploads data to uri with server-side encryption requested.
func (k *KeyStore) Store(ctx context.Context, uri string, data []byte) error {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return err
	}
	_, err = k.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", uri, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
