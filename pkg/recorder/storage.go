package recorder

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/vineetpathak08/remote-classroom/pkg/config"
)

// Sink uploads finished recording segments somewhere durable.
type Sink interface {
	Save(name string, localPath string) error
}

// NewSink picks the storage backend from the config.
func NewSink(conf config.Storage) (Sink, error) {
	switch conf.Provider {
	case "google":
		return NewGoogleStorage(conf.Key)
	case "http":
		return NewHttpStorage(conf.Key)
	case "":
		return NewNoopStorage(), nil
	}
	return nil, fmt.Errorf("unknown storage provider: %v", conf.Provider)
}

type GoogleStorage struct {
	bucket *storage.BucketHandle
	ctx    context.Context
}

// NewGoogleStorage returns a Google Cloud Storage backed sink.
// The key param names the target bucket.
func NewGoogleStorage(key string) (*GoogleStorage, error) {
	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleStorage{bucket: client.Bucket(key), ctx: ctx}, nil
}

func (s *GoogleStorage) Save(name string, localPath string) error {
	if s == nil {
		return nil
	}
	reader, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	wc := s.bucket.Object(name).NewWriter(s.ctx)
	if _, err = io.Copy(wc, reader); err != nil {
		return err
	}
	return wc.Close()
}

// HttpStorage uploads segments with pre-authenticated PUT requests,
// e.g. Oracle Object Storage PARs. The server is expected to echo the
// content MD5 back in the Opc-Content-Md5 header.
type HttpStorage struct {
	accessURL string
	client    *http.Client
}

func NewHttpStorage(accessURL string) (*HttpStorage, error) {
	if accessURL == "" {
		return nil, errors.New("pre-authenticated request was not specified")
	}
	return &HttpStorage{
		accessURL: accessURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *HttpStorage) Save(name string, localPath string) error {
	if s == nil {
		return nil
	}
	dat, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, s.accessURL+name, bytes.NewBuffer(dat))
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}

	if dstMD5 := resp.Header.Get("Opc-Content-Md5"); dstMD5 != "" {
		sum := md5.Sum(dat)
		if srcMD5 := base64.StdEncoding.EncodeToString(sum[:]); dstMD5 != srcMD5 {
			return fmt.Errorf("MD5 mismatch %v != %v", srcMD5, dstMD5)
		}
	}
	return nil
}

// NoopStorage drops everything; recordings stay on the local disk only.
type NoopStorage struct{}

func NewNoopStorage() *NoopStorage { return &NoopStorage{} }

func (s *NoopStorage) Save(string, string) error { return nil }
