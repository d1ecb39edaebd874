package storagesvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sync"
	"time"

	"github.com/adamsassn/membership/core"
)

// FakeService keeps objects in memory. For tests.
type FakeService struct {
	mtx     sync.RWMutex
	objects map[string][]byte
}

var _ core.ObjectStorage = (*FakeService)(nil)

func NewFakeService() *FakeService {
	return &FakeService{objects: make(map[string][]byte)}
}

func (svc *FakeService) EnsureBucket(ctx context.Context) error { return nil }

func (svc *FakeService) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	content, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	svc.mtx.Lock()
	defer svc.mtx.Unlock()
	svc.objects[key] = content
	return nil
}

func (svc *FakeService) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	svc.mtx.RLock()
	defer svc.mtx.RUnlock()
	content, ok := svc.objects[key]
	if !ok {
		return nil, core.ErrObjectNotFound
	}
	return ioutil.NopCloser(bytes.NewReader(content)), nil
}

func (svc *FakeService) Delete(ctx context.Context, key string) error {
	svc.mtx.Lock()
	defer svc.mtx.Unlock()
	delete(svc.objects, key)
	return nil
}

func (svc *FakeService) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	svc.mtx.RLock()
	defer svc.mtx.RUnlock()
	if _, ok := svc.objects[key]; !ok {
		return "", core.ErrObjectNotFound
	}
	return fmt.Sprintf("http://storage.test/%s?expiry=%s", key, expiry), nil
}

// Exists reports whether an object was stored under key.
func (svc *FakeService) Exists(key string) bool {
	svc.mtx.RLock()
	defer svc.mtx.RUnlock()
	_, ok := svc.objects[key]
	return ok
}
