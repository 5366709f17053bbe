package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory S3API. ListObjectsV2 pages by pageSize.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	lists    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), pageSize: 2}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) != aws.ToInt64(in.ContentLength) {
		return nil, errors.New("content length mismatch")
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = b
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(in.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++

	var names []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		for i, n := range names {
			if n > tok {
				start = i
				break
			}
		}
	}
	end := min(start+f.pageSize, len(names))
	out := &s3.ListObjectsV2Output{}
	for _, n := range names[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(n)})
	}
	if end < len(names) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(names[end-1])
	}
	return out, nil
}

func TestS3Store_PutOpenDelete(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "bucket", "/data/")
	ctx := context.Background()

	n, err := store.Put(ctx, "k1", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 5 {
		t.Errorf("size: got %d, want 5", n)
	}
	if _, ok := fake.objects["data/k1"]; !ok {
		t.Fatalf("object not stored under prefix, have %v", fake.objects)
	}
	if got := readAll(t, store, "k1"); got != "hello" {
		t.Errorf("content: got %q", got)
	}

	if err := store.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3Store_PutNonSeekable(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "bucket", "")
	content := strings.Repeat("x", 10000)

	// io.MultiReader hides Seek so Put has to spool.
	n, err := store.Put(context.Background(), "k", io.MultiReader(strings.NewReader(content)))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("size: got %d, want %d", n, len(content))
	}
	if string(fake.objects["k"]) != content {
		t.Error("stored content mismatch")
	}
}

func TestS3Store_KeysPaginates(t *testing.T) {
	fake := newFakeS3()
	fake.objects["other/zzz"] = []byte("x")
	store := NewS3StoreWithClient(fake, "bucket", "data")
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		store.Put(ctx, k, strings.NewReader(k))
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if strings.Join(keys, ",") != "a,b,c,d,e" {
		t.Errorf("keys: got %v", keys)
	}
	if fake.lists != 3 {
		t.Errorf("list calls: got %d, want 3", fake.lists)
	}
}

func TestS3Store_InvalidKey(t *testing.T) {
	store := NewS3StoreWithClient(newFakeS3(), "bucket", "")
	if _, err := store.Open(context.Background(), "../x"); err == nil {
		t.Fatal("expected error for traversal key")
	}
}
