package publish

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/wasmpack/internal/errors"
)

type putCall struct {
	Bucket       string
	Key          string
	ContentType  string
	CacheControl string
	Metadata     map[string]string
	Body         string
}

type fakeS3 struct {
	mu    sync.Mutex
	calls []putCall
	fail  string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if key == f.fail {
		return nil, stderrors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, putCall{
		Bucket:       aws.ToString(in.Bucket),
		Key:          key,
		ContentType:  aws.ToString(in.ContentType),
		CacheControl: aws.ToString(in.CacheControl),
		Metadata:     in.Metadata,
		Body:         string(body),
	})
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) sorted() []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := append([]putCall(nil), f.calls...)
	sort.Slice(calls, func(i, j int) bool { return calls[i].Key < calls[j].Key })
	return calls
}

func newPack(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":  "<html></html>",
		"index.js":    "console.log(1)",
		"main.wasm":   "\x00asm",
		"main.data":   "blob",
		"css/app.css": "body{}",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestPublish_UploadsEveryFile(t *testing.T) {
	dir := newPack(t)
	client := &fakeS3{}

	report, err := New(client, Options{
		Bucket:       "assets",
		Prefix:       "/site/v1/",
		CacheControl: "no-cache",
		BuildID:      "01HXYZ",
	}).Publish(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "assets", report.Bucket)
	require.Len(t, report.Objects, 5)
	assert.Equal(t, "site/v1/css/app.css", report.Objects[0].Key)

	calls := client.sorted()
	require.Len(t, calls, 5)

	byKey := make(map[string]putCall, len(calls))
	for _, c := range calls {
		assert.Equal(t, "assets", c.Bucket)
		assert.Equal(t, "no-cache", c.CacheControl)
		assert.Equal(t, map[string]string{"wasmpack-build": "01HXYZ"}, c.Metadata)
		byKey[c.Key] = c
	}

	assert.Equal(t, "application/wasm", byKey["site/v1/main.wasm"].ContentType)
	assert.Equal(t, "\x00asm", byKey["site/v1/main.wasm"].Body)
	assert.Equal(t, "application/octet-stream", byKey["site/v1/main.data"].ContentType)
	assert.Equal(t, "text/html; charset=utf-8", byKey["site/v1/index.html"].ContentType)
	assert.Contains(t, byKey, "site/v1/css/app.css")
}

func TestPublish_NoBucket(t *testing.T) {
	_, err := New(&fakeS3{}, Options{}).Publish(context.Background(), newPack(t))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E131"))
}

func TestPublish_EmptyDir(t *testing.T) {
	_, err := New(&fakeS3{}, Options{Bucket: "b"}).Publish(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E130"))
}

func TestPublish_UploadFailure(t *testing.T) {
	client := &fakeS3{fail: "main.wasm"}

	_, err := New(client, Options{Bucket: "b", Concurrency: 1}).Publish(context.Background(), newPack(t))
	require.Error(t, err)
	pe, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "E130", pe.Code)
	assert.Contains(t, pe.Detail, "s3://b/main.wasm")
	assert.EqualError(t, pe.Unwrap(), "access denied")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "main.wasm", Key("", "main.wasm"))
	assert.Equal(t, "app/main.wasm", Key("app", "main.wasm"))
	assert.Equal(t, "app/v2/css/a.css", Key("/app/v2/", "css/a.css"))
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"main.wasm":  "application/wasm",
		"main.data":  "application/octet-stream",
		"index.js":   "text/javascript; charset=utf-8",
		"INDEX.HTML": "text/html; charset=utf-8",
		"a/b.css":    "text/css; charset=utf-8",
		"blob.bin":   "application/octet-stream",
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentType(name), name)
	}
}
