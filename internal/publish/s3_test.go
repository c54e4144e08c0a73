package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	headErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; ok {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "not found"}
}

func newFake() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "Story.mp4")
	man := filepath.Join(dir, "manifest.yaml")
	os.WriteFile(video, []byte("mp4"), 0o644)
	os.WriteFile(man, []byte("version: 1.0"), 0o644)

	api := newFake()
	p := NewWithAPI(api, Config{Bucket: "videos", Prefix: "/runs/"})

	uris, err := p.Publish(context.Background(), "Story_abcd1234", video, man)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := []string{
		"s3://videos/runs/Story_abcd1234/Story.mp4",
		"s3://videos/runs/Story_abcd1234/manifest.yaml",
	}
	if !reflect.DeepEqual(uris, want) {
		t.Errorf("uris = %v", uris)
	}
	if string(api.objects["runs/Story_abcd1234/Story.mp4"]) != "mp4" {
		t.Error("video not uploaded")
	}
	if api.types["runs/Story_abcd1234/Story.mp4"] != "video/mp4" {
		t.Errorf("content type = %q", api.types["runs/Story_abcd1234/Story.mp4"])
	}
}

func TestPublishKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "a.mp4")
	os.WriteFile(video, []byte("new"), 0o644)

	api := newFake()
	api.objects["run/a.mp4"] = []byte("old")
	p := NewWithAPI(api, Config{Bucket: "b"})

	if _, err := p.Publish(context.Background(), "run", video); err != nil {
		t.Fatal(err)
	}
	if string(api.objects["run/a.mp4"]) != "old" {
		t.Error("existing object overwritten")
	}

	p = NewWithAPI(api, Config{Bucket: "b", Overwrite: true})
	if _, err := p.Publish(context.Background(), "run", video); err != nil {
		t.Fatal(err)
	}
	if string(api.objects["run/a.mp4"]) != "new" {
		t.Error("overwrite ignored")
	}
}

func TestPublishHeadError(t *testing.T) {
	api := newFake()
	api.headErr = errors.New("access denied")
	p := NewWithAPI(api, Config{Bucket: "b"})

	if _, err := p.Publish(context.Background(), "run", "/nonexistent.mp4"); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("empty config must be disabled")
	}
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("New without bucket must fail")
	}
}
