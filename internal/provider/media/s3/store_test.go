package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Payphone-Digital/portfolio-service/config"
	"github.com/Payphone-Digital/portfolio-service/internal/provider"
	"github.com/Payphone-Digital/portfolio-service/pkg/circuit"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBucket struct {
	mu        sync.Mutex
	objects   map[string]string
	types     map[string]string
	uploadErr error
	deleteErr error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string]string{}, types: map[string]string{}}
}

func (b *fakeBucket) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if b.uploadErr != nil {
		return nil, b.uploadErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := aws.ToString(in.Key)
	b.objects[key] = string(data)
	b.types[key] = aws.ToString(in.ContentType)
	return &manager.UploadOutput{Key: in.Key}, nil
}

func (b *fakeBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if b.deleteErr != nil {
		return nil, b.deleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestStore(bucket *fakeBucket, settings circuit.Settings) *Store {
	breaker := circuit.NewBreaker(ProviderName, settings, zap.NewNop())
	return newStore(bucket, bucket, "media", "https://cdn.example.com/", breaker)
}

func TestStore_StoreAndDelete(t *testing.T) {
	bucket := newFakeBucket()
	store := newTestStore(bucket, circuit.DefaultSettings())
	ctx := context.Background()

	url, handle, err := store.Store(ctx, "p1/abc.jpg", "image/jpeg", strings.NewReader("pixels"), 6)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/p1/abc.jpg", url)
	assert.Equal(t, "p1/abc.jpg", handle)
	assert.Equal(t, "pixels", bucket.objects["p1/abc.jpg"])
	assert.Equal(t, "image/jpeg", bucket.types["p1/abc.jpg"])

	require.NoError(t, store.Delete(ctx, handle))
	assert.Empty(t, bucket.objects)
}

func TestStore_Failures(t *testing.T) {
	bucket := newFakeBucket()
	bucket.uploadErr = errors.New("RequestTimeout")
	store := newTestStore(bucket, circuit.Settings{Threshold: 2, Cooldown: time.Minute, SuccessThreshold: 1, MaxProbes: 1, Trips: provider.Trips})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := store.Store(ctx, "p1/a.png", "image/png", strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, bucket.uploadErr)
	}

	_, _, err := store.Store(ctx, "p1/a.png", "image/png", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, circuit.ErrOpen)

	bucket.deleteErr = errors.New("AccessDenied")
	assert.Error(t, store.Delete(ctx, "p1/a.png"))
}

func TestStore_URLEscapesSegments(t *testing.T) {
	store := newTestStore(newFakeBucket(), circuit.DefaultSettings())
	assert.Equal(t, "https://cdn.example.com/p1/my%20clip.mp4", store.URL("p1/my clip.mp4"))
}

func TestPublicBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MediaConfig
		want string
	}{
		{"explicit", config.MediaConfig{Bucket: "media", PublicBaseURL: "https://cdn.example.com"}, "https://cdn.example.com"},
		{"custom endpoint", config.MediaConfig{Bucket: "media", Endpoint: "http://localhost:9000/"}, "http://localhost:9000/media"},
		{"aws", config.MediaConfig{Bucket: "media", Region: "eu-west-1"}, "https://media.s3.eu-west-1.amazonaws.com"},
		{"aws default region", config.MediaConfig{Bucket: "media"}, "https://media.s3.us-east-1.amazonaws.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicBaseURL(tt.cfg))
		})
	}
}

func TestNewStore_RequiresBucket(t *testing.T) {
	_, err := NewStore(context.Background(), config.MediaConfig{}, nil, nil)
	assert.ErrorIs(t, err, provider.ErrNotConfigured)
}
