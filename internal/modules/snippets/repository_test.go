package snippets

import (
	"context"
	"errors"
	"testing"

	"github.com/buche/contentgen/internal/pkg/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeStore struct {
	objects map[string][]byte
	err     error
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return body, nil
}

func TestFetchBody(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{"s1": []byte("正文内容")}}
	repo := NewRepository(nil, store, zap.NewNop())

	body, ok := repo.fetchBody(context.Background(), "s1")
	assert.True(t, ok)
	assert.Equal(t, "正文内容", body)

	_, ok = repo.fetchBody(context.Background(), "missing")
	assert.False(t, ok)
}

func TestFetchBodyStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("connection reset")}
	repo := NewRepository(nil, store, zap.NewNop())

	_, ok := repo.fetchBody(context.Background(), "s1")
	assert.False(t, ok)
}

// unreachableDB opens a lazy connection against a port nothing listens
// on, so queries fail at execution time instead of at Open.
func unreachableDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "contentgen@tcp(127.0.0.1:1)/contentgen",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	require.NoError(t, err)
	return db
}

func TestRetrieveToleratesStoreOutage(t *testing.T) {
	// A dead metadata store means generating without reference
	// snippets, not failing the whole generation.
	repo := NewRepository(unreachableDB(t), &fakeStore{}, zap.NewNop())

	related, err := repo.TopMatches(context.Background(), []string{"浪漫"}, 5)
	require.NoError(t, err)
	require.NotNil(t, related)
	assert.Empty(t, related)

	related, err = repo.SampleByTag(context.Background(), []string{"浪漫"}, 2)
	require.NoError(t, err)
	require.NotNil(t, related)
	assert.Empty(t, related)
}

func TestCollectSamplesDedupAndCap(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"s1": []byte("正文一"),
		"s2": []byte("正文二"),
		"s3": []byte("正文三"),
		"s4": []byte("正文四"),
	}}
	repo := NewRepository(nil, store, zap.NewNop())
	seen := make(map[string]struct{})

	first := repo.collectSamples(context.Background(), []sampledRow{
		{ID: "s1", Title: "夜雨", Author: "张三"},
		{ID: "s2", Title: "晨光", Author: "李四"},
		{ID: "s3", Title: "远山", Author: "王五"},
	}, "浪漫", 2, seen)
	require.Len(t, first, 2)
	assert.Equal(t, []string{"浪漫"}, first[0].Tags)
	assert.Equal(t, 1.0, first[0].RelevanceScore)

	// The same candidates under another tag must not reappear.
	second := repo.collectSamples(context.Background(), []sampledRow{
		{ID: "s2", Title: "晨光", Author: "李四"},
		{ID: "s1", Title: "夜雨", Author: "张三"},
		{ID: "s4", Title: "孤城", Author: "赵六"},
	}, "都市", 2, seen)
	require.Len(t, second, 1)
	assert.Equal(t, "s4", second[0].ID)

	ids := map[string]struct{}{}
	for _, rel := range append(first, second...) {
		_, dup := ids[rel.ID]
		assert.False(t, dup, "duplicate snippet %s", rel.ID)
		ids[rel.ID] = struct{}{}
	}
}

func TestCollectSamplesMissingBodyDoesNotCount(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"s2": []byte("正文二"),
		"s3": []byte("正文三"),
	}}
	repo := NewRepository(nil, store, zap.NewNop())

	out := repo.collectSamples(context.Background(), []sampledRow{
		{ID: "s1", Title: "夜雨", Author: "张三"},
		{ID: "s2", Title: "晨光", Author: "李四"},
		{ID: "s3", Title: "远山", Author: "王五"},
	}, "浪漫", 2, make(map[string]struct{}))

	require.Len(t, out, 2)
	assert.Equal(t, "s2", out[0].ID)
	assert.Equal(t, "s3", out[1].ID)
}

func TestRetrieveEmptyTags(t *testing.T) {
	// No tags means no query at all, so a nil DB must not be touched.
	repo := NewRepository(nil, &fakeStore{}, zap.NewNop())

	related, err := repo.TopMatches(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, related)

	related, err = repo.SampleByTag(context.Background(), []string{}, 2)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestStrategiesDelegate(t *testing.T) {
	repo := NewRepository(nil, &fakeStore{}, zap.NewNop())

	related, err := TopK{Repo: repo, Limit: 5}.Retrieve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, related)

	related, err = PerTagSample{Repo: repo, PerTag: 2}.Retrieve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestSplitTagNames(t *testing.T) {
	assert.Equal(t, []string{"浪漫", "都市"}, splitTagNames("浪漫,都市"))
	assert.Equal(t, []string{"浪漫"}, splitTagNames(" 浪漫 "))
	assert.Empty(t, splitTagNames(""))
	assert.Empty(t, splitTagNames("  "))
	assert.Equal(t, []string{"浪漫"}, splitTagNames("浪漫,,"))
}
