package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowjay/fastboot-deploy/internal/config"
	"github.com/rowjay/fastboot-deploy/internal/notify"
	"github.com/rowjay/fastboot-deploy/internal/revision"
	"github.com/rowjay/fastboot-deploy/internal/storage"
)

type object struct {
	body     []byte
	modified time.Time
	opts     storage.PutOptions
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]object
	calls   []string
	putErr  error
	copyErr error
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]object{}}
}

func (f *fakeStore) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeStore) Put(_ context.Context, key string, r io.Reader, _ int64, opts storage.PutOptions) error {
	f.record("put " + key)
	if f.putErr != nil {
		return f.putErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = object{body: body, modified: time.Now(), opts: opts}
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.record("get " + key)
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(bytes.NewReader(obj.body)), nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	f.record("list " + prefix)
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := []storage.ObjectInfo{}
	for key, obj := range f.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, storage.ObjectInfo{Key: key, Size: int64(len(obj.body)), Modified: obj.modified})
		}
	}
	return infos, nil
}

func (f *fakeStore) Copy(_ context.Context, src, dst string, opts storage.PutOptions) error {
	f.record("copy " + src + " " + dst)
	if f.copyErr != nil {
		return f.copyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[src]
	if !ok {
		return errors.New("NoSuchKey")
	}
	f.objects[dst] = object{body: obj.body, modified: time.Now(), opts: opts}
	return nil
}

type recordingNotifier struct {
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, event notify.Event) error {
	r.events = append(r.events, event)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Backend: "s3",
			S3:      config.S3Store{Bucket: "assets", Region: "us-east-1"},
		},
		Plugin: config.PluginConfig{
			ArchivePrefix:         "builds/",
			ManifestKey:           config.DefaultManifestKey,
			ActivateManifest:      true,
			WarnOnMissingManifest: true,
		},
	}
}

func newTestApp(cfg *config.Config, store *fakeStore) (*App, *bytes.Buffer, *int) {
	logs := &bytes.Buffer{}
	built := 0
	a := New(cfg, zerolog.New(logs), nil)
	a.NewStore = func(config.StorageConfig) (storage.Storage, error) {
		built++
		return store, nil
	}
	return a, logs, &built
}

func TestSetupJoinsPrefixes(t *testing.T) {
	cfg := testConfig()
	a, _, built := newTestApp(cfg, newFakeStore())

	res, err := a.Setup(&DeployContext{})
	require.NoError(t, err)
	assert.Equal(t, SetupResult{ArchiveKeyPrefix: "builds/", ManifestKey: "fastboot-deploy-info.json"}, res)

	cfg.Plugin.Prefix = "app"
	res, err = a.Setup(&DeployContext{})
	require.NoError(t, err)
	assert.Equal(t, SetupResult{ArchiveKeyPrefix: "app/builds/", ManifestKey: "app/fastboot-deploy-info.json"}, res)
	assert.Zero(t, *built, "setup must not touch storage")
}

func TestSetupUsesContextArchivePrefix(t *testing.T) {
	cfg := testConfig()
	cfg.Plugin.ArchivePrefix = ""
	a, _, _ := newTestApp(cfg, newFakeStore())

	res, err := a.Setup(&DeployContext{ArchivePrefix: "dist-"})
	require.NoError(t, err)
	assert.Equal(t, "dist-", res.ArchiveKeyPrefix)
}

func TestSetupRequiresBucketAndRegion(t *testing.T) {
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.Storage.S3.Bucket = "" },
		func(c *config.Config) { c.Storage.S3.Region = "" },
	} {
		cfg := testConfig()
		mutate(cfg)
		a, _, _ := newTestApp(cfg, newFakeStore())
		_, err := a.Setup(&DeployContext{})
		assert.ErrorIs(t, err, ErrMissingConfig)
	}
}

func TestMissingConfigFailsBeforeStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.S3.Bucket = ""
	store := newFakeStore()
	a, _, built := newTestApp(cfg, store)

	_, err := a.FetchRevisions(context.Background(), &DeployContext{})
	assert.ErrorIs(t, err, ErrMissingConfig)
	_, err = a.Activate(context.Background(), &DeployContext{RevisionKey: "v1"})
	assert.ErrorIs(t, err, ErrMissingConfig)
	assert.Zero(t, *built)
	assert.Empty(t, store.calls)
}

func TestDeployContextMerge(t *testing.T) {
	dctx := &DeployContext{}
	dctx.Merge(SetupResult{ArchiveKeyPrefix: "builds/", ManifestKey: "m.json"})
	assert.Equal(t, "builds/", dctx.ArchiveKeyPrefix)
	assert.Equal(t, "m.json", dctx.ManifestKey)
}

func writeArchive(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dist.zip")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestUploadWritesArchiveBytes(t *testing.T) {
	store := newFakeStore()
	notifier := &recordingNotifier{}
	a, _, _ := newTestApp(testConfig(), store)
	a.Notifier = notifier

	dctx := &DeployContext{ArchivePath: writeArchive(t, "PK\x03\x04raw"), RevisionKey: "v7", ArchiveKeyPrefix: "builds/"}
	res, err := a.Upload(context.Background(), dctx)
	require.NoError(t, err)
	assert.Equal(t, UploadResult{Key: "builds/v7.zip", Size: 7}, res)
	assert.Equal(t, []byte("PK\x03\x04raw"), store.objects["builds/v7.zip"].body)
	assert.Empty(t, store.objects["builds/v7.zip"].opts.ACL)
	assert.Equal(t, "application/zip", store.objects["builds/v7.zip"].opts.ContentType)
	assert.Equal(t, map[string]string{"revision": "v7"}, store.objects["builds/v7.zip"].opts.Metadata)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "upload", notifier.events[0].Type)
	assert.Equal(t, notify.StatusSuccess, notifier.events[0].Status)
}

func TestUploadOverwrites(t *testing.T) {
	store := newFakeStore()
	a, _, _ := newTestApp(testConfig(), store)

	for _, body := range []string{"first", "second"} {
		_, err := a.Upload(context.Background(), &DeployContext{ArchivePath: writeArchive(t, body), RevisionKey: "v7"})
		require.NoError(t, err)
	}
	assert.Equal(t, "second", string(store.objects["builds/v7.zip"].body))
}

func TestUploadMissingArchiveFailsFast(t *testing.T) {
	store := newFakeStore()
	a, _, built := newTestApp(testConfig(), store)

	_, err := a.Upload(context.Background(), &DeployContext{ArchivePath: filepath.Join(t.TempDir(), "nope.zip"), RevisionKey: "v7"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Zero(t, *built)
}

func TestUploadPropagatesPutError(t *testing.T) {
	store := newFakeStore()
	store.putErr = errors.New("SlowDown")
	notifier := &recordingNotifier{}
	a, _, _ := newTestApp(testConfig(), store)
	a.Notifier = notifier

	_, err := a.Upload(context.Background(), &DeployContext{ArchivePath: writeArchive(t, "zip"), RevisionKey: "v7"})
	assert.ErrorIs(t, err, store.putErr)
	assert.Equal(t, []string{"put builds/v7.zip"}, store.calls, "no retry")
	require.Len(t, notifier.events, 1)
	assert.Equal(t, notify.StatusFailed, notifier.events[0].Status)
}

func TestUploadRequiresRevision(t *testing.T) {
	a, _, _ := newTestApp(testConfig(), newFakeStore())
	_, err := a.Upload(context.Background(), &DeployContext{ArchivePath: writeArchive(t, "zip")})
	assert.ErrorIs(t, err, ErrMissingRevision)
}

func TestRevisionKeyPrecedence(t *testing.T) {
	dctx := &DeployContext{
		RevisionKey:    "ctx",
		RevisionData:   RevisionData{RevisionKey: "data"},
		CommandOptions: CommandOptions{Revision: "cli"},
	}
	plugin := config.PluginConfig{}
	assert.Equal(t, "cli", revisionKey(plugin, dctx))
	dctx.CommandOptions.Revision = ""
	assert.Equal(t, "data", revisionKey(plugin, dctx))
	dctx.RevisionData.RevisionKey = ""
	assert.Equal(t, "ctx", revisionKey(plugin, dctx))
	plugin.RevisionKey = "pinned"
	assert.Equal(t, "pinned", revisionKey(plugin, dctx))
}

func seedRevisions(store *fakeStore, t0 time.Time) {
	store.objects["builds/abc123.zip"] = object{body: []byte("a"), modified: t0}
	store.objects["builds/def456.zip"] = object{body: []byte("d"), modified: t0.Add(time.Hour)}
	store.objects["builds/notes.txt"] = object{body: []byte("n"), modified: t0.Add(2 * time.Hour)}
}

func TestFetchRevisions(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedRevisions(store, t0)
	store.objects["fastboot-deploy-info.json"] = object{body: []byte(`{"key":"builds/def456.zip"}`)}
	a, logs, _ := newTestApp(testConfig(), store)

	res, err := a.FetchRevisions(context.Background(), &DeployContext{})
	require.NoError(t, err)
	assert.Equal(t, []revision.Record{
		{Revision: "def456", Timestamp: t0.Add(time.Hour), Active: true},
		{Revision: "abc123", Timestamp: t0, Active: false},
	}, res.Revisions)
	assert.NotContains(t, logs.String(), "no readable manifest")
}

func TestFetchInitialRevisionsWarnsWithoutManifest(t *testing.T) {
	store := newFakeStore()
	seedRevisions(store, time.Now())
	a, logs, _ := newTestApp(testConfig(), store)

	res, err := a.FetchInitialRevisions(context.Background(), &DeployContext{})
	require.NoError(t, err)
	require.Len(t, res.InitialRevisions, 2)
	for _, rec := range res.InitialRevisions {
		assert.False(t, rec.Active)
	}
	assert.Contains(t, logs.String(), "no readable manifest")
}

func TestFetchRevisionsQuietWhenWarningDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Plugin.WarnOnMissingManifest = false
	a, logs, _ := newTestApp(cfg, newFakeStore())

	res, err := a.FetchRevisions(context.Background(), &DeployContext{})
	require.NoError(t, err)
	assert.NotNil(t, res.Revisions)
	assert.Empty(t, res.Revisions)
	assert.NotContains(t, logs.String(), "no readable manifest")
}

func TestFetchRevisionsListError(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("AccessDenied")
	a, _, _ := newTestApp(testConfig(), store)

	_, err := a.FetchRevisions(context.Background(), &DeployContext{})
	assert.ErrorIs(t, err, store.listErr)
}

func TestStoreBuiltPerHook(t *testing.T) {
	a, _, built := newTestApp(testConfig(), newFakeStore())
	for i := 0; i < 3; i++ {
		_, err := a.FetchRevisions(context.Background(), &DeployContext{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, *built)
}
