package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petermazzocco/go-order-wizard/internal/imaging"
	"github.com/petermazzocco/go-order-wizard/internal/notify"
	"github.com/petermazzocco/go-order-wizard/internal/profiles"
	"github.com/petermazzocco/go-order-wizard/models"
)

type fakeNormalizer struct {
	failOn string
	calls  int
}

func (f *fakeNormalizer) Normalize(in imaging.File) (imaging.File, error) {
	f.calls++
	if in.Name == f.failOn {
		return imaging.File{}, imaging.ErrDecode
	}
	return imaging.File{Name: "greyscale_" + in.Name, ContentType: in.ContentType, Data: in.Data}, nil
}

type fakeUploader struct {
	mu     sync.Mutex
	keys   []string
	failAt int // 1-based call number, 0 never fails
}

func (f *fakeUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if f.failAt == len(f.keys) {
		return "", errors.New("bucket unavailable")
	}
	return "https://cdn.example.com/" + key, nil
}

type fakeRecorder struct {
	orders []*models.OrderSubmission
	err    error
}

func (f *fakeRecorder) Create(ctx context.Context, o *models.OrderSubmission) error {
	if f.err != nil {
		return f.err
	}
	o.ID = fmt.Sprintf("order-%d", len(f.orders)+1)
	f.orders = append(f.orders, o)
	return nil
}

type fakeProfiles struct {
	mu    sync.Mutex
	saved []profiles.Fields
	err   error
}

func (f *fakeProfiles) Save(ctx context.Context, userID string, fields profiles.Fields) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, fields)
	return &models.UserProfile{ID: userID}, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Submission
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, s notify.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, s)
	return f.err
}

// inlineTasks runs tasks synchronously and records their errors.
type inlineTasks struct {
	names  []string
	errors []error
}

func (t *inlineTasks) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	t.names = append(t.names, name)
	t.errors = append(t.errors, fn(ctx))
}

type harness struct {
	normalizer *fakeNormalizer
	uploader   *fakeUploader
	recorder   *fakeRecorder
	profiles   *fakeProfiles
	notifier   *fakeNotifier
	tasks      *inlineTasks
	pipeline   *Pipeline
}

func newHarness(concurrency int) *harness {
	h := &harness{
		normalizer: &fakeNormalizer{},
		uploader:   &fakeUploader{},
		recorder:   &fakeRecorder{},
		profiles:   &fakeProfiles{},
		notifier:   &fakeNotifier{},
		tasks:      &inlineTasks{},
	}
	h.pipeline = NewPipeline(Deps{
		Normalizer:        h.normalizer,
		Uploader:          h.uploader,
		Recorder:          h.recorder,
		Profiles:          h.profiles,
		Notifier:          h.notifier,
		Tasks:             h.tasks,
		Log:               zap.NewNop(),
		UploadConcurrency: concurrency,
	})
	h.pipeline.newToken = func() string { return "tok" }
	return h
}

var ada = Identity{ID: "user-1", Email: "ada@example.com"}

func TestSubmitHappyPath(t *testing.T) {
	h := newHarness(1)
	w := filledWizard(t, photo("a.png"), photo("b.jpg"), photo("c.png"))

	order, err := h.pipeline.Submit(context.Background(), ada, w)
	require.NoError(t, err)

	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, []string{
		"https://cdn.example.com/user-1/tok-0.png",
		"https://cdn.example.com/user-1/tok-1.jpg",
		"https://cdn.example.com/user-1/tok-2.png",
	}, []string(order.ImageURLs))
	require.NotNil(t, order.Tip)
	assert.InDelta(t, 15.0, *order.Tip, 0.001)

	assert.Equal(t, []string{"profile-save", "notify"}, h.tasks.names)
	require.Len(t, h.profiles.saved, 1)
	assert.Equal(t, "Ada Lovelace", *h.profiles.saved[0].FullName)
	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, "ada@example.com", h.notifier.sent[0].UserEmail)
	assert.Len(t, h.notifier.sent[0].ImageURLs, 3)
}

func TestSubmitWithOneImageMakesNoStoreCalls(t *testing.T) {
	h := newHarness(1)
	w := filledWizard(t, photo("a.png"))

	_, err := h.pipeline.Submit(context.Background(), ada, w)
	require.ErrorIs(t, err, ErrTooFewImages)
	assert.Contains(t, err.Error(), "at least 2 pictures")

	assert.Zero(t, h.normalizer.calls)
	assert.Empty(t, h.uploader.keys)
	assert.Empty(t, h.recorder.orders)
	assert.Empty(t, h.tasks.names)
}

func TestSubmitOnlyFromLastStep(t *testing.T) {
	h := newHarness(1)
	w := filledWizard(t, photo("a.png"), photo("b.png"))
	w.Back()

	_, err := h.pipeline.Submit(context.Background(), ada, w)
	require.ErrorIs(t, err, ErrNotOnLastStep)
	assert.Empty(t, h.uploader.keys)
}

func TestSubmitRequiresIdentity(t *testing.T) {
	h := newHarness(1)
	_, err := h.pipeline.Submit(context.Background(), Identity{}, filledWizard(t, photo("a.png"), photo("b.png")))
	require.ErrorIs(t, err, ErrMissingIdentity)
}

func TestImageFailureAbortsBeforeAnyUpload(t *testing.T) {
	h := newHarness(1)
	h.normalizer.failOn = "b.png"
	w := filledWizard(t, photo("a.png"), photo("b.png"), photo("c.png"))

	_, err := h.pipeline.Submit(context.Background(), ada, w)
	var imgErr *ImageError
	require.ErrorAs(t, err, &imgErr)
	assert.Equal(t, "b.png", imgErr.Filename)
	assert.ErrorIs(t, err, imaging.ErrDecode)

	assert.Empty(t, h.uploader.keys)
	assert.Empty(t, h.recorder.orders)
}

func TestThirdUploadFailureRecordsNothing(t *testing.T) {
	h := newHarness(1)
	h.uploader.failAt = 3
	w := filledWizard(t, photo("a.png"), photo("b.png"), photo("c.png"))

	_, err := h.pipeline.Submit(context.Background(), ada, w)
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "c.png", upErr.Filename)
	assert.True(t, strings.HasPrefix(err.Error(), "upload failed for c.png"))

	// The first two objects stay in the bucket.
	assert.Len(t, h.uploader.keys, 3)
	assert.Empty(t, h.recorder.orders)
	assert.Empty(t, h.tasks.names)
}

func TestSequentialUploadStopsAtFirstFailure(t *testing.T) {
	h := newHarness(1)
	h.uploader.failAt = 1
	w := filledWizard(t, photo("a.png"), photo("b.png"), photo("c.png"))

	_, err := h.pipeline.Submit(context.Background(), ada, w)
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "a.png", upErr.Filename)
	assert.Len(t, h.uploader.keys, 1)
}

func TestParallelUploadsKeepSelectionOrder(t *testing.T) {
	h := newHarness(4)
	var files []imaging.File
	for i := 0; i < 8; i++ {
		files = append(files, photo(fmt.Sprintf("p%d.png", i)))
	}
	w := filledWizard(t, files...)

	order, err := h.pipeline.Submit(context.Background(), ada, w)
	require.NoError(t, err)
	for i, u := range order.ImageURLs {
		assert.Equal(t, fmt.Sprintf("https://cdn.example.com/user-1/tok-%d.png", i), u)
	}
}

func TestRecorderFailureIsGeneric(t *testing.T) {
	h := newHarness(1)
	h.recorder.err = errors.New("duplicate key value violates constraint")
	w := filledWizard(t, photo("a.png"), photo("b.png"))

	_, err := h.pipeline.Submit(context.Background(), ada, w)
	var pErr *PersistError
	require.ErrorAs(t, err, &pErr)
	assert.NotContains(t, err.Error(), "duplicate key")
	assert.Empty(t, h.tasks.names)
}

func TestPostCommitFailuresDoNotFailSubmit(t *testing.T) {
	h := newHarness(1)
	h.profiles.err = errors.New("profile table locked")
	h.notifier.err = errors.New("discord returned status 500")
	w := filledWizard(t, photo("a.png"), photo("b.png"))

	order, err := h.pipeline.Submit(context.Background(), ada, w)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)

	require.Len(t, h.tasks.errors, 2)
	assert.Error(t, h.tasks.errors[0])
	assert.Error(t, h.tasks.errors[1])
}
