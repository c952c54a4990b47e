package wizard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/petermazzocco/go-order-wizard/internal/imaging"
	"github.com/petermazzocco/go-order-wizard/internal/notify"
	"github.com/petermazzocco/go-order-wizard/internal/profiles"
	"github.com/petermazzocco/go-order-wizard/internal/storage"
	"github.com/petermazzocco/go-order-wizard/models"
)

type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type Recorder interface {
	Create(ctx context.Context, order *models.OrderSubmission) error
}

type ProfileSaver interface {
	Save(ctx context.Context, userID string, f profiles.Fields) (*models.UserProfile, error)
}

type Notifier interface {
	Notify(ctx context.Context, s notify.Submission) error
}

// Scheduler runs post-commit work without blocking the caller.
type Scheduler interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

// Identity is the signed-in user submitting the order.
type Identity struct {
	ID    string
	Email string
}

type Deps struct {
	Normalizer imaging.Normalizer
	Uploader   Uploader
	Recorder   Recorder
	Profiles   ProfileSaver
	Notifier   Notifier
	Tasks      Scheduler
	Log        *zap.Logger

	// UploadConcurrency bounds parallel uploads. 1 uploads in selection order.
	UploadConcurrency int
}

// Pipeline turns a completed wizard into a stored order.
type Pipeline struct {
	normalizer  imaging.Normalizer
	uploader    Uploader
	recorder    Recorder
	profiles    ProfileSaver
	notifier    Notifier
	tasks       Scheduler
	log         *zap.Logger
	concurrency int
	newToken    func() string
	now         func() time.Time
}

func NewPipeline(d Deps) *Pipeline {
	concurrency := d.UploadConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		normalizer:  d.Normalizer,
		uploader:    d.Uploader,
		recorder:    d.Recorder,
		profiles:    d.Profiles,
		notifier:    d.Notifier,
		tasks:       d.Tasks,
		log:         d.Log,
		concurrency: concurrency,
		newToken:    uuid.NewString,
		now:         time.Now,
	}
}

// Submit validates the wizard, greyscales and uploads every photo, and
// records the order. The order exists once Submit returns without error.
// The profile save and the notification run afterwards in the background;
// their failures are logged and never reported to the caller.
//
// A failure before the record is written leaves no order behind, although
// photos uploaded before the failure stay in the bucket.
func (p *Pipeline) Submit(ctx context.Context, user Identity, w *Wizard) (*models.OrderSubmission, error) {
	if user.ID == "" {
		return nil, ErrMissingIdentity
	}
	if w.Step() != LastStep {
		return nil, ErrNotOnLastStep
	}

	order, err := w.Validate()
	if err != nil {
		return nil, err
	}

	processed, err := p.normalizeAll(order.Images)
	if err != nil {
		return nil, err
	}

	urls, err := p.uploadAll(ctx, user.ID, order.Images, processed)
	if err != nil {
		return nil, err
	}

	record := &models.OrderSubmission{
		UserID:               user.ID,
		Name:                 order.Name,
		Phone:                order.Phone,
		Address:              order.Address,
		DeliveryInstructions: order.DeliveryInstructions,
		TotalCost:            order.TotalCost,
		Tip:                  order.Tip,
		ImageURLs:            urls,
	}
	if err := p.recorder.Create(ctx, record); err != nil {
		p.log.Error("order not recorded",
			zap.String("user", user.ID),
			zap.Int("uploaded", len(urls)),
			zap.Error(err))
		return nil, &PersistError{Err: err}
	}

	p.log.Info("order recorded",
		zap.String("order", record.ID),
		zap.String("user", user.ID),
		zap.Int("images", len(urls)))

	p.afterCommit(ctx, user, order, record)
	return record, nil
}

func (p *Pipeline) afterCommit(ctx context.Context, user Identity, order Order, record *models.OrderSubmission) {
	fields := profiles.FieldsFrom(order.Name, order.Phone, order.Address, order.DeliveryInstructions)
	p.tasks.Go(ctx, "profile-save", func(ctx context.Context) error {
		_, err := p.profiles.Save(ctx, user.ID, fields)
		return err
	})

	submittedAt := record.CreatedAt
	if submittedAt.IsZero() {
		submittedAt = p.now()
	}
	summary := notify.Submission{
		ID:                   record.ID,
		Name:                 record.Name,
		Phone:                record.Phone,
		Address:              record.Address,
		DeliveryInstructions: record.DeliveryInstructions,
		TotalCost:            record.TotalCost,
		Tip:                  record.Tip,
		ImageURLs:            append([]string(nil), record.ImageURLs...),
		UserID:               user.ID,
		UserEmail:            user.Email,
		SubmittedAt:          submittedAt,
	}
	p.tasks.Go(ctx, "notify", func(ctx context.Context) error {
		return p.notifier.Notify(ctx, summary)
	})
}

// normalizeAll processes every photo before anything is uploaded.
func (p *Pipeline) normalizeAll(files []imaging.File) ([]imaging.File, error) {
	out := make([]imaging.File, len(files))
	for i, f := range files {
		processed, err := p.normalizer.Normalize(f)
		if err != nil {
			return nil, &ImageError{Filename: f.Name, Err: err}
		}
		out[i] = processed
	}
	return out, nil
}

// uploadAll stores the processed photos and returns their addresses in
// selection order. The first failure stops uploads not yet started.
func (p *Pipeline) uploadAll(ctx context.Context, owner string, originals, processed []imaging.File) ([]string, error) {
	token := p.newToken()
	urls := make([]string, len(processed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, f := range processed {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			key := storage.ObjectKey(owner, token, i, storage.Extension(originals[i].Name, f.ContentType))
			url, err := p.uploader.Upload(gctx, key, f.Data, f.ContentType)
			if err != nil {
				return &UploadError{Filename: originals[i].Name, Err: err}
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}
