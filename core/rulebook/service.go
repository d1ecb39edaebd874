package rulebook

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
)

var (
	// errors
	ErrNotFound       = errors.New("rulebook not found")
	ErrNoActive       = errors.New("no active rulebook found")
	ErrNotPDF         = errors.New("file must be a PDF")
	ErrMissingPDFFile = errors.New("no PDF file provided")
)

type (
	Repository interface {
		CreateRulebook(ctx context.Context, rb Rulebook) (Rulebook, error)
		GetRulebook(ctx context.Context, id string) (Rulebook, error)
		GetActiveRulebook(ctx context.Context) (Rulebook, error)
		QueryRulebooks(ctx context.Context, ordering []core.DBOrdering) ([]Rulebook, error)
		UpdateRulebook(ctx context.Context, rb Rulebook) (Rulebook, error)
		// DeactivateAll clears the active flag on every rulebook.
		DeactivateAll(ctx context.Context) error
		DeleteRulebooksByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		// Upload stores the PDF and creates the rulebook record.
		// Activating the new rulebook deactivates every other one.
		Upload(ctx context.Context, nr NewRulebook, file *PDFFile, uploadedBy string) (Rulebook, error)
		Query(ctx context.Context) ([]Rulebook, error)
		SetActive(ctx context.Context, id string, active bool) (Rulebook, error)
		// ActiveURL returns the active rulebook and a presigned link to its PDF.
		ActiveURL(ctx context.Context) (Rulebook, string, error)
		// Delete removes rulebooks along with their stored PDFs.
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo       Repository
		storageSvc core.ObjectStorage
		logger     core.Logger
		conf       *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, storageSvc core.ObjectStorage, logger core.Logger, conf *core.Config) Service {
	return &service{repo: repo, storageSvc: storageSvc, logger: logger, conf: conf}
}

func (svc *service) Upload(ctx context.Context, nr NewRulebook, file *PDFFile, uploadedBy string) (Rulebook, error) {
	if file == nil {
		return Rulebook{}, core.NewValidationError(
			ErrMissingPDFFile, core.FieldError{Field: "pdf_file", Error: ErrMissingPDFFile.Error()})
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		return Rulebook{}, core.NewValidationError(
			ErrNotPDF, core.FieldError{Field: "pdf_file", Error: ErrNotPDF.Error()})
	}

	key := path.Join("rulebooks", fmt.Sprintf("%s_%s", uuid.New().String(), file.Filename))
	if err := svc.storageSvc.Upload(ctx, key, file.Content, file.Size, "application/pdf"); err != nil {
		return Rulebook{}, errors.Wrap(err, "uploading rulebook PDF")
	}

	if nr.IsActive {
		if err := svc.repo.DeactivateAll(ctx); err != nil {
			return Rulebook{}, errors.Wrap(err, "deactivating rulebooks")
		}
	}

	rb := Rulebook{
		Title:       nr.Title,
		Description: nr.Description,
		ObjectKey:   key,
		IsActive:    nr.IsActive,
		UploadedBy:  uploadedBy,
		UploadedAt:  time.Now().UTC(),
	}
	rb, err := svc.repo.CreateRulebook(ctx, rb)
	if err != nil {
		return Rulebook{}, errors.Wrap(err, "creating rulebook")
	}
	return rb, nil
}

func (svc *service) Query(ctx context.Context) ([]Rulebook, error) {
	return svc.repo.QueryRulebooks(ctx, []core.DBOrdering{{Field: "uploaded_at", Ascending: false}})
}

func (svc *service) SetActive(ctx context.Context, id string, active bool) (Rulebook, error) {
	rb, err := svc.repo.GetRulebook(ctx, id)
	if err != nil {
		return Rulebook{}, err
	}
	if active {
		if err = svc.repo.DeactivateAll(ctx); err != nil {
			return Rulebook{}, errors.Wrap(err, "deactivating rulebooks")
		}
	}
	rb.IsActive = active
	rb, err = svc.repo.UpdateRulebook(ctx, rb)
	if err != nil {
		return Rulebook{}, errors.Wrap(err, "updating rulebook")
	}
	return rb, nil
}

func (svc *service) ActiveURL(ctx context.Context) (Rulebook, string, error) {
	rb, err := svc.repo.GetActiveRulebook(ctx)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Rulebook{}, "", ErrNoActive
		}
		return Rulebook{}, "", err
	}
	url, err := svc.storageSvc.PresignedURL(ctx, rb.ObjectKey, svc.conf.Storage.PresignExpiry)
	if err != nil {
		return Rulebook{}, "", errors.Wrap(err, "presigning rulebook PDF")
	}
	return rb, url, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		rb, err := svc.repo.GetRulebook(ctx, id)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				continue
			}
			return errors.Wrap(err, "finding rulebook")
		}
		if err = svc.storageSvc.Delete(ctx, rb.ObjectKey); err != nil {
			svc.logger.Warn(fmt.Sprintf("deleting object %s: %v", rb.ObjectKey, err))
		}
	}
	return svc.repo.DeleteRulebooksByID(ctx, ids...)
}
