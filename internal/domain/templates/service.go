package templates

import (
	"context"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"wipetrace/internal/domain/enums"
)

// Service resolves which letter to send and administers stored templates.
// Resolutions are cached for ttl and the cache is flushed on every write.
type Service struct {
	store StoreAPI
	cache *gocache.Cache
	log   *zap.Logger
}

func NewService(store StoreAPI, ttl time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{store: store, cache: gocache.New(ttl, time.Minute), log: log}
}

// Resolve picks, in order: the company's active template, the active
// jurisdiction default, then the built-in text. Inactive templates are never
// returned.
func (s *Service) Resolve(ctx context.Context, j enums.Jurisdiction, tt enums.TemplateType, companyID string) (Resolved, error) {
	if tt == "" {
		tt = enums.TemplateInitialRequest
	}
	key := cacheKey(j, tt, companyID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(Resolved), nil
	}

	resolved, err := s.resolve(ctx, j, tt, companyID)
	if err != nil {
		return Resolved{}, err
	}
	s.cache.Set(key, resolved, gocache.DefaultExpiration)
	return resolved, nil
}

func (s *Service) resolve(ctx context.Context, j enums.Jurisdiction, tt enums.TemplateType, companyID string) (Resolved, error) {
	if companyID != "" {
		t, err := s.store.FindCompanyTemplate(ctx, companyID, j, tt)
		switch {
		case err == nil && t.IsActive:
			return Resolved{ID: t.ID, Source: SourceCompany, Content: t.Content()}, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return Resolved{}, err
		}
	}

	t, err := s.store.FindDefaultTemplate(ctx, j, tt)
	switch {
	case err == nil && t.IsActive:
		return Resolved{ID: t.ID, Source: SourceDefault, Content: t.Content()}, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return Resolved{}, err
	}

	return Resolved{Source: SourceBuiltin, Content: BuiltinFor(j, tt)}, nil
}

func (s *Service) Upsert(ctx context.Context, in UpsertInput) (Template, error) {
	if strings.TrimSpace(in.Subject) == "" {
		return Template{}, &enums.ValidationError{Field: "subject"}
	}
	if strings.TrimSpace(in.Body) == "" {
		return Template{}, &enums.ValidationError{Field: "body"}
	}
	t, err := s.store.UpsertTemplate(ctx, in)
	if err != nil {
		return Template{}, err
	}
	s.cache.Flush()
	return t, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := s.store.DeactivateTemplate(ctx, id); err != nil {
		return err
	}
	s.cache.Flush()
	return nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Template, error) {
	return s.store.ListTemplates(ctx, filter)
}

// SeedDefaults stores the built-in initial letters as active jurisdiction
// defaults. Running it again refreshes their text.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	seeded := 0
	for _, j := range enums.Jurisdictions {
		c := Builtin(j)
		if _, err := s.store.UpsertTemplate(ctx, UpsertInput{
			Jurisdiction: j,
			TemplateType: enums.TemplateInitialRequest,
			Subject:      c.Subject,
			Body:         c.Body,
			PlainText:    c.PlainText,
			IsDefault:    true,
		}); err != nil {
			return seeded, err
		}
		seeded++
	}
	s.cache.Flush()
	s.log.Info("default email templates seeded", zap.Int("count", seeded))
	return seeded, nil
}

func cacheKey(j enums.Jurisdiction, tt enums.TemplateType, companyID string) string {
	if companyID == "" {
		companyID = "default"
	}
	return string(j) + "|" + string(tt) + "|" + companyID
}
