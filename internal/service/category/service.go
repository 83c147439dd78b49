package category

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/repository/category"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

type Service struct {
	repo category.Repository
}

func New(repo category.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Category, error) {
	return s.repo.List(ctx)
}

func (s *Service) Upsert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Slug = normalizeSlug(c.Slug, c.Name)
	if c.Name == "" || !slugPattern.MatchString(c.Slug) {
		return nil, fmt.Errorf("%w: category needs a name and a valid slug", domain.ErrValidation)
	}
	return s.repo.Upsert(ctx, c)
}

func (s *Service) UpsertSubcategory(ctx context.Context, sub domain.Subcategory) (*domain.Subcategory, error) {
	if _, err := uuid.Parse(sub.CategoryID); err != nil {
		return nil, fmt.Errorf("%w: invalid category id", domain.ErrValidation)
	}
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Slug = normalizeSlug(sub.Slug, sub.Name)
	if sub.Name == "" || !slugPattern.MatchString(sub.Slug) {
		return nil, fmt.Errorf("%w: subcategory needs a name and a valid slug", domain.ErrValidation)
	}
	return s.repo.UpsertSubcategory(ctx, sub)
}

// normalizeSlug derives a slug from name when slug is empty.
func normalizeSlug(slug, name string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = name
	}
	slug = strings.ToLower(slug)
	var b strings.Builder
	dash := false
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
