package marketing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository/newsletter"
	"storefront/internal/repository/promotion"
)

type Service struct {
	promotions promotion.Repository
	newsletter newsletter.Repository
	validate   *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

func New(promotions promotion.Repository, subscribers newsletter.Repository, logger *zerolog.Logger) *Service {
	lg := zerolog.Nop()
	if logger != nil {
		lg = logging.Component(*logger, "marketing")
	}
	return &Service{
		promotions: promotions,
		newsletter: subscribers,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     lg,
		now:        time.Now,
	}
}

// LivePromotions never fails: a storage error is logged and yields an empty list.
func (s *Service) LivePromotions(ctx context.Context) []domain.Promotion {
	list, err := s.promotions.ListLive(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("load live promotions")
		return []domain.Promotion{}
	}
	if list == nil {
		return []domain.Promotion{}
	}
	return list
}

func (s *Service) AllPromotions(ctx context.Context) ([]domain.Promotion, error) {
	return s.promotions.ListAll(ctx)
}

type PromotionInput struct {
	ID              string    `json:"id"`
	Title           string    `json:"title" validate:"required,max=200"`
	Description     string    `json:"description" validate:"max=2000"`
	Code            string    `json:"code" validate:"omitempty,alphanum,max=40"`
	DiscountPercent int       `json:"discountPercent" validate:"gte=0,lte=100"`
	StartsAt        time.Time `json:"startsAt" validate:"required"`
	EndsAt          time.Time `json:"endsAt" validate:"required,gtfield=StartsAt"`
	Active          *bool     `json:"active"`
}

func (s *Service) UpsertPromotion(ctx context.Context, in PromotionInput) (*domain.Promotion, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	p, err := s.promotions.Upsert(ctx, domain.Promotion{
		ID:              in.ID,
		Title:           in.Title,
		Description:     strings.TrimSpace(in.Description),
		Code:            in.Code,
		DiscountPercent: in.DiscountPercent,
		StartsAt:        in.StartsAt.UTC(),
		EndsAt:          in.EndsAt.UTC(),
		Active:          in.Active == nil || *in.Active,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("promotion_id", p.ID).Msg("promotion saved")
	return p, nil
}

func (s *Service) Subscribe(ctx context.Context, email string) (*domain.NewsletterSubscriber, error) {
	email, err := s.cleanEmail(email)
	if err != nil {
		return nil, err
	}
	return s.newsletter.Subscribe(ctx, email)
}

func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	email, err := s.cleanEmail(email)
	if err != nil {
		return err
	}
	return s.newsletter.Unsubscribe(ctx, email)
}

func (s *Service) Subscribers(ctx context.Context) ([]domain.NewsletterSubscriber, error) {
	return s.newsletter.ListActive(ctx)
}

func (s *Service) cleanEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	return email, nil
}
