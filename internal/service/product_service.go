package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"dutyfree/internal/dto"
	"dutyfree/internal/model"
	"dutyfree/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductService is the catalog. It also serves as the default
// ProductCatalog the sale workflow prices lines from.
type ProductService interface {
	Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error)
	List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	GetPricing(ctx context.Context, id uuid.UUID) (model.ProductPricing, error)
}

type productService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) ProductService {
	return &productService{repo: repo}
}

func (s *productService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if req.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: unit price must not be negative", ErrInvalidAmount)
	}
	if req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: tax rate must be between 0 and 100", ErrInvalidAmount)
	}
	if _, err := s.repo.FindByCode(ctx, req.Code); err == nil {
		return nil, fmt.Errorf("%w: product code %q already exists", ErrInvalidState, req.Code)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tracks := true
	if req.TracksStock != nil {
		tracks = *req.TracksStock
	}
	p := &model.Product{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   roundMoney(req.UnitPrice),
		TaxRate:     req.TaxRate,
		TracksStock: tracks,
		Active:      true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	resp := productToResponse(p)
	return &resp, nil
}

func (s *productService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := productToResponse(p)
	return &resp, nil
}

func (s *productService) List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		data = append(data, productToResponse(&products[i]))
	}
	return &dto.ProductListResponse{
		Data:       data,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

// Deactivate is a soft delete: the row stays so historical sales keep
// resolving, but the product can no longer be sold.
func (s *productService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("product", id)
		}
		return err
	}
	return nil
}

func (s *productService) GetPricing(ctx context.Context, id uuid.UUID) (model.ProductPricing, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return model.ProductPricing{}, err
	}
	if !p.Active {
		return model.ProductPricing{}, fmt.Errorf("%w: product %s is inactive", ErrInvalidState, p.Code)
	}
	return p.Pricing(), nil
}

func (s *productService) find(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("product", id)
		}
		return nil, err
	}
	return p, nil
}

func productToResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID.String(),
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		UnitPrice:   p.UnitPrice,
		TaxRate:     p.TaxRate,
		TracksStock: p.TracksStock,
		Active:      p.Active,
	}
}
