package repository

import (
	"context"

	"dutyfree/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegisterRepository interface {
	CreateSession(ctx context.Context, s *model.RegisterSession) error
	FindOpenByRegister(ctx context.Context, registerNumber int) (*model.RegisterSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.RegisterSession, error)
	UpdateSession(ctx context.Context, s *model.RegisterSession) error
}

type registerRepo struct{ db *gorm.DB }

func NewRegisterRepository(db *gorm.DB) RegisterRepository { return &registerRepo{db: db} }

func (r *registerRepo) CreateSession(ctx context.Context, s *model.RegisterSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *registerRepo) FindOpenByRegister(ctx context.Context, registerNumber int) (*model.RegisterSession, error) {
	var s model.RegisterSession
	err := r.db.WithContext(ctx).
		Where("register_number = ? AND status = ?", registerNumber, model.RegisterStatusOpen).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *registerRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.RegisterSession, error) {
	var s model.RegisterSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *registerRepo) UpdateSession(ctx context.Context, s *model.RegisterSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}
