package storage

import (
	"context"
	"errors"
	"lessonchat/backend/internal/apperr"
	"lessonchat/backend/internal/models"

	"gorm.io/gorm"
)

func (s *Service) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *Service) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *Service) findUser(ctx context.Context, cond, ref string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where(cond, ref).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.UserNotFound(ref)
	}
	if err != nil {
		return nil, apperr.Persistence("find user", err)
	}
	return &user, nil
}

// OwnerOfClass returns the user id of the class owner.
func (s *Service) OwnerOfClass(ctx context.Context, classID string) (string, error) {
	var class models.Class
	err := s.DB.WithContext(ctx).Where("id = ?", classID).First(&class).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperr.InvalidRequest("unknown class " + classID)
	}
	if err != nil {
		return "", apperr.Persistence("find class", err)
	}
	return class.OwnerID, nil
}
