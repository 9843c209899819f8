package profile

import (
	"errors"

	profileerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/profile/errors"

	"gorm.io/gorm"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return profileerrors.ErrProfileNotFound
	}
	return err
}
