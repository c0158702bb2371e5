package modelstore

import (
	"errors"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/s3"
)

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) || s3.IsNotFound(err)
}
