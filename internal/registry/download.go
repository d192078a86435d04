// Package registry downloads and parses the military manpower administration
// list of designated companies, the seed of every company record.
package registry

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/fetcher"
)

// nationwideForm selects every designated industrial company. An empty
// sido_addr means all regions.
func nationwideForm() url.Values {
	return url.Values{
		"eopjong_gbcd":      {"1"},
		"al_eopjong_gbcd":   {"11111"},
		"eopjong_gbcd_list": {"11111"},
		"eopjong_cd":        {"11111"},
		"sido_addr":         {""},
	}
}

// Download fetches the nationwide spreadsheet into path. An existing file is
// kept unless force is set. Reports whether a download took place.
func Download(ctx context.Context, f fetcher.Fetcher, downloadURL, path string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			zap.L().Info("registry: spreadsheet exists, skipping download", zap.String("path", path))
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, eris.Wrapf(err, "registry: stat %s", path)
		}
	}

	zap.L().Info("registry: downloading nationwide list", zap.String("url", downloadURL))
	n, err := f.PostFormToFile(ctx, downloadURL, nationwideForm(), path)
	if err != nil {
		return false, eris.Wrap(err, "registry: download")
	}
	if n == 0 {
		_ = os.Remove(path)
		return false, eris.Errorf("registry: download from %s returned an empty body", downloadURL)
	}

	zap.L().Info("registry: download complete",
		zap.String("path", path),
		zap.Int64("bytes", n),
	)
	return true, nil
}
