// Package backend chooses the storage implementation once at start-up.
package backend

import (
	"fmt"

	"github.com/suPer8Hu/codegen-ide/internal/config"
	"github.com/suPer8Hu/codegen-ide/internal/store"
	"github.com/suPer8Hu/codegen-ide/internal/store/filestore"
	"github.com/suPer8Hu/codegen-ide/internal/store/gormstore"
	"go.uber.org/zap"
)

func NewFromConfig(cfg config.Storage, log *zap.Logger) (store.Storage, error) {
	switch cfg.Type {
	case config.StorageSQL:
		s, err := gormstore.Open(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sql storage: %w", err)
		}
		log.Info("storage ready", zap.String("backend", cfg.Type))
		return s, nil
	case config.StorageFile:
		s, err := filestore.Open(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		log.Info("storage ready", zap.String("backend", cfg.Type), zap.String("data_dir", cfg.DataDir))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Type)
	}
}
