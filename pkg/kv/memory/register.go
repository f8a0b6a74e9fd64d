package memory

import (
	"github.com/tradepairs/pairs-backend/pkg/kv"
)

func init() {
	kv.RegisterBackend(kv.BackendMemory, func(cfg kv.Config) (kv.Store, error) {
		return New(), nil
	})
}
