package idme

import (
	"go.uber.org/zap"

	"github.com/S0me0neR0man/idmestash/internal/metrics"
)

// AuditUnit logs every mutation
type AuditUnit struct {
	sugar *zap.SugaredLogger
}

func NewAuditUnit(logger *zap.Logger) *AuditUnit {
	return &AuditUnit{sugar: logger.Sugar()}
}

func (a *AuditUnit) SetMiddleware(next SetHandler) SetHandler {
	return SetHandlerFunc(func(req *SetRequest) error {
		a.sugar.Infow("setting idme item", "item", req.Name, "len", len(req.Value))

		err := next.Set(req)
		if err != nil {
			a.sugar.Warnw("set idme item failed", "item", req.Name, "error", err)
			return err
		}
		a.sugar.Debugw("idme item set", "item", req.Name)
		return nil
	})
}

// MetricsMiddleware counts mutations by item and result
func MetricsMiddleware(next SetHandler) SetHandler {
	return SetHandlerFunc(func(req *SetRequest) error {
		err := next.Set(req)
		metrics.Set(req.Name, err)
		return err
	})
}
