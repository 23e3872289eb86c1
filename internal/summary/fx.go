package summary

import (
	"github.com/smallbiznis/deskwise/internal/summary/service"
	"go.uber.org/fx"
)

var Module = fx.Module("summary.service",
	fx.Provide(service.NewService),
)
