package audit

import (
	"github.com/trustcove/trustcove/internal/audit/repository"
	"github.com/trustcove/trustcove/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
