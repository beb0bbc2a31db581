package organization

import (
	"github.com/trustcove/trustcove/internal/organization/repository"
	"github.com/trustcove/trustcove/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
