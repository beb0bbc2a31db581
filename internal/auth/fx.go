package auth

import (
	"github.com/trustcove/trustcove/internal/auth/repository"
	"github.com/trustcove/trustcove/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
