package invitation

import (
	"github.com/trustcove/trustcove/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(service.NewService),
)
