package subscription

import (
	"github.com/fitstack/centerledger/internal/subscription/repository"
	"github.com/fitstack/centerledger/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
