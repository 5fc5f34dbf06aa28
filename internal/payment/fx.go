package payment

import (
	"github.com/fitstack/centerledger/internal/payment/repository"
	"github.com/fitstack/centerledger/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
