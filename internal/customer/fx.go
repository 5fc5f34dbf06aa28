package customer

import (
	"github.com/fitstack/centerledger/internal/customer/repository"
	"github.com/fitstack/centerledger/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
