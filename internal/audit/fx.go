package audit

import (
	"github.com/fitstack/centerledger/internal/audit/repository"
	"github.com/fitstack/centerledger/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
