package attendance

import (
	"github.com/fitstack/centerledger/internal/attendance/repository"
	"github.com/fitstack/centerledger/internal/attendance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("attendance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
