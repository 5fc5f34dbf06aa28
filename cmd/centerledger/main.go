package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/fitstack/centerledger/internal/clock"
	"github.com/fitstack/centerledger/internal/migration"
	"github.com/fitstack/centerledger/internal/observability"
	"github.com/fitstack/centerledger/internal/server"
	"github.com/fitstack/centerledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
