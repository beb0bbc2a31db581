package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/trustcove/trustcove/internal/clock"
	"github.com/trustcove/trustcove/internal/migration"
	"github.com/trustcove/trustcove/internal/observability"
	"github.com/trustcove/trustcove/internal/server"
	"github.com/trustcove/trustcove/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
		migration.Module,
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
