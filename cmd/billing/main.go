package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/edusuite/billing/internal/clock"
	"github.com/edusuite/billing/internal/config"
	"github.com/edusuite/billing/internal/migration"
	"github.com/edusuite/billing/internal/observability"
	"github.com/edusuite/billing/internal/scheduler"
	"github.com/edusuite/billing/internal/server"
	"github.com/edusuite/billing/pkg/db"
	"go.uber.org/fx"
)

// Single-binary deployment: HTTP API, webhook ingest, and the sweep
// scheduler in one process. Larger installs run apps/scheduler
// separately and set SCHEDULER_DISABLED=true here.
func main() {
	fx.New(appOptions()).Run()
}

func appOptions() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		scheduler.Module,
		server.Module,
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
