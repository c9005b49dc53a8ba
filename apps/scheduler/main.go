package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/edusuite/billing/internal/clock"
	"github.com/edusuite/billing/internal/config"
	"github.com/edusuite/billing/internal/discount"
	"github.com/edusuite/billing/internal/feeschedule"
	"github.com/edusuite/billing/internal/invoice"
	"github.com/edusuite/billing/internal/ledger"
	"github.com/edusuite/billing/internal/notification"
	"github.com/edusuite/billing/internal/observability"
	"github.com/edusuite/billing/internal/payment"
	"github.com/edusuite/billing/internal/providers/email"
	"github.com/edusuite/billing/internal/providers/slack"
	"github.com/edusuite/billing/internal/reference"
	"github.com/edusuite/billing/internal/school"
	"github.com/edusuite/billing/internal/scheduler"
	"github.com/edusuite/billing/internal/subscription"
	"github.com/edusuite/billing/pkg/db"
	"go.uber.org/fx"
)

// Dedicated job-runner binary. It hosts the same domain services as the
// API but no HTTP server; the scheduler module starts the run loop on
// its own lifecycle hook. Set SCHEDULER_DISABLED=true on API nodes when
// this binary is deployed so only one loop sweeps the tables.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		scheduler.Module,

		// Domain services the jobs sweep.
		payment.Module,
		invoice.Module,
		subscription.Module,
		ledger.Module,

		// Transitive dependencies (invoice needs schools/fees/discounts).
		school.Module,
		reference.Module,
		feeschedule.Module,
		discount.Module,

		// Reminder dispatch.
		email.Module,
		slack.Module,
		notification.Module,
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
