package providers

import (
	"github.com/edusuite/billing/internal/providers/email"
	"github.com/edusuite/billing/internal/providers/pdf"
	"github.com/edusuite/billing/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	slack.Module,
	pdf.Module,
)
