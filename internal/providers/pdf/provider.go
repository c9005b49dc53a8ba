package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// Provider renders printable documents for parents: the invoice before
// payment and the receipt after it settles.
type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)
