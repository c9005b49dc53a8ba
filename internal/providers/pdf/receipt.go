package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptData is the print shape of a settled payment.
type ReceiptData struct {
	SchoolName   string
	SchoolEmail  string
	Reference    string
	Purpose      string
	StudentName  string
	ClassLevel   string
	ParentEmail  string
	AmountPaid   string
	DatePaid     string
	Channel      string
	GatewayRef   string
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	m := newDocument()

	m.AddRow(14,
		text.NewCol(8, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, data.SchoolName, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Reference: "+data.Reference, props.Text{Top: 0}),
			text.New("Date paid: "+data.DatePaid, props.Text{Top: 4}),
			text.New("Purpose: "+data.Purpose, props.Text{Top: 8}),
			text.New("Channel: "+data.Channel, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Paid for", props.Text{Style: fontstyle.Bold}),
			text.New(data.StudentName, props.Text{Top: 4}),
			text.New(data.ClassLevel, props.Text{Top: 8}),
			text.New(data.ParentEmail, props.Text{Top: 12}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, data.AmountPaid+" paid on "+data.DatePaid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	if data.GatewayRef != "" {
		m.AddRow(10,
			text.NewCol(12, "Gateway reference: "+data.GatewayRef, props.Text{
				Size: 9,
			}),
		)
	}

	if data.SchoolEmail != "" {
		m.AddRow(15,
			text.NewCol(12, "Keep this receipt for your records. Questions? Contact "+data.SchoolName+" at "+data.SchoolEmail+".", props.Text{
				Size: 8,
				Top:  8,
			}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
