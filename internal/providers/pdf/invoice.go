package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// InvoiceData is the print shape of one school fee invoice. Amounts
// arrive preformatted so the layout stays currency-agnostic.
type InvoiceData struct {
	SchoolName   string
	SchoolEmail  string
	SchoolCode   string
	Number       string
	Status       string
	IssueDate    string
	DueDate      string
	StudentName  string
	ClassLevel   string
	ParentEmail  string
	Items        []FeeLine
	Subtotal     string
	Discount     string
	Total        string
	AmountPaid   string
	BalanceDue   string
	BankDetails  string
}

// FeeLine is one billed fee category.
type FeeLine struct {
	Category string
	Amount   string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	m := newDocument()

	m.AddRow(14,
		text.NewCol(8, "Invoice", props.Text{
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
			text.New("Invoice number: "+data.Number, props.Text{Top: 0}),
			text.New("Date of issue: "+data.IssueDate, props.Text{Top: 4}),
			text.New("Date due: "+data.DueDate, props.Text{Top: 8}),
			text.New("Status: "+data.Status, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Billed for", props.Text{Style: fontstyle.Bold}),
			text.New(data.StudentName, props.Text{Top: 4}),
			text.New(data.ClassLevel, props.Text{Top: 8}),
			text.New(data.ParentEmail, props.Text{Top: 12}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, data.BalanceDue+" due "+data.DueDate, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	if data.BankDetails != "" {
		m.AddRow(15,
			text.NewCol(12, data.BankDetails, props.Text{
				Size: 9,
				Top:  0,
			}),
		)
	}

	addFeeTable(m, data.Items)

	addTotalRow(m, "Subtotal", data.Subtotal, false)
	if data.Discount != "" {
		addTotalRow(m, "Discounts", "-"+data.Discount, false)
	}
	addTotalRow(m, "Total", data.Total, true)
	if data.AmountPaid != "" {
		addTotalRow(m, "Paid", "-"+data.AmountPaid, false)
	}
	addTotalRow(m, "Balance due", data.BalanceDue, true)

	if data.SchoolEmail != "" {
		m.AddRow(15,
			text.NewCol(12, "Questions about this invoice? Contact "+data.SchoolName+" at "+data.SchoolEmail+".", props.Text{
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

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func addFeeTable(m core.Maroto, items []FeeLine) {
	m.AddRow(10,
		text.NewCol(8, "Fee", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range items {
		m.AddRow(8,
			text.NewCol(8, item.Category, props.Text{Size: 9}),
			text.NewCol(4, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
}

func addTotalRow(m core.Maroto, label, value string, bold bool) {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	m.AddRow(8,
		col.New(6),
		text.NewCol(3, label, props.Text{Size: 9, Style: style}),
		text.NewCol(3, value, props.Text{Size: 9, Style: style, Align: align.Right}),
	)
}
