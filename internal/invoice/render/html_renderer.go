// Package render produces the parent-facing HTML view of an invoice.
// The output is self-contained (inline styles, no scripts) so it can be
// served directly or dropped into an email body.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/edusuite/billing/pkg/money"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.Number}}</title>
  <style>
    :root {
      --primary: {{.AccentColor}};
      --font: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 40px;
      font-family: var(--font);
      color: #1a1f36;
      background: #f7f9fc;
      -webkit-font-smoothing: antialiased;
    }
    .invoice-card {
      background: #ffffff;
      max-width: 760px;
      margin: 0 auto;
      padding: 60px;
      box-shadow: 0 2px 5px rgba(0,0,0,0.04);
      border-radius: 4px;
    }
    .header {
      display: flex;
      justify-content: space-between;
      margin-bottom: 40px;
    }
    .header-left h1 {
      margin: 0;
      font-size: 24px;
      font-weight: 700;
      color: #1a1f36;
    }
    .header-right {
      text-align: right;
      font-weight: 600;
      color: var(--primary);
      font-size: 16px;
    }
    .status-badge {
      display: inline-block;
      margin-top: 8px;
      padding: 2px 10px;
      border-radius: 10px;
      background: #eef2f7;
      color: #697386;
      font-size: 11px;
      text-transform: uppercase;
      letter-spacing: 0.3px;
      font-weight: 600;
    }
    .meta-grid {
      display: flex;
      justify-content: space-between;
      margin-bottom: 40px;
    }
    .col { flex: 1; }
    .label {
      font-size: 11px;
      text-transform: uppercase;
      color: #8792a2;
      margin-bottom: 6px;
      font-weight: 600;
      letter-spacing: 0.3px;
    }
    .value {
      font-size: 14px;
      line-height: 1.5;
      color: #1a1f36;
    }
    .amount-section { margin-bottom: 40px; }
    .amount-large {
      font-size: 32px;
      font-weight: 700;
      color: #1a1f36;
      margin-bottom: 4px;
    }
    table {
      width: 100%;
      border-collapse: collapse;
      margin-bottom: 30px;
    }
    th {
      text-align: left;
      text-transform: uppercase;
      font-size: 11px;
      color: #8792a2;
      border-bottom: 1px solid #e3e8ee;
      padding: 10px 0;
      font-weight: 600;
      letter-spacing: 0.3px;
    }
    td {
      padding: 16px 0;
      border-bottom: 1px solid #e3e8ee;
      font-size: 14px;
      color: #1a1f36;
      vertical-align: top;
    }
    .td-right { text-align: right; }
    .item-title { font-weight: 600; margin-bottom: 2px; }
    .totals {
      width: 100%;
      display: flex;
      flex-direction: column;
      align-items: flex-end;
    }
    .total-row {
      display: flex;
      justify-content: space-between;
      width: 280px;
      padding: 6px 0;
      font-size: 14px;
    }
    .total-label { color: #697386; }
    .total-value { color: #1a1f36; text-align: right; font-weight: 500; }
    .total-final {
      border-top: 1px solid #e3e8ee;
      margin-top: 10px;
      padding-top: 10px;
      font-weight: 700;
      font-size: 16px;
      color: #1a1f36;
    }
    .footer {
      margin-top: 60px;
      font-size: 12px;
      color: #8792a2;
      border-top: 1px solid #e3e8ee;
      padding-top: 20px;
    }
  </style>
</head>
<body>
  <div class="invoice-card">
    <div class="header">
      <div class="header-left">
        <h1>Invoice</h1>
        <div class="label" style="margin-top: 12px;">Invoice number</div>
        <div class="value">{{.Invoice.Number}}</div>
        <div class="status-badge">{{statusLabel .Invoice.Status}}</div>
      </div>
      <div class="header-right">{{.School.Name}}</div>
    </div>

    <div class="meta-grid">
      <div class="col">
        <div class="label">Billed for</div>
        <div class="value">
          <strong>{{.Student.FullName}}</strong><br>
          {{if .Student.ClassLevel}}{{.Student.ClassLevel}}<br>{{end}}
          {{if .Student.ParentEmail}}{{.Student.ParentEmail}}{{end}}
        </div>
      </div>
      <div class="col" style="flex: 0 0 200px;">
        <div class="label">Date due</div>
        <div class="value">{{formatDate .Invoice.DueAt}}</div>

        <div class="label" style="margin-top: 16px;">Date issued</div>
        <div class="value">{{formatDateValue .Invoice.IssuedAt}}</div>
      </div>
    </div>

    <div class="amount-section">
      <div class="amount-large">{{formatMoney .Invoice.BalanceDue .Invoice.Currency}}</div>
      <div class="value" style="color: #697386;">due {{formatDate .Invoice.DueAt}}</div>
    </div>

    <table>
      <thead>
        <tr>
          <th style="width: 70%;">Fee</th>
          <th class="td-right">Amount</th>
        </tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td><div class="item-title">{{.Category}}</div></td>
          <td class="td-right" style="font-weight: 500;">{{formatMoney .Amount $.Invoice.Currency}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="totals">
      <div class="total-row">
        <span class="total-label">Subtotal</span>
        <span class="total-value">{{formatMoney .Invoice.GrossAmount .Invoice.Currency}}</span>
      </div>
      {{if gt .Invoice.DiscountAmount 0}}
      <div class="total-row">
        <span class="total-label">Discounts</span>
        <span class="total-value">&minus;{{formatMoney .Invoice.DiscountAmount .Invoice.Currency}}</span>
      </div>
      {{end}}
      <div class="total-row total-final">
        <span class="total-label" style="color: #1a1f36;">Total</span>
        <span class="total-value">{{formatMoney .Invoice.TotalAmount .Invoice.Currency}}</span>
      </div>
      {{if gt .Invoice.AmountPaid 0}}
      <div class="total-row">
        <span class="total-label">Paid</span>
        <span class="total-value">&minus;{{formatMoney .Invoice.AmountPaid .Invoice.Currency}}</span>
      </div>
      {{end}}
      <div class="total-row">
        <span class="total-label">Balance due</span>
        <span class="total-value">{{formatMoney .Invoice.BalanceDue .Invoice.Currency}}</span>
      </div>
    </div>

    {{if .School.ContactEmail}}
    <div class="footer">
      Questions about this invoice? Contact {{.School.Name}} at {{.School.ContactEmail}}.
    </div>
    {{end}}
  </div>
</body>
</html>
`

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// SchoolView carries the issuing school's letterhead fields.
type SchoolView struct {
	Name         string
	ContactEmail string
}

// StudentView identifies who the fees are billed for.
type StudentView struct {
	FullName    string
	ClassLevel  string
	ParentEmail string
}

// InvoiceView is the renderable shape of one invoice.
type InvoiceView struct {
	Number         string
	Status         string
	Currency       string
	GrossAmount    int64
	DiscountAmount int64
	TotalAmount    int64
	AmountPaid     int64
	BalanceDue     int64
	IssuedAt       time.Time
	DueAt          *time.Time
}

// LineView is one fee line.
type LineView struct {
	Category string
	Amount   int64
}

type RenderInput struct {
	School      SchoolView
	Student     StudentView
	Invoice     InvoiceView
	Items       []LineView
	AccentColor string
}

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
}

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney":     formatMoney,
		"formatDate":      formatDate,
		"formatDateValue": formatDateValue,
		"statusLabel":     statusLabel,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	input.AccentColor = sanitizeColor(input.AccentColor)
	if input.School.Name == "" {
		input.School.Name = "Invoice"
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatMoney(amount int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == "NGN" {
		return money.FormatNaira(amount)
	}
	return fmt.Sprintf("%s %.2f", currency, float64(amount)/100.0)
}

func formatDate(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2 January 2006")
}

func formatDateValue(value time.Time) string {
	return formatDate(&value)
}

func statusLabel(status string) string {
	return strings.ReplaceAll(status, "_", " ")
}

func sanitizeColor(value string) string {
	trimmed := strings.TrimSpace(value)
	if hexColorPattern.MatchString(trimmed) {
		return trimmed
	}
	return "#1f7a4d"
}
