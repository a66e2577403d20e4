package domain

import "time"

// InvoiceDocument is everything needed to print a sale or refund invoice.
// Return is set for refund invoices only.
type InvoiceDocument struct {
	Invoice  Invoice     `json:"invoice"`
	IssuedAt time.Time   `json:"issued_at"`
	Sale     Sale        `json:"sale"`
	Return   *SaleReturn `json:"return,omitempty"`
}

// ReceiptDocument is a printable payment or refund receipt.
type ReceiptDocument struct {
	Payment  Payment   `json:"payment"`
	Customer *Customer `json:"customer,omitempty"`
	Sale     *Sale     `json:"sale,omitempty"`
}
