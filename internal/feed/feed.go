// Package feed defines the normalized transaction feed shared by both
// ingestion origins (CSV drops and aggregator syncs) and the aggregator
// collaborator that produces it.
package feed

// Row is one raw feed record. Both origins are normalized to this shape
// before reaching the importer: a date string, a description, a way to
// derive a signed amount (either the Credit/Debit pair or the single
// signed Amount column), an optional running balance and an optional
// stable external identifier.
type Row struct {
	Date        string `csv:"Date" json:"date"`
	Description string `csv:"Description" json:"description"`
	Credit      string `csv:"Credit" json:"credit,omitempty"`
	Debit       string `csv:"Debit" json:"debit,omitempty"`
	Amount      string `csv:"Amount" json:"amount,omitempty"`
	Balance     string `csv:"Balance" json:"balance,omitempty"`
	ExternalID  string `csv:"-" json:"id,omitempty"`
}
