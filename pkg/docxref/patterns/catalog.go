package patterns

// Built-in pattern type names.
const (
	StoreID        = "store_id"
	ProductID      = "product_id"
	EmployeeID     = "employee_id"
	InvoiceNumber  = "invoice_number"
	Date           = "date"
	CurrencyAmount = "currency_amount"
	Percentage     = "percentage"
	Phone          = "phone"
	Email          = "email"
)

// DefaultDefinitions returns the built-in catalog in registry order.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			TypeName: StoreID,
			// VM_DL_001: 2-3 letter prefix, at least one segment starting with a
			// letter, numeric tail. EMP_4567 or INV_2024_0042 have no such segment.
			Regex: `(?i)\b[a-z]{2,3}(?:_[a-z][a-z0-9]{0,5})+_\d{2,6}\b`,
			Label: "Store ID",
			Case:  CaseUpper,
		},
		{
			TypeName: ProductID,
			Regex:    `(?i)\b(?:PRD|PROD|SKU|ITM)[-_]?\d{3,8}\b`,
			Label:    "Product code",
			Case:     CaseUpper,
		},
		{
			TypeName: EmployeeID,
			Regex:    `(?i)\bEMP[-_]?\d{3,8}\b`,
			Label:    "Employee code",
			Case:     CaseUpper,
		},
		{
			TypeName: InvoiceNumber,
			Regex:    `(?i)\b(?:INV|BILL)[-_/]?(?:\d{2,4}[-_/])?\d{3,12}\b`,
			Label:    "Invoice number",
			Case:     CaseUpper,
		},
		{
			TypeName: Date,
			Regex:    `\b(?:\d{2}/\d{2}/\d{4}|\d{4}-\d{2}-\d{2})\b`,
			Label:    "Date",
		},
		{
			TypeName: CurrencyAmount,
			// prefixed (₹, Rs, INR) or bare with at least one group separator
			Regex: `(?i)(?:₹|\bRs\.?|\bINR)\s?\d+(?:,\d{2,3})*(?:\.\d{2})?\b|\b\d{1,3}(?:,\d{2,3})+(?:\.\d{2})?\b`,
			Label: "Amount",
		},
		{
			TypeName: Percentage,
			Regex:    `\b\d+(?:\.\d+)?%`,
			Label:    "Percentage",
		},
		{
			TypeName: Phone,
			Regex:    `\+91-\d{10}\b`,
			Label:    "Phone number",
		},
		{
			TypeName: Email,
			Regex:    `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
			Label:    "Email address",
		},
	}
}

// builtin is compiled at package init so that a broken catalog aborts the
// process before any analysis runs.
var builtin = MustNew(DefaultDefinitions())

// Default returns the registry built from DefaultDefinitions.
func Default() *Registry {
	return builtin
}
