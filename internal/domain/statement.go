package domain

import "github.com/shopspring/decimal"

// StatementEnvelope is the top-level object the extraction gateway returns.
type StatementEnvelope struct {
	AccountStatement *Statement `json:"accountStatement"`
}

// Statement holds account metadata, aggregate balances and the transaction list
// of one bank statement.
type Statement struct {
	StatementNumber  string           `json:"statementNumber"`
	AccountType      string           `json:"accountType"`
	BankName         string           `json:"bankName"`
	Period           Period           `json:"period"`
	AccountDetails   AccountDetails   `json:"accountDetails"`
	BasicAccountData BasicAccountData `json:"basicAccountData"`
	Transactions     []Transaction    `json:"transactions"`
	FinalBalance     decimal.Decimal  `json:"finalBalance"`
	AccountServices  []string         `json:"accountServices"`
}

// Period is the statement's date range in DD-MM-YYYY.
type Period struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type AccountDetails struct {
	AccountNumber   string `json:"accountNumber"`
	AccountOwner    string `json:"accountOwner"`
	AccountCurrency string `json:"accountCurrency"`
	BankCode        string `json:"bankCode"`
	IBAN            string `json:"iban"`
	BIC             string `json:"bic"`
}

// BasicAccountData are the statement's headline balances. The misspelled
// json key matches what the extraction prompt asks for.
type BasicAccountData struct {
	InitialBalance     decimal.Decimal `json:"initialBalance"`
	TotalReceived      decimal.Decimal `json:"totalRecieved"`
	TotalWithdrawn     decimal.Decimal `json:"totalWithdrawn"`
	FinalBalance       decimal.Decimal `json:"finalBalance"`
	ReservationOfFunds decimal.Decimal `json:"reservationOfFunds"`
	AvailableBalance   decimal.Decimal `json:"availableBalance"`
}
