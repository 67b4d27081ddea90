package extraction

import (
	"strconv"
	"strings"
)

const statementSchema = `SCHEMA:
{
  "accountStatement": {
    "statementNumber": string,
    "accountType": string,
    "bankName": string,
    "period": {
      "startDate": string,  // DD-MM-YYYY
      "endDate": string     // DD-MM-YYYY
    },
    "accountDetails": {
      "accountNumber": string,
      "accountOwner": string,
      "accountCurrency": string,
      "bankCode": string,
      "iban": string,
      "bic": string
    },
    "basicAccountData": {
      "initialBalance": number,
      "totalRecieved": number,
      "totalWithdrawn": number,
      "finalBalance": number,
      "reservationOfFunds": number,
      "availableBalance": number
    },
    "transactions": [
      {
        "date": string,  // DD-MM-YYYY
        "description": string,
        "amount": number,  // signed: + for deposits, - for withdrawals
        "counterAccountNumber": string | null,
        "transactionDetails": {
          "location": string | null,
          "name": string | null,
          "variableSymbol": string | null,
          "constantSymbol": string | null,
          "specificSymbol": string | null,
          "description": string | null,
          "category": string | null
        }
      }
    ],
    "finalBalance": number,
    "accountServices": [string]
  }
}
`

var categorizationRules = []string{
	`If counterAccountNumber is "3566980339/0800", categorize as "Rent"`,
	`If description contains "Tesco" or "Billa", categorize as "Food"`,
	`If description contains "ATM" or "Cash", categorize as "Cash Withdrawal" for negative amounts and "Cash Deposit" for positive amounts`,
	`If description contains words like "salary", "wage", "payroll", categorize as "Income"`,
	`If description contains "restaurant", "cafe", "dining", "uncle van", categorize as "Restaurant"`,
	`If description contains "transfer" and "savings", categorize as "Savings"`,
	`If description contains "transfer" and "investment", categorize as "Investment"`,
	`If description contains "transfer" and "loan", categorize as "Loan"`,
	`If description contains "transfer" and "credit card", categorize as "Credit Card"`,
	`If description contains "Amazon", "shopping", "retail", "store", categorize as "Shopping"`,
	`If description contains "utility", "electricity", "water", "gas", "phone", "internet", categorize as "Utilities"`,
	`If description contains "transport", "taxi", "uber", "train", "bus", categorize as "Transportation"`,
	`If description contains "health", "doctor", "medical", "pharmacy", categorize as "Healthcare"`,
	`If description contains "entertainment", "movie", "theatre", "concert", categorize as "Entertainment"`,
	`For card payments that don't match any other category, use "General Expenses"`,
	`If none of the above apply, use "Uncategorized"`,
}

var parsingInstructions = []string{
	"For each transaction row extract the date as DD-MM-YYYY, the signed amount, counter account numbers in format XXXXXXXX/XXXX, variable/constant/specific symbols when available, and merchant names and locations for card payments.",
	"Calculate totalRecieved as the sum of all positive amounts.",
	"Calculate totalWithdrawn as the sum of all negative amounts, as a positive number.",
	"Calculate finalBalance as initialBalance + totalRecieved - totalWithdrawn.",
	"If the account owner name appears in transactions, use it for accountDetails.accountOwner.",
	"If a currency is mentioned, use it for accountDetails.accountCurrency.",
}

// BuildPrompt assembles the extraction instructions. categories, when given,
// restricts the category values the model may use.
func BuildPrompt(categories []string) string {
	var b strings.Builder

	b.WriteString("You are a financial statement parser. Extract data from the attached bank statement PDF ")
	b.WriteString("and return a structured JSON object according to the schema below.\n")
	b.WriteString("Many fields may not be present in every statement; use null or empty strings rather than inventing data.\n\n")
	b.WriteString(statementSchema)

	b.WriteString("\nTRANSACTION CATEGORIZATION RULES:\n")
	for i, r := range categorizationRules {
		b.WriteString(strconv.Itoa(i+1) + ". " + r + "\n")
	}

	if len(categories) > 0 {
		b.WriteString("\nAllowed categories (use EXACTLY one of these titles, or \"Uncategorized\"):\n")
		for _, c := range categories {
			b.WriteString("  - " + c + "\n")
		}
	}

	b.WriteString("\nPARSING INSTRUCTIONS:\n")
	for i, p := range parsingInstructions {
		b.WriteString(strconv.Itoa(i+1) + ". " + p + "\n")
	}

	b.WriteString("\nReturn ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")

	return b.String()
}
