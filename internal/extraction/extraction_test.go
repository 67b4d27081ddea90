package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const statementJSON = `{
  "accountStatement": {
    "statementNumber": "7",
    "bankName": "Fio",
    "period": {"startDate": "01-03-2025", "endDate": "31-03-2025"},
    "accountDetails": {"accountCurrency": "CZK"},
    "basicAccountData": {"initialBalance": 1000.5, "totalRecieved": 200, "totalWithdrawn": 150.25, "finalBalance": 1050.25, "reservationOfFunds": null, "availableBalance": 1050.25},
    "transactions": [
      {"date": "02-03-2025", "description": "Tesco", "amount": -150.25, "counterAccountNumber": null,
       "transactionDetails": {"category": "Food", "location": "Praha"}},
      {"date": "05-03-2025", "description": "Salary", "amount": 200, "transactionDetails": {"category": "  "}}
    ],
    "finalBalance": 1050.25,
    "accountServices": []
  }
}`

type fakeGenerator struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.text}}}},
		},
	}, nil
}

type fakeCatalog struct {
	cats []domain.Category
	err  error
}

func (f fakeCatalog) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return f.cats, f.err
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced json", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "chatter", in: "Here you go: {\"a\":{\"b\":2}} hope it helps", want: `{"a":{"b":2}}`},
		{name: "no object", in: "sorry", want: "sorry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.in))
		})
	}
}

func TestParseResponse(t *testing.T) {
	res := ParseResponse("```json\n" + statementJSON + "\n```")

	require.True(t, res.Structured())
	st := res.Statement
	assert.Equal(t, "Fio", st.BankName)
	assert.Equal(t, "01-03-2025", st.Period.StartDate)
	assert.Equal(t, "1000.5", st.BasicAccountData.InitialBalance.String())
	assert.True(t, st.BasicAccountData.ReservationOfFunds.IsZero())
	require.Len(t, st.Transactions, 2)
	assert.Equal(t, "Food", st.Transactions[0].Category())
	assert.Equal(t, "-150.25", st.Transactions[0].Amount.String())
	assert.False(t, st.Transactions[1].HasCategory())
	assert.Nil(t, st.Transactions[1].TransactionDetails.Category)
}

func TestParseResponseRawOnly(t *testing.T) {
	for _, in := range []string{"not json at all", `{"somethingElse": true}`, `{"accountStatement": "x"}`} {
		res := ParseResponse(in)
		assert.False(t, res.Structured(), in)
		assert.Equal(t, in, res.Raw)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt([]string{"Food", "Rent"})

	assert.Contains(t, p, `"accountStatement"`)
	assert.Contains(t, p, "16. If none of the above apply")
	assert.Contains(t, p, "  - Food\n")
	assert.NotContains(t, BuildPrompt(nil), "Allowed categories")
}

func TestGeminiGatewayExtract(t *testing.T) {
	gen := &fakeGenerator{text: statementJSON}
	gw := newGeminiGateway(gen, "", fakeCatalog{cats: []domain.Category{{ID: 1, Title: "Food"}}})

	res, err := gw.Extract(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)

	assert.True(t, res.Structured())
	assert.Equal(t, DefaultModel, gen.model)
	require.Len(t, gen.contents, 1)
	require.Len(t, gen.contents[0].Parts, 2)
	assert.Contains(t, gen.contents[0].Parts[0].Text, "  - Food")
	assert.Equal(t, "application/pdf", gen.contents[0].Parts[1].InlineData.MIMEType)
	require.NotNil(t, gen.config.Temperature)
	assert.Zero(t, *gen.config.Temperature)
}

func TestGeminiGatewayCatalogFailureIsSoft(t *testing.T) {
	gen := &fakeGenerator{text: statementJSON}
	gw := newGeminiGateway(gen, "gemini-test", fakeCatalog{err: errors.New("down")})

	_, err := gw.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.NotContains(t, gen.contents[0].Parts[0].Text, "Allowed categories")
	assert.Equal(t, "gemini-test", gw.Model())
}

func TestGeminiGatewayErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newGeminiGateway(&fakeGenerator{err: errors.New("quota")}, "", nil).Extract(ctx, []byte("%PDF"))
	assert.ErrorContains(t, err, "quota")

	_, err = newGeminiGateway(&fakeGenerator{text: "  "}, "", nil).Extract(ctx, []byte("%PDF"))
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = newGeminiGateway(&fakeGenerator{text: statementJSON}, "", nil).Extract(ctx, nil)
	assert.Error(t, err)
}

func TestGeminiGatewayRawReply(t *testing.T) {
	gw := newGeminiGateway(&fakeGenerator{text: "I cannot read this file"}, "", nil)

	res, err := gw.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.False(t, res.Structured())
	assert.Equal(t, "I cannot read this file", res.Raw)
}
