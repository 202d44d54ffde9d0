package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlab/reconcile-engine/logger"
	"github.com/finlab/reconcile-engine/recon"
	"github.com/finlab/reconcile-engine/store/memory"
)

const sampleOFX = `OFXHEADER:100
<OFX>
<BANKID>0260
<ACCTID>12345-6
<ACCTTYPE>CHECKING
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260110120000[-3:BRT]
<TRNAMT>-50.00
<FITID>fit-1
<MEMO>Grocery store
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20260112
<TRNAMT>1234,56
<FITID>fit-2
<NAME>Salary payment
</STMTTRN>
</BANKTRANLIST>
</OFX>`

func newTestAPI(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.AddMembership("local-user", "org-1")
	svc := recon.NewService(st, logger.Nop())
	h := NewHandler(svc, "local-user", logger.Nop())
	return NewRouter(h, []string{"http://localhost:5173"}), st
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestCreateAndListAccounts(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/accounts", CreateAccountRequest{Name: "Checking", Bank: "Nubank"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[AccountDTO](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Nubank", created.Bank)

	rec = doJSON(t, router, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := decode[[]AccountDTO](t, rec)
	require.Len(t, accounts, 1)
	assert.Equal(t, created.ID, accounts[0].ID)
}

func TestCreateAccount_RequiresName(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/accounts", CreateAccountRequest{Bank: "Inter"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewStatement(t *testing.T) {
	router, st := newTestAPI(t)
	account, err := st.CreateAccount(context.Background(), recon.Account{OrganizationID: "org-1", Name: "Main", Bank: "Nubank"})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/statements/preview", StatementRequest{
		AccountID: account.ID,
		Content:   sampleOFX,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	preview := decode[PreviewResponse](t, rec)
	assert.Equal(t, "0260", preview.BankID)
	assert.Equal(t, "Nubank", preview.BankName)
	assert.Equal(t, "CHECKING", preview.AccountType)
	require.NotNil(t, preview.BankMatches)
	assert.True(t, *preview.BankMatches)

	require.Len(t, preview.Entries, 2)
	assert.Equal(t, "D", preview.Entries[0].Direction)
	assert.Equal(t, "50.00", preview.Entries[0].Amount)
	assert.Equal(t, "2026-01-10", preview.Entries[0].Date)
	assert.Equal(t, "1234.56", preview.Entries[1].Amount)
	assert.Equal(t, "Salary payment", preview.Entries[1].Memo)
}

func TestPreviewStatement_BankMismatch(t *testing.T) {
	router, st := newTestAPI(t)
	account, err := st.CreateAccount(context.Background(), recon.Account{OrganizationID: "org-1", Name: "Main", Bank: "Bradesco"})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/statements/preview", StatementRequest{
		AccountID: account.ID,
		Content:   sampleOFX,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	preview := decode[PreviewResponse](t, rec)
	require.NotNil(t, preview.BankMatches)
	assert.False(t, *preview.BankMatches)
}

func TestPreviewStatement_Empty(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/statements/preview", StatementRequest{Content: "not an ofx file"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportStatement_Idempotent(t *testing.T) {
	router, st := newTestAPI(t)
	account, err := st.CreateAccount(context.Background(), recon.Account{OrganizationID: "org-1", Name: "Main", Bank: "Nubank"})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/statements/import", StatementRequest{
		AccountID: account.ID,
		Content:   sampleOFX,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[ImportResponse](t, rec)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, first.Skipped)

	rec = doJSON(t, router, http.MethodPost, "/api/statements/import", StatementRequest{
		AccountID: account.ID,
		Content:   sampleOFX,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[ImportResponse](t, rec)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Skipped)

	rec = doJSON(t, router, http.MethodGet, "/api/statement-lines?account_id="+account.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := decode[[]StatementLineDTO](t, rec)
	assert.Len(t, lines, 2)
}

func TestImportStatement_NoUsableEntries(t *testing.T) {
	router, st := newTestAPI(t)
	account, err := st.CreateAccount(context.Background(), recon.Account{OrganizationID: "org-1", Name: "Main"})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/statements/import", StatementRequest{
		AccountID: account.ID,
		Content:   "garbage",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconcileFlow(t *testing.T) {
	router, st := newTestAPI(t)
	ctx := context.Background()
	account, err := st.CreateAccount(ctx, recon.Account{OrganizationID: "org-1", Name: "Main", Bank: "Nubank"})
	require.NoError(t, err)

	tx, err := st.CreateTransaction(ctx, recon.Transaction{
		OrganizationID: "org-1",
		AccountID:      account.ID,
		Description:    "Grocery store",
		Amount:         decimal.RequireFromString("50.00"),
		Kind:           recon.KindExpense,
		Date:           mustDate(t, "2026-01-10"),
		Status:         recon.TxPending,
	})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/statements/import", StatementRequest{
		AccountID: account.ID,
		Content:   sampleOFX,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/reconciliation/proposals", ProposalsRequest{AccountID: account.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	proposals := decode[map[string]ProposalDTO](t, rec)
	require.Len(t, proposals, 2)

	var linkedLineID string
	for lineID, p := range proposals {
		if p.Action == "linked" {
			linkedLineID = lineID
			require.NotNil(t, p.TransactionID)
			assert.Equal(t, tx.ID, *p.TransactionID)
		}
	}
	require.NotEmpty(t, linkedLineID, "grocery line should have matched the transaction")

	rec = doJSON(t, router, http.MethodPost, "/api/reconciliation/reconcile", TransitionRequest{
		LineIDs:       []string{linkedLineID},
		TransactionID: &tx.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[TransitionResponse](t, rec).Succeeded)

	line, err := st.GetStatementLine(ctx, linkedLineID)
	require.NoError(t, err)
	assert.Equal(t, recon.LineReconciled, line.Status)
	require.NotNil(t, line.MatchedTransactionID)
	assert.Equal(t, tx.ID, *line.MatchedTransactionID)
	assert.NotNil(t, line.ReconciledAt)

	rec = doJSON(t, router, http.MethodPost, "/api/reconciliation/unreconcile", TransitionRequest{
		LineIDs: []string{linkedLineID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	line, err = st.GetStatementLine(ctx, linkedLineID)
	require.NoError(t, err)
	assert.Equal(t, recon.LinePending, line.Status)
}

func TestReconcile_InvalidTransition(t *testing.T) {
	router, st := newTestAPI(t)
	ctx := context.Background()
	account, err := st.CreateAccount(ctx, recon.Account{OrganizationID: "org-1", Name: "Main"})
	require.NoError(t, err)

	inserted, err := st.InsertStatementLines(ctx, []recon.StatementLine{{
		OrganizationID: "org-1",
		AccountID:      account.ID,
		Date:           mustDate(t, "2026-01-10"),
		Amount:         decimal.RequireFromString("10.00"),
		Direction:      recon.Debit,
		Description:    "coffee",
		Status:         recon.LineIgnored,
	}})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/reconciliation/reconcile", TransitionRequest{
		LineIDs: []string{inserted[0].ID},
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	require.NotNil(t, resp.Succeeded)
	assert.Equal(t, 0, *resp.Succeeded)

	line, err := st.GetStatementLine(ctx, inserted[0].ID)
	require.NoError(t, err)
	assert.Equal(t, recon.LineIgnored, line.Status)
}

func TestPostAndReconcile(t *testing.T) {
	router, st := newTestAPI(t)
	ctx := context.Background()
	account, err := st.CreateAccount(ctx, recon.Account{OrganizationID: "org-1", Name: "Main"})
	require.NoError(t, err)

	inserted, err := st.InsertStatementLines(ctx, []recon.StatementLine{{
		OrganizationID: "org-1",
		AccountID:      account.ID,
		Date:           mustDate(t, "2026-01-10"),
		Amount:         decimal.RequireFromString("75.00"),
		Direction:      recon.Debit,
		Description:    "bank fee",
		Status:         recon.LinePending,
	}})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/reconciliation/post", TransitionRequest{
		LineIDs: []string{inserted[0].ID},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[TransitionResponse](t, rec).Succeeded)

	line, err := st.GetStatementLine(ctx, inserted[0].ID)
	require.NoError(t, err)
	require.NotNil(t, line.MatchedTransactionID)

	txs, err := st.ListTransactions(ctx, recon.TransactionFilters{AccountID: account.ID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, recon.KindExpense, txs[0].Kind)
	assert.Equal(t, recon.TxCompleted, txs[0].Status)
	assert.Equal(t, txs[0].ID, *line.MatchedTransactionID)
}

func TestDiscardStatementLine(t *testing.T) {
	router, st := newTestAPI(t)
	ctx := context.Background()

	inserted, err := st.InsertStatementLines(ctx, []recon.StatementLine{{
		OrganizationID: "org-1",
		AccountID:      "acc-1",
		Date:           mustDate(t, "2026-01-10"),
		Amount:         decimal.RequireFromString("10.00"),
		Direction:      recon.Debit,
		Description:    "noise",
		Status:         recon.LinePending,
	}})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodDelete, "/api/statement-lines/"+inserted[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = st.GetStatementLine(ctx, inserted[0].ID)
	assert.ErrorIs(t, err, recon.ErrLineNotFound)
}

func TestCreateTransaction_Validation(t *testing.T) {
	router, _ := newTestAPI(t)

	cases := []struct {
		name string
		req  CreateTransactionRequest
	}{
		{"bad amount", CreateTransactionRequest{AccountID: "a", Amount: "nope", Kind: "expense", Date: "2026-01-10"}},
		{"negative amount", CreateTransactionRequest{AccountID: "a", Amount: "-5", Kind: "expense", Date: "2026-01-10"}},
		{"bad date", CreateTransactionRequest{AccountID: "a", Amount: "5.00", Kind: "expense", Date: "10/01/2026"}},
		{"bad kind", CreateTransactionRequest{AccountID: "a", Amount: "5.00", Kind: "misc", Date: "2026-01-10"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/transactions", tc.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	require.NoError(t, err)
	return d
}
