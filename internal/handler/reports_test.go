package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/handler"
	"github.com/tableorder/api/internal/middleware"
)

type mockReportsStore struct {
	rows       []database.GetDailySalesRow
	lastParams database.GetDailySalesParams
}

func (m *mockReportsStore) GetDailySales(_ context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error) {
	m.lastParams = arg
	return m.rows, nil
}

func setupReportsRouter(store *mockReportsStore) *chi.Mux {
	h := handler.NewReportsHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.With(middleware.RequireRole(database.UserRoleAdmin)).Route("/reports", h.RegisterRoutes)
	return r
}

func salesRow(date string, method database.PaymentMethod, bills int64, subtotal, discount, tax, final string) database.GetDailySalesRow {
	d, _ := time.Parse("2006-01-02", date)
	return database.GetDailySalesRow{
		SaleDate:       pgtype.Date{Time: d, Valid: true},
		PaymentMethod:  method,
		BillCount:      bills,
		Subtotal:       makeNumeric(subtotal),
		DiscountAmount: makeNumeric(discount),
		TaxAmount:      makeNumeric(tax),
		FinalAmount:    makeNumeric(final),
	}
}

func TestDailySales_GroupsByDay(t *testing.T) {
	store := &mockReportsStore{rows: []database.GetDailySalesRow{
		salesRow("2026-03-01", database.PaymentMethodCash, 3, "300000", "20000", "28000", "308000"),
		salesRow("2026-03-01", database.PaymentMethodTransfer, 1, "100000", "0", "10000", "110000"),
		salesRow("2026-03-02", database.PaymentMethodCash, 2, "50000", "0", "5000", "55000"),
	}}
	router := setupReportsRouter(store)

	rr := doAuthRequest(t, router, "GET", "/reports/daily-sales?start_date=2026-03-01&end_date=2026-03-07", nil, staffClaims(database.UserRoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Days      []struct {
			Date        string `json:"date"`
			BillCount   int64  `json:"bill_count"`
			FinalAmount string `json:"final_amount"`
			ByMethod    []struct {
				PaymentMethod string `json:"payment_method"`
				FinalAmount   string `json:"final_amount"`
			} `json:"by_method"`
		} `json:"days"`
		Totals struct {
			BillCount      int64  `json:"bill_count"`
			DiscountAmount string `json:"discount_amount"`
			FinalAmount    string `json:"final_amount"`
			ByMethod       []struct {
				PaymentMethod string `json:"payment_method"`
				BillCount     int64  `json:"bill_count"`
				FinalAmount   string `json:"final_amount"`
			} `json:"by_method"`
		} `json:"totals"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.StartDate != "2026-03-01" || resp.EndDate != "2026-03-07" {
		t.Errorf("range: got %s..%s", resp.StartDate, resp.EndDate)
	}
	if len(resp.Days) != 2 {
		t.Fatalf("days: got %d, want 2", len(resp.Days))
	}
	first := resp.Days[0]
	if first.Date != "2026-03-01" || first.BillCount != 4 || first.FinalAmount != "418000.00" {
		t.Errorf("unexpected first day: %+v", first)
	}
	if len(first.ByMethod) != 2 || first.ByMethod[0].PaymentMethod != "cash" || first.ByMethod[0].FinalAmount != "308000.00" {
		t.Errorf("unexpected method split: %+v", first.ByMethod)
	}
	if resp.Totals.BillCount != 6 || resp.Totals.FinalAmount != "473000.00" || resp.Totals.DiscountAmount != "20000.00" {
		t.Errorf("unexpected totals: %+v", resp.Totals)
	}
	if len(resp.Totals.ByMethod) != 2 || resp.Totals.ByMethod[0].BillCount != 5 || resp.Totals.ByMethod[0].FinalAmount != "363000.00" {
		t.Errorf("unexpected method totals: %+v", resp.Totals.ByMethod)
	}

	// end_date is inclusive, so the query bound is the following midnight.
	if got := store.lastParams.EndDate.Format("2006-01-02"); got != "2026-03-08" {
		t.Errorf("end bound: got %s, want 2026-03-08", got)
	}
	if got := store.lastParams.StartDate.Format("2006-01-02 15:04"); got != "2026-03-01 00:00" {
		t.Errorf("start bound: got %s, want local midnight", got)
	}
}

func TestDailySales_NoBills(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{})

	rr := doAuthRequest(t, router, "GET", "/reports/daily-sales", nil, staffClaims(database.UserRoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if days, ok := resp["days"].([]interface{}); !ok || len(days) != 0 {
		t.Errorf("days: got %v, want empty list", resp["days"])
	}
	totals := resp["totals"].(map[string]interface{})
	if totals["final_amount"] != "0.00" {
		t.Errorf("final_amount: got %v, want 0.00", totals["final_amount"])
	}
}

func TestDailySales_BadRange(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{})
	claims := staffClaims(database.UserRoleAdmin)

	for _, q := range []string{"start_date=03/01/2026", "end_date=yesterday", "start_date=2026-03-10&end_date=2026-03-01"} {
		rr := doAuthRequest(t, router, "GET", "/reports/daily-sales?"+q, nil, claims)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want %d", q, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestDailySales_AdminOnly(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{})

	rr := doAuthRequest(t, router, "GET", "/reports/daily-sales", nil, staffClaims(database.UserRoleWaiter))
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
