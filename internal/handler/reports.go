package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/database"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
}

// ReportsHandler serves the admin sales reports.
type ReportsHandler struct {
	store ReportsStore
	now   func() time.Time
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store, now: time.Now}
}

// RegisterRoutes registers report endpoints. Expected to be mounted at
// /reports behind RequireRole(database.UserRoleAdmin).
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily-sales", h.DailySales)
}

// salesFigures are the summed money columns of one or more bills.
type salesFigures struct {
	BillCount      int64  `json:"bill_count"`
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discount_amount"`
	TaxAmount      string `json:"tax_amount"`
	FinalAmount    string `json:"final_amount"`
}

type methodSales struct {
	PaymentMethod string `json:"payment_method"`
	salesFigures
}

type daySales struct {
	Date string `json:"date"`
	salesFigures
	ByMethod []methodSales `json:"by_method"`
}

type dailySalesResponse struct {
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date"`
	Days      []daySales `json:"days"`
	Totals    struct {
		salesFigures
		ByMethod []methodSales `json:"by_method"`
	} `json:"totals"`
}

// salesSum accumulates report rows without rounding until output.
type salesSum struct {
	bills                               int64
	subtotal, discount, tax, finalTotal decimal.Decimal
}

func (s *salesSum) add(row database.GetDailySalesRow) {
	s.bills += row.BillCount
	s.subtotal = s.subtotal.Add(database.NumericToDecimal(row.Subtotal))
	s.discount = s.discount.Add(database.NumericToDecimal(row.DiscountAmount))
	s.tax = s.tax.Add(database.NumericToDecimal(row.TaxAmount))
	s.finalTotal = s.finalTotal.Add(database.NumericToDecimal(row.FinalAmount))
}

func (s salesSum) figures() salesFigures {
	return salesFigures{
		BillCount:      s.bills,
		Subtotal:       s.subtotal.StringFixed(2),
		DiscountAmount: s.discount.StringFixed(2),
		TaxAmount:      s.tax.StringFixed(2),
		FinalAmount:    s.finalTotal.StringFixed(2),
	}
}

// DailySales returns settled bill totals per day, split by payment method,
// with a grand total for the range. ?start_date= and ?end_date= are
// inclusive YYYY-MM-DD dates in restaurant local time; the default is the
// last 30 days.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := parseDateRange(r, h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		log.Printf("ERROR: get daily sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dailySalesResponse{
		StartDate: startDate.Format(dateLayout),
		EndDate:   endDate.AddDate(0, 0, -1).Format(dateLayout),
		Days:      []daySales{},
	}

	// Rows arrive ordered by date then method.
	var total salesSum
	methodTotals := map[string]*salesSum{}
	var methods []string
	var day *daySales
	var daySum salesSum
	flush := func() {
		if day != nil {
			day.salesFigures = daySum.figures()
			resp.Days = append(resp.Days, *day)
		}
	}
	for _, row := range rows {
		date := "N/A"
		if row.SaleDate.Valid {
			date = row.SaleDate.Time.Format(dateLayout)
		}
		if day == nil || day.Date != date {
			flush()
			day = &daySales{Date: date}
			daySum = salesSum{}
		}

		var line salesSum
		line.add(row)
		method := string(row.PaymentMethod)
		day.ByMethod = append(day.ByMethod, methodSales{PaymentMethod: method, salesFigures: line.figures()})
		daySum.add(row)
		total.add(row)

		if methodTotals[method] == nil {
			methodTotals[method] = &salesSum{}
			methods = append(methods, method)
		}
		methodTotals[method].add(row)
	}
	flush()

	sort.Strings(methods)
	resp.Totals.salesFigures = total.figures()
	resp.Totals.ByMethod = make([]methodSales, len(methods))
	for i, m := range methods {
		resp.Totals.ByMethod[i] = methodSales{PaymentMethod: m, salesFigures: methodTotals[m].figures()}
	}

	writeJSON(w, http.StatusOK, resp)
}

const dateLayout = "2006-01-02"

// restaurantLocation is the zone report days are cut in.
func restaurantLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		loc = time.FixedZone("ICT", 7*3600)
	}
	return loc
}

// parseDateRange returns [start, end) with end made exclusive.
func parseDateRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	loc := restaurantLocation()

	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	startDate := today.AddDate(0, 0, -30)
	endDate := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}
	return startDate, endDate, nil
}
