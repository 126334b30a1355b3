package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/handler"
	"github.com/tableorder/api/internal/service"
)

// --- Mocks ---

type mockTableStore struct {
	tables   map[uuid.UUID]database.DiningTable
	sessions map[uuid.UUID]database.TableSession // keyed by table ID
}

func newMockTableStore() *mockTableStore {
	return &mockTableStore{
		tables:   make(map[uuid.UUID]database.DiningTable),
		sessions: make(map[uuid.UUID]database.TableSession),
	}
}

func (m *mockTableStore) ListTables(_ context.Context) ([]database.DiningTable, error) {
	var out []database.DiningTable
	for _, t := range m.tables {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTableStore) GetTable(_ context.Context, id uuid.UUID) (database.DiningTable, error) {
	t, ok := m.tables[id]
	if !ok {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockTableStore) GetActiveSession(_ context.Context, tableID uuid.UUID) (database.TableSession, error) {
	s, ok := m.sessions[tableID]
	if !ok {
		return database.TableSession{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockTableStore) CreateTable(_ context.Context, arg database.CreateTableParams) (database.DiningTable, error) {
	t := database.DiningTable{ID: uuid.New(), Name: arg.Name, Capacity: arg.Capacity, IsActive: true, CreatedAt: time.Now()}
	m.tables[t.ID] = t
	return t, nil
}

// Open reuses the mock store so the handler sees a consistent view.
func (m *mockTableStore) Open(_ context.Context, tableID uuid.UUID) (database.TableSession, bool, error) {
	if _, ok := m.tables[tableID]; !ok {
		return database.TableSession{}, false, service.ErrTableNotFound
	}
	if s, ok := m.sessions[tableID]; ok {
		return s, false, nil
	}
	s := database.TableSession{ID: uuid.New(), TableID: tableID, Status: database.SessionStatusActive, StartedAt: time.Now()}
	m.sessions[tableID] = s
	return s, true, nil
}

type fakeQR struct {
	contents []string
	tables   []uuid.UUID
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func (f *fakeQR) TableQR(tableID uuid.UUID) ([]byte, error) {
	f.tables = append(f.tables, tableID)
	return pngMagic, nil
}

func (f *fakeQR) PNG(content string) ([]byte, error) {
	f.contents = append(f.contents, content)
	return pngMagic, nil
}

// --- Helpers ---

func setupTableRouter(store *mockTableStore, gen *fakeQR) *chi.Mux {
	h := handler.NewTableHandler(store, store, gen)
	r := chi.NewRouter()
	r.Route("/tables", func(r chi.Router) {
		h.RegisterRoutes(r)
		h.RegisterStaffRoutes(r)
		h.RegisterAdminRoutes(r)
	})
	return r
}

// --- Tests ---

func TestTableCreateAndList(t *testing.T) {
	store := newMockTableStore()
	router := setupTableRouter(store, &fakeQR{})

	rr := doRequest(t, router, "POST", "/tables", map[string]interface{}{"name": "Bàn 1", "capacity": 4})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(t, router, "POST", "/tables", map[string]interface{}{"name": "Bàn 2", "capacity": 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, router, "GET", "/tables", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeListResponse(t, rr), 1)
}

func TestTableOpenSession_CreatesThenReuses(t *testing.T) {
	store := newMockTableStore()
	table, _ := store.CreateTable(context.Background(), database.CreateTableParams{Name: "Bàn 3", Capacity: 2})
	router := setupTableRouter(store, &fakeQR{})
	path := "/tables/" + table.ID.String() + "/sessions"

	rr := doRequest(t, router, "POST", path, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decodeResponse(t, rr)
	assert.Equal(t, true, first["created"])
	assert.Equal(t, "active", first["status"])

	rr = doRequest(t, router, "POST", path, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	second := decodeResponse(t, rr)
	assert.Equal(t, false, second["created"])
	assert.Equal(t, first["session_id"], second["session_id"])

	rr = doRequest(t, router, "GET", "/tables/"+table.ID.String()+"/session", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, first["session_id"], decodeResponse(t, rr)["session_id"])
}

func TestTableOpenSession_UnknownTable(t *testing.T) {
	router := setupTableRouter(newMockTableStore(), &fakeQR{})

	rr := doRequest(t, router, "POST", "/tables/"+uuid.New().String()+"/sessions", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, router, "POST", "/tables/not-a-uuid/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTableActiveSession_NoneYet(t *testing.T) {
	store := newMockTableStore()
	table, _ := store.CreateTable(context.Background(), database.CreateTableParams{Name: "Bàn 4", Capacity: 2})
	router := setupTableRouter(store, &fakeQR{})

	rr := doRequest(t, router, "GET", "/tables/"+table.ID.String()+"/session", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTableQRCode(t *testing.T) {
	store := newMockTableStore()
	table, _ := store.CreateTable(context.Background(), database.CreateTableParams{Name: "Bàn 5", Capacity: 6})
	gen := &fakeQR{}
	router := setupTableRouter(store, gen)

	rr := doRequest(t, router, "GET", "/tables/"+table.ID.String()+"/qr.png", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, pngMagic, rr.Body.Bytes())
	assert.Equal(t, []uuid.UUID{table.ID}, gen.tables)

	rr = doRequest(t, router, "GET", "/tables/"+uuid.New().String()+"/qr.png", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
