package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apptremind/remindctl/internal/apiclient"
	"github.com/apptremind/remindctl/internal/credentials"
	"github.com/apptremind/remindctl/internal/requestid"
)

type recorded struct {
	method string
	path   string
	query  map[string]string
	header http.Header
	body   map[string]any
}

type gatewayServer struct {
	mu       sync.Mutex
	requests []recorded
	bookings map[string]string // idempotency key -> appointment id
	next     func(w http.ResponseWriter, r *http.Request) bool
}

func newGatewayServer(t *testing.T) (*gatewayServer, *httptest.Server) {
	t.Helper()
	gs := &gatewayServer{bookings: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(gs.handle))
	t.Cleanup(srv.Close)
	return gs, srv
}

func (g *gatewayServer) handle(w http.ResponseWriter, r *http.Request) {
	rec := recorded{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), query: map[string]string{}}
	for k := range r.URL.Query() {
		rec.query[k] = r.URL.Query().Get(k)
	}
	_ = json.NewDecoder(r.Body).Decode(&rec.body)

	g.mu.Lock()
	g.requests = append(g.requests, rec)
	hook := g.next
	g.mu.Unlock()

	if hook != nil && hook(w, r) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case pathPublicBook:
		key := r.Header.Get(apiclient.HeaderIdempotencyKey)
		g.mu.Lock()
		id, ok := g.bookings[key]
		if !ok {
			id = "appt-" + string(rune('a'+len(g.bookings)))
			g.bookings[key] = id
		}
		g.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Booking{AppointmentID: id})
	case pathPublicSlots:
		_ = json.NewEncoder(w).Encode([]Slot{{StartTime: "2026-10-19T09:00:00Z", EndTime: "2026-10-19T09:30:00Z"}})
	case pathAppointments:
		_ = json.NewEncoder(w).Encode([]Appointment{{AppointmentID: "appt-1", StartTime: "2026-10-19T09:00:00Z", Status: "booked"}})
	case pathBusinessProfile:
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(BusinessProfile{BusinessID: "biz-1", Name: "Salon", ReminderOffsetsMinutes: []int{60, 1440}})
	case pathTimeOff:
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(idResponse{ID: "off-1"})
	case pathCancelSub:
		w.WriteHeader(http.StatusNoContent)
	case pathHealthz:
		_ = json.NewEncoder(w).Encode(Health{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

func (g *gatewayServer) setNext(fn func(w http.ResponseWriter, r *http.Request) bool) {
	g.mu.Lock()
	g.next = fn
	g.mu.Unlock()
}

func (g *gatewayServer) all() []recorded {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]recorded(nil), g.requests...)
}

func newAPI(t *testing.T, baseURL string, opts ...apiclient.Option) (*API, *requestid.Generator) {
	t.Helper()
	transport, err := apiclient.NewHTTPTransport(baseURL, nil)
	require.NoError(t, err)
	ids := requestid.New()
	store := credentials.NewMemoryStore(credentials.Pair{AccessToken: "A1", RefreshToken: "R1"})
	return New(apiclient.New(transport, store, ids, opts...), ids), ids
}

func TestBook_SendsIdempotencyKeyAndReleasesOnSuccess(t *testing.T) {
	gs, srv := newGatewayServer(t)
	api, ids := newAPI(t, srv.URL)
	ctx := context.Background()

	req := BookingRequest{BusinessID: "biz-1", StaffID: "st-1", ServiceID: "sv-1", CustomerName: "Ada"}
	first, err := api.Book(ctx, "book:1", req)
	require.NoError(t, err)
	assert.NotEmpty(t, first.AppointmentID)

	second, err := api.Book(ctx, "book:1", req)
	require.NoError(t, err)
	assert.NotEqual(t, first.AppointmentID, second.AppointmentID, "a completed action gets a fresh key")

	reqs := gs.all()
	require.Len(t, reqs, 2)
	k1 := reqs[0].header.Get(apiclient.HeaderIdempotencyKey)
	k2 := reqs[1].header.Get(apiclient.HeaderIdempotencyKey)
	assert.NotEmpty(t, k1)
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, "Ada", reqs[0].body["customer_name"])
	assert.NotEqual(t, k2, ids.IdempotencyKeyFor("book:1"))
}

func TestBook_RetryAfterServerErrorReusesKey(t *testing.T) {
	gs, srv := newGatewayServer(t)
	api, _ := newAPI(t, srv.URL)
	ctx := context.Background()

	var failures atomic.Int32
	failures.Store(1)
	gs.setNext(func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == pathPublicBook && failures.Add(-1) >= 0 {
			http.Error(w, "upstream timeout", http.StatusBadGateway)
			return true
		}
		return false
	})

	req := BookingRequest{BusinessID: "biz-1", CustomerName: "Ada"}
	_, err := api.Book(ctx, "book:retry", req)
	require.ErrorIs(t, err, apiclient.ErrServerError)
	assert.Equal(t, http.StatusBadGateway, apiclient.StatusOf(err))

	booking, err := api.Book(ctx, "book:retry", req)
	require.NoError(t, err)
	assert.NotEmpty(t, booking.AppointmentID)

	reqs := gs.all()
	require.Len(t, reqs, 2)
	assert.Equal(t,
		reqs[0].header.Get(apiclient.HeaderIdempotencyKey),
		reqs[1].header.Get(apiclient.HeaderIdempotencyKey))
}

func TestBook_TimeoutKeepsKeyAndSkipsRefresh(t *testing.T) {
	gs, srv := newGatewayServer(t)
	api, ids := newAPI(t, srv.URL, apiclient.WithTimeout(30*time.Millisecond))

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	gs.setNext(func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == pathPublicBook {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return true
		}
		return false
	})

	key := ids.IdempotencyKeyFor("book:slow")
	_, err := api.Book(context.Background(), "book:slow", BookingRequest{CustomerName: "Ada"})
	require.ErrorIs(t, err, apiclient.ErrTransport)
	assert.Equal(t, key, ids.IdempotencyKeyFor("book:slow"))

	for _, r := range gs.all() {
		assert.NotEqual(t, apiclient.DefaultRefreshPath, r.path)
	}
}

func TestBook_ConflictIsClientError(t *testing.T) {
	gs, srv := newGatewayServer(t)
	api, _ := newAPI(t, srv.URL)
	gs.setNext(func(w http.ResponseWriter, r *http.Request) bool {
		http.Error(w, "slot overlaps existing appointment", http.StatusConflict)
		return true
	})

	_, err := api.Book(context.Background(), "book:conflict", BookingRequest{})
	require.ErrorIs(t, err, apiclient.ErrClientError)
	assert.Equal(t, http.StatusConflict, apiclient.StatusOf(err))
	assert.Contains(t, err.Error(), "overlaps")
}

func TestReadEndpointsEncodeQueries(t *testing.T) {
	gs, srv := newGatewayServer(t)
	api, _ := newAPI(t, srv.URL)
	ctx := context.Background()

	slots, err := api.PublicSlots(ctx, SlotQuery{BusinessID: "biz-1", StaffID: "st-1", ServiceID: "sv-1", Date: "2026-10-19", SlotStepMinutes: 15})
	require.NoError(t, err)
	require.Len(t, slots, 1)

	appts, err := api.ListAppointments(ctx, 0)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, 9, appts[0].ParsedStartTime().UTC().Hour())

	profile, err := api.BusinessProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{60, 1440}, profile.ReminderOffsetsMinutes)

	health, err := api.Healthz(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health["status"])

	reqs := gs.all()
	require.Len(t, reqs, 4)
	assert.Equal(t, map[string]string{
		"business_id": "biz-1", "staff_id": "st-1", "service_id": "sv-1",
		"date": "2026-10-19", "slot_step_minutes": "15",
	}, reqs[0].query)
	assert.Equal(t, "10", reqs[1].query["limit"])
	for _, r := range reqs {
		assert.Equal(t, http.MethodGet, r.method)
		assert.Equal(t, "Bearer A1", r.header.Get("Authorization"))
		assert.Empty(t, r.header.Get(apiclient.HeaderIdempotencyKey))
	}
}

func TestWriteEndpoints(t *testing.T) {
	gs, srv := newGatewayServer(t)
	api, _ := newAPI(t, srv.URL)
	ctx := context.Background()

	name := "Salon Deluxe"
	require.NoError(t, api.UpdateBusinessProfile(ctx, BusinessProfileUpdate{Name: &name}))

	id, err := api.CreateTimeOff(ctx, "st-1", NewTimeOff{StartTime: "a", EndTime: "b"})
	require.NoError(t, err)
	assert.Equal(t, "off-1", id)

	require.NoError(t, api.DeleteTimeOff(ctx, "off-1"))
	require.NoError(t, api.CancelSubscription(ctx, "cancel-sub:1", ""))

	reqs := gs.all()
	require.Len(t, reqs, 4)
	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, map[string]any{"name": "Salon Deluxe"}, reqs[0].body)
	assert.Equal(t, "st-1", reqs[1].query["staff_id"])
	assert.Equal(t, http.MethodDelete, reqs[2].method)
	assert.Equal(t, "off-1", reqs[2].query["id"])
	assert.NotEmpty(t, reqs[3].header.Get(apiclient.HeaderIdempotencyKey))
	assert.Empty(t, reqs[3].body)
}
