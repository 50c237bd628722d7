package gateway

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/apptremind/remindctl/internal/apiclient"
)

// Sender sends descriptors. *apiclient.Client implements it.
type Sender interface {
	Send(ctx context.Context, d apiclient.Descriptor) (apiclient.Outcome, error)
}

// KeySource hands out idempotency keys per logical action.
// *requestid.Generator implements it.
type KeySource interface {
	IdempotencyKeyFor(action string) string
	Release(action string)
}

// API exposes the gateway endpoints as typed calls.
type API struct {
	client Sender
	keys   KeySource
}

// New builds an API over client.
func New(client Sender, keys KeySource) *API {
	return &API{client: client, keys: keys}
}

const (
	pathBusinessProfile = "/api/v1/business/profile"
	pathServices        = "/api/v1/business/services"
	pathStaff           = "/api/v1/business/staff"
	pathWorkingHours    = "/api/v1/business/staff/working-hours"
	pathTimeOff         = "/api/v1/business/staff/time-off"
	pathPublicSlots     = "/api/v1/public/slots"
	pathPublicBook      = "/api/v1/public/book"
	pathAppointments    = "/api/v1/appointments"
	pathCancel          = "/api/v1/appointments/cancel"
	pathSubscription    = "/api/v1/billing/subscription"
	pathCheckout        = "/api/v1/billing/checkout"
	pathCheckoutSession = "/api/v1/billing/checkout/session"
	pathCheckoutAck     = "/api/v1/billing/checkout/session/ack"
	pathCancelSub       = "/api/v1/billing/subscription/cancel"
	pathHealthz         = "/healthz"
	pathReadyz          = "/readyz"
)

// BusinessProfile fetches the signed-in business profile.
func (a *API) BusinessProfile(ctx context.Context) (BusinessProfile, error) {
	return call[BusinessProfile](ctx, a.client, apiclient.Get(pathBusinessProfile, nil))
}

// UpdateBusinessProfile applies a partial profile update.
func (a *API) UpdateBusinessProfile(ctx context.Context, update BusinessProfileUpdate) error {
	return exec(ctx, a.client, apiclient.Put(pathBusinessProfile, update))
}

func (a *API) ListServices(ctx context.Context) ([]Service, error) {
	return call[[]Service](ctx, a.client, apiclient.Get(pathServices, nil))
}

// CreateService returns the new service id.
func (a *API) CreateService(ctx context.Context, svc NewService) (string, error) {
	created, err := call[idResponse](ctx, a.client, apiclient.Post(pathServices, svc))
	return created.ID, err
}

func (a *API) ListStaff(ctx context.Context) ([]Staff, error) {
	return call[[]Staff](ctx, a.client, apiclient.Get(pathStaff, nil))
}

// CreateStaff returns the new staff id.
func (a *API) CreateStaff(ctx context.Context, staff NewStaff) (string, error) {
	created, err := call[idResponse](ctx, a.client, apiclient.Post(pathStaff, staff))
	return created.ID, err
}

func (a *API) ListWorkingHours(ctx context.Context, staffID string) ([]WorkingHours, error) {
	q := url.Values{"staff_id": {staffID}}
	return call[[]WorkingHours](ctx, a.client, apiclient.Get(pathWorkingHours, q))
}

func (a *API) UpsertWorkingHours(ctx context.Context, staffID string, hours WorkingHours) error {
	hours.StaffID = ""
	q := url.Values{"staff_id": {staffID}}
	return exec(ctx, a.client, apiclient.Put(pathWorkingHours, hours).WithQuery(q))
}

// ListTimeOff returns time off for staffID between from and to (RFC 3339).
func (a *API) ListTimeOff(ctx context.Context, staffID, from, to string) ([]TimeOff, error) {
	q := url.Values{"staff_id": {staffID}, "from": {from}, "to": {to}}
	return call[[]TimeOff](ctx, a.client, apiclient.Get(pathTimeOff, q))
}

// CreateTimeOff returns the new time-off id.
func (a *API) CreateTimeOff(ctx context.Context, staffID string, off NewTimeOff) (string, error) {
	q := url.Values{"staff_id": {staffID}}
	created, err := call[idResponse](ctx, a.client, apiclient.Post(pathTimeOff, off).WithQuery(q))
	return created.ID, err
}

func (a *API) DeleteTimeOff(ctx context.Context, id string) error {
	return exec(ctx, a.client, apiclient.Delete(pathTimeOff, url.Values{"id": {id}}))
}

// PublicSlots lists open slots. It needs no session.
func (a *API) PublicSlots(ctx context.Context, query SlotQuery) ([]Slot, error) {
	q := url.Values{
		"business_id": {query.BusinessID},
		"staff_id":    {query.StaffID},
		"service_id":  {query.ServiceID},
		"date":        {query.Date},
	}
	if query.DurationMinutes > 0 {
		q.Set("duration_minutes", strconv.Itoa(query.DurationMinutes))
	}
	if query.SlotStepMinutes > 0 {
		q.Set("slot_step_minutes", strconv.Itoa(query.SlotStepMinutes))
	}
	return call[[]Slot](ctx, a.client, apiclient.Get(pathPublicSlots, q))
}

// Book creates a public booking. action names the user's submit; calling Book
// again with the same action after a failure reuses its idempotency key, so
// the backend creates at most one appointment.
func (a *API) Book(ctx context.Context, action string, req BookingRequest) (Booking, error) {
	var booking Booking
	err := a.idempotent(ctx, action, apiclient.Post(pathPublicBook, req), &booking)
	return booking, err
}

// ListAppointments returns the most recent appointments; limit <= 0 uses 10.
func (a *API) ListAppointments(ctx context.Context, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	return call[[]Appointment](ctx, a.client, apiclient.Get(pathAppointments, q))
}

func (a *API) CancelAppointment(ctx context.Context, req CancelRequest) (Cancellation, error) {
	return call[Cancellation](ctx, a.client, apiclient.Post(pathCancel, req))
}

func (a *API) Subscription(ctx context.Context) (Subscription, error) {
	return call[Subscription](ctx, a.client, apiclient.Get(pathSubscription, nil))
}

// CreateCheckout starts a checkout session, keyed like Book.
func (a *API) CreateCheckout(ctx context.Context, action string, req CheckoutRequest) (Checkout, error) {
	var checkout Checkout
	err := a.idempotent(ctx, action, apiclient.Post(pathCheckout, req), &checkout)
	return checkout, err
}

func (a *API) CheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error) {
	q := url.Values{"session_id": {sessionID}}
	return call[CheckoutSession](ctx, a.client, apiclient.Get(pathCheckoutSession, q))
}

func (a *API) AckCheckoutSession(ctx context.Context, ack CheckoutAck) error {
	return exec(ctx, a.client, apiclient.Post(pathCheckoutAck, ack))
}

// CancelSubscription cancels the current plan, keyed like Book. An empty
// businessID lets the backend use the session's business.
func (a *API) CancelSubscription(ctx context.Context, action, businessID string) error {
	body := map[string]string{}
	if id := strings.TrimSpace(businessID); id != "" {
		body["business_id"] = id
	}
	return a.idempotent(ctx, action, apiclient.Post(pathCancelSub, body), nil)
}

func (a *API) Healthz(ctx context.Context) (Health, error) {
	return call[Health](ctx, a.client, apiclient.Get(pathHealthz, nil))
}

func (a *API) Readyz(ctx context.Context) (Health, error) {
	return call[Health](ctx, a.client, apiclient.Get(pathReadyz, nil))
}

type idResponse struct {
	ID string `json:"id"`
}

// idempotent sends d under the action's key. The key is released once the
// backend gave a definitive answer; transport failures, 5xx and auth
// failures keep it so a retry of the same action deduplicates.
func (a *API) idempotent(ctx context.Context, action string, d apiclient.Descriptor, dest any) error {
	key := a.keys.IdempotencyKeyFor(action)
	out, err := a.client.Send(ctx, d.WithIdempotencyKey(key))
	if err != nil {
		return err
	}
	switch out.Kind {
	case apiclient.KindSuccess, apiclient.KindClientError:
		a.keys.Release(action)
	}
	if err := out.Err(); err != nil {
		return err
	}
	return out.Decode(dest)
}

func call[T any](ctx context.Context, s Sender, d apiclient.Descriptor) (T, error) {
	var v T
	out, err := s.Send(ctx, d)
	if err != nil {
		return v, err
	}
	if err := out.Err(); err != nil {
		return v, err
	}
	if err := out.Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}

func exec(ctx context.Context, s Sender, d apiclient.Descriptor) error {
	out, err := s.Send(ctx, d)
	if err != nil {
		return err
	}
	return out.Err()
}
