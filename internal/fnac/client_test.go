package fnac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/footbar/fulfillment/internal/ingest"
	"github.com/footbar/fulfillment/internal/order"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	// Built by hand to bypass the token exchange; the transport is an
	// injected capability, not part of the order-fetch contract.
	c := &Client{baseURL: srv.URL, lookbackDays: 7, httpClient: &http.Client{}}
	return c
}

func TestFetchSince(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders":
			assert.NotEmpty(t, r.URL.Query().Get("date_min"))
			json.NewEncoder(w).Encode(ordersPage{Page: 1, NbTotal: 1, Orders: []Order{
				{
					ID:        "FNAC-A1",
					CreatedAt: "2026-08-02T09:30:00Z",
					State:     "Shipped",
					Buyer:     Buyer{ContactEmail: "jo@example.com", Language: "fr"},
					Items:     []Item{{Reference: "METEOR-APP", Quantity: 1, Label: "Meteor"}},
				},
			}})
		default:
			http.NotFound(w, r)
		}
	}

	c := newTestClient(t, handler)
	fetched, err := c.FetchSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, fetched, 1)

	f := fetched[0]
	require.NoError(t, f.Err)
	assert.Equal(t, "FNAC-A1", f.ID)
	assert.Equal(t, order.SourceFnac, f.Order.Source)
	assert.Equal(t, "fr", f.Order.Language)
	require.Len(t, f.Order.Lines, 1)
	assert.Equal(t, order.Line{Sku: "METEOR-APP", Quantity: 1, Title: "Meteor"}, f.Order.Lines[0])
}

func TestFetchSinceStrippedEmail(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders":
			json.NewEncoder(w).Encode(ordersPage{Orders: []Order{
				{ID: "FNAC-B2", CreatedAt: "2026-08-02T10:00:00Z",
					Items: []Item{{Reference: "METEOR-APP", Quantity: 1}}},
			}})
		case "/orders/FNAC-B2":
			json.NewEncoder(w).Encode(Order{
				ID:    "FNAC-B2",
				Buyer: Buyer{ContactEmail: "detail@example.com", Language: "en"},
			})
		default:
			http.NotFound(w, r)
		}
	}

	c := newTestClient(t, handler)
	fetched, err := c.FetchSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	require.NoError(t, fetched[0].Err)
	assert.Equal(t, "detail@example.com", fetched[0].Order.Email)
	assert.Equal(t, "en", fetched[0].Order.Language)
}

func TestFetchSinceDetailTimeoutSurfacesPerOrder(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders":
			json.NewEncoder(w).Encode(ordersPage{Orders: []Order{
				{ID: "FNAC-C3", CreatedAt: "2026-08-02T10:00:00Z"},
			}})
		default:
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
		}
	}

	c := newTestClient(t, handler)
	fetched, err := c.FetchSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.ErrorIs(t, fetched[0].Err, ingest.ErrUpstreamFetch)
}
