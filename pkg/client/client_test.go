package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

func TestListListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/books" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("select"); got != "*,profiles(username)" {
			t.Errorf("select = %q, want embedded profiles", got)
		}
		if got := r.URL.Query().Get("order"); got != "created_at.desc" {
			t.Errorf("order = %q, want created_at.desc", got)
		}
		if r.Header.Get("apikey") != "anon" {
			t.Errorf("apikey header = %q, want anon", r.Header.Get("apikey"))
		}
		w.Write([]byte(`[
			{"id":"` + uuid.NewString() + `","title":"Algorithms","author":"Cormen","category":"Engineering","price":450,"is_swap":false,"profiles":{"username":"ravi"}},
			{"id":"` + uuid.NewString() + `","title":"Irodov","author":"Irodov","category":"Science","price":null,"is_swap":true,"profiles":null}
		]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "anon")
	listings, err := c.ListListings(context.Background())
	if err != nil {
		t.Fatalf("ListListings() error: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}
	if listings[0].SellerName() != "ravi" {
		t.Errorf("SellerName() = %q, want %q", listings[0].SellerName(), "ravi")
	}
	if listings[1].PriceLabel() != "Swap" {
		t.Errorf("swap listing PriceLabel() = %q, want Swap", listings[1].PriceLabel())
	}
}

func TestBearerFallsBackToAnonKey(t *testing.T) {
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "anon")
	if _, err := c.ListListings(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.WithToken("user-token").ListListings(context.Background()); err != nil {
		t.Fatal(err)
	}
	if auths[0] != "Bearer anon" || auths[1] != "Bearer user-token" {
		t.Errorf("Authorization headers = %v", auths)
	}
}

func TestCreateOrderSendsRepresentationPreference(t *testing.T) {
	orderID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/v1/transactions" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body["status"] != "pending" || body["city"] != "Pune" || body["type"] != "purchase" {
			t.Errorf("unexpected body: %v", body)
		}
		body["id"] = orderID.String()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]map[string]any{body}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "anon").WithToken("tok")
	o, err := c.CreateOrder(context.Background(), CreateOrderRequest{
		BookID:        uuid.New(),
		SellerID:      uuid.New(),
		BuyerID:       uuid.New(),
		Kind:          domain.KindPurchase,
		Status:        domain.StatusPending,
		PaymentMethod: domain.PaymentCash,
		Address:       domain.Address{Line: "Hostel 2", City: "Pune", State: "MH", Pincode: "411001", Phone: "99999"},
		BookTitle:     "Algorithms",
	})
	if err != nil {
		t.Fatalf("CreateOrder() error: %v", err)
	}
	if o.ID != orderID {
		t.Errorf("order ID = %s, want %s", o.ID, orderID)
	}
	if o.City != "Pune" {
		t.Errorf("City = %q, want Pune", o.City)
	}
}

func TestUpdateOrderStatusWritesVerbatim(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body) //nolint:errcheck
		gotBody = string(data)
		w.Write([]byte(`[{"id":"` + uuid.NewString() + `","status":"shipped"}]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "anon")
	o, err := c.UpdateOrderStatus(context.Background(), uuid.New(), "shipped")
	if err != nil {
		t.Fatalf("UpdateOrderStatus() error: %v", err)
	}
	if gotBody != `{"status":"shipped"}` {
		t.Errorf("body = %s", gotBody)
	}
	if o.Status != "shipped" {
		t.Errorf("Status = %q, want the raw value back", o.Status)
	}
}

func TestCompareAndSetStatusNoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "eq.pending" {
			t.Errorf("status filter = %q, want eq.pending", got)
		}
		w.Write([]byte(`[]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "anon")
	_, err := c.CompareAndSetStatus(context.Background(), uuid.New(), domain.StatusPending, domain.StatusConfirmed)
	if !errors.Is(err, ErrNoRows) {
		t.Errorf("err = %v, want ErrNoRows", err)
	}
}

func TestListUserOrdersFilter(t *testing.T) {
	user := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "(seller_id.eq." + user.String() + ",buyer_id.eq." + user.String() + ")"
		if got := r.URL.Query().Get("or"); got != want {
			t.Errorf("or = %q, want %q", got, want)
		}
		w.Write([]byte(`[{"id":"` + uuid.NewString() + `","status":"pending","books":null,"book_title":"Snapshot"}]`)) //nolint:errcheck
	}))
	defer srv.Close()

	orders, err := New(srv.URL, "anon").ListUserOrders(context.Background(), user)
	if err != nil {
		t.Fatalf("ListUserOrders() error: %v", err)
	}
	if len(orders) != 1 || orders[0].Title() != "Snapshot" {
		t.Errorf("orders = %+v", orders)
	}
}

func TestHTTPErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"rows", `{"message":"new row violates row-level security policy"}`, "row-level security"},
		{"auth", `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, "Invalid login credentials"},
		{"auth msg", `{"msg":"User already registered"}`, "User already registered"},
		{"storage", `{"error":"Bucket not found"}`, "Bucket not found"},
		{"plain", `boom`, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body)) //nolint:errcheck
			}))
			defer srv.Close()

			_, err := New(srv.URL, "anon").ListListings(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
			if !IsStatus(err, http.StatusBadRequest) {
				t.Error("IsStatus(err, 400) = false")
			}
			if IsTransport(err) {
				t.Error("an HTTP error must not count as a transport failure")
			}
		})
	}
}

func TestIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listens any more

	_, err := New(url, "anon").ListListings(context.Background())
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if !IsTransport(err) {
		t.Errorf("IsTransport(%v) = false, want true", err)
	}
}

func TestDoRequest_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(5 * time.Second) // slow server
		w.Write([]byte(`[]`))       //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "anon")
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := c.ListListings(ctx)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if IsTransport(err) {
		t.Error("cancellation must not count as a transport failure")
	}
}

func TestUploadObjectAndPublicURL(t *testing.T) {
	var gotPath, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body) //nolint:errcheck
		gotBody = string(data)
		w.Write([]byte(`{"Key":"book-images/x"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "anon")
	err := c.UploadObject(context.Background(), ImageBucket, "u1/1700000000000.png", "image/png", strings.NewReader("PNG"))
	if err != nil {
		t.Fatalf("UploadObject() error: %v", err)
	}
	if gotPath != "/storage/v1/object/book-images/u1/1700000000000.png" {
		t.Errorf("path = %q", gotPath)
	}
	if gotType != "image/png" || gotBody != "PNG" {
		t.Errorf("content-type = %q, body = %q", gotType, gotBody)
	}
	want := srv.URL + "/storage/v1/object/public/book-images/u1/1700000000000.png"
	if got := c.PublicURL(ImageBucket, "u1/1700000000000.png"); got != want {
		t.Errorf("PublicURL() = %q, want %q", got, want)
	}
}

func TestRemoveObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/storage/v1/object/book-images" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string][]string
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		if len(body["prefixes"]) != 1 || body["prefixes"][0] != "u1/a.png" {
			t.Errorf("prefixes = %v", body["prefixes"])
		}
		w.Write([]byte(`[]`)) //nolint:errcheck
	}))
	defer srv.Close()

	if err := New(srv.URL, "anon").RemoveObjects(context.Background(), ImageBucket, "u1/a.png"); err != nil {
		t.Fatalf("RemoveObjects() error: %v", err)
	}
}
