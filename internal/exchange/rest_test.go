package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "swarm-trader/internal/errors"
)

func TestRESTClientGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/ticker/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("expected perp symbol BTCUSDT, got %s", got)
		}
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"64250.50"}`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "key", "secret")
	price, err := client.GetPrice(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("get price failed: %v", err)
	}
	if price != 64250.50 {
		t.Errorf("want 64250.50, got %f", price)
	}
}

func TestRESTClientSignsBalanceRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-MBX-APIKEY") != "key" {
			t.Error("missing API key header")
		}
		q := r.URL.Query()
		if q.Get("timestamp") == "" {
			t.Error("signed request missing timestamp")
		}
		if q.Get("signature") == "" {
			t.Error("signed request missing signature")
		}
		w.Write([]byte(`[{"asset":"BNB","balance":"1.5"},{"asset":"USDT","balance":"10000.25"}]`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "key", "secret")
	balance, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance != 10000.25 {
		t.Errorf("want 10000.25, got %f", balance)
	}
}

func TestRESTClientAuthFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":-2014,"msg":"API-key format invalid."}`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "bad", "creds")
	_, err := client.GetBalance(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsFatal(err) {
		t.Errorf("401 must classify as fatal, got %v", err)
	}
}

func TestRESTClientServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "key", "secret")
	_, err := client.GetPrice(context.Background(), "BTC")
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsTransient(err) {
		t.Errorf("503 must classify as transient, got %v", err)
	}
}

func TestPerpSymbol(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"BTC", "BTCUSDT"},
		{"btc", "BTCUSDT"},
		{"ETHUSDT", "ETHUSDT"},
		{"SOLUSD", "SOLUSD"},
	}
	for _, tt := range tests {
		if got := perpSymbol(tt.in); got != tt.want {
			t.Errorf("perpSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
