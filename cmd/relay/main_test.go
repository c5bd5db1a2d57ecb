package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brensch/teamgrid/transport/wsbus"
)

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(newMux("/ws", wsbus.NewServer(nil)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=200", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
		Conns  int    `json:"conns"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Conns != 0 {
		t.Fatalf("body=%+v", body)
	}
}
