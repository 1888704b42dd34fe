package pkg

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPIsLocal(t *testing.T) {
	cases := []struct {
		addr            string
		expectedIsLocal bool
	}{
		{addr: "83.12.53.65:2145", expectedIsLocal: false},
		{addr: "127.23.0.1:35325", expectedIsLocal: false},
		{addr: "127.0.0.1:35325", expectedIsLocal: true},
		{addr: "[::1]:35325", expectedIsLocal: true},
		{addr: "172.20.0.1:60102", expectedIsLocal: true},
		{addr: "172.19.0.1:42452", expectedIsLocal: true},
		{addr: "111.12.56.65:8080", expectedIsLocal: false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expectedIsLocal, IPIsLocal(tc.addr), tc.addr)
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "83.12.53.65:2145"
	assert.Equal(t, "83.12.53.65", ClientKey(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "10.1.2.3, 172.20.0.1")
	assert.Equal(t, "10.1.2.3", ClientKey(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Real-Ip", "127.0.0.1:5555")
	assert.Equal(t, "localhost", ClientKey(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "garbage"
	assert.Equal(t, "unknown", ClientKey(req))
}
