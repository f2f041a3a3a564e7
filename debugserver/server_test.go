package debugserver

import (
	"encoding/binary"
	"net"
	"testing"
	"time"
)

const testToken = 0xC0FFEE

func startTestServer(t *testing.T, h Handler) (addr string, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{Token: testToken, Handler: h}
	go s.Serve(ln)
	return ln.Addr().String(), func() { s.Close() }
}

func writeHeaderBytes(conn net.Conn, token, length uint32) error {
	var buf [headerSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], token)
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	binary.LittleEndian.PutUint32(buf[8:12], length)
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	_, err := conn.Write(buf[:])
	return err
}

func TestRoundTripEchoesHandlerResponse(t *testing.T) {
	t.Parallel()
	echo := HandlerFunc(func(req []byte) ([]byte, bool) {
		out := make([]byte, len(req))
		for i, b := range req {
			out[i] = b ^ 0xff
		}
		return out, true
	})
	addr, closeFn := startTestServer(t, echo)
	defer closeFn()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload := []byte("hello")
	if err := writeHeaderBytes(conn, testToken, uint32(len(payload))); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	var header [headerWords]uint32
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if !readHeader(conn, &header) {
		t.Fatalf("expected response header")
	}
	if header[2] != uint32(len(payload)) {
		t.Fatalf("expected response length %d, got %d", len(payload), header[2])
	}
	resp := make([]byte, header[2])
	if _, err := readFull(conn, resp); err != nil {
		t.Fatalf("read response body: %v", err)
	}
	for i, b := range resp {
		if b != payload[i]^0xff {
			t.Fatalf("response mismatch at %d: got %x", i, b)
		}
	}
}

func TestConnectionStaysOpenAcrossMultipleRequests(t *testing.T) {
	t.Parallel()
	var count int
	h := HandlerFunc(func(req []byte) ([]byte, bool) {
		count++
		return []byte{byte(count)}, true
	})
	addr, closeFn := startTestServer(t, h)
	defer closeFn()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(time.Second))

	for want := 1; want <= 3; want++ {
		if err := writeHeaderBytes(conn, testToken, 0); err != nil {
			t.Fatalf("write header %d: %v", want, err)
		}
		var header [headerWords]uint32
		if !readHeader(conn, &header) {
			t.Fatalf("expected response header on request %d", want)
		}
		resp := make([]byte, header[2])
		if _, err := readFull(conn, resp); err != nil {
			t.Fatalf("read response %d: %v", want, err)
		}
		if int(resp[0]) != want {
			t.Fatalf("request %d: expected counter %d, got %d", want, want, resp[0])
		}
	}
}

func TestMismatchedTokenClosesConnectionWithoutResponse(t *testing.T) {
	t.Parallel()
	called := false
	h := HandlerFunc(func(req []byte) ([]byte, bool) {
		called = true
		return []byte{1}, true
	})
	addr, closeFn := startTestServer(t, h)
	defer closeFn()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(time.Second))

	if err := writeHeaderBytes(conn, testToken+1, 0); err != nil {
		t.Fatalf("write header: %v", err)
	}

	buf := make([]byte, 1)
	n, err := conn.Read(buf)
	if n != 0 || err == nil {
		t.Fatalf("expected connection closed with no bytes written, got n=%d err=%v", n, err)
	}
	if called {
		t.Fatalf("expected handler never invoked on token mismatch")
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
