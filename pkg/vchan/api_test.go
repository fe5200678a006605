package vchan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func newPair(t *testing.T, ringSize int) (server, client *Vchan) {
	t.Helper()
	path := socketPath(t)
	config := Config{
		Path:     path,
		ReadMin:  ringSize,
		WriteMin: ringSize,
		Logger:   NewNoOpLogger(),
	}

	server, err := NewServer(config)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err = NewClient(ctx, config)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	waitState(t, server, StateConnected, time.Second)
	return server, client
}

func TestVchan_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{name: "Small", size: 100},
		{name: "Larger than rings", size: 5*4096 + 123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := newPair(t, 4096)
			if client.State() != StateConnected {
				t.Fatalf("Expected client CONNECTED, got %s", client.State())
			}

			toServer := patternBytes(tt.size, 1)
			toClient := patternBytes(tt.size, 2)

			var g errgroup.Group
			g.Go(func() error {
				if _, err := client.Write(toServer); err != nil {
					return fmt.Errorf("client write: %w", err)
				}
				got := make([]byte, tt.size)
				if _, err := io.ReadFull(client, got); err != nil {
					return fmt.Errorf("client read: %w", err)
				}
				if !bytes.Equal(got, toClient) {
					return errors.New("client received corrupted data")
				}
				return nil
			})
			g.Go(func() error {
				got := make([]byte, tt.size)
				if _, err := io.ReadFull(server, got); err != nil {
					return fmt.Errorf("server read: %w", err)
				}
				if !bytes.Equal(got, toServer) {
					return errors.New("server received corrupted data")
				}
				if _, err := server.Write(toClient); err != nil {
					return fmt.Errorf("server write: %w", err)
				}
				return nil
			})
			if err := g.Wait(); err != nil {
				t.Fatal(err)
			}

			if s := client.Stats(); s.BytesSent != uint64(tt.size) || s.BytesReceived != uint64(tt.size) {
				t.Errorf("Unexpected client counters: %+v", s)
			}
		})
	}
}

func TestVchan_CloseFlushesToPeer(t *testing.T) {
	server, client := newPair(t, 4096)

	payload := patternBytes(3*4096, 9)
	var g errgroup.Group
	g.Go(func() error {
		if _, err := client.Write(payload); err != nil {
			return err
		}
		return client.Close()
	})

	got, err := io.ReadAll(server)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("client failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Expected %d bytes, got %d", len(payload), len(got))
	}
	waitState(t, server, StateDisconnected, time.Second)
}

func TestVchan_BufferedDataSurvivesDisconnect(t *testing.T) {
	fd, peer := socketPair(t)
	v := newTestVchan(t, fd, Config{}, nil)
	v.changeState(StateConnected)
	if err := v.start(v.clientWorker); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := peer.Write([]byte("last words")); err != nil {
		t.Fatalf("peer write failed: %v", err)
	}
	peer.Close()
	waitDone(t, v, 2*time.Second)

	if n := v.DataReady(); n != len("last words") {
		t.Fatalf("Expected %d bytes ready, got %d", len("last words"), n)
	}

	buf := make([]byte, 64)
	n, err := v.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "last words" {
		t.Errorf("Expected %q, got %q", "last words", buf[:n])
	}

	if _, err := v.Read(buf); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
	if _, err := v.Write([]byte("reply")); err != ErrDisconnected {
		t.Errorf("Expected ErrDisconnected, got %v", err)
	}
}

func TestVchan_TryReadWrite(t *testing.T) {
	fd, _ := socketPair(t)
	v := newTestVchan(t, fd, Config{ReadMin: 16, WriteMin: 16}, nil)

	// Nothing buffered and still connecting.
	n, err := v.TryRead(make([]byte, 8))
	if n != 0 || err != nil {
		t.Fatalf("Expected (0, nil), got (%d, %v)", n, err)
	}

	// Writes are buffered before the connection exists.
	if v.BufferSpace() != 16 {
		t.Fatalf("Expected 16 bytes of space, got %d", v.BufferSpace())
	}
	n, err = v.TryWrite(make([]byte, 20))
	if err != nil {
		t.Fatalf("TryWrite failed: %v", err)
	}
	if n != 16 {
		t.Errorf("Expected 16 bytes buffered, got %d", n)
	}
	if v.BufferSpace() != 0 {
		t.Errorf("Expected full write ring, got %d bytes free", v.BufferSpace())
	}

	v.Shutdown()
	if _, err := v.TryWrite([]byte("x")); err != ErrClosed {
		t.Errorf("Expected ErrClosed after Shutdown, got %v", err)
	}
	if _, err := v.TryRead(make([]byte, 1)); err != ErrClosed {
		t.Errorf("Expected ErrClosed from TryRead after Shutdown, got %v", err)
	}
}

func TestVchan_ShutdownWakesBlockedReader(t *testing.T) {
	fd, _ := socketPair(t)
	v := newTestVchan(t, fd, Config{}, nil)
	v.changeState(StateConnected)
	if err := v.start(v.clientWorker); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := v.Read(make([]byte, 8))
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	v.Shutdown()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if err != ErrClosed {
				t.Errorf("Expected ErrClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Blocked reader was not woken by Shutdown")
		}
	}
	waitDone(t, v, time.Second)
}

func TestVchan_CloseServerWithoutPeer(t *testing.T) {
	config := Config{Path: socketPath(t), Logger: NewNoOpLogger()}
	v, err := NewServer(config)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	closed := make(chan error, 1)
	go func() { closed <- v.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	if v.State() != StateConnecting {
		t.Errorf("Expected CONNECTING, got %s", v.State())
	}
	if err := v.Close(); err != nil {
		t.Errorf("Expected repeated Close to return the same result, got %v", err)
	}
}

func TestNewServer_InvalidPath(t *testing.T) {
	if _, err := NewServer(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewClient(context.Background(), Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
