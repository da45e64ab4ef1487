package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/mash-api/internal/generation"
)

// generatorFunc adapts a function to the Generator interface.
type generatorFunc func(ctx context.Context, req generation.Request) (generation.Result, error)

func (f generatorFunc) Generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	return f(ctx, req)
}

func postJSON(url string) (*http.Response, error) {
	body, err := json.Marshal(GenerateRequest{ReferenceImages: []string{"img"}, Prompt: "x"})
	if err != nil {
		return nil, err
	}
	return http.Post(url+"/api/generate", "application/json", bytes.NewReader(body))
}

func TestGenerate_TimeoutBoundsGeneration(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, _ generation.Request) (generation.Result, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return generation.Result{}, ctx.Err()
	})
	h := NewHandlers(gen, testLogger(), WithGenerationTimeout(50*time.Millisecond))

	rec := postGenerate(t, h.generateHandler(), GenerateRequest{ReferenceImages: []string{"img"}, Prompt: "x"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, CodeTimeout, resp.Code)
	assert.Equal(t, "The image was not ready in time. Please try again.", resp.Details)
}

func TestGenerate_ExtendsWriteDeadline(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, _ generation.Request) (generation.Result, error) {
		select {
		case <-time.After(300 * time.Millisecond):
			return generation.Result{OutputURL: "https://cdn/out.png", Type: generation.ModeImage}, nil
		case <-ctx.Done():
			return generation.Result{}, ctx.Err()
		}
	})
	h := NewHandlers(gen, testLogger(), WithGenerationTimeout(time.Minute))

	ts := httptest.NewUnstartedServer(NewRouter(h, testLogger(), DefaultConfig()))
	ts.Config.WriteTimeout = 100 * time.Millisecond
	ts.Start()
	defer ts.Close()

	resp, err := postJSON(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out GenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "https://cdn/out.png", out.Output)
}

func TestNewHTTPServer_ShutdownCancelsRequests(t *testing.T) {
	started := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, _ generation.Request) (generation.Result, error) {
		close(started)
		<-ctx.Done()
		return generation.Result{}, ctx.Err()
	})
	h := NewHandlers(gen, testLogger(), WithGenerationTimeout(time.Hour))
	srv := NewHTTPServer(HTTPConfig{WriteTimeout: time.Minute}, NewRouter(h, testLogger(), DefaultConfig()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()

	type outcome struct {
		status int
		resp   ErrorResponse
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := postJSON("http://"+ln.Addr().String())
		if err != nil {
			done <- outcome{err: err}
			return
		}
		defer resp.Body.Close()
		var body ErrorResponse
		err = json.NewDecoder(resp.Body).Decode(&body)
		done <- outcome{status: resp.StatusCode, resp: body, err: err}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Equal(t, http.StatusServiceUnavailable, got.status)
		assert.Equal(t, CodeCancelled, got.resp.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("request did not finish after shutdown")
	}
}
