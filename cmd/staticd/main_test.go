package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/staticd/config"
	"github.com/BaSui01/staticd/internal/server"
)

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"version"}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "staticd "+Version)
	assert.Empty(t, stderr.String())
}

func TestRun_MissingPort(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), nil, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(stderr.String(), "Usage: staticd"))
}

func TestRun_TooManyArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"80", "81"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Usage:")
}

func TestRun_IllegalPort(t *testing.T) {
	for _, arg := range []string{"0", "-1", "65536", "http", "80abc", ""} {
		t.Run(arg, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), []string{"--", arg}, &stdout, &stderr)

			assert.Equal(t, 1, code)
			assert.Equal(t, "Illegal port number.\n", stderr.String())
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staticd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  max_header_bytes: -1\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", path, "8080"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "max_header_bytes")
}

func TestRun_MissingDocRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staticd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  output_paths: [\""+filepath.Join(t.TempDir(), "log")+"\"]\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(),
		[]string{"-config", path, "-root", filepath.Join(t.TempDir(), "nope"), "8080"},
		&stdout, &stderr)

	assert.Equal(t, 1, code)
}

func TestParsePort(t *testing.T) {
	port, err := parsePort("8080")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	port, err = parsePort("65535")
	require.NoError(t, err)
	assert.Equal(t, 65535, port)

	for _, bad := range []string{"0", "65536", "abc", " 80", "8.0"} {
		_, err := parsePort(bad)
		assert.Error(t, err, bad)
	}
}

func TestInitLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger := initLogger(config.LogConfig{
			Level:       "debug",
			Format:      format,
			OutputPaths: []string{filepath.Join(t.TempDir(), format+".log")},
		})
		require.NotNil(t, logger)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	}
}

// freePort 取一个当前空闲的端口
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestRunServer_EndToEnd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>ok</h1>"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.DocRoot = root
	cfg.Server.AcceptRate = 1000
	cfg.Server.AcceptBurst = 10
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Metrics.Port = freePort(t)
	cfg.Metrics.Namespace = "staticd_e2e"
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, cfg, zap.NewNop()) }()

	// 文件服务
	var conn net.Conn
	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", cfg.Server.Addr())
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 5*time.Second, 10*time.Millisecond)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err := conn.Write([]byte("GET / HTTP/1.1\r\nConnection: Keep-Alive\r\n\r\n"))
	require.NoError(t, err)
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)

	// 管理端点能看到这条保持中的连接
	adminURL := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Metrics.Port))
	resp, err := http.Get(adminURL + "/healthz")
	require.NoError(t, err)
	var health server.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.ActiveWorkers)
	assert.GreaterOrEqual(t, health.TrackedConnections, 1)

	require.Eventually(t, func() bool {
		resp, err := http.Get(adminURL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), "staticd_e2e_requests_total") &&
			strings.Contains(string(body), `staticd_e2e_buffer_pool_gets_total{pool="response"}`)
	}, 5*time.Second, 20*time.Millisecond)

	// 取消即关闭：保持中的连接被断开，runServer 正常返回
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}

	_, _ = io.ReadAll(br)
	_, err = net.DialTimeout("tcp", cfg.Server.Addr(), 200*time.Millisecond)
	assert.Error(t, err)
}
