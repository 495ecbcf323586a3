package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	connIDKey     contextKey = "conn_id"
	remoteAddrKey contextKey = "remote_addr"
)

// WithConnID 设置连接 ID
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connIDKey, connID)
}

// ConnID 获取连接 ID
func ConnID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(connIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRemoteAddr 设置客户端地址
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey, addr)
}

// RemoteAddr 获取客户端地址
func RemoteAddr(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(remoteAddrKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
