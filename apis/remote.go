package apis

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thiefmaster/librelay/comm"
)

const remoteCommandTimeout = 5 * time.Second

// RemoteReply is sent for every message received on the websocket. Data is the
// hex-encoded query response.
type RemoteReply struct {
	Seq     uint64 `json:"seq,omitempty"`
	OK      bool   `json:"ok"`
	Data    string `json:"data,omitempty"`
	Written int    `json:"written,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Remote accepts command descriptors over websocket connections, e.g.
// {"action": "SET_STATE", "content": "ONE_ON"}, and replies with a RemoteReply.
type Remote struct {
	executor Executor
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewRemote(executor Executor, logger *slog.Logger) *Remote {
	return &Remote{
		executor: executor,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: localOrigin},
	}
}

// localOrigin allows non-browser clients and pages served from this host or loopback.
func localOrigin(r *http.Request) bool {
	origin := r.Header["Origin"]
	if len(origin) == 0 {
		return true
	}
	u, err := url.Parse(origin[0])
	if err != nil {
		return false
	}
	if u.Host == r.Host || u.Hostname() == "localhost" {
		return true
	}
	ip := net.ParseIP(u.Hostname())
	return ip != nil && ip.IsLoopback()
}

func replyFor(res comm.Result) RemoteReply {
	reply := RemoteReply{Seq: res.Seq, OK: res.OK(), Written: res.Written}
	if res.Err != nil {
		reply.Error = res.Err.Error()
		return reply
	}
	if len(res.Data) > 0 {
		reply.Data = hex.EncodeToString(res.Data)
	}
	return reply
}

func (r *Remote) handle(message []byte) RemoteReply {
	var desc comm.Descriptor
	if err := json.Unmarshal(message, &desc); err != nil {
		return RemoteReply{Error: "could not parse command: " + err.Error()}
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteCommandTimeout)
	defer cancel()
	res, err := r.executor.DoDescriptor(ctx, desc)
	if err != nil {
		return RemoteReply{Error: err.Error()}
	}
	return replyFor(res)
}

func (r *Remote) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	c, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer c.Close()
	r.logger.Debug("remote connected", "addr", c.RemoteAddr().String())
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		reply := r.handle(message)
		if !reply.OK {
			r.logger.Warn("remote command failed", "message", string(message), "error", reply.Error)
		}
		if err := c.WriteJSON(reply); err != nil {
			r.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

// RunRemote serves the remote on addr under /ws until ctx ends.
func RunRemote(ctx context.Context, addr string, remote *Remote) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", remote)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	remote.logger.Info("remote listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
