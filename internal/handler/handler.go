// Package handler は1接続を 解析 → 振り分け → 応答 → 切断 の順で処理する
package handler

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"webserver/internal/request"
	"webserver/internal/response"
)

// Env は全接続で共有する読み取り専用の環境
// 起動時に一度だけ作成する
type Env struct {
	Root         Resolver
	Parser       *request.Parser
	ServerName   string
	ReadTimeout  time.Duration // 0なら期限なし
	WriteTimeout time.Duration // 0なら期限なし
	Logger       zerolog.Logger
}

// Conn は1接続分のハンドラー
// pool.Task を実装する
type Conn struct {
	conn    net.Conn
	env     *Env
	logger  zerolog.Logger
	reader  *bufio.Reader
	req     *request.Request
	res     *response.Response
	started time.Time
}

type stateFunc func(*Conn) stateFunc

// 切断前に未読のリクエストを読み捨てる上限
// 読み残したまま閉じるとカーネルがRSTを送り、応答がクライアントに届かないことがある
const (
	lingerTimeout  = 500 * time.Millisecond
	maxLingerBytes = 256 << 10
)

// halfCloser は送信側だけを閉じられる接続 (*net.TCPConn など)
type halfCloser interface {
	CloseWrite() error
}

// New は接続のハンドラーを作成する。接続の所有権はハンドラーに移る
func New(conn net.Conn, env *Env) *Conn {
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return &Conn{
		conn: conn,
		env:  env,
		logger: env.Logger.With().
			Str("conn_id", uuid.New().String()).
			Str("remote", remote).
			Logger(),
	}
}

// Execute は1リクエストを処理して接続を閉じる
func (c *Conn) Execute() {
	c.started = time.Now()
	c.reader = bufio.NewReader(c.conn)

	// panic はプール側で記録されるが、接続はここで必ず閉じる
	defer func() {
		if r := recover(); r != nil {
			c.conn.Close()
			panic(r)
		}
	}()

	for state := parsing; state != nil; {
		state = state(c)
	}
}

// OnRejected はプールが飽和しているときに呼ばれる
// リクエストは読まずに500を返して接続を閉じる
func (c *Conn) OnRejected() {
	c.logger.Warn().Msg("ワーカープールが飽和しているため接続を拒否します")
	c.res = response.Overloaded()
	c.started = time.Now()

	responding(c)

	// 受付ゴルーチンを止めないよう、読み捨ては別ゴルーチンで行う
	if c.closeWrite() {
		go func() {
			c.drain()
			c.close()
		}()
		return
	}
	c.close()
}

// state funcs

func parsing(c *Conn) stateFunc {
	if c.env.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.env.ReadTimeout)); err != nil {
			c.logger.Warn().Err(err).Msg("読み込み期限の設定に失敗しました")
		}
	}

	req, err := c.env.Parser.Parse(c.reader)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			c.logger.Warn().Err(err).Msg("リクエストの受信がタイムアウトしました")
		} else {
			c.logger.Debug().Err(err).Msg("不正なリクエスト")
		}
		c.res = response.BadRequest()
		return responding
	}
	c.req = req
	return dispatching
}

func dispatching(c *Conn) stateFunc {
	c.res = Dispatch(c.env.Root, c.req)
	return responding
}

func responding(c *Conn) stateFunc {
	c.res.SetHeader("Server", c.env.ServerName)

	if c.env.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.env.WriteTimeout)); err != nil {
			c.logger.Warn().Err(err).Msg("書き込み期限の設定に失敗しました")
		}
	}
	if _, err := c.res.WriteTo(c.conn); err != nil {
		c.logger.Warn().Err(err).Msg("レスポンスの送信に失敗しました")
		return closing
	}

	ev := c.logger.Info().
		Int("status", c.res.StatusCode).
		Dur("elapsed", time.Since(c.started))
	if c.req != nil {
		ev = ev.Str("method", string(c.req.Method)).Str("path", c.req.Path)
	}
	ev.Msg("レスポンスを送信しました")
	return closing
}

func closing(c *Conn) stateFunc {
	if c.closeWrite() {
		c.drain()
	}
	c.close()
	return nil
}

// closeWrite は送信側を閉じてクライアントにEOFを伝える
func (c *Conn) closeWrite() bool {
	hc, ok := c.conn.(halfCloser)
	if !ok {
		return false
	}
	if err := hc.CloseWrite(); err != nil {
		c.logger.Debug().Err(err).Msg("送信側のクローズに失敗しました")
		return false
	}
	return true
}

// drain は残りのリクエストを短い期限付きで読み捨てる
func (c *Conn) drain() {
	if err := c.conn.SetReadDeadline(time.Now().Add(lingerTimeout)); err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(c.conn, maxLingerBytes))
}

func (c *Conn) close() {
	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("接続のクローズに失敗しました")
	}
}
