package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"webserver/internal/config"
	"webserver/internal/content"
	"webserver/internal/handler"
	"webserver/internal/pool"
	"webserver/internal/request"
)

// Server は受付ループとワーカープールを管理する構造体
type Server struct {
	config *config.Config
	logger zerolog.Logger

	// 以下は ready が閉じられた後にのみ参照する
	root      *content.Root
	listener  net.Listener
	pool      *pool.Pool
	env       *handler.Env
	admin     *http.Server
	adminAddr net.Addr

	ready chan struct{}
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, logger zerolog.Logger) *Server {
	return &Server{
		config: cfg,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Ready は待ち受けを開始すると閉じられる
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr は実際に待ち受けているアドレスを返す
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// AdminAddr は管理用エンドポイントのアドレスを返す。無効な場合はnil
func (s *Server) AdminAddr() net.Addr {
	<-s.ready
	return s.adminAddr
}

// Stats はワーカープールの状態を返す
func (s *Server) Stats() pool.Stats {
	<-s.ready
	return s.pool.Stats()
}

// prepare は待ち受け前の一度きりの初期化を行う
// ここで失敗した場合はプロセスを終了させる想定
func (s *Server) prepare() error {
	root, err := content.NewRoot(s.config.Content.Root, s.config.Content.Index)
	if err != nil {
		return fmt.Errorf("配信ルートの初期化に失敗: %w", err)
	}
	s.root = root
	s.logger.Info().Str("root", root.Dir()).Msg("配信ルートを読み込みました")

	ln, err := net.Listen("tcp", s.config.ServerAddress())
	if err != nil {
		return fmt.Errorf("リッスンに失敗: %w", err)
	}
	s.listener = ln

	s.env = &handler.Env{
		Root:         root,
		Parser:       &request.Parser{MaxBodyBytes: s.config.Server.MaxBodyBytes},
		ServerName:   s.config.Server.Name,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		Logger:       s.logger,
	}
	s.pool = pool.New(pool.Config{
		CoreSize:    s.config.Pool.CoreSize,
		MaxSize:     s.config.Pool.MaxSize,
		QueueSize:   s.config.Pool.QueueSize,
		IdleTimeout: s.config.Pool.IdleTimeout,
	}, s.logger)

	if s.config.Admin.Enabled {
		if err := s.startAdmin(); err != nil {
			ln.Close()
			return err
		}
	}
	return nil
}

// startAdmin は管理用HTTPサーバーを別ゴルーチンで起動する
func (s *Server) startAdmin() error {
	ln, err := net.Listen("tcp", s.config.AdminAddress())
	if err != nil {
		return fmt.Errorf("管理エンドポイントのリッスンに失敗: %w", err)
	}
	s.adminAddr = ln.Addr()
	s.admin = &http.Server{
		Handler:      NewAdminRouter(s.config, s.root, s.pool),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("管理エンドポイントを起動しています")
		if err := s.admin.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("管理エンドポイントが停止しました")
		}
	}()
	return nil
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	if err := s.prepare(); err != nil {
		return err
	}
	close(s.ready)

	// 受付ループを別ゴルーチンで起動
	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("HTTPサーバーを起動しています")
		s.acceptLoop()
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Info().Msg("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("シグナルを受信しました")
	case <-acceptDone:
		s.logger.Warn().Msg("受付ループが終了しました")
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// acceptLoop は接続を受け付けてプールへ投入する
// プールへの投入はブロックしない
func (s *Server) acceptLoop() {
	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// 一時的なエラーは待ってから再試行する
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			s.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("accept に失敗しました")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if err := s.pool.Submit(handler.New(conn, s.env)); err != nil {
			s.logger.Debug().Err(err).Msg("接続を拒否しました")
		}
	}
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("サーバーをシャットダウンしています...")

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("リスナーのクローズに失敗: %w", err))
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("ワーカープールの停止に失敗: %w", err))
	}
	if s.admin != nil {
		if err := s.admin.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("管理エンドポイントの停止に失敗: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info().Msg("サーバーが正常にシャットダウンされました")
	return nil
}
