package main

import (
	"context"
	"log"
	"os"

	"webserver/internal/config"
	"webserver/internal/logging"
	"webserver/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	logger := logging.New(cfg.Log)

	// サーバーを作成
	srv := server.New(cfg, logger)

	// サーバーを起動
	if err := srv.Start(context.Background()); err != nil {
		logger.Error().Err(err).Msg("サーバーの起動に失敗しました")
		os.Exit(1)
	}
}
