// Package main は静的ファイルサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"webserver/internal/config"
	"webserver/internal/logging"
	"webserver/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		configPath = flag.String("config", os.Getenv("WEBSERVER_CONFIG"), "設定ファイル (YAML)")
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 80)")
		root       = flag.String("root", "", "配信ディレクトリ (デフォルト: ./www)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("webserver")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション] [ポート]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 位置引数のポート指定にも対応する
	if flag.NArg() > 0 {
		if _, err := fmt.Sscanf(flag.Arg(0), "%d", port); err != nil {
			log.Fatalf("無効なポート番号: %s", flag.Arg(0))
		}
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *root != "" {
		cfg.Content.Root = *root
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定の検証に失敗しました: %v", err)
	}

	logger := logging.New(cfg.Log)
	srv := server.New(cfg, logger)

	// サーバーを起動
	logger.Info().Str("addr", cfg.ServerAddress()).Msg("webserver を起動します")
	if err := srv.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("サーバーの起動に失敗しました")
	}
}
