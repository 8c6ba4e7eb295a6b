// Package server は待ち受けソケットと受付ループを管理します。
//
// このパッケージは、設定された配信ルートの正規化、待ち受けソケットの作成、
// 受け付けた接続のワーカープールへの投入、シャットダウンを担当します。
//
// 責務:
//   - 配信ルートの一度きりの初期化（失敗時は起動エラー）
//   - 受付ループ（プールへの投入はブロックしない）
//   - SIGINT/SIGTERM によるグレースフルシャットダウン
//   - 管理用エンドポイント（/health, /api/status）の提供
//
// 仕様:
//   - 1接続につき1リクエストのみ処理し、応答後に切断する
//   - 受付時の一時的なエラーはログに記録して受付を継続する
//   - 管理用エンドポイントは gin を使用し、既定では無効
package server
