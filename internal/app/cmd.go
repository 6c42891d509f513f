package app

import (
	"errors"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandPromote はプロフィールの管理者フラグを変更することを示す。
	CommandPromote Command = "promote"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "promote":
		return CommandPromote
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// PromoteArgs はpromoteサブコマンドの引数。
type PromoteArgs struct {
	Email  string
	Revoke bool
}

// ParsePromoteArgs は "promote <email> [--revoke]" を解析する。argsはサブコマンド名を含まない。
func ParsePromoteArgs(args []string) (PromoteArgs, error) {
	var out PromoteArgs
	for _, a := range args {
		switch {
		case a == "--revoke" || a == "-revoke":
			out.Revoke = true
		case strings.HasPrefix(a, "-"):
			return PromoteArgs{}, errors.New("unknown flag: " + a)
		case out.Email != "":
			return PromoteArgs{}, errors.New("promote takes exactly one email")
		default:
			out.Email = strings.TrimSpace(a)
		}
	}
	if out.Email == "" {
		return PromoteArgs{}, errors.New("usage: promote <email> [--revoke]")
	}
	return out, nil
}
