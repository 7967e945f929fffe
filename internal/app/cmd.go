package app

// Command はCLIのサブコマンドを表す。
type Command string

const (
	// CommandInfo はリモートサービスの稼働情報を表示することを示す。
	CommandInfo Command = "info"
	// CommandLogin はログインしてアクセストークンを表示することを示す。
	CommandLogin Command = "login"
	// CommandMe は認証済みユーザーの詳細を表示することを示す。
	CommandMe Command = "me"
	// CommandSearch はユーザーを名前で検索することを示す。
	CommandSearch Command = "search"
	// CommandServeStub はスタブサーバーモードで起動することを示す。
	CommandServeStub Command = "serve-stub"
	// CommandHealthcheck はスタブサーバーのヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandInfoを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandInfo
	}

	switch args[0] {
	case "info":
		return CommandInfo
	case "login":
		return CommandLogin
	case "me":
		return CommandMe
	case "search":
		return CommandSearch
	case "serve-stub":
		return CommandServeStub
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandInfo
	}
}
