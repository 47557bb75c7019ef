package cli

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zurustar/tunesync/pkg/logger"
	"github.com/zurustar/tunesync/pkg/structure"
	"github.com/zurustar/tunesync/pkg/timeline"
)

// AnalyzePickup は --pickup の既定値で、最初の小節の長さをファイルから求めることを意味する
const AnalyzePickup = -1

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Files         []string      // MIDIファイルのパス（1つ以上）
	Repeats       int           // 繰り返し回数（1以上）
	LogLevel      string        // ログレベル（debug, info, warn, error）
	TriggerDelta  float64       // 拍判定の許容幅（拍単位）
	SyncTolerance float64       // 同期マーカー配置の許容幅（四分音符単位）
	Pickup        float64       // 最初の小節の長さ（四分音符単位、負の値はファイルを解析）
	Play          bool          // 実時間で演奏する
	SoundFont     string        // SoundFontファイルのパス（指定時はシンセサイザで演奏）
	Headless      bool          // オーディオデバイスを開かない
	Jobs          int           // 並列読み込み数
	Timeout       time.Duration // タイムアウト時間（0は無制限）
	ShowHelp      bool          // ヘルプ表示フラグ
}

// boolFlags は値を取らないフラグ
var boolFlags = map[string]bool{
	"-h": true, "--help": true, "-help": true,
	"--play": true, "-play": true,
	"--headless": true, "-headless": true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("tunesync", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	fs.IntVar(&config.Repeats, "repeat", 1, "繰り返し回数")
	fs.IntVar(&config.Repeats, "r", 1, "繰り返し回数（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.Float64Var(&config.TriggerDelta, "trigger-delta", timeline.DefaultTriggerDelta, "拍判定の許容幅（拍単位）")
	fs.Float64Var(&config.SyncTolerance, "sync-tolerance", timeline.DefaultSyncTolerance, "同期マーカー配置の許容幅（四分音符単位）")
	fs.Float64Var(&config.Pickup, "pickup", AnalyzePickup, "最初の小節の長さ（四分音符単位、-1でファイルを解析）")
	fs.BoolVar(&config.Play, "play", false, "実時間で演奏")
	fs.StringVar(&config.SoundFont, "soundfont", "", "SoundFontファイル")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.IntVar(&config.Jobs, "jobs", runtime.NumCPU(), "並列読み込み数")
	fs.IntVar(&config.Jobs, "j", runtime.NumCPU(), "並列読み込み数（短縮形）")
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	// 環境変数から繰り返し回数を取得（コマンドラインフラグが優先）
	if config.Repeats == 1 {
		if repeatEnv := os.Getenv("TUNESYNC_REPEAT"); repeatEnv != "" {
			r, err := strconv.Atoi(repeatEnv)
			if err != nil {
				return nil, fmt.Errorf("invalid TUNESYNC_REPEAT: %s", repeatEnv)
			}
			config.Repeats = r
		}
	}

	// 環境変数からタイムアウトを取得（コマンドラインフラグが優先）
	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	if config.ShowHelp {
		return config, nil
	}

	// 値の検証
	if config.Repeats < 1 {
		return nil, fmt.Errorf("repeat must be at least 1, got %d", config.Repeats)
	}
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second
	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}
	if config.TriggerDelta <= 0 || config.TriggerDelta > 0.5 {
		return nil, fmt.Errorf("trigger-delta must be in (0, 0.5], got %g", config.TriggerDelta)
	}
	if config.SyncTolerance <= 0 {
		return nil, fmt.Errorf("sync-tolerance must be positive, got %g", config.SyncTolerance)
	}
	if config.Jobs < 1 {
		return nil, fmt.Errorf("jobs must be at least 1, got %d", config.Jobs)
	}

	// 位置引数（MIDIファイル）
	config.Files = fs.Args()
	if len(config.Files) == 0 {
		return nil, fmt.Errorf("no MIDI file given")
	}

	return config, nil
}

// Options は設定から timeline.Options を作る
// --pickup が負の場合はファイルを解析する DefaultOptions() の Measures を使う
func (c *Config) Options() timeline.Options {
	opts := timeline.DefaultOptions()
	opts.Repeats = c.Repeats
	opts.TriggerDelta = c.TriggerDelta
	opts.SyncTolerance = c.SyncTolerance
	if c.Pickup >= 0 {
		opts.Measures = structure.Fixed(c.Pickup)
	}
	return opts
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// --name=value の形式、またはブール型フラグは次の引数を取らない
			if strings.Contains(arg, "=") || boolFlags[arg] {
				continue
			}
			// 値を取るフラグは次の引数も追加（-1 のような負の値も含む）
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `tunesync - MIDI timeline and synchronization engine

Usage:
  tunesync [options] <file.mid> [file.mid...]

Arguments:
  file.mid      演奏するMIDIファイル（複数指定可、大文字小文字を区別しない）

Options:
  -r, --repeat <n>            曲の繰り返し回数（デフォルト: 1）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --trigger-delta <beats>     拍判定の許容幅（デフォルト: 0.1拍）
  --sync-tolerance <quarters> 同期マーカー配置の許容幅（デフォルト: 0.0625）
  --pickup <quarters>         最初の小節の長さ（デフォルト: -1 = ファイルを解析）
  --play                      実時間で演奏（イベントをログに出力）
  --soundfont <file.sf2>      SoundFontを使ってシンセサイザで演奏
  --headless                  オーディオデバイスを開かない
  -j, --jobs <n>              並列読み込み数（デフォルト: CPU数）
  -t, --timeout <seconds>     指定秒数後に演奏を終了（デフォルト: 無制限）
  -h, --help                  このヘルプを表示

Environment Variables:
  TUNESYNC_REPEAT=<n>         繰り返し回数
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル

Examples:
  tunesync reel.mid                       曲の情報と同期マーカーを表示
  tunesync -r 3 --play reel.mid           3回繰り返して演奏
  tunesync --pickup 1 jig.mid             1拍のアウフタクトを指定
  tunesync --soundfont GeneralUser-GS.sf2 --play reel.mid
  tunesync -j 4 tunes/*.mid               4並列で読み込み
`)
}
